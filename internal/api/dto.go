package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/orders"
	"github.com/shaiso/Liveboard/internal/report"
)

// Order DTOs

// OrderResponse — заказ на доске.
type OrderResponse struct {
	domain.Order

	// RelevantItems — позиции, участвующие в кухонном процессе (после исключений).
	// Отсутствует, пока позиции не загружены.
	RelevantItems *int `json:"relevant_items,omitempty"`

	// KitchenExcludedOnly — все позиции исключены (например, заказ из одних напитков).
	// kitchen_status у такого заказа остаётся new.
	KitchenExcludedOnly bool `json:"kitchen_excluded_only,omitempty"`
}

// OrderFromDomain конвертирует domain.Order в OrderResponse.
func OrderFromDomain(o domain.Order) OrderResponse {
	resp := OrderResponse{Order: o}
	if !o.Hydrated() {
		return resp
	}

	relevant := 0
	for _, item := range o.Items {
		if !item.KitchenExcluded {
			relevant++
		}
	}
	resp.RelevantItems = &relevant
	resp.KitchenExcludedOnly = len(o.Items) > 0 && relevant == 0
	return resp
}

// OrdersResponse — опубликованная коллекция заказов.
type OrdersResponse struct {
	Data      []OrderResponse `json:"data"`
	Total     int             `json:"total"`
	Error     string          `json:"error,omitempty"`
	Phase     string          `json:"phase"`
	Stale     bool            `json:"stale,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// OrdersFromSnapshot конвертирует orders.Snapshot в OrdersResponse.
func OrdersFromSnapshot(snap orders.Snapshot, phase orders.Phase) OrdersResponse {
	resp := OrdersResponse{
		Data:  make([]OrderResponse, len(snap.Orders)),
		Total: len(snap.Orders),
		Phase: phase.String(),
		Stale: snap.Stale,
	}
	for i, o := range snap.Orders {
		resp.Data[i] = OrderFromDomain(o)
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if !snap.UpdatedAt.IsZero() {
		at := snap.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

// SetDriverStatusRequest — запрос на смену статуса доставки.
type SetDriverStatusRequest struct {
	DriverStatus string `json:"driver_status"`
}

// AssignDriverRequest — запрос на назначение водителя.
type AssignDriverRequest struct {
	DriverID   int64  `json:"driver_id"`
	DriverName string `json:"driver_name,omitempty"`
}

// UpdateOrderRequest — запрос на изменение полей заказа. Nil-поля не меняются.
type UpdateOrderRequest struct {
	Total         *decimal.Decimal `json:"total,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	ReceiptID     *string          `json:"receipt_id,omitempty"`
}

// ToDomain конвертирует запрос в domain.OrderUpdate.
func (r UpdateOrderRequest) ToDomain() domain.OrderUpdate {
	return domain.OrderUpdate{
		Total:         r.Total,
		PaymentMethod: r.PaymentMethod,
		ReceiptID:     r.ReceiptID,
	}
}

// Empty возвращает true, если запрос ничего не меняет.
func (r UpdateOrderRequest) Empty() bool {
	return r.Total == nil && r.PaymentMethod == nil && r.ReceiptID == nil
}

// Report DTOs

// BuildReportRequest — запрос на сборку отчёта по водителям.
type BuildReportRequest struct {
	DriverIDs []int64 `json:"driver_ids,omitempty"`
	From      string  `json:"from"`
	To        string  `json:"to"`
}

// DateRange возвращает период отчёта. Пустой To означает один день From.
func (r BuildReportRequest) DateRange() report.DateRange {
	to := r.To
	if to == "" {
		to = r.From
	}
	return report.DateRange{From: r.From, To: to}
}
