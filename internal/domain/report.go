package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Driver — водитель из справочника персонала.
type Driver struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ExclusionSettings — настройки исключений кухни (GET /kitchen/compile-settings).
type ExclusionSettings struct {
	// ExcludedItems — id продуктов (числа или строки).
	ExcludedItems []FlexID `json:"excludedItems"`

	// ExcludedCategories — названия категорий.
	ExcludedCategories []string `json:"excludedCategories"`
}

// ReportOrder — заказ внутри среза отчёта по водителю.
type ReportOrder struct {
	ID            int64           `json:"id"`
	DriverID      int64           `json:"driver_id,omitempty"`
	DriverName    string          `json:"driver_name,omitempty"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Address       string          `json:"address,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}

// ReportSlice — ответ GET /orders/driver-report для одной пары (водитель, дата).
type ReportSlice struct {
	DriverID         int64                      `json:"driver_id"`
	Date             string                     `json:"date"`
	PacketsDelivered int                        `json:"packets_delivered"`
	TotalSales       decimal.Decimal            `json:"total_sales"`
	SalesByMethod    map[string]decimal.Decimal `json:"sales_by_method"`
	Orders           []ReportOrder              `json:"orders"`
}

// DriverReport — агрегированный отчёт по водителям за период.
//
// Отчёт строится заново на каждый запрос и никогда не изменяется
// инкрементально — публикуется целиком после завершения сборки.
type DriverReport struct {
	// ID — идентификатор сборки.
	ID uuid.UUID `json:"id"`

	From      string  `json:"from"`
	To        string  `json:"to"`
	DriverIDs []int64 `json:"driver_ids"`

	PacketsDelivered int                        `json:"packets_delivered"`
	TotalSales       decimal.Decimal            `json:"total_sales"`
	SalesByMethod    map[string]decimal.Decimal `json:"sales_by_method"`
	Orders           []ReportOrder              `json:"orders"`

	// Tasks — число задач (водитель × дата), FailedTasks — сколько из них упало.
	Tasks       int `json:"tasks"`
	FailedTasks int `json:"failed_tasks"`

	// Error — ошибка уровня отчёта (нет водителей, некорректный период, все задачи упали).
	Error string `json:"error,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Failed возвращает true для отчёта с ошибкой уровня отчёта.
func (r *DriverReport) Failed() bool {
	return r.Error != ""
}
