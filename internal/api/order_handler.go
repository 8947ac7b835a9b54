package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/orders"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

// ListOrders возвращает опубликованную коллекцию заказов.
// GET /api/v1/orders?kitchen_status=...&driver_status=...
//
// Заказы отсортированы по id; ошибка последнего цикла отдаётся вместе с данными.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Store().Snapshot()

	kitchenFilter := r.URL.Query().Get("kitchen_status")
	driverFilter := r.URL.Query().Get("driver_status")
	if kitchenFilter != "" || driverFilter != "" {
		filtered := make([]domain.Order, 0, len(snap.Orders))
		for _, o := range snap.Orders {
			if kitchenFilter != "" && o.KitchenStatus != domain.ParseKitchenStatus(kitchenFilter) {
				continue
			}
			if driverFilter != "" && o.DriverStatus != domain.ParseDriverStatus(driverFilter) {
				continue
			}
			filtered = append(filtered, o)
		}
		snap.Orders = filtered
	} else {
		// Snapshot неизменяем: сортируем копию
		snap.Orders = append([]domain.Order(nil), snap.Orders...)
	}

	sort.Slice(snap.Orders, func(i, j int) bool {
		return snap.Orders[i].ID < snap.Orders[j].ID
	})

	JSON(w, http.StatusOK, OrdersFromSnapshot(snap, h.engine.Phase()))
}

// GetOrder возвращает заказ по ID.
// GET /api/v1/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, found := h.engine.Store().Get(id)
	if !found {
		NotFound(w, "order not found")
		return
	}

	Success(w, OrderFromDomain(order))
}

// RefreshOrders запускает внеочередной цикл заказов.
// POST /api/v1/orders/refresh
func (h *Handler) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	h.engine.Trigger(orders.RefreshOptions{
		Retry:   true,
		Force:   true,
		Trigger: orders.TriggerManual,
	})

	Accepted(w, map[string]string{"status": "refresh scheduled"})
}

// SetDriverStatus меняет статус доставки.
// PATCH /api/v1/orders/{id}/driver-status
func (h *Handler) SetDriverStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req SetDriverStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	status := domain.ParseDriverStatus(req.DriverStatus)
	if req.DriverStatus != "" && status == domain.DriverStatusUnset {
		BadRequest(w, "unknown driver_status: "+req.DriverStatus)
		return
	}

	err := h.engine.SetDriverStatus(r.Context(), id, status)
	if HandleActionError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	h.respondOrder(w, id)
}

// AssignDriver назначает водителя на заказ.
// PUT /api/v1/orders/{id}/driver
func (h *Handler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req AssignDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.DriverID <= 0 {
		BadRequest(w, "driver_id is required")
		return
	}

	err := h.engine.AssignDriver(r.Context(), id, req.DriverID, req.DriverName)
	if HandleActionError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	h.respondOrder(w, id)
}

// UpdateOrder меняет сумму, способ оплаты или номер чека.
// PUT /api/v1/orders/{id}
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Empty() {
		BadRequest(w, "nothing to update")
		return
	}
	if req.Total != nil && req.Total.IsNegative() {
		BadRequest(w, "total cannot be negative")
		return
	}

	err := h.engine.UpdateOrder(r.Context(), id, req.ToDomain(), nil)
	if HandleActionError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	h.respondOrder(w, id)
}

// CloseOrder закрывает заказ.
// POST /api/v1/orders/{id}/close
func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	err := h.engine.CloseOrder(r.Context(), id)
	if HandleActionError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	NoContent(w)
}

// CancelOrder отменяет заказ.
// POST /api/v1/orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	err := h.engine.CancelOrder(r.Context(), id)
	if HandleActionError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	NoContent(w)
}

// respondOrder отдаёт заказ после действия. Заказа может не быть на доске
// (например, его уже убрал цикл) — тогда 204.
func (h *Handler) respondOrder(w http.ResponseWriter, id int64) {
	order, found := h.engine.Store().Get(id)
	if !found {
		NoContent(w)
		return
	}
	Success(w, OrderFromDomain(order))
}

// orderID разбирает {id} из пути. При ошибке отвечает 400.
func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(w, "invalid order id")
		return 0, false
	}
	return id, true
}
