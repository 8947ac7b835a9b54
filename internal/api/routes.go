package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(),
		Metrics(),
		Logging(h.logger),
		CORS(),
	)

	// Orders
	mux.Handle("GET /api/v1/orders", chain(http.HandlerFunc(h.ListOrders)))
	mux.Handle("POST /api/v1/orders/refresh", chain(http.HandlerFunc(h.RefreshOrders)))
	mux.Handle("GET /api/v1/orders/{id}", chain(http.HandlerFunc(h.GetOrder)))
	mux.Handle("PUT /api/v1/orders/{id}", chain(http.HandlerFunc(h.UpdateOrder)))
	mux.Handle("PATCH /api/v1/orders/{id}/driver-status", chain(http.HandlerFunc(h.SetDriverStatus)))
	mux.Handle("PUT /api/v1/orders/{id}/driver", chain(http.HandlerFunc(h.AssignDriver)))
	mux.Handle("POST /api/v1/orders/{id}/close", chain(http.HandlerFunc(h.CloseOrder)))
	mux.Handle("POST /api/v1/orders/{id}/cancel", chain(http.HandlerFunc(h.CancelOrder)))

	// Driver reports
	mux.Handle("GET /api/v1/reports/drivers", chain(http.HandlerFunc(h.GetDriverReport)))
	mux.Handle("POST /api/v1/reports/drivers", chain(http.HandlerFunc(h.BuildDriverReport)))
	mux.Handle("GET /api/v1/reports/archive", chain(http.HandlerFunc(h.ListArchivedReports)))
	mux.Handle("GET /api/v1/reports/archive/{id}", chain(http.HandlerFunc(h.GetArchivedReport)))

	// Service
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
}
