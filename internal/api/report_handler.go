package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Liveboard/internal/telemetry"
)

const defaultArchiveLimit = 20

// GetDriverReport возвращает опубликованный отчёт с флагами загрузки и ошибки.
// GET /api/v1/reports/drivers
func (h *Handler) GetDriverReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		Unavailable(w, "driver reports are not configured")
		return
	}

	Success(w, h.reports.State())
}

// BuildDriverReport запускает сборку отчёта в фоне.
// POST /api/v1/reports/drivers
//
// Ошибки периода и списка водителей попадают в сам отчёт (State.Error),
// здесь проверяется только тело запроса.
func (h *Handler) BuildDriverReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		Unavailable(w, "driver reports are not configured")
		return
	}

	var req BuildReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	h.reports.Trigger(req.DriverIDs, req.DateRange())

	Accepted(w, h.reports.State())
}

// ListArchivedReports возвращает последние архивные отчёты.
// GET /api/v1/reports/archive?limit=...
func (h *Handler) ListArchivedReports(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Unavailable(w, "report archive is not configured")
		return
	}

	limit := defaultArchiveLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = min(n, 100)
	}

	reports, err := h.archive.List(r.Context(), limit)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	List(w, reports, len(reports))
}

// GetArchivedReport возвращает архивный отчёт по ID.
// GET /api/v1/reports/archive/{id}
func (h *Handler) GetArchivedReport(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Unavailable(w, "report archive is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid report id")
		return
	}

	rep, err := h.archive.GetByID(r.Context(), id)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "report not found") {
		return
	}

	Success(w, rep)
}

// Health отвечает 200, пока сервис жив.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
