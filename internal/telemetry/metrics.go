package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сервиса. Регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// FetchCycles — завершённые циклы заказов по исходу (published, failed, cancelled).
	FetchCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveboard_fetch_cycles_total",
		Help: "Order fetch cycles by outcome",
	}, []string{"outcome"})

	// FetchCycleDuration — длительность цикла заказов.
	FetchCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liveboard_fetch_cycle_duration_seconds",
		Help:    "Duration of order fetch cycles",
		Buckets: prometheus.DefBuckets,
	})

	// PublishedOrders — число заказов в опубликованной коллекции.
	PublishedOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveboard_published_orders",
		Help: "Orders in the published collection",
	})

	// DroppedTriggers — триггеры цикла, отброшенные из-за занятости.
	DroppedTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveboard_dropped_triggers_total",
		Help: "Fetch cycle triggers dropped while a cycle was in flight",
	}, []string{"trigger"})

	// RetryAttempts — повторы запросов по операции.
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveboard_retry_attempts_total",
		Help: "Retried requests by operation",
	}, []string{"operation"})

	// HydrationFailures — заказы, позиции которых не удалось загрузить.
	HydrationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liveboard_hydration_failures_total",
		Help: "Orders whose items could not be fetched",
	})

	// ReportTasks — задачи отчёта (водитель × дата) по исходу.
	ReportTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveboard_report_tasks_total",
		Help: "Driver report tasks by outcome",
	}, []string{"outcome"})

	// PushEvents — полученные push-события по имени и источнику.
	PushEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveboard_push_events_total",
		Help: "Push events received by name and source",
	}, []string{"source", "event"})

	// APIRequests — HTTP запросы к API.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveboard_api_http_requests_total",
		Help: "Total HTTP requests handled by the dashboard API",
	}, []string{"method", "status"})
)
