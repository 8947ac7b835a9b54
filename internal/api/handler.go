package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/orders"
	"github.com/shaiso/Liveboard/internal/report"
)

// Reports — сборка отчёта по водителям (см. report.Aggregator).
type Reports interface {
	State() report.State
	Trigger(driverIDs []int64, r report.DateRange)
}

// ReportArchive — архив отчётов (см. repo.ReportRepo).
type ReportArchive interface {
	List(ctx context.Context, limit int) ([]domain.DriverReport, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DriverReport, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine  *orders.Engine
	reports Reports
	archive ReportArchive
	logger  *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Engine — доска заказов (обязательно).
	Engine *orders.Engine

	// Reports — отчёт по водителям (опционально).
	Reports Reports

	// Archive — архив отчётов (опционально).
	Archive ReportArchive

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:  cfg.Engine,
		reports: cfg.Reports,
		archive: cfg.Archive,
		logger:  logger,
	}
}
