package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/orders"
	"github.com/shaiso/Liveboard/internal/report"
)

// ReportBuilder собирает отчёт по водителям (см. report.Aggregator).
type ReportBuilder interface {
	Build(ctx context.Context, driverIDs []int64, r report.DateRange) (*domain.DriverReport, error)
}

// Refresher запускает цикл заказов (см. orders.Engine).
type Refresher interface {
	Trigger(opts orders.RefreshOptions)
}

// Leader — лидерство среди экземпляров сервиса.
// Отчёт по расписанию собирает только лидер, чтобы архив не дублировался.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
}

// Scheduler запускает задачи по cron-расписанию:
//   - отчёт по водителям за текущий день (только лидер)
//   - полная сверка заказов
type Scheduler struct {
	reports   ReportBuilder
	refresher Refresher
	leader    Leader
	driverIDs []int64

	reportCron  string
	refreshCron string
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger

	cron       *cron.Cron
	baseCtx    context.Context
	cancelFunc context.CancelFunc
}

// Config — конфигурация Scheduler.
type Config struct {
	// Reports и ReportCron — отчёт по расписанию (оба опциональны, нужны вместе).
	Reports    ReportBuilder
	ReportCron string

	// DriverIDs — водители отчёта (пусто — все из справочника).
	DriverIDs []int64

	// Refresher и RefreshCron — сверка заказов по расписанию (опционально).
	Refresher   Refresher
	RefreshCron string

	// Leader — лидерство (опционально; без него экземпляр считается лидером).
	Leader Leader

	// Timezone — часовой пояс расписания и «текущего дня» отчёта (default: UTC).
	Timezone string

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт Scheduler. Ошибка — если расписание или часовой пояс некорректны.
func New(cfg Config) (*Scheduler, error) {
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if cfg.Reports != nil && cfg.ReportCron != "" {
		if err := ValidateCronExpr(cfg.ReportCron); err != nil {
			return nil, fmt.Errorf("report schedule: %w", err)
		}
	}
	if cfg.Refresher != nil && cfg.RefreshCron != "" {
		if err := ValidateCronExpr(cfg.RefreshCron); err != nil {
			return nil, fmt.Errorf("refresh schedule: %w", err)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		reports:     cfg.Reports,
		refresher:   cfg.Refresher,
		leader:      cfg.Leader,
		driverIDs:   cfg.DriverIDs,
		reportCron:  cfg.ReportCron,
		refreshCron: cfg.RefreshCron,
		loc:         loc,
		now:         now,
		logger:      logger,
	}, nil
}

// Start регистрирует задачи и запускает cron.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx, s.cancelFunc = context.WithCancel(ctx)

	clog := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	var jobs int
	if s.reports != nil && s.reportCron != "" {
		if _, err := s.cron.AddFunc(s.reportCron, func() { s.RunReport(s.baseCtx) }); err != nil {
			return fmt.Errorf("add report job: %w", err)
		}
		jobs++
	}
	if s.refresher != nil && s.refreshCron != "" {
		if _, err := s.cron.AddFunc(s.refreshCron, s.RunRefresh); err != nil {
			return fmt.Errorf("add refresh job: %w", err)
		}
		jobs++
	}

	if jobs == 0 {
		s.logger.Info("scheduler has no jobs")
		return nil
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"jobs", jobs,
		"report_cron", s.reportCron,
		"refresh_cron", s.refreshCron,
		"timezone", s.loc.String(),
	)
	return nil
}

// Stop останавливает cron и ждёт завершения выполняющихся задач.
func (s *Scheduler) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.logger.Info("scheduler stopped")
}

// RunReport собирает отчёт за текущий день в часовом поясе расписания.
func (s *Scheduler) RunReport(ctx context.Context) {
	if s.leader != nil {
		ok, err := s.leader.TryAcquire(ctx)
		if err != nil {
			s.logger.Error("leader check failed", "error", err)
			return
		}
		if !ok {
			s.logger.Debug("not a leader, skipping scheduled report")
			return
		}
	}

	day := report.Day(s.now().In(s.loc))
	rep, err := s.reports.Build(ctx, s.driverIDs, day)
	switch {
	case errors.Is(err, report.ErrSuperseded):
		s.logger.Info("scheduled report superseded by a newer build", "date", day.From)
	case rep == nil && err != nil:
		s.logger.Warn("scheduled report cancelled", "date", day.From, "error", err)
	case err != nil:
		s.logger.Warn("scheduled report failed", "date", day.From, "report_id", rep.ID, "error", err)
	default:
		s.logger.Info("scheduled report built", "date", day.From, "report_id", rep.ID)
	}
}

// RunRefresh запускает полную сверку заказов.
func (s *Scheduler) RunRefresh() {
	s.refresher.Trigger(orders.RefreshOptions{
		Retry:   true,
		Force:   true,
		Trigger: orders.TriggerSchedule,
	})
}
