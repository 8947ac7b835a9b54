package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/Liveboard/internal/cancel"
	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/pool"
	"github.com/shaiso/Liveboard/internal/retry"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

// Ошибки уровня отчёта.
var (
	// ErrNoDrivers — список водителей пуст (и в запросе, и в справочнике).
	ErrNoDrivers = errors.New("no drivers available")

	// ErrInvalidRange — период пуст, не разбирается или слишком длинный.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrAllTasksFailed — ни одна задача (водитель × дата) не завершилась успешно.
	ErrAllTasksFailed = errors.New("all report tasks failed")

	// ErrRoster — не удалось загрузить справочник водителей.
	ErrRoster = errors.New("failed to fetch driver roster")

	// ErrSuperseded — сборку вытеснила более новая; её результат отброшен.
	ErrSuperseded = errors.New("report build superseded")
)

// Default configuration values.
const (
	defaultLimit          = 6
	defaultMaxDays        = 93
	defaultArchiveTimeout = 5 * time.Second
)

// Source — данные POS для отчёта.
type Source interface {
	ListDrivers(ctx context.Context) ([]domain.Driver, error)
	DriverReport(ctx context.Context, driverID int64, date string) (domain.ReportSlice, error)
}

// Archive сохраняет собранные отчёты.
type Archive interface {
	SaveReport(ctx context.Context, report *domain.DriverReport) error
}

// State — опубликованное состояние отчёта.
type State struct {
	Report  *domain.DriverReport `json:"report"`
	Loading bool                 `json:"loading"`
	Error   string               `json:"error,omitempty"`
}

// Aggregator собирает отчёт по водителям.
//
// В каждый момент запросы в POS выпускает только одна сборка:
// новая сборка сигналит токен предыдущей, и результат предыдущей отбрасывается.
type Aggregator struct {
	source  Source
	archive Archive
	policy  retry.Policy
	limit   int
	maxDays int
	now     func() time.Time
	logger  *slog.Logger

	slot cancel.Slot

	mu    sync.RWMutex
	state State

	// Lifecycle фоновых сборок (Trigger)
	baseCtx    context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Aggregator.
type Config struct {
	// Source — данные POS (обязательно).
	Source Source

	// Archive — архив отчётов (опционально).
	Archive Archive

	// Retry — политика повторов загрузки справочника (default: retry.Default()).
	Retry *retry.Policy

	Limit   int // параллельных задач (default: 6)
	MaxDays int // максимальная длина периода в днях (default: 93)

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт Aggregator.
func New(cfg Config) *Aggregator {
	policy := retry.Default()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	maxDays := cfg.MaxDays
	if maxDays <= 0 {
		maxDays = defaultMaxDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancelFunc := context.WithCancel(context.Background())

	return &Aggregator{
		source:     cfg.Source,
		archive:    cfg.Archive,
		policy:     policy,
		limit:      limit,
		maxDays:    maxDays,
		now:        now,
		logger:     logger,
		baseCtx:    baseCtx,
		cancelFunc: cancelFunc,
	}
}

// State возвращает опубликованное состояние.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Trigger запускает сборку в фоне. Результат доступен через State.
func (a *Aggregator) Trigger(driverIDs []int64, r DateRange) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Build(a.baseCtx, driverIDs, r)
	}()
}

// Stop отменяет текущую сборку и ждёт завершения фоновых.
func (a *Aggregator) Stop() {
	a.slot.SignalAll()
	a.cancelFunc()
	a.wg.Wait()
}

// Build собирает отчёт за период по водителям driverIDs
// (пустой список — все водители из справочника).
//
// Ошибки уровня отчёта (нет водителей, некорректный период, все задачи упали)
// возвращаются вместе с отчётом, помеченным Error; такой отчёт тоже публикуется.
// Если сборку вытеснила новая, возвращается ErrSuperseded и ничего не публикуется.
func (a *Aggregator) Build(ctx context.Context, driverIDs []int64, r DateRange) (*domain.DriverReport, error) {
	tok := a.slot.Renew(ctx)
	defer a.slot.Release(tok)

	rep := &domain.DriverReport{
		ID:            uuid.New(),
		From:          r.From,
		To:            r.To,
		TotalSales:    decimal.Zero,
		SalesByMethod: map[string]decimal.Decimal{},
		Orders:        []domain.ReportOrder{},
	}
	logger := telemetry.WithReportID(a.logger, rep.ID.String())

	a.mu.Lock()
	a.state.Loading = true
	a.mu.Unlock()

	logger.Info("building driver report", "from", r.From, "to", r.To, "drivers", driverIDs)

	buildErr := a.build(tok, logger, rep, driverIDs, r)

	if cancel.IsCancellation(buildErr) {
		return nil, a.abandon(ctx, tok, logger)
	}
	if buildErr != nil {
		rep.Error = buildErr.Error()
	}
	rep.GeneratedAt = a.now()

	committed := tok.Commit(func() {
		a.mu.Lock()
		a.state = State{Report: rep, Error: rep.Error}
		a.mu.Unlock()
	})
	if !committed {
		return nil, a.abandon(ctx, tok, logger)
	}

	if buildErr != nil {
		logger.Warn("driver report failed", "error", buildErr)
	} else {
		logger.Info("driver report built",
			"tasks", rep.Tasks,
			"failed_tasks", rep.FailedTasks,
			"orders", len(rep.Orders),
			"total_sales", rep.TotalSales.String(),
		)
	}

	a.save(ctx, logger, rep)
	return rep, buildErr
}

// abandon снимает флаг загрузки, если новее сборки нет, и возвращает причину отказа.
func (a *Aggregator) abandon(ctx context.Context, tok *cancel.Token, logger *slog.Logger) error {
	if a.slot.Current() != tok {
		logger.Debug("driver report superseded")
		return ErrSuperseded
	}

	a.mu.Lock()
	a.state.Loading = false
	a.mu.Unlock()

	logger.Debug("driver report cancelled", "error", ctx.Err())
	return cancel.ErrCancelled
}

// build заполняет rep. Возвращает ошибку уровня отчёта или отмену.
func (a *Aggregator) build(tok *cancel.Token, logger *slog.Logger, rep *domain.DriverReport, driverIDs []int64, r DateRange) error {
	ctx := tok.Context()

	dates, err := r.Dates(a.maxDays)
	if err != nil {
		return err
	}

	policy := a.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		telemetry.RetryAttempts.WithLabelValues("list_drivers").Inc()
		logger.Warn("retrying driver roster", "attempt", attempt, "delay", delay, "error", err)
	}

	roster, err := retry.Do(ctx, policy, a.source.ListDrivers)
	if err != nil {
		if cancel.IsCancellation(err) {
			return err
		}
		// Без справочника можно собрать отчёт по явно заданным водителям, но без имён.
		if len(driverIDs) == 0 {
			return fmt.Errorf("%w: %v", ErrRoster, err)
		}
		logger.Warn("driver roster unavailable, names will not be resolved", "error", err)
	}

	names := make(map[int64]string, len(roster))
	for _, d := range roster {
		names[d.ID] = d.Name
	}

	ids := uniqueIDs(driverIDs)
	if len(ids) == 0 {
		for _, d := range roster {
			ids = append(ids, d.ID)
		}
		ids = uniqueIDs(ids)
	}
	if len(ids) == 0 {
		return ErrNoDrivers
	}
	rep.DriverIDs = ids

	tasks := a.tasks(logger, ids, dates)
	rep.Tasks = len(tasks)

	results, err := pool.RunTasks(ctx, tasks, a.limit)
	if err != nil {
		return err
	}
	if tok.IsSignaled() {
		return cancel.ErrCancelled
	}

	rep.FailedTasks = len(tasks) - len(results)
	if len(results) == 0 {
		return fmt.Errorf("%w: %d tasks", ErrAllTasksFailed, len(tasks))
	}

	fold(rep, results, names)
	return nil
}

// tasks строит декартово произведение водители × даты.
func (a *Aggregator) tasks(logger *slog.Logger, ids []int64, dates []string) []pool.Task[domain.ReportSlice] {
	tasks := make([]pool.Task[domain.ReportSlice], 0, len(ids)*len(dates))
	for _, id := range ids {
		for _, date := range dates {
			tasks = append(tasks, pool.Task[domain.ReportSlice]{
				Work: func(ctx context.Context) (domain.ReportSlice, error) {
					slice, err := a.source.DriverReport(ctx, id, date)
					if err != nil {
						return domain.ReportSlice{}, err
					}
					slice.DriverID = id
					slice.Date = date
					return slice, nil
				},
				OnSuccess: func(domain.ReportSlice) {
					telemetry.ReportTasks.WithLabelValues("succeeded").Inc()
				},
				OnFailure: func(err error) {
					telemetry.ReportTasks.WithLabelValues("failed").Inc()
					logger.Warn("driver report task failed",
						"driver_id", id,
						"date", date,
						"error", err,
					)
				},
			})
		}
	}
	return tasks
}

// save архивирует отчёт. Ошибка архива не влияет на опубликованный отчёт.
func (a *Aggregator) save(ctx context.Context, logger *slog.Logger, rep *domain.DriverReport) {
	if a.archive == nil {
		return
	}

	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), defaultArchiveTimeout)
	defer cancelSave()

	if err := a.archive.SaveReport(saveCtx, rep); err != nil {
		logger.Error("failed to archive driver report", "error", err)
	}
}

// fold суммирует срезы в отчёт и проставляет имена водителей из справочника.
func fold(rep *domain.DriverReport, parts []domain.ReportSlice, names map[int64]string) {
	for _, s := range parts {
		rep.PacketsDelivered += s.PacketsDelivered
		rep.TotalSales = rep.TotalSales.Add(s.TotalSales)

		for method, amount := range s.SalesByMethod {
			rep.SalesByMethod[method] = rep.SalesByMethod[method].Add(amount)
		}

		for _, o := range s.Orders {
			if o.DriverID == 0 {
				o.DriverID = s.DriverID
			}
			if o.DriverName == "" {
				o.DriverName = names[o.DriverID]
			}
			rep.Orders = append(rep.Orders, o)
		}
	}
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
