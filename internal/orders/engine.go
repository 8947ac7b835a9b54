package orders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/kitchen"
	"github.com/shaiso/Liveboard/internal/retry"
)

// Default configuration values.
const (
	defaultPollInterval   = 15 * time.Second
	defaultHydrateLimit   = 6
	defaultSettleDelay    = 60 * time.Millisecond
	defaultSettleWindow   = 20 * time.Second
	defaultPersistTimeout = 5 * time.Second
)

// Source — чтение заказов из POS.
type Source interface {
	// ListOpenOrders возвращает заголовки открытых заказов (без позиций).
	ListOpenOrders(ctx context.Context) ([]domain.Order, error)

	// ListItems возвращает позиции одного заказа.
	ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
}

// ActionClient — действия пользователя над заказом на стороне POS.
type ActionClient interface {
	SetDriverStatus(ctx context.Context, orderID int64, status domain.DriverStatus) error
	CloseOrder(ctx context.Context, orderID int64) error
	CancelOrder(ctx context.Context, orderID int64) error
	UpdateOrder(ctx context.Context, orderID int64, update domain.OrderUpdate) error
}

// RulesSource отдаёт актуальные правила исключений (см. kitchen.RulesCache).
type RulesSource interface {
	Get(ctx context.Context) *kitchen.Rules
}

// SnapshotRepo сохраняет опубликованную коллекцию для тёплого старта.
type SnapshotRepo interface {
	SaveSnapshot(ctx context.Context, orders []domain.Order) error

	// LoadSnapshot возвращает последний снимок; nil-срез, если снимка нет.
	LoadSnapshot(ctx context.Context) ([]domain.Order, time.Time, error)
}

// Notifier оповещает соседние доски о закрытии заказа.
type Notifier interface {
	OrderClosed(ctx context.Context, orderID int64) error
}

// Engine синхронизирует коллекцию открытых заказов с POS.
//
// Engine:
//   - Периодически запускает цикл заказов (polling)
//   - Выполняет циклы по триггерам (debounce push-событий, ручное обновление)
//   - Публикует заголовки сразу, позиции — после гидрации
//   - Применяет оптимистичные патчи от действий пользователя
//   - Сохраняет опубликованную коллекцию для тёплого старта
type Engine struct {
	source    Source
	actions   ActionClient
	rules     RulesSource
	snapshots SnapshotRepo
	notifier  Notifier
	store     *Store
	guard     Guard

	// Configuration
	policy       retry.Policy
	pollInterval time.Duration
	hydrateLimit int
	settleDelay  time.Duration
	settleWindow time.Duration
	now          func() time.Time

	// Lifecycle
	logger     *slog.Logger
	baseCtx    context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Engine.
type Config struct {
	// Source — чтение заказов (обязательно).
	Source Source

	// Actions — действия пользователя (опционально; без него действия недоступны).
	Actions ActionClient

	// Rules — правила исключений (опционально; default: только напитки).
	Rules RulesSource

	// Snapshots — хранилище снимков (опционально).
	Snapshots SnapshotRepo

	// Notifier — оповещение о закрытии заказа (опционально).
	Notifier Notifier

	// Store — опубликованная коллекция (опционально; default: NewStore()).
	Store *Store

	// Retry — политика повторов запроса заголовков (default: retry.Default()).
	Retry *retry.Policy

	PollInterval time.Duration // интервал polling (default: 15s)
	HydrateLimit int           // параллельных запросов позиций (default: 6)
	SettleDelay  time.Duration // пауза перед повторным запросом пустых позиций (default: 60ms)
	SettleWindow time.Duration // окно «недавно изменён» для повтора (default: 20s)

	// Now — источник времени (для тестов).
	Now func() time.Time

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	hydrateLimit := cfg.HydrateLimit
	if hydrateLimit <= 0 {
		hydrateLimit = defaultHydrateLimit
	}

	settleDelay := cfg.SettleDelay
	if settleDelay <= 0 {
		settleDelay = defaultSettleDelay
	}

	settleWindow := cfg.SettleWindow
	if settleWindow <= 0 {
		settleWindow = defaultSettleWindow
	}

	policy := retry.Default()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	rules := cfg.Rules
	if rules == nil {
		rules = staticRules{kitchen.NewRules(domain.ExclusionSettings{}, kitchen.DefaultDrinks)}
	}

	store := cfg.Store
	if store == nil {
		store = NewStore()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		source:       cfg.Source,
		actions:      cfg.Actions,
		rules:        rules,
		snapshots:    cfg.Snapshots,
		notifier:     cfg.Notifier,
		store:        store,
		policy:       policy,
		pollInterval: pollInterval,
		hydrateLimit: hydrateLimit,
		settleDelay:  settleDelay,
		settleWindow: settleWindow,
		now:          now,
		logger:       logger,
		baseCtx:      context.Background(),
	}
}

// Store возвращает опубликованную коллекцию.
func (e *Engine) Store() *Store {
	return e.store
}

// Phase возвращает текущую фазу цикла.
func (e *Engine) Phase() Phase {
	return e.guard.Phase()
}

// Start запускает Engine.
//
// Публикует сохранённый снимок (если есть) и запускает polling горутину.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.baseCtx = ctx
	e.cancelFunc = cancel

	e.logger.Info("starting order engine",
		"poll_interval", e.pollInterval,
		"hydrate_limit", e.hydrateLimit,
	)

	e.warmStart(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.logger.Info("order engine started")
	return nil
}

// Stop останавливает Engine и ждёт завершения фоновых горутин.
func (e *Engine) Stop() {
	e.logger.Info("stopping order engine...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	e.guard.Abort()

	e.wg.Wait()

	e.logger.Info("order engine stopped")
}

// pollLoop — цикл polling.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Первый цикл сразу при старте
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll выполняет один цикл по таймеру. Повторы не нужны: следующий тик
// всё равно наступит.
func (e *Engine) poll(ctx context.Context) {
	_ = e.Refresh(ctx, RefreshOptions{Trigger: TriggerPoll})
}

// Trigger запускает цикл в фоне (для debounce и реконсиляции после действий).
func (e *Engine) Trigger(opts RefreshOptions) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.Refresh(e.baseCtx, opts)
	}()
}

func (e *Engine) warmStart(ctx context.Context) {
	if e.snapshots == nil {
		return
	}

	orders, at, err := e.snapshots.LoadSnapshot(ctx)
	if err != nil {
		e.logger.Warn("failed to load order snapshot", "error", err)
		return
	}
	if orders == nil {
		return
	}

	if e.store.Seed(orders, at) {
		e.logger.Info("order snapshot restored",
			"orders", len(orders),
			"taken_at", at,
		)
	}
}

// persist сохраняет опубликованную коллекцию в фоне.
func (e *Engine) persist(orders []domain.Order) {
	if e.snapshots == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(e.baseCtx), defaultPersistTimeout)
		defer cancel()

		if err := e.snapshots.SaveSnapshot(ctx, orders); err != nil {
			e.logger.Warn("failed to save order snapshot", "error", err)
		}
	}()
}

type staticRules struct {
	rules *kitchen.Rules
}

func (s staticRules) Get(context.Context) *kitchen.Rules {
	return s.rules
}
