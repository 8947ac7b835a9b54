package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Liveboard/internal/orders"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

// DefaultConnectDelay — пауза перед реконсиляцией после переподключения.
const DefaultConnectDelay = time.Second

// Refresher запускает цикл заказов в фоне (см. orders.Engine.Trigger).
type Refresher interface {
	Trigger(opts orders.RefreshOptions)
}

// Remover удаляет заказ из опубликованной коллекции (см. orders.Store.Remove).
type Remover interface {
	Remove(orderID int64) bool
}

// Router превращает push-события в действия над доской заказов.
//
//   - orders_updated → отложенный цикл (Debouncer)
//   - order_closed   → заказ сразу убирается с доски, затем отложенный цикл
//   - connect        → цикл реконсиляции через ConnectDelay
type Router struct {
	refresher    Refresher
	remover      Remover
	debouncer    *Debouncer
	connectDelay time.Duration
	logger       *slog.Logger

	mu           sync.Mutex
	connectTimer *time.Timer
	closed       bool
}

// RouterConfig — конфигурация Router.
type RouterConfig struct {
	Refresher Refresher
	Remover   Remover

	Debounce     time.Duration // default: 400ms
	ConnectDelay time.Duration // default: 1s

	Logger *slog.Logger
}

// NewRouter создаёт Router.
func NewRouter(cfg RouterConfig) *Router {
	connectDelay := cfg.ConnectDelay
	if connectDelay <= 0 {
		connectDelay = DefaultConnectDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		refresher:    cfg.Refresher,
		remover:      cfg.Remover,
		connectDelay: connectDelay,
		logger:       logger,
	}
	r.debouncer = NewDebouncer(cfg.Debounce, func() {
		r.refresher.Trigger(orders.RefreshOptions{Retry: true, Coalesce: true, Trigger: orders.TriggerPush})
	})
	return r
}

// Handle обрабатывает одно событие.
func (r *Router) Handle(ev Event) {
	telemetry.PushEvents.WithLabelValues(ev.Source, string(ev.Name)).Inc()

	switch ev.Name {
	case OrdersUpdated:
		r.debouncer.Signal()

	case OrderClosed:
		if r.remover.Remove(ev.OrderID) {
			telemetry.WithOrderID(r.logger, ev.OrderID).Debug("order removed by push event")
		}
		r.debouncer.Signal()

	case Connect:
		r.scheduleReconnect()

	default:
		r.logger.Warn("ignoring unknown push event", "event", ev.Name, "source", ev.Source)
	}
}

func (r *Router) scheduleReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.connectTimer != nil {
		r.connectTimer.Stop()
	}

	r.connectTimer = time.AfterFunc(r.connectDelay, func() {
		r.logger.Info("push transport reconnected, reconciling orders")
		r.refresher.Trigger(orders.RefreshOptions{Retry: true, Coalesce: true, Trigger: orders.TriggerConnect})
	})
}

// Run запускает все источники и направляет их события в Handle.
// Возвращает после отмены ctx или фатальной ошибки любого источника.
func (r *Router) Run(ctx context.Context, sources ...Source) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, src := range sources {
		g.Go(func() error {
			r.logger.Info("push source started", "source", src.Name())
			err := src.Run(gctx, r.Handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("push source failed", "source", src.Name(), "error", err)
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	for _, src := range sources {
		if cerr := src.Close(); cerr != nil {
			r.logger.Warn("failed to close push source", "source", src.Name(), "error", cerr)
		}
	}

	return err
}

// Close отменяет запланированные циклы.
func (r *Router) Close() {
	r.debouncer.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.connectTimer != nil {
		r.connectTimer.Stop()
	}
}
