package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Liveboard/internal/cancel"
	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/kitchen"
	"github.com/shaiso/Liveboard/internal/pool"
	"github.com/shaiso/Liveboard/internal/retry"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

// Триггеры цикла (для логов и метрик).
const (
	TriggerPoll     = "poll"
	TriggerPush     = "push"
	TriggerConnect  = "connect"
	TriggerManual   = "manual"
	TriggerAction   = "action"
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerFollowUp = "follow_up"
)

// RefreshOptions — параметры одного цикла заказов.
type RefreshOptions struct {
	// Retry включает политику повторов для запроса заголовков.
	Retry bool

	// Force отменяет текущий цикл вместо того, чтобы отбросить триггер.
	Force bool

	// Coalesce откладывает триггер: если цикл уже идёт, после него
	// выполняется ещё один. Текущий цикл не отменяется.
	Coalesce bool

	// Trigger — источник запуска.
	Trigger string
}

// hydration — результат гидрации одного заказа.
type hydration struct {
	order domain.Order
	drop  bool
}

// Refresh выполняет один цикл заказов.
//
// Цикл:
//  1. Занимает секцию (ErrBusy, если цикл уже идёт и Force не задан;
//     с Coalesce после текущего цикла запускается повторный)
//  2. Запрашивает заголовки открытых заказов (с повторами, если Retry)
//  3. Сразу публикует заголовки: удаляет пропавшие заказы, накладывает новые
//  4. Загружает позиции каждого заказа (не более HydrateLimit одновременно)
//  5. Накладывает позиции и статус кухни, публикует, очищает ошибку
//
// Заказы, изменённые или удалённые локально после начала цикла, новее
// данных цикла: их поля заголовка не перезаписываются, удалённые не возвращаются.
//
// Если токен цикла отменён (новым циклом или остановкой), результат
// отбрасывается без публикации и возвращается cancel.ErrCancelled.
// Прочие ошибки записываются в Store и возвращаются; коллекция не очищается.
func (e *Engine) Refresh(ctx context.Context, opts RefreshOptions) error {
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}

	tok := cancel.New(ctx)
	defer tok.Signal()

	mode := EnterDrop
	switch {
	case opts.Force:
		mode = EnterForce
	case opts.Coalesce:
		mode = EnterCoalesce
	}

	if err := e.guard.Enter(tok, mode); err != nil {
		telemetry.DroppedTriggers.WithLabelValues(opts.Trigger).Inc()
		e.logger.Debug("fetch cycle trigger dropped",
			"trigger", opts.Trigger,
			"deferred", mode == EnterCoalesce,
		)
		return err
	}
	defer e.leave(tok)

	cycleID := uuid.NewString()
	logger := telemetry.WithCycleID(e.logger, cycleID).With("trigger", opts.Trigger)

	start := time.Now()
	published, err := e.runCycle(tok, logger, opts)
	telemetry.FetchCycleDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		telemetry.FetchCycles.WithLabelValues("published").Inc()
		logger.Debug("fetch cycle published",
			"orders", published,
			"duration", time.Since(start),
		)
		return nil

	case cancel.IsCancellation(err):
		telemetry.FetchCycles.WithLabelValues("cancelled").Inc()
		logger.Debug("fetch cycle cancelled")
		return cancel.ErrCancelled

	default:
		telemetry.FetchCycles.WithLabelValues("failed").Inc()
		if !tok.Commit(func() { e.store.SetError(err) }) {
			return cancel.ErrCancelled
		}
		logger.Warn("fetch cycle failed", "error", err)
		return err
	}
}

// leave освобождает секцию и запускает повторный цикл, если пока шёл этот,
// пришли отложенные триггеры.
func (e *Engine) leave(tok *cancel.Token) {
	if !e.guard.Leave(tok) || e.baseCtx.Err() != nil {
		return
	}
	e.Trigger(RefreshOptions{Retry: true, Coalesce: true, Trigger: TriggerFollowUp})
}

func (e *Engine) runCycle(tok *cancel.Token, logger *slog.Logger, opts RefreshOptions) (int, error) {
	ctx := tok.Context()
	since := e.store.Revision()

	policy := retry.None()
	if opts.Retry {
		policy = e.policy
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			telemetry.RetryAttempts.WithLabelValues("list_orders").Inc()
			logger.Debug("retrying order list",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}
	}

	headers, err := retry.Do(ctx, policy, e.source.ListOpenOrders)
	if err != nil {
		if cancel.IsCancellation(err) {
			return 0, err
		}
		return 0, fmt.Errorf("list orders: %w", err)
	}

	shells := make([]domain.Order, 0, len(headers))
	keep := make(map[int64]struct{}, len(headers))
	for _, h := range headers {
		if h.Status.IsTerminal() {
			continue
		}
		h.Items = nil
		h.KitchenStatus = ""
		shells = append(shells, h)
		keep[h.ID] = struct{}{}
	}

	// Быстрый путь: заголовки видны до загрузки позиций
	if !tok.Commit(func() {
		e.store.Reconcile(since, func(prev []domain.Order, local LocalChanges) []domain.Order {
			return Merge(Retain(prev, keep), freshShells(shells, local), FieldsHeader)
		})
	}) {
		return 0, cancel.ErrCancelled
	}

	if !e.guard.Advance(tok) {
		return 0, cancel.ErrCancelled
	}

	rules := e.rules.Get(ctx)

	results, err := pool.Run(ctx, shells, e.hydrateLimit, func(ctx context.Context, h domain.Order) (hydration, error) {
		return e.hydrate(ctx, rules, h)
	})
	if err != nil {
		return 0, err
	}

	attached := make([]domain.Order, 0, len(results))
	drop := make(map[int64]struct{})
	for _, r := range results {
		if r.drop {
			drop[r.order.ID] = struct{}{}
			continue
		}
		attached = append(attached, r.order)
	}

	var published []domain.Order
	if !tok.Commit(func() {
		e.store.Settle(since, func(prev []domain.Order, _ LocalChanges) []domain.Order {
			// Позиции прикрепляются только к заказам, которые всё ещё опубликованы:
			// заказ, удалённый по order_closed во время гидрации, не возвращается.
			present := make(map[int64]struct{}, len(prev))
			for _, o := range prev {
				present[o.ID] = struct{}{}
			}
			incoming := attached[:0:0]
			for _, o := range attached {
				if _, ok := present[o.ID]; ok {
					incoming = append(incoming, o)
				}
			}
			published = Without(Merge(prev, incoming, FieldsItems), drop)
			return published
		})
	}) {
		return 0, cancel.ErrCancelled
	}

	if len(drop) > 0 {
		logger.Debug("empty draft orders dropped", "count", len(drop))
	}

	e.persist(published)
	return len(published), nil
}

// freshShells отбрасывает заголовки, которые старше локального состояния:
// удалённые после начала цикла заказы и заказы с более новым локальным патчем.
// Патченный заказ остаётся на доске, его поля не перезаписываются.
func freshShells(shells []domain.Order, local LocalChanges) []domain.Order {
	if len(local.Patched) == 0 && len(local.Removed) == 0 {
		return shells
	}
	out := make([]domain.Order, 0, len(shells))
	for _, h := range shells {
		if _, ok := local.Removed[h.ID]; ok {
			continue
		}
		if _, ok := local.Patched[h.ID]; ok {
			continue
		}
		out = append(out, h)
	}
	return out
}

// hydrate загружает позиции одного заказа.
//
// Пустой ответ для не-черновика, изменённого в последние SettleWindow,
// перезапрашивается один раз после SettleDelay: сервер мог ещё не записать позиции.
// Черновик без позиций помечается на удаление.
func (e *Engine) hydrate(ctx context.Context, rules *kitchen.Rules, header domain.Order) (hydration, error) {
	items, err := e.source.ListItems(ctx, header.ID)
	if err != nil {
		return e.hydrationFailed(ctx, header, err)
	}

	if len(items) == 0 && header.Status != domain.OrderStatusDraft && e.recentlyUpdated(header) {
		if err := cancel.Sleep(ctx, e.settleDelay); err != nil {
			return hydration{}, err
		}
		items, err = e.source.ListItems(ctx, header.ID)
		if err != nil {
			return e.hydrationFailed(ctx, header, err)
		}
	}

	if len(items) == 0 && header.Status == domain.OrderStatusDraft {
		return hydration{order: domain.Order{ID: header.ID}, drop: true}, nil
	}

	if items == nil {
		items = []domain.OrderItem{}
	}

	// Во входящем заказе только позиции и статус кухни: поля заголовка
	// уже опубликованы, а локальный патч между публикациями должен выжить.
	order := domain.Order{ID: header.ID, Items: items}
	rules.Annotate(&order)

	return hydration{order: order}, nil
}

func (e *Engine) hydrationFailed(ctx context.Context, header domain.Order, err error) (hydration, error) {
	if cancel.IsCancellation(err) || ctx.Err() != nil {
		return hydration{}, cancel.ErrCancelled
	}

	telemetry.HydrationFailures.Inc()
	telemetry.WithOrderID(e.logger, header.ID).Warn("failed to fetch order items, keeping previous items",
		"error", err,
	)
	return hydration{}, fmt.Errorf("list items for order %d: %w", header.ID, err)
}

func (e *Engine) recentlyUpdated(o domain.Order) bool {
	if o.UpdatedAt.IsZero() {
		return false
	}
	age := e.now().Sub(o.UpdatedAt)
	if age < 0 {
		age = -age
	}
	return age <= e.settleWindow
}
