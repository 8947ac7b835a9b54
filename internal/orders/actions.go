package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

var (
	// ErrActionsDisabled — Engine создан без ActionClient.
	ErrActionsDisabled = errors.New("order actions are not configured")

	// ErrInvalidDriverStatus — недопустимый статус доставки.
	ErrInvalidDriverStatus = errors.New("invalid driver status")
)

// SetDriverStatus меняет статус доставки заказа.
//
// Статус сначала применяется локально (оптимистично), затем отправляется на сервер.
// При ошибке сервера запускается цикл реконсиляции, ошибка возвращается.
func (e *Engine) SetDriverStatus(ctx context.Context, orderID int64, status domain.DriverStatus) error {
	if e.actions == nil {
		return ErrActionsDisabled
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDriverStatus, status)
	}

	e.store.Patch(orderID, func(o *domain.Order) {
		o.DriverStatus = status
	})

	if err := e.actions.SetDriverStatus(ctx, orderID, status); err != nil {
		return e.actionFailed(orderID, "set driver status", err)
	}

	telemetry.WithOrderID(e.logger, orderID).Info("driver status updated", "driver_status", status)
	return nil
}

// AssignDriver назначает водителя на заказ (PUT /orders/{id}).
func (e *Engine) AssignDriver(ctx context.Context, orderID, driverID int64, driverName string) error {
	return e.UpdateOrder(ctx, orderID, domain.OrderUpdate{DriverID: &driverID}, func(o *domain.Order) {
		if driverName != "" {
			o.DriverName = driverName
		}
	})
}

// UpdateOrder отправляет произвольное обновление полей заказа.
// extra — дополнительный локальный патч (опционально).
func (e *Engine) UpdateOrder(ctx context.Context, orderID int64, update domain.OrderUpdate, extra func(o *domain.Order)) error {
	if e.actions == nil {
		return ErrActionsDisabled
	}

	e.store.Patch(orderID, func(o *domain.Order) {
		update.Apply(o)
		if extra != nil {
			extra(o)
		}
	})

	if err := e.actions.UpdateOrder(ctx, orderID, update); err != nil {
		return e.actionFailed(orderID, "update order", err)
	}

	telemetry.WithOrderID(e.logger, orderID).Info("order updated")
	return nil
}

// CloseOrder закрывает заказ.
//
// Заказ сразу убирается с доски. Ответ «уже закрыт» считается успехом
// (это решает ActionClient). После успешного закрытия соседние доски
// оповещаются через Notifier.
func (e *Engine) CloseOrder(ctx context.Context, orderID int64) error {
	if e.actions == nil {
		return ErrActionsDisabled
	}

	e.store.Remove(orderID)

	if err := e.actions.CloseOrder(ctx, orderID); err != nil {
		return e.actionFailed(orderID, "close order", err)
	}

	logger := telemetry.WithOrderID(e.logger, orderID)
	logger.Info("order closed")

	if e.notifier != nil {
		if err := e.notifier.OrderClosed(ctx, orderID); err != nil {
			logger.Warn("failed to publish order_closed", "error", err)
		}
	}
	return nil
}

// CancelOrder отменяет заказ. Ответ «уже отменён» считается успехом.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64) error {
	if e.actions == nil {
		return ErrActionsDisabled
	}

	e.store.Remove(orderID)

	if err := e.actions.CancelOrder(ctx, orderID); err != nil {
		return e.actionFailed(orderID, "cancel order", err)
	}

	telemetry.WithOrderID(e.logger, orderID).Info("order cancelled")
	return nil
}

// actionFailed запускает реконсиляцию: сервер — источник истины,
// локальный патч мог разойтись с ним.
func (e *Engine) actionFailed(orderID int64, action string, err error) error {
	telemetry.WithOrderID(e.logger, orderID).Warn("order action failed, scheduling reconciliation",
		"action", action,
		"error", err,
	)
	e.Trigger(RefreshOptions{Retry: true, Force: true, Trigger: TriggerAction})
	return fmt.Errorf("%s: %w", action, err)
}
