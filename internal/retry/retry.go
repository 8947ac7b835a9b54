package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/shaiso/Liveboard/internal/cancel"
)

// OrderCycleDelays — расписание задержек для цикла заказов и отчёта по водителям.
var OrderCycleDelays = []time.Duration{800 * time.Millisecond, 2 * time.Second}

// Class — класс ошибки для решения о повторе.
type Class int

const (
	// ClassPermanent — повтор бессмысленен (4xx, ошибка декодирования и т.п.).
	ClassPermanent Class = iota

	// ClassTransient — сетевой сбой или 5xx, можно повторить.
	ClassTransient

	// ClassCancellation — операция отменена, повтор запрещён.
	ClassCancellation
)

// String возвращает имя класса для логов и метрик.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassCancellation:
		return "cancellation"
	default:
		return "permanent"
	}
}

// StatusCoder — ошибка с HTTP-кодом ответа.
type StatusCoder interface {
	StatusCode() int
}

// Transienter — ошибка, которая сама знает, временная ли она.
type Transienter interface {
	Transient() bool
}

// Classify определяет класс ошибки.
//
//   - отмена → ClassCancellation
//   - код >= 500 → ClassTransient, код 400..499 → ClassPermanent
//   - сетевые ошибки → ClassTransient
//   - остальное → ClassPermanent
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}
	if cancel.IsCancellation(err) {
		return ClassCancellation
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if sc.StatusCode() >= 500 {
			return ClassTransient
		}
		return ClassPermanent
	}

	var tr Transienter
	if errors.As(err, &tr) {
		if tr.Transient() {
			return ClassTransient
		}
		return ClassPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	return ClassPermanent
}

// Policy — политика повторов с фиксированным расписанием задержек.
type Policy struct {
	// Delays — задержки перед 2-й, 3-й, ... попытками.
	// Попыток всего len(Delays)+1.
	Delays []time.Duration

	// Classify — классификатор ошибок (default: Classify).
	Classify func(error) Class

	// Sleep — ожидание между попытками (default: cancel.Sleep).
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry вызывается перед каждой задержкой (опционально).
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default возвращает политику цикла заказов.
func Default() Policy {
	return Policy{Delays: OrderCycleDelays}
}

// None возвращает политику без повторов.
func None() Policy {
	return Policy{}
}

// Do выполняет task с повторами согласно политике.
//
// Отмена и постоянные ошибки возвращаются сразу. Временные ошибки повторяются,
// пока не исчерпано расписание; затем возвращается последняя ошибка.
func Do[T any](ctx context.Context, p Policy, task func(ctx context.Context) (T, error)) (T, error) {
	classify := p.Classify
	if classify == nil {
		classify = Classify
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = cancel.Sleep
	}

	var zero T
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return zero, cancel.ErrCancelled
		}

		result, err := task(ctx)
		if err == nil {
			return result, nil
		}

		// Проверяем, можно ли делать retry
		if classify(err) != ClassTransient || attempt >= len(p.Delays) {
			return zero, err
		}

		delay := p.Delays[attempt]
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		// Ждём с учётом context
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}
