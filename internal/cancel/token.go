package cancel

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCancelled — операция прервана сигналом токена.
var ErrCancelled = errors.New("operation cancelled")

// Token — одноразовый сигнал отмены.
//
// Токен создаётся на каждый запуск цикла (fetch cycle, сборка отчёта).
// Все запросы цикла выполняются с Context() токена, все задержки — через WaitFor.
// Однажды поданный сигнал не снимается.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc

	// mu сериализует Signal и Commit: после возврата Signal ни один Commit
	// не выполняется и не начнётся.
	mu       sync.Mutex
	signaled bool
}

// New создаёт токен, производный от parent.
// Отмена parent считается сигналом токена.
func New(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Token{
		ctx:    ctx,
		cancel: func() { cancel(ErrCancelled) },
	}
}

// Signal помечает токен как отменённый. Идемпотентен.
func (t *Token) Signal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.signaled = true
	t.cancel()
}

// IsSignaled возвращает true, если токен отменён (в том числе через parent).
func (t *Token) IsSignaled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.signaledLocked()
}

func (t *Token) signaledLocked() bool {
	return t.signaled || t.ctx.Err() != nil
}

// Context возвращает контекст, который отменяется вместе с токеном.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Done возвращает канал, закрывающийся при сигнале.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Err возвращает ErrCancelled, если токен отменён, иначе nil.
func (t *Token) Err() error {
	if t.IsSignaled() {
		return ErrCancelled
	}
	return nil
}

// WaitFor приостанавливает вызывающего на d.
// Возвращает ErrCancelled, если токен отменён раньше.
func (t *Token) WaitFor(d time.Duration) error {
	return Sleep(t.ctx, d)
}

// Commit выполняет fn, только если токен не отменён.
// Проверка и выполнение атомарны относительно Signal.
func (t *Token) Commit(fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.signaledLocked() {
		return false
	}
	fn()
	return true
}

// Sleep ждёт d с учётом контекста.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrCancelled
	}
}

// IsCancellation проверяет, является ли ошибка отменой.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
