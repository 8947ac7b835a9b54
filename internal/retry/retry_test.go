package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/shaiso/Liveboard/internal/cancel"
)

// statusError — ошибка с HTTP-кодом для тестов.
type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("HTTP %d", int(e)) }
func (e statusError) StatusCode() int { return int(e) }

// recordingSleep считает задержки без реального ожидания.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestDo_TransientTwiceThenSuccess(t *testing.T) {
	var delays []time.Duration
	p := Policy{Delays: OrderCycleDelays, Sleep: recordingSleep(&delays)}

	calls := 0
	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", statusError(503)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("expected exactly 2 delays, got %d", len(delays))
	}
	if delays[0] != 800*time.Millisecond || delays[1] != 2*time.Second {
		t.Errorf("unexpected delay schedule: %v", delays)
	}
}

func TestDo_ClientErrorFailsImmediately(t *testing.T) {
	var delays []time.Duration
	p := Policy{Delays: OrderCycleDelays, Sleep: recordingSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, statusError(404)
	})

	var sc StatusCoder
	if !errors.As(err, &sc) || sc.StatusCode() != 404 {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected zero delays, got %d", len(delays))
	}
}

func TestDo_ScheduleExhausted(t *testing.T) {
	var delays []time.Duration
	p := Policy{Delays: OrderCycleDelays, Sleep: recordingSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, statusError(500 + calls)
	})

	// Возвращается последняя ошибка
	var sc StatusCoder
	if !errors.As(err, &sc) || sc.StatusCode() != 503 {
		t.Fatalf("expected last error (503), got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_CancellationIsNotRetried(t *testing.T) {
	var delays []time.Duration
	p := Policy{Delays: OrderCycleDelays, Sleep: recordingSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, cancel.ErrCancelled
	})
	if !cancel.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Errorf("cancellation must not be retried: calls=%d delays=%d", calls, len(delays))
	}
}

func TestDo_DelayInterruptedByToken(t *testing.T) {
	tok := cancel.New(context.Background())
	p := Policy{Delays: []time.Duration{time.Minute}}

	go func() {
		time.Sleep(10 * time.Millisecond)
		tok.Signal()
	}()

	start := time.Now()
	_, err := Do(tok.Context(), p, func(context.Context) (int, error) {
		return 0, statusError(502)
	})
	if !cancel.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("delay should be interrupted by token")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"cancelled", cancel.ErrCancelled, ClassCancellation},
		{"context cancelled", context.Canceled, ClassCancellation},
		{"5xx", statusError(500), ClassTransient},
		{"wrapped 5xx", fmt.Errorf("list orders: %w", statusError(503)), ClassTransient},
		{"4xx", statusError(400), ClassPermanent},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, ClassTransient},
		{"plain", errors.New("decode"), ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
