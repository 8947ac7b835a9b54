package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/orders"
)

// --- Debouncer Tests ---

func TestDebouncer_AbsorbsBurst(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	if !d.Signal() {
		t.Fatal("first signal should schedule")
	}
	if !d.Pending() {
		t.Error("timer should be pending after the first signal")
	}
	for range 5 {
		if d.Signal() {
			t.Error("signal before firing should be absorbed")
		}
	}

	time.Sleep(80 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("expected exactly 1 firing, got %d", n)
	}
	if d.Pending() {
		t.Error("nothing should be pending after firing")
	}

	// После срабатывания новый сигнал снова планирует вызов
	if !d.Signal() {
		t.Error("signal after firing should schedule again")
	}
}

func TestDebouncer_NoReset(t *testing.T) {
	fired := make(chan time.Time, 1)
	d := NewDebouncer(60*time.Millisecond, func() { fired <- time.Now() })
	defer d.Stop()

	start := time.Now()
	d.Signal()
	time.Sleep(40 * time.Millisecond)
	d.Signal() // не сбрасывает таймер

	at := <-fired
	if elapsed := at.Sub(start); elapsed > 95*time.Millisecond {
		t.Errorf("timer was reset: fired after %v", elapsed)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })

	d.Signal()
	d.Stop()
	time.Sleep(50 * time.Millisecond)

	if fired.Load() != 0 {
		t.Error("stopped debouncer must not fire")
	}
	if d.Signal() {
		t.Error("stopped debouncer must ignore signals")
	}
}

// --- Router Tests ---

type fakeRefresher struct {
	mu     sync.Mutex
	calls  []orders.RefreshOptions
	onCall func()
}

func (f *fakeRefresher) Trigger(opts orders.RefreshOptions) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRefresher) last() orders.RefreshOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func seededStore(ids ...int64) *orders.Store {
	s := orders.NewStore()
	s.Update(func([]domain.Order) []domain.Order {
		out := make([]domain.Order, 0, len(ids))
		for _, id := range ids {
			out = append(out, domain.Order{ID: id, Status: domain.OrderStatusConfirmed})
		}
		return out
	})
	return s
}

func TestRouter_OrderClosedRemovesBeforeReconciliation(t *testing.T) {
	store := seededStore(41, 42)

	var presentAtRefresh atomic.Bool
	presentAtRefresh.Store(true)

	ref := &fakeRefresher{}
	ref.onCall = func() {
		_, ok := store.Get(42)
		presentAtRefresh.Store(ok)
	}

	r := NewRouter(RouterConfig{Refresher: ref, Remover: store, Debounce: 20 * time.Millisecond})
	defer r.Close()

	r.Handle(Event{Name: OrderClosed, OrderID: 42, Source: "test"})

	// Удаление синхронное, цикл ещё не запущен
	if _, ok := store.Get(42); ok {
		t.Fatal("order 42 should be removed immediately")
	}
	if ref.count() != 0 {
		t.Fatal("reconciliation must be debounced")
	}

	waitUntil(t, func() bool { return ref.count() == 1 })

	if presentAtRefresh.Load() {
		t.Error("order 42 was still published when reconciliation started")
	}
	if _, ok := store.Get(41); !ok {
		t.Error("other orders must stay")
	}

	opts := ref.last()
	if !opts.Retry || opts.Trigger != orders.TriggerPush {
		t.Errorf("debounced cycle should retry, got %+v", opts)
	}
	if opts.Force || !opts.Coalesce {
		t.Errorf("debounced cycle must wait for a running cycle, got %+v", opts)
	}
}

func TestRouter_BurstCoalesced(t *testing.T) {
	ref := &fakeRefresher{}
	r := NewRouter(RouterConfig{Refresher: ref, Remover: seededStore(), Debounce: 20 * time.Millisecond})
	defer r.Close()

	for range 10 {
		r.Handle(Event{Name: OrdersUpdated, Source: "test"})
	}

	waitUntil(t, func() bool { return ref.count() == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := ref.count(); n != 1 {
		t.Errorf("burst should trigger one cycle, got %d", n)
	}
}

func TestRouter_ConnectReconcilesAfterDelay(t *testing.T) {
	ref := &fakeRefresher{}
	r := NewRouter(RouterConfig{Refresher: ref, Remover: seededStore(), ConnectDelay: 30 * time.Millisecond})
	defer r.Close()

	r.Handle(Event{Name: Connect, Source: "test"})
	if ref.count() != 0 {
		t.Fatal("connect reconciliation should be delayed")
	}

	waitUntil(t, func() bool { return ref.count() == 1 })
	if ref.last().Trigger != orders.TriggerConnect {
		t.Errorf("expected connect trigger, got %+v", ref.last())
	}
	if ref.last().Force {
		t.Error("connect reconciliation must not cancel a running cycle")
	}
}

// fakeSource отдаёт заранее заданные события и ждёт отмены.
type fakeSource struct {
	events []Event
	closed atomic.Bool
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Run(ctx context.Context, handle Handler) error {
	for _, ev := range f.events {
		handle(ev)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

func TestRouter_RunDeliversAndCloses(t *testing.T) {
	store := seededStore(7)
	ref := &fakeRefresher{}
	r := NewRouter(RouterConfig{Refresher: ref, Remover: store, Debounce: 10 * time.Millisecond})
	defer r.Close()

	src := &fakeSource{events: []Event{{Name: OrderClosed, OrderID: 7, Source: "fake"}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, src) }()

	waitUntil(t, func() bool { return ref.count() == 1 })
	if _, ok := store.Get(7); ok {
		t.Error("order 7 should be removed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run should return nil on cancel, got %v", err)
	}
	if !src.closed.Load() {
		t.Error("source should be closed")
	}
}

// --- Decode Tests ---

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		want    Event
		wantErr error
	}{
		{"orders updated", "orders_updated", "", Event{Name: OrdersUpdated, Source: "t"}, nil},
		{"closed numeric", "order_closed", `{"orderId": 42}`, Event{Name: OrderClosed, OrderID: 42, Source: "t"}, nil},
		{"closed string", "order_closed", `{"orderId": "42"}`, Event{Name: OrderClosed, OrderID: 42, Source: "t"}, nil},
		{"closed snake", "ORDER_CLOSED", `{"order_id": 7}`, Event{Name: OrderClosed, OrderID: 7, Source: "t"}, nil},
		{"closed without id", "order_closed", `{}`, Event{}, ErrInvalidPayload},
		{"closed bad json", "order_closed", `{`, Event{}, ErrInvalidPayload},
		{"unknown", "kitchen_ready", "", Event{}, ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode("t", tt.event, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
