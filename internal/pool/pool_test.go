package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Liveboard/internal/cancel"
)

func TestRun_RespectsLimitAndVisitsEachItemOnce(t *testing.T) {
	for _, tc := range []struct {
		items int
		limit int
	}{
		{0, 1}, {1, 1}, {5, 1}, {10, 3}, {3, 10}, {50, 6},
	} {
		items := make([]int, tc.items)
		for i := range items {
			items[i] = i
		}

		var inFlight, maxInFlight atomic.Int32
		var mu sync.Mutex
		visits := make(map[int]int)

		results, err := Run(context.Background(), items, tc.limit, func(_ context.Context, item int) (int, error) {
			n := inFlight.Add(1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)

			mu.Lock()
			visits[item]++
			mu.Unlock()
			return item * 2, nil
		})
		if err != nil {
			t.Fatalf("items=%d limit=%d: unexpected error: %v", tc.items, tc.limit, err)
		}

		if got := int(maxInFlight.Load()); got > tc.limit {
			t.Errorf("items=%d limit=%d: %d concurrent calls", tc.items, tc.limit, got)
		}
		if len(results) != tc.items {
			t.Errorf("items=%d limit=%d: expected %d results, got %d", tc.items, tc.limit, tc.items, len(results))
		}
		for i := range items {
			if visits[i] != 1 {
				t.Errorf("items=%d limit=%d: item %d visited %d times", tc.items, tc.limit, i, visits[i])
			}
		}
		// Результаты в порядке items
		for i, r := range results {
			if r != i*2 {
				t.Errorf("result %d: expected %d, got %d", i, i*2, r)
			}
		}
	}
}

func TestRun_DropsFailures(t *testing.T) {
	items := []int{1, 2, 3, 4}

	results, err := Run(context.Background(), items, 2, func(_ context.Context, item int) (int, error) {
		if item%2 == 0 {
			return 0, errors.New("boom")
		}
		return item, nil
	})
	if err != nil {
		t.Fatalf("failures must not fail the run: %v", err)
	}
	if len(results) != 2 || results[0] != 1 || results[1] != 3 {
		t.Errorf("expected [1 3], got %v", results)
	}
}

func TestRun_CancellationFailsFast(t *testing.T) {
	items := make([]int, 20)
	var calls atomic.Int32

	_, err := Run(context.Background(), items, 2, func(_ context.Context, _ int) (int, error) {
		if calls.Add(1) == 3 {
			return 0, cancel.ErrCancelled
		}
		time.Sleep(time.Millisecond)
		return 1, nil
	})
	if !cancel.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls.Load() >= int32(len(items)) {
		t.Errorf("run should stop early, got %d calls", calls.Load())
	}
}

func TestRun_TokenSignaledMidway(t *testing.T) {
	tok := cancel.New(context.Background())
	items := make([]int, 10)

	_, err := Run(tok.Context(), items, 1, func(ctx context.Context, _ int) (int, error) {
		tok.Signal()
		if err := cancel.Sleep(ctx, time.Second); err != nil {
			return 0, err
		}
		return 1, nil
	})
	if !cancel.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestRunTasks_Hooks(t *testing.T) {
	var mu sync.Mutex
	var successes []string
	var failures int

	tasks := []Task[string]{
		{
			Work:      func(context.Context) (string, error) { return "a", nil },
			OnSuccess: func(s string) { mu.Lock(); successes = append(successes, s); mu.Unlock() },
		},
		{
			Work:      func(context.Context) (string, error) { return "", errors.New("boom") },
			OnFailure: func(error) { mu.Lock(); failures++; mu.Unlock() },
		},
	}

	results, err := RunTasks(context.Background(), tasks, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0] != "a" {
		t.Errorf("expected [a], got %v", results)
	}
	if len(successes) != 1 || failures != 1 {
		t.Errorf("expected 1 success and 1 failure hook call, got %d/%d", len(successes), failures)
	}
}
