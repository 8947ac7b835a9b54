package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/orders"
	"github.com/shaiso/Liveboard/internal/report"
)

type fakeBuilder struct {
	mu     sync.Mutex
	ranges []report.DateRange
	err    error
}

func (b *fakeBuilder) Build(ctx context.Context, driverIDs []int64, r report.DateRange) (*domain.DriverReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ranges = append(b.ranges, r)
	if errors.Is(b.err, report.ErrSuperseded) {
		return nil, b.err
	}
	return &domain.DriverReport{ID: uuid.New(), From: r.From, To: r.To}, b.err
}

type fakeRefresher struct {
	opts []orders.RefreshOptions
}

func (r *fakeRefresher) Trigger(opts orders.RefreshOptions) {
	r.opts = append(r.opts, opts)
}

type fakeLeader struct {
	ok  bool
	err error
}

func (l fakeLeader) TryAcquire(ctx context.Context) (bool, error) {
	return l.ok, l.err
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"55 23 * * *", false},
		{"*/5 * * * *", false},
		{"@daily", false},
		{"* * * * * *", true},
		{"not a cron", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCronExpr(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNextRun_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	from := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC) // 23:00 по UTC+5

	next, err := NextRun("55 23 * * *", loc, from)
	if err != nil {
		t.Fatalf("NextRun() error = %v", err)
	}

	want := time.Date(2024, 1, 1, 23, 55, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextRun() = %v, want %v", next, want)
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{Reports: &fakeBuilder{}, ReportCron: "bad"})
	if err == nil {
		t.Error("expected error for invalid report cron")
	}

	_, err = New(Config{Timezone: "Mars/Olympus"})
	if err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestRunReport_UsesScheduleDay(t *testing.T) {
	builder := &fakeBuilder{}
	s, err := New(Config{
		Reports:    builder,
		ReportCron: "55 23 * * *",
		Timezone:   "UTC",
		Now: func() time.Time {
			// 22:30 UTC: по расписанию ещё 1 января
			return time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.RunReport(context.Background())

	if len(builder.ranges) != 1 {
		t.Fatalf("Build called %d times, want 1", len(builder.ranges))
	}
	if got := builder.ranges[0]; got.From != "2024-01-01" || got.To != "2024-01-01" {
		t.Errorf("range = %+v, want 2024-01-01", got)
	}
}

func TestRunReport_Leadership(t *testing.T) {
	tests := []struct {
		name      string
		leader    Leader
		wantBuild bool
	}{
		{"no leader configured", nil, true},
		{"leader", fakeLeader{ok: true}, true},
		{"follower", fakeLeader{ok: false}, false},
		{"lock error", fakeLeader{err: errors.New("db down")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := &fakeBuilder{}
			s, err := New(Config{Reports: builder, ReportCron: "@daily", Leader: tt.leader})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			s.RunReport(context.Background())

			if got := len(builder.ranges) == 1; got != tt.wantBuild {
				t.Errorf("built = %v, want %v", got, tt.wantBuild)
			}
		})
	}
}

func TestRunReport_Superseded(t *testing.T) {
	builder := &fakeBuilder{err: report.ErrSuperseded}
	s, err := New(Config{Reports: builder, ReportCron: "@daily"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Не должен паниковать на nil-отчёте
	s.RunReport(context.Background())
}

func TestRunRefresh(t *testing.T) {
	refresher := &fakeRefresher{}
	s, err := New(Config{Refresher: refresher, RefreshCron: "*/5 * * * *"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.RunRefresh()

	if len(refresher.opts) != 1 {
		t.Fatalf("Trigger called %d times, want 1", len(refresher.opts))
	}
	got := refresher.opts[0]
	if !got.Force || !got.Retry || got.Trigger != orders.TriggerSchedule {
		t.Errorf("opts = %+v", got)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{
		Reports:     &fakeBuilder{},
		ReportCron:  "@daily",
		Refresher:   &fakeRefresher{},
		RefreshCron: "@hourly",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Errorf("entries = %d, want 2", n)
	}
	s.Stop()
}
