package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"promobot/internal/advertise"
	"promobot/internal/state"
	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

type fakeRunner struct {
	calls   []string
	results []func() (advertise.SessionResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, tenantKey string, opts advertise.Options) (advertise.SessionResult, error) {
	f.calls = append(f.calls, tenantKey)
	if opts.DryRun || opts.AutoScheduleIfThrottled {
		return advertise.SessionResult{}, errors.New("scheduled runs must be real and must not auto-schedule")
	}
	if len(f.results) == 0 {
		return advertise.SessionResult{Status: advertise.StatusOK}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next()
}

func newTestRuntime(t *testing.T, runner SessionRunner, at time.Time) (*Runtime, *state.Repo) {
	t.Helper()
	repo := state.NewRepo(storage.NewMemory(), logx.Nop())
	rt := New(repo, runner, nil, logx.Nop(), Config{RetryDelay: 50 * time.Millisecond})
	rt.now = func() time.Time { return at }
	return rt, repo
}

func TestCreateAndTickSuccess(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	runner := &fakeRunner{}
	rt, repo := newTestRuntime(t, runner, now)
	ctx := context.Background()

	sched, err := rt.Create(ctx, "club", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sched.Reason != state.ReasonManual {
		t.Fatalf("Reason = %q", sched.Reason)
	}
	if sched.WhenMs != now.UnixMilli() {
		t.Fatalf("WhenMs = %d, want immediate", sched.WhenMs)
	}

	rt.Tick(ctx)
	if len(runner.calls) != 1 || runner.calls[0] != "club" {
		t.Fatalf("runner calls = %v", runner.calls)
	}
	scheds, err := repo.Schedules(ctx)
	if err != nil {
		t.Fatalf("Schedules: %v", err)
	}
	if len(scheds) != 0 {
		t.Fatalf("completed entry not removed: %v", scheds)
	}
}

func TestTickSkipsNotDue(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	runner := &fakeRunner{}
	rt, repo := newTestRuntime(t, runner, now)
	ctx := context.Background()

	future, err := rt.Create(ctx, "club", now.Add(time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rt.Tick(ctx)
	if len(runner.calls) != 0 {
		t.Fatalf("not-due entry executed: %v", runner.calls)
	}
	scheds, _ := repo.Schedules(ctx)
	if len(scheds) != 1 || scheds[0].ID != future.ID || scheds[0].AttemptCount != 0 {
		t.Fatalf("not-due entry modified: %v", scheds)
	}
}

func TestTickRetriesFailureThenSucceeds(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	runner := &fakeRunner{results: []func() (advertise.SessionResult, error){
		func() (advertise.SessionResult, error) {
			return advertise.SessionResult{}, errors.New("publish exploded")
		},
	}}
	rt, repo := newTestRuntime(t, runner, now)
	ctx := context.Background()

	if _, err := rt.Create(ctx, "club", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rt.Tick(ctx)
	scheds, _ := repo.Schedules(ctx)
	if len(scheds) != 1 {
		t.Fatalf("failed entry must survive, got %v", scheds)
	}
	e := scheds[0]
	if e.AttemptCount != 1 {
		t.Fatalf("AttemptCount = %d, want 1", e.AttemptCount)
	}
	if e.LastError != "publish exploded" {
		t.Fatalf("LastError = %q", e.LastError)
	}
	if want := now.UnixMilli() + 50; e.WhenMs < want {
		t.Fatalf("WhenMs = %d, want >= %d", e.WhenMs, want)
	}

	// Not due yet at the same instant: a second tick must not rerun it.
	rt.Tick(ctx)
	if len(runner.calls) != 1 {
		t.Fatalf("requeued entry ran before its due time: %v", runner.calls)
	}

	// Past the retry delay it runs again and completes.
	rt.now = func() time.Time { return now.Add(time.Second) }
	rt.Tick(ctx)
	if len(runner.calls) != 2 {
		t.Fatalf("runner calls = %v", runner.calls)
	}
	scheds, _ = repo.Schedules(ctx)
	if len(scheds) != 0 {
		t.Fatalf("completed entry not removed: %v", scheds)
	}
}

func TestTickThrottledCountsAsFailure(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	until := now.Add(3 * time.Hour).UnixMilli()
	runner := &fakeRunner{results: []func() (advertise.SessionResult, error){
		func() (advertise.SessionResult, error) {
			return advertise.SessionResult{Status: advertise.StatusThrottled, ThrottleUntil: until}, nil
		},
	}}
	rt, repo := newTestRuntime(t, runner, now)
	ctx := context.Background()

	if _, err := rt.Create(ctx, "club", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rt.Tick(ctx)

	scheds, _ := repo.Schedules(ctx)
	if len(scheds) != 1 {
		t.Fatalf("throttled entry must be requeued, got %v", scheds)
	}
	if scheds[0].AttemptCount != 1 || scheds[0].LastError == "" {
		t.Fatalf("entry = %+v", scheds[0])
	}
}
