package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"promobot/internal/advertise"
	"promobot/internal/eventbus"
	"promobot/internal/state"
	logx "promobot/pkg/logx"
)

// SessionRunner is the slice of the orchestrator the runtime needs.
type SessionRunner interface {
	Run(ctx context.Context, tenantKey string, opts advertise.Options) (advertise.SessionResult, error)
}

type Config struct {
	// Tick is the poll interval for due entries.
	Tick time.Duration
	// RetryDelay is the fixed delay before a failed entry becomes due again.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = time.Minute
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Minute
	}
	return c
}

// Runtime is the periodic driver for durable schedule entries.
type Runtime struct {
	repo   *state.Repo
	runner SessionRunner
	bus    eventbus.Bus
	log    logx.Logger
	cfg    Config

	// tickMu serializes ticks within the process; overlapping ticks would
	// race on the schedules document.
	tickMu sync.Mutex

	mu sync.Mutex
	c  *cron.Cron

	now func() time.Time
}

func New(repo *state.Repo, runner SessionRunner, bus eventbus.Bus, log logx.Logger, cfg Config) *Runtime {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runtime{
		repo:   repo,
		runner: runner,
		bus:    bus,
		log:    log,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	c := cron.New()
	spec := "@every " + r.cfg.Tick.String()
	if _, err := c.AddFunc(spec, func() { r.Tick(ctx) }); err != nil {
		return fmt.Errorf("register schedule tick: %w", err)
	}
	c.Start()
	r.c = c
	r.log.Info("schedule runtime started",
		logx.Duration("tick", r.cfg.Tick), logx.Duration("retry_delay", r.cfg.RetryDelay))
	return nil
}

func (r *Runtime) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	r.log.Info("schedule runtime stopped")
}

// Create adds a manual schedule entry due at whenMs.
func (r *Runtime) Create(ctx context.Context, tenantKey string, whenMs int64) (state.Schedule, error) {
	now := r.now()
	if whenMs <= 0 {
		whenMs = now.UnixMilli()
	}
	sched := state.Schedule{
		ID:        state.NewScheduleID(now),
		TenantKey: tenantKey,
		WhenMs:    whenMs,
		Reason:    state.ReasonManual,
		CreatedMs: now.UnixMilli(),
	}
	if err := r.repo.AddSchedule(ctx, sched); err != nil {
		return state.Schedule{}, err
	}
	r.publish(eventbus.TypeScheduleCreated, sched)
	return sched, nil
}

// Tick processes every due entry once. Entries not yet due are left untouched;
// due-time comparison is idempotent, so skipped or delayed ticks are harmless.
func (r *Runtime) Tick(ctx context.Context) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	entries, err := r.repo.Schedules(ctx)
	if err != nil {
		r.log.Error("failed to load schedules", logx.Err(err))
		return
	}
	nowMs := r.now().UnixMilli()
	for _, e := range entries {
		if e.WhenMs > nowMs {
			continue
		}
		r.execute(ctx, e)
	}
}

func (r *Runtime) execute(ctx context.Context, e state.Schedule) {
	log := r.log.With(logx.String("schedule", e.ID), logx.String("tenant", e.TenantKey))
	log.Info("schedule due, running session", logx.Int("attempt", e.AttemptCount+1))

	// A scheduled retry must never spawn another throttle-schedule; the
	// runtime itself owns the retry loop.
	res, err := r.runner.Run(ctx, e.TenantKey, advertise.Options{
		DryRun:                  false,
		AutoScheduleIfThrottled: false,
	})

	exec := ExecResult{OK: err == nil && res.Status == advertise.StatusOK}
	switch {
	case err != nil:
		exec.Err = err.Error()
	case res.Status == advertise.StatusThrottled:
		exec.Err = fmt.Sprintf("tenant throttled until %s", time.UnixMilli(res.ThrottleUntil).UTC().Format(time.RFC3339))
	}

	next, st := Next(e, exec, r.now(), r.cfg.RetryDelay)
	switch st {
	case Done:
		if err := r.repo.DeleteSchedule(ctx, e.ID); err != nil {
			log.Error("failed to delete completed schedule", logx.Err(err))
			return
		}
		r.publish(eventbus.TypeScheduleDone, e)
		log.Info("schedule completed")
	case Pending:
		if err := r.repo.UpdateSchedule(ctx, next); err != nil {
			log.Error("failed to requeue schedule", logx.Err(err))
			return
		}
		r.publish(eventbus.TypeScheduleRetried, next)
		log.Warn("schedule failed, requeued",
			logx.String("last_error", next.LastError),
			logx.Int("attempts", next.AttemptCount),
			logx.Time("next_due", time.UnixMilli(next.WhenMs)))
	}
}

func (r *Runtime) publish(typ string, data any) {
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
