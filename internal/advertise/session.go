package advertise

import (
	"context"
	"fmt"
	"strings"
	"time"

	"promobot/internal/eventbus"
	"promobot/internal/notifier"
	"promobot/internal/reddit"
	"promobot/internal/state"
	logx "promobot/pkg/logx"
)

type Config struct {
	// Window overrides the tenant throttle window. Zero means ThrottleWindow.
	Window time.Duration
	// ErrorPause is the fixed delay after a failed target before moving on.
	ErrorPause time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = ThrottleWindow
	}
	if c.ErrorPause <= 0 {
		c.ErrorPause = 2 * time.Second
	}
	return c
}

// Runner drives one tenant's publishing session.
type Runner struct {
	repo   *state.Repo
	client reddit.Client
	sink   notifier.Sink
	bus    eventbus.Bus
	log    logx.Logger
	cfg    Config

	// test hooks
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewRunner(repo *state.Repo, client reddit.Client, sink notifier.Sink, bus eventbus.Bus, log logx.Logger, cfg Config) *Runner {
	if sink == nil {
		sink = notifier.NopSink{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		repo:   repo,
		client: client,
		sink:   sink,
		bus:    bus,
		log:    log,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Run executes one publishing session for the tenant.
//
// A throttled tenant returns (status=throttled, throttleUntil) without any
// per-target processing; throttling is a scheduling signal, not an event worth
// notifying about. Configuration problems (unknown tenant, failed credential
// fetch on a real run) are fatal and abort the whole session. Everything per
// target is recorded and skipped over.
func (r *Runner) Run(ctx context.Context, tenantKey string, opts Options) (SessionResult, error) {
	tenant, ok, err := r.repo.Tenant(ctx, tenantKey)
	if err != nil {
		return SessionResult{}, err
	}
	if !ok {
		return SessionResult{}, fmt.Errorf("tenant %q: %w", tenantKey, state.ErrTenantNotFound)
	}

	start := r.now()
	log := r.log.With(logx.String("tenant", tenantKey))

	eligible, until := EvaluateThrottle(tenant.LastPublishAt, start, r.cfg.Window)
	if !eligible {
		res := SessionResult{Status: StatusThrottled, ThrottleUntil: until}
		if opts.AutoScheduleIfThrottled {
			sched := state.Schedule{
				ID:        state.NewScheduleID(start),
				TenantKey: tenantKey,
				WhenMs:    until,
				Reason:    state.ReasonThrottled,
				CreatedMs: start.UnixMilli(),
			}
			if err := r.repo.AddSchedule(ctx, sched); err != nil {
				return SessionResult{}, fmt.Errorf("auto-schedule: %w", err)
			}
			res.Scheduled = &sched
			r.publish(eventbus.TypeScheduleCreated, sched)
			log.Info("tenant throttled, retry scheduled",
				logx.Time("until", time.UnixMilli(until)), logx.String("schedule", sched.ID))
		} else {
			log.Debug("tenant throttled", logx.Time("until", time.UnixMilli(until)))
		}
		return res, nil
	}

	var cred reddit.Credential
	if !opts.DryRun {
		cred, err = r.client.Authenticate(ctx)
		if err != nil {
			return SessionResult{}, fmt.Errorf("obtain credential: %w", err)
		}
	}

	targets, err := r.repo.Targets(ctx, tenantKey)
	if err != nil {
		return SessionResult{}, err
	}
	cooldowns, err := r.repo.Cooldowns(ctx, tenantKey)
	if err != nil {
		return SessionResult{}, err
	}

	res := SessionResult{Status: StatusOK}
	for _, target := range targets {
		res.Results = append(res.Results, r.runTarget(ctx, cred, tenant, target, cooldowns, opts))
		if last := res.Results[len(res.Results)-1]; last.Kind == OutcomePosted {
			res.Posted++
		}
	}

	if !opts.DryRun && res.Posted > 0 {
		if err := r.repo.SetLastPublishAt(ctx, tenantKey, r.now().UnixMilli()); err != nil {
			// The posts went out; a failed stamp is logged, not fatal.
			log.Error("failed to stamp last publish time", logx.Err(err))
		}
	}

	r.publish(eventbus.TypeSessionFinished, res)
	r.sink.Notify(notifier.Event{
		Kind:      notifier.KindSessionSummary,
		TenantKey: tenantKey,
		Key:       "session:" + tenantKey,
		Text:      summaryText(tenant, res, opts),
	})
	log.Info("session finished",
		logx.Int("targets", len(res.Results)), logx.Int("posted", res.Posted), logx.Bool("dry_run", opts.DryRun))
	return res, nil
}

func (r *Runner) runTarget(ctx context.Context, cred reddit.Credential, tenant state.Tenant, target state.Target, cooldowns map[string]int64, opts Options) Outcome {
	log := r.log.With(logx.String("tenant", tenant.Key), logx.String("target", target.Key))

	wait := CooldownWait(target.Rules.CadenceDays, cooldowns[target.Key], r.now())
	if wait > 0 {
		return Outcome{Target: target.Key, Kind: OutcomeSkipCooldown, WaitHours: WaitHours(wait)}
	}

	post := MergeContent(target, tenant.Defaults)
	if violations := ValidatePost(post, target.Rules); len(violations) > 0 {
		log.Warn("target content invalid", logx.String("rules", strings.Join(violations, ",")))
		return Outcome{Target: target.Key, Kind: OutcomeInvalid, Violations: violations}
	}

	if opts.DryRun {
		return Outcome{Target: target.Key, Kind: OutcomeDryRunOK, Content: &post}
	}

	now := r.now()
	sub, err := r.client.Publish(ctx, cred, post)
	if err != nil {
		log.Warn("publish failed", logx.Err(err))
		r.sleep(ctx, r.cfg.ErrorPause)
		return Outcome{Target: target.Key, Kind: OutcomeError, Error: err.Error()}
	}

	if sub.ID == "" || sub.Permalink == "" {
		// Some submit responses omit the new item. Best-effort recovery from
		// the account's recent submissions; a miss leaves the fields empty.
		if found, lerr := r.client.LookupRecent(ctx, target.Key, post.Title, now.UnixMilli()-60_000); lerr == nil && found != nil {
			if sub.ID == "" {
				sub.ID = found.ID
			}
			if sub.Permalink == "" {
				sub.Permalink = found.Permalink
			}
		}
	}

	if err := r.repo.SetCooldown(ctx, tenant.Key, target.Key, now.UnixMilli()); err != nil {
		log.Error("failed to record cooldown", logx.Err(err))
	}
	rec := state.PostedRecord{
		ID:        sub.ID,
		TargetKey: target.Key,
		TenantKey: tenant.Key,
		Permalink: sub.Permalink,
		CreatedAt: now.Unix(),
		Status:    state.StatusLive,
	}
	if err := r.repo.AppendPosted(ctx, rec); err != nil {
		log.Error("failed to append posted record", logx.Err(err))
	}
	log.Info("posted", logx.String("id", sub.ID))
	return Outcome{Target: target.Key, Kind: OutcomePosted, PostID: sub.ID, Permalink: sub.Permalink}
}

func (r *Runner) publish(typ string, data any) {
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

// summaryText renders the end-of-session operator message: aggregate counts
// plus non-success detail. Raw posted entries are deliberately excluded.
func summaryText(tenant state.Tenant, res SessionResult, opts Options) string {
	counts := map[OutcomeKind]int{}
	for _, o := range res.Results {
		counts[o.Kind]++
	}

	name := tenant.DisplayName
	if name == "" {
		name = tenant.Key
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Session for %s", name)
	if opts.DryRun {
		b.WriteString(" (dry run)")
	}
	fmt.Fprintf(&b, ": %d targets", len(res.Results))
	for _, k := range []OutcomeKind{OutcomePosted, OutcomeDryRunOK, OutcomeSkipCooldown, OutcomeInvalid, OutcomeError} {
		if n := counts[k]; n > 0 {
			fmt.Fprintf(&b, ", %s=%d", k, n)
		}
	}
	for _, o := range res.Results {
		switch o.Kind {
		case OutcomeSkipCooldown:
			fmt.Fprintf(&b, "\n- %s: cooldown, ~%dh left", o.Target, o.WaitHours)
		case OutcomeInvalid:
			fmt.Fprintf(&b, "\n- %s: invalid (%s)", o.Target, strings.Join(o.Violations, ", "))
		case OutcomeError:
			fmt.Fprintf(&b, "\n- %s: error: %s", o.Target, o.Error)
		}
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
