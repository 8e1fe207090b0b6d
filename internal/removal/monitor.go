// Package removal watches previously published items for takedowns.
//
// Once a record leaves "live" it is terminal: expired (older than the TTL,
// no remote check), unknown (no content id to check), or removed (the
// platform reports a takedown). Author self-deletion is deliberately not
// escalated and the record stays live; see the note on checkRecord.
package removal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"promobot/internal/eventbus"
	"promobot/internal/notifier"
	"promobot/internal/reddit"
	"promobot/internal/state"
	logx "promobot/pkg/logx"
)

const selfDeleteCategory = "deleted"

type Config struct {
	Tick time.Duration
	// TTL bounds how long a live record is monitored, measured from creation.
	TTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = 10 * time.Minute
	}
	if c.TTL <= 0 {
		c.TTL = 7 * 24 * time.Hour
	}
	return c
}

type Monitor struct {
	repo   *state.Repo
	client reddit.Client
	sink   notifier.Sink
	bus    eventbus.Bus
	log    logx.Logger
	cfg    Config

	tickMu sync.Mutex

	mu sync.Mutex
	c  *cron.Cron

	now func() time.Time
}

func New(repo *state.Repo, client reddit.Client, sink notifier.Sink, bus eventbus.Bus, log logx.Logger, cfg Config) *Monitor {
	if sink == nil {
		sink = notifier.NopSink{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		repo:   repo,
		client: client,
		sink:   sink,
		bus:    bus,
		log:    log,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc("@every "+m.cfg.Tick.String(), func() { m.Tick(ctx) }); err != nil {
		return fmt.Errorf("register removal tick: %w", err)
	}
	c.Start()
	m.c = c
	m.log.Info("removal monitor started",
		logx.Duration("tick", m.cfg.Tick), logx.Duration("ttl", m.cfg.TTL))
	return nil
}

func (m *Monitor) Stop(ctx context.Context) {
	m.mu.Lock()
	c := m.c
	m.c = nil
	m.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	m.log.Info("removal monitor stopped")
}

// Tick re-checks every live record of every tenant once.
func (m *Monitor) Tick(ctx context.Context) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	tenants, err := m.repo.Tenants(ctx)
	if err != nil {
		m.log.Error("failed to load tenants", logx.Err(err))
		return
	}
	for _, t := range tenants {
		m.checkTenant(ctx, t.Key)
	}
}

func (m *Monitor) checkTenant(ctx context.Context, tenantKey string) {
	records, err := m.repo.Posted(ctx, tenantKey)
	if err != nil {
		m.log.Error("failed to load posted records", logx.String("tenant", tenantKey), logx.Err(err))
		return
	}

	// Remote checks happen outside the document lock; decisions are applied
	// afterwards. Only this monitor moves records off "live", so the
	// read-decide-apply split cannot conflict with itself.
	var updates []state.PostedRecord
	for _, rec := range records {
		if rec.Status != state.StatusLive {
			continue
		}
		if upd, changed := m.checkRecord(ctx, rec); changed {
			updates = append(updates, upd)
		}
	}
	if len(updates) == 0 {
		return
	}

	err = m.repo.MutatePosted(ctx, tenantKey, func(list []state.PostedRecord) ([]state.PostedRecord, error) {
		for i := range list {
			for _, upd := range updates {
				if sameRecord(list[i], upd) && list[i].Status == state.StatusLive {
					list[i] = upd
				}
			}
		}
		return list, nil
	})
	if err != nil {
		m.log.Error("failed to persist record transitions", logx.String("tenant", tenantKey), logx.Err(err))
	}
}

// checkRecord decides one live record's next status. changed=false means the
// record stays live and is re-checked next tick.
func (m *Monitor) checkRecord(ctx context.Context, rec state.PostedRecord) (state.PostedRecord, bool) {
	now := m.now()
	log := m.log.With(logx.String("tenant", rec.TenantKey), logx.String("post", rec.ID))

	if now.Unix()-rec.CreatedAt > int64(m.cfg.TTL.Seconds()) {
		// Monitoring ends at the TTL; the platform's own lifecycle is assumed
		// authoritative thereafter. No remote call.
		rec.Status = state.StatusExpired
		m.publish(eventbus.TypePostedExpired, rec)
		log.Debug("posted record expired")
		return rec, true
	}

	if rec.ID == "" {
		rec.Status = state.StatusUnknown
		log.Debug("posted record has no id, cannot verify")
		return rec, true
	}

	item, err := m.client.LookupByID(ctx, rec.ID)
	if err != nil || item == nil {
		// Transient: retry next tick.
		log.Debug("removal check unanswered", logx.Err(err))
		return rec, false
	}
	if item.RemovedByCategory == "" {
		return rec, false
	}
	if item.RemovedByCategory == selfDeleteCategory {
		// The author deleting their own post is benign and not escalated.
		// Whether such records should still leave "live" to stop repeated
		// checks is unresolved; until then they stay live and the TTL is the
		// backstop.
		return rec, false
	}

	rec.Status = state.StatusRemoved
	rec.Removal = &state.Removal{Category: item.RemovedByCategory, CheckedAt: now.Unix()}
	m.publish(eventbus.TypeRemovalDetected, rec)
	m.sink.Notify(notifier.Event{
		Kind:      notifier.KindRemoval,
		TenantKey: rec.TenantKey,
		Key:       "removal:" + rec.ID,
		Text: fmt.Sprintf("Post %s in r/%s was removed (%s)",
			rec.ID, rec.TargetKey, item.RemovedByCategory),
	})
	log.Warn("posted record removed by platform", logx.String("category", item.RemovedByCategory))
	return rec, true
}

func (m *Monitor) publish(typ string, data any) {
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

func sameRecord(a, b state.PostedRecord) bool {
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	return a.TargetKey == b.TargetKey && a.CreatedAt == b.CreatedAt
}
