package state

import (
	"context"
	"fmt"

	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

// Document keys. Per-tenant documents embed the tenant key.
const (
	keyTenants   = "tenants"
	keySchedules = "schedules"
)

func keyTargets(tenant string) string   { return "targets/" + tenant }
func keyCooldowns(tenant string) string { return "cooldowns/" + tenant }
func keyPosted(tenant string) string    { return "posted/" + tenant }

// Repo mediates all durable state access. Every mutation of a document runs
// under that document's lock, so concurrent ticks and on-demand sessions
// cannot lose updates to the same document.
type Repo struct {
	store storage.Store
	locks *keyedLocks
	log   logx.Logger
}

func NewRepo(store storage.Store, log logx.Logger) *Repo {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Repo{store: store, locks: newKeyedLocks(), log: log}
}

// ---- Tenants ----

func (r *Repo) Tenants(ctx context.Context) ([]Tenant, error) {
	var list []Tenant
	if _, err := r.store.Get(ctx, keyTenants, &list); err != nil {
		return nil, fmt.Errorf("load tenants: %w", err)
	}
	out := list[:0]
	for _, t := range list {
		if err := t.normalize(); err != nil {
			r.log.Warn("dropping malformed tenant record", logx.Err(err))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repo) Tenant(ctx context.Context, key string) (Tenant, bool, error) {
	list, err := r.Tenants(ctx)
	if err != nil {
		return Tenant{}, false, err
	}
	for _, t := range list {
		if t.Key == key {
			return t, true, nil
		}
	}
	return Tenant{}, false, nil
}

// SaveTenant inserts or replaces the tenant with the same key.
func (r *Repo) SaveTenant(ctx context.Context, tenant Tenant) error {
	if err := tenant.normalize(); err != nil {
		return err
	}
	unlock := r.locks.lock(keyTenants)
	defer unlock()

	list, err := r.Tenants(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range list {
		if list[i].Key == tenant.Key {
			list[i] = tenant
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, tenant)
	}
	return r.store.Put(ctx, keyTenants, list)
}

// SetLastPublishAt stamps the tenant's global throttle anchor.
// Only the session orchestrator calls this, and only after a real session
// with at least one successful publish.
func (r *Repo) SetLastPublishAt(ctx context.Context, tenantKey string, atMs int64) error {
	unlock := r.locks.lock(keyTenants)
	defer unlock()

	list, err := r.Tenants(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].Key == tenantKey {
			list[i].LastPublishAt = atMs
			return r.store.Put(ctx, keyTenants, list)
		}
	}
	return fmt.Errorf("tenant %q: %w", tenantKey, ErrTenantNotFound)
}

// RemoveTenant deletes the tenant and all dependent documents.
func (r *Repo) RemoveTenant(ctx context.Context, key string) error {
	unlock := r.locks.lock(keyTenants)
	defer unlock()

	list, err := r.Tenants(ctx)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, t := range list {
		if t.Key != key {
			kept = append(kept, t)
		}
	}
	if err := r.store.Put(ctx, keyTenants, kept); err != nil {
		return err
	}
	for _, k := range []string{keyTargets(key), keyCooldowns(key), keyPosted(key)} {
		if err := r.store.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// ---- Targets ----

func (r *Repo) Targets(ctx context.Context, tenantKey string) ([]Target, error) {
	var list []Target
	if _, err := r.store.Get(ctx, keyTargets(tenantKey), &list); err != nil {
		return nil, fmt.Errorf("load targets for %q: %w", tenantKey, err)
	}
	out := list[:0]
	for _, t := range list {
		if err := t.normalize(tenantKey); err != nil {
			r.log.Warn("dropping malformed target record", logx.Err(err))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repo) SaveTargets(ctx context.Context, tenantKey string, targets []Target) error {
	for i := range targets {
		if err := targets[i].normalize(tenantKey); err != nil {
			return err
		}
	}
	unlock := r.locks.lock(keyTargets(tenantKey))
	defer unlock()
	return r.store.Put(ctx, keyTargets(tenantKey), targets)
}

// ---- Cooldowns ----

// Cooldowns returns the target-key → last-success epoch-ms map for a tenant.
func (r *Repo) Cooldowns(ctx context.Context, tenantKey string) (map[string]int64, error) {
	m := map[string]int64{}
	if _, err := r.store.Get(ctx, keyCooldowns(tenantKey), &m); err != nil {
		return nil, fmt.Errorf("load cooldowns for %q: %w", tenantKey, err)
	}
	return m, nil
}

func (r *Repo) SetCooldown(ctx context.Context, tenantKey, targetKey string, atMs int64) error {
	unlock := r.locks.lock(keyCooldowns(tenantKey))
	defer unlock()

	m, err := r.Cooldowns(ctx, tenantKey)
	if err != nil {
		return err
	}
	m[targetKey] = atMs
	return r.store.Put(ctx, keyCooldowns(tenantKey), m)
}

// ---- Schedules ----

func (r *Repo) Schedules(ctx context.Context) ([]Schedule, error) {
	var list []Schedule
	if _, err := r.store.Get(ctx, keySchedules, &list); err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	out := list[:0]
	for _, s := range list {
		if err := s.normalize(); err != nil {
			r.log.Warn("dropping malformed schedule record", logx.Err(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// MutateSchedules runs fn over the current schedule list and persists the
// result, all under the schedules lock. fn returning an error aborts without
// writing.
func (r *Repo) MutateSchedules(ctx context.Context, fn func([]Schedule) ([]Schedule, error)) error {
	unlock := r.locks.lock(keySchedules)
	defer unlock()

	list, err := r.Schedules(ctx)
	if err != nil {
		return err
	}
	next, err := fn(list)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, keySchedules, next)
}

func (r *Repo) AddSchedule(ctx context.Context, s Schedule) error {
	if err := s.normalize(); err != nil {
		return err
	}
	return r.MutateSchedules(ctx, func(list []Schedule) ([]Schedule, error) {
		return append(list, s), nil
	})
}

// DeleteSchedule removes the entry with the given id. Removing an id that is
// already gone is not an error; schedule completion must be idempotent.
func (r *Repo) DeleteSchedule(ctx context.Context, id string) error {
	return r.MutateSchedules(ctx, func(list []Schedule) ([]Schedule, error) {
		kept := list[:0]
		for _, s := range list {
			if s.ID != id {
				kept = append(kept, s)
			}
		}
		return kept, nil
	})
}

// UpdateSchedule replaces the entry with the same id, if still present.
func (r *Repo) UpdateSchedule(ctx context.Context, upd Schedule) error {
	return r.MutateSchedules(ctx, func(list []Schedule) ([]Schedule, error) {
		for i := range list {
			if list[i].ID == upd.ID {
				list[i] = upd
				break
			}
		}
		return list, nil
	})
}

// ---- Posted records ----

func (r *Repo) Posted(ctx context.Context, tenantKey string) ([]PostedRecord, error) {
	var list []PostedRecord
	if _, err := r.store.Get(ctx, keyPosted(tenantKey), &list); err != nil {
		return nil, fmt.Errorf("load posted records for %q: %w", tenantKey, err)
	}
	for i := range list {
		list[i].normalize()
	}
	return list, nil
}

// MutatePosted runs fn over a tenant's posted-record list and persists the
// result under that document's lock.
func (r *Repo) MutatePosted(ctx context.Context, tenantKey string, fn func([]PostedRecord) ([]PostedRecord, error)) error {
	unlock := r.locks.lock(keyPosted(tenantKey))
	defer unlock()

	list, err := r.Posted(ctx, tenantKey)
	if err != nil {
		return err
	}
	next, err := fn(list)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, keyPosted(tenantKey), next)
}

func (r *Repo) AppendPosted(ctx context.Context, rec PostedRecord) error {
	rec.normalize()
	return r.MutatePosted(ctx, rec.TenantKey, func(list []PostedRecord) ([]PostedRecord, error) {
		return append(list, rec), nil
	})
}
