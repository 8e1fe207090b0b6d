package removal

import (
	"context"
	"errors"
	"testing"
	"time"

	"promobot/internal/notifier"
	"promobot/internal/reddit"
	"promobot/internal/state"
	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

type fakeClient struct {
	items   map[string]*reddit.Item
	lookErr error
	lookups int
}

func (f *fakeClient) Authenticate(ctx context.Context) (reddit.Credential, error) {
	return reddit.Credential{}, errors.New("not used")
}

func (f *fakeClient) Publish(ctx context.Context, cred reddit.Credential, post reddit.Post) (reddit.Submission, error) {
	return reddit.Submission{}, errors.New("not used")
}

func (f *fakeClient) LookupByID(ctx context.Context, id string) (*reddit.Item, error) {
	f.lookups++
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	return f.items[id], nil
}

func (f *fakeClient) LookupRecent(ctx context.Context, subreddit, title string, sinceMs int64) (*reddit.Submission, error) {
	return nil, nil
}

type captureSink struct{ events []notifier.Event }

func (c *captureSink) Notify(e notifier.Event) { c.events = append(c.events, e) }

func newTestMonitor(t *testing.T, client reddit.Client, sink notifier.Sink, at time.Time) (*Monitor, *state.Repo) {
	t.Helper()
	repo := state.NewRepo(storage.NewMemory(), logx.Nop())
	m := New(repo, client, sink, nil, logx.Nop(), Config{TTL: 7 * 24 * time.Hour})
	m.now = func() time.Time { return at }
	return m, repo
}

func seedRecord(t *testing.T, repo *state.Repo, rec state.PostedRecord) {
	t.Helper()
	ctx := context.Background()
	if err := repo.SaveTenant(ctx, state.Tenant{Key: rec.TenantKey}); err != nil {
		t.Fatalf("SaveTenant: %v", err)
	}
	if err := repo.AppendPosted(ctx, rec); err != nil {
		t.Fatalf("AppendPosted: %v", err)
	}
}

func postedStatus(t *testing.T, repo *state.Repo, tenantKey string) state.PostedRecord {
	t.Helper()
	list, err := repo.Posted(context.Background(), tenantKey)
	if err != nil {
		t.Fatalf("Posted: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("posted records = %v, want exactly one", list)
	}
	return list[0]
}

func TestTickExpiresOldRecordWithoutRemoteCall(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client := &fakeClient{}
	m, repo := newTestMonitor(t, client, nil, now)
	seedRecord(t, repo, state.PostedRecord{
		ID: "old1", TenantKey: "club", TargetKey: "sub1",
		CreatedAt: now.Add(-8 * 24 * time.Hour).Unix(),
		Status:    state.StatusLive,
	})

	m.Tick(context.Background())

	if client.lookups != 0 {
		t.Fatalf("expired record must not be looked up, got %d calls", client.lookups)
	}
	if got := postedStatus(t, repo, "club"); got.Status != state.StatusExpired {
		t.Fatalf("Status = %q, want expired", got.Status)
	}
}

func TestTickMarksRecordWithoutIDUnknown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m, repo := newTestMonitor(t, &fakeClient{}, nil, now)
	seedRecord(t, repo, state.PostedRecord{
		TenantKey: "club", TargetKey: "sub1",
		CreatedAt: now.Add(-time.Hour).Unix(),
		Status:    state.StatusLive,
	})

	m.Tick(context.Background())

	if got := postedStatus(t, repo, "club"); got.Status != state.StatusUnknown {
		t.Fatalf("Status = %q, want unknown", got.Status)
	}
}

func TestTickDetectsModeratorRemoval(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client := &fakeClient{items: map[string]*reddit.Item{
		"p1": {ID: "p1", RemovedByCategory: "moderator"},
	}}
	sink := &captureSink{}
	m, repo := newTestMonitor(t, client, sink, now)
	seedRecord(t, repo, state.PostedRecord{
		ID: "p1", TenantKey: "club", TargetKey: "sub1",
		CreatedAt: now.Add(-time.Hour).Unix(),
		Status:    state.StatusLive,
	})

	m.Tick(context.Background())

	got := postedStatus(t, repo, "club")
	if got.Status != state.StatusRemoved {
		t.Fatalf("Status = %q, want removed", got.Status)
	}
	if got.Removal == nil || got.Removal.Category != "moderator" || got.Removal.CheckedAt != now.Unix() {
		t.Fatalf("Removal = %+v", got.Removal)
	}
	if len(sink.events) != 1 || sink.events[0].Kind != notifier.KindRemoval {
		t.Fatalf("sink events = %v", sink.events)
	}
}

func TestTickLeavesSelfDeletedLive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client := &fakeClient{items: map[string]*reddit.Item{
		"p1": {ID: "p1", RemovedByCategory: "deleted"},
	}}
	sink := &captureSink{}
	m, repo := newTestMonitor(t, client, sink, now)
	seedRecord(t, repo, state.PostedRecord{
		ID: "p1", TenantKey: "club", TargetKey: "sub1",
		CreatedAt: now.Add(-time.Hour).Unix(),
		Status:    state.StatusLive,
	})

	m.Tick(context.Background())

	if got := postedStatus(t, repo, "club"); got.Status != state.StatusLive {
		t.Fatalf("Status = %q, want live", got.Status)
	}
	if len(sink.events) != 0 {
		t.Fatalf("self-deletion must not notify, got %v", sink.events)
	}
}

func TestTickKeepsLiveOnLookupFailure(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client := &fakeClient{lookErr: errors.New("502")}
	m, repo := newTestMonitor(t, client, nil, now)
	seedRecord(t, repo, state.PostedRecord{
		ID: "p1", TenantKey: "club", TargetKey: "sub1",
		CreatedAt: now.Add(-time.Hour).Unix(),
		Status:    state.StatusLive,
	})

	m.Tick(context.Background())

	if got := postedStatus(t, repo, "club"); got.Status != state.StatusLive {
		t.Fatalf("Status = %q, want live after transient failure", got.Status)
	}
}

func TestTickSkipsTerminalRecords(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client := &fakeClient{}
	m, repo := newTestMonitor(t, client, nil, now)
	seedRecord(t, repo, state.PostedRecord{
		ID: "p1", TenantKey: "club", TargetKey: "sub1",
		CreatedAt: now.Add(-time.Hour).Unix(),
		Status:    state.StatusRemoved,
	})

	m.Tick(context.Background())

	if client.lookups != 0 {
		t.Fatalf("terminal record must not be re-checked, got %d lookups", client.lookups)
	}
	if got := postedStatus(t, repo, "club"); got.Status != state.StatusRemoved {
		t.Fatalf("Status = %q, want removed unchanged", got.Status)
	}
}
