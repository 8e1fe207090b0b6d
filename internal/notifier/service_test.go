package notifier

import (
	"context"
	"testing"
	"time"

	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

type chanSender struct{ sent chan string }

func (c *chanSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	c.sent <- text
	return nil
}

func waitText(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no notification delivered")
		return ""
	}
}

func TestServiceDelivers(t *testing.T) {
	sender := &chanSender{sent: make(chan string, 8)}
	s := New(Config{Enabled: true, RatePerSec: 100}, sender, kit.ChatTarget{ChatID: 1}, nil, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.Notify(Event{Kind: KindSessionSummary, Text: "session done"})
	if got := waitText(t, sender.sent); got != "session done" {
		t.Fatalf("delivered = %q", got)
	}

	hist := s.History()
	if len(hist) != 1 || hist[0].Kind != KindSessionSummary {
		t.Fatalf("history = %v", hist)
	}
}

func TestServiceDedup(t *testing.T) {
	sender := &chanSender{sent: make(chan string, 8)}
	s := New(Config{Enabled: true, RatePerSec: 100, DedupWindow: time.Hour}, sender, kit.ChatTarget{}, nil, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.Notify(Event{Kind: KindRemoval, Key: "removal:p1", Text: "first"})
	s.Notify(Event{Kind: KindRemoval, Key: "removal:p1", Text: "duplicate"})
	s.Notify(Event{Kind: KindRemoval, Key: "removal:p2", Text: "different key"})

	got := map[string]bool{}
	got[waitText(t, sender.sent)] = true
	got[waitText(t, sender.sent)] = true
	if !got["first"] || !got["different key"] || got["duplicate"] {
		t.Fatalf("delivered = %v", got)
	}
	select {
	case extra := <-sender.sent:
		t.Fatalf("unexpected extra delivery %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceDisabledDrops(t *testing.T) {
	sender := &chanSender{sent: make(chan string, 1)}
	s := New(Config{Enabled: false}, sender, kit.ChatTarget{}, nil, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if s.Enabled() {
		t.Fatal("service should report disabled")
	}
	s.Notify(Event{Kind: KindSessionSummary, Text: "dropped"})
	select {
	case got := <-sender.sent:
		t.Fatalf("disabled service delivered %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNopSink(t *testing.T) {
	t.Parallel()
	NopSink{}.Notify(Event{Kind: KindSessionSummary, Text: "ignored"})
}
