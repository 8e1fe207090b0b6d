package schedule

import (
	"testing"
	"time"

	"promobot/internal/state"
)

func TestNextSuccess(t *testing.T) {
	t.Parallel()
	e := state.Schedule{ID: "s1", TenantKey: "club", WhenMs: 100, AttemptCount: 2}
	now := time.UnixMilli(5_000)

	got, st := Next(e, ExecResult{OK: true}, now, time.Minute)
	if st != Done {
		t.Fatalf("state = %v, want Done", st)
	}
	if got != e {
		t.Fatalf("success must not modify the entry: %+v", got)
	}
}

func TestNextFailure(t *testing.T) {
	t.Parallel()
	e := state.Schedule{ID: "s1", TenantKey: "club", WhenMs: 100}
	now := time.UnixMilli(5_000)

	got, st := Next(e, ExecResult{Err: "boom"}, now, time.Minute)
	if st != Pending {
		t.Fatalf("state = %v, want Pending", st)
	}
	if got.AttemptCount != 1 {
		t.Fatalf("AttemptCount = %d, want 1", got.AttemptCount)
	}
	if got.LastError != "boom" {
		t.Fatalf("LastError = %q", got.LastError)
	}
	if got.LastAttemptMs != now.UnixMilli() {
		t.Fatalf("LastAttemptMs = %d", got.LastAttemptMs)
	}
	if want := now.UnixMilli() + time.Minute.Milliseconds(); got.WhenMs != want {
		t.Fatalf("WhenMs = %d, want %d", got.WhenMs, want)
	}

	// A second failure keeps counting from where it left off.
	later := now.Add(time.Minute)
	got, _ = Next(got, ExecResult{Err: "boom again"}, later, time.Minute)
	if got.AttemptCount != 2 {
		t.Fatalf("AttemptCount = %d, want 2", got.AttemptCount)
	}
	if got.WhenMs <= now.UnixMilli()+time.Minute.Milliseconds() {
		t.Fatalf("retry due time did not advance: %d", got.WhenMs)
	}
}
