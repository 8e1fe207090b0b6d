package schedule

import (
	"time"

	"promobot/internal/state"
)

// State of a schedule entry within one tick.
type State int

const (
	// Pending: not yet due, or re-queued after a failed attempt.
	Pending State = iota
	// Triggered: due and currently executing.
	Triggered
	// Done: executed successfully; the entry is removed.
	Done
)

// ExecResult is the outcome of executing a triggered entry.
type ExecResult struct {
	OK  bool
	Err string
}

// Next computes the entry's successor state after execution.
//
// Success is terminal (Done; the caller deletes the entry). Failure returns
// the same entry to Pending with attemptCount incremented, the failure
// captured in lastError, and the due time pushed out by retryDelay.
func Next(e state.Schedule, res ExecResult, now time.Time, retryDelay time.Duration) (state.Schedule, State) {
	if res.OK {
		return e, Done
	}
	e.AttemptCount++
	e.LastAttemptMs = now.UnixMilli()
	e.LastError = res.Err
	e.WhenMs = now.UnixMilli() + retryDelay.Milliseconds()
	return e, Pending
}
