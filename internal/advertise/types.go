package advertise

import (
	"time"

	"promobot/internal/reddit"
	"promobot/internal/state"
)

// ThrottleWindow is the rolling period during which a tenant may not start
// another full publishing session.
const ThrottleWindow = 24 * time.Hour

// defaultCadenceDays applies when a target's cadence is unset or nonsensical.
const defaultCadenceDays = 1

type OutcomeKind string

const (
	OutcomePosted       OutcomeKind = "posted"
	OutcomeSkipCooldown OutcomeKind = "skip_cooldown"
	OutcomeInvalid      OutcomeKind = "invalid"
	OutcomeDryRunOK     OutcomeKind = "dry_run_ok"
	OutcomeError        OutcomeKind = "error"
)

// Outcome is the per-target result of one session pass.
type Outcome struct {
	Target string      `json:"target"`
	Kind   OutcomeKind `json:"kind"`

	// skip_cooldown: remaining wait, rounded up to hours.
	WaitHours int `json:"wait_hours,omitempty"`
	// invalid: names of the violated rules.
	Violations []string `json:"violations,omitempty"`
	// error: failure message.
	Error string `json:"error,omitempty"`
	// posted: resolved external id/permalink (may be empty if unresolvable).
	PostID    string `json:"post_id,omitempty"`
	Permalink string `json:"permalink,omitempty"`
	// dry_run_ok: the fully merged content that would have been submitted.
	Content *reddit.Post `json:"content,omitempty"`
}

type SessionStatus string

const (
	StatusOK        SessionStatus = "ok"
	StatusThrottled SessionStatus = "throttled"
)

// SessionResult is returned from Runner.Run.
type SessionResult struct {
	Status        SessionStatus   `json:"status"`
	ThrottleUntil int64           `json:"throttle_until,omitempty"` // epoch ms
	Scheduled     *state.Schedule `json:"scheduled,omitempty"`
	Results       []Outcome       `json:"results,omitempty"`
	Posted        int             `json:"posted"`
}

// Options controls a single session invocation.
type Options struct {
	DryRun bool
	// AutoScheduleIfThrottled creates a retry Schedule at throttle expiry when
	// the session is rejected by the throttle gate.
	AutoScheduleIfThrottled bool
}
