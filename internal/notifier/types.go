package notifier

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Enabled     bool
	Workers     int
	QueueSize   int
	RatePerSec  int
	DedupWindow time.Duration
}

// Event kinds.
const (
	KindSessionSummary = "session_summary"
	KindRemoval        = "removal"
)

// Event is an outbound operator notification. Delivery is best-effort:
// producers fire and forget, failures are logged and never propagate.
type Event struct {
	Kind      string
	TenantKey string
	// Key distinguishes events for dedup within the window. Empty disables
	// dedup for this event.
	Key  string
	Text string
}

// Sink is the capability producers depend on. The zero obligation contract:
// Notify never blocks for long and never returns an error to the caller.
type Sink interface {
	Notify(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Notify(Event) {}

type HistoryItem struct {
	At   time.Time
	Kind string
	Text string
}
