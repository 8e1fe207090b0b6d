// Package schedule re-runs tenant publishing sessions at their due time.
//
// Entries are durable (see internal/state); the runtime only decides, on each
// tick, which entries are due and what happens to them afterwards. The
// state machine is Pending → Triggered → Done on success, or back to Pending
// with bumped attempt metadata on failure. The transition itself is a pure
// function so it can be tested without timers or storage.
package schedule
