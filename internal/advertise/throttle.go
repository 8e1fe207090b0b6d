package advertise

import "time"

// EvaluateThrottle applies the per-tenant rolling window. A tenant that has
// never published (lastPublishAtMs == 0) is always eligible. When throttled,
// throttleUntilMs is the epoch-ms instant the window expires.
//
// The gate never mutates lastPublishAt; that happens only after a real
// session with at least one success.
func EvaluateThrottle(lastPublishAtMs int64, now time.Time, window time.Duration) (eligible bool, throttleUntilMs int64) {
	if lastPublishAtMs <= 0 {
		return true, 0
	}
	elapsed := now.UnixMilli() - lastPublishAtMs
	if elapsed >= window.Milliseconds() {
		return true, 0
	}
	return false, lastPublishAtMs + window.Milliseconds()
}
