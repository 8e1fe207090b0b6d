package reddit

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitDelay extracts the platform's rate-limit signal from response
// headers. It returns how long the caller should pause before the next call,
// or zero when no pause is needed.
//
// Reddit reports X-Ratelimit-Remaining (may be fractional) and
// X-Ratelimit-Reset (seconds until the window resets).
func RateLimitDelay(h http.Header) time.Duration {
	remaining, err := strconv.ParseFloat(h.Get("X-Ratelimit-Remaining"), 64)
	if err != nil {
		return 0
	}
	if remaining >= 1 {
		return 0
	}
	resetSec, err := strconv.ParseFloat(h.Get("X-Ratelimit-Reset"), 64)
	if err != nil || resetSec <= 0 {
		return 0
	}
	return time.Duration(resetSec * float64(time.Second))
}
