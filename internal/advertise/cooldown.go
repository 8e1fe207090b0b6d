package advertise

import (
	"math"
	"time"
)

const dayMs = 24 * 60 * 60 * 1000

// CooldownWait computes how much longer a target must wait before it may be
// published to again. Zero or negative means the target is eligible now.
//
// cadenceDays falls back to 1 when unset or non-finite. lastSuccessMs is the
// target's last successful publish (0 = never).
func CooldownWait(cadenceDays float64, lastSuccessMs int64, now time.Time) time.Duration {
	if cadenceDays <= 0 || math.IsNaN(cadenceDays) || math.IsInf(cadenceDays, 0) {
		cadenceDays = defaultCadenceDays
	}
	cadenceMs := int64(cadenceDays * dayMs)
	waitMs := cadenceMs - (now.UnixMilli() - lastSuccessMs)
	if waitMs <= 0 {
		return 0
	}
	return time.Duration(waitMs) * time.Millisecond
}

// WaitHours rounds a wait up to whole hours for operator-facing output.
func WaitHours(wait time.Duration) int {
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Hours()))
}
