package advertise

import (
	"math"
	"testing"
	"time"
)

func TestCooldownWait(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name    string
		cadence float64
		last    int64
		want    time.Duration
	}{
		{name: "never published", cadence: 1, last: 0, want: 0},
		{name: "cadence elapsed", cadence: 1, last: now.Add(-25 * time.Hour).UnixMilli(), want: 0},
		{name: "cadence exactly elapsed", cadence: 1, last: now.Add(-24 * time.Hour).UnixMilli(), want: 0},
		{name: "half a day left", cadence: 1, last: now.Add(-12 * time.Hour).UnixMilli(), want: 12 * time.Hour},
		{name: "multi-day cadence", cadence: 3, last: now.Add(-24 * time.Hour).UnixMilli(), want: 48 * time.Hour},
		{name: "zero cadence falls back to one day", cadence: 0, last: now.Add(-6 * time.Hour).UnixMilli(), want: 18 * time.Hour},
		{name: "nan cadence falls back", cadence: math.NaN(), last: now.Add(-6 * time.Hour).UnixMilli(), want: 18 * time.Hour},
		{name: "inf cadence falls back", cadence: math.Inf(1), last: now.Add(-6 * time.Hour).UnixMilli(), want: 18 * time.Hour},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := CooldownWait(tt.cadence, tt.last, now); got != tt.want {
				t.Fatalf("CooldownWait = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitHours(t *testing.T) {
	t.Parallel()
	if got := WaitHours(0); got != 0 {
		t.Fatalf("WaitHours(0) = %d", got)
	}
	if got := WaitHours(61 * time.Minute); got != 2 {
		t.Fatalf("WaitHours(61m) = %d, want 2", got)
	}
	if got := WaitHours(12 * time.Hour); got != 12 {
		t.Fatalf("WaitHours(12h) = %d, want 12", got)
	}
}
