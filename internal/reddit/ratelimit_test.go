package reddit

import (
	"net/http"
	"testing"
	"time"
)

func TestRateLimitDelay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		remaining string
		reset     string
		want      time.Duration
	}{
		{name: "no headers", want: 0},
		{name: "budget left", remaining: "120", reset: "300", want: 0},
		{name: "fractional budget left", remaining: "1.0", reset: "60", want: 0},
		{name: "exhausted", remaining: "0", reset: "30", want: 30 * time.Second},
		{name: "fractional exhausted", remaining: "0.5", reset: "1.5", want: 1500 * time.Millisecond},
		{name: "exhausted without reset", remaining: "0", want: 0},
		{name: "garbage remaining", remaining: "lots", reset: "30", want: 0},
		{name: "negative reset", remaining: "0", reset: "-5", want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.remaining != "" {
				h.Set("X-Ratelimit-Remaining", tt.remaining)
			}
			if tt.reset != "" {
				h.Set("X-Ratelimit-Reset", tt.reset)
			}
			if got := RateLimitDelay(h); got != tt.want {
				t.Fatalf("RateLimitDelay = %v, want %v", got, tt.want)
			}
		})
	}
}
