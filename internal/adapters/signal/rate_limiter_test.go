package signal

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	mock := clock.NewMock()
	rl := NewRateLimiter(mock, 3, 10*time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow("u1") {
			t.Fatalf("attempt %d within limit must pass", i)
		}
	}
	if rl.Allow("u1") {
		t.Fatalf("over-limit attempt must be blocked")
	}
	if !rl.Allow("u2") {
		t.Fatalf("limits are per user")
	}

	mock.Add(11 * time.Second)
	if !rl.Allow("u1") {
		t.Fatalf("window must slide past old attempts")
	}
}
