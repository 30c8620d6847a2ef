package signal

import (
	"testing"
	"time"
)

func TestNewControllerDefaultsPingPeriod(t *testing.T) {
	for _, period := range []time.Duration{0, -time.Second} {
		ctl := NewController(nil, nil, nil, 0, period)
		if ctl.PingPeriod != defaultPingPeriod {
			t.Fatalf("period %v must fall back to %v, got %v", period, defaultPingPeriod, ctl.PingPeriod)
		}
	}

	ctl := NewController(nil, nil, nil, 0, 30*time.Second)
	if ctl.PingPeriod != 30*time.Second {
		t.Fatalf("explicit period must be kept, got %v", ctl.PingPeriod)
	}
}
