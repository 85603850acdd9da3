package tracks

import (
	"log"
	"time"
)

// DefaultLivenessTimeout is how long a Live channel may go without an accepted sample.
const DefaultLivenessTimeout = 3 * time.Second

// Liveness forces channels whose device went quiet back to zero.
type Liveness struct {
	registry *Registry
	timeout  time.Duration
	logger   *log.Logger
}

// NewLiveness creates a Liveness monitor over registry.
func NewLiveness(registry *Registry, timeout time.Duration, logger *log.Logger) *Liveness {
	if registry == nil {
		panic("Liveness: registry cannot be nil")
	}
	if logger == nil {
		panic("Liveness: logger cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultLivenessTimeout
	}
	return &Liveness{registry: registry, timeout: timeout, logger: logger}
}

// Timeout returns the configured staleness timeout.
func (l *Liveness) Timeout() time.Duration {
	return l.timeout
}

// Check runs one liveness pass and returns the channels that just went Stale.
func (l *Liveness) Check(now time.Time) []Snapshot {
	var stale []Snapshot
	l.registry.Each(func(ch *Channel) {
		if snap, expired := ch.expire(now, l.timeout); expired {
			l.logger.Printf("Liveness: track %d (device %d) stale after %v", snap.Index, snap.Binding.DeviceID, now.Sub(snap.LastUpdate).Round(time.Millisecond))
			stale = append(stale, snap)
		}
	})
	return stale
}
