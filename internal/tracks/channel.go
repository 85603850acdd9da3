package tracks

import (
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/filter"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"
)

// Binding is the device assigned to a track.
type Binding struct {
	DeviceID uint32      `json:"device_id" yaml:"device_id"`
	Class    DeviceClass `json:"class" yaml:"class"`
}

// Snapshot is a copy of a channel's externally visible state.
type Snapshot struct {
	Index      int           `json:"index"`
	Bound      bool          `json:"bound"`
	Binding    Binding       `json:"binding"`
	Status     Status        `json:"status"`
	Values     filter.Values `json:"values"`
	Stats      Stats         `json:"stats"`
	LastUpdate time.Time     `json:"last_update"`
}

// Channel is one track: an optional device binding plus its smoothing state
// and statistics. All methods are safe for concurrent use.
type Channel struct {
	mu         sync.Mutex
	index      int
	bound      bool
	binding    Binding
	status     Status
	proc       *filter.Processor
	stats      Stats
	lastUpdate time.Time
}

func newChannel(index int, cfg filter.Config) *Channel {
	return &Channel{
		index:  index,
		status: StatusUnbound,
		proc:   filter.NewProcessor(cfg),
	}
}

// Index returns the track index.
func (c *Channel) Index() int {
	return c.index
}

// Snapshot returns a copy of the channel state.
func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Ingest applies a reading to the channel. It returns the resulting snapshot
// and whether any measurement was accepted. Unbound channels ignore input.
func (c *Channel) Ingest(r filter.Reading, now time.Time) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bound {
		return c.snapshotLocked(), false
	}
	if !c.proc.Apply(r) {
		return c.snapshotLocked(), false
	}
	c.lastUpdate = now
	if c.status == StatusReady || c.status == StatusStale {
		c.status = StatusLive
	}
	return c.snapshotLocked(), true
}

// AccumulateStats samples the filtered primary value into the run statistics.
func (c *Channel) AccumulateStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		c.stats.Add(c.proc.Values().Primary)
	}
}

// ResetSegmentStats clears the per-segment accumulators.
func (c *Channel) ResetSegmentStats() {
	c.mu.Lock()
	c.stats.ResetSegment()
	c.mu.Unlock()
}

// ResetStats clears the run and segment statistics.
func (c *Channel) ResetStats() {
	c.mu.Lock()
	c.stats = Stats{}
	c.mu.Unlock()
}

// ResetRun clears statistics and smoothing state, keeping the binding.
func (c *Channel) ResetRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
	c.proc.Reset()
}

// expire marks a Live channel Stale when nothing was accepted within timeout
// and it still reports a non-zero output, zeroing its outputs. A channel
// already reading zero stays Live.
func (c *Channel) expire(now time.Time, timeout time.Duration) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bound || c.status != StatusLive || now.Sub(c.lastUpdate) <= timeout {
		return Snapshot{}, false
	}
	if v := c.proc.Values(); v.Primary == 0 && v.Companion == 0 && v.HeartRate == 0 {
		return Snapshot{}, false
	}
	c.proc.Reset()
	c.status = StatusStale
	metrics.ChannelStaleTotal.Inc()
	return c.snapshotLocked(), true
}

func (c *Channel) bind(b Binding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = true
	c.binding = b
	c.status = StatusReady
	c.stats = Stats{}
	c.proc.Reset()
	c.lastUpdate = time.Time{}
}

func (c *Channel) unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = false
	c.binding = Binding{}
	c.status = StatusUnbound
	c.stats = Stats{}
	c.proc.Reset()
	c.lastUpdate = time.Time{}
}

// upgrade moves the bound class up the lattice. Lower or incomparable
// classes leave the binding untouched.
func (c *Channel) upgrade(class DeviceClass) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bound || !c.binding.Class.Less(class) {
		return false
	}
	c.binding.Class = class
	return true
}

func (c *Channel) current() (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binding, c.bound
}

func (c *Channel) snapshotLocked() Snapshot {
	return Snapshot{
		Index:      c.index,
		Bound:      c.bound,
		Binding:    c.binding,
		Status:     c.status,
		Values:     c.proc.Values(),
		Stats:      c.stats,
		LastUpdate: c.lastUpdate,
	}
}
