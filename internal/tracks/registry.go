// Package tracks owns the fixed pool of sensor channels: device bindings,
// class arbitration, per-channel smoothing state and liveness.
package tracks

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/filter"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"
)

// DefaultSize is the number of tracks created when none is configured.
const DefaultSize = 10

var (
	// ErrDeviceAlreadyBound is returned when a device is bound to a different track.
	ErrDeviceAlreadyBound = errors.New("device already bound to another track")
	// ErrTrackOutOfRange is returned for track indexes outside the pool.
	ErrTrackOutOfRange = errors.New("track index out of range")
	// ErrUnknownClass is returned when binding with a class outside the lattice.
	ErrUnknownClass = errors.New("unknown device class")
)

// Registry is the fixed-size pool of channels. The pool itself is guarded by
// an RWMutex; each channel carries its own lock for sample-level updates.
type Registry struct {
	mu       sync.RWMutex
	channels []*Channel
	byDevice map[uint32]int
	cfg      filter.Config
	logger   *log.Logger
}

// NewRegistry creates a pool of size channels sharing the filter configuration.
func NewRegistry(size int, cfg filter.Config, logger *log.Logger) *Registry {
	if logger == nil {
		panic("Registry: logger cannot be nil")
	}
	r := &Registry{cfg: cfg, logger: logger}
	r.build(size)
	return r
}

func (r *Registry) build(size int) {
	if size <= 0 {
		size = DefaultSize
	}
	r.channels = make([]*Channel, size)
	for i := range r.channels {
		r.channels[i] = newChannel(i, r.cfg)
	}
	r.byDevice = make(map[uint32]int)
	metrics.BoundChannels.Set(0)
}

// Size returns the number of tracks.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Resize tears down every channel and recreates the pool with n tracks.
// All bindings, statistics and smoothing state are lost.
func (r *Registry) Resize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.build(n)
	r.logger.Printf("Registry: resized to %d tracks", len(r.channels))
}

// Channel returns the channel at index.
func (r *Registry) Channel(index int) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.channels) {
		return nil, fmt.Errorf("track %d: %w", index, ErrTrackOutOfRange)
	}
	return r.channels[index], nil
}

// Bind assigns deviceID to track. Rebinding the same device to the same track
// is allowed and resets the channel, but never lowers its class in the
// lattice. Binding a device that already belongs to another track fails with
// ErrDeviceAlreadyBound.
func (r *Registry) Bind(track int, deviceID uint32, class DeviceClass) error {
	if !class.Known() {
		return fmt.Errorf("bind track %d: %w", track, ErrUnknownClass)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if track < 0 || track >= len(r.channels) {
		return fmt.Errorf("bind track %d: %w", track, ErrTrackOutOfRange)
	}
	if owner, ok := r.byDevice[deviceID]; ok && owner != track {
		return fmt.Errorf("bind device %d to track %d (owned by track %d): %w", deviceID, track, owner, ErrDeviceAlreadyBound)
	}

	ch := r.channels[track]
	if previous, bound := ch.current(); bound {
		switch {
		case previous.DeviceID != deviceID:
			delete(r.byDevice, previous.DeviceID)
		case class.Less(previous.Class):
			class = previous.Class
		}
	}
	ch.bind(Binding{DeviceID: deviceID, Class: class})
	r.byDevice[deviceID] = track
	metrics.BoundChannels.Set(float64(len(r.byDevice)))
	r.logger.Printf("Registry: bound device %d (%s) to track %d", deviceID, class, track)
	return nil
}

// Unbind clears the binding on track. Unbinding an empty track is a no-op.
func (r *Registry) Unbind(track int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if track < 0 || track >= len(r.channels) {
		return fmt.Errorf("unbind track %d: %w", track, ErrTrackOutOfRange)
	}
	ch := r.channels[track]
	if previous, bound := ch.current(); bound {
		delete(r.byDevice, previous.DeviceID)
		r.logger.Printf("Registry: unbound device %d from track %d", previous.DeviceID, track)
	}
	ch.unbind()
	metrics.BoundChannels.Set(float64(len(r.byDevice)))
	return nil
}

// Resolve returns the channels bound to deviceID whose class is in the same
// family as class.
func (r *Registry) Resolve(deviceID uint32, class DeviceClass) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	track, ok := r.byDevice[deviceID]
	if !ok {
		return nil
	}
	ch := r.channels[track]
	b, bound := ch.current()
	if !bound || !b.Class.Comparable(class) {
		return nil
	}
	return []*Channel{ch}
}

// Announce applies class arbitration for an observed device. When the device
// is bound and class sits higher in the lattice, the binding is upgraded in
// place. It returns the owning track (or -1) and whether an upgrade happened.
func (r *Registry) Announce(deviceID uint32, class DeviceClass) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	track, ok := r.byDevice[deviceID]
	if !ok {
		return -1, false
	}
	if !r.channels[track].upgrade(class) {
		return track, false
	}
	r.logger.Printf("Registry: device %d on track %d upgraded to %s", deviceID, track, class)
	return track, true
}

// Binding returns the binding on track, if any.
func (r *Registry) Binding(track int) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if track < 0 || track >= len(r.channels) {
		return Binding{}, false
	}
	return r.channels[track].current()
}

// Bindings returns every current binding keyed by track.
func (r *Registry) Bindings() map[int]Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]Binding, len(r.byDevice))
	for _, track := range r.byDevice {
		if b, bound := r.channels[track].current(); bound {
			out[track] = b
		}
	}
	return out
}

// Each calls fn for every channel in index order.
func (r *Registry) Each(fn func(*Channel)) {
	r.mu.RLock()
	channels := append([]*Channel(nil), r.channels...)
	r.mu.RUnlock()

	for _, ch := range channels {
		fn(ch)
	}
}

// Snapshots returns a snapshot of every channel in index order.
func (r *Registry) Snapshots() []Snapshot {
	var out []Snapshot
	r.Each(func(ch *Channel) {
		out = append(out, ch.Snapshot())
	})
	return out
}
