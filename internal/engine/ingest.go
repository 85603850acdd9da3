package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/ant"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/filter"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
)

const (
	pumpBufferSize = 512
	// an unbound device is reported again after this long
	deviceSeenInterval = 30 * time.Second
)

// Feed queues a chunk of raw bytes for decoding. Chunks are processed in
// arrival order; chunk boundaries carry no meaning. Feed blocks while the
// queue is full and fails once the engine or ctx is done.
func (e *Engine) Feed(ctx context.Context, chunk []byte) error {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	if len(chunk) == 0 {
		return nil
	}
	buf := append([]byte(nil), chunk...)
	select {
	case e.chunks <- buf:
		return nil
	case <-e.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pump copies r into the engine until EOF, ctx cancellation or shutdown.
func (e *Engine) Pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, pumpBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := e.Feed(ctx, buf[:n]); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("engine: read input: %w", err)
		}
	}
}

// ingest runs one chunk through decoder, router and registry. It must only
// be called from the ingest goroutine (or a test standing in for it).
func (e *Engine) ingest(chunk []byte, now time.Time) {
	e.bytesIn.Add(uint64(len(chunk)))

	for _, frame := range e.decoder.Feed(chunk) {
		e.framesIn.Add(1)
		d, ok := e.router.Route(frame)
		if !ok {
			continue
		}
		e.dispatch(d, now)
	}
}

func (e *Engine) dispatch(d ant.Dispatch, now time.Time) {
	class := tracks.ClassForDeviceType(d.Identity.DeviceType)
	if !class.Known() {
		metrics.RecordDrop(metrics.DropUnknownPage)
		return
	}
	id := d.Identity.DeviceID

	// every frame is an announcement for class arbitration
	track, upgraded := e.registry.Announce(id, class)
	if upgraded {
		e.bindingEvent.Notify(BindingChange{Track: track, Bound: true, Binding: tracks.Binding{DeviceID: id, Class: class}})
	}
	if track < 0 {
		metrics.RecordDrop(metrics.DropUnbound)
		key := deviceKey{id: id, class: class}
		if last, ok := e.seen[key]; !ok || now.Sub(last) >= deviceSeenInterval {
			e.seen[key] = now
			e.logger.Printf("Engine: unbound device %d (%s) seen on radio channel %d", id, class, d.Channel)
			e.deviceEvent.Notify(DeviceSeen{DeviceID: id, Class: class, At: now})
		}
		return
	}
	if d.Announcement() {
		return
	}

	reading := filter.Reading{
		HasPrimary:   d.HasPrimary,
		Primary:      d.Primary,
		HasCompanion: d.HasCompanion,
		Companion:    d.Companion,
		HasHeartRate: d.HasHeartRate,
		HeartRate:    d.HeartRate,
	}
	for _, ch := range e.registry.Resolve(id, class) {
		snap, accepted := ch.Ingest(reading, now)
		if !accepted {
			continue
		}
		e.mu.Lock()
		t := telemetryFrom(snap, e.baselineLocked(snap.Index), e.targets[snap.Index])
		e.mu.Unlock()
		e.telemetryEvent.Notify(t)
	}
}
