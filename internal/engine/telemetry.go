package engine

import (
	"fmt"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// Telemetry is the per-channel record published to collaborators.
type Telemetry struct {
	Track          int                `json:"track"`
	Bound          bool               `json:"bound"`
	DeviceID       uint32             `json:"device_id,omitempty"`
	Class          tracks.DeviceClass `json:"class"`
	Status         tracks.Status      `json:"status"`
	Primary        float64            `json:"primary"`
	Companion      float64            `json:"companion"`
	HeartRate      float64            `json:"heart_rate"`
	ZeroCut        bool               `json:"zero_cut"`
	Max            float64            `json:"max"`
	Average        float64            `json:"average"`
	SegmentAverage float64            `json:"segment_average"`
	Baseline       float64            `json:"baseline"`
	Target         workout.Target     `json:"target"`
	LastUpdate     time.Time          `json:"last_update"`
}

// Alert is a countdown alert for the active segment.
type Alert struct {
	SessionID string `json:"session_id"`
	Segment   int    `json:"segment"`
	Remaining int    `json:"remaining"`
}

// SegmentChange reports entry into a new segment.
type SegmentChange struct {
	SessionID string          `json:"session_id"`
	Index     int             `json:"index"`
	Segment   workout.Segment `json:"segment"`
}

// DeviceSeen reports an identity observed on air that no track is bound to.
type DeviceSeen struct {
	DeviceID uint32             `json:"device_id"`
	Class    tracks.DeviceClass `json:"class"`
	At       time.Time          `json:"at"`
}

// BindingChange reports a bind or unbind on a track.
type BindingChange struct {
	Track   int            `json:"track"`
	Bound   bool           `json:"bound"`
	Binding tracks.Binding `json:"binding"`
}

// BaselineChange reports a new baseline for a track. Zero means unset.
type BaselineChange struct {
	Track    int     `json:"track"`
	Baseline float64 `json:"baseline"`
}

// Snapshot is a consistent-enough view of the whole engine for queries.
type Snapshot struct {
	Session     session.Status `json:"session"`
	WorkoutName string         `json:"workout_name,omitempty"`
	Tracks      []Telemetry    `json:"tracks"`
}

type deviceKey struct {
	id    uint32
	class tracks.DeviceClass
}

func telemetryFrom(snap tracks.Snapshot, baseline float64, target workout.Target) Telemetry {
	t := Telemetry{
		Track:          snap.Index,
		Bound:          snap.Bound,
		Status:         snap.Status,
		Primary:        snap.Values.Primary,
		Companion:      snap.Values.Companion,
		HeartRate:      snap.Values.HeartRate,
		ZeroCut:        snap.Values.ZeroCut,
		Max:            snap.Stats.Max,
		Average:        snap.Stats.Average,
		SegmentAverage: snap.Stats.SegmentAverage,
		Baseline:       baseline,
		Target:         target,
		LastUpdate:     snap.LastUpdate,
	}
	if snap.Bound {
		t.DeviceID = snap.Binding.DeviceID
		t.Class = snap.Binding.Class
	}
	return t
}

// ListenTelemetry registers a buffered channel for telemetry records. The
// engine never waits on it: when the buffer is full the oldest queued record
// is evicted, so a slow reader falls behind by dropping history, not by
// stalling ingestion or the tick.
func (e *Engine) ListenTelemetry(ch chan Telemetry) func() {
	return e.telemetryEvent.Listen(ch)
}

// TelemetryDropped returns how many telemetry records were evicted from full
// listener buffers.
func (e *Engine) TelemetryDropped() uint64 {
	return e.telemetryEvent.Dropped()
}

// ListenSession registers a channel for session status records. Delivery is
// latest-wins: a slow reader sees the most recent status, not every one.
func (e *Engine) ListenSession(ch chan session.Status) func() {
	return e.sessionEvent.Listen(ch)
}

// ListenAlerts registers a countdown alert callback.
func (e *Engine) ListenAlerts(fn func(Alert)) func() {
	return e.alertEvent.Listen(fn)
}

// ListenSegments registers a segment change callback.
func (e *Engine) ListenSegments(fn func(SegmentChange)) func() {
	return e.segmentEvent.Listen(fn)
}

// ListenDevices registers a callback for unbound devices seen on air.
func (e *Engine) ListenDevices(fn func(DeviceSeen)) func() {
	return e.deviceEvent.Listen(fn)
}

// ListenBindings registers a callback for binding changes.
func (e *Engine) ListenBindings(fn func(BindingChange)) func() {
	return e.bindingEvent.Listen(fn)
}

// ListenBaselines registers a callback for baseline changes.
func (e *Engine) ListenBaselines(fn func(BaselineChange)) func() {
	return e.baselineEvent.Listen(fn)
}

// ListenWorkout registers a callback for workout loads.
func (e *Engine) ListenWorkout(fn func(workout.Workout)) func() {
	return e.workoutEvent.Listen(fn)
}

// Telemetry returns the current record for track.
func (e *Engine) Telemetry(track int) (Telemetry, error) {
	ch, err := e.registry.Channel(track)
	if err != nil {
		return Telemetry{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return telemetryFrom(ch.Snapshot(), e.baselineLocked(track), e.targets[track]), nil
}

// Snapshot returns the session status and every track's telemetry.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Session:     e.statusLocked(e.opts.Clock()),
		WorkoutName: e.machine.Workout().Name,
	}
	for _, s := range e.registry.Snapshots() {
		snap.Tracks = append(snap.Tracks, telemetryFrom(s, e.baselineLocked(s.Index), e.targets[s.Index]))
	}
	return snap
}

// Status returns the current session status record.
func (e *Engine) Status() session.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked(e.opts.Clock())
}

func (e *Engine) statusLocked(now time.Time) session.Status {
	st := e.machine.Status(now)
	st.SessionID = e.sessionID
	return st
}

// Tracks returns the number of tracks.
func (e *Engine) Tracks() int {
	return e.registry.Size()
}

func (e *Engine) checkTrack(track int) error {
	if track < 0 || track >= e.registry.Size() {
		return fmt.Errorf("track %d: %w", track, tracks.ErrTrackOutOfRange)
	}
	return nil
}
