// Package workout describes structured workouts and computes per-segment targets.
package workout

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyWorkout is returned when a workout has no segments.
var ErrEmptyWorkout = errors.New("workout has no segments")

// TargetType selects how a segment's target value is interpreted.
type TargetType int

const (
	TargetNone             TargetType = iota // no target
	TargetBaselinePercent                    // percentage of the athlete baseline
	TargetCompanionRate                      // absolute companion rate (e.g. cadence)
	TargetDual                               // percentage and companion rate together
	TargetHeartRatePercent                   // percentage of the baseline as a heart rate
)

var targetTypeNames = map[TargetType]string{
	TargetNone:             "none",
	TargetBaselinePercent:  "baseline_percent",
	TargetCompanionRate:    "companion_rate",
	TargetDual:             "dual",
	TargetHeartRatePercent: "heart_rate_percent",
}

func (t TargetType) String() string {
	if name, ok := targetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("target_type(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t TargetType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value means none.
func (t *TargetType) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	if name == "" {
		*t = TargetNone
		return nil
	}
	for tt, n := range targetTypeNames {
		if n == name {
			*t = tt
			return nil
		}
	}
	return fmt.Errorf("unknown target type %q", name)
}

// Segment is one interval of a workout. When RampTo is set the target moves
// linearly from TargetValue to RampTo over the segment.
type Segment struct {
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	DurationSec int         `json:"duration_sec" yaml:"duration_sec"`
	TargetType  TargetType  `json:"target_type" yaml:"target_type"`
	TargetValue TargetValue `json:"target_value,omitempty" yaml:"target_value,omitempty"`
	RampTo      TargetValue `json:"ramp_to,omitempty" yaml:"ramp_to,omitempty"`
}

// Ramp reports whether the target changes during the segment.
func (s Segment) Ramp() bool {
	return strings.TrimSpace(string(s.RampTo)) != "" && s.TargetType != TargetNone
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration {
	return time.Duration(s.DurationSec) * time.Second
}

// Workout is an ordered list of segments.
type Workout struct {
	Name     string    `json:"name" yaml:"name"`
	Segments []Segment `json:"segments" yaml:"segments"`
}

// Empty reports whether the workout has nothing to run.
func (w Workout) Empty() bool {
	return len(w.Segments) == 0
}

// TotalDuration returns the sum of all segment durations.
func (w Workout) TotalDuration() time.Duration {
	var total time.Duration
	for _, seg := range w.Segments {
		total += seg.Duration()
	}
	return total
}

// Validate checks that the workout can be run.
func (w Workout) Validate() error {
	if w.Empty() {
		return ErrEmptyWorkout
	}
	for i, seg := range w.Segments {
		if seg.DurationSec <= 0 {
			return fmt.Errorf("segment %d: duration must be positive, got %d", i, seg.DurationSec)
		}
		if seg.TargetType == TargetNone && strings.TrimSpace(string(seg.RampTo)) != "" {
			return fmt.Errorf("segment %d: ramp_to needs a target type", i)
		}
	}
	return nil
}

// Clone returns a deep copy so a running session is unaffected by later edits.
func (w Workout) Clone() Workout {
	out := Workout{Name: w.Name}
	if w.Segments != nil {
		out.Segments = append([]Segment(nil), w.Segments...)
	}
	return out
}
