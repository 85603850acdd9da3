package workout

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseline is used when an athlete has no baseline set. For a heart
// rate track it reads as the age-predicted maximum heart rate.
const DefaultBaseline = 220

// DefaultPercent applies when a baseline-percent value is missing or malformed.
const DefaultPercent = 100

// dualRateFactor packs a dual target as percent*dualRateFactor + rate.
const dualRateFactor = 1000

// TargetValue is a segment's raw target scalar. It is kept as text so missing
// or malformed values can be told apart from real numbers.
type TargetValue string

// Float parses the value as a number.
func (v TargetValue) Float() (float64, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Dual splits a composite value into its percent and rate parts. Both the
// packed numeric form (75090 = 75 %, 90 rpm) and the text form "75/90" are
// accepted; numbers below 1000 carry a percent only.
func (v TargetValue) Dual() (percent float64, rate float64) {
	s := strings.TrimSpace(string(v))
	if p, r, found := strings.Cut(s, "/"); found {
		percent, _ = TargetValue(p).Float()
		rate, _ = TargetValue(r).Float()
		return percent, rate
	}
	n, ok := v.Float()
	if !ok || n < 0 {
		return 0, 0
	}
	if n < dualRateFactor {
		return n, 0
	}
	return math.Floor(n / dualRateFactor), math.Mod(n, dualRateFactor)
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (v *TargetValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TargetValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = TargetValue(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar.
func (v *TargetValue) UnmarshalYAML(node *yaml.Node) error {
	*v = TargetValue(node.Value)
	return nil
}

// Target is the numeric goal for the active segment.
type Target struct {
	Type      TargetType `json:"type"`
	Primary   float64    `json:"primary"`   // e.g. watts
	Companion float64    `json:"companion"` // e.g. rpm
	HeartRate float64    `json:"heart_rate"`
}

// Compute derives the target for seg given the athlete baseline. A baseline
// of zero or less means unset and falls back to DefaultBaseline.
func Compute(seg Segment, baseline float64) Target {
	if baseline <= 0 {
		baseline = DefaultBaseline
	}

	switch seg.TargetType {
	case TargetBaselinePercent:
		percent, ok := seg.TargetValue.Float()
		if !ok || percent <= 0 {
			percent = DefaultPercent
		}
		return Target{Type: TargetBaselinePercent, Primary: baseline * percent / 100}

	case TargetCompanionRate:
		rate, ok := seg.TargetValue.Float()
		if !ok || rate < 0 {
			rate = 0
		}
		return Target{Type: TargetCompanionRate, Companion: rate}

	case TargetDual:
		percent, rate := seg.TargetValue.Dual()
		if percent <= 0 {
			percent = DefaultPercent
		}
		return Target{Type: TargetDual, Primary: baseline * percent / 100, Companion: rate}

	case TargetHeartRatePercent:
		percent, ok := seg.TargetValue.Float()
		if !ok || percent <= 0 {
			percent = DefaultPercent
		}
		return Target{Type: TargetHeartRatePercent, HeartRate: baseline * percent / 100}

	default:
		return Target{Type: TargetNone}
	}
}

// ComputeAt is Compute for a point elapsed into seg. Ramp segments are
// interpolated linearly between the start and end targets; elapsed is
// clamped to the segment.
func ComputeAt(seg Segment, baseline float64, elapsed time.Duration) Target {
	start := Compute(seg, baseline)
	if !seg.Ramp() || seg.DurationSec <= 0 {
		return start
	}
	endSeg := seg
	endSeg.TargetValue = seg.RampTo
	end := Compute(endSeg, baseline)

	f := float64(elapsed) / float64(seg.Duration())
	f = math.Max(0, math.Min(1, f))
	lerp := func(a, b float64) float64 { return a + (b-a)*f }
	return Target{
		Type:      start.Type,
		Primary:   lerp(start.Primary, end.Primary),
		Companion: lerp(start.Companion, end.Companion),
		HeartRate: lerp(start.HeartRate, end.HeartRate),
	}
}
