package workout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		segment  Segment
		baseline float64
		want     Target
	}{
		{
			name:     "baseline percent",
			segment:  Segment{TargetType: TargetBaselinePercent, TargetValue: "75"},
			baseline: 200,
			want:     Target{Type: TargetBaselinePercent, Primary: 150},
		},
		{
			name:     "missing percent defaults to full baseline",
			segment:  Segment{TargetType: TargetBaselinePercent},
			baseline: 250,
			want:     Target{Type: TargetBaselinePercent, Primary: 250},
		},
		{
			name:     "malformed percent defaults to full baseline",
			segment:  Segment{TargetType: TargetBaselinePercent, TargetValue: "hard"},
			baseline: 250,
			want:     Target{Type: TargetBaselinePercent, Primary: 250},
		},
		{
			name:     "unset baseline falls back",
			segment:  Segment{TargetType: TargetBaselinePercent, TargetValue: "50"},
			baseline: 0,
			want:     Target{Type: TargetBaselinePercent, Primary: DefaultBaseline / 2},
		},
		{
			name:     "companion rate",
			segment:  Segment{TargetType: TargetCompanionRate, TargetValue: "95"},
			baseline: 200,
			want:     Target{Type: TargetCompanionRate, Companion: 95},
		},
		{
			name:     "dual packed",
			segment:  Segment{TargetType: TargetDual, TargetValue: "75090"},
			baseline: 200,
			want:     Target{Type: TargetDual, Primary: 150, Companion: 90},
		},
		{
			name:     "dual text",
			segment:  Segment{TargetType: TargetDual, TargetValue: "110/100"},
			baseline: 300,
			want:     Target{Type: TargetDual, Primary: 330, Companion: 100},
		},
		{
			name:     "dual percent only",
			segment:  Segment{TargetType: TargetDual, TargetValue: "80"},
			baseline: 200,
			want:     Target{Type: TargetDual, Primary: 160},
		},
		{
			name:     "none",
			segment:  Segment{TargetType: TargetNone, TargetValue: "75"},
			baseline: 200,
			want:     Target{Type: TargetNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.segment, tt.baseline))
		})
	}
}

func TestCompute_HeartRatePercent(t *testing.T) {
	seg := Segment{TargetType: TargetHeartRatePercent, TargetValue: "67"}

	assert.Equal(t, Target{Type: TargetHeartRatePercent, HeartRate: 127.3}, roundTarget(Compute(seg, 190)))
	assert.Equal(t, Target{Type: TargetHeartRatePercent, HeartRate: 220},
		Compute(Segment{TargetType: TargetHeartRatePercent, TargetValue: "?"}, 0),
		"malformed percent and unset baseline fall back to defaults")
}

func roundTarget(t Target) Target {
	round := func(v float64) float64 { return float64(int(v*10+0.5)) / 10 }
	t.Primary, t.Companion, t.HeartRate = round(t.Primary), round(t.Companion), round(t.HeartRate)
	return t
}

func TestComputeAt_Ramp(t *testing.T) {
	seg := Segment{DurationSec: 600, TargetType: TargetDual, TargetValue: "40090", RampTo: "45/90"}
	require.True(t, seg.Ramp())

	tests := []struct {
		elapsed time.Duration
		primary float64
	}{
		{-time.Second, 80},
		{0, 80},
		{5 * time.Minute, 85},
		{10 * time.Minute, 90},
		{time.Hour, 90},
	}
	for _, tt := range tests {
		got := ComputeAt(seg, 200, tt.elapsed)
		assert.InDelta(t, tt.primary, got.Primary, 1e-9, "at %v", tt.elapsed)
		assert.Equal(t, 90.0, got.Companion)
		assert.Equal(t, TargetDual, got.Type)
	}

	down := Segment{DurationSec: 100, TargetType: TargetBaselinePercent, TargetValue: "100", RampTo: "50"}
	assert.InDelta(t, 150.0, ComputeAt(down, 200, 50*time.Second).Primary, 1e-9)

	flat := Segment{DurationSec: 100, TargetType: TargetBaselinePercent, TargetValue: "100"}
	assert.False(t, flat.Ramp())
	assert.Equal(t, Compute(flat, 200), ComputeAt(flat, 200, 50*time.Second))

	none := Segment{DurationSec: 100, TargetType: TargetNone, RampTo: "50"}
	assert.False(t, none.Ramp())
	assert.Error(t, Workout{Segments: []Segment{none}}.Validate())
}

func TestTargetValue_UnmarshalJSON(t *testing.T) {
	var seg Segment
	require.NoError(t, json.Unmarshal([]byte(`{"duration_sec":60,"target_type":"dual","target_value":75090}`), &seg))
	assert.Equal(t, TargetValue("75090"), seg.TargetValue)
	assert.Equal(t, TargetDual, seg.TargetType)

	require.NoError(t, json.Unmarshal([]byte(`{"duration_sec":60,"target_type":"baseline_percent","target_value":"88"}`), &seg))
	assert.Equal(t, TargetValue("88"), seg.TargetValue)

	assert.Error(t, json.Unmarshal([]byte(`{"target_type":"sideways"}`), &seg))
}

func TestWorkout_Validate(t *testing.T) {
	assert.ErrorIs(t, Workout{}.Validate(), ErrEmptyWorkout)
	assert.Error(t, Workout{Segments: []Segment{{DurationSec: 0}}}.Validate())
	assert.NoError(t, Workout{Segments: []Segment{{DurationSec: 10}}}.Validate())
}

func TestCatalog(t *testing.T) {
	require.NotEmpty(t, Catalog)
	for _, w := range Catalog {
		assert.NoError(t, w.Validate(), w.Name)
	}

	w, ok := Lookup("5x5 Threshold Intervals")
	require.True(t, ok)
	assert.Len(t, w.Segments, 11)
	assert.Equal(t, "Threshold 1", w.Segments[1].Name)
	assert.Equal(t, Target{Type: TargetDual, Primary: 220, Companion: 90}, Compute(w.Segments[1], 220))

	w.Segments[0].DurationSec = 1
	again, _ := Lookup("5x5 Threshold Intervals")
	assert.Equal(t, 300, again.Segments[0].DurationSec, "lookups return copies")

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestCatalog_TeacherShapes(t *testing.T) {
	spin, ok := Lookup("Recovery Spin")
	require.True(t, ok)
	require.Len(t, spin.Segments, 3)
	assert.True(t, spin.Segments[0].Ramp())
	assert.False(t, spin.Segments[1].Ramp())
	assert.InDelta(t, 90.0, ComputeAt(spin.Segments[0], 200, 10*time.Minute).Primary, 1e-9)
	assert.InDelta(t, 70.0, ComputeAt(spin.Segments[2], 200, 10*time.Minute).Primary, 1e-9)

	short, ok := Lookup("Intervals - 30m")
	require.True(t, ok)
	assert.Len(t, short.Segments, 9)
	assert.Equal(t, 32*time.Minute, short.TotalDuration())

	long, ok := Lookup("Intervals - 60m")
	require.True(t, ok)
	assert.Len(t, long.Segments, 17)
	assert.Equal(t, 60*time.Minute, long.TotalDuration())

	zone, ok := Lookup("HR Zone 2 - 30 Min")
	require.True(t, ok)
	require.Len(t, zone.Segments, 1)
	assert.Equal(t, TargetHeartRatePercent, zone.Segments[0].TargetType)

	mixed, ok := Lookup("Intervals - 30m, HR Zone 2 - 60m")
	require.True(t, ok)
	assert.Equal(t, 92*time.Minute, mixed.TotalDuration())
	assert.Equal(t, TargetHeartRatePercent, mixed.Segments[len(mixed.Segments)-1].TargetType)
}
