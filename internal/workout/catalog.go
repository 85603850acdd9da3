package workout

import (
	"fmt"
	"strconv"
)

const (
	defaultCadence = 90
	// zone 2 upper bound as a share of maximum heart rate
	heartRateZone2Percent = 67
)

// steady builds a dual segment at percent of baseline and the default cadence.
func steady(name string, minutes int, percent int) Segment {
	return Segment{
		Name:        name,
		DurationSec: minutes * 60,
		TargetType:  TargetDual,
		TargetValue: TargetValue(strconv.Itoa(percent*dualRateFactor + defaultCadence)),
	}
}

// ramp builds a dual segment whose percent moves from startPercent to
// endPercent at the default cadence.
func ramp(name string, minutes int, startPercent, endPercent int) Segment {
	seg := steady(name, minutes, startPercent)
	seg.RampTo = TargetValue(strconv.Itoa(endPercent*dualRateFactor + defaultCadence))
	return seg
}

func heartRateZone2(minutes int) Segment {
	return Segment{
		Name:        "Zone 2",
		DurationSec: minutes * 60,
		TargetType:  TargetHeartRatePercent,
		TargetValue: TargetValue(strconv.Itoa(heartRateZone2Percent)),
	}
}

// intervals is a 3 minute warmup followed by n work/recovery pairs. The
// first work interval is 5 minutes, the rest 4.
func intervals(n int) []Segment {
	out := []Segment{steady("Warmup", 3, 65)}
	for i := 1; i <= n; i++ {
		work := 4
		if i == 1 {
			work = 5
		}
		out = append(out,
			steady(fmt.Sprintf("Interval %d", i), work, 90),
			steady(fmt.Sprintf("Recovery %d", i), 3, 65))
	}
	return out
}

func repeat(n int, work, rest Segment) []Segment {
	out := make([]Segment, 0, 2*n)
	for i := 1; i <= n; i++ {
		w, r := work, rest
		w.Name = fmt.Sprintf("%s %d", work.Name, i)
		r.Name = fmt.Sprintf("%s %d", rest.Name, i)
		out = append(out, w, r)
	}
	return out
}

func concat(parts ...[]Segment) []Segment {
	var out []Segment
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Catalog is the built-in workout library.
var Catalog = []Workout{
	{
		Name: "30 Min Endurance",
		Segments: []Segment{
			steady("Warmup", 5, 50),
			steady("Main set", 20, 65),
			steady("Cooldown", 5, 50),
		},
	},
	{
		Name: "20 Min FTP Test",
		Segments: []Segment{
			steady("Warmup", 5, 50),
			steady("Opener", 3, 70),
			steady("Recovery", 2, 50),
			steady("Test", 20, 105),
			steady("Cooldown", 5, 40),
		},
	},
	{
		Name: "5x5 Threshold Intervals",
		Segments: concat(
			[]Segment{steady("Warmup", 5, 50)},
			repeat(5, steady("Threshold", 5, 100), steady("Recovery", 3, 50)),
		),
	},
	{
		Name: "VO2max 4x4",
		Segments: concat(
			[]Segment{steady("Warmup", 10, 50)},
			repeat(4, steady("VO2max", 4, 120), steady("Recovery", 4, 50)),
		),
	},
	{
		Name: "Recovery Spin",
		Segments: []Segment{
			ramp("Warmup", 10, 40, 45),
			steady("Easy spin", 25, 45),
			ramp("Cooldown", 10, 45, 35),
		},
	},
	{Name: "Intervals - 30m", Segments: intervals(4)},
	{Name: "Intervals - 60m", Segments: intervals(8)},
	{
		Name:     "Intervals - 30m, HR Zone 2 - 60m",
		Segments: append(intervals(4), heartRateZone2(60)),
	},
	{Name: "HR Zone 2 - 30 Min", Segments: []Segment{heartRateZone2(30)}},
	{Name: "HR Zone 2 - 60 Min", Segments: []Segment{heartRateZone2(60)}},
	{
		Name: "Cadence Pyramid",
		Segments: []Segment{
			{Name: "Warmup", DurationSec: 300, TargetType: TargetBaselinePercent, TargetValue: "55"},
			{Name: "Spin 90", DurationSec: 120, TargetType: TargetCompanionRate, TargetValue: "90"},
			{Name: "Spin 100", DurationSec: 120, TargetType: TargetCompanionRate, TargetValue: "100"},
			{Name: "Spin 110", DurationSec: 60, TargetType: TargetCompanionRate, TargetValue: "110"},
			{Name: "Spin 100", DurationSec: 120, TargetType: TargetCompanionRate, TargetValue: "100"},
			{Name: "Spin 90", DurationSec: 120, TargetType: TargetCompanionRate, TargetValue: "90"},
			{Name: "Free ride", DurationSec: 300, TargetType: TargetNone},
		},
	},
}

// Lookup returns the catalog workout with the given name.
func Lookup(name string) (Workout, bool) {
	for _, w := range Catalog {
		if w.Name == name {
			return w.Clone(), true
		}
	}
	return Workout{}, false
}
