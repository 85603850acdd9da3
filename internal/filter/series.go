package filter

import (
	"math"
	"slices"
)

// Kind names a measurement stream.
type Kind int

const (
	KindPrimary Kind = iota
	KindCompanion
	KindHeartRate
)

func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindCompanion:
		return "companion"
	case KindHeartRate:
		return "heart_rate"
	default:
		return "unknown"
	}
}

// Outcome describes what Series.Add did with a sample.
type Outcome int

const (
	Accepted   Outcome = iota // moved the filtered value
	Suppressed                // in range but held back as a possible outlier
	Rejected                  // out of range, replaced by the last accepted value
)

// Series smooths one measurement kind: median over a short window followed
// by an exponential moving average.
type Series struct {
	kind       Kind
	cfg        SeriesConfig
	alpha      float64
	medianSize int
	outlierRun int

	raw     []float64 // ring of recent accepted samples, diagnostics only
	rawSize int
	window  []float64
	pending []float64

	filtered     float64
	primed       bool
	lastAccepted float64
	hasAccepted  bool
	lastRaw      float64
}

func newSeries(kind Kind, cfg SeriesConfig, c Config) *Series {
	return &Series{
		kind:       kind,
		cfg:        cfg,
		alpha:      c.Alpha,
		medianSize: c.MedianWindow,
		outlierRun: c.OutlierRun,
		rawSize:    c.RawWindow,
		raw:        make([]float64, 0, c.RawWindow),
		window:     make([]float64, 0, c.MedianWindow),
	}
}

// Add feeds one raw sample through range validation, outlier tolerance,
// median and EMA.
func (s *Series) Add(v float64) Outcome {
	if !s.inRange(v) {
		s.lastRaw = s.lastAccepted
		return Rejected
	}
	s.lastRaw = v
	s.lastAccepted = v
	s.hasAccepted = true
	s.pushRaw(v)

	if s.primed && s.cfg.OutlierThreshold > 0 && math.Abs(v-s.filtered) > s.cfg.OutlierThreshold {
		s.pending = append(s.pending, v)
		if len(s.pending) <= s.outlierRun {
			return Suppressed
		}
		// a sustained deviation is a genuine step change
		run := s.pending
		if len(run) > s.medianSize {
			run = run[len(run)-s.medianSize:]
		}
		s.window = append(s.window[:0], run...)
		s.pending = s.pending[:0]
		s.filtered = median(s.window)
		return Accepted
	}
	s.pending = s.pending[:0]

	s.window = append(s.window, v)
	if len(s.window) > s.medianSize {
		s.window = s.window[len(s.window)-s.medianSize:]
	}
	m := median(s.window)
	switch {
	case !s.primed:
		s.filtered = m
		s.primed = true
	case s.settled(m):
		// a full window of one value drops the remaining EMA lag
		s.filtered = m
	default:
		s.filtered = s.alpha*m + (1-s.alpha)*s.filtered
	}
	return Accepted
}

// settled reports whether the median window is full and every entry equals m.
func (s *Series) settled(m float64) bool {
	if len(s.window) < s.medianSize {
		return false
	}
	for _, v := range s.window {
		if v != m {
			return false
		}
	}
	return true
}

// Observe range-checks v and records it as the latest raw value without
// touching any buffer.
func (s *Series) Observe(v float64) bool {
	if !s.inRange(v) {
		s.lastRaw = s.lastAccepted
		return false
	}
	s.lastRaw = v
	return true
}

// Reset zeroes the output and clears every buffer.
func (s *Series) Reset() {
	s.raw = s.raw[:0]
	s.window = s.window[:0]
	s.pending = s.pending[:0]
	s.filtered = 0
	s.primed = false
	s.lastAccepted = 0
	s.hasAccepted = false
	s.lastRaw = 0
}

// Value returns the filtered output.
func (s *Series) Value() float64 { return s.filtered }

// LastAccepted returns the most recent in-range sample and whether one exists.
func (s *Series) LastAccepted() (float64, bool) { return s.lastAccepted, s.hasAccepted }

// LastRaw returns the latest raw value after substitution.
func (s *Series) LastRaw() float64 { return s.lastRaw }

// Raw returns a copy of the raw history, oldest first.
func (s *Series) Raw() []float64 { return slices.Clone(s.raw) }

func (s *Series) inRange(v float64) bool {
	return !math.IsNaN(v) && v >= s.cfg.Min && v <= s.cfg.Max
}

func (s *Series) pushRaw(v float64) {
	if len(s.raw) == s.rawSize {
		copy(s.raw, s.raw[1:])
		s.raw = s.raw[:len(s.raw)-1]
	}
	s.raw = append(s.raw, v)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
