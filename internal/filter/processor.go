// Package filter turns noisy instantaneous sensor samples into stable values.
//
// Each channel owns a Processor holding one Series per measurement kind. The
// companion measurement gates the primary one: while the latest accepted
// companion value is below the activity threshold the primary output is held
// at exactly zero (zero-cut).
package filter

import "github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"

// Reading is one decoded sample set. Only fields with their Has flag set are applied.
type Reading struct {
	HasPrimary   bool
	Primary      float64
	HasCompanion bool
	Companion    float64
	HasHeartRate bool
	HeartRate    float64
}

// Values is a point-in-time copy of a Processor's outputs.
type Values struct {
	Primary   float64 `json:"primary"`
	Companion float64 `json:"companion"`
	HeartRate float64 `json:"heart_rate"`

	RawPrimary   float64 `json:"raw_primary"`
	RawCompanion float64 `json:"raw_companion"`
	RawHeartRate float64 `json:"raw_heart_rate"`
	ZeroCut      bool    `json:"zero_cut"`
}

// Processor is the per-channel smoothing pipeline. It is not safe for
// concurrent use; the owning channel serialises access.
type Processor struct {
	cfg       Config
	primary   *Series
	companion *Series
	heartRate *Series
	cut       bool
}

// NewProcessor creates a Processor. Zero fields in cfg fall back to defaults.
func NewProcessor(cfg Config) *Processor {
	cfg = cfg.normalized()
	return &Processor{
		cfg:       cfg,
		primary:   newSeries(KindPrimary, cfg.Primary, cfg),
		companion: newSeries(KindCompanion, cfg.Companion, cfg),
		heartRate: newSeries(KindHeartRate, cfg.HeartRate, cfg),
	}
}

// Apply feeds a reading through the pipeline. It reports whether any
// measurement passed range validation, which is what keeps a channel alive.
// The companion is applied first so a drop below the activity threshold
// zeroes the primary output on the same update.
func (p *Processor) Apply(r Reading) bool {
	received := false

	if r.HasCompanion {
		if p.add(p.companion, r.Companion) {
			received = true
		}
		if last, ok := p.companion.LastAccepted(); ok {
			below := last < p.cfg.ActivityThreshold
			if below && !p.cut {
				p.primary.Reset()
			}
			p.cut = below
		}
	}

	if r.HasPrimary {
		if p.cut {
			if p.primary.Observe(r.Primary) {
				received = true
			} else {
				metrics.SamplesRejectedTotal.WithLabelValues(KindPrimary.String()).Inc()
			}
		} else if p.add(p.primary, r.Primary) {
			received = true
		}
	}

	if r.HasHeartRate && p.add(p.heartRate, r.HeartRate) {
		received = true
	}
	return received
}

func (p *Processor) add(s *Series, v float64) bool {
	switch s.Add(v) {
	case Rejected:
		metrics.SamplesRejectedTotal.WithLabelValues(s.kind.String()).Inc()
		return false
	case Suppressed:
		metrics.OutliersSuppressedTotal.WithLabelValues(s.kind.String()).Inc()
	}
	return true
}

// Reset zeroes every output and clears all buffers.
func (p *Processor) Reset() {
	p.primary.Reset()
	p.companion.Reset()
	p.heartRate.Reset()
	p.cut = false
}

// Values returns the current outputs.
func (p *Processor) Values() Values {
	return Values{
		Primary:      p.primary.Value(),
		Companion:    p.companion.Value(),
		HeartRate:    p.heartRate.Value(),
		RawPrimary:   p.primary.LastRaw(),
		RawCompanion: p.companion.LastRaw(),
		RawHeartRate: p.heartRate.LastRaw(),
		ZeroCut:      p.cut,
	}
}

// RawHistory returns the recent accepted raw samples of kind, oldest first.
func (p *Processor) RawHistory(kind Kind) []float64 {
	switch kind {
	case KindPrimary:
		return p.primary.Raw()
	case KindCompanion:
		return p.companion.Raw()
	case KindHeartRate:
		return p.heartRate.Raw()
	}
	return nil
}
