package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedPower(p *Processor, values ...float64) {
	for _, v := range values {
		p.Apply(Reading{HasPrimary: true, Primary: v, HasCompanion: true, Companion: 90})
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

func TestProcessor_ConstantInputConverges(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	for i := 0; i < DefaultMedianWindow; i++ {
		feedPower(p, 240)
	}

	assert.Equal(t, 240.0, p.Values().Primary)
	assert.Equal(t, 90.0, p.Values().Companion)
}

func TestProcessor_StepToNewLevelConvergesWithinWindow(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	feedPower(p, 200, 200, 200, 200, 200)
	require.Equal(t, 200.0, p.Values().Primary)

	previous := p.Values().Primary
	for i := 1; i < DefaultMedianWindow; i++ {
		feedPower(p, 300)
		got := p.Values().Primary
		assert.GreaterOrEqual(t, got, previous, "sample %d", i)
		assert.Less(t, got, 300.0, "sample %d", i)
		previous = got
	}

	feedPower(p, 300)
	assert.Equal(t, 300.0, p.Values().Primary)

	feedPower(p, 300, 300)
	assert.Equal(t, 300.0, p.Values().Primary)
}

func TestProcessor_HeartRateStepConverges(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	for i := 0; i < DefaultMedianWindow; i++ {
		p.Apply(Reading{HasHeartRate: true, HeartRate: 120})
	}
	for i := 0; i < DefaultMedianWindow; i++ {
		p.Apply(Reading{HasHeartRate: true, HeartRate: 150})
	}

	assert.Equal(t, 150.0, p.Values().HeartRate)
}

func TestProcessor_EMASmoothing(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	feedPower(p, 100, 200)

	// median of [100 200] is 150, then 0.3*150 + 0.7*100
	assert.InDelta(t, 115.0, p.Values().Primary, 1e-9)
}

func TestProcessor_OutOfRangeSubstituted(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	feedPower(p, 200)

	received := p.Apply(Reading{HasPrimary: true, Primary: 3500})

	assert.False(t, received)
	v := p.Values()
	assert.Equal(t, 200.0, v.Primary)
	assert.Equal(t, 200.0, v.RawPrimary, "raw value is replaced by the last accepted one")
	assert.Equal(t, []float64{200}, p.RawHistory(KindPrimary))

	assert.False(t, p.Apply(Reading{HasPrimary: true, Primary: -1}))
	assert.False(t, p.Apply(Reading{HasCompanion: true, Companion: 255}))
	assert.False(t, p.Apply(Reading{HasHeartRate: true, HeartRate: 0}))
}

func TestProcessor_SingleOutlierDoesNotMoveOutput(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	feedPower(p, 200, 200, 200, 200, 200)

	feedPower(p, 2900)
	assert.Equal(t, 200.0, p.Values().Primary)

	feedPower(p, 200)
	assert.Equal(t, 200.0, p.Values().Primary)
}

func TestProcessor_SingleOutlierWithoutTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Primary.OutlierThreshold = 0
	p := NewProcessor(cfg)
	feedPower(p, 200, 200, 200, 200, 200)

	feedPower(p, 2900)

	// the median window absorbs it
	assert.Equal(t, 200.0, p.Values().Primary)
}

func TestProcessor_SustainedDeviationIsAccepted(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	feedPower(p, 100, 100, 100)

	for i := 0; i < DefaultOutlierRun; i++ {
		feedPower(p, 900)
		assert.Equal(t, 100.0, p.Values().Primary, "sample %d should be suppressed", i)
	}

	feedPower(p, 900)
	assert.Equal(t, 900.0, p.Values().Primary)

	feedPower(p, 910)
	assert.InDelta(t, 900.0, p.Values().Primary, 10)
}

func TestProcessor_InterruptedRunIsForgotten(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	feedPower(p, 100, 100, 100)

	feedPower(p, 900, 900, 900, 100, 900)

	assert.Equal(t, 100.0, p.Values().Primary)
}

func TestProcessor_ZeroCut(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	feedPower(p, 250, 250, 250)
	require.Equal(t, 250.0, p.Values().Primary)

	p.Apply(Reading{HasPrimary: true, Primary: 250, HasCompanion: true, Companion: 5})

	v := p.Values()
	assert.Equal(t, 0.0, v.Primary)
	assert.True(t, v.ZeroCut)
	assert.Empty(t, p.RawHistory(KindPrimary))

	received := p.Apply(Reading{HasPrimary: true, Primary: 300})
	assert.True(t, received)
	assert.Equal(t, 0.0, p.Values().Primary, "primary stays at zero until the companion recovers")
	assert.Equal(t, 300.0, p.Values().RawPrimary)

	p.Apply(Reading{HasPrimary: true, Primary: 180, HasCompanion: true, Companion: 85})
	v = p.Values()
	assert.False(t, v.ZeroCut)
	assert.Equal(t, 180.0, v.Primary)
}

func TestProcessor_NoCompanionNoZeroCut(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	p.Apply(Reading{HasPrimary: true, Primary: 150})

	assert.Equal(t, 150.0, p.Values().Primary)
	assert.False(t, p.Values().ZeroCut)
}

func TestProcessor_HeartRate(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	assert.True(t, p.Apply(Reading{HasHeartRate: true, HeartRate: 120}))
	assert.True(t, p.Apply(Reading{HasHeartRate: true, HeartRate: 120}))

	assert.Equal(t, 120.0, p.Values().HeartRate)
	assert.Equal(t, 0.0, p.Values().Primary)
}

func TestProcessor_RawHistoryBounded(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	for i := 1; i <= DefaultRawWindow+5; i++ {
		feedPower(p, float64(200+i))
	}

	raw := p.RawHistory(KindPrimary)
	require.Len(t, raw, DefaultRawWindow)
	assert.Equal(t, 206.0, raw[0])
	assert.Equal(t, 215.0, raw[len(raw)-1])
}

func TestProcessor_Reset(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	feedPower(p, 250, 250)
	p.Apply(Reading{HasHeartRate: true, HeartRate: 130})

	p.Reset()

	assert.Equal(t, Values{}, p.Values())
	assert.Empty(t, p.RawHistory(KindPrimary))

	feedPower(p, 90)
	assert.Equal(t, 90.0, p.Values().Primary, "first sample after a reset seeds the output")
}

func TestNewProcessor_NormalizesZeroConfig(t *testing.T) {
	p := NewProcessor(Config{Primary: SeriesConfig{Max: 3000}})

	assert.Equal(t, DefaultAlpha, p.cfg.Alpha)
	assert.Equal(t, DefaultMedianWindow, p.cfg.MedianWindow)
	assert.Equal(t, DefaultRawWindow, p.cfg.RawWindow)
}
