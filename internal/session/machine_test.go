package session

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time {
	return t0.Add(d)
}

func secs(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

func oneSegment(seconds int) workout.Workout {
	return workout.Workout{Name: "single", Segments: []workout.Segment{
		{DurationSec: seconds, TargetType: workout.TargetBaselinePercent, TargetValue: "80"},
	}}
}

func newRunning(t *testing.T, w workout.Workout) *Machine {
	t.Helper()
	m := NewMachine(Config{Countdown: 5 * time.Second})
	require.NoError(t, m.Load(w))
	require.NoError(t, m.Start(t0))
	res := m.Tick(at(5 * time.Second))
	require.Equal(t, []Transition{{From: StateCountdown, To: StateRunning}}, res.Transitions)
	return m
}

func remainingMarks(alerts []Alert) []int {
	out := make([]int, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Remaining)
	}
	return out
}

func TestState_Text(t *testing.T) {
	for s := StateIdle; s <= StateFinished; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("sleeping")))
}

func TestMachine_StartWithoutWorkout(t *testing.T) {
	m := NewMachine(Config{})

	err := m.Start(t0)

	assert.ErrorIs(t, err, ErrNoWorkoutLoaded)
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_FullRun(t *testing.T) {
	m := NewMachine(Config{Countdown: 5 * time.Second})
	require.NoError(t, m.Load(oneSegment(10)))
	require.NoError(t, m.Start(t0))
	assert.Equal(t, StateCountdown, m.State())

	res := m.Tick(at(3 * time.Second))
	assert.Empty(t, res.Transitions)
	assert.Equal(t, 2, m.Status(at(3*time.Second)).CountdownSec)

	res = m.Tick(at(secs(5.4)))
	assert.Equal(t, []Transition{{From: StateCountdown, To: StateRunning}}, res.Transitions)
	assert.Equal(t, secs(0.4), m.Elapsed(at(secs(5.4))), "clocks start at the transition instant, not the tick")

	var finishedAt time.Duration
	for s := 6; s <= 20; s++ {
		res = m.Tick(at(time.Duration(s) * time.Second))
		if len(res.Transitions) > 0 {
			assert.Equal(t, []Transition{{From: StateRunning, To: StateFinished}}, res.Transitions)
			finishedAt = time.Duration(s) * time.Second
			break
		}
	}

	assert.Equal(t, StateFinished, m.State())
	assert.Equal(t, 15*time.Second, finishedAt)
	assert.Equal(t, 10*time.Second, m.Elapsed(at(time.Minute)))
	assert.Equal(t, 10, m.Status(at(time.Minute)).ElapsedSec)
}

func TestMachine_PauseExcludesPausedTime(t *testing.T) {
	m := newRunning(t, oneSegment(10))

	m.Tick(at(9 * time.Second))
	require.NoError(t, m.Pause(at(9*time.Second)))
	assert.Equal(t, 4*time.Second, m.Elapsed(at(11*time.Second)))

	res := m.Tick(at(11 * time.Second))
	assert.Empty(t, res.Alerts, "paused sessions do not tick")

	require.NoError(t, m.Resume(at(12*time.Second)))
	assert.Equal(t, 3*time.Second, m.PausedTotal(at(12*time.Second)))
	assert.Equal(t, 4*time.Second, m.Elapsed(at(12*time.Second)))

	res = m.Tick(at(17 * time.Second))
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, 9*time.Second, m.Elapsed(at(17*time.Second)))

	res = m.Tick(at(18 * time.Second))
	assert.Equal(t, StateFinished, m.State())
	assert.Equal(t, 10*time.Second, m.Elapsed(at(18*time.Second)))
	assert.Equal(t, 3, m.Status(at(18*time.Second)).PausedSec)
}

func TestMachine_AlertsFireOnCrossing(t *testing.T) {
	m := newRunning(t, oneSegment(10))
	// segment runs from 5s to 15s

	res := m.Tick(at(secs(8.8))) // 6.2s remaining
	assert.Empty(t, res.Alerts)

	res = m.Tick(at(secs(13.2))) // 1.8s remaining
	assert.Equal(t, []int{5, 4, 3, 2}, remainingMarks(res.Alerts))

	res = m.Tick(at(secs(14.2))) // 0.8s remaining
	assert.Equal(t, []int{1}, remainingMarks(res.Alerts))

	res = m.Tick(at(secs(15.2)))
	assert.Equal(t, []int{0}, remainingMarks(res.Alerts))
	assert.Equal(t, StateFinished, m.State())
}

func TestMachine_AlertsFireOncePerSegment(t *testing.T) {
	w := workout.Workout{Segments: []workout.Segment{{DurationSec: 8}, {DurationSec: 8}}}
	m := newRunning(t, w)

	var all []Alert
	for ms := 5000; ms <= 22000; ms += 250 {
		all = append(all, m.Tick(at(time.Duration(ms)*time.Millisecond)).Alerts...)
	}

	assert.Equal(t, StateFinished, m.State())
	require.Len(t, all, 12)
	for i, a := range all {
		assert.Equal(t, i/6, a.Segment)
		assert.Equal(t, 5-i%6, a.Remaining)
	}
}

func TestMachine_PauseDoesNotRefireAlerts(t *testing.T) {
	m := newRunning(t, oneSegment(10))

	res := m.Tick(at(secs(11.5))) // 3.5s remaining
	assert.Equal(t, []int{5, 4}, remainingMarks(res.Alerts))

	require.NoError(t, m.Pause(at(secs(11.5))))
	require.NoError(t, m.Resume(at(secs(20))))

	res = m.Tick(at(secs(20.1)))
	assert.Empty(t, res.Alerts)

	res = m.Tick(at(secs(21.6))) // 1.9s remaining
	assert.Equal(t, []int{3, 2}, remainingMarks(res.Alerts))
}

func TestMachine_SegmentAdvanceCarriesBoundary(t *testing.T) {
	w := workout.Workout{Segments: []workout.Segment{{DurationSec: 10}, {DurationSec: 20}, {DurationSec: 5}}}
	m := newRunning(t, w)

	res := m.Tick(at(secs(15.6)))
	assert.True(t, res.SegmentChanged)
	assert.Equal(t, 1, res.Segment)
	assert.Equal(t, secs(0.6), m.SegmentElapsed(at(secs(15.6))))
	assert.Equal(t, secs(10.6), m.Elapsed(at(secs(15.6))))

	// a long stall crosses two boundaries at once
	res = m.Tick(at(60 * time.Second))
	assert.Equal(t, StateFinished, m.State())
	assert.Equal(t, []Transition{{From: StateRunning, To: StateFinished}}, res.Transitions)
	assert.Equal(t, 35*time.Second, m.Elapsed(at(60*time.Second)))
}

func TestMachine_SegmentIndexMonotonic(t *testing.T) {
	w := workout.Workout{Segments: []workout.Segment{{DurationSec: 3}, {DurationSec: 3}, {DurationSec: 3}}}
	m := newRunning(t, w)

	last := 0
	for ms := 5000; m.State() == StateRunning; ms += 300 {
		m.Tick(at(time.Duration(ms) * time.Millisecond))
		assert.GreaterOrEqual(t, m.Segment(), last)
		last = m.Segment()
	}
	assert.Equal(t, 2, last)
}

func TestMachine_Skip(t *testing.T) {
	w := workout.Workout{Segments: []workout.Segment{{DurationSec: 60}, {DurationSec: 60}}}
	m := newRunning(t, w)

	require.NoError(t, m.Skip(at(10*time.Second)))
	assert.Equal(t, 1, m.Segment())
	assert.Equal(t, time.Duration(0), m.SegmentElapsed(at(10*time.Second)))

	require.NoError(t, m.Skip(at(12*time.Second)))
	assert.Equal(t, StateFinished, m.State())
	assert.Equal(t, 7*time.Second, m.Elapsed(at(30*time.Second)))

	assert.ErrorIs(t, m.Skip(at(13*time.Second)), ErrInvalidTransition)
}

func TestMachine_StopFromAnyState(t *testing.T) {
	m := newRunning(t, oneSegment(30))
	m.Tick(at(10 * time.Second))
	require.NoError(t, m.Pause(at(10*time.Second)))

	m.Stop()

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, m.Segment())
	assert.Equal(t, time.Duration(0), m.Elapsed(at(20*time.Second)))
	assert.Equal(t, time.Duration(0), m.PausedTotal(at(20*time.Second)))
	assert.False(t, m.Workout().Empty(), "the workout stays loaded")

	require.NoError(t, m.Start(at(30*time.Second)))
	assert.Equal(t, StateCountdown, m.State())
}

func TestMachine_InvalidTransitions(t *testing.T) {
	m := NewMachine(Config{})
	require.NoError(t, m.Load(oneSegment(10)))

	assert.ErrorIs(t, m.Pause(t0), ErrInvalidTransition)
	assert.ErrorIs(t, m.Resume(t0), ErrInvalidTransition)

	require.NoError(t, m.Start(t0))
	assert.ErrorIs(t, m.Start(t0), ErrInvalidTransition)
	assert.ErrorIs(t, m.Load(oneSegment(5)), ErrInvalidTransition, "workouts are immutable once started")
}

func TestMachine_RestartAfterFinish(t *testing.T) {
	m := newRunning(t, oneSegment(2))
	m.Tick(at(8 * time.Second))
	require.Equal(t, StateFinished, m.State())

	require.NoError(t, m.Start(at(9*time.Second)))
	assert.Equal(t, StateCountdown, m.State())
	assert.Equal(t, time.Duration(0), m.Elapsed(at(9*time.Second)))
}

func TestMachine_ZeroCountdown(t *testing.T) {
	m := NewMachine(Config{Countdown: 0})
	require.NoError(t, m.Load(oneSegment(10)))
	require.NoError(t, m.Start(t0))

	res := m.Tick(t0)

	assert.Equal(t, StateRunning, m.State())
	assert.Len(t, res.Transitions, 1)
}

func TestMachine_Status(t *testing.T) {
	w := workout.Workout{Segments: []workout.Segment{{DurationSec: 10}, {DurationSec: 20}}}
	m := newRunning(t, w)
	m.Tick(at(secs(17.5)))

	st := m.Status(at(secs(17.5)))

	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 1, st.SegmentIndex)
	assert.Equal(t, 2, st.SegmentCount)
	assert.Equal(t, 12, st.ElapsedSec)
	assert.Equal(t, 2, st.SegmentElapsedSec)
	assert.Equal(t, 18, st.SegmentRemainingSec)
	assert.Equal(t, 0, st.CountdownSec)
}

func TestNewMachine_ThresholdsSortedAndDeduplicated(t *testing.T) {
	m := NewMachine(Config{AlertThresholds: []int{1, 3, 3, 2}})
	assert.Equal(t, []int{3, 2, 1}, m.thresholds)

	m = NewMachine(Config{})
	assert.Equal(t, DefaultAlertThresholds, m.thresholds)
}
