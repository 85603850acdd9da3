// Package session runs a structured workout: lifecycle states, segment
// clocks and edge-triggered countdown alerts. Every method takes the current
// time explicitly, so the machine is driven entirely by its caller.
package session

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

var (
	// ErrNoWorkoutLoaded is returned by Start when there is nothing to run.
	ErrNoWorkoutLoaded = errors.New("no workout loaded")
	// ErrInvalidTransition is returned for commands not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Default values
const (
	DefaultCountdown = 5 * time.Second
)

// DefaultAlertThresholds are the seconds-remaining marks that raise an alert.
var DefaultAlertThresholds = []int{5, 4, 3, 2, 1, 0}

// Config tunes the machine.
type Config struct {
	Countdown       time.Duration
	AlertThresholds []int // seconds remaining
}

// Machine is the session state machine. It is not safe for concurrent use.
type Machine struct {
	countdown  time.Duration
	thresholds []int // sorted descending

	workout workout.Workout
	state   State
	segment int

	countdownStart time.Time
	sessionStart   time.Time
	segmentStart   time.Time
	pausedAt       time.Time
	pausedTotal    time.Duration
	finalElapsed   time.Duration
	finalSegment   time.Duration

	prevRemaining time.Duration
	fired         map[int]bool
}

// NewMachine creates an idle Machine.
func NewMachine(cfg Config) *Machine {
	if cfg.Countdown < 0 {
		cfg.Countdown = 0
	}
	thresholds := slices.Clone(cfg.AlertThresholds)
	if thresholds == nil {
		thresholds = slices.Clone(DefaultAlertThresholds)
	}
	slices.Sort(thresholds)
	slices.Reverse(thresholds)
	thresholds = slices.Compact(thresholds)

	return &Machine{
		countdown:  cfg.Countdown,
		thresholds: thresholds,
		state:      StateIdle,
		fired:      make(map[int]bool),
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Segment returns the active segment index.
func (m *Machine) Segment() int { return m.segment }

// Workout returns the loaded workout.
func (m *Machine) Workout() workout.Workout { return m.workout }

// CurrentSegment returns the active segment, if any.
func (m *Machine) CurrentSegment() (workout.Segment, bool) {
	if m.segment < 0 || m.segment >= len(m.workout.Segments) {
		return workout.Segment{}, false
	}
	return m.workout.Segments[m.segment], true
}

// Load replaces the workout. The workout is immutable while a session is in
// progress, so loading is only allowed when Idle or Finished.
func (m *Machine) Load(w workout.Workout) error {
	if m.state != StateIdle && m.state != StateFinished {
		return fmt.Errorf("load workout while %s: %w", m.state, ErrInvalidTransition)
	}
	if !w.Empty() {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	m.workout = w.Clone()
	m.reset(StateIdle)
	return nil
}

// Start begins the countdown.
func (m *Machine) Start(now time.Time) error {
	if m.state != StateIdle && m.state != StateFinished {
		return fmt.Errorf("start while %s: %w", m.state, ErrInvalidTransition)
	}
	if m.workout.Empty() {
		return ErrNoWorkoutLoaded
	}
	m.reset(StateCountdown)
	m.countdownStart = now
	return nil
}

// Pause freezes both clocks.
func (m *Machine) Pause(now time.Time) error {
	if m.state != StateRunning {
		return fmt.Errorf("pause while %s: %w", m.state, ErrInvalidTransition)
	}
	m.state = StatePaused
	m.pausedAt = now
	return nil
}

// Resume continues a paused session. Start timestamps move forward by the
// pause length so elapsed time never includes it.
func (m *Machine) Resume(now time.Time) error {
	if m.state != StatePaused {
		return fmt.Errorf("resume while %s: %w", m.state, ErrInvalidTransition)
	}
	paused := now.Sub(m.pausedAt)
	if paused < 0 {
		paused = 0
	}
	m.sessionStart = m.sessionStart.Add(paused)
	m.segmentStart = m.segmentStart.Add(paused)
	m.pausedTotal += paused
	m.pausedAt = time.Time{}
	m.state = StateRunning
	return nil
}

// Stop abandons the session from any state and resets everything but the workout.
func (m *Machine) Stop() {
	m.reset(StateIdle)
}

// Skip ends the active segment immediately. Skipping the last segment finishes the session.
func (m *Machine) Skip(now time.Time) error {
	if m.state != StateRunning {
		return fmt.Errorf("skip while %s: %w", m.state, ErrInvalidTransition)
	}
	if m.segment >= len(m.workout.Segments)-1 {
		m.finish(now.Sub(m.sessionStart), now.Sub(m.segmentStart))
		return nil
	}
	m.enterSegment(m.segment+1, now)
	return nil
}

// Tick advances the clocks to now, moving from Countdown to Running, through
// segment boundaries and into Finished as needed. Countdown alerts for every
// threshold crossed since the previous tick are returned in descending order.
func (m *Machine) Tick(now time.Time) TickResult {
	res := TickResult{Segment: m.segment}

	if m.state == StateCountdown {
		if now.Sub(m.countdownStart) < m.countdown {
			return res
		}
		// both clocks start at the exact transition instant
		m.sessionStart = m.countdownStart.Add(m.countdown)
		m.enterSegment(0, m.sessionStart)
		m.state = StateRunning
		res.Transitions = append(res.Transitions, Transition{From: StateCountdown, To: StateRunning})
	}
	if m.state != StateRunning {
		return res
	}

	for {
		seg := m.workout.Segments[m.segment]
		remaining := seg.Duration() - now.Sub(m.segmentStart)
		res.Alerts = append(res.Alerts, m.crossed(remaining)...)
		m.prevRemaining = remaining
		if remaining > 0 {
			break
		}

		boundary := m.segmentStart.Add(seg.Duration())
		if m.segment == len(m.workout.Segments)-1 {
			m.finish(boundary.Sub(m.sessionStart), seg.Duration())
			res.Transitions = append(res.Transitions, Transition{From: StateRunning, To: StateFinished})
			break
		}
		m.enterSegment(m.segment+1, boundary)
		res.SegmentChanged = true
	}
	res.Segment = m.segment
	return res
}

// crossed returns alerts for thresholds t with prevRemaining > t >= remaining
// that have not fired yet in this segment.
func (m *Machine) crossed(remaining time.Duration) []Alert {
	var alerts []Alert
	for _, t := range m.thresholds {
		mark := time.Duration(t) * time.Second
		if m.fired[t] || m.prevRemaining <= mark || remaining > mark {
			continue
		}
		m.fired[t] = true
		alerts = append(alerts, Alert{Segment: m.segment, Remaining: t})
	}
	return alerts
}

func (m *Machine) enterSegment(index int, at time.Time) {
	m.segment = index
	m.segmentStart = at
	m.prevRemaining = m.workout.Segments[index].Duration()
	clear(m.fired)
}

func (m *Machine) finish(elapsed, segmentElapsed time.Duration) {
	m.finalElapsed = elapsed
	m.finalSegment = segmentElapsed
	m.state = StateFinished
}

func (m *Machine) reset(state State) {
	m.state = state
	m.segment = 0
	m.countdownStart = time.Time{}
	m.sessionStart = time.Time{}
	m.segmentStart = time.Time{}
	m.pausedAt = time.Time{}
	m.pausedTotal = 0
	m.finalElapsed = 0
	m.finalSegment = 0
	m.prevRemaining = math.MaxInt64
	clear(m.fired)
}

// Elapsed returns session time excluding pauses.
func (m *Machine) Elapsed(now time.Time) time.Duration {
	switch m.state {
	case StateRunning:
		return now.Sub(m.sessionStart)
	case StatePaused:
		return m.pausedAt.Sub(m.sessionStart)
	case StateFinished:
		return m.finalElapsed
	default:
		return 0
	}
}

// SegmentElapsed returns time spent in the active segment excluding pauses.
func (m *Machine) SegmentElapsed(now time.Time) time.Duration {
	switch m.state {
	case StateRunning:
		return now.Sub(m.segmentStart)
	case StatePaused:
		return m.pausedAt.Sub(m.segmentStart)
	case StateFinished:
		return m.finalSegment
	default:
		return 0
	}
}

// PausedTotal returns the accumulated paused time, including an ongoing pause.
func (m *Machine) PausedTotal(now time.Time) time.Duration {
	if m.state == StatePaused {
		return m.pausedTotal + now.Sub(m.pausedAt)
	}
	return m.pausedTotal
}

// Status builds the shared status record.
func (m *Machine) Status(now time.Time) Status {
	st := Status{
		State:             m.state,
		SegmentIndex:      m.segment,
		SegmentCount:      len(m.workout.Segments),
		ElapsedSec:        int(m.Elapsed(now) / time.Second),
		SegmentElapsedSec: int(m.SegmentElapsed(now) / time.Second),
		PausedSec:         int(m.PausedTotal(now) / time.Second),
		UpdatedAt:         now,
	}
	if seg, ok := m.CurrentSegment(); ok && (m.state == StateRunning || m.state == StatePaused) {
		left := max(seg.Duration()-m.SegmentElapsed(now), 0)
		st.SegmentRemainingSec = int(math.Ceil(left.Seconds()))
	}
	if m.state == StateCountdown {
		left := max(m.countdown-now.Sub(m.countdownStart), 0)
		st.CountdownSec = int(math.Ceil(left.Seconds()))
	}
	return st
}
