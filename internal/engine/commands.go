package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// ErrCommandQueueFull is returned when session commands arrive faster than ticks.
var ErrCommandQueueFull = errors.New("engine: command queue full")

// command represents session commands sent to the tick goroutine
type command int

const (
	cmdStart command = iota
	cmdPause
	cmdResume
	cmdStop
	cmdSkip
)

var commandNames = [...]string{"start", "pause", "resume", "stop", "skip"}

func (c command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Start begins the countdown of the loaded workout at the next tick.
func (e *Engine) Start() error { return e.submit(cmdStart) }

// Pause freezes the session clocks at the next tick.
func (e *Engine) Pause() error { return e.submit(cmdPause) }

// Resume continues a paused session at the next tick.
func (e *Engine) Resume() error { return e.submit(cmdResume) }

// Stop abandons the session at the next tick, clearing statistics and
// smoothing state on every channel.
func (e *Engine) Stop() error { return e.submit(cmdStop) }

// Skip ends the active segment at the next tick.
func (e *Engine) Skip() error { return e.submit(cmdSkip) }

// submit validates cmd against the current state and queues it.
func (e *Engine) submit(cmd command) error {
	if e.ctx.Err() != nil {
		return ErrClosed
	}

	e.mu.Lock()
	err := e.validateLocked(cmd)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case e.cmdChan <- cmd:
		e.logger.Printf("Engine: %s queued", cmd)
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// validateLocked checks cmd against the machine. MUST be called with mu held.
func (e *Engine) validateLocked(cmd command) error {
	state := e.machine.State()
	var allowed bool
	switch cmd {
	case cmdStart:
		if e.machine.Workout().Empty() {
			return session.ErrNoWorkoutLoaded
		}
		allowed = state == session.StateIdle || state == session.StateFinished
	case cmdPause, cmdSkip:
		allowed = state == session.StateRunning
	case cmdResume:
		allowed = state == session.StatePaused
	case cmdStop:
		allowed = true
	}
	if !allowed {
		return fmt.Errorf("%s while %s: %w", cmd, state, session.ErrInvalidTransition)
	}
	return nil
}

// drainCommands takes every queued command without blocking.
func (e *Engine) drainCommands() []command {
	var cmds []command
	for {
		select {
		case cmd := <-e.cmdChan:
			cmds = append(cmds, cmd)
		default:
			return cmds
		}
	}
}

// applyLocked runs one command against the machine. MUST be called with mu held.
func (e *Engine) applyLocked(cmd command, now time.Time, res *tickResult) {
	from := e.machine.State()
	segment := e.machine.Segment()

	var err error
	switch cmd {
	case cmdStart:
		if err = e.machine.Start(now); err == nil {
			e.sessionID = uuid.NewString()
			e.registry.Each(func(ch *tracks.Channel) { ch.ResetStats() })
		}
	case cmdPause:
		err = e.machine.Pause(now)
	case cmdResume:
		err = e.machine.Resume(now)
	case cmdStop:
		e.machine.Stop()
		e.sessionID = ""
		e.registry.Each(func(ch *tracks.Channel) { ch.ResetRun() })
	case cmdSkip:
		err = e.machine.Skip(now)
	}
	if err != nil {
		// the state moved on between validation and this tick
		e.logger.Printf("Engine: %s dropped: %v", cmd, err)
		return
	}

	if to := e.machine.State(); to != from {
		res.transitions = append(res.transitions, session.Transition{From: from, To: to})
	}
	if e.machine.State() == session.StateRunning && e.machine.Segment() != segment {
		res.segmentChanged = true
	}
}

// LoadWorkout replaces the workout. Only allowed while no session is in progress.
func (e *Engine) LoadWorkout(w workout.Workout) error {
	e.mu.Lock()
	err := e.machine.Load(w)
	if err == nil {
		e.recomputeTargetsLocked(e.opts.Clock())
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.logger.Printf("Engine: workout %q loaded (%d segments, %v)", w.Name, len(w.Segments), w.TotalDuration())
	e.workoutEvent.Notify(w.Clone())
	return nil
}

// Workout returns the loaded workout.
func (e *Engine) Workout() workout.Workout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Workout().Clone()
}

// Bind assigns a device to track.
func (e *Engine) Bind(track int, deviceID uint32, class tracks.DeviceClass) error {
	if err := e.registry.Bind(track, deviceID, class); err != nil {
		return err
	}
	if b, ok := e.registry.Binding(track); ok {
		e.bindingEvent.Notify(BindingChange{Track: track, Bound: true, Binding: b})
	}
	return nil
}

// Unbind clears the binding on track.
func (e *Engine) Unbind(track int) error {
	if err := e.registry.Unbind(track); err != nil {
		return err
	}
	e.bindingEvent.Notify(BindingChange{Track: track})
	return nil
}

// Bindings returns every current binding keyed by track.
func (e *Engine) Bindings() map[int]tracks.Binding {
	return e.registry.Bindings()
}

// SetBaseline sets the athlete baseline for track. Zero or less unsets it,
// falling back to the configured default.
func (e *Engine) SetBaseline(track int, baseline float64) error {
	if err := e.checkTrack(track); err != nil {
		return err
	}
	if baseline < 0 {
		baseline = 0
	}

	e.mu.Lock()
	if baseline == 0 {
		delete(e.baselines, track)
	} else {
		e.baselines[track] = baseline
	}
	e.recomputeTargetsLocked(e.opts.Clock())
	e.mu.Unlock()

	e.baselineEvent.Notify(BaselineChange{Track: track, Baseline: baseline})
	return nil
}

// Baseline returns the effective baseline for track.
func (e *Engine) Baseline(track int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baselineLocked(track)
}

func (e *Engine) baselineLocked(track int) float64 {
	if b, ok := e.baselines[track]; ok {
		return b
	}
	return e.opts.DefaultBaseline
}

// Resize recreates the track pool with n tracks. Bindings, statistics and
// smoothing state are lost, as are baselines for tracks that no longer exist.
func (e *Engine) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("resize to %d: %w", n, tracks.ErrTrackOutOfRange)
	}
	before := e.registry.Bindings()
	e.registry.Resize(n)

	e.mu.Lock()
	for track := range e.baselines {
		if track >= n {
			delete(e.baselines, track)
		}
	}
	e.recomputeTargetsLocked(e.opts.Clock())
	e.mu.Unlock()

	for track := range before {
		e.bindingEvent.Notify(BindingChange{Track: track})
	}
	return nil
}

// recomputeTargetsLocked derives every track's target from the active
// segment at now. MUST be called with mu held.
func (e *Engine) recomputeTargetsLocked(now time.Time) {
	clear(e.targets)
	state := e.machine.State()
	if state != session.StateCountdown && state != session.StateRunning && state != session.StatePaused {
		return
	}
	seg, ok := e.machine.CurrentSegment()
	if !ok {
		return
	}
	elapsed := e.machine.SegmentElapsed(now)
	for track := 0; track < e.registry.Size(); track++ {
		e.targets[track] = workout.ComputeAt(seg, e.baselineLocked(track), elapsed)
	}
}
