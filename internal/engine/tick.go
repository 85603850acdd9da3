package engine

import (
	"strconv"
	"time"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/metrics"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// tickResult holds what one tick changed, computed under lock and
// published after it is released.
type tickResult struct {
	transitions    []session.Transition
	alerts         []Alert
	segmentChanged bool
	segment        SegmentChange
	stale          []tracks.Snapshot
	status         session.Status
	telemetry      []Telemetry
}

// tick runs one tick: queued commands, the session machine, targets,
// liveness and statistics, then publishes the results.
func (e *Engine) tick(now time.Time) {
	res := e.handleTick(now, e.drainCommands())
	e.publish(res)
}

// handleTick processes a tick under lock and returns what to publish.
func (e *Engine) handleTick(now time.Time, cmds []command) tickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res tickResult
	for _, cmd := range cmds {
		e.applyLocked(cmd, now, &res)
	}

	tr := e.machine.Tick(now)
	res.transitions = append(res.transitions, tr.Transitions...)
	for _, a := range tr.Alerts {
		res.alerts = append(res.alerts, Alert{SessionID: e.sessionID, Segment: a.Segment, Remaining: a.Remaining})
	}
	if tr.SegmentChanged {
		res.segmentChanged = true
	}
	for _, t := range tr.Transitions {
		if t.From == session.StateCountdown && t.To == session.StateRunning {
			res.segmentChanged = true
		}
	}

	if res.segmentChanged && e.machine.State() == session.StateRunning {
		e.registry.Each(func(ch *tracks.Channel) { ch.ResetSegmentStats() })
		seg, _ := e.machine.CurrentSegment()
		res.segment = SegmentChange{SessionID: e.sessionID, Index: e.machine.Segment(), Segment: seg}
	} else {
		res.segmentChanged = false
	}
	// every tick, so ramp segments track the segment clock
	e.recomputeTargetsLocked(now)

	res.stale = e.liveness.Check(now)
	if e.machine.State() == session.StateRunning {
		e.registry.Each(func(ch *tracks.Channel) { ch.AccumulateStats() })
	}

	res.status = e.statusLocked(now)
	for _, snap := range e.registry.Snapshots() {
		if snap.Bound {
			res.telemetry = append(res.telemetry, telemetryFrom(snap, e.baselineLocked(snap.Index), e.targets[snap.Index]))
		}
	}
	return res
}

// publish notifies listeners. No lock is held, so listeners may call back
// into the engine.
func (e *Engine) publish(res tickResult) {
	metrics.TicksTotal.Inc()
	metrics.SessionState.Set(float64(res.status.State))

	for _, t := range res.transitions {
		e.logger.Printf("Engine: session %s -> %s", t.From, t.To)
	}
	if res.segmentChanged {
		e.logger.Printf("Engine: segment %d %q (%v, %s)", res.segment.Index, res.segment.Segment.Name,
			res.segment.Segment.Duration(), describeTarget(res.segment.Segment))
		e.segmentEvent.Notify(res.segment)
	}
	for _, a := range res.alerts {
		metrics.AlertsFiredTotal.WithLabelValues(strconv.Itoa(a.Remaining)).Inc()
		e.alertEvent.Notify(a)
	}

	e.sessionEvent.Notify(res.status)
	for _, t := range res.telemetry {
		e.telemetryEvent.Notify(t)
	}
}

func describeTarget(seg workout.Segment) string {
	if seg.TargetType == workout.TargetNone {
		return "no target"
	}
	desc := seg.TargetType.String() + " " + string(seg.TargetValue)
	if seg.Ramp() {
		desc += " -> " + string(seg.RampTo)
	}
	return desc
}
