package session

import (
	"fmt"
	"strings"
	"time"
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateCountdown
	StateRunning
	StatePaused
	StateFinished
)

var stateNames = [...]string{"idle", "countdown", "running", "paused", "finished"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", name)
}

// Transition records a state change.
type Transition struct {
	From State
	To   State
}

// Alert is an edge-triggered countdown notification near the end of a segment.
type Alert struct {
	Segment   int `json:"segment"`
	Remaining int `json:"remaining"` // seconds left when the threshold was crossed
}

// TickResult reports what one tick changed.
type TickResult struct {
	Transitions    []Transition
	Alerts         []Alert
	SegmentChanged bool
	Segment        int
}

// Status is the session status record shared with external collaborators.
type Status struct {
	SessionID           string    `json:"session_id,omitempty"`
	State               State     `json:"state"`
	SegmentIndex        int       `json:"segment_index"`
	SegmentCount        int       `json:"segment_count"`
	ElapsedSec          int       `json:"elapsed_sec"`
	SegmentElapsedSec   int       `json:"segment_elapsed_sec"`
	SegmentRemainingSec int       `json:"segment_remaining_sec"`
	CountdownSec        int       `json:"countdown_sec,omitempty"`
	PausedSec           int       `json:"paused_sec"`
	UpdatedAt           time.Time `json:"updated_at"`
}
