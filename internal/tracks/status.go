package tracks

import "fmt"

// Status is a channel's connectivity state.
type Status int

const (
	StatusUnbound Status = iota // no device assigned
	StatusReady                 // device known, no sample yet
	StatusLive                  // samples arriving
	StatusStale                 // samples stopped arriving
)

func (s Status) String() string {
	switch s {
	case StatusUnbound:
		return "unbound"
	case StatusReady:
		return "ready"
	case StatusLive:
		return "live"
	case StatusStale:
		return "stale"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusUnbound, StatusReady, StatusLive, StatusStale} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown channel status %q", text)
}
