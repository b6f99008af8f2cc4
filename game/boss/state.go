package boss

import "fmt"

// StateID enumerates the controller states. The zero value means "not started".
type StateID int

const (
	StateIdle StateID = iota + 1
	StatePhase1
	StatePhase2
	StatePhase3
	StateDefensive
	StateDead
)

func (s StateID) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePhase1:
		return "phase1"
	case StatePhase2:
		return "phase2"
	case StatePhase3:
		return "phase3"
	case StateDefensive:
		return "defensive"
	case StateDead:
		return "dead"
	default:
		return "none"
	}
}

// MarshalText lets StateID appear by name in JSON payloads.
func (s StateID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *StateID) UnmarshalText(b []byte) error {
	for id := StateIdle; id <= StateDead; id++ {
		if id.String() == string(b) {
			*s = id
			return nil
		}
	}
	if string(b) == "none" {
		*s = 0
		return nil
	}
	return fmt.Errorf("boss: unknown state %q", b)
}

// Phase is a combat intensity tier.
type Phase int

const (
	Phase1 Phase = iota + 1
	Phase2
	Phase3
)

func (p Phase) String() string {
	switch p {
	case Phase1:
		return "phase1"
	case Phase2:
		return "phase2"
	case Phase3:
		return "phase3"
	default:
		return "none"
	}
}

// State maps the phase to its live combat state.
func (p Phase) State() StateID {
	switch p {
	case Phase2:
		return StatePhase2
	case Phase3:
		return StatePhase3
	default:
		return StatePhase1
	}
}

// phaseOf returns the phase a live combat state belongs to.
func phaseOf(s StateID) (Phase, bool) {
	switch s {
	case StatePhase1:
		return Phase1, true
	case StatePhase2:
		return Phase2, true
	case StatePhase3:
		return Phase3, true
	}
	return 0, false
}
