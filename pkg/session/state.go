package session

import "fmt"

// State is the lifecycle position of a session.
type State int

const (
	StateInitial State = iota
	StatePolling
	StateConnected
	StateDisconnected
)

var stateNames = map[State]string{
	StateInitial:      "Initial",
	StatePolling:      "Polling",
	StateConnected:    "Connected",
	StateDisconnected: "Disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the verification verdict shown to the user.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeVerified
	OutcomeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeUnknown:  "Unknown",
	OutcomeVerified: "Verified",
	OutcomeFailed:   "Failed",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Snapshot is a consistent view of the observable session fields.
type Snapshot struct {
	State   State
	Outcome Outcome
	Message string
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s/%s %q", s.State, s.Outcome, s.Message)
}
