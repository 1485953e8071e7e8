package interview

import "time"

type State int

const (
	StateIdle State = iota
	StateAwaitingAnswer
	StateAdvancing
	StateCompleted
	StateFeedbackPending
	StateFeedbackReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingAnswer:
		return "AWAITING_ANSWER"
	case StateAdvancing:
		return "ADVANCING"
	case StateCompleted:
		return "COMPLETED"
	case StateFeedbackPending:
		return "FEEDBACK_PENDING"
	case StateFeedbackReady:
		return "FEEDBACK_READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var validTransitions = map[State][]State{
	StateIdle:            {StateAwaitingAnswer},
	StateAwaitingAnswer:  {StateAdvancing, StateIdle},
	StateAdvancing:       {StateAwaitingAnswer, StateCompleted, StateIdle},
	StateCompleted:       {StateFeedbackPending, StateIdle},
	StateFeedbackPending: {StateFeedbackReady, StateFailed},
	StateFeedbackReady:   {StateIdle},
	StateFailed:          {StateIdle},
}

// StateChange represents a state transition event.
type StateChange struct {
	From      State
	To        State
	Timestamp time.Time
	Reason    string
}

// stateMachine is owned by the session loop and needs no locking.
type stateMachine struct {
	current State
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (m *stateMachine) transition(to State, reason string) (StateChange, error) {
	if !transitionValid(m.current, to) {
		return StateChange{}, &InvalidTransitionError{From: m.current, To: to}
	}
	change := StateChange{From: m.current, To: to, Timestamp: time.Now(), Reason: reason}
	m.current = to
	return change, nil
}
