package interview

import (
	"errors"
	"fmt"

	"github.com/harunnryd/interviewer/pkg/errorsx"
)

var (
	ErrEmptyAnswer      = errorsx.ReasonedError{Err: errors.New("interview: answer is empty"), Reason: errorsx.ReasonValidation}
	ErrEmptyTranscript  = errorsx.ReasonedError{Err: errors.New("interview: no answers to send for feedback"), Reason: errorsx.ReasonValidation}
	ErrClosed           = errorsx.ReasonedError{Err: errors.New("interview: session closed"), Reason: errorsx.ReasonClosed}
	ErrVoiceUnsupported = errorsx.ReasonedError{Err: errors.New("interview: voice input unsupported"), Reason: errorsx.ReasonVoiceUnsupported}
)

// InvalidStateError reports an operation attempted in the wrong state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("interview: %s not allowed in state %s", e.Op, e.State)
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}

func invalidState(op string, s State) error {
	return errorsx.Wrap(&InvalidStateError{Op: op, State: s}, errorsx.ReasonInvalidState)
}
