package feedback

import (
	"context"
	"errors"

	"github.com/harunnryd/interviewer/pkg/errorsx"
)

// Answer is one question/answer pair on the wire.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request is the body POSTed to the feedback endpoint.
type Request struct {
	UserAnswers []Answer `json:"userAnswers"`
}

// Response carries either feedback prose or an error message.
type Response struct {
	Feedback string `json:"feedback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Requester produces feedback for a transcript.
type Requester interface {
	Request(ctx context.Context, answers []Answer) (string, error)
}

var (
	// ErrEmptyTranscript is returned before any network call when there are no answers.
	ErrEmptyTranscript = errorsx.ReasonedError{Err: errors.New("feedback: no interview answers provided"), Reason: errorsx.ReasonValidation}
	// ErrUnavailable is the only failure callers see for upstream problems.
	ErrUnavailable = errors.New("feedback unavailable")
)

// Fixed messages returned by the endpoint.
const (
	MessageNoAnswers     = "No interview answers provided."
	MessageUpstreamError = "Failed to get feedback from AI."
	MessageBadRequest    = "Invalid request body."
)

func unavailable(reason errorsx.ReasonCode) error {
	return errorsx.WithReason(ErrUnavailable, reason)
}
