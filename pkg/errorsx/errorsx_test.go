package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonValidation)
	if Reason(err) != ReasonValidation {
		t.Fatalf("expected reason %s, got %s", ReasonValidation, Reason(err))
	}
	if !HasReason(err, ReasonValidation) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonVoiceCapture)
	second := Wrap(first, ReasonFeedbackUpstream)
	if Reason(second) != ReasonVoiceCapture {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestWithReasonOverrides(t *testing.T) {
	base := Wrap(assertErr{}, ReasonFeedbackUpstream)
	err := WithReason(base, ReasonFeedbackNetwork)
	if Reason(err) != ReasonFeedbackNetwork {
		t.Fatalf("expected outer reason, got %s", Reason(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to stay reachable")
	}
}

func TestReasonThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("submit: %w", Wrap(assertErr{}, ReasonInvalidState))
	if Reason(err) != ReasonInvalidState {
		t.Fatalf("expected reason through fmt wrap, got %s", Reason(err))
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
