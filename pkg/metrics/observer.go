package metrics

import "time"

// Event names recorded by the interview components.
const (
	EventSessionState      = "session_state"
	EventAnswerSubmitted   = "answer_submitted"
	EventFeedbackLatency   = "feedback_latency"
	EventFeedbackFailed    = "feedback_failed"
	EventVoiceRestart      = "voice_restart"
	EventVoiceCaptureError = "voice_capture_error"
	EventVoiceSpeak        = "voice_speak"

	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"
	EventRateLimit     = "rate_limit"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// OrNoop returns obs, or a NoopObserver when obs is nil.
func OrNoop(obs Observer) Observer {
	if obs == nil {
		return NoopObserver{}
	}
	return obs
}
