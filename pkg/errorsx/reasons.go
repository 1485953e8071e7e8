package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonValidation   ReasonCode = "validation"
	ReasonInvalidState ReasonCode = "invalid_state"
	ReasonClosed       ReasonCode = "closed"

	ReasonVoiceUnsupported ReasonCode = "voice_unsupported"
	ReasonVoiceCapture     ReasonCode = "voice_capture"
	ReasonVoicePlayback    ReasonCode = "voice_playback"

	ReasonSTTConnect ReasonCode = "stt_connect"
	ReasonTTSConnect ReasonCode = "tts_connect"

	ReasonFeedbackNetwork  ReasonCode = "feedback_network"
	ReasonFeedbackUpstream ReasonCode = "feedback_upstream"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"
)
