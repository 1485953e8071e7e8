package voice

import "errors"

type State int

const (
	StateIdle State = iota
	StateListening
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

type EventKind int

const (
	// EventTranscript carries one finalized recognition result, already
	// terminated with a sentence delimiter.
	EventTranscript EventKind = iota
	// EventCaptureError reports that listening was forced off.
	EventCaptureError
)

func (k EventKind) String() string {
	switch k {
	case EventTranscript:
		return "transcript"
	case EventCaptureError:
		return "capture_error"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// ErrUnsupported is returned by StartListening when no recognizer or audio
// source is available.
var ErrUnsupported = errors.New("voice: speech recognition unsupported")

var errRecognitionEnded = errors.New("voice: recognition ended and restart budget is exhausted")

// SentenceDelimiter terminates every committed transcript.
const SentenceDelimiter = ". "
