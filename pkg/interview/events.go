package interview

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventEntryAdded
	EventDraftChanged
	EventListeningChanged
	EventVoiceOutputChanged
	EventVoiceError
	EventFeedback
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventEntryAdded:
		return "entry_added"
	case EventDraftChanged:
		return "draft_changed"
	case EventListeningChanged:
		return "listening_changed"
	case EventVoiceOutputChanged:
		return "voice_output_changed"
	case EventVoiceError:
		return "voice_error"
	case EventFeedback:
		return "feedback"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after every observable change. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind        EventKind
	Change      StateChange
	Entry       Entry
	Draft       string
	Listening   bool
	VoiceOutput bool
	Feedback    string
	Err         error
}

// Listener observes session events on the session goroutine.
type Listener interface {
	OnSessionEvent(ev Event)
}

type ListenerFunc func(ev Event)

func (f ListenerFunc) OnSessionEvent(ev Event) { f(ev) }

// Snapshot is a copy of the session state at one point in time.
type Snapshot struct {
	ID              string
	State           State
	Plan            []string
	Index           int
	CurrentQuestion string
	Turns           []TurnRecord
	Entries         []Entry
	Draft           string
	Listening       bool
	VoiceOutput     bool
	VoiceSupported  bool
	Feedback        string
	FeedbackErr     error
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:             s.id,
		State:          s.fsm.current,
		Plan:           s.plan.Questions(),
		Index:          s.index,
		Turns:          append([]TurnRecord(nil), s.turns...),
		Entries:        append([]Entry(nil), s.entries...),
		Draft:          s.draft,
		Listening:      s.listening,
		VoiceOutput:    s.voiceOutput,
		VoiceSupported: s.voice != nil && !s.voiceDisabled && s.voice.Supported(),
		Feedback:       s.feedback,
		FeedbackErr:    s.feedbackErr,
	}
	if s.fsm.current == StateAwaitingAnswer || s.fsm.current == StateAdvancing {
		snap.CurrentQuestion = s.plan.At(s.index)
	}
	return snap
}
