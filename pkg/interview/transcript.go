package interview

type Speaker int

const (
	Interviewer Speaker = iota
	Candidate
)

func (s Speaker) String() string {
	switch s {
	case Interviewer:
		return "Interviewer"
	case Candidate:
		return "You"
	default:
		return "Unknown"
	}
}

// Entry is one line of the visible conversation.
type Entry struct {
	Speaker Speaker
	Text    string
}

// TurnRecord pairs a plan question with the submitted answer.
type TurnRecord struct {
	Question string
	Answer   string
}
