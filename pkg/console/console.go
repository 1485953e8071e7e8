package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/interview"
	"github.com/harunnryd/interviewer/pkg/logging"
)

const helpText = `Commands:
  /start           start a new interview
  /mic             toggle voice input
  /voice [on|off]  toggle spoken questions
  /draft [text]    show or replace the voice draft
  /feedback        request feedback on your answers
  /status          show the current state
  /help            show this help
  /quit            exit
Type an answer and press Enter to submit it. An empty line submits the voice draft.`

// Session is the part of interview.Session the console drives.
type Session interface {
	AddListener(l interview.Listener) error
	Start(ctx context.Context) error
	SubmitAnswer(ctx context.Context, text string) error
	SubmitDraft(ctx context.Context) error
	SetDraft(ctx context.Context, text string) error
	RequestFeedback(ctx context.Context) error
	ToggleListening(ctx context.Context) error
	SetVoiceOutput(ctx context.Context, on bool) error
	Snapshot(ctx context.Context) (interview.Snapshot, error)
}

// Console is a line-oriented front end: it reads commands and answers from
// in and renders session events to out.
type Console struct {
	session Session
	in      io.Reader
	out     io.Writer
	logger  *slog.Logger

	mu sync.Mutex
}

func New(session Session, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		session: session,
		in:      in,
		out:     out,
		logger:  logging.NewComponentLogger(logger, "console"),
	}
}

// Run registers the console as a session listener and processes input until
// /quit, end of input, or ctx cancellation. The session loop must already be
// running.
func (c *Console) Run(ctx context.Context) error {
	if err := c.session.AddListener(c); err != nil {
		return err
	}
	c.println("Mock interview. Type /start to begin or /help for commands.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line := <-lines:
			quit, err := c.Handle(ctx, line)
			if err != nil {
				c.reportError(err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Handle executes one input line. It reports quit=true for /quit.
func (c *Console) Handle(ctx context.Context, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false, c.session.SubmitDraft(ctx)
	}
	if !strings.HasPrefix(trimmed, "/") {
		return false, c.session.SubmitAnswer(ctx, line)
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "/start":
		return false, c.session.Start(ctx)
	case "/mic":
		return false, c.session.ToggleListening(ctx)
	case "/voice":
		return false, c.toggleVoice(ctx, arg)
	case "/draft":
		if arg == "" {
			return false, c.showDraft(ctx)
		}
		return false, c.session.SetDraft(ctx, arg)
	case "/feedback":
		return false, c.session.RequestFeedback(ctx)
	case "/status":
		return false, c.showStatus(ctx)
	case "/help":
		c.println(helpText)
		return false, nil
	case "/quit", "/exit":
		c.println("Goodbye.")
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %s, type /help", cmd)
	}
}

// OnSessionEvent renders one session event. It runs on the session goroutine.
func (c *Console) OnSessionEvent(ev interview.Event) {
	switch ev.Kind {
	case interview.EventEntryAdded:
		c.println(fmt.Sprintf("%s: %s", ev.Entry.Speaker, ev.Entry.Text))
	case interview.EventStateChanged:
		switch ev.Change.To {
		case interview.StateFeedbackPending:
			c.println("Getting feedback...")
		case interview.StateFailed:
			c.println("Feedback unavailable. Type /start for a new interview.")
		}
	case interview.EventDraftChanged:
		if ev.Draft != "" {
			c.println("(draft) " + ev.Draft)
		}
	case interview.EventListeningChanged:
		if ev.Listening {
			c.println("[mic on] Speak your answer, then press Enter to submit the draft.")
		} else {
			c.println("[mic off]")
		}
	case interview.EventVoiceOutputChanged:
		c.println("[voice " + onOff(ev.VoiceOutput) + "]")
	case interview.EventVoiceError:
		if errors.Is(ev.Err, interview.ErrVoiceUnsupported) {
			c.println("[mic] Voice input is not available; type your answers instead.")
			return
		}
		c.println("[mic error] Voice input stopped. Type /mic to try again.")
	case interview.EventFeedback:
		if ev.Err != nil {
			return
		}
		c.println("----- Feedback -----\n" + ev.Feedback + "\n--------------------")
	}
}

func (c *Console) toggleVoice(ctx context.Context, arg string) error {
	var on bool
	switch strings.ToLower(arg) {
	case "on":
		on = true
	case "off":
		on = false
	case "":
		snap, err := c.session.Snapshot(ctx)
		if err != nil {
			return err
		}
		on = !snap.VoiceOutput
	default:
		return fmt.Errorf("usage: /voice [on|off]")
	}
	return c.session.SetVoiceOutput(ctx, on)
}

func (c *Console) showDraft(ctx context.Context) error {
	snap, err := c.session.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Draft == "" {
		c.println("(draft is empty)")
		return nil
	}
	c.println("(draft) " + snap.Draft)
	return nil
}

func (c *Console) showStatus(ctx context.Context) error {
	snap, err := c.session.Snapshot(ctx)
	if err != nil {
		return err
	}
	c.println(fmt.Sprintf("State: %s", snap.State))
	if snap.CurrentQuestion != "" {
		c.println(fmt.Sprintf("Question %d of %d: %s", snap.Index+1, len(snap.Plan), snap.CurrentQuestion))
	}
	c.println(fmt.Sprintf("Answers: %d  Mic: %s  Voice: %s", len(snap.Turns), onOff(snap.Listening), onOff(snap.VoiceOutput)))
	return nil
}

func (c *Console) reportError(err error) {
	c.logger.Debug("command_failed",
		slog.String("error", err.Error()),
		slog.String("reason", string(errorsx.Reason(err))))
	c.println("! " + Describe(err))
}

// Describe turns a session error into a message for the candidate.
func Describe(err error) string {
	var stateErr *interview.InvalidStateError
	switch {
	case errors.Is(err, interview.ErrEmptyAnswer):
		return "Type an answer first."
	case errors.Is(err, interview.ErrEmptyTranscript):
		return "There are no answers yet. Type /start to begin an interview."
	case errors.Is(err, interview.ErrVoiceUnsupported):
		return "Voice input is not available."
	case errors.Is(err, interview.ErrClosed):
		return "The session has ended."
	case errors.As(err, &stateErr):
		return describeState(stateErr)
	default:
		return err.Error()
	}
}

func describeState(e *interview.InvalidStateError) string {
	switch e.State {
	case interview.StateIdle:
		return "No interview in progress. Type /start to begin."
	case interview.StateAdvancing:
		return "Hold on, the next question is coming."
	case interview.StateFeedbackPending:
		return "Feedback is on its way."
	case interview.StateCompleted:
		return "The interview is over. Type /feedback or /start."
	case interview.StateFeedbackReady, interview.StateFailed:
		return "The interview is over. Type /start for a new one."
	default:
		return fmt.Sprintf("Cannot %s right now.", e.Op)
	}
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
