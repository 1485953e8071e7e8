package interview

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/logging"
	"github.com/harunnryd/interviewer/pkg/metrics"
	"github.com/harunnryd/interviewer/pkg/questionbank"
	"github.com/harunnryd/interviewer/pkg/redact"
	"github.com/harunnryd/interviewer/pkg/voice"
)

const (
	DefaultAdvanceDelay = time.Second
	DefaultClosing      = "That's all the questions. Type /feedback to see your results."
)

// FeedbackRequester turns a completed transcript into prose feedback.
type FeedbackRequester interface {
	Request(ctx context.Context, turns []TurnRecord) (string, error)
}

// VoiceIO is the voice adapter as seen by the session.
type VoiceIO interface {
	Supported() bool
	StartListening(ctx context.Context) error
	StopListening()
	Speak(ctx context.Context, text string) error
	SetOutputEnabled(on bool)
	Events() <-chan voice.Event
}

type Options struct {
	// ID overrides the generated session identifier.
	ID           string
	AdvanceDelay time.Duration
	Closing      string
	VoiceOutput  bool
	Rand         questionbank.Rand
	Observer     metrics.Observer
	Logger       *slog.Logger
}

// Session is the interview state machine. All state is owned by the
// goroutine running Run; public methods submit work to it and wait.
// Listeners are invoked on that goroutine and must not call back into
// the session.
type Session struct {
	id        string
	bank      *questionbank.Bank
	requester FeedbackRequester
	voice     VoiceIO
	opts      Options
	observer  metrics.Observer
	logger    *slog.Logger

	queue   chan func()
	done    chan struct{}
	started chan struct{}

	// Loop-owned state below.
	ctx             context.Context
	fsm             stateMachine
	run             uint64
	plan            questionbank.Plan
	index           int
	turns           []TurnRecord
	entries         []Entry
	draft           string
	listening       bool
	voiceOutput     bool
	voiceDisabled   bool
	feedback        string
	feedbackErr     error
	advanceTimer    *time.Timer
	cancelFeedback  context.CancelFunc
	feedbackStarted time.Time
	listeners       []Listener
}

// NewSession validates the bank and builds an idle session. v may be nil
// for text-only operation.
func NewSession(bank *questionbank.Bank, requester FeedbackRequester, v VoiceIO, opts Options) (*Session, error) {
	if bank == nil {
		return nil, errors.New("interview: question bank is required")
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, errors.New("interview: feedback requester is required")
	}
	if opts.AdvanceDelay < 0 {
		opts.AdvanceDelay = 0
	}
	if strings.TrimSpace(opts.Closing) == "" {
		opts.Closing = DefaultClosing
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:          id,
		bank:        bank.Clone(),
		requester:   requester,
		voice:       v,
		opts:        opts,
		observer:    metrics.OrNoop(opts.Observer),
		logger:      logging.NewComponentLogger(logger, "session").With(slog.String("session_id", id)),
		queue:       make(chan func()),
		done:        make(chan struct{}),
		started:     make(chan struct{}),
		voiceOutput: opts.VoiceOutput,
	}
	if v != nil {
		v.SetOutputEnabled(opts.VoiceOutput)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Run processes operations, timer completions, feedback completions and
// voice events one at a time until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	select {
	case <-s.started:
		return errors.New("interview: session already running")
	default:
		close(s.started)
	}
	s.ctx = ctx
	var voiceEvents <-chan voice.Event
	if s.voice != nil {
		voiceEvents = s.voice.Events()
	}
	s.logger.Info("session_loop_started")
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			close(s.done)
			s.logger.Info("session_loop_stopped")
			return ctx.Err()
		case fn := <-s.queue:
			fn()
		case ev := <-voiceEvents:
			s.onVoiceEvent(ev)
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) AddListener(l Listener) error {
	return s.do(context.Background(), func() error {
		s.listeners = append(s.listeners, l)
		return nil
	})
}

// Start begins a new interview, discarding any interview in progress.
func (s *Session) Start(ctx context.Context) error {
	return s.do(ctx, s.start)
}

// SubmitAnswer records text as the answer to the current question.
func (s *Session) SubmitAnswer(ctx context.Context, text string) error {
	return s.do(ctx, func() error { return s.submit(text) })
}

// SubmitDraft submits the current draft buffer.
func (s *Session) SubmitDraft(ctx context.Context) error {
	return s.do(ctx, func() error { return s.submit(s.draft) })
}

// SetDraft replaces the draft buffer.
func (s *Session) SetDraft(ctx context.Context, text string) error {
	return s.do(ctx, func() error {
		s.setDraft(text)
		return nil
	})
}

// RequestFeedback sends the transcript for evaluation. It returns once the
// request is in flight; the outcome arrives as a state change.
func (s *Session) RequestFeedback(ctx context.Context) error {
	return s.do(ctx, s.requestFeedback)
}

func (s *Session) StartListening(ctx context.Context) error {
	return s.do(ctx, s.startListening)
}

func (s *Session) StopListening(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.stopListening("user")
		return nil
	})
}

func (s *Session) ToggleListening(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.listening {
			s.stopListening("user")
			return nil
		}
		return s.startListening()
	})
}

func (s *Session) SetVoiceOutput(ctx context.Context, on bool) error {
	return s.do(ctx, func() error {
		s.voiceOutput = on
		if s.voice != nil {
			s.voice.SetOutputEnabled(on)
		}
		s.notify(Event{Kind: EventVoiceOutputChanged, VoiceOutput: on})
		return nil
	})
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	errc := make(chan error, 1)
	select {
	case s.queue <- func() { errc <- fn() }:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// post schedules fn on the loop from a timer or worker goroutine.
func (s *Session) post(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.done:
	}
}

func (s *Session) start() error {
	state := s.fsm.current
	if state == StateFeedbackPending {
		return invalidState("start", state)
	}
	s.run++
	s.stopAdvanceTimer()
	s.stopListening("restart")
	if state != StateIdle {
		if err := s.transition(StateIdle, "restart"); err != nil {
			return err
		}
	}

	s.plan = s.bank.SelectPlan(s.opts.Rand)
	s.index = 0
	s.turns = nil
	s.entries = nil
	s.feedback = ""
	s.feedbackErr = nil
	s.setDraft("")

	if err := s.transition(StateAwaitingAnswer, "session started"); err != nil {
		return err
	}
	s.logger.Info("session_started", slog.Int("questions", s.plan.Len()))
	s.say(s.plan.At(0))
	return nil
}

func (s *Session) submit(text string) error {
	if state := s.fsm.current; state != StateAwaitingAnswer {
		return invalidState("submit answer", state)
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyAnswer
	}

	question := s.plan.At(s.index)
	s.turns = append(s.turns, TurnRecord{Question: question, Answer: text})
	s.appendEntry(Entry{Speaker: Candidate, Text: text})
	s.setDraft("")
	s.stopListening("answer submitted")
	if err := s.transition(StateAdvancing, "answer submitted"); err != nil {
		return err
	}
	s.observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventAnswerSubmitted,
		Time:  time.Now(),
		Value: float64(len(s.turns)),
		Tags:  map[string]string{"session_id": s.id},
	})
	s.logger.Info("answer_submitted",
		slog.Int("turn", len(s.turns)),
		slog.String("answer", redact.Preview(text, 80)))

	run := s.run
	s.advanceTimer = time.AfterFunc(s.opts.AdvanceDelay, func() {
		s.post(func() { s.advance(run) })
	})
	return nil
}

func (s *Session) advance(run uint64) {
	if run != s.run || s.fsm.current != StateAdvancing {
		return
	}
	s.advanceTimer = nil
	s.index++
	if s.index < s.plan.Len() {
		if err := s.transition(StateAwaitingAnswer, "next question"); err != nil {
			s.logger.Error("advance_failed", slog.String("error", err.Error()))
			return
		}
		s.say(s.plan.At(s.index))
		return
	}
	s.say(s.opts.Closing)
	if err := s.transition(StateCompleted, "plan exhausted"); err != nil {
		s.logger.Error("complete_failed", slog.String("error", err.Error()))
	}
}

func (s *Session) requestFeedback() error {
	if len(s.turns) == 0 {
		return ErrEmptyTranscript
	}
	if state := s.fsm.current; state != StateCompleted {
		return invalidState("request feedback", state)
	}
	if err := s.transition(StateFeedbackPending, "feedback requested"); err != nil {
		return err
	}

	turns := append([]TurnRecord(nil), s.turns...)
	run := s.run
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelFeedback = cancel
	s.feedbackStarted = time.Now()
	s.logger.Info("feedback_requested", slog.Int("turns", len(turns)))

	go func() {
		text, err := s.requester.Request(ctx, turns)
		s.post(func() { s.completeFeedback(run, text, err) })
	}()
	return nil
}

func (s *Session) completeFeedback(run uint64, text string, err error) {
	if s.cancelFeedback != nil {
		s.cancelFeedback()
		s.cancelFeedback = nil
	}
	if run != s.run || s.fsm.current != StateFeedbackPending {
		return
	}
	latency := time.Since(s.feedbackStarted)
	if err != nil {
		s.feedbackErr = err
		s.observer.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventFeedbackFailed,
			Time: time.Now(),
			Tags: map[string]string{"session_id": s.id, "reason": string(errorsx.Reason(err))},
		})
		s.logger.Warn("feedback_failed",
			slog.String("error", err.Error()),
			slog.String("reason", string(errorsx.Reason(err))))
		_ = s.transition(StateFailed, "feedback failed")
		s.notify(Event{Kind: EventFeedback, Err: err})
		return
	}
	s.feedback = text
	s.observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventFeedbackLatency,
		Time:  time.Now(),
		Value: float64(latency.Milliseconds()),
		Tags:  map[string]string{"session_id": s.id},
	})
	s.logger.Info("feedback_ready", slog.Duration("latency", latency))
	_ = s.transition(StateFeedbackReady, "feedback received")
	s.notify(Event{Kind: EventFeedback, Feedback: text})
}

func (s *Session) startListening() error {
	if s.voice == nil || s.voiceDisabled || !s.voice.Supported() {
		s.disableVoice()
		return ErrVoiceUnsupported
	}
	if state := s.fsm.current; state != StateAwaitingAnswer {
		return invalidState("start listening", state)
	}
	if s.listening {
		return nil
	}
	if err := s.voice.StartListening(s.ctx); err != nil {
		if errors.Is(err, voice.ErrUnsupported) {
			s.disableVoice()
			return ErrVoiceUnsupported
		}
		s.logger.Warn("listening_failed", slog.String("error", err.Error()))
		s.notify(Event{Kind: EventVoiceError, Err: err})
		return err
	}
	s.listening = true
	s.notify(Event{Kind: EventListeningChanged, Listening: true})
	return nil
}

func (s *Session) stopListening(reason string) {
	if !s.listening {
		return
	}
	s.voice.StopListening()
	s.listening = false
	s.logger.Debug("listening_stopped", slog.String("reason", reason))
	s.notify(Event{Kind: EventListeningChanged, Listening: false})
}

// disableVoice surfaces the unsupported signal once per session.
func (s *Session) disableVoice() {
	if s.voiceDisabled {
		return
	}
	s.voiceDisabled = true
	s.logger.Warn("voice_input_unsupported")
	s.notify(Event{Kind: EventVoiceError, Err: ErrVoiceUnsupported})
}

func (s *Session) onVoiceEvent(ev voice.Event) {
	switch ev.Kind {
	case voice.EventTranscript:
		if !s.listening || s.fsm.current != StateAwaitingAnswer {
			s.logger.Debug("transcript_ignored", slog.String("state", s.fsm.current.String()))
			return
		}
		s.setDraft(s.draft + ev.Text)
	case voice.EventCaptureError:
		if !s.listening {
			return
		}
		s.listening = false
		s.notify(Event{Kind: EventListeningChanged, Listening: false})
		s.notify(Event{Kind: EventVoiceError, Err: ev.Err})
	}
}

func (s *Session) say(text string) {
	s.appendEntry(Entry{Speaker: Interviewer, Text: text})
	if s.voice == nil || !s.voiceOutput {
		return
	}
	if err := s.voice.Speak(s.ctx, text); err != nil {
		s.logger.Warn("narration_failed", slog.String("error", err.Error()))
	}
}

func (s *Session) appendEntry(e Entry) {
	s.entries = append(s.entries, e)
	s.notify(Event{Kind: EventEntryAdded, Entry: e})
}

func (s *Session) setDraft(text string) {
	if text == s.draft {
		return
	}
	s.draft = text
	s.notify(Event{Kind: EventDraftChanged, Draft: text})
}

func (s *Session) transition(to State, reason string) error {
	change, err := s.fsm.transition(to, reason)
	if err != nil {
		return err
	}
	s.observer.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventSessionState,
		Time: change.Timestamp,
		Tags: map[string]string{"session_id": s.id, "from": change.From.String(), "to": change.To.String()},
	})
	s.logger.Debug("state_changed",
		slog.String("from", change.From.String()),
		slog.String("to", change.To.String()),
		slog.String("reason", reason))
	s.notify(Event{Kind: EventStateChanged, Change: change})
	return nil
}

func (s *Session) stopAdvanceTimer() {
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
}

func (s *Session) shutdown() {
	s.run++
	s.stopAdvanceTimer()
	if s.cancelFeedback != nil {
		s.cancelFeedback()
		s.cancelFeedback = nil
	}
	s.stopListening("shutdown")
}

func (s *Session) notify(ev Event) {
	for _, l := range s.listeners {
		l.OnSessionEvent(ev)
	}
}
