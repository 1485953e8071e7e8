package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/interviewer/pkg/interview"
	"github.com/harunnryd/interviewer/pkg/questionbank"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type firstRand struct{}

func (firstRand) Intn(int) int { return 0 }

type staticRequester struct {
	text string
	err  error
}

func (r staticRequester) Request(ctx context.Context, turns []interview.TurnRecord) (string, error) {
	return r.text, r.err
}

func newSession(t *testing.T, req interview.FeedbackRequester) *interview.Session {
	t.Helper()
	s, err := interview.NewSession(questionbank.Default(), req, nil, interview.Options{
		AdvanceDelay: time.Millisecond,
		Rand:         firstRand{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	go s.Run(ctx)
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func waitState(t *testing.T, s *interview.Session, want interview.State) {
	t.Helper()
	waitFor(t, func() bool {
		snap, err := s.Snapshot(context.Background())
		return err == nil && snap.State == want
	})
}

func TestConsoleFullInterview(t *testing.T) {
	s := newSession(t, staticRequester{text: "Great job."})
	out := &syncBuffer{}
	c := New(s, strings.NewReader(""), out, nil)
	if err := s.AddListener(c); err != nil {
		t.Fatalf("add listener: %v", err)
	}
	ctx := context.Background()

	if _, err := c.Handle(ctx, "/start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(out.String(), "Interviewer: "+questionbank.DefaultOpener) {
		t.Fatalf("opener not rendered: %q", out.String())
	}
	for i := 0; i < questionbank.PlanSize; i++ {
		waitState(t, s, interview.StateAwaitingAnswer)
		if _, err := c.Handle(ctx, "answer"); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	waitState(t, s, interview.StateCompleted)
	if !strings.Contains(out.String(), "You: answer") {
		t.Fatalf("answer not rendered: %q", out.String())
	}
	if !strings.Contains(out.String(), "Interviewer: "+interview.DefaultClosing) {
		t.Fatalf("closing not rendered: %q", out.String())
	}

	if _, err := c.Handle(ctx, "/feedback"); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	waitFor(t, func() bool { return strings.Contains(out.String(), "Great job.") })
}

func TestConsoleEmptyLineSubmitsDraft(t *testing.T) {
	s := newSession(t, staticRequester{text: "ok"})
	out := &syncBuffer{}
	c := New(s, strings.NewReader(""), out, nil)
	if err := s.AddListener(c); err != nil {
		t.Fatalf("add listener: %v", err)
	}
	ctx := context.Background()
	if _, err := c.Handle(ctx, "/start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.Handle(ctx, "   "); !errors.Is(err, interview.ErrEmptyAnswer) {
		t.Fatalf("expected empty answer error, got %v", err)
	}
	if _, err := c.Handle(ctx, "/draft spoken words. "); err != nil {
		t.Fatalf("set draft: %v", err)
	}
	if _, err := c.Handle(ctx, ""); err != nil {
		t.Fatalf("submit draft: %v", err)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Turns) != 1 || snap.Turns[0].Answer != "spoken words." {
		t.Fatalf("unexpected turns: %+v", snap.Turns)
	}
}

func TestConsoleFeedbackFailure(t *testing.T) {
	s := newSession(t, staticRequester{err: errors.New("feedback unavailable")})
	out := &syncBuffer{}
	c := New(s, strings.NewReader(""), out, nil)
	if err := s.AddListener(c); err != nil {
		t.Fatalf("add listener: %v", err)
	}
	ctx := context.Background()
	if _, err := c.Handle(ctx, "/feedback"); err == nil || Describe(err) == err.Error() {
		t.Fatalf("expected described empty transcript error, got %v", err)
	}
	if _, err := c.Handle(ctx, "/start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < questionbank.PlanSize; i++ {
		waitState(t, s, interview.StateAwaitingAnswer)
		if _, err := c.Handle(ctx, "answer"); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	waitState(t, s, interview.StateCompleted)
	if _, err := c.Handle(ctx, "/feedback"); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	waitFor(t, func() bool { return strings.Contains(out.String(), "Feedback unavailable.") })
	waitState(t, s, interview.StateFailed)
	if strings.Contains(out.String(), "/feedback to try again") {
		t.Fatalf("failure should only offer a restart: %q", out.String())
	}
	_, err := c.Handle(ctx, "/feedback")
	if err == nil {
		t.Fatalf("expected feedback retry to be rejected after failure")
	}
	if msg := Describe(err); strings.Contains(msg, "/feedback") || !strings.Contains(msg, "/start") {
		t.Fatalf("unexpected hint after failure: %q", msg)
	}
}

func TestConsoleCommands(t *testing.T) {
	s := newSession(t, staticRequester{text: "ok"})
	out := &syncBuffer{}
	c := New(s, strings.NewReader(""), out, nil)
	if err := s.AddListener(c); err != nil {
		t.Fatalf("add listener: %v", err)
	}
	ctx := context.Background()

	if _, err := c.Handle(ctx, "/mic"); !errors.Is(err, interview.ErrVoiceUnsupported) {
		t.Fatalf("expected voice unsupported, got %v", err)
	}
	if !strings.Contains(out.String(), "Voice input is not available") {
		t.Fatalf("unsupported not rendered: %q", out.String())
	}
	if _, err := c.Handle(ctx, "/voice off"); err != nil {
		t.Fatalf("voice off: %v", err)
	}
	if _, err := c.Handle(ctx, "/voice"); err != nil {
		t.Fatalf("voice toggle: %v", err)
	}
	if !strings.Contains(out.String(), "[voice off]") || !strings.Contains(out.String(), "[voice on]") {
		t.Fatalf("voice changes not rendered: %q", out.String())
	}
	if _, err := c.Handle(ctx, "/voice loud"); err == nil {
		t.Fatalf("expected usage error")
	}
	if _, err := c.Handle(ctx, "/bogus"); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if _, err := c.Handle(ctx, "hello"); err == nil || !strings.Contains(Describe(err), "/start") {
		t.Fatalf("expected idle-state hint, got %v", err)
	}
	if _, err := c.Handle(ctx, "/status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "State: IDLE") {
		t.Fatalf("status not rendered: %q", out.String())
	}
	quit, err := c.Handle(ctx, "/quit")
	if err != nil || !quit {
		t.Fatalf("expected quit, got %v %v", quit, err)
	}
}

func TestConsoleRunStopsOnQuitAndEOF(t *testing.T) {
	s := newSession(t, staticRequester{text: "ok"})
	out := &syncBuffer{}
	c := New(s, strings.NewReader("/help\n/quit\nnever read\n"), out, nil)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Commands:") || !strings.Contains(out.String(), "Goodbye.") {
		t.Fatalf("unexpected output: %q", out.String())
	}

	s2 := newSession(t, staticRequester{text: "ok"})
	c2 := New(s2, strings.NewReader("/start\n"), &syncBuffer{}, nil)
	if err := c2.Run(context.Background()); err != nil {
		t.Fatalf("run until eof: %v", err)
	}
	snap, err := s2.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State != interview.StateAwaitingAnswer {
		t.Fatalf("expected interview started, got %s", snap.State)
	}
}
