package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harunnryd/interviewer/pkg/adapters/stt"
	"github.com/harunnryd/interviewer/pkg/frames"
)

const sttSource = "mock_stt"

type STTConfig struct {
	SessionID string
	// Transcripts are emitted as final results, one per received audio frame.
	Transcripts []string
	// EmitInterim sends an interim copy of each transcript first.
	EmitInterim bool
	// EndAfterScript closes Results once every transcript was emitted.
	EndAfterScript bool
	// StartErr is returned from Start when set.
	StartErr error
}

type StreamingSTT struct {
	cfg STTConfig

	mu      sync.Mutex
	out     chan frames.Frame
	started bool
	closed  bool
	next    int
}

func NewSTT(cfg STTConfig) *StreamingSTT {
	return &StreamingSTT{cfg: cfg, out: make(chan frames.Frame, 16)}
}

func (s *StreamingSTT) Name() string { return "mock_stt" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	if s.cfg.StartErr != nil {
		return s.cfg.StartErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *StreamingSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.New("not started")
	}
	if s.closed || s.next >= len(s.cfg.Transcripts) {
		return nil
	}
	text := s.cfg.Transcripts[s.next]
	s.next++

	now := time.Now().UnixNano()
	if s.cfg.EmitInterim {
		s.out <- frames.NewTextFrame(s.cfg.SessionID, now, text, frames.FinalMeta(sttSource, false))
	}
	s.out <- frames.NewTextFrame(s.cfg.SessionID, now, text, frames.FinalMeta(sttSource, true))
	s.out <- frames.NewControlFrame(s.cfg.SessionID, now, frames.ControlFlush, map[string]string{
		frames.MetaSource: sttSource,
		frames.MetaReason: "speech_final",
	})
	if s.cfg.EndAfterScript && s.next >= len(s.cfg.Transcripts) {
		s.finishLocked()
	}
	return nil
}

func (s *StreamingSTT) Results() <-chan frames.Frame { return s.out }

func (s *StreamingSTT) finishLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.started = false
	close(s.out)
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
