package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harunnryd/interviewer/pkg/adapters/tts"
	"github.com/harunnryd/interviewer/pkg/frames"
)

const ttsSource = "mock_tts"

type TTSConfig struct {
	SessionID  string
	SampleRate int
	Channels   int
	// FrameBytes is the size of the silent frame emitted per utterance.
	FrameBytes int
}

// StreamingTTS emits one silent audio frame and ControlAudioReady per utterance.
type StreamingTTS struct {
	cfg TTSConfig
	out chan frames.Frame

	mu      sync.Mutex
	started bool
	closed  bool
	texts   []string
}

func NewTTS(cfg TTSConfig) *StreamingTTS {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.FrameBytes == 0 {
		cfg.FrameBytes = 320
	}
	return &StreamingTTS{cfg: cfg, out: make(chan frames.Frame, 16)}
}

func (s *StreamingTTS) Name() string { return "mock_tts" }

func (s *StreamingTTS) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *StreamingTTS) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	s.started = false
	return nil
}

func (s *StreamingTTS) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return errors.New("not started")
	}
	s.texts = append(s.texts, text)

	now := time.Now().UnixNano()
	s.out <- frames.NewAudioFrame(s.cfg.SessionID, now, make([]byte, s.cfg.FrameBytes), s.cfg.SampleRate, s.cfg.Channels, map[string]string{
		frames.MetaSource: ttsSource,
	})
	s.out <- frames.NewControlFrame(s.cfg.SessionID, now, frames.ControlAudioReady, map[string]string{
		frames.MetaSource: ttsSource,
	})
	return nil
}

func (s *StreamingTTS) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case <-s.out:
		default:
			return
		}
	}
}

func (s *StreamingTTS) Results() <-chan frames.Frame { return s.out }

// Texts returns every utterance sent for synthesis.
func (s *StreamingTTS) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

var _ tts.StreamingTTS = (*StreamingTTS)(nil)
