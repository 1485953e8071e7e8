package interviewer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/interviewer/pkg/adapters/tts"
	"github.com/harunnryd/interviewer/pkg/configutil"
	"github.com/harunnryd/interviewer/pkg/feedback"
	"github.com/harunnryd/interviewer/pkg/interview"
	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/logging"
	"github.com/harunnryd/interviewer/pkg/metrics"
	"github.com/harunnryd/interviewer/pkg/questionbank"
	"github.com/harunnryd/interviewer/pkg/voice"
)

// IO carries the process-level resources the application is built around.
type IO struct {
	AudioIn  io.Reader
	AudioOut io.Writer
	Observer metrics.Observer
	Logger   *slog.Logger
}

// App is one wired interview: the session engine, its voice adapter and the
// feedback requester it talks to.
type App struct {
	Session   *interview.Session
	Voice     *voice.Adapter
	Requester feedback.Requester
}

// Close releases the voice adapter. The session stops when its Run context ends.
func (a *App) Close() error {
	if a.Voice == nil {
		return nil
	}
	return a.Voice.Close()
}

func Build(cfg Config, reg *ProviderRegistry, rio IO) (*App, error) {
	logger := rio.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := metrics.OrNoop(rio.Observer)

	bank, err := LoadQuestionBank(cfg)
	if err != nil {
		return nil, err
	}

	requester, err := BuildRequester(cfg, reg, observer, logger)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	sttFactory, err := reg.BuildSTTFactory(cfg.Vendors.STT.Provider, cfg)
	if err != nil {
		return nil, err
	}
	ttsFactory, err := reg.BuildTTSFactory(cfg.Vendors.TTS.Provider, cfg)
	if err != nil {
		return nil, err
	}
	var synth tts.StreamingTTS
	if ttsFactory != nil && rio.AudioOut != nil {
		synth = ttsFactory(sessionID)
	}
	va := voice.NewAdapter(voice.Config{
		SessionID:      sessionID,
		SampleRate:     cfg.Audio.SampleRate,
		ChunkBytes:     cfg.Audio.ChunkBytes,
		Pace:           cfg.Audio.Pace,
		MaxRestarts:    cfg.Audio.MaxRestarts,
		RestartBackoff: configutil.Millis(cfg.Audio.RestartBackoffMS, 250*time.Millisecond),
		OutputEnabled:  cfg.Interview.VoiceOutput,
		Observer:       observer,
		Logger:         logger,
	}, sttFactory, synth, rio.AudioIn, rio.AudioOut)

	session, err := interview.NewSession(bank, SessionRequester{Inner: requester}, va, interview.Options{
		ID:           sessionID,
		AdvanceDelay: cfg.AdvanceDelay(),
		Closing:      cfg.Interview.Closing,
		VoiceOutput:  cfg.Interview.VoiceOutput,
		Observer:     observer,
		Logger:       logger,
	})
	if err != nil {
		_ = va.Close()
		return nil, err
	}
	logging.NewComponentLogger(logger, "interviewer").Info("app_built",
		slog.String("session_id", sessionID),
		slog.String("stt", cfg.Vendors.STT.Provider),
		slog.String("tts", cfg.Vendors.TTS.Provider),
		slog.Bool("voice_input", va.Supported()),
		slog.Bool("remote_feedback", strings.TrimSpace(cfg.Feedback.Endpoint) != ""))
	return &App{Session: session, Voice: va, Requester: requester}, nil
}

// LoadQuestionBank returns the configured bank, falling back to the built-in
// questions. A bank with an empty drawn category is rejected.
func LoadQuestionBank(cfg Config) (*questionbank.Bank, error) {
	bank := questionbank.Default()
	if path := strings.TrimSpace(cfg.Interview.QuestionBankPath); path != "" {
		loaded, err := questionbank.LoadFile(path)
		if err != nil {
			return nil, err
		}
		bank = loaded
	}
	if err := bank.Validate(); err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}
	return bank, nil
}

// BuildRequester returns an HTTP client when feedback.endpoint is set and an
// in-process generator over the configured llm vendor otherwise.
func BuildRequester(cfg Config, reg *ProviderRegistry, observer metrics.Observer, logger *slog.Logger) (feedback.Requester, error) {
	if endpoint := strings.TrimSpace(cfg.Feedback.Endpoint); endpoint != "" {
		return feedback.NewClient(endpoint, cfg.FeedbackTimeout(), logger), nil
	}
	gen, err := BuildGenerator(cfg, reg, observer, logger)
	if err != nil {
		return nil, err
	}
	return gen, nil
}

func BuildGenerator(cfg Config, reg *ProviderRegistry, observer metrics.Observer, logger *slog.Logger) (*feedback.Generator, error) {
	adapter, err := reg.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		return nil, err
	}
	if cb, ok := adapter.(*llm.CircuitBreakerAdapter); ok {
		cb.SetObserver(observer)
	}
	return feedback.NewGenerator(adapter, logger), nil
}

// SessionRequester adapts a feedback.Requester to the session's transcript type.
type SessionRequester struct {
	Inner feedback.Requester
}

func (r SessionRequester) Request(ctx context.Context, turns []interview.TurnRecord) (string, error) {
	answers := make([]feedback.Answer, 0, len(turns))
	for _, t := range turns {
		answers = append(answers, feedback.Answer{Question: t.Question, Answer: t.Answer})
	}
	return r.Inner.Request(ctx, answers)
}

// OpenAudio opens the configured audio paths. Empty paths yield nil streams.
// The returned closer releases whatever was opened.
func OpenAudio(cfg AudioConfig) (io.Reader, io.Writer, func() error, error) {
	var closers []io.Closer
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	var in io.Reader
	var out io.Writer
	if path := strings.TrimSpace(cfg.InputPath); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open audio input: %w", err)
		}
		closers = append(closers, f)
		in = f
	}
	if path := strings.TrimSpace(cfg.OutputPath); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = closeAll()
			return nil, nil, nil, fmt.Errorf("open audio output: %w", err)
		}
		closers = append(closers, f)
		out = f
	}
	return in, out, closeAll, nil
}
