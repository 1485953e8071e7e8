package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/interviewer/pkg/adapters/stt"
	"github.com/harunnryd/interviewer/pkg/adapters/tts"
	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/frames"
	"github.com/harunnryd/interviewer/pkg/logging"
	"github.com/harunnryd/interviewer/pkg/metrics"
	"github.com/harunnryd/interviewer/pkg/redact"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

type Config struct {
	SessionID  string
	SampleRate int
	// ChunkBytes is the size of each read from the audio source.
	ChunkBytes int
	// Pace sleeps for the real-time duration of each chunk, for file sources.
	Pace           bool
	MaxRestarts    int
	RestartBackoff time.Duration
	// SpeakIdleTimeout ends the speaking state when the synthesizer goes
	// silent without reporting the end of an utterance.
	SpeakIdleTimeout time.Duration
	OutputEnabled    bool
	Observer         metrics.Observer
	Logger           *slog.Logger
}

// Adapter bridges a continuous recognizer and a speech synthesizer into
// events consumed by one session. Recognition results reach the caller only
// through Events.
type Adapter struct {
	cfg      Config
	newSTT   stt.Factory
	synth    tts.StreamingTTS
	source   io.Reader
	sink     io.Writer
	retry    resilience.RetryPolicy
	observer metrics.Observer
	logger   *slog.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	synthMu sync.Mutex

	mu          sync.Mutex
	listening   bool
	speaking    bool
	gen         uint64
	cancel      context.CancelFunc
	recognizer  stt.StreamingSTT
	captureOn   bool
	output      bool
	synthOn     bool
	pendingText string
	lastSynth   time.Time
	speakSignal chan struct{}
}

// NewAdapter wires the voice adapter. newSTT or source may be nil, in which
// case StartListening reports ErrUnsupported. synth may be nil, in which
// case Speak is a no-op.
func NewAdapter(cfg Config, newSTT stt.Factory, synth tts.StreamingTTS, source io.Reader, sink io.Writer) *Adapter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 3200
	}
	if cfg.SpeakIdleTimeout <= 0 {
		cfg.SpeakIdleTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:         cfg,
		newSTT:      newSTT,
		synth:       synth,
		source:      source,
		sink:        sink,
		retry:       resilience.NewRetryPolicy(cfg.MaxRestarts, cfg.RestartBackoff),
		observer:    metrics.OrNoop(cfg.Observer),
		logger:      logging.NewComponentLogger(logger, "voice"),
		events:      make(chan Event, 64),
		done:        make(chan struct{}),
		output:      cfg.OutputEnabled,
		speakSignal: make(chan struct{}, 1),
	}
}

// Events delivers transcripts and capture failures. It is never closed.
func (a *Adapter) Events() <-chan Event { return a.events }

// Supported reports whether StartListening can succeed at all.
func (a *Adapter) Supported() bool {
	return a.newSTT != nil && a.source != nil
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.speaking:
		return StateSpeaking
	case a.listening:
		return StateListening
	default:
		return StateIdle
	}
}

func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// StartListening opens a recognition session. It is a no-op when already
// listening.
func (a *Adapter) StartListening(ctx context.Context) error {
	if !a.Supported() {
		return errorsx.Wrap(ErrUnsupported, errorsx.ReasonVoiceUnsupported)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	if a.isClosed() {
		a.mu.Unlock()
		return errorsx.Wrap(errors.New("voice: adapter closed"), errorsx.ReasonClosed)
	}
	if a.listening {
		a.mu.Unlock()
		return nil
	}
	a.gen++
	gen := a.gen
	lctx, cancel := context.WithCancel(ctx)
	a.listening = true
	a.cancel = cancel
	startCapture := !a.captureOn
	a.captureOn = true
	a.mu.Unlock()

	if startCapture {
		go a.capture()
	}

	rec := a.newSTT(a.cfg.SessionID)
	if rec == nil {
		a.abort(gen)
		return errorsx.Wrap(ErrUnsupported, errorsx.ReasonVoiceUnsupported)
	}
	if err := rec.Start(lctx); err != nil {
		a.abort(gen)
		_ = rec.Close()
		a.observer.RecordEvent(metrics.MetricsEvent{Name: metrics.EventVoiceCaptureError, Time: time.Now(), Tags: map[string]string{"stage": "start"}})
		return errorsx.Wrap(fmt.Errorf("start recognizer: %w", err), errorsx.ReasonVoiceCapture)
	}
	if !a.setRecognizer(gen, rec) {
		_ = rec.Close()
		return nil
	}
	a.logger.Info("listening_started",
		slog.String("session_id", a.cfg.SessionID),
		slog.String("recognizer", rec.Name()))
	go a.collect(lctx, gen, rec)
	return nil
}

// StopListening ends the recognition session. Later results from it are
// discarded and it is never restarted. Safe to call when not listening.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	if !a.listening {
		a.mu.Unlock()
		return
	}
	rec := a.stopLocked()
	a.mu.Unlock()
	if rec != nil {
		_ = rec.Close()
	}
	a.logger.Info("listening_stopped", slog.String("session_id", a.cfg.SessionID))
}

// SetOutputEnabled toggles narration. Disabling it cuts the current utterance.
func (a *Adapter) SetOutputEnabled(on bool) {
	a.mu.Lock()
	a.output = on
	wasSpeaking := a.speaking
	if !on {
		a.pendingText = ""
		a.speaking = false
	}
	synthOn := a.synthOn
	a.mu.Unlock()
	if !on && wasSpeaking && synthOn {
		a.synth.Flush()
	}
}

func (a *Adapter) OutputEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.output
}

// Speak narrates text, cancelling whatever is currently playing. Utterances
// are never queued: only the latest pending text is synthesized.
func (a *Adapter) Speak(ctx context.Context, text string) error {
	if a.synth == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a.mu.Lock()
	enabled := a.output && !a.isClosed()
	a.mu.Unlock()
	if !enabled {
		return nil
	}
	if err := a.ensureSynth(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.pendingText = text
	a.speaking = true
	a.lastSynth = time.Now()
	a.mu.Unlock()
	select {
	case a.speakSignal <- struct{}{}:
	default:
	}
	a.observer.RecordEvent(metrics.MetricsEvent{Name: metrics.EventVoiceSpeak, Time: time.Now(), Value: float64(len(text))})
	return nil
}

func (a *Adapter) ensureSynth(ctx context.Context) error {
	a.synthMu.Lock()
	defer a.synthMu.Unlock()
	a.mu.Lock()
	started := a.synthOn
	a.mu.Unlock()
	if started {
		return nil
	}
	if err := a.synth.Start(ctx); err != nil {
		return errorsx.Wrap(fmt.Errorf("start synthesizer: %w", err), errorsx.ReasonVoicePlayback)
	}
	a.mu.Lock()
	a.synthOn = true
	a.mu.Unlock()
	go a.playback()
	go a.speakLoop()
	return nil
}

// Close stops listening and playback. The adapter cannot be reused.
func (a *Adapter) Close() error {
	a.StopListening()
	a.closeOnce.Do(func() { close(a.done) })
	a.mu.Lock()
	synthOn := a.synthOn
	a.speaking = false
	a.mu.Unlock()
	if synthOn {
		return a.synth.Close()
	}
	return nil
}

func (a *Adapter) isClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// stopLocked clears listening state and returns the recognizer to close.
func (a *Adapter) stopLocked() stt.StreamingSTT {
	a.listening = false
	a.gen++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	rec := a.recognizer
	a.recognizer = nil
	return rec
}

func (a *Adapter) abort(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen == gen && a.listening {
		a.stopLocked()
	}
}

func (a *Adapter) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen == gen && a.listening
}

func (a *Adapter) setRecognizer(gen uint64, rec stt.StreamingSTT) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen || !a.listening {
		return false
	}
	a.recognizer = rec
	return true
}

// collect drains one listening session, restarting the recognizer when its
// stream ends while listening is still wanted.
func (a *Adapter) collect(ctx context.Context, gen uint64, rec stt.StreamingSTT) {
	attempt := 0
	for {
		for f := range rec.Results() {
			switch v := f.(type) {
			case frames.TextFrame:
				if a.handleTranscript(gen, v) {
					attempt = 0
				}
			case frames.ControlFrame:
				if v.Code() == frames.ControlError {
					meta := v.Meta()
					a.captureFailed(gen, fmt.Errorf("%s: %s", meta[frames.MetaReason], meta[frames.MetaError]))
					return
				}
			}
		}

		if !a.current(gen) || ctx.Err() != nil {
			return
		}
		attempt++
		if !a.retry.Allows(attempt) {
			a.captureFailed(gen, errRecognitionEnded)
			return
		}
		a.logger.Warn("recognition_ended_restarting",
			slog.String("session_id", a.cfg.SessionID),
			slog.Int("attempt", attempt))
		a.observer.RecordEvent(metrics.MetricsEvent{Name: metrics.EventVoiceRestart, Time: time.Now(), Value: float64(attempt)})
		if err := a.retry.Wait(ctx, attempt); err != nil {
			return
		}
		if !a.current(gen) {
			return
		}

		next := a.newSTT(a.cfg.SessionID)
		if next == nil {
			a.captureFailed(gen, ErrUnsupported)
			return
		}
		if err := next.Start(ctx); err != nil {
			_ = next.Close()
			a.captureFailed(gen, fmt.Errorf("restart recognizer: %w", err))
			return
		}
		if !a.setRecognizer(gen, next) {
			_ = next.Close()
			return
		}
		rec = next
	}
}

// handleTranscript reports whether a transcript was committed.
func (a *Adapter) handleTranscript(gen uint64, f frames.TextFrame) bool {
	if !f.IsFinal() || f.Text() == "" {
		return false
	}
	a.mu.Lock()
	stale := a.gen != gen || !a.listening
	speaking := a.speaking
	a.mu.Unlock()
	if stale {
		return false
	}
	if speaking {
		a.logger.Debug("transcript_dropped_while_speaking",
			slog.String("session_id", a.cfg.SessionID),
			slog.String("text", redact.Preview(f.Text(), 60)))
		return false
	}
	a.emit(Event{Kind: EventTranscript, Text: f.Text() + SentenceDelimiter})
	return true
}

func (a *Adapter) captureFailed(gen uint64, err error) {
	a.mu.Lock()
	if a.gen != gen || !a.listening {
		a.mu.Unlock()
		return
	}
	rec := a.stopLocked()
	a.mu.Unlock()
	if rec != nil {
		_ = rec.Close()
	}
	a.logger.Warn("voice_capture_error",
		slog.String("session_id", a.cfg.SessionID),
		slog.String("error", err.Error()))
	a.observer.RecordEvent(metrics.MetricsEvent{Name: metrics.EventVoiceCaptureError, Time: time.Now()})
	a.emit(Event{Kind: EventCaptureError, Err: errorsx.Wrap(err, errorsx.ReasonVoiceCapture)})
}

func (a *Adapter) emit(ev Event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// capture reads the audio source for the adapter's lifetime and forwards
// chunks to the active recognizer. Audio read while not listening is dropped.
func (a *Adapter) capture() {
	buf := make([]byte, a.cfg.ChunkBytes)
	var chunkDur time.Duration
	if a.cfg.Pace {
		chunkDur = time.Duration(float64(a.cfg.ChunkBytes) / float64(a.cfg.SampleRate*2) * float64(time.Second))
	}
	for {
		if a.isClosed() {
			return
		}
		n, err := a.source.Read(buf)
		if n > 0 {
			a.mu.Lock()
			rec := a.recognizer
			a.mu.Unlock()
			if rec != nil {
				frame := frames.NewAudioFrame(a.cfg.SessionID, time.Now().UnixNano(), append([]byte(nil), buf[:n]...), a.cfg.SampleRate, 1, nil)
				if sendErr := rec.SendAudio(frame); sendErr != nil {
					a.logger.Debug("send_audio_failed",
						slog.String("session_id", a.cfg.SessionID),
						slog.String("error", sendErr.Error()))
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.logger.Info("audio_source_eof", slog.String("session_id", a.cfg.SessionID))
			} else {
				a.logger.Error("audio_source_error",
					slog.String("session_id", a.cfg.SessionID),
					slog.String("error", err.Error()))
			}
			return
		}
		if chunkDur > 0 {
			select {
			case <-time.After(chunkDur):
			case <-a.done:
				return
			}
		}
	}
}

func (a *Adapter) speakLoop() {
	for {
		select {
		case <-a.done:
			return
		case <-a.speakSignal:
		}
		a.mu.Lock()
		text := a.pendingText
		a.pendingText = ""
		a.mu.Unlock()
		if text == "" {
			continue
		}
		a.synth.Flush()
		if err := a.synth.SendText(text); err != nil {
			a.mu.Lock()
			a.speaking = false
			a.mu.Unlock()
			a.logger.Warn("speak_failed",
				slog.String("session_id", a.cfg.SessionID),
				slog.String("error", err.Error()))
		}
	}
}

// playback writes synthesized audio to the sink until the adapter closes.
func (a *Adapter) playback() {
	results := a.synth.Results()
	watchdog := time.NewTicker(a.cfg.SpeakIdleTimeout / 2)
	defer watchdog.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-watchdog.C:
			a.expireSpeaking()
		case f, ok := <-results:
			if !ok {
				return
			}
			a.mu.Lock()
			a.lastSynth = time.Now()
			a.mu.Unlock()
			switch v := f.(type) {
			case frames.AudioFrame:
				if a.sink == nil {
					continue
				}
				if _, err := a.sink.Write(v.RawPayload()); err != nil {
					a.logger.Warn("playback_write_failed",
						slog.String("session_id", a.cfg.SessionID),
						slog.String("error", err.Error()))
				}
			case frames.ControlFrame:
				switch v.Code() {
				case frames.ControlAudioReady, frames.ControlError:
					a.mu.Lock()
					if a.pendingText == "" {
						a.speaking = false
					}
					a.mu.Unlock()
				}
			}
		}
	}
}

// expireSpeaking clears a speaking state the synthesizer never closed out.
func (a *Adapter) expireSpeaking() {
	a.mu.Lock()
	stuck := a.speaking && a.pendingText == "" && time.Since(a.lastSynth) >= a.cfg.SpeakIdleTimeout
	if stuck {
		a.speaking = false
	}
	a.mu.Unlock()
	if stuck {
		a.logger.Warn("speaking_expired",
			slog.String("session_id", a.cfg.SessionID),
			slog.Duration("idle", a.cfg.SpeakIdleTimeout))
	}
}
