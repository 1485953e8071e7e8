package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/interviewer/pkg/adapters/tts"
	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/frames"
	"github.com/harunnryd/interviewer/pkg/logging"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

const source = "elevenlabs"

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	SampleRate   int
	BaseURL      string
	SessionID    string
}

// ElevenLabsTTS synthesizes one utterance per websocket connection.
// Flush drops the connection so a later SendText starts clean.
type ElevenLabsTTS struct {
	cfg    Config
	out    chan frames.Frame
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn
	gen  uint64
}

type inboundMessage struct {
	Audio   string `json:"audio"`
	IsFinal *bool  `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func New(cfg Config) *ElevenLabsTTS {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "pcm_16000"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.elevenlabs.io"
	}
	return &ElevenLabsTTS{
		cfg:    cfg,
		out:    make(chan frames.Frame, 256),
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}
}

func (s *ElevenLabsTTS) Name() string { return "elevenlabs_tts" }

// Start validates configuration; the websocket is dialed per utterance.
func (s *ElevenLabsTTS) Start(ctx context.Context) error {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return errorsx.Wrap(errors.New("missing elevenlabs config"), errorsx.ReasonTTSConnect)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	return nil
}

func (s *ElevenLabsTTS) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.dropLocked()
	return nil
}

// SendText dials a fresh connection and synthesizes text in full.
func (s *ElevenLabsTTS) SendText(text string) error {
	if s.ctx == nil {
		return errors.New("elevenlabs: not started")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.dropLocked()
	s.mu.Unlock()

	conn, err := s.dial()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	messages := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
		},
		{"text": text + " ", "flush": true},
		{"text": ""},
	}
	for _, m := range messages {
		if err := s.send(conn, m); err != nil {
			if !s.current(gen) {
				return nil
			}
			return errorsx.Wrap(err, errorsx.ReasonVoicePlayback)
		}
	}
	go s.readLoop(conn, gen)
	return nil
}

// Flush abandons the current utterance and purges queued audio.
func (s *ElevenLabsTTS) Flush() {
	s.mu.Lock()
	s.gen++
	s.dropLocked()
	s.mu.Unlock()

drainLoop:
	for {
		select {
		case <-s.out:
		default:
			break drainLoop
		}
	}
	s.logger.Debug("tts channel purged", slog.String("session_id", s.cfg.SessionID))
}

func (s *ElevenLabsTTS) Results() <-chan frames.Frame { return s.out }

func (s *ElevenLabsTTS) dial() (*websocket.Conn, error) {
	u := s.buildURL()
	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(s.ctx, u, http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("ElevenLabs rate limit exceeded",
				slog.String("session_id", s.cfg.SessionID),
				slog.String("status", resp.Status))
			return nil, errorsx.Wrap(resilience.RateLimitError{Provider: source, Message: resp.Status}, errorsx.ReasonTTSConnect)
		}
		s.logger.Error("failed to connect to ElevenLabs",
			slog.String("session_id", s.cfg.SessionID),
			slog.String("error", err.Error()))
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}
	return conn, nil
}

func (s *ElevenLabsTTS) buildURL() string {
	base := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input"
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", s.cfg.OutputFormat)
	return base + "?" + q.Encode()
}

func (s *ElevenLabsTTS) readLoop(conn *websocket.Conn, gen uint64) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.endUtterance(gen, err)
			return
		}
		if done := s.handleMessage(gen, data); done {
			return
		}
	}
}

// endUtterance closes out an utterance whose stream ended before isFinal so
// consumers never wait on a ready frame that will not come.
func (s *ElevenLabsTTS) endUtterance(gen uint64, err error) {
	if !s.current(gen) {
		return
	}
	now := time.Now().UnixNano()
	if s.ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		s.logger.Debug("tts stream closed before final",
			slog.String("session_id", s.cfg.SessionID))
		s.emitNow(gen, frames.NewControlFrame(s.cfg.SessionID, now, frames.ControlAudioReady, map[string]string{
			frames.MetaSource: source,
			frames.MetaReason: "stream_closed",
		}))
		return
	}
	s.logger.Warn("tts read loop error",
		slog.String("session_id", s.cfg.SessionID),
		slog.String("error", err.Error()))
	s.emitNow(gen, frames.NewErrorFrame(s.cfg.SessionID, now, source, string(errorsx.ReasonVoicePlayback), err.Error()))
}

// handleMessage reports true once the utterance has been fully delivered.
func (s *ElevenLabsTTS) handleMessage(gen uint64, data []byte) bool {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("tts websocket raw data", "data", string(data))
		return false
	}
	if msg.Error != "" {
		s.emit(gen, frames.NewErrorFrame(s.cfg.SessionID, time.Now().UnixNano(), source, msg.Error, msg.Message))
		return true
	}
	if msg.Audio != "" {
		raw, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			s.logger.Error("tts audio decode error", "error", err)
			return false
		}
		s.emit(gen, frames.NewAudioFrame(s.cfg.SessionID, time.Now().UnixNano(), raw, s.cfg.SampleRate, 1, map[string]string{
			frames.MetaSource:   source,
			frames.MetaEncoding: s.cfg.OutputFormat,
		}))
	}
	if msg.IsFinal != nil && *msg.IsFinal {
		s.emit(gen, frames.NewControlFrame(s.cfg.SessionID, time.Now().UnixNano(), frames.ControlAudioReady, map[string]string{
			frames.MetaSource: source,
		}))
		return true
	}
	return false
}

func (s *ElevenLabsTTS) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *ElevenLabsTTS) emit(gen uint64, f frames.Frame) {
	if !s.current(gen) {
		return
	}
	select {
	case s.out <- f:
	case <-s.ctx.Done():
	}
}

// emitNow delivers f without blocking, for use after ctx may be done.
func (s *ElevenLabsTTS) emitNow(gen uint64, f frames.Frame) {
	if !s.current(gen) {
		return
	}
	select {
	case s.out <- f:
	default:
		s.logger.Warn("tts result dropped", slog.String("session_id", s.cfg.SessionID))
	}
}

func (s *ElevenLabsTTS) dropLocked() {
	if s.conn == nil {
		return
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = s.conn.Close()
	s.conn = nil
}

func (s *ElevenLabsTTS) send(conn *websocket.Conn, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, b)
}

var _ tts.StreamingTTS = (*ElevenLabsTTS)(nil)
