package googlespeech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/harunnryd/interviewer/pkg/adapters/stt"
	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/frames"
	"github.com/harunnryd/interviewer/pkg/logging"
	"github.com/harunnryd/interviewer/pkg/redact"
)

const source = "google_speech"

var errNotStarted = errors.New("google speech: not started")

type Config struct {
	CredentialsFile string
	Language        string
	SampleRate      int
	Interim         bool
	SessionID       string
}

// StreamingSTT runs one Cloud Speech StreamingRecognize call per Start.
type StreamingSTT struct {
	cfg    Config
	logger *slog.Logger

	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	audio  chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	out    chan frames.Frame
	closed bool
}

func New(cfg Config) *StreamingSTT {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	return &StreamingSTT{
		cfg:    cfg,
		out:    make(chan frames.Frame, 256),
		audio:  make(chan []byte, 64),
		logger: logging.NewComponentLogger(slog.Default(), "google_speech_stt"),
	}
}

func (s *StreamingSTT) Name() string { return "google_speech" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	var opts []option.ClientOption
	if strings.TrimSpace(s.cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(s.cfg.CredentialsFile))
	}
	client, err := speech.NewClient(s.ctx, opts...)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("create speech client: %w", err), errorsx.ReasonSTTConnect)
	}
	s.client = client

	stream, err := client.StreamingRecognize(s.ctx)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("start streaming recognize: %w", err), errorsx.ReasonSTTConnect)
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(s.cfg.SampleRate),
					LanguageCode:               s.cfg.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: s.cfg.Interim,
			},
		},
	}); err != nil {
		return errorsx.Wrap(fmt.Errorf("send streaming config: %w", err), errorsx.ReasonSTTConnect)
	}
	s.stream = stream
	s.logger.Info("google_speech_connected",
		slog.String("session_id", s.cfg.SessionID),
		slog.String("language", s.cfg.Language),
		slog.Int("sample_rate", s.cfg.SampleRate))

	go s.sendLoop()
	go s.recvLoop()
	return nil
}

func (s *StreamingSTT) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.client != nil {
		_ = s.client.Close()
	}
	s.finish()
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	if s.stream == nil {
		return errNotStarted
	}
	select {
	case s.audio <- frame.Data():
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *StreamingSTT) Results() <-chan frames.Frame { return s.out }

func (s *StreamingSTT) sendLoop() {
	for {
		select {
		case <-s.ctx.Done():
			_ = s.stream.CloseSend()
			return
		case chunk := <-s.audio:
			err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
			})
			if err != nil {
				s.logger.Warn("google_speech_send_error",
					slog.String("session_id", s.cfg.SessionID),
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *StreamingSTT) recvLoop() {
	defer s.finish()
	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Error("google_speech_recv_error",
					slog.String("session_id", s.cfg.SessionID),
					slog.String("error", err.Error()))
				s.emit(frames.NewErrorFrame(s.cfg.SessionID, time.Now().UnixNano(), source, string(errorsx.ReasonVoiceCapture), err.Error()))
			}
			return
		}
		for _, result := range resp.GetResults() {
			alts := result.GetAlternatives()
			if len(alts) == 0 || alts[0].GetTranscript() == "" {
				continue
			}
			text := alts[0].GetTranscript()
			s.logger.Debug("transcript_received",
				slog.String("session_id", s.cfg.SessionID),
				slog.String("transcript", redact.Preview(text, 80)),
				slog.Bool("is_final", result.GetIsFinal()))
			s.emit(frames.NewTextFrame(s.cfg.SessionID, time.Now().UnixNano(), text, frames.FinalMeta(source, result.GetIsFinal())))
		}
	}
}

func (s *StreamingSTT) emit(f frames.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- f:
	default:
		s.logger.Warn("google_speech_out_channel_full", slog.String("session_id", s.cfg.SessionID))
	}
}

func (s *StreamingSTT) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
