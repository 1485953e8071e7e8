package interviewer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/interviewer/pkg/adapters/stt"
	"github.com/harunnryd/interviewer/pkg/adapters/tts"
	"github.com/harunnryd/interviewer/pkg/configutil"
	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/providers/deepgram"
	"github.com/harunnryd/interviewer/pkg/providers/elevenlabs"
	"github.com/harunnryd/interviewer/pkg/providers/gemini"
	"github.com/harunnryd/interviewer/pkg/providers/googlespeech"
	"github.com/harunnryd/interviewer/pkg/providers/mock"
	"github.com/harunnryd/interviewer/pkg/providers/openai"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

type deepgramSettings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Encoding       string `mapstructure:"encoding"`
	Interim        *bool  `mapstructure:"interim"`
	UtteranceEndMS *int   `mapstructure:"utterance_end_ms"`
}

type googleSpeechSettings struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Language        string `mapstructure:"language"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Interim         *bool  `mapstructure:"interim"`
}

type mockSTTSettings struct {
	Transcripts    []string `mapstructure:"transcripts"`
	EmitInterim    *bool    `mapstructure:"emit_interim"`
	EndAfterScript *bool    `mapstructure:"end_after_script"`
}

type elevenlabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	SampleRate   int    `mapstructure:"sample_rate"`
	BaseURL      string `mapstructure:"base_url"`
}

type mockTTSSettings struct {
	SampleRate int `mapstructure:"sample_rate"`
	Channels   int `mapstructure:"channels"`
	FrameBytes int `mapstructure:"frame_bytes"`
}

type openAISettings struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	BaseURL           string `mapstructure:"base_url"`
	UseCircuitBreaker *bool  `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int    `mapstructure:"circuit_threshold"`
	CircuitCooldownMs int    `mapstructure:"circuit_cooldown_ms"`
}

type geminiSettings struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	BaseURL           string `mapstructure:"base_url"`
	TimeoutMS         int    `mapstructure:"timeout_ms"`
	UseCircuitBreaker *bool  `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int    `mapstructure:"circuit_threshold"`
	CircuitCooldownMs int    `mapstructure:"circuit_cooldown_ms"`
}

type mockLLMSettings struct {
	ResponseText string `mapstructure:"response_text"`
	Error        string `mapstructure:"error"`
}

var breakerKeys = []string{"use_circuit_breaker", "circuit_threshold", "circuit_cooldown_ms"}

// RegisterDefaults registers every provider shipped with the module.
func RegisterDefaults(reg *ProviderRegistry) {
	reg.RegisterSTT("deepgram", func(cfg Config) (stt.Factory, error) {
		var settings deepgramSettings
		if err := configutil.DecodeVendor("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: []string{"language", "sample_rate", "encoding", "interim", "utterance_end_ms"},
		}, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		if settings.SampleRate == 0 {
			settings.SampleRate = cfg.Audio.SampleRate
		}
		encoding := configutil.StringValue(settings.Encoding, "linear16")
		if encoding != "linear16" {
			return nil, fmt.Errorf("vendors.stt.settings.encoding must be linear16 for raw PCM input, got %s", encoding)
		}
		utteranceEnd := configutil.IntValue(settings.UtteranceEndMS, 1000)
		if utteranceEnd < 0 || utteranceEnd > 5000 {
			return nil, fmt.Errorf("vendors.stt.settings.utterance_end_ms must be between 0 and 5000, got %d", utteranceEnd)
		}
		interim := configutil.BoolValue(settings.Interim, true)
		return func(sessionID string) stt.StreamingSTT {
			return deepgram.New(deepgram.Config{
				APIKey:         settings.APIKey,
				Model:          settings.Model,
				Language:       configutil.StringValue(settings.Language, "en-US"),
				SampleRate:     settings.SampleRate,
				Encoding:       encoding,
				Interim:        interim,
				UtteranceEndMS: utteranceEnd,
				SessionID:      sessionID,
			})
		}, nil
	})

	reg.RegisterSTT("googlespeech", func(cfg Config) (stt.Factory, error) {
		var settings googleSpeechSettings
		if err := configutil.DecodeVendor("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"credentials_file", "language", "sample_rate", "interim"},
		}, &settings); err != nil {
			return nil, err
		}
		if settings.SampleRate == 0 {
			settings.SampleRate = cfg.Audio.SampleRate
		}
		interim := configutil.BoolValue(settings.Interim, false)
		return func(sessionID string) stt.StreamingSTT {
			return googlespeech.New(googlespeech.Config{
				CredentialsFile: settings.CredentialsFile,
				Language:        configutil.StringValue(settings.Language, "en-US"),
				SampleRate:      settings.SampleRate,
				Interim:         interim,
				SessionID:       sessionID,
			})
		}, nil
	})

	reg.RegisterSTT("mock", func(cfg Config) (stt.Factory, error) {
		var settings mockSTTSettings
		if err := configutil.DecodeVendor("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"transcripts", "emit_interim", "end_after_script"},
		}, &settings); err != nil {
			return nil, err
		}
		emitInterim := configutil.BoolValue(settings.EmitInterim, false)
		endAfterScript := configutil.BoolValue(settings.EndAfterScript, false)
		return func(sessionID string) stt.StreamingSTT {
			return mock.NewSTT(mock.STTConfig{
				SessionID:      sessionID,
				Transcripts:    append([]string(nil), settings.Transcripts...),
				EmitInterim:    emitInterim,
				EndAfterScript: endAfterScript,
			})
		}, nil
	})

	reg.RegisterTTS("elevenlabs", func(cfg Config) (tts.Factory, error) {
		var settings elevenlabsSettings
		if err := configutil.DecodeVendor("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key", "voice_id"},
			Optional: []string{"model_id", "output_format", "sample_rate", "base_url"},
		}, &settings); err != nil {
			return nil, err
		}
		if settings.SampleRate == 0 {
			settings.SampleRate = cfg.Audio.SampleRate
		}
		if settings.OutputFormat == "" {
			settings.OutputFormat = fmt.Sprintf("pcm_%d", settings.SampleRate)
		}
		if !strings.HasPrefix(settings.OutputFormat, "pcm_") {
			return nil, fmt.Errorf("vendors.tts.settings.output_format must be a pcm_ format, got %s", settings.OutputFormat)
		}
		return func(sessionID string) tts.StreamingTTS {
			return elevenlabs.New(elevenlabs.Config{
				APIKey:       settings.APIKey,
				VoiceID:      settings.VoiceID,
				ModelID:      settings.ModelID,
				OutputFormat: settings.OutputFormat,
				SampleRate:   settings.SampleRate,
				BaseURL:      settings.BaseURL,
				SessionID:    sessionID,
			})
		}, nil
	})

	reg.RegisterTTS("mock", func(cfg Config) (tts.Factory, error) {
		var settings mockTTSSettings
		if err := configutil.DecodeVendor("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"sample_rate", "channels", "frame_bytes"},
		}, &settings); err != nil {
			return nil, err
		}
		if settings.SampleRate == 0 {
			settings.SampleRate = cfg.Audio.SampleRate
		}
		return func(sessionID string) tts.StreamingTTS {
			return mock.NewTTS(mock.TTSConfig{
				SessionID:  sessionID,
				SampleRate: settings.SampleRate,
				Channels:   settings.Channels,
				FrameBytes: settings.FrameBytes,
			})
		}, nil
	})

	reg.RegisterLLM("openai", func(cfg Config) (llm.Adapter, error) {
		var settings openAISettings
		if err := configutil.DecodeVendor("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: append([]string{"base_url"}, breakerKeys...),
		}, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		adapter := openai.NewAdapter(settings.APIKey, settings.Model, settings.BaseURL)
		return withBreaker(adapter, settings.UseCircuitBreaker, settings.CircuitThreshold, settings.CircuitCooldownMs), nil
	})

	reg.RegisterLLM("gemini", func(cfg Config) (llm.Adapter, error) {
		var settings geminiSettings
		if err := configutil.DecodeVendor("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: append([]string{"model", "base_url", "timeout_ms"}, breakerKeys...),
		}, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		adapter := gemini.NewAdapter(settings.APIKey, settings.Model)
		if settings.BaseURL != "" {
			adapter.BaseURL = strings.TrimRight(settings.BaseURL, "/")
		}
		if settings.TimeoutMS > 0 {
			adapter.Client.Timeout = configutil.Millis(settings.TimeoutMS, 60*time.Second)
		}
		return withBreaker(adapter, settings.UseCircuitBreaker, settings.CircuitThreshold, settings.CircuitCooldownMs), nil
	})

	reg.RegisterLLM("mock", func(cfg Config) (llm.Adapter, error) {
		var settings mockLLMSettings
		if err := configutil.DecodeVendor("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"response_text", "error"},
		}, &settings); err != nil {
			return nil, err
		}
		var genErr error
		if msg := strings.TrimSpace(settings.Error); msg != "" {
			genErr = errors.New(msg)
		}
		return mock.NewLLMAdapter(mock.LLMConfig{
			ResponseText: settings.ResponseText,
			Err:          genErr,
		}), nil
	})
}

func withBreaker(adapter llm.Adapter, use *bool, threshold, cooldownMs int) llm.Adapter {
	if !configutil.BoolValue(use, true) {
		return adapter
	}
	if threshold == 0 {
		threshold = 3
	}
	cooldown := configutil.Millis(cooldownMs, 30*time.Second)
	return llm.NewCircuitBreakerAdapter(adapter, resilience.NewCircuitBreaker(threshold, cooldown))
}
