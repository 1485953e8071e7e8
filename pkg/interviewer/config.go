package interviewer

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harunnryd/interviewer/pkg/configutil"
	"github.com/harunnryd/interviewer/pkg/interview"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	Interview   InterviewConfig `mapstructure:"interview"`
	Feedback    FeedbackConfig  `mapstructure:"feedback"`
	Server      ServerConfig    `mapstructure:"server"`
	Audio       AudioConfig     `mapstructure:"audio"`
	Vendors     VendorsConfig   `mapstructure:"vendors"`
	Privacy     PrivacyConfig   `mapstructure:"privacy"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
}

type InterviewConfig struct {
	AdvanceDelayMS   int    `mapstructure:"advance_delay_ms"`
	VoiceOutput      bool   `mapstructure:"voice_output"`
	QuestionBankPath string `mapstructure:"question_bank_path"`
	Closing          string `mapstructure:"closing"`
}

// FeedbackConfig points the console at a remote feedback endpoint. With no
// endpoint, feedback is generated in-process by the configured llm vendor.
type FeedbackConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	Path           string `mapstructure:"path"`
	AllowedOrigin  string `mapstructure:"allowed_origin"`
	DrainTimeoutMS int    `mapstructure:"drain_timeout_ms"`
}

// AudioConfig describes raw 16-bit mono PCM streams. InputPath is read by
// the recognizer; OutputPath receives synthesized speech.
type AudioConfig struct {
	InputPath        string `mapstructure:"input_path"`
	OutputPath       string `mapstructure:"output_path"`
	SampleRate       int    `mapstructure:"sample_rate"`
	ChunkBytes       int    `mapstructure:"chunk_bytes"`
	Pace             bool   `mapstructure:"pace"`
	MaxRestarts      int    `mapstructure:"max_restarts"`
	RestartBackoffMS int    `mapstructure:"restart_backoff_ms"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given:
// built-in questions, mock vendors, no audio.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	v.SetDefault("vendors.llm.provider", "mock")
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("interview.advance_delay_ms", 1000)
	v.SetDefault("interview.voice_output", true)
	v.SetDefault("interview.question_bank_path", "")
	v.SetDefault("interview.closing", interview.DefaultClosing)
	v.SetDefault("feedback.endpoint", "")
	v.SetDefault("feedback.timeout_ms", 60000)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.path", "/api/feedback")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.drain_timeout_ms", 10000)
	v.SetDefault("audio.input_path", "")
	v.SetDefault("audio.output_path", "")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.chunk_bytes", 3200)
	v.SetDefault("audio.pace", false)
	v.SetDefault("audio.max_restarts", 3)
	v.SetDefault("audio.restart_backoff_ms", 250)
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be one of [text, json], got %s", c.LogFormat)
	}
	if c.Interview.AdvanceDelayMS < 0 {
		return fmt.Errorf("interview.advance_delay_ms must be >= 0, got %d", c.Interview.AdvanceDelayMS)
	}
	if c.Feedback.TimeoutMS < 0 {
		return fmt.Errorf("feedback.timeout_ms must be >= 0, got %d", c.Feedback.TimeoutMS)
	}
	if strings.TrimSpace(c.Feedback.Endpoint) == "" {
		if err := configutil.RequireString(c.Vendors.LLM.Provider, "vendors.llm.provider"); err != nil {
			return fmt.Errorf("%w (or set feedback.endpoint)", err)
		}
	}
	if p := strings.TrimSpace(c.Server.Path); p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("server.path must start with /, got %s", c.Server.Path)
	}
	if c.Audio.SampleRate < 0 || c.Audio.ChunkBytes < 0 {
		return fmt.Errorf("audio.sample_rate and audio.chunk_bytes must be positive")
	}
	if c.Audio.ChunkBytes%2 != 0 {
		return fmt.Errorf("audio.chunk_bytes must be a whole number of 16-bit samples, got %d", c.Audio.ChunkBytes)
	}
	if c.Audio.MaxRestarts < 0 {
		return fmt.Errorf("audio.max_restarts must be >= 0, got %d", c.Audio.MaxRestarts)
	}
	if strings.TrimSpace(c.Audio.InputPath) != "" && strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required when audio.input_path is set")
	}
	return nil
}

func (c Config) AdvanceDelay() time.Duration {
	return time.Duration(c.Interview.AdvanceDelayMS) * time.Millisecond
}

func (c Config) FeedbackTimeout() time.Duration {
	return configutil.Millis(c.Feedback.TimeoutMS, 60*time.Second)
}

func (c Config) DrainTimeout() time.Duration {
	return configutil.Millis(c.Server.DrainTimeoutMS, 10*time.Second)
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
