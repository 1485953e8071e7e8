package interviewer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
vendors:
  llm:
    provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interview.AdvanceDelayMS != 1000 || cfg.AdvanceDelay() != time.Second {
		t.Fatalf("unexpected advance delay: %d", cfg.Interview.AdvanceDelayMS)
	}
	if !cfg.Interview.VoiceOutput {
		t.Fatalf("expected voice output on by default")
	}
	if cfg.Server.Path != "/api/feedback" || cfg.Server.AllowedOrigin != "*" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.ChunkBytes != 3200 || cfg.Audio.MaxRestarts != 3 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatalf("expected redaction on by default")
	}
	if cfg.FeedbackTimeout() != 60*time.Second {
		t.Fatalf("unexpected feedback timeout: %v", cfg.FeedbackTimeout())
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("INTERVIEWER_TEST_KEY", "secret-key")
	t.Setenv("INTERVIEWER_TEST_ENDPOINT", "http://localhost:9999/api/feedback")
	path := writeConfig(t, `
feedback:
  endpoint: ${INTERVIEWER_TEST_ENDPOINT}
vendors:
  llm:
    provider: openai
    settings:
      api_key: ${INTERVIEWER_TEST_KEY}
      model: gpt-4o-mini
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feedback.Endpoint != "http://localhost:9999/api/feedback" {
		t.Fatalf("endpoint not expanded: %q", cfg.Feedback.Endpoint)
	}
	if got := cfg.Vendors.LLM.Settings["api_key"]; got != "secret-key" {
		t.Fatalf("settings not expanded: %v", got)
	}
}

func TestLoadConfigRequiresFeedbackSource(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
`)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "vendors.llm.provider") {
		t.Fatalf("expected llm provider error, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"log_format": func(c *Config) { c.LogFormat = "xml" },
		"advance":    func(c *Config) { c.Interview.AdvanceDelayMS = -1 },
		"path":       func(c *Config) { c.Server.Path = "api" },
		"chunk":      func(c *Config) { c.Audio.ChunkBytes = 3 },
		"restarts":   func(c *Config) { c.Audio.MaxRestarts = -1 },
		"stt":        func(c *Config) { c.Audio.InputPath = "/tmp/mic.raw" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Vendors.LLM.Provider != "mock" {
		t.Fatalf("expected mock llm, got %q", cfg.Vendors.LLM.Provider)
	}
}
