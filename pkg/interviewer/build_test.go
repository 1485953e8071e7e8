package interviewer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/interviewer/pkg/feedback"
	"github.com/harunnryd/interviewer/pkg/interview"
	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/questionbank"
)

type recordingRequester struct {
	got []feedback.Answer
}

func (r *recordingRequester) Request(ctx context.Context, answers []feedback.Answer) (string, error) {
	r.got = answers
	return "ok", nil
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	if _, err := reg.BuildLLM("claude", DefaultConfig()); err == nil {
		t.Fatalf("expected unknown llm provider error")
	}
	if _, err := reg.BuildSTTFactory("whisper", DefaultConfig()); err == nil {
		t.Fatalf("expected unknown stt provider error")
	}
}

func TestRegistryEmptyVoiceProviders(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	f, err := reg.BuildSTTFactory("", DefaultConfig())
	if err != nil || f != nil {
		t.Fatalf("expected nil stt factory, got %v %v", f != nil, err)
	}
	tf, err := reg.BuildTTSFactory(" None ", DefaultConfig())
	if err != nil || tf != nil {
		t.Fatalf("expected nil tts factory, got %v %v", tf != nil, err)
	}
}

func TestRegistryValidatesVendorSettings(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	cfg := DefaultConfig()
	cfg.Vendors.STT = VendorConfig{Provider: "deepgram", Settings: map[string]any{"model": "nova-2"}}
	if _, err := reg.BuildSTTFactory("deepgram", cfg); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected missing api_key, got %v", err)
	}
	cfg.Vendors.TTS = VendorConfig{Provider: "elevenlabs", Settings: map[string]any{"api_key": "k", "voice_id": "v", "output_format": "mp3_44100"}}
	if _, err := reg.BuildTTSFactory("elevenlabs", cfg); err == nil {
		t.Fatalf("expected non-pcm output format to be rejected")
	}
	cfg.Vendors.LLM = VendorConfig{Provider: "gemini", Settings: map[string]any{"api_key": "k", "temperature": 1}}
	if _, err := reg.BuildLLM("gemini", cfg); err == nil || !strings.Contains(err.Error(), "unknown: temperature") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestRegistryWrapsLLMWithBreaker(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	cfg := DefaultConfig()
	cfg.Vendors.LLM = VendorConfig{Provider: "openai", Settings: map[string]any{"api_key": "k", "model": "gpt-4o-mini"}}
	adapter, err := reg.BuildLLM("openai", cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := adapter.(*llm.CircuitBreakerAdapter); !ok {
		t.Fatalf("expected breaker adapter, got %T", adapter)
	}
	cfg.Vendors.LLM.Settings["use_circuit_breaker"] = false
	adapter, err = reg.BuildLLM("openai", cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := adapter.(*llm.CircuitBreakerAdapter); ok {
		t.Fatalf("expected bare adapter when breaker disabled")
	}
}

func TestBuildTextOnly(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	app, err := Build(DefaultConfig(), reg, IO{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()
	if app.Voice.Supported() {
		t.Fatalf("expected voice input unsupported without audio source")
	}
	if _, ok := app.Requester.(*feedback.Generator); !ok {
		t.Fatalf("expected in-process generator, got %T", app.Requester)
	}
	if app.Session.ID() == "" {
		t.Fatalf("expected session id")
	}
}

func TestBuildUsesEndpointClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feedback.Endpoint = "http://127.0.0.1:1/api/feedback"
	req, err := BuildRequester(cfg, NewProviderRegistry(), nil, nil)
	if err != nil {
		t.Fatalf("build requester: %v", err)
	}
	if _, ok := req.(*feedback.Client); !ok {
		t.Fatalf("expected http client, got %T", req)
	}
}

func TestBuildWithMockVoice(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	cfg := DefaultConfig()
	cfg.Vendors.STT = VendorConfig{Provider: "mock"}
	cfg.Vendors.TTS = VendorConfig{Provider: "mock"}
	app, err := Build(cfg, reg, IO{AudioIn: strings.NewReader(""), AudioOut: &strings.Builder{}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()
	if !app.Voice.Supported() {
		t.Fatalf("expected voice input supported")
	}
}

func TestLoadQuestionBankKeepsFixedOpener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	body := "opener: Walk me through your resume.\ncategories:\n  behavioral: [\"b\"]\n  situational: [\"s\"]\n  technical_concepts: [\"t\"]\n  project_experience: [\"p\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Interview.QuestionBankPath = path
	bank, err := LoadQuestionBank(cfg)
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	if got := bank.SelectPlan(nil).At(0); got != questionbank.DefaultOpener {
		t.Fatalf("expected fixed opener, got %q", got)
	}
}

func TestLoadQuestionBankRejectsEmptyCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	body := "opener: Hi\ncategories:\n  behavioral: [\"b\"]\n  situational: []\n  technical_concepts: [\"t\"]\n  project_experience: [\"p\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Interview.QuestionBankPath = path
	if _, err := LoadQuestionBank(cfg); err == nil {
		t.Fatalf("expected empty category error")
	}
}

func TestSessionRequesterMapsTurns(t *testing.T) {
	inner := &recordingRequester{}
	out, err := SessionRequester{Inner: inner}.Request(context.Background(), []interview.TurnRecord{
		{Question: "Q1", Answer: "A1"},
		{Question: "Q2", Answer: "A2"},
	})
	if err != nil || out != "ok" {
		t.Fatalf("unexpected result: %q %v", out, err)
	}
	if len(inner.got) != 2 || inner.got[1].Question != "Q2" || inner.got[1].Answer != "A2" {
		t.Fatalf("unexpected answers: %+v", inner.got)
	}
}

func TestOpenAudioEmptyPaths(t *testing.T) {
	in, out, closeFn, err := OpenAudio(AudioConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if in != nil || out != nil {
		t.Fatalf("expected nil streams")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, _, err := OpenAudio(AudioConfig{InputPath: filepath.Join(t.TempDir(), "missing.raw")}); err == nil {
		t.Fatalf("expected open error")
	}
}
