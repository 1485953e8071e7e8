package interviewer

import (
	"fmt"
	"strings"

	"github.com/harunnryd/interviewer/pkg/adapters/stt"
	"github.com/harunnryd/interviewer/pkg/adapters/tts"
	"github.com/harunnryd/interviewer/pkg/llm"
)

type STTFactoryBuilder func(cfg Config) (stt.Factory, error)
type TTSFactoryBuilder func(cfg Config) (tts.Factory, error)
type LLMFactory func(cfg Config) (llm.Adapter, error)

type ProviderRegistry struct {
	stt map[string]STTFactoryBuilder
	tts map[string]TTSFactoryBuilder
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactoryBuilder),
		tts: make(map[string]TTSFactoryBuilder),
		llm: make(map[string]LLMFactory),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactoryBuilder) {
	r.stt[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactoryBuilder) {
	r.tts[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalizeProvider(name)] = factory
}

// BuildSTTFactory returns nil without error when no provider is configured,
// which leaves voice input unsupported.
func (r *ProviderRegistry) BuildSTTFactory(provider string, cfg Config) (stt.Factory, error) {
	name := normalizeProvider(provider)
	if name == "" || name == "none" {
		return nil, nil
	}
	fn := r.stt[name]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(cfg)
}

// BuildTTSFactory returns nil without error when no provider is configured.
func (r *ProviderRegistry) BuildTTSFactory(provider string, cfg Config) (tts.Factory, error) {
	name := normalizeProvider(provider)
	if name == "" || name == "none" {
		return nil, nil
	}
	fn := r.tts[name]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.Adapter, error) {
	fn := r.llm[normalizeProvider(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
