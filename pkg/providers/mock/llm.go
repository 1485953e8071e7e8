package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/interviewer/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	Err          error
}

// LLMAdapter answers every prompt with a fixed text and records prompts.
type LLMAdapter struct {
	cfg LLMConfig

	mu      sync.Mutex
	prompts []llm.Prompt
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "**Strength:** You answered every question.\n\n**Improvement:** Add a concrete example to each answer."
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, prompt llm.Prompt) (llm.Response, error) {
	a.mu.Lock()
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	return llm.Response{Text: a.cfg.ResponseText, FinishReason: "stop"}, nil
}

// Prompts returns the prompts received so far.
func (a *LLMAdapter) Prompts() []llm.Prompt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Prompt(nil), a.prompts...)
}

var _ llm.Adapter = (*LLMAdapter)(nil)
