package llm

import "context"

// Prompt is a single-turn completion request.
type Prompt struct {
	System string
	User   string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter is a text-generation provider reached with one request per call.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (Response, error)
}
