package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

// ErrNoChoices is returned when the completion carries no choices.
var ErrNoChoices = errors.New("openai: no choices")

// completer is the slice of the go-openai client used here.
type completer interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Adapter struct {
	Model       string
	Temperature float32
	client      completer
}

// NewAdapter builds an adapter for the OpenAI chat completions API.
// baseURL may be empty to use the public endpoint.
func NewAdapter(apiKey, model, baseURL string) *Adapter {
	cfg := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Adapter{
		Model:  model,
		client: goopenai.NewClientWithConfig(cfg),
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Generate(ctx context.Context, prompt llm.Prompt) (llm.Response, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt.User,
	})

	resp, err := a.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       a.Model,
		Messages:    messages,
		Temperature: a.Temperature,
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return llm.Response{}, resilience.RateLimitError{Provider: "openai", Message: apiErr.Message}
		}
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return llm.Response{}, ErrNoChoices
	}
	first := resp.Choices[0]
	return llm.Response{
		Text:         first.Message.Content,
		FinishReason: string(first.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

var _ llm.Adapter = (*Adapter)(nil)
