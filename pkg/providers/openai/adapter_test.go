package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

type stubCompleter struct {
	req  goopenai.ChatCompletionRequest
	resp goopenai.ChatCompletionResponse
	err  error
}

func (s *stubCompleter) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	s.req = req
	return s.resp, s.err
}

func TestGenerateBuildsMessages(t *testing.T) {
	stub := &stubCompleter{resp: goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message:      goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: "**Strength:** focus"},
			FinishReason: goopenai.FinishReasonStop,
		}},
	}}
	a := &Adapter{Model: "gpt-4o-mini", client: stub}

	resp, err := a.Generate(context.Background(), llm.Prompt{System: "be an interviewer", User: "transcript"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "**Strength:** focus" || resp.FinishReason != "stop" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(stub.req.Messages) != 2 || stub.req.Messages[0].Role != goopenai.ChatMessageRoleSystem {
		t.Fatalf("unexpected messages %+v", stub.req.Messages)
	}
	if stub.req.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model %q", stub.req.Model)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	a := &Adapter{Model: "m", client: &stubCompleter{}}
	if _, err := a.Generate(context.Background(), llm.Prompt{User: "x"}); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	a := &Adapter{Model: "m", client: &stubCompleter{err: &goopenai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow"}}}
	if _, err := a.Generate(context.Background(), llm.Prompt{User: "x"}); !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}
