package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

// ErrMalformedResponse is returned when the provider answers 2xx without a
// first candidate text part.
var ErrMalformedResponse = errors.New("gemini: response has no candidate text")

// UpstreamError carries a non-2xx provider response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.Status, e.Body)
}

type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	if strings.TrimSpace(model) == "" {
		model = "gemini-pro"
	}
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *Adapter) Generate(ctx context.Context, prompt llm.Prompt) (llm.Response, error) {
	body, err := a.buildRequest(prompt)
	if err != nil {
		return llm.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(), body)
	if err != nil {
		return llm.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.APIKey)
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		raw, _ := io.ReadAll(resp.Body)
		return llm.Response{}, resilience.RateLimitError{Provider: "gemini", Message: string(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return llm.Response{}, &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}
	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	return fromProvider(payload)
}

func fromProvider(payload generateResponse) (llm.Response, error) {
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return llm.Response{}, ErrMalformedResponse
	}
	first := payload.Candidates[0]
	text := first.Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return llm.Response{}, ErrMalformedResponse
	}
	return llm.Response{
		Text:         text,
		FinishReason: first.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     payload.UsageMetadata.PromptTokenCount,
			CompletionTokens: payload.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      payload.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (a *Adapter) buildRequest(prompt llm.Prompt) (*bytes.Buffer, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt.User}}}},
	}
	if strings.TrimSpace(prompt.System) != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: prompt.System}}}
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) endpoint() string {
	base := strings.TrimRight(a.BaseURL, "/")
	return base + "/models/" + url.PathEscape(a.Model) + ":generateContent"
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

var _ llm.Adapter = (*Adapter)(nil)
