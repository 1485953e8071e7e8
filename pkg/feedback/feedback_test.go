package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

var sampleAnswers = []Answer{
	{Question: "Tell me about yourself.", Answer: "I am a backend engineer."},
	{Question: "What makes you a good team member?", Answer: "I review code quickly."},
}

type fakeLLM struct {
	text   string
	err    error
	prompt llm.Prompt
	calls  int
}

func (f *fakeLLM) Name() string { return "fake_llm" }

func (f *fakeLLM) Generate(ctx context.Context, p llm.Prompt) (llm.Response, error) {
	f.calls++
	f.prompt = p
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.text}, nil
}

type stubRequester struct {
	text string
	err  error
}

func (s stubRequester) Request(ctx context.Context, answers []Answer) (string, error) {
	return s.text, s.err
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(sampleAnswers)
	want := "Question: Tell me about yourself.\nAnswer: I am a backend engineer.\n\nQuestion: What makes you a good team member?\nAnswer: I review code quickly."
	if !strings.HasSuffix(p.User, want) {
		t.Fatalf("transcript block missing:\n%s", p.User)
	}
	for _, s := range []string{"strength", "improve", "example", "markdown"} {
		if !strings.Contains(p.User, s) {
			t.Fatalf("prompt missing %q", s)
		}
	}
	if !strings.Contains(p.System, "hiring manager") {
		t.Fatalf("unexpected persona %q", p.System)
	}
}

func TestClientSuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"feedback":"**Strength:** concise"}`))
	}))
	defer srv.Close()

	text, err := NewClient(srv.URL, 0, nil).Request(context.Background(), sampleAnswers)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if text != "**Strength:** concise" {
		t.Fatalf("unexpected feedback %q", text)
	}
	if len(got.UserAnswers) != 2 || got.UserAnswers[1] != sampleAnswers[1] {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestClientUpstreamErrorIsGeneric(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"quota exceeded for project 1234"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0, nil).Request(context.Background(), sampleAnswers)
	if !errors.Is(err, ErrUnavailable) || !errorsx.HasReason(err, errorsx.ReasonFeedbackUpstream) {
		t.Fatalf("expected upstream ErrUnavailable, got %v", err)
	}
	if err.Error() != "feedback unavailable" {
		t.Fatalf("raw upstream error leaked: %q", err.Error())
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one call, got %d", calls.Load())
	}
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"wrong field"}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, 0, nil).Request(context.Background(), sampleAnswers); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, 0, nil).Request(context.Background(), sampleAnswers)
	if !errors.Is(err, ErrUnavailable) || !errorsx.HasReason(err, errorsx.ReasonFeedbackNetwork) {
		t.Fatalf("expected network ErrUnavailable, got %v", err)
	}
}

func TestClientEmptyTranscriptSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0, nil).Request(context.Background(), nil)
	if !errors.Is(err, ErrEmptyTranscript) || !errorsx.HasReason(err, errorsx.ReasonValidation) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestGenerator(t *testing.T) {
	fake := &fakeLLM{text: "**Strength:** ownership"}
	text, err := NewGenerator(fake, nil).Request(context.Background(), sampleAnswers)
	if err != nil || text != "**Strength:** ownership" {
		t.Fatalf("unexpected result %q %v", text, err)
	}
	if !strings.Contains(fake.prompt.User, "Answer: I review code quickly.") {
		t.Fatalf("prompt missing transcript")
	}
}

func TestGeneratorFailures(t *testing.T) {
	cases := []struct {
		name   string
		llm    *fakeLLM
		reason errorsx.ReasonCode
	}{
		{"upstream", &fakeLLM{err: errors.New("boom")}, errorsx.ReasonFeedbackUpstream},
		{"rate limit", &fakeLLM{err: resilience.RateLimitError{Provider: "gemini"}}, errorsx.ReasonLLMRateLimit},
		{"empty text", &fakeLLM{text: "  "}, errorsx.ReasonFeedbackUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGenerator(tc.llm, nil).Request(context.Background(), sampleAnswers)
			if !errors.Is(err, ErrUnavailable) || !errorsx.HasReason(err, tc.reason) {
				t.Fatalf("expected %s, got %v (%s)", tc.reason, err, errorsx.Reason(err))
			}
		})
	}

	fake := &fakeLLM{text: "unused"}
	if _, err := NewGenerator(fake, nil).Request(context.Background(), nil); !errors.Is(err, ErrEmptyTranscript) || fake.calls != 0 {
		t.Fatalf("expected validation error without generation, got %v calls=%d", err, fake.calls)
	}
}

func serve(t *testing.T, gen Requester) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(gen, RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestRouterPreflight(t *testing.T) {
	srv := serve(t, stubRequester{text: "ok"})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/feedback", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing permissive origin header")
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatalf("POST not allowed in preflight")
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "Content-Type") {
		t.Fatalf("Content-Type not allowed in preflight")
	}
}

func TestRouterRejectsOtherMethods(t *testing.T) {
	srv := serve(t, stubRequester{text: "ok"})
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req, _ := http.NewRequest(method, srv.URL+"/api/feedback", nil)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, resp.StatusCode)
		}
	}
}

func TestRouterNoAnswers(t *testing.T) {
	srv := serve(t, stubRequester{text: "ok"})
	resp, err := srv.Client().Post(srv.URL+"/api/feedback", "application/json", strings.NewReader(`{"userAnswers":[]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if out := decodeResponse(t, resp); out.Error != MessageNoAnswers {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestRouterUpstreamFailure(t *testing.T) {
	srv := serve(t, stubRequester{err: unavailable(errorsx.ReasonFeedbackUpstream)})
	body, _ := json.Marshal(Request{UserAnswers: sampleAnswers})
	resp, err := srv.Client().Post(srv.URL+"/api/feedback", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if out := decodeResponse(t, resp); out.Error != MessageUpstreamError {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestClientAgainstRouter(t *testing.T) {
	fake := &fakeLLM{text: "**Strength:** calm delivery"}
	srv := serve(t, NewGenerator(fake, nil))

	text, err := NewClient(srv.URL+"/api/feedback", 0, nil).Request(context.Background(), sampleAnswers)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if text != "**Strength:** calm delivery" {
		t.Fatalf("unexpected feedback %q", text)
	}

	fake.err = errors.New("upstream exploded")
	_, err = NewClient(srv.URL+"/api/feedback", 0, nil).Request(context.Background(), sampleAnswers)
	if !errors.Is(err, ErrUnavailable) || strings.Contains(err.Error(), "exploded") {
		t.Fatalf("expected generic failure, got %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv := serve(t, stubRequester{})
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
