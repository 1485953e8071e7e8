package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/logging"
)

// Client calls a remote feedback endpoint. It issues exactly one POST per
// Request and never retries.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "feedback_client"),
	}
}

func (c *Client) Request(ctx context.Context, answers []Answer) (string, error) {
	if len(answers) == 0 {
		return "", ErrEmptyTranscript
	}
	body, err := json.Marshal(Request{UserAnswers: answers})
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonValidation)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		c.log().Error("feedback_request_build_failed", slog.String("error", err.Error()))
		return "", unavailable(errorsx.ReasonFeedbackNetwork)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		c.log().Error("feedback_network_error",
			slog.String("endpoint", c.Endpoint),
			slog.String("error", err.Error()))
		return "", unavailable(errorsx.ReasonFeedbackNetwork)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.log().Error("feedback_read_failed", slog.String("error", err.Error()))
		return "", unavailable(errorsx.ReasonFeedbackNetwork)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log().Error("feedback_upstream_error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)))
		return "", unavailable(errorsx.ReasonFeedbackUpstream)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.Feedback) == "" {
		c.log().Error("feedback_malformed_response",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)))
		return "", unavailable(errorsx.ReasonFeedbackUpstream)
	}
	return out.Feedback, nil
}

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
