package feedback

import (
	"context"
	"log/slog"
	"strings"

	"github.com/harunnryd/interviewer/pkg/errorsx"
	"github.com/harunnryd/interviewer/pkg/llm"
	"github.com/harunnryd/interviewer/pkg/logging"
	"github.com/harunnryd/interviewer/pkg/resilience"
)

// Generator produces feedback in-process with a text-generation adapter.
type Generator struct {
	llm    llm.Adapter
	logger *slog.Logger
}

func NewGenerator(adapter llm.Adapter, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: adapter, logger: logging.NewComponentLogger(logger, "feedback_generator")}
}

func (g *Generator) Request(ctx context.Context, answers []Answer) (string, error) {
	if len(answers) == 0 {
		return "", ErrEmptyTranscript
	}
	resp, err := g.llm.Generate(ctx, BuildPrompt(answers))
	if err != nil {
		reason := errorsx.ReasonFeedbackUpstream
		if resilience.IsRateLimit(err) {
			reason = errorsx.ReasonLLMRateLimit
		}
		g.logger.Error("feedback_generation_failed",
			slog.String("provider", g.llm.Name()),
			slog.String("reason", string(reason)),
			slog.String("error", err.Error()))
		return "", unavailable(reason)
	}
	if strings.TrimSpace(resp.Text) == "" {
		g.logger.Error("feedback_generation_empty", slog.String("provider", g.llm.Name()))
		return "", unavailable(errorsx.ReasonFeedbackUpstream)
	}
	g.logger.Info("feedback_generated",
		slog.String("provider", g.llm.Name()),
		slog.Int("answers", len(answers)),
		slog.Int("total_tokens", resp.Usage.TotalTokens))
	return resp.Text, nil
}
