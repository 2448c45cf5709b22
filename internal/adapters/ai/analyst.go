package ai

import (
	"context"
	"strings"

	"github.com/okian/earnsignal/pkg/logger"
)

// Request kinds, used as metric labels.
const (
	KindSummary = "summary"
	KindScores  = "detailed_scores"
	KindNaive   = "naive_score"
)

// Analyst runs the per-event analyses through a Gateway.
type Analyst struct {
	gateway *Gateway
	prompts Prompts
	// limit truncates transcripts when > 0.
	limit  int
	logger logger.Logger
}

// AnalystOption configures an Analyst.
type AnalystOption func(*Analyst)

// WithTranscriptLimit truncates transcripts to n characters before
// summarizing. Used for models with a small context window.
func WithTranscriptLimit(n int) AnalystOption {
	return func(a *Analyst) { a.limit = n }
}

// WithAnalystLogger sets the logger.
func WithAnalystLogger(l logger.Logger) AnalystOption {
	return func(a *Analyst) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyst returns an Analyst using prompts.
func NewAnalyst(g *Gateway, prompts Prompts, opts ...AnalystOption) *Analyst {
	a := &Analyst{gateway: g, prompts: prompts}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("analyst")
	}
	return a
}

// Summarize condenses a call transcript. A blank transcript yields "".
func (a *Analyst) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		a.logger.Warn(ctx, "empty earnings call transcript")
		return "", nil
	}
	if a.limit > 0 {
		transcript = truncate(transcript, a.limit)
	}
	return a.gateway.Complete(ctx, KindSummary, Request{System: a.prompts.Summary, User: transcript})
}

// DetailedScores returns the structured per-dimension scores of a summary.
func (a *Analyst) DetailedScores(ctx context.Context, summary string) (string, error) {
	return a.gateway.Complete(ctx, KindScores, Request{System: a.prompts.Scores, User: summary, JSON: true})
}

// NaiveScore returns the single-score assessment of a summary.
func (a *Analyst) NaiveScore(ctx context.Context, summary string) (string, error) {
	return a.gateway.Complete(ctx, KindNaive, Request{System: a.prompts.Naive, User: summary, JSON: true})
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
