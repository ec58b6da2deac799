package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/outcome"
)

// PlaceholderAnalysis is the fixed analysis shown when the collaborator
// cannot analyze a problem. It is only ever returned inside a Fallback outcome.
func PlaceholderAnalysis() collab.Analysis {
	return collab.Analysis{
		Topic:            "Advanced Mathematics",
		Subtopic:         "Number Theory & Analysis",
		Difficulty:       4,
		RequiredConcepts: []string{"Irrational Numbers", "Dirichlet Principle", "Equidistribution"},
		FirstQuestion:    "What mathematical principle can help establish density in a bounded set?",
	}
}

// DegradedMode substitutes placeholders for failed non-critical reads.
type DegradedMode struct {
	logger *slog.Logger
}

// NewDegradedMode builds the fallback policy.
func NewDegradedMode(logger *slog.Logger) *DegradedMode {
	return &DegradedMode{logger: orDiscard(logger)}
}

// Analyze returns a live analysis, or the placeholder when the request fails.
// A canceled context is a failure, not a fallback.
func (d *DegradedMode) Analyze(ctx context.Context, svc ProblemAnalyzer, problem string) outcome.Outcome[collab.Analysis] {
	if svc == nil {
		return d.fallback(fmt.Errorf("%w: analysis service not configured", ErrTransientService))
	}
	analysis, err := svc.Analyze(ctx, collab.AnalyzeRequest{ProblemText: problem})
	if err == nil {
		analysis.Difficulty = collab.Level(clamp(float64(analysis.Difficulty), 1, 5))
		return outcome.Live(analysis)
	}
	if errors.Is(err, context.Canceled) {
		return outcome.Failed[collab.Analysis](err)
	}
	return d.fallback(fmt.Errorf("%w: %w", ErrTransientService, err))
}

func (d *DegradedMode) fallback(cause error) outcome.Outcome[collab.Analysis] {
	d.logger.Warn("using placeholder analysis", "fallback", true, "error", cause.Error())
	return outcome.Fallback(PlaceholderAnalysis(), cause)
}
