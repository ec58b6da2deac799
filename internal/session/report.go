package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/prepcoach/internal/collab"
)

// Report is the terminal result of an interview session.
type Report struct {
	SessionID    string                `json:"session_id" yaml:"session_id"`
	Role         string                `json:"role" yaml:"role"`
	AverageScore float64               `json:"average_score" yaml:"average_score"`
	Summary      string                `json:"summary" yaml:"summary"`
	Strengths    []string              `json:"strengths" yaml:"strengths"`
	Improvements []string              `json:"improvements" yaml:"improvements"`
	Tips         []string              `json:"tips" yaml:"tips"`
	Answers      []collab.GradedAnswer `json:"answers" yaml:"answers"`
	GeneratedAt  time.Time             `json:"generated_at" yaml:"generated_at"`
}

// ReportAggregator turns the graded answer list into a Report. It holds no
// state, so generating twice for the same answers only re-fetches.
type ReportAggregator struct {
	source ReportSource
	logger *slog.Logger
	now    func() time.Time
}

// NewReportAggregator builds an aggregator.
func NewReportAggregator(source ReportSource, logger *slog.Logger) *ReportAggregator {
	return &ReportAggregator{source: source, logger: orDiscard(logger), now: time.Now}
}

// Generate requests the report. Failures wrap ErrReportGenerationFailed.
func (r *ReportAggregator) Generate(ctx context.Context, sessionID string, answers []collab.GradedAnswer) (Report, error) {
	if len(answers) == 0 {
		return Report{}, fmt.Errorf("%w: %w", ErrReportGenerationFailed, ErrNothingToReport)
	}
	if r.source == nil {
		return Report{}, fmt.Errorf("%w: report service not configured", ErrReportGenerationFailed)
	}

	sent := append([]collab.GradedAnswer(nil), answers...)
	start := time.Now()
	out, err := r.source.GenerateReport(ctx, collab.ReportRequest{SessionID: sessionID, Answers: sent})
	if err != nil {
		r.logger.Warn("report generation failed", "session_id", sessionID, "error", err.Error())
		return Report{}, fmt.Errorf("%w: %w", ErrReportGenerationFailed, err)
	}
	r.logger.Info("report generated",
		"session_id", sessionID,
		"answers", len(sent),
		"duration", time.Since(start).String(),
	)

	return Report{
		SessionID:    sessionID,
		AverageScore: clamp(out.AverageScore, 0, 100),
		Summary:      out.Summary.String(),
		Strengths:    out.Strengths.Lines(),
		Improvements: out.Improvements.Lines(),
		Tips:         out.Tips.Lines(),
		Answers:      sent,
		GeneratedAt:  r.now().UTC(),
	}, nil
}
