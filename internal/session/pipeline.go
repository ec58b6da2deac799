package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/prepcoach/internal/collab"
)

// AnswerPipeline submits answers and steps for grading with at most one
// request in flight per item. Grading failures are returned as-is, wrapped
// in ErrGradingService; no feedback is ever synthesized.
type AnswerPipeline struct {
	answers AnswerGrader
	steps   StepGrader
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewAnswerPipeline wires the graders; either may be nil when the mode does
// not use it.
func NewAnswerPipeline(answers AnswerGrader, steps StepGrader, logger *slog.Logger) *AnswerPipeline {
	return &AnswerPipeline{
		answers:  answers,
		steps:    steps,
		logger:   orDiscard(logger),
		inflight: make(map[string]struct{}),
	}
}

// Answer grades one interview answer for item key.
func (p *AnswerPipeline) Answer(ctx context.Context, key string, req collab.AnswerRequest) (collab.AnswerFeedback, error) {
	if p.answers == nil {
		return collab.AnswerFeedback{}, fmt.Errorf("%w: answer grading not configured", ErrGradingService)
	}
	req.UserAnswer = strings.TrimSpace(req.UserAnswer)
	fb, err := submit(ctx, p, key, req.UserAnswer, func(ctx context.Context) (collab.AnswerFeedback, error) {
		return p.answers.SubmitAnswer(ctx, req)
	})
	if err != nil {
		return fb, err
	}
	fb.Score = clamp(fb.Score, 0, 100)
	return fb, nil
}

// Step grades one math step for item key.
func (p *AnswerPipeline) Step(ctx context.Context, key string, req collab.ValidateStepRequest) (collab.StepFeedback, error) {
	if p.steps == nil {
		return collab.StepFeedback{}, fmt.Errorf("%w: step grading not configured", ErrGradingService)
	}
	req.StudentStep = strings.TrimSpace(req.StudentStep)
	fb, err := submit(ctx, p, key, req.StudentStep, func(ctx context.Context) (collab.StepFeedback, error) {
		return p.steps.ValidateStep(ctx, req)
	})
	if err != nil {
		return fb, err
	}
	fb.ReasoningQualityScore = clamp(fb.ReasoningQualityScore, 0, 10)
	return fb, nil
}

// InFlight reports whether key has an outstanding request.
func (p *AnswerPipeline) InFlight(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[key]
	return ok
}

func (p *AnswerPipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[key]; busy {
		return false
	}
	p.inflight[key] = struct{}{}
	return true
}

func (p *AnswerPipeline) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, key)
}

func submit[T any](ctx context.Context, p *AnswerPipeline, key string, text string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if strings.TrimSpace(text) == "" {
		return zero, ErrEmptyInput
	}
	if !p.acquire(key) {
		return zero, ErrRequestInFlight
	}
	defer p.release(key)

	start := time.Now()
	out, err := call(ctx)
	if err != nil {
		p.logger.Warn("grading failed", "item", key, "error", err.Error())
		return zero, fmt.Errorf("%w: %w", ErrGradingService, err)
	}
	p.logger.Info("graded", "item", key, "duration", time.Since(start).String())
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
