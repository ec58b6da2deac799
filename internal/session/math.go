package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/fsm"
	"github.com/rbright/prepcoach/internal/outcome"
	"github.com/rbright/prepcoach/internal/recording"
)

// DownloadFormats lists the formats accepted by Math.Download.
var DownloadFormats = []string{"markdown", "latex", "html", "json"}

// Step is one accepted unit of a derivation.
type Step struct {
	Number   int                 `json:"number" yaml:"number"`
	Text     string              `json:"text" yaml:"text"`
	Feedback collab.StepFeedback `json:"-" yaml:"-"`
}

// MathConfig wires a Math session.
type MathConfig struct {
	Service MathService
	Voice   *Voice
	Logger  *slog.Logger
	// OnHint receives each hint that becomes current.
	OnHint func(collab.Hint)
	Now    func() time.Time
}

// MathSnapshot is a consistent copy of math session state.
type MathSnapshot struct {
	State       fsm.State
	SessionID   string
	Problem     string
	Analysis    collab.Analysis
	Placeholder bool
	Steps       []Step
	NextStep    int
	Draft       string
	Feedback    *collab.StepFeedback
	Hint        *collab.Hint
	Solution    *collab.Solution
	Recording   recording.Recording
}

// Math is the math-tutoring session controller.
type Math struct {
	svc      MathService
	answers  *AnswerPipeline
	hints    *HintSequencer
	degraded *DegradedMode
	voice    *Voice
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       fsm.State
	epoch       uint64
	id          string
	problem     string
	analysis    collab.Analysis
	placeholder bool
	steps       []Step
	draft       string
	feedback    *collab.StepFeedback
	solution    *collab.Solution
}

// NewMath builds an idle math session.
func NewMath(cfg MathConfig) *Math {
	logger := orDiscard(cfg.Logger)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	voice := cfg.Voice
	if voice == nil {
		voice = NewVoice(nil, nil)
	}
	return &Math{
		svc:      cfg.Service,
		answers:  NewAnswerPipeline(nil, cfg.Service, logger),
		hints:    NewHintSequencer(cfg.Service, logger, cfg.OnHint),
		degraded: NewDegradedMode(logger),
		voice:    voice,
		logger:   logger,
		now:      now,
		state:    fsm.StateIdle,
	}
}

// State returns the current phase.
func (m *Math) State() fsm.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Hints exposes the sequencer so callers can wait for pending hints.
func (m *Math) Hints() *HintSequencer {
	return m.hints
}

func (m *Math) transition(event fsm.Event) error {
	next, err := fsm.Math(m.state, event)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

// Start analyzes the problem and enters the solving phase. When analysis
// fails the placeholder is used and the outcome is Fallback; solving is
// entered either way. The first hint is requested automatically.
func (m *Math) Start(ctx context.Context, problem string) (outcome.Outcome[collab.Analysis], error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return outcome.Failed[collab.Analysis](ErrEmptyInput), ErrEmptyInput
	}

	m.mu.Lock()
	if err := m.transition(fsm.EventStart); err != nil {
		m.mu.Unlock()
		return outcome.Failed[collab.Analysis](err), err
	}
	m.epoch++
	epoch := m.epoch
	m.id = NewSessionID(m.now())
	m.problem = problem
	m.mu.Unlock()

	out := m.degraded.Analyze(ctx, m.svc, problem)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return outcome.Failed[collab.Analysis](ErrSuperseded), ErrSuperseded
	}
	if out.IsFailed() {
		_ = m.transition(fsm.EventFail)
		m.mu.Unlock()
		return out, out.Err
	}
	_ = m.transition(fsm.EventAnalyzed)
	m.analysis = out.Value
	m.placeholder = out.IsFallback()
	m.steps = nil
	m.clearItemLocked()
	progress := m.progressLocked()
	id := m.id
	m.mu.Unlock()

	m.logger.Info("math session started", "session_id", id, "topic", out.Value.Topic, "fallback", out.IsFallback())
	m.hints.Request(ctx, problem, progress)
	return out, nil
}

// SetStep replaces the editable step text.
func (m *Math) SetStep(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != fsm.StateSolving && m.state != fsm.StateValidating {
		return fmt.Errorf("%w: cannot edit a step in state %s", ErrNotStarted, m.state)
	}
	m.draft = text
	return nil
}

// StartRecording begins a voice step.
func (m *Math) StartRecording(ctx context.Context) error {
	if state := m.State(); state != fsm.StateSolving {
		return fmt.Errorf("%w: cannot record in state %s", ErrNotStarted, state)
	}
	return m.voice.start(ctx)
}

// StopRecording finalizes the recording and, on success, replaces the draft.
func (m *Math) StopRecording(ctx context.Context) outcome.Outcome[string] {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	out := m.voice.finish(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return outcome.Failed[string](ErrSuperseded)
	}
	if out.IsLive() {
		m.draft = out.Value
	}
	return out
}

// CancelRecording discards the recording in progress.
func (m *Math) CancelRecording() {
	m.voice.reset()
}

// Submit validates the draft as the next step. A correct step is appended
// with the next sequence number and the draft is cleared; an incorrect step
// only updates the feedback so it can be revised and resubmitted.
func (m *Math) Submit(ctx context.Context) (collab.StepFeedback, error) {
	m.mu.Lock()
	if m.state == fsm.StateValidating {
		m.mu.Unlock()
		return collab.StepFeedback{}, ErrRequestInFlight
	}
	if m.state != fsm.StateSolving {
		state := m.state
		m.mu.Unlock()
		return collab.StepFeedback{}, fmt.Errorf("%w: cannot submit in state %s", ErrNotStarted, state)
	}
	draft := strings.TrimSpace(m.draft)
	if draft == "" {
		m.mu.Unlock()
		return collab.StepFeedback{}, ErrEmptyInput
	}
	if err := m.transition(fsm.EventSubmit); err != nil {
		m.mu.Unlock()
		return collab.StepFeedback{}, err
	}
	epoch := m.epoch
	number := len(m.steps) + 1
	req := collab.ValidateStepRequest{
		ProblemText: m.problem,
		StepNumber:  number,
		StudentStep: draft,
		Context:     m.contextLocked(),
	}
	key := fmt.Sprintf("%s#s%d", m.id, number)
	m.mu.Unlock()

	fb, err := m.answers.Step(ctx, key, req)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return collab.StepFeedback{}, ErrSuperseded
	}
	if err != nil {
		_ = m.transition(fsm.EventFail)
		m.mu.Unlock()
		return collab.StepFeedback{}, err
	}
	_ = m.transition(fsm.EventGraded)
	m.feedback = &fb
	if !fb.IsCorrect {
		m.mu.Unlock()
		return fb, nil
	}

	m.steps = append(m.steps, Step{Number: number, Text: draft, Feedback: fb})
	m.draft = ""
	problem, progress := m.problem, m.progressLocked()
	m.mu.Unlock()

	m.voice.reset()
	m.hints.Request(ctx, problem, progress)
	return fb, nil
}

// RequestHint asks for a fresh hint for the current progress.
func (m *Math) RequestHint(ctx context.Context) error {
	m.mu.Lock()
	if m.state != fsm.StateSolving && m.state != fsm.StateValidating {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: no problem in progress (state %s)", ErrNotStarted, state)
	}
	problem, progress := m.problem, m.progressLocked()
	m.mu.Unlock()

	m.hints.Request(ctx, problem, progress)
	return nil
}

// Finish requests the worked solution for the accepted steps. Failures are
// surfaced and leave the session solving so Finish can be retried.
func (m *Math) Finish(ctx context.Context) (collab.Solution, error) {
	m.mu.Lock()
	if m.state != fsm.StateSolving {
		state := m.state
		m.mu.Unlock()
		return collab.Solution{}, fmt.Errorf("%w: cannot finish in state %s", ErrNotStarted, state)
	}
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return collab.Solution{}, fmt.Errorf("%w: %w", ErrReportGenerationFailed, ErrNothingToReport)
	}
	if err := m.transition(fsm.EventFinish); err != nil {
		m.mu.Unlock()
		return collab.Solution{}, err
	}
	m.epoch++
	epoch := m.epoch
	req := collab.SolutionRequest{ProblemText: m.problem, StudentSolution: m.contextLocked()}
	id := m.id
	m.mu.Unlock()

	m.voice.reset()

	if m.svc == nil {
		return collab.Solution{}, m.failFinish(epoch, fmt.Errorf("%w: solution service not configured", ErrReportGenerationFailed))
	}
	solution, err := m.svc.GenerateSolution(ctx, req)
	if err != nil {
		return collab.Solution{}, m.failFinish(epoch, fmt.Errorf("%w: %w", ErrReportGenerationFailed, err))
	}
	solution.MasteryScore = masteryPercent(solution.MasteryScore)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return collab.Solution{}, ErrSuperseded
	}
	_ = m.transition(fsm.EventSolved)
	m.solution = &solution
	m.logger.Info("math session solved", "session_id", id, "steps", len(m.steps), "mastery", solution.MasteryScore)
	m.mu.Unlock()

	m.hints.Reset()
	return solution, nil
}

// masteryPercent maps a mastery score onto 0..100. Scores up to 1 are
// fractions of full mastery.
func masteryPercent(v float64) float64 {
	if v > 0 && v <= 1 {
		v *= 100
	}
	return clamp(v, 0, 100)
}

func (m *Math) failFinish(epoch uint64, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return ErrSuperseded
	}
	_ = m.transition(fsm.EventFail)
	m.logger.Warn("solution generation failed", "error", err.Error())
	return err
}

// Download renders the finished solution in one of DownloadFormats.
func (m *Math) Download(ctx context.Context, format string) (collab.Download, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if !validFormat(format) {
		return collab.Download{}, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, format, strings.Join(DownloadFormats, ", "))
	}

	m.mu.Lock()
	if m.state != fsm.StateSolutionReady || m.solution == nil {
		state := m.state
		m.mu.Unlock()
		return collab.Download{}, fmt.Errorf("%w: no solution to download (state %s)", ErrNotStarted, state)
	}
	req := collab.DownloadRequest{ProblemText: m.problem, SolutionData: *m.solution, FormatType: format}
	m.mu.Unlock()

	if m.svc == nil {
		return collab.Download{}, fmt.Errorf("%w: download service not configured", ErrTransientService)
	}
	doc, err := m.svc.Download(ctx, req)
	if err != nil {
		return collab.Download{}, fmt.Errorf("%w: %w", ErrTransientService, err)
	}
	return doc, nil
}

// Reset discards the session, its hints, and any recording.
func (m *Math) Reset() {
	m.mu.Lock()
	m.epoch++
	_ = m.transition(fsm.EventReset)
	m.id = ""
	m.problem = ""
	m.analysis = collab.Analysis{}
	m.placeholder = false
	m.steps = nil
	m.solution = nil
	m.clearItemLocked()
	m.mu.Unlock()

	m.hints.Reset()
	m.voice.reset()
}

// Snapshot returns a copy of the session state.
func (m *Math) Snapshot() MathSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MathSnapshot{
		State:       m.state,
		SessionID:   m.id,
		Problem:     m.problem,
		Analysis:    m.analysis,
		Placeholder: m.placeholder,
		Steps:       append([]Step(nil), m.steps...),
		NextStep:    len(m.steps) + 1,
		Draft:       m.draft,
		Recording:   m.voice.Snapshot(),
	}
	if m.feedback != nil {
		fb := *m.feedback
		snap.Feedback = &fb
	}
	if m.solution != nil {
		sol := *m.solution
		snap.Solution = &sol
	}
	if hint, ok := m.hints.Current(); ok {
		snap.Hint = &hint
	}
	return snap
}

// contextLocked renders accepted steps as "Step N: text" lines.
func (m *Math) contextLocked() string {
	lines := make([]string, 0, len(m.steps))
	for _, step := range m.steps {
		lines = append(lines, fmt.Sprintf("Step %d: %s", step.Number, step.Text))
	}
	return strings.Join(lines, "\n")
}

func (m *Math) progressLocked() string {
	if len(m.steps) == 0 {
		return "Just started. No steps completed yet."
	}
	return m.contextLocked()
}

func (m *Math) clearItemLocked() {
	m.draft = ""
	m.feedback = nil
}

func validFormat(format string) bool {
	for _, f := range DownloadFormats {
		if f == format {
			return true
		}
	}
	return false
}
