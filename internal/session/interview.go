// Package session runs interview and math coaching sessions against the
// collaborator service.
package session

import (
	"context"
	"errors"
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

// InterviewConfig wires an Interview.
type InterviewConfig struct {
	Service  InterviewService
	Voice    *Voice
	Logger   *slog.Logger
	Role     string
	Language string
	VoiceID  string
	Now      func() time.Time
}

// InterviewSnapshot is a consistent copy of interview state.
type InterviewSnapshot struct {
	State      fsm.State
	SessionID  string
	Role       string
	Language   string
	Index      int
	Total      int
	Question   string
	Answer     string
	Transcript string
	Feedback   *collab.AnswerFeedback
	Graded     []collab.GradedAnswer
	Report     *Report
	Recording  recording.Recording
}

// Interview is the interview-mode session controller.
type Interview struct {
	svc     InterviewService
	answers *AnswerPipeline
	reports *ReportAggregator
	voice   *Voice
	logger  *slog.Logger
	voiceID string
	now     func() time.Time

	mu         sync.Mutex
	state      fsm.State
	epoch      uint64
	id         string
	role       string
	language   string
	questions  []string
	index      int
	answer     string
	transcript string
	feedback   *collab.AnswerFeedback
	graded     map[int]collab.GradedAnswer
	report     *Report
}

// NewInterview builds an idle interview controller.
func NewInterview(cfg InterviewConfig) *Interview {
	logger := orDiscard(cfg.Logger)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = "default"
	}
	voice := cfg.Voice
	if voice == nil {
		voice = NewVoice(nil, nil)
	}
	return &Interview{
		svc:      cfg.Service,
		answers:  NewAnswerPipeline(cfg.Service, nil, logger),
		reports:  NewReportAggregator(cfg.Service, logger),
		voice:    voice,
		logger:   logger,
		voiceID:  voiceID,
		now:      now,
		state:    fsm.StateIdle,
		role:     cfg.Role,
		language: cfg.Language,
		graded:   make(map[int]collab.GradedAnswer),
	}
}

// State returns the current phase.
func (s *Interview) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Interview) transition(event fsm.Event) error {
	next, err := fsm.Interview(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Start creates a session and fetches its full question set once. Empty
// role or language fall back to the configured defaults.
func (s *Interview) Start(ctx context.Context, role string, language string) error {
	s.mu.Lock()
	if err := s.transition(fsm.EventStart); err != nil {
		s.mu.Unlock()
		return err
	}
	if role = strings.TrimSpace(role); role != "" {
		s.role = role
	}
	if language = strings.TrimSpace(language); language != "" {
		s.language = language
	}
	if s.language == "" {
		s.language = "en"
	}
	s.epoch++
	epoch := s.epoch
	s.id = NewSessionID(s.now())
	role, language, id := s.role, s.language, s.id
	s.mu.Unlock()

	if s.svc == nil {
		return s.failStart(epoch, fmt.Errorf("%w: interview service not configured", ErrTransientService))
	}
	fetched, err := s.svc.Questions(ctx, role, language)
	if err != nil {
		return s.failStart(epoch, fmt.Errorf("%w: %w", ErrTransientService, err))
	}

	questions := make([]string, 0, len(fetched))
	for _, q := range fetched {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return s.failStart(epoch, ErrNoQuestionsAvailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSuperseded
	}
	if err := s.transition(fsm.EventLoaded); err != nil {
		return err
	}
	s.questions = questions
	s.index = 0
	s.clearItemLocked()
	s.logger.Info("interview started", "session_id", id, "role", role, "language", language, "questions", len(questions))
	return nil
}

func (s *Interview) failStart(epoch uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSuperseded
	}
	_ = s.transition(fsm.EventFail)
	s.id = ""
	s.logger.Warn("interview start failed", "error", err.Error())
	return err
}

// SetAnswer replaces the editable answer text.
func (s *Interview) SetAnswer(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != fsm.StateActive && s.state != fsm.StateGrading {
		return fmt.Errorf("%w: cannot edit an answer in state %s", ErrNotStarted, s.state)
	}
	s.answer = text
	return nil
}

// StartRecording begins a voice answer for the current question.
func (s *Interview) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != fsm.StateActive {
		return fmt.Errorf("%w: cannot record in state %s", ErrNotStarted, state)
	}
	return s.voice.start(ctx)
}

// StopRecording finalizes the recording and transcribes it. On success the
// transcript becomes the editable answer; on failure the answer is untouched
// and typed entry remains available.
func (s *Interview) StopRecording(ctx context.Context) outcome.Outcome[string] {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	out := s.voice.finish(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return outcome.Failed[string](ErrSuperseded)
	}
	if out.IsLive() {
		s.transcript = out.Value
		s.answer = out.Value
	}
	return out
}

// CancelRecording discards the recording in progress.
func (s *Interview) CancelRecording() {
	s.voice.reset()
}

// Submit grades the current answer. The result is dropped with ErrSuperseded
// if the session advanced or reset while grading.
func (s *Interview) Submit(ctx context.Context) (collab.AnswerFeedback, error) {
	s.mu.Lock()
	if s.state == fsm.StateGrading {
		s.mu.Unlock()
		return collab.AnswerFeedback{}, ErrRequestInFlight
	}
	if s.state != fsm.StateActive {
		state := s.state
		s.mu.Unlock()
		return collab.AnswerFeedback{}, fmt.Errorf("%w: cannot submit in state %s", ErrNotStarted, state)
	}
	answer := strings.TrimSpace(s.answer)
	if answer == "" {
		s.mu.Unlock()
		return collab.AnswerFeedback{}, ErrEmptyInput
	}
	if err := s.transition(fsm.EventSubmit); err != nil {
		s.mu.Unlock()
		return collab.AnswerFeedback{}, err
	}
	epoch, index := s.epoch, s.index
	question := s.questions[index]
	req := collab.AnswerRequest{
		SessionID:  s.id,
		Question:   question,
		UserAnswer: answer,
		Language:   s.language,
		Role:       s.role,
	}
	key := fmt.Sprintf("%s#q%d", s.id, index)
	s.mu.Unlock()

	fb, err := s.answers.Answer(ctx, key, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return collab.AnswerFeedback{}, ErrSuperseded
	}
	if err != nil {
		_ = s.transition(fsm.EventFail)
		return collab.AnswerFeedback{}, err
	}
	if err := s.transition(fsm.EventGraded); err != nil {
		return collab.AnswerFeedback{}, err
	}
	s.feedback = &fb
	s.graded[index] = collab.GradedAnswer{Question: question, Answer: answer, Score: fb.Score}
	return fb, nil
}

// Advance moves to the next question, clearing per-question state, or
// generates the report after the last one. A report failure leaves the
// session on the last question so Advance can be retried.
func (s *Interview) Advance(ctx context.Context) (InterviewSnapshot, error) {
	s.mu.Lock()
	if s.state != fsm.StateActive && s.state != fsm.StateGrading {
		state := s.state
		s.mu.Unlock()
		return s.Snapshot(), fmt.Errorf("%w: cannot advance in state %s", ErrNotStarted, state)
	}

	if s.index+1 < len(s.questions) {
		if err := s.transition(fsm.EventAdvance); err != nil {
			s.mu.Unlock()
			return s.Snapshot(), err
		}
		s.epoch++
		s.index++
		s.clearItemLocked()
		s.mu.Unlock()
		s.voice.reset()
		return s.Snapshot(), nil
	}

	if err := s.transition(fsm.EventFinish); err != nil {
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	s.epoch++
	epoch, id := s.epoch, s.id
	answers := s.gradedLocked()
	s.mu.Unlock()
	s.voice.reset()

	report, err := s.reports.Generate(ctx, id, answers)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return s.Snapshot(), ErrSuperseded
	}
	if err != nil {
		_ = s.transition(fsm.EventFail)
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	_ = s.transition(fsm.EventReported)
	report.Role = s.role
	s.report = &report
	s.mu.Unlock()
	return s.Snapshot(), nil
}

// Reset discards the session. Pending results are ignored when they arrive.
func (s *Interview) Reset() {
	s.mu.Lock()
	s.epoch++
	_ = s.transition(fsm.EventReset)
	s.id = ""
	s.questions = nil
	s.index = 0
	s.graded = make(map[int]collab.GradedAnswer)
	s.report = nil
	s.clearItemLocked()
	s.mu.Unlock()
	s.voice.reset()
}

// SpeakTips synthesizes the latest feedback tips.
func (s *Interview) SpeakTips(ctx context.Context) (collab.Speech, error) {
	s.mu.Lock()
	var tips string
	if s.feedback != nil {
		tips = strings.TrimSpace(s.feedback.Tips.String())
	}
	s.mu.Unlock()
	if tips == "" {
		return collab.Speech{}, fmt.Errorf("%w: no tips to speak", ErrEmptyInput)
	}
	if s.svc == nil {
		return collab.Speech{}, fmt.Errorf("%w: speech service not configured", ErrTransientService)
	}

	speech, err := s.svc.Speak(ctx, collab.SpeakRequest{Text: tips, VoiceID: s.voiceID})
	if err != nil {
		return collab.Speech{}, fmt.Errorf("%w: %w", ErrTransientService, err)
	}
	return speech, nil
}

// Snapshot returns a copy of the session state.
func (s *Interview) Snapshot() InterviewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := InterviewSnapshot{
		State:      s.state,
		SessionID:  s.id,
		Role:       s.role,
		Language:   s.language,
		Index:      s.index,
		Total:      len(s.questions),
		Answer:     s.answer,
		Transcript: s.transcript,
		Graded:     s.gradedLocked(),
		Recording:  s.voice.Snapshot(),
	}
	if s.index < len(s.questions) {
		snap.Question = s.questions[s.index]
	}
	if s.feedback != nil {
		fb := *s.feedback
		snap.Feedback = &fb
	}
	if s.report != nil {
		r := *s.report
		snap.Report = &r
	}
	return snap
}

// gradedLocked returns graded answers in question order.
func (s *Interview) gradedLocked() []collab.GradedAnswer {
	out := make([]collab.GradedAnswer, 0, len(s.graded))
	for i := range s.questions {
		if g, ok := s.graded[i]; ok {
			out = append(out, g)
		}
	}
	return out
}

func (s *Interview) clearItemLocked() {
	s.answer = ""
	s.transcript = ""
	s.feedback = nil
}

// IsSuperseded reports whether err only signals a discarded stale result.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}
