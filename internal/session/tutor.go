package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/prepcoach/internal/collab"
)

const defaultTutorReply = "How can I help you with this step?"

// Tutor holds one submitted exercise and its chat transcript.
type Tutor struct {
	svc    TutorService
	logger *slog.Logger

	mu         sync.Mutex
	epoch      uint64
	submission *collab.Submission
	messages   []collab.ChatMessage
	inflight   bool
}

// NewTutor builds an empty tutor.
func NewTutor(svc TutorService, logger *slog.Logger) *Tutor {
	return &Tutor{svc: svc, logger: orDiscard(logger)}
}

// Submit uploads an exercise and seeds the chat with the tutor's opening context.
func (t *Tutor) Submit(ctx context.Context, ex collab.Exercise) (collab.Submission, error) {
	if strings.TrimSpace(ex.Text) == "" && len(ex.File) == 0 {
		return collab.Submission{}, fmt.Errorf("%w: exercise needs text or a file", ErrEmptyInput)
	}
	if t.svc == nil {
		return collab.Submission{}, fmt.Errorf("%w: tutor service not configured", ErrTransientService)
	}

	t.mu.Lock()
	if t.inflight {
		t.mu.Unlock()
		return collab.Submission{}, ErrRequestInFlight
	}
	t.inflight = true
	t.epoch++
	epoch := t.epoch
	t.mu.Unlock()

	sub, err := t.svc.SubmitExercise(ctx, ex)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		return collab.Submission{}, ErrSuperseded
	}
	t.inflight = false
	if err != nil {
		return collab.Submission{}, fmt.Errorf("%w: %w", ErrTransientService, err)
	}
	t.submission = &sub
	t.messages = append([]collab.ChatMessage(nil), sub.Chat.Context...)
	t.logger.Info("exercise submitted", "submission_id", sub.SubmissionID, "topic", sub.Problem.Topic)
	return sub, nil
}

// Chat sends one learner message. The message stays in the transcript even
// when the reply fails.
func (t *Tutor) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyInput
	}

	t.mu.Lock()
	if t.submission == nil {
		t.mu.Unlock()
		return "", ErrNotStarted
	}
	if t.inflight {
		t.mu.Unlock()
		return "", ErrRequestInFlight
	}
	t.inflight = true
	t.messages = append(t.messages, collab.ChatMessage{Role: "user", Content: message})
	epoch, id := t.epoch, t.submission.SubmissionID
	t.mu.Unlock()

	reply, err := t.svc.Chat(ctx, id, message)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		return "", ErrSuperseded
	}
	t.inflight = false
	if err != nil {
		t.logger.Warn("tutor chat failed", "submission_id", id, "error", err.Error())
		return "", fmt.Errorf("%w: %w", ErrTransientService, err)
	}

	content := strings.TrimSpace(reply.TutorResponse)
	if content == "" {
		content = strings.TrimSpace(reply.Guidance)
	}
	if content == "" {
		content = defaultTutorReply
	}
	t.messages = append(t.messages, collab.ChatMessage{Role: "assistant", Content: content})
	return content, nil
}

// Submission returns the current exercise, if any.
func (t *Tutor) Submission() (collab.Submission, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.submission == nil {
		return collab.Submission{}, false
	}
	return *t.submission, true
}

// Messages returns a copy of the chat transcript.
func (t *Tutor) Messages() []collab.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]collab.ChatMessage(nil), t.messages...)
}

// Reset forgets the exercise; pending replies are discarded.
func (t *Tutor) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch++
	t.submission = nil
	t.messages = nil
	t.inflight = false
}
