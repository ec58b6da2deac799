package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rbright/prepcoach/internal/collab"
)

const (
	minHintLevel = 1
	maxHintLevel = 5
)

// HintSequencer requests hints asynchronously. Only the most recent request
// may update the current hint; failures clear the panel and are logged.
type HintSequencer struct {
	source HintSource
	logger *slog.Logger
	notify func(collab.Hint)

	mu      sync.Mutex
	seq     uint64
	problem string
	level   collab.Level
	current *collab.Hint

	wg sync.WaitGroup
}

// NewHintSequencer builds a sequencer. notify, when set, receives every hint
// that becomes current.
func NewHintSequencer(source HintSource, logger *slog.Logger, notify func(collab.Hint)) *HintSequencer {
	return &HintSequencer{source: source, logger: orDiscard(logger), notify: notify}
}

// Request supersedes any pending hint request and returns its sequence number.
func (h *HintSequencer) Request(ctx context.Context, problem string, progress string) uint64 {
	h.mu.Lock()
	h.seq++
	ticket := h.seq
	if problem != h.problem {
		h.problem = problem
		h.level = 0
		h.current = nil
	}
	h.mu.Unlock()

	if h.source == nil {
		return ticket
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		hint, err := h.source.Hint(ctx, collab.HintRequest{ProblemText: problem, StudentProgress: progress})
		h.apply(ticket, hint, err)
	}()
	return ticket
}

func (h *HintSequencer) apply(ticket uint64, hint collab.Hint, err error) {
	h.mu.Lock()
	if ticket != h.seq {
		h.mu.Unlock()
		h.logger.Debug("discarding stale hint", "ticket", ticket)
		return
	}
	if err != nil {
		h.current = nil
		h.mu.Unlock()
		h.logger.Warn("hint request failed", "error", err.Error())
		return
	}

	level := hint.HintLevel
	if level < minHintLevel {
		level = minHintLevel
	}
	if level > maxHintLevel {
		level = maxHintLevel
	}
	if level < h.level {
		level = h.level
	}
	hint.HintLevel = level
	h.level = level
	h.current = &hint
	notify := h.notify
	h.mu.Unlock()

	if notify != nil {
		notify(hint)
	}
}

// Current returns the hint on display, if any.
func (h *HintSequencer) Current() (collab.Hint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return collab.Hint{}, false
	}
	out := *h.current
	out.NextSteps = append([]string(nil), h.current.NextSteps...)
	return out, true
}

// Reset clears the panel and invalidates every pending request.
func (h *HintSequencer) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.problem = ""
	h.level = 0
	h.current = nil
}

// Wait blocks until every issued request has resolved.
func (h *HintSequencer) Wait() {
	h.wg.Wait()
}
