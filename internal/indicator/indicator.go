// Package indicator shows recording state as desktop notifications and
// plays short audio cues.
package indicator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/prepcoach/internal/config"
)

const (
	textRecording    = "Recording your answer…"
	textTranscribing = "Transcribing…"
	textError        = "Voice input failed; type your answer instead"

	persistentTimeoutMS = 300000
	defaultErrorMS      = 1200
)

// Notifier implements recording.Observer and adds the transcription outcome
// cues the session loop reports.
type Notifier struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger

	send func(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error)
	shut func(ctx context.Context, id uint32) error
	play func(ctx context.Context, kind cueKind) error

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	sounds         sync.WaitGroup
}

// New builds a Notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{
		cfg:    cfg,
		logger: logger,
		send:   desktopNotify,
		shut:   desktopDismiss,
		play:   emitCue,
	}
}

// RecordingStarted plays the start cue and shows a persistent notification.
func (n *Notifier) RecordingStarted(ctx context.Context) {
	n.playCue(cueStart)
	n.show(ctx, persistentTimeoutMS, textRecording)
}

// RecordingStopped plays the stop cue and shows the transcription notice.
func (n *Notifier) RecordingStopped(ctx context.Context) {
	n.playCue(cueStop)
	n.show(ctx, persistentTimeoutMS, textTranscribing)
}

// RecordingFailed shows a short-lived error notification.
func (n *Notifier) RecordingFailed(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = textError
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorMS
	}
	n.show(ctx, timeout, text)
}

// TranscriptReady plays the completion cue and clears the notification.
func (n *Notifier) TranscriptReady(ctx context.Context) {
	n.playCue(cueComplete)
	n.hide(ctx)
}

// Cancelled plays the cancel cue and clears the notification.
func (n *Notifier) Cancelled(ctx context.Context) {
	n.playCue(cueCancel)
	n.hide(ctx)
}

// Wait blocks until queued cues have played.
func (n *Notifier) Wait() {
	n.sounds.Wait()
}

func (n *Notifier) show(ctx context.Context, timeoutMS int, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		n.mu.Lock()
		replaceID := n.notificationID
		n.mu.Unlock()

		appName := strings.TrimSpace(n.cfg.DesktopAppName)
		if appName == "" {
			appName = "prepcoach"
		}
		id, err := n.send(ctx, appName, replaceID, text, timeoutMS)
		if err != nil {
			return err
		}

		n.mu.Lock()
		n.notificationID = id
		n.mu.Unlock()
		return nil
	})
}

func (n *Notifier) hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()
	if id == 0 {
		return
	}
	n.run(ctx, func(ctx context.Context) error { return n.shut(ctx, id) })
}

// run executes one notification call with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue serializes cue playback off the caller's goroutine.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.sounds.Add(1)
	go func() {
		defer n.sounds.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.play(ctx, kind); err != nil {
			n.logger.Debug("indicator audio cue failed", "error", err.Error())
		}
	}()
}
