// Package transcribe turns a stopped recording into editable answer text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/prepcoach/internal/outcome"
	"github.com/rbright/prepcoach/internal/recording"
	"github.com/rbright/prepcoach/internal/transcript"
)

var (
	// ErrTranscriptionUnavailable is recoverable: the caller falls back to typed entry.
	ErrTranscriptionUnavailable = errors.New("audio transcription is currently unavailable; please type your answer instead")
	// ErrRecordingNotStopped is returned for recordings that are still running or empty.
	ErrRecordingNotStopped = errors.New("recording must be stopped before transcription")
)

// Service is the collaborator capability used by Bridge.
type Service interface {
	Transcribe(ctx context.Context, audio []byte, filename string, language string) (string, error)
}

// Options configures a Bridge.
type Options struct {
	Language            string
	CapitalizeSentences bool
	// DumpDir, when set, receives a copy of every uploaded recording.
	DumpDir string
	Logger  *slog.Logger
}

// Bridge uploads recordings for speech-to-text.
type Bridge struct {
	service Service
	opts    Options
}

// New builds a Bridge.
func New(service Service, opts Options) *Bridge {
	if opts.Language == "" {
		opts.Language = "en"
	}
	return &Bridge{service: service, opts: opts}
}

// Transcribe never fails hard: every failure is a Failed outcome whose error
// wraps ErrTranscriptionUnavailable or ErrRecordingNotStopped.
func (b *Bridge) Transcribe(ctx context.Context, rec recording.Recording) outcome.Outcome[string] {
	if !rec.Stopped() || len(rec.Audio) == 0 {
		return outcome.Failed[string](ErrRecordingNotStopped)
	}
	if b.service == nil {
		return outcome.Failed[string](ErrTranscriptionUnavailable)
	}

	b.dump(rec.Audio)

	start := time.Now()
	raw, err := b.service.Transcribe(ctx, rec.Audio, "answer.wav", b.opts.Language)
	if err != nil {
		b.warn("transcription failed", "error", err.Error(), "elapsed_s", rec.Elapsed)
		return outcome.Failed[string](fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err))
	}

	text := transcript.Normalize(raw, transcript.Options{CapitalizeSentences: b.opts.CapitalizeSentences})
	if text == "" {
		b.warn("transcription returned no speech", "elapsed_s", rec.Elapsed)
		return outcome.Failed[string](fmt.Errorf("%w: no speech recognized", ErrTranscriptionUnavailable))
	}

	if b.opts.Logger != nil {
		b.opts.Logger.Info("transcription complete",
			"chars", len(text),
			"elapsed_s", rec.Elapsed,
			"duration", time.Since(start).String(),
		)
	}
	return outcome.Live(text)
}

// dump writes the recording under DumpDir for debugging; failures only log.
func (b *Bridge) dump(audio []byte) {
	if b.opts.DumpDir == "" {
		return
	}
	if err := os.MkdirAll(b.opts.DumpDir, 0o700); err != nil {
		b.warn("unable to create audio dump dir", "error", err.Error())
		return
	}
	path := filepath.Join(b.opts.DumpDir, fmt.Sprintf("audio-%s.wav", time.Now().Format("20060102-150405.000")))
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		b.warn("unable to write audio dump", "error", err.Error())
	}
}

func (b *Bridge) warn(msg string, args ...any) {
	if b.opts.Logger == nil {
		return
	}
	b.opts.Logger.Warn(msg, args...)
}

// IsRecoverable reports whether err leaves typed entry as the way forward.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrTranscriptionUnavailable) || errors.Is(err, ErrRecordingNotStopped)
}

