package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rbright/prepcoach/internal/outcome"
	"github.com/rbright/prepcoach/internal/session"
)

const maxLineBytes = 1 << 20

// console reads input lines in the background and serializes output, since
// hint updates print from other goroutines.
type console struct {
	mu    sync.Mutex
	out   io.Writer
	lines chan string
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{out: out, lines: make(chan string)}
	go func() {
		defer close(c.lines)
		if in == nil {
			return
		}
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
	return c
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// next returns the next line; false means input ended or ctx is done.
func (c *console) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-c.lines:
		return line, ok
	}
}

// parseCommand splits ":name arg" lines. Other lines are draft text.
func parseCommand(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		return "", "", false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, ":"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

// voiceTarget is the recording surface shared by interview and math sessions.
type voiceTarget interface {
	StartRecording(context.Context) error
	StopRecording(context.Context) outcome.Outcome[string]
	CancelRecording()
}

// record runs one recording until Enter, ':cancel', a remote stop or cancel,
// or ctx cancellation. A live transcript replaces the draft.
func (rt *runtime) record(ctx context.Context, con *console, target voiceTarget) {
	if err := target.StartRecording(ctx); err != nil {
		con.printf("recording unavailable: %v\ntype your answer instead\n", err)
		return
	}
	con.printf("recording... press Enter to stop or type :cancel to discard\n")

	action := session.ActionStop
	select {
	case <-ctx.Done():
		action = session.ActionCancel
	case requested := <-rt.voice.Actions():
		action = requested
	case line, ok := <-con.lines:
		if ok {
			if name, _, isCmd := parseCommand(line); isCmd && name == "cancel" {
				action = session.ActionCancel
			}
		}
	}

	if action == session.ActionCancel {
		target.CancelRecording()
		rt.notifier.Cancelled(context.WithoutCancel(ctx))
		con.printf("recording discarded\n")
		return
	}

	out := target.StopRecording(ctx)
	switch {
	case out.IsLive():
		rt.notifier.TranscriptReady(ctx)
		con.printf("transcript: %s\n(type a line to replace it, or :submit)\n", out.Value)
	case session.IsSuperseded(out.Err):
		rt.notifier.Cancelled(ctx)
	default:
		rt.notifier.RecordingFailed(ctx, "Transcription failed")
		con.printf("%v\n", out.Err)
	}
}

// describeError suggests how to continue after a failed action.
func describeError(err error) string {
	switch {
	case session.Retryable(err):
		return err.Error() + " (try again)"
	case errors.Is(err, session.ErrRequestInFlight), session.Recoverable(err):
		return err.Error()
	default:
		return err.Error() + " (use :reset to start over)"
	}
}
