package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/config"
	"github.com/rbright/prepcoach/internal/indicator"
	"github.com/rbright/prepcoach/internal/ipc"
	"github.com/rbright/prepcoach/internal/outcome"
	"github.com/rbright/prepcoach/internal/session"
	"github.com/rbright/prepcoach/internal/transcribe"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	name, arg, ok := parseCommand("  :Download  latex ")
	require.True(t, ok)
	require.Equal(t, "download", name)
	require.Equal(t, "latex", arg)

	_, _, ok = parseCommand("x = 2")
	require.False(t, ok)
}

func TestDescribeError(t *testing.T) {
	transient := fmt.Errorf("%w: %w", session.ErrGradingService, &collab.StatusError{StatusCode: 503})
	require.Contains(t, describeError(transient), "(try again)")

	require.Equal(t, session.ErrEmptyInput.Error(), describeError(session.ErrEmptyInput))
	require.Equal(t, session.ErrRequestInFlight.Error(), describeError(session.ErrRequestInFlight))
	require.Contains(t, describeError(errors.New("boom")), ":reset")
}

func TestStatusLine(t *testing.T) {
	require.Equal(t, "idle", statusLine(ipc.Response{}))
	require.Equal(t, "idle", statusLine(ipc.Response{State: "idle", Message: "elapsed 0s"}))
	require.Equal(t, "s1: recording (elapsed 2s)", statusLine(ipc.Response{State: "recording", Session: "s1", Message: "elapsed 2s"}))
}

func TestWriteSpeechPicksExtension(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	path, err := writeSpeech(collab.Speech{Audio: []byte("RIFF"), ContentType: "audio/wav; charset=binary"})
	require.NoError(t, err)
	require.Equal(t, ".wav", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data))

	path, err = writeSpeech(collab.Speech{Audio: []byte("ID3")})
	require.NoError(t, err)
	require.Equal(t, ".mp3", filepath.Ext(path))
}

type fakeTarget struct {
	startErr  error
	stopped   outcome.Outcome[string]
	stops     int
	cancelled int
}

func (f *fakeTarget) StartRecording(context.Context) error { return f.startErr }

func (f *fakeTarget) StopRecording(context.Context) outcome.Outcome[string] {
	f.stops++
	return f.stopped
}

func (f *fakeTarget) CancelRecording() { f.cancelled++ }

func newTestRuntime() *runtime {
	return &runtime{
		notifier: indicator.New(config.IndicatorConfig{}, nil),
		voice:    session.NewVoice(nil, nil),
	}
}

func TestRecordStopsOnEnter(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(strings.NewReader("\n"), &out)
	target := &fakeTarget{stopped: outcome.Live("hello there")}

	newTestRuntime().record(context.Background(), con, target)

	require.Equal(t, 1, target.stops)
	require.Zero(t, target.cancelled)
	require.Contains(t, out.String(), "transcript: hello there")
}

func TestRecordCancelsOnCommand(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(strings.NewReader(":cancel\n"), &out)
	target := &fakeTarget{}

	newTestRuntime().record(context.Background(), con, target)

	require.Zero(t, target.stops)
	require.Equal(t, 1, target.cancelled)
	require.Contains(t, out.String(), "recording discarded")
}

func TestRecordReportsTranscriptionFailure(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(strings.NewReader("\n"), &out)
	target := &fakeTarget{stopped: outcome.Failed[string](transcribe.ErrTranscriptionUnavailable)}

	newTestRuntime().record(context.Background(), con, target)

	require.Contains(t, out.String(), "please type your answer instead")
}

func TestRecordStartFailureLeavesTyping(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(strings.NewReader(""), &out)
	target := &fakeTarget{startErr: errors.New("no mic")}

	newTestRuntime().record(context.Background(), con, target)

	require.Zero(t, target.stops)
	require.Contains(t, out.String(), "recording unavailable: no mic")
}

func TestRecordCancelledContextDiscards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	blocked := newBlockingReader(t)
	con := newConsole(blocked, &out)
	target := &fakeTarget{}

	newTestRuntime().record(ctx, con, target)

	require.Equal(t, 1, target.cancelled)
}

// newBlockingReader returns a reader that never yields a line during the test.
func newBlockingReader(t *testing.T) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = w.Close()
		_ = r.Close()
	})
	return r
}
