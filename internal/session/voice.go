package session

import (
	"context"
	"fmt"

	"github.com/rbright/prepcoach/internal/fsm"
	"github.com/rbright/prepcoach/internal/ipc"
	"github.com/rbright/prepcoach/internal/outcome"
	"github.com/rbright/prepcoach/internal/recording"
)

// Action is a recording command delivered from outside the session loop.
type Action int

const (
	ActionStop Action = iota + 1
	ActionCancel
)

// Voice pairs the recorder with transcription and accepts remote stop and
// cancel requests for the recording in progress.
type Voice struct {
	recorder Recorder
	bridge   Transcriber
	actions  chan Action
}

// NewVoice builds a Voice. A nil recorder disables voice answers.
func NewVoice(recorder Recorder, bridge Transcriber) *Voice {
	return &Voice{recorder: recorder, bridge: bridge, actions: make(chan Action, 1)}
}

// Enabled reports whether recordings can be made.
func (v *Voice) Enabled() bool {
	return v != nil && v.recorder != nil
}

// Actions delivers remote stop and cancel requests.
func (v *Voice) Actions() <-chan Action {
	return v.actions
}

// Snapshot returns the current recording.
func (v *Voice) Snapshot() recording.Recording {
	if !v.Enabled() {
		return recording.Recording{State: fsm.StateIdle}
	}
	return v.recorder.Snapshot()
}

func (v *Voice) start(ctx context.Context) error {
	if !v.Enabled() {
		return fmt.Errorf("%w: voice input disabled", recording.ErrDeviceUnavailable)
	}
	v.drain()
	return v.recorder.Start(ctx)
}

// finish stops capture, which releases the device, and only then transcribes.
func (v *Voice) finish(ctx context.Context) outcome.Outcome[string] {
	if !v.Enabled() {
		return outcome.Failed[string](fmt.Errorf("%w: voice input disabled", recording.ErrDeviceUnavailable))
	}
	rec := v.recorder.Stop()
	if v.bridge == nil {
		return outcome.Failed[string](fmt.Errorf("%w: no transcriber configured", ErrTransientService))
	}
	return v.bridge.Transcribe(ctx, rec)
}

func (v *Voice) reset() {
	if !v.Enabled() {
		return
	}
	v.recorder.Reset()
	v.drain()
}

func (v *Voice) drain() {
	select {
	case <-v.actions:
	default:
	}
}

// Handle serves status, stop, and cancel for the recording in progress.
func (v *Voice) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		snap := v.Snapshot()
		return ipc.Response{OK: true, State: string(snap.State), Message: fmt.Sprintf("elapsed %ds", snap.Elapsed)}
	case ipc.CommandStop:
		return v.request(ActionStop, req.Command)
	case ipc.CommandCancel:
		return v.request(ActionCancel, req.Command)
	default:
		return ipc.Response{OK: false, State: string(v.Snapshot().State), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (v *Voice) request(action Action, verb string) ipc.Response {
	state := v.Snapshot().State
	if state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", verb, state)}
	}

	select {
	case v.actions <- action:
		return ipc.Response{OK: true, State: string(state), Message: verb + " requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "action already requested"}
	}
}
