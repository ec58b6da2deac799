package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterviewHappyPath(t *testing.T) {
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateQuestionsLoading},
		{EventLoaded, StateActive},
		{EventSubmit, StateGrading},
		{EventGraded, StateActive},
		{EventAdvance, StateActive},
		{EventSubmit, StateGrading},
		{EventGraded, StateActive},
		{EventFinish, StateReporting},
		{EventReported, StateReportReady},
	}

	s := StateIdle
	for _, step := range steps {
		next, err := Interview(s, step.event)
		require.NoError(t, err)
		require.Equal(t, step.want, next, "event %s", step.event)
		s = next
	}
}

func TestMathHappyPath(t *testing.T) {
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateAnalyzing},
		{EventAnalyzed, StateSolving},
		{EventSubmit, StateValidating},
		{EventGraded, StateSolving},
		{EventFinish, StateFinishing},
		{EventSolved, StateSolutionReady},
	}

	s := StateIdle
	for _, step := range steps {
		next, err := Math(s, step.event)
		require.NoError(t, err)
		require.Equal(t, step.want, next, "event %s", step.event)
		s = next
	}
}

func TestResetFromAnyStateGoesIdle(t *testing.T) {
	interview := []State{StateIdle, StateQuestionsLoading, StateActive, StateGrading, StateReporting, StateReportReady}
	for _, state := range interview {
		next, err := Interview(state, EventReset)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}

	math := []State{StateIdle, StateAnalyzing, StateSolving, StateValidating, StateFinishing, StateSolutionReady}
	for _, state := range math {
		next, err := Math(state, EventReset)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}

	for _, state := range []State{StateIdle, StateRecording, StateStopped} {
		next, err := Recording(state, EventReset)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestFailReturnsToPreRequestState(t *testing.T) {
	tests := []struct {
		name  string
		table func(State, Event) (State, error)
		state State
		want  State
	}{
		{name: "questions load", table: Interview, state: StateQuestionsLoading, want: StateIdle},
		{name: "grading", table: Interview, state: StateGrading, want: StateActive},
		{name: "reporting", table: Interview, state: StateReporting, want: StateActive},
		{name: "analyzing", table: Math, state: StateAnalyzing, want: StateIdle},
		{name: "validating", table: Math, state: StateValidating, want: StateSolving},
		{name: "finishing", table: Math, state: StateFinishing, want: StateSolving},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := tc.table(tc.state, EventFail)
			require.NoError(t, err)
			require.Equal(t, tc.want, next)
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		table func(State, Event) (State, error)
		state State
		event Event
	}{
		{name: "interview idle submit", table: Interview, state: StateIdle, event: EventSubmit},
		{name: "interview loading submit", table: Interview, state: StateQuestionsLoading, event: EventSubmit},
		{name: "interview grading submit", table: Interview, state: StateGrading, event: EventSubmit},
		{name: "interview reporting advance", table: Interview, state: StateReporting, event: EventAdvance},
		{name: "interview report ready start", table: Interview, state: StateReportReady, event: EventStart},
		{name: "math idle finish", table: Math, state: StateIdle, event: EventFinish},
		{name: "math validating finish", table: Math, state: StateValidating, event: EventFinish},
		{name: "math validating submit", table: Math, state: StateValidating, event: EventSubmit},
		{name: "math solved submit", table: Math, state: StateSolutionReady, event: EventSubmit},
		{name: "recording start twice", table: Recording, state: StateRecording, event: EventStart},
		{name: "recording idle submit", table: Recording, state: StateIdle, event: EventSubmit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := tc.table(tc.state, tc.event)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid transition")
			require.Equal(t, tc.state, next)
		})
	}
}

func TestRecordingStopIsNoopWhenNotRecording(t *testing.T) {
	for _, state := range []State{StateIdle, StateStopped} {
		next, err := Recording(state, EventStop)
		require.NoError(t, err)
		require.Equal(t, state, next)
	}

	next, err := Recording(StateStopped, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)
}

func TestUnknownState(t *testing.T) {
	next, err := Interview(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)

	_, err = Math(State("mystery"), EventStart)
	require.Error(t, err)
	_, err = Recording(State("mystery"), EventStart)
	require.Error(t, err)
}
