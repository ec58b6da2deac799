// Package fsm holds the pure transition tables for coaching sessions and recordings.
package fsm

import "fmt"

type State string

type Event string

// Interview session states.
const (
	StateIdle             State = "idle"
	StateQuestionsLoading State = "questions_loading"
	StateActive           State = "active"
	StateGrading          State = "grading"
	StateReporting        State = "reporting"
	StateReportReady      State = "report_ready"
)

// Math session states.
const (
	StateAnalyzing     State = "analyzing"
	StateSolving       State = "solving"
	StateValidating    State = "validating"
	StateFinishing     State = "finishing"
	StateSolutionReady State = "solution_ready"
)

// Recording states.
const (
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

const (
	EventStart    Event = "start"
	EventLoaded   Event = "loaded"
	EventAnalyzed Event = "analyzed"
	EventSubmit   Event = "submit"
	EventGraded   Event = "graded"
	EventAdvance  Event = "advance"
	EventFinish   Event = "finish"
	EventReported Event = "reported"
	EventSolved   Event = "solved"
	EventStop     Event = "stop"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

// Interview applies one event to the interview session table.
//
// Advance from active moves to the next question; the caller decides whether
// the sequence is exhausted and fires EventFinish instead.
func Interview(current State, event Event) (State, error) {
	if event == EventReset {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateQuestionsLoading, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateQuestionsLoading:
		switch event {
		case EventLoaded:
			return StateActive, nil
		case EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActive:
		switch event {
		case EventSubmit:
			return StateGrading, nil
		case EventAdvance:
			return StateActive, nil
		case EventFinish:
			return StateReporting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateGrading:
		switch event {
		case EventGraded, EventFail, EventAdvance:
			return StateActive, nil
		case EventFinish:
			return StateReporting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReporting:
		switch event {
		case EventReported:
			return StateReportReady, nil
		case EventFail:
			return StateActive, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReportReady:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Math applies one event to the math tutoring table.
func Math(current State, event Event) (State, error) {
	if event == EventReset {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateAnalyzing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAnalyzing:
		switch event {
		case EventAnalyzed:
			return StateSolving, nil
		case EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSolving:
		switch event {
		case EventSubmit:
			return StateValidating, nil
		case EventFinish:
			return StateFinishing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateValidating:
		switch event {
		case EventGraded, EventFail:
			return StateSolving, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinishing:
		switch event {
		case EventSolved:
			return StateSolutionReady, nil
		case EventFail:
			return StateSolving, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSolutionReady:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Recording applies one event to the capture table. Stopping a recording that
// is not running is a no-op.
func Recording(current State, event Event) (State, error) {
	if event == EventReset {
		return StateIdle, nil
	}

	switch current {
	case StateIdle, StateStopped:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventStop:
			return current, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
