package session

import (
	"errors"

	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/recording"
	"github.com/rbright/prepcoach/internal/transcribe"
)

var (
	// ErrEmptyInput is raised locally before any request is made.
	ErrEmptyInput = errors.New("answer is empty")
	// ErrRequestInFlight rejects a second submission for the same item.
	ErrRequestInFlight = errors.New("a request for this item is already in flight")
	// ErrNoQuestionsAvailable is returned when the collaborator has no questions for the role.
	ErrNoQuestionsAvailable = errors.New("no questions available for this role")
	// ErrTransientService wraps failures of non-critical reads.
	ErrTransientService = errors.New("collaborator service temporarily unavailable")
	// ErrGradingService wraps failures of answer and step grading.
	ErrGradingService = errors.New("grading service error")
	// ErrReportGenerationFailed wraps failures of report and solution generation.
	ErrReportGenerationFailed = errors.New("report generation failed")
	// ErrSuperseded is returned when a reset or advance overtook a pending request.
	ErrSuperseded = errors.New("result discarded: session moved on")
	// ErrNothingToReport is returned when no graded work exists yet.
	ErrNothingToReport = errors.New("no graded work to summarize")
	// ErrUnsupportedFormat rejects unknown download formats.
	ErrUnsupportedFormat = errors.New("unsupported download format")
	// ErrNotStarted is returned for actions that need a started session.
	ErrNotStarted = errors.New("session not started")
)

// Recoverable reports whether err leaves the session usable through another
// input path without retrying the same action.
func Recoverable(err error) bool {
	switch {
	case err == nil:
		return true
	case transcribe.IsRecoverable(err):
		return true
	case errors.Is(err, recording.ErrDeviceUnavailable), errors.Is(err, recording.ErrStartAborted):
		return true
	case errors.Is(err, ErrTransientService), errors.Is(err, ErrEmptyInput), errors.Is(err, ErrSuperseded):
		return true
	default:
		return false
	}
}

// Retryable reports whether the failed action should be retried as-is.
func Retryable(err error) bool {
	switch {
	case err == nil, errors.Is(err, ErrNothingToReport), errors.Is(err, ErrEmptyInput):
		return false
	case errors.Is(err, ErrGradingService), errors.Is(err, ErrReportGenerationFailed), errors.Is(err, ErrTransientService):
		return collab.IsTransient(err)
	default:
		return false
	}
}
