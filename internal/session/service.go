package session

import (
	"context"

	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/fsm"
	"github.com/rbright/prepcoach/internal/outcome"
	"github.com/rbright/prepcoach/internal/recording"
)

// AnswerGrader grades interview answers.
type AnswerGrader interface {
	SubmitAnswer(context.Context, collab.AnswerRequest) (collab.AnswerFeedback, error)
}

// StepGrader grades math steps.
type StepGrader interface {
	ValidateStep(context.Context, collab.ValidateStepRequest) (collab.StepFeedback, error)
}

// HintSource produces progressive hints.
type HintSource interface {
	Hint(context.Context, collab.HintRequest) (collab.Hint, error)
}

// ReportSource aggregates graded answers.
type ReportSource interface {
	GenerateReport(context.Context, collab.ReportRequest) (collab.Report, error)
}

// ProblemAnalyzer classifies math problems.
type ProblemAnalyzer interface {
	Analyze(context.Context, collab.AnalyzeRequest) (collab.Analysis, error)
}

// InterviewService is the collaborator surface used in interview mode.
type InterviewService interface {
	AnswerGrader
	ReportSource
	Questions(ctx context.Context, role string, language string) ([]string, error)
	Speak(context.Context, collab.SpeakRequest) (collab.Speech, error)
}

// MathService is the collaborator surface used in math mode.
type MathService interface {
	StepGrader
	HintSource
	ProblemAnalyzer
	GenerateSolution(context.Context, collab.SolutionRequest) (collab.Solution, error)
	Download(context.Context, collab.DownloadRequest) (collab.Download, error)
}

// TutorService is the collaborator surface for exercise chat.
type TutorService interface {
	SubmitExercise(context.Context, collab.Exercise) (collab.Submission, error)
	Chat(ctx context.Context, submissionID string, message string) (collab.ChatReply, error)
}

// Recorder is the capture surface owned by Voice.
type Recorder interface {
	Start(context.Context) error
	Stop() recording.Recording
	Reset()
	Snapshot() recording.Recording
	State() fsm.State
}

// Transcriber converts a stopped recording into text.
type Transcriber interface {
	Transcribe(context.Context, recording.Recording) outcome.Outcome[string]
}
