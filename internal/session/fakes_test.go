package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/fsm"
	"github.com/rbright/prepcoach/internal/outcome"
	"github.com/rbright/prepcoach/internal/recording"
)

var errNetwork = errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")

// fakeCollaborator implements every service interface. Gates, when set,
// block the matching call until a value is received.
type fakeCollaborator struct {
	mu sync.Mutex

	questions    []string
	questionsErr error

	answerFn    func(collab.AnswerRequest) (collab.AnswerFeedback, error)
	answerGate  chan struct{}
	answerCalls atomic.Int32
	answerReqs  []collab.AnswerRequest

	reportErr   error
	reportCalls atomic.Int32
	reportReqs  []collab.ReportRequest

	speakReqs []collab.SpeakRequest

	analysis   collab.Analysis
	analyzeErr error

	validateFn    func(collab.ValidateStepRequest) (collab.StepFeedback, error)
	validateGate  chan struct{}
	validateCalls atomic.Int32
	validateReqs  []collab.ValidateStepRequest

	hintFn    func(call int, req collab.HintRequest) (collab.Hint, error)
	hintGates map[int]chan struct{}
	hintCalls atomic.Int32
	hintReqs  []collab.HintRequest

	solution    collab.Solution
	solutionErr error
	downloads   []collab.DownloadRequest

	submission collab.Submission
	submitErr  error
	chatReply  collab.ChatReply
	chatErr    error
}

func (f *fakeCollaborator) Questions(context.Context, string, string) ([]string, error) {
	return f.questions, f.questionsErr
}

func (f *fakeCollaborator) SubmitAnswer(_ context.Context, req collab.AnswerRequest) (collab.AnswerFeedback, error) {
	f.answerCalls.Add(1)
	f.mu.Lock()
	f.answerReqs = append(f.answerReqs, req)
	gate := f.answerGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.answerFn != nil {
		return f.answerFn(req)
	}
	return collab.AnswerFeedback{Score: 8, Feedback: "Solid answer", Tips: "Add an example"}, nil
}

func (f *fakeCollaborator) GenerateReport(_ context.Context, req collab.ReportRequest) (collab.Report, error) {
	f.reportCalls.Add(1)
	f.mu.Lock()
	f.reportReqs = append(f.reportReqs, req)
	err := f.reportErr
	f.mu.Unlock()
	if err != nil {
		return collab.Report{}, err
	}
	return collab.Report{AverageScore: 8, Summary: "Good session", Strengths: "clarity\ndepth"}, nil
}

func (f *fakeCollaborator) Speak(_ context.Context, req collab.SpeakRequest) (collab.Speech, error) {
	f.mu.Lock()
	f.speakReqs = append(f.speakReqs, req)
	f.mu.Unlock()
	return collab.Speech{Audio: []byte("mp3"), ContentType: "audio/mpeg"}, nil
}

func (f *fakeCollaborator) Analyze(context.Context, collab.AnalyzeRequest) (collab.Analysis, error) {
	return f.analysis, f.analyzeErr
}

func (f *fakeCollaborator) ValidateStep(_ context.Context, req collab.ValidateStepRequest) (collab.StepFeedback, error) {
	f.validateCalls.Add(1)
	f.mu.Lock()
	f.validateReqs = append(f.validateReqs, req)
	gate := f.validateGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.validateFn != nil {
		return f.validateFn(req)
	}
	return collab.StepFeedback{IsCorrect: true, Feedback: "Correct", ReasoningQualityScore: 8}, nil
}

func (f *fakeCollaborator) Hint(_ context.Context, req collab.HintRequest) (collab.Hint, error) {
	call := int(f.hintCalls.Add(1))
	f.mu.Lock()
	f.hintReqs = append(f.hintReqs, req)
	gate := f.hintGates[call]
	fn := f.hintFn
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fn != nil {
		return fn(call, req)
	}
	return collab.Hint{HintLevel: collab.Level(call), Hint: "hint", Guidance: "guidance"}, nil
}

func (f *fakeCollaborator) GenerateSolution(context.Context, collab.SolutionRequest) (collab.Solution, error) {
	return f.solution, f.solutionErr
}

func (f *fakeCollaborator) Download(_ context.Context, req collab.DownloadRequest) (collab.Download, error) {
	f.mu.Lock()
	f.downloads = append(f.downloads, req)
	f.mu.Unlock()
	return collab.Download{Content: "# Solution", MimeType: "text/markdown", Filename: "solution.md"}, nil
}

func (f *fakeCollaborator) SubmitExercise(context.Context, collab.Exercise) (collab.Submission, error) {
	return f.submission, f.submitErr
}

func (f *fakeCollaborator) Chat(context.Context, string, string) (collab.ChatReply, error) {
	return f.chatReply, f.chatErr
}

func (f *fakeCollaborator) reports() []collab.ReportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]collab.ReportRequest(nil), f.reportReqs...)
}

func (f *fakeCollaborator) validations() []collab.ValidateStepRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]collab.ValidateStepRequest(nil), f.validateReqs...)
}

// fakeRecorder is an in-memory Recorder.
type fakeRecorder struct {
	mu       sync.Mutex
	state    fsm.State
	startErr error
	resets   atomic.Int32
	stops    atomic.Int32
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{state: fsm.StateIdle}
}

func (r *fakeRecorder) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.state = fsm.StateRecording
	return nil
}

func (r *fakeRecorder) Stop() recording.Recording {
	r.stops.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == fsm.StateRecording {
		r.state = fsm.StateStopped
	}
	return recording.Recording{State: r.state, Elapsed: 2, Audio: []byte("wav")}
}

func (r *fakeRecorder) Reset() {
	r.resets.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = fsm.StateIdle
}

func (r *fakeRecorder) Snapshot() recording.Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recording.Recording{State: r.state}
}

func (r *fakeRecorder) State() fsm.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type fakeTranscriber struct {
	out   outcome.Outcome[string]
	calls atomic.Int32
	// seenState is the recorder state when Transcribe was entered.
	seenState fsm.State
}

func (f *fakeTranscriber) Transcribe(_ context.Context, rec recording.Recording) outcome.Outcome[string] {
	f.calls.Add(1)
	f.seenState = rec.State
	return f.out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
