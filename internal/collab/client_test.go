package collab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, r chi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/", MaxRetries: 2, Backoff: time.Millisecond, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "http or https")

	c, err := New(Options{BaseURL: "http://localhost:8000//"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", c.BaseURL())
}

func TestQuestionsSendsQueryAndDecodes(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/session/questions", func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "java", req.URL.Query().Get("role"))
		require.Equal(t, "en", req.URL.Query().Get("language"))
		writeJSON(w, http.StatusOK, map[string]any{"questions": []string{"q1", "q2", "q3"}, "total": 3})
	})
	c := newTestClient(t, r)

	questions, err := c.Questions(context.Background(), "java", "en")
	require.NoError(t, err)
	require.Equal(t, []string{"q1", "q2", "q3"}, questions)
}

func TestQuestionsRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/session/questions", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": []string{"q1"}})
	})
	c := newTestClient(t, r)

	questions, err := c.Questions(context.Background(), "java", "en")
	require.NoError(t, err)
	require.Equal(t, []string{"q1"}, questions)
	require.Equal(t, int32(3), calls.Load())
}

func TestSubmitAnswerIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/session/answer", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "model overloaded"})
	})
	c := newTestClient(t, r)

	_, err := c.SubmitAnswer(context.Background(), AnswerRequest{SessionID: "s", Question: "q", UserAnswer: "a"})
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "model overloaded")
	require.True(t, IsTransient(err))
}

func TestSubmitAnswerEncodesBody(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/session/answer", func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "application/json", req.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Equal(t, map[string]string{
			"session_id":  "session_1",
			"question":    "What is a JVM?",
			"user_answer": "A virtual machine",
			"language":    "en",
			"role":        "java",
		}, body)
		writeJSON(w, http.StatusOK, map[string]any{"score": 7.5, "feedback": "Good", "tips": []string{"Be concrete", "Give an example"}})
	})
	c := newTestClient(t, r)

	fb, err := c.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID:  "session_1",
		Question:   "What is a JVM?",
		UserAnswer: "A virtual machine",
		Language:   "en",
		Role:       "java",
	})
	require.NoError(t, err)
	require.Equal(t, 7.5, fb.Score)
	require.Equal(t, Text("Good"), fb.Feedback)
	require.Equal(t, []string{"Be concrete", "Give an example"}, fb.Tips.Lines())
}

func TestClientErrorIsNotTransient(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/math/validate-step", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "step_number must be >= 1"})
	})
	c := newTestClient(t, r)

	_, err := c.ValidateStep(context.Background(), ValidateStepRequest{StepNumber: 0})
	require.Error(t, err)
	require.False(t, IsTransient(err))
	require.Contains(t, err.Error(), "step_number must be >= 1")
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/analysis/transcribe", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		require.Equal(t, "fr", req.FormValue("language"))
		file, header, err := req.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "recording.wav", header.Filename)
		require.Equal(t, []byte("RIFFdata"), data)
		writeJSON(w, http.StatusOK, map[string]string{"transcript": "bonjour"})
	})
	c := newTestClient(t, r)

	text, err := c.Transcribe(context.Background(), []byte("RIFFdata"), "recording.wav", "fr")
	require.NoError(t, err)
	require.Equal(t, "bonjour", text)
}

func TestSpeakReturnsBinaryAudio(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/tts/speak", func(w http.ResponseWriter, req *http.Request) {
		var body SpeakRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Equal(t, "default", body.VoiceID)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90})
	})
	c := newTestClient(t, r)

	speech, err := c.Speak(context.Background(), SpeakRequest{Text: "tips", VoiceID: "default"})
	require.NoError(t, err)
	require.Equal(t, "audio/mpeg", speech.ContentType)
	require.Equal(t, []byte{0xff, 0xfb, 0x90}, speech.Audio)
}

func TestMathEndpointsDecode(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/math/analyze", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"topic": "Algebra", "subtopic": "Linear", "difficulty": 2,
			"required_concepts": []string{"equations"}, "first_question": "What is x?",
		})
	})
	r.Post("/math/hint", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"hint_level": 2, "hint": "Isolate x", "guidance": "Move constants",
			"next_steps": []string{"subtract 3"}, "common_error_to_avoid": "sign errors",
		})
	})
	r.Post("/math/generate-solution", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"full_solution": "x = 2", "latex_solution": "x=2",
			"key_concepts": []string{"equations"}, "mastery_score": 80, "learning_insights": "solid",
		})
	})
	r.Post("/math/download", func(w http.ResponseWriter, req *http.Request) {
		var body DownloadRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Equal(t, "latex", body.FormatType)
		writeJSON(w, http.StatusOK, map[string]any{"content": "\\documentclass", "mime_type": "application/x-latex", "filename": "solution.tex"})
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	analysis, err := c.Analyze(ctx, AnalyzeRequest{ProblemText: "2x+3=7"})
	require.NoError(t, err)
	require.Equal(t, "Algebra", analysis.Topic)
	require.Equal(t, Level(2), analysis.Difficulty)

	hint, err := c.Hint(ctx, HintRequest{ProblemText: "2x+3=7"})
	require.NoError(t, err)
	require.Equal(t, Level(2), hint.HintLevel)
	require.Equal(t, []string{"subtract 3"}, hint.NextSteps)

	solution, err := c.GenerateSolution(ctx, SolutionRequest{ProblemText: "2x+3=7", StudentSolution: "x=2"})
	require.NoError(t, err)
	require.Equal(t, 80.0, solution.MasteryScore)

	doc, err := c.Download(ctx, DownloadRequest{ProblemText: "2x+3=7", SolutionData: solution, FormatType: "latex"})
	require.NoError(t, err)
	require.Equal(t, "solution.tex", doc.Filename)
}

func TestSubmitExerciseAndChat(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/math/submit", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		require.Equal(t, "integrate x^2", req.FormValue("text_input"))
		require.Equal(t, "x^3/3", req.FormValue("user_attempt"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"submission_id": "sub-1",
			"problem":       map[string]any{"text": "integrate x^2", "topic": "Calculus", "difficulty": 2},
			"hints":         map[string]string{"hint_1": "power rule"},
			"chat":          map[string]any{"context": []map[string]string{{"role": "assistant", "content": "Let's begin"}}},
		})
	})
	r.Post("/math/chat", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		if req.FormValue("submission_id") != "sub-1" {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "unknown submission"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "tutor_response": "Add a constant"})
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	_, err := c.SubmitExercise(ctx, Exercise{})
	require.Error(t, err)

	sub, err := c.SubmitExercise(ctx, Exercise{Text: "integrate x^2", Attempt: "x^3/3"})
	require.NoError(t, err)
	require.Equal(t, "sub-1", sub.SubmissionID)
	require.Equal(t, "Calculus", sub.Problem.Topic)
	require.Len(t, sub.Chat.Context, 1)

	reply, err := c.Chat(ctx, "sub-1", "what next?")
	require.NoError(t, err)
	require.Equal(t, "Add a constant", reply.TutorResponse)

	_, err = c.Chat(ctx, "sub-x", "hello")
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "unknown submission")
}

func TestReadyUsesHealthPath(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	c := newTestClient(t, r)
	require.NoError(t, c.Ready(context.Background()))
}

func TestReadyFailsWhenUnreachable(t *testing.T) {
	c, err := New(Options{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	err = c.Ready(context.Background())
	require.Error(t, err)
	require.True(t, IsTransient(err))
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/math/hint", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, nil)
	})
	c := newTestClient(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Hint(ctx, HintRequest{ProblemText: "p"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(0), calls.Load())
}

func TestTextDecodesStringOrList(t *testing.T) {
	var payload struct {
		A Text `json:"a"`
		B Text `json:"b"`
		C Text `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"one","b":["x"," y "],"c":null}`), &payload))
	require.Equal(t, Text("one"), payload.A)
	require.Equal(t, []string{"x", "y"}, payload.B.Lines())
	require.Empty(t, payload.C)
}

func TestRetryAfterHonorsHeaderAndCap(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": {"30"}}}
	require.Equal(t, 8*time.Second, retryAfter(resp, time.Second, 8*time.Second))
	require.Equal(t, time.Second, retryAfter(nil, time.Second, 8*time.Second))
}

func TestDownloadSendsSolutionAsReceived(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/math/generate-solution", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"full_solution":         []string{"Step 1: subtract 3", "Step 2: divide by 2"},
			"latex_solution":        "x = 2",
			"final_answer":          "x = 2",
			"key_concepts":          []string{"linear equations"},
			"common_mistakes":       []string{"dropping the sign"},
			"recommended_exercises": []string{"3x - 4 = 11"},
			"conceptual_summary":    "Undo operations in reverse order.",
			"mastery_score":         0.85,
			"learning_insights":     []string{"checks work"},
		})
	})
	received := make(chan map[string]any, 1)
	r.Post("/math/download", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			SolutionData map[string]any `json:"solution_data"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		received <- body.SolutionData
		writeJSON(w, http.StatusOK, map[string]any{"content": "# Solution", "mime_type": "text/markdown", "filename": "solution.md"})
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	solution, err := c.GenerateSolution(ctx, SolutionRequest{ProblemText: "2x+3=7", StudentSolution: "x=2"})
	require.NoError(t, err)
	require.Equal(t, Text("x = 2"), solution.FinalAnswer)
	require.Equal(t, []string{"dropping the sign"}, solution.CommonMistakes.Lines())
	require.Equal(t, []string{"3x - 4 = 11"}, solution.RecommendedExercises.Lines())
	require.Equal(t, 0.85, solution.MasteryScore)

	solution.MasteryScore = 85
	_, err = c.Download(ctx, DownloadRequest{ProblemText: "2x+3=7", SolutionData: solution, FormatType: "markdown"})
	require.NoError(t, err)

	data := <-received
	require.Equal(t, "x = 2", data["final_answer"])
	require.Equal(t, []any{"dropping the sign"}, data["common_mistakes"])
	require.Equal(t, []any{"3x - 4 = 11"}, data["recommended_exercises"])
	require.Equal(t, "Undo operations in reverse order.", data["conceptual_summary"])
	require.Equal(t, []any{"Step 1: subtract 3", "Step 2: divide by 2"}, data["full_solution"])
	require.Equal(t, 0.85, data["mastery_score"])
}

func TestSolutionWithoutPayloadEncodesFields(t *testing.T) {
	data, err := json.Marshal(Solution{FullSolution: "done", FinalAnswer: "42", MasteryScore: 70})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, "done", out["full_solution"])
	require.Equal(t, "42", out["final_answer"])
	require.Equal(t, 70.0, out["mastery_score"])
}

func TestLevelAcceptsFractionalNumbers(t *testing.T) {
	var analysis Analysis
	require.NoError(t, json.Unmarshal([]byte(`{"topic":"Algebra","difficulty":4.0}`), &analysis))
	require.Equal(t, Level(4), analysis.Difficulty)

	var hint Hint
	require.NoError(t, json.Unmarshal([]byte(`{"hint_level":2.6,"hint":"isolate x"}`), &hint))
	require.Equal(t, Level(3), hint.HintLevel)

	require.NoError(t, json.Unmarshal([]byte(`{"hint_level":null}`), &hint))
	require.Equal(t, Level(0), hint.HintLevel)

	require.Error(t, json.Unmarshal([]byte(`{"difficulty":"hard"}`), &analysis))
}
