package collab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrRejected is returned when the collaborator answers 2xx with success=false.
var ErrRejected = errors.New("collaborator rejected request")

// Ready probes the health endpoint.
func (c *Client) Ready(ctx context.Context) error {
	_, _, err := c.do(ctx, request{method: http.MethodGet, path: c.healthPath})
	return err
}

// Questions fetches the ordered question set for a role.
func (c *Client) Questions(ctx context.Context, role string, language string) ([]string, error) {
	r := request{
		method: http.MethodGet,
		path:   "/session/questions",
		query:  url.Values{"role": {role}, "language": {language}},
		retry:  true,
	}
	var resp questionsResponse
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// SubmitAnswer grades one interview answer. Never retried.
func (c *Client) SubmitAnswer(ctx context.Context, in AnswerRequest) (AnswerFeedback, error) {
	r, err := jsonRequest(http.MethodPost, "/session/answer", in)
	if err != nil {
		return AnswerFeedback{}, err
	}
	var out AnswerFeedback
	err = c.doJSON(ctx, r, &out)
	return out, err
}

// GenerateReport aggregates graded answers into a session report. Never retried.
func (c *Client) GenerateReport(ctx context.Context, in ReportRequest) (Report, error) {
	r, err := jsonRequest(http.MethodPost, "/report/generate", in)
	if err != nil {
		return Report{}, err
	}
	var out Report
	err = c.doJSON(ctx, r, &out)
	return out, err
}

// Transcribe uploads a recording and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string, language string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	r, err := multipartRequest("/analysis/transcribe",
		map[string]string{"language": language},
		filePart{field: "file", filename: filename, data: audio},
	)
	if err != nil {
		return "", fmt.Errorf("build transcribe form: %w", err)
	}
	r.retry = true

	var out transcribeResponse
	if err := c.doJSON(ctx, r, &out); err != nil {
		return "", err
	}
	return out.Transcript, nil
}

// Speak synthesizes text into audio.
func (c *Client) Speak(ctx context.Context, in SpeakRequest) (Speech, error) {
	r, err := jsonRequest(http.MethodPost, "/tts/speak", in)
	if err != nil {
		return Speech{}, err
	}
	r.retry = true
	raw, header, err := c.do(ctx, r)
	if err != nil {
		return Speech{}, err
	}
	return Speech{Audio: raw, ContentType: header.Get("Content-Type")}, nil
}

// Analyze classifies a math problem.
func (c *Client) Analyze(ctx context.Context, in AnalyzeRequest) (Analysis, error) {
	r, err := jsonRequest(http.MethodPost, "/math/analyze", in)
	if err != nil {
		return Analysis{}, err
	}
	r.retry = true
	var out Analysis
	err = c.doJSON(ctx, r, &out)
	return out, err
}

// ValidateStep grades one solution step. Never retried.
func (c *Client) ValidateStep(ctx context.Context, in ValidateStepRequest) (StepFeedback, error) {
	r, err := jsonRequest(http.MethodPost, "/math/validate-step", in)
	if err != nil {
		return StepFeedback{}, err
	}
	var out StepFeedback
	err = c.doJSON(ctx, r, &out)
	return out, err
}

// Hint requests the next progressive hint.
func (c *Client) Hint(ctx context.Context, in HintRequest) (Hint, error) {
	r, err := jsonRequest(http.MethodPost, "/math/hint", in)
	if err != nil {
		return Hint{}, err
	}
	r.retry = true
	var out Hint
	err = c.doJSON(ctx, r, &out)
	return out, err
}

// GenerateSolution produces the worked solution. Never retried.
func (c *Client) GenerateSolution(ctx context.Context, in SolutionRequest) (Solution, error) {
	r, err := jsonRequest(http.MethodPost, "/math/generate-solution", in)
	if err != nil {
		return Solution{}, err
	}
	var out Solution
	err = c.doJSON(ctx, r, &out)
	return out, err
}

// Download renders a solution document in the requested format.
func (c *Client) Download(ctx context.Context, in DownloadRequest) (Download, error) {
	r, err := jsonRequest(http.MethodPost, "/math/download", in)
	if err != nil {
		return Download{}, err
	}
	r.retry = true
	var out Download
	err = c.doJSON(ctx, r, &out)
	return out, err
}

// SubmitExercise uploads an exercise as text and/or a file.
func (c *Client) SubmitExercise(ctx context.Context, in Exercise) (Submission, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.File) == 0 {
		return Submission{}, fmt.Errorf("exercise requires text or a file")
	}

	fields := map[string]string{}
	if text := strings.TrimSpace(in.Text); text != "" {
		fields["text_input"] = text
	}
	if attempt := strings.TrimSpace(in.Attempt); attempt != "" {
		fields["user_attempt"] = attempt
	}
	var files []filePart
	if len(in.File) > 0 {
		name := in.Filename
		if name == "" {
			name = "exercise.txt"
		}
		files = append(files, filePart{field: "file", filename: name, data: in.File})
	}

	r, err := multipartRequest("/math/submit", fields, files...)
	if err != nil {
		return Submission{}, fmt.Errorf("build submit form: %w", err)
	}
	var out Submission
	if err := c.doJSON(ctx, r, &out); err != nil {
		return Submission{}, err
	}
	if !out.Success {
		return out, rejected(out.Error)
	}
	return out, nil
}

// Chat sends one learner message for a submitted exercise.
func (c *Client) Chat(ctx context.Context, submissionID string, message string) (ChatReply, error) {
	r, err := multipartRequest("/math/chat", map[string]string{
		"submission_id": submissionID,
		"user_message":  message,
	})
	if err != nil {
		return ChatReply{}, fmt.Errorf("build chat form: %w", err)
	}
	var out ChatReply
	if err := c.doJSON(ctx, r, &out); err != nil {
		return ChatReply{}, err
	}
	if !out.Success {
		return out, rejected(out.Error)
	}
	return out, nil
}

func rejected(detail string) error {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, strconv.Quote(detail))
}
