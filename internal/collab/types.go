package collab

import (
	"encoding/json"
	"math"
	"strings"
)

// Text decodes a collaborator field that is sent either as a string or as a
// list of strings. Lists are joined one item per line.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*t = ""
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*t = Text(strings.Join(items, "\n"))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

func (t Text) String() string { return string(t) }

// Level is a small ordinal such as a difficulty or hint level. Fractional
// values like 4.0 are accepted and rounded.
type Level int

func (l *Level) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*l = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*l = Level(math.Round(f))
	return nil
}

// Lines splits t into trimmed non-empty lines.
func (t Text) Lines() []string {
	var out []string
	for _, line := range strings.Split(string(t), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

type questionsResponse struct {
	Questions []string `json:"questions"`
}

// AnswerRequest is the body of POST /session/answer.
type AnswerRequest struct {
	SessionID  string `json:"session_id"`
	Question   string `json:"question"`
	UserAnswer string `json:"user_answer"`
	Language   string `json:"language"`
	Role       string `json:"role"`
}

// AnswerFeedback is the grading result for one interview answer.
type AnswerFeedback struct {
	Score    float64 `json:"score"`
	Feedback Text    `json:"feedback"`
	Tips     Text    `json:"tips"`
}

// GradedAnswer is one entry of a report request.
type GradedAnswer struct {
	Question string  `json:"question" yaml:"question"`
	Answer   string  `json:"answer" yaml:"answer"`
	Score    float64 `json:"score" yaml:"score"`
}

// ReportRequest is the body of POST /report/generate.
type ReportRequest struct {
	SessionID string         `json:"session_id"`
	Answers   []GradedAnswer `json:"answers"`
}

// Report is the collaborator's session summary.
type Report struct {
	AverageScore float64 `json:"average_score"`
	Summary      Text    `json:"summary"`
	Strengths    Text    `json:"strengths"`
	Improvements Text    `json:"improvements"`
	Tips         Text    `json:"tips"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// SpeakRequest is the body of POST /tts/speak.
type SpeakRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// Speech is the synthesized audio returned by /tts/speak.
type Speech struct {
	Audio       []byte
	ContentType string
}

// AnalyzeRequest is the body of POST /math/analyze.
type AnalyzeRequest struct {
	ProblemText string `json:"problem_text"`
}

// Analysis describes a math problem.
type Analysis struct {
	Topic            string   `json:"topic"`
	Subtopic         string   `json:"subtopic"`
	Difficulty       Level    `json:"difficulty"`
	RequiredConcepts []string `json:"required_concepts"`
	FirstQuestion    string   `json:"first_question"`
}

// ValidateStepRequest is the body of POST /math/validate-step.
type ValidateStepRequest struct {
	ProblemText string `json:"problem_text"`
	StepNumber  int    `json:"step_number"`
	StudentStep string `json:"student_step"`
	Context     string `json:"context"`
}

// StepFeedback is the grading result for one math step.
type StepFeedback struct {
	IsCorrect             bool    `json:"is_correct"`
	Feedback              Text    `json:"feedback"`
	Explanation           Text    `json:"explanation"`
	Hint                  Text    `json:"hint"`
	ErrorType             string  `json:"error_type"`
	ReasoningQualityScore float64 `json:"reasoning_quality_score"`
}

// HintRequest is the body of POST /math/hint.
type HintRequest struct {
	ProblemText     string `json:"problem_text"`
	StudentProgress string `json:"student_progress"`
}

// Hint is one progressive hint.
type Hint struct {
	HintLevel          Level    `json:"hint_level"`
	Hint               string   `json:"hint"`
	Guidance           string   `json:"guidance"`
	NextSteps          []string `json:"next_steps"`
	CommonErrorToAvoid string   `json:"common_error_to_avoid"`
}

// SolutionRequest is the body of POST /math/generate-solution.
type SolutionRequest struct {
	ProblemText     string `json:"problem_text"`
	StudentSolution string `json:"student_solution"`
}

// Solution is the worked solution for a finished math session. The decoded
// payload is kept verbatim and re-encoded as-is, so fields this client does
// not model still reach /math/download and the history archive.
type Solution struct {
	FullSolution         Text     `json:"full_solution"`
	LatexSolution        Text     `json:"latex_solution"`
	FinalAnswer          Text     `json:"final_answer"`
	KeyConcepts          []string `json:"key_concepts"`
	CommonMistakes       Text     `json:"common_mistakes"`
	RecommendedExercises Text     `json:"recommended_exercises"`
	ConceptualSummary    Text     `json:"conceptual_summary"`
	MasteryScore         float64  `json:"mastery_score"`
	LearningInsights     Text     `json:"learning_insights"`

	raw json.RawMessage
}

type solutionFields Solution

func (s *Solution) UnmarshalJSON(data []byte) error {
	var fields solutionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = Solution(fields)
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (s Solution) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return json.Marshal(solutionFields(s))
}

// DownloadRequest is the body of POST /math/download.
type DownloadRequest struct {
	ProblemText  string   `json:"problem_text"`
	SolutionData Solution `json:"solution_data"`
	FormatType   string   `json:"format_type"`
}

// Download is a rendered solution document.
type Download struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

// Exercise is the input of POST /math/submit. At least one of Text or File
// must be set.
type Exercise struct {
	Text     string
	File     []byte
	Filename string
	Attempt  string
}

// ChatMessage is one turn of a tutor conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Submission is the collaborator's view of a submitted exercise.
type Submission struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	SubmissionID string `json:"submission_id"`
	Problem      struct {
		Text       string `json:"text"`
		FullText   string `json:"full_text"`
		Topic      string `json:"topic"`
		Difficulty Level  `json:"difficulty"`
	} `json:"problem"`
	Hints struct {
		Hint1 string `json:"hint_1"`
		Hint2 string `json:"hint_2"`
		Hint3 string `json:"hint_3"`
	} `json:"hints"`
	Chat struct {
		Context []ChatMessage `json:"context"`
	} `json:"chat"`
}

// ChatReply is the response of POST /math/chat.
type ChatReply struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	TutorResponse string `json:"tutor_response"`
	Guidance      string `json:"guidance"`
}
