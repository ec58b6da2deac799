package history

import (
	"encoding/json"
	"fmt"

	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/session"
)

// InterviewEntry archives a finished interview report.
func InterviewEntry(report session.Report) (Entry, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return Entry{}, fmt.Errorf("encode report: %w", err)
	}
	return Entry{
		SessionID: report.SessionID,
		Mode:      ModeInterview,
		Title:     report.Role,
		Score:     report.AverageScore,
		CreatedAt: report.GeneratedAt,
		Payload:   payload,
	}, nil
}

type mathPayload struct {
	Problem  string          `json:"problem"`
	Topic    string          `json:"topic"`
	Steps    []session.Step  `json:"steps"`
	Solution collab.Solution `json:"solution"`
}

// MathEntry archives a solved math session. snap must carry a solution.
func MathEntry(snap session.MathSnapshot) (Entry, error) {
	if snap.Solution == nil {
		return Entry{}, fmt.Errorf("math session %s has no solution", snap.SessionID)
	}
	payload, err := json.Marshal(mathPayload{
		Problem:  snap.Problem,
		Topic:    snap.Analysis.Topic,
		Steps:    snap.Steps,
		Solution: *snap.Solution,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("encode solution: %w", err)
	}
	return Entry{
		SessionID: snap.SessionID,
		Mode:      ModeMath,
		Title:     snap.Problem,
		Score:     snap.Solution.MasteryScore,
		Payload:   payload,
	}, nil
}
