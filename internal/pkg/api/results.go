package api

import (
	"fmt"
	"math"
	"strings"
)

// DefaultRubricMax is used when a score comes without max
const DefaultRubricMax = 5.0

// RubricScore is one scored rubric
type RubricScore struct {
	Rubric  string   `json:"rubric"`
	Score   float64  `json:"score"`
	Max     *float64 `json:"max,omitempty"`
	Comment string   `json:"comment,omitempty"`
}

// MaxValue returns max or the default one
func (s RubricScore) MaxValue() float64 {
	if s.Max == nil {
		return DefaultRubricMax
	}
	return *s.Max
}

// Results is a finished evaluation payload
type Results struct {
	InterviewID  string        `json:"interview_id"`
	Transcript   string        `json:"transcript,omitempty"`
	AudioURL     string        `json:"audio_url"`
	OverallScore *int          `json:"overall_score,omitempty"`
	Scores       []RubricScore `json:"scores"`
	FeedbackText string        `json:"feedback_text,omitempty"`
}

// Overall returns the provided overall score, or derives it from the rubric scores.
// The second value is false if there is nothing to show
func (r *Results) Overall() (int, bool) {
	if r.OverallScore != nil {
		return *r.OverallScore, true
	}
	return DeriveOverall(r.Scores)
}

// DeriveOverall calculates round(100 * sum(score) / sum(max))
func DeriveOverall(scores []RubricScore) (int, bool) {
	var sum, max float64
	for _, s := range scores {
		sum += s.Score
		max += s.MaxValue()
	}
	if max <= 0 {
		return 0, false
	}
	return int(math.Round(100 * sum / max)), true
}

// Validate checks the payload shape
func (r *Results) Validate() error {
	if strings.TrimSpace(r.InterviewID) == "" {
		return fmt.Errorf("%w: no interview_id", ErrMalformedResponse)
	}
	for i, s := range r.Scores {
		if strings.TrimSpace(s.Rubric) == "" {
			return fmt.Errorf("%w: no rubric name at %d", ErrMalformedResponse, i)
		}
		if s.Score < 0 || s.MaxValue() <= 0 || s.Score > s.MaxValue() {
			return fmt.Errorf("%w: wrong score %v/%v for '%s'", ErrMalformedResponse, s.Score, s.MaxValue(), s.Rubric)
		}
	}
	return nil
}

// Validate checks the turn response shape
func (t *Turn) Validate() error {
	if t.Followup != nil && strings.TrimSpace(t.Followup.Text) == "" {
		return fmt.Errorf("%w: empty followup", ErrMalformedResponse)
	}
	if t.Followup == nil && !t.End {
		return fmt.Errorf("%w: no followup and no end", ErrMalformedResponse)
	}
	return nil
}

// Validate checks the interview response shape
func (i *Interview) Validate() error {
	if strings.TrimSpace(i.InterviewID) == "" {
		return fmt.Errorf("%w: no interview_id", ErrMalformedResponse)
	}
	if i.MaxDurationSeconds < 0 {
		return fmt.Errorf("%w: wrong max_duration_seconds %d", ErrMalformedResponse, i.MaxDurationSeconds)
	}
	return nil
}

// Validate checks the session response shape
func (s *Session) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return fmt.Errorf("%w: no session_id", ErrMalformedResponse)
	}
	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: no expires_at", ErrMalformedResponse)
	}
	return nil
}
