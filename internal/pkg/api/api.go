package api

import (
	"time"
)

const (
	// PrmFile multipart param name for the uploaded audio
	PrmFile = "file"
)

// Speaker of a conversation message
type Speaker string

const (
	// SpeakerAI is the simulated interviewer
	SpeakerAI Speaker = "ai"
	// SpeakerUser is the candidate
	SpeakerUser Speaker = "user"
	// SpeakerSystem marks local notices
	SpeakerSystem Speaker = "system"
)

// Message is one line of the interview conversation
type Message struct {
	ID      string    `json:"id,omitempty"`
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	TS      time.Time `json:"ts"`
}

// Session is a session context returned by POST /session
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// InterviewRequest is a body of POST /session/:sid/interview
type InterviewRequest struct {
	Type               string    `json:"type,omitempty"`
	Category           string    `json:"category"`
	MaxDurationSeconds int       `json:"max_duration_seconds,omitempty"`
	Messages           []Message `json:"messages,omitempty"`
}

// Question asked by the interviewer
type Question struct {
	QuestionID string `json:"question_id,omitempty"`
	Text       string `json:"text"`
	Source     string `json:"source,omitempty"`
}

// Interview is a created interview
type Interview struct {
	InterviewID        string    `json:"interview_id"`
	SessionID          string    `json:"session_id"`
	Type               string    `json:"type,omitempty"`
	Category           string    `json:"category,omitempty"`
	StartAt            time.Time `json:"start_at"`
	MaxDurationSeconds int       `json:"max_duration_seconds"`
	CurrentTurnID      string    `json:"current_turn_id"`
	FirstQuestion      *Question `json:"first_question,omitempty"`
}

// MaxDuration returns max interview duration
func (i *Interview) MaxDuration() time.Duration {
	return time.Duration(i.MaxDurationSeconds) * time.Second
}

// Upload is a response of POST /audio/upload
type Upload struct {
	AudioID    string `json:"audio_id,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// AudioStatus is a response of GET /audio/:id/status
type AudioStatus struct {
	AudioID    string `json:"audio_id"`
	Status     string `json:"status"`
	Transcript string `json:"transcript,omitempty"`
}

// TurnRequest is a body of POST /interview/:iid/turn/:tid/complete
type TurnRequest struct {
	Transcript string `json:"transcript"`
	AudioID    string `json:"audio_id,omitempty"`
}

// Turn is a response of a completed turn
type Turn struct {
	Followup   *Question `json:"followup,omitempty"`
	NextTurnID string    `json:"next_turn_id,omitempty"`
	End        bool      `json:"end,omitempty"`
}

// Finish is a response of POST /interview/:iid/finish
type Finish struct {
	ProcessingJobID string `json:"processing_job_id"`
}

// Pending is a body of 202 responses
type Pending struct {
	Message    string `json:"message"`
	EtaSeconds int    `json:"eta_seconds,omitempty"`
}

// CaseType describes an interview category
type CaseType struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Catalog is a response of GET /catalog
type Catalog struct {
	CaseTypes []CaseType       `json:"case_types"`
	Durations map[string][]int `json:"durations"`
}
