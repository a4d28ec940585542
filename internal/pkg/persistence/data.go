package persistence

import (
	"database/sql"
	"time"
)

type (

	//AudioJob table
	AudioJob struct {
		ID          string
		FileName    string
		ContentType string
		Status      string
		Transcript  sql.NullString
		Error       sql.NullString
		Created     time.Time
		Updated     time.Time
	}

	//Evaluation table, ID is the processing job id
	Evaluation struct {
		ID          string
		InterviewID string
		Status      string
		Transcript  string
		Payload     []byte
		Error       sql.NullString
		Created     time.Time
		Updated     time.Time
	}

	//Session kept in redis
	Session struct {
		ID      string    `json:"id"`
		Created time.Time `json:"created"`
		Expires time.Time `json:"expires"`
	}

	//Interview kept in redis
	Interview struct {
		ID                 string    `json:"id"`
		SessionID          string    `json:"sessionID"`
		Type               string    `json:"type"`
		Category           string    `json:"category"`
		MaxDurationSeconds int       `json:"maxDurationSeconds"`
		FirstQuestion      Question  `json:"firstQuestion"`
		Started            time.Time `json:"started"`
		Expires            time.Time `json:"expires"`
	}

	//Question asked by the interviewer
	Question struct {
		ID     string `json:"id,omitempty"`
		Text   string `json:"text"`
		Source string `json:"source,omitempty"`
	}

	//Line is one transcript line of the interview
	Line struct {
		Speaker string    `json:"speaker"`
		Text    string    `json:"text"`
		AudioID string    `json:"audio_id,omitempty"`
		At      time.Time `json:"at"`
	}
)
