package messages

import (
	amessages "github.com/airenas/async-api/pkg/messages"
)

const (
	st = "DRYRUN/"
	// Work queue name
	Work = st + "Work"
	// StatusChange queue name, consumed by the status service
	StatusChange = st + "StatusChange"

	// Transcribe job type
	Transcribe = "transcribe"
	// Evaluate job type
	Evaluate = "evaluate"
)

// Opts tells the sender where to put a message
type Opts struct {
	Queue string
	Type  string
}

// DefaultOpts returns opts for a queue whose only job type is the queue name
func DefaultOpts(queue string) *Opts {
	return &Opts{Queue: queue, Type: queue}
}

// WorkOpts returns opts for a job type on the work queue
func WorkOpts(jobType string) *Opts {
	return &Opts{Queue: Work, Type: jobType}
}

// AudioMessage is passed for uploaded audio, ID is the audio job id
type AudioMessage struct {
	amessages.QueueMessage
	FileName string `json:"fileName,omitempty"`
}

// EvaluateMessage is passed for a finished interview, ID is the evaluation id
type EvaluateMessage struct {
	amessages.QueueMessage
	InterviewID string `json:"interviewID,omitempty"`
	AudioID     string `json:"audioID,omitempty"`
}

// NewStatusMessage creates a status change notification for the audio job
func NewStatusMessage(id string) *AudioMessage {
	return &AudioMessage{QueueMessage: amessages.QueueMessage{ID: id}}
}
