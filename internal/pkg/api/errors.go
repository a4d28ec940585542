package api

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied the platform denied microphone access
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable no usable microphone
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrEmptyRecording nothing was captured
	ErrEmptyRecording = errors.New("empty recording")
	// ErrUploadFailed audio upload failed
	ErrUploadFailed = errors.New("upload failed")
	// ErrNoTranscript the job finished without a transcript
	ErrNoTranscript = errors.New("no transcript")
	// ErrTranscriptTimeout transcript polling attempts exhausted
	ErrTranscriptTimeout = errors.New("transcript timeout")
	// ErrServerUnavailable the server returned a non success status
	ErrServerUnavailable = errors.New("server unavailable")
	// ErrResultsTimeout results polling attempts exhausted
	ErrResultsTimeout = errors.New("results timeout")
	// ErrMalformedResponse the response body does not match the contract
	ErrMalformedResponse = errors.New("malformed response")
)

var userMessages = []struct {
	err error
	msg string
}{
	{err: ErrPermissionDenied, msg: "Could not access microphone. Check permissions."},
	{err: ErrDeviceUnavailable, msg: "No microphone available."},
	{err: ErrEmptyRecording, msg: "No audio recorded."},
	{err: ErrUploadFailed, msg: "Upload failed."},
	{err: ErrNoTranscript, msg: "No transcript produced."},
	{err: ErrTranscriptTimeout, msg: "Transcript not ready yet. Try again later."},
	{err: ErrServerUnavailable, msg: "Interviewer is unavailable right now."},
	{err: ErrResultsTimeout, msg: "Results are still processing. Try again later."},
	{err: ErrMalformedResponse, msg: "Unexpected server response."},
}

// UserMessage maps an error to the inline text shown to the user
func UserMessage(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Something went wrong."
}
