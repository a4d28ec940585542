package evaluation

import (
	"strings"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
)

const (
	interviewerPrefix = "Interviewer: "
	userPrefix        = "You: "
)

// FormatTranscript renders interview lines as plain text, one line per message
func FormatTranscript(lines []persistence.Line) string {
	sb := strings.Builder{}
	for _, l := range lines {
		text := strings.Join(strings.Fields(l.Text), " ")
		if text == "" {
			continue
		}
		switch api.Speaker(l.Speaker) {
		case api.SpeakerUser:
			sb.WriteString(userPrefix)
		case api.SpeakerAI:
			sb.WriteString(interviewerPrefix)
		default:
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Answers extracts candidate answers from the transcript
func Answers(transcript string) []string {
	var res []string
	for _, l := range strings.Split(transcript, "\n") {
		if s, ok := strings.CutPrefix(l, userPrefix); ok && strings.TrimSpace(s) != "" {
			res = append(res, strings.TrimSpace(s))
		}
	}
	return res
}
