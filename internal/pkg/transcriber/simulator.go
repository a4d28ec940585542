package transcriber

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
)

// Simulator returns canned transcripts instead of real speech recognition.
// The same audio size always gives the same text
type Simulator struct {
	delay   time.Duration
	phrases []string
}

var defaultPhrases = []string{
	"First I would clarify the goal, then segment the users and pick the biggest pain point.",
	"We grew weekly active users by 20% in two quarters by fixing onboarding.",
	"I would look at the funnel first. Second, I would check recent releases. Finally, I would compare cohorts.",
	"To summarize, I would launch a small pilot, measure retention and iterate.",
	"I led a team of 5 engineers and we cut latency from 800 ms to 200 ms.",
	"The main tradeoff is speed versus quality, so I would ship behind a flag and track the error rate.",
}

// NewSimulator creates the transcriber, delay simulates the processing time
func NewSimulator(delay time.Duration) (*Simulator, error) {
	if delay < 0 {
		return nil, errors.Errorf("wrong delay %v", delay)
	}
	goapp.Log.Info().Dur("delay", delay).Msg("simulated transcriber")
	return &Simulator{delay: delay, phrases: defaultPhrases}, nil
}

// Transcribe reads the audio and returns the canned text
func (s *Simulator) Transcribe(ctx context.Context, r io.Reader) (string, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return "", fmt.Errorf("can't read audio: %w", err)
	}
	if n == 0 {
		return "", utils.NewErrNonRetryable(errors.New("empty audio"))
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.phrases[n%int64(len(s.phrases))], nil
}
