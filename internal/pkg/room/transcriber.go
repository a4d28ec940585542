package room

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/capture"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/client"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultPollInterval between audio status requests
	DefaultPollInterval = 1200 * time.Millisecond
	// DefaultPollAttempts max audio status requests
	DefaultPollAttempts = 25
)

// Uploader sends recordings
type Uploader interface {
	Upload(ctx context.Context, fileName, contentType string, data []byte) (*api.Upload, error)
}

// StatusProvider returns audio job status
type StatusProvider interface {
	AudioStatus(ctx context.Context, audioID string) (*client.StatusResponse, error)
}

// TranscriptPoller uploads recordings and waits for their transcripts
type TranscriptPoller struct {
	uploader    Uploader
	status      StatusProvider
	clk         Clock
	interval    time.Duration
	maxAttempts int
}

// Answer is a transcribed recording, AudioID is empty for inline transcripts
type Answer struct {
	Text    string
	AudioID string
}

var errStillProcessing = errors.New("still processing")

// NewTranscriptPoller creates the poller, interval and attempts <= 0 take defaults
func NewTranscriptPoller(uploader Uploader, status StatusProvider, clk Clock, interval time.Duration, maxAttempts int) (*TranscriptPoller, error) {
	if uploader == nil {
		return nil, fmt.Errorf("no uploader")
	}
	if status == nil {
		return nil, fmt.Errorf("no status provider")
	}
	if clk == nil {
		return nil, fmt.Errorf("no clock")
	}
	res := &TranscriptPoller{uploader: uploader, status: status, clk: clk, interval: interval, maxAttempts: maxAttempts}
	if res.interval <= 0 {
		res.interval = DefaultPollInterval
	}
	if res.maxAttempts <= 0 {
		res.maxAttempts = DefaultPollAttempts
	}
	return res, nil
}

// Transcribe uploads the blob. If the upload returns a job id the job is polled,
// otherwise the inline transcript is returned
func (p *TranscriptPoller) Transcribe(ctx context.Context, blob *capture.Blob) (*Answer, error) {
	if blob == nil || len(blob.Data) == 0 {
		return nil, api.ErrEmptyRecording
	}
	up, err := p.uploader.Upload(ctx, blob.FileName, blob.ContentType, blob.Data)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if up.AudioID == "" {
		if up.Transcript == "" {
			return nil, api.ErrNoTranscript
		}
		goapp.Log.Debug().Msg("inline transcript")
		return &Answer{Text: up.Transcript}, nil
	}
	goapp.Log.Info().Str("ID", up.AudioID).Msg("uploaded")
	text, err := p.PollForTranscript(ctx, up.AudioID)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, AudioID: up.AudioID}, nil
}

// PollForTranscript requests the job status until a transcript arrives or
// attempts are exhausted. Nothing is returned after ctx is canceled
func (p *TranscriptPoller) PollForTranscript(ctx context.Context, audioID string) (string, error) {
	var res string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := p.status.AudioStatus(ctx, audioID)
		if err != nil {
			if errors.Is(err, api.ErrMalformedResponse) {
				return backoff.Permanent(err)
			}
			goapp.Log.Warn().Err(err).Str("ID", audioID).Int("attempt", attempt).Msg("poll error")
			return err
		}
		if resp.Code != http.StatusOK {
			return errStillProcessing
		}
		if resp.Status == nil || resp.Status.Transcript == "" {
			return backoff.Permanent(api.ErrNoTranscript)
		}
		res = resp.Status.Transcript
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.maxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(op, b, nil, &clockTimer{clk: p.clk})
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		if errors.Is(err, api.ErrNoTranscript) || errors.Is(err, api.ErrMalformedResponse) {
			return "", err
		}
		return "", fmt.Errorf("%w: %d attempts for '%s': %v", api.ErrTranscriptTimeout, attempt, audioID, err)
	}
	goapp.Log.Info().Str("ID", audioID).Int("attempts", attempt).Msg("transcript ready")
	return res, nil
}
