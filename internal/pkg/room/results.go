package room

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/client"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultResultsWait is used when a pending response has no eta
	DefaultResultsWait = 2 * time.Second
	// MaxResultsWait caps the eta hint
	MaxResultsWait = 5 * time.Second
	// DefaultResultsAttempts max results requests
	DefaultResultsAttempts = 12
)

// ResultsProvider returns interview results
type ResultsProvider interface {
	Results(ctx context.Context, interviewID string) (*client.ResultsResponse, error)
}

// ResultsPoller waits for the interview evaluation
type ResultsPoller struct {
	provider    ResultsProvider
	clk         Clock
	maxAttempts int
	// OnPending is called after every attempt that did not finish the poll
	OnPending func(attempt int)
}

var errPending = errors.New("results pending")

// NewResultsPoller creates the poller, maxAttempts <= 0 takes the default
func NewResultsPoller(provider ResultsProvider, clk Clock, maxAttempts int) (*ResultsPoller, error) {
	if provider == nil {
		return nil, fmt.Errorf("no results provider")
	}
	if clk == nil {
		return nil, fmt.Errorf("no clock")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultResultsAttempts
	}
	return &ResultsPoller{provider: provider, clk: clk, maxAttempts: maxAttempts}, nil
}

// hintBackOff waits for the server eta hint if there is one
type hintBackOff struct {
	def, max time.Duration
	hint     time.Duration
}

func (b *hintBackOff) NextBackOff() time.Duration {
	res := b.def
	if b.hint > 0 {
		res = b.hint
	}
	b.hint = 0
	if res > b.max {
		res = b.max
	}
	return res
}

func (b *hintBackOff) Reset() { b.hint = 0 }

// Poll requests results until they are ready, a terminal status comes or attempts are exhausted
func (p *ResultsPoller) Poll(ctx context.Context, interviewID string) (*api.Results, error) {
	var res *api.Results
	hb := &hintBackOff{def: DefaultResultsWait, max: MaxResultsWait}
	attempt := 0
	op := func() error {
		attempt++
		resp, err := p.provider.Results(ctx, interviewID)
		if err != nil {
			if errors.Is(err, api.ErrMalformedResponse) {
				return backoff.Permanent(err)
			}
			goapp.Log.Warn().Err(err).Str("ID", interviewID).Int("attempt", attempt).Msg("results poll error")
			return err
		}
		switch resp.Code {
		case http.StatusOK:
			res = resp.Results
			return nil
		case http.StatusAccepted:
			if resp.Pending != nil {
				hb.hint = time.Duration(resp.Pending.EtaSeconds) * time.Second
			}
			return errPending
		}
		return backoff.Permanent(fmt.Errorf("%w: results returned %d", api.ErrServerUnavailable, resp.Code))
	}
	notify := func(error, time.Duration) {
		if p.OnPending != nil {
			p.OnPending(attempt)
		}
	}
	b := backoff.WithContext(backoff.WithMaxRetries(hb, uint64(p.maxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clk: p.clk})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		if errors.Is(err, api.ErrServerUnavailable) || errors.Is(err, api.ErrMalformedResponse) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d attempts for '%s': %v", api.ErrResultsTimeout, attempt, interviewID, err)
	}
	goapp.Log.Info().Str("ID", interviewID).Int("attempts", attempt).Msg("results ready")
	return res, nil
}
