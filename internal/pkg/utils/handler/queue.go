package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/vgarvardt/gue/v5"
)

// Opts configures a gue work func
type Opts[TM any] struct {
	backoff    gue.Backoff
	timeout    time.Duration
	maxRetries int32
	onFailure  func(context.Context, *TM, error) error
}

// Create wraps a message handler into gue work func.
// A failed job is rescheduled with backoff until maxRetries is reached or the error
// is non retryable, then the failure func is invoked and the job is dropped
func Create[TM any, SD any](data *SD, hf func(context.Context, *TM, *SD) error, opts *Opts[TM]) gue.WorkFunc {
	if opts == nil {
		goapp.Log.Panic().Msg("no opts provided")
	}
	return func(ctx context.Context, j *gue.Job) error {
		goapp.Log.Info().Str("queue", j.Queue).Str("type", j.Type).Int32("errCount", j.ErrorCount).Msg("got msg")

		var m TM
		if err := json.Unmarshal(j.Args, &m); err != nil {
			goapp.Log.Error().Err(err).Str("queue", j.Queue).Str("type", j.Type).Msg("could not unmarshal message, drop")
			return nil
		}
		wrkCtx, cf := context.WithTimeout(ctx, opts.timeout)
		defer cf()
		err := hf(wrkCtx, &m, data)
		if err == nil {
			return nil
		}
		goapp.Log.Warn().Err(err).Str("queue", j.Queue).Str("type", j.Type).Msg("fail")
		if !utils.IsNonRetryable(err) && j.ErrorCount < opts.maxRetries {
			delay := opts.backoff(int(j.ErrorCount + 1))
			goapp.Log.Info().Str("queue", j.Queue).Str("type", j.Type).Dur("after", delay).Msg("retry after")
			return gue.ErrRescheduleJobIn(delay, err.Error())
		}
		if opts.onFailure != nil {
			if errF := opts.onFailure(ctx, &m, err); errF != nil {
				goapp.Log.Error().Err(errF).Str("queue", j.Queue).Str("type", j.Type).Msg("failure handler")
				return fmt.Errorf("can't process failure: %w", errF)
			}
		}
		goapp.Log.Warn().Str("queue", j.Queue).Str("type", j.Type).Int32("errCount", j.ErrorCount).Msg("job dropped")
		return nil
	}
}

// DefaultOpts returns opts with 3 retries and 5 minutes timeout
func DefaultOpts[TM any]() *Opts[TM] {
	return &Opts[TM]{timeout: time.Minute * 5, maxRetries: 3, backoff: DefaultBackoff()}
}

// DefaultBackoff is linear backoff with full jitter
func DefaultBackoff() gue.Backoff {
	return func(retries int) time.Duration {
		return fullJitter(time.Duration(retries) * time.Second * 10)
	}
}

// NoBackoff retries immediately
func NoBackoff() gue.Backoff {
	return func(retries int) time.Duration {
		return 0
	}
}

// DefaultBackoffOrTest returns NoBackoff in test mode
func DefaultBackoffOrTest(test bool) gue.Backoff {
	if test {
		return NoBackoff()
	}
	return DefaultBackoff()
}

// WithFailure sets a func invoked once the job is given up
func (o *Opts[TM]) WithFailure(onFailure func(context.Context, *TM, error) error) *Opts[TM] {
	o.onFailure = onFailure
	return o
}

// WithTimeout sets a timeout for one handler invocation
func (o *Opts[TM]) WithTimeout(timeout time.Duration) *Opts[TM] {
	o.timeout = timeout
	return o
}

// WithBackoff sets a retry backoff
func (o *Opts[TM]) WithBackoff(b gue.Backoff) *Opts[TM] {
	o.backoff = b
	return o
}

// WithMaxRetries sets how many times a job is rescheduled
func (o *Opts[TM]) WithMaxRetries(n int32) *Opts[TM] {
	o.maxRetries = n
	return o
}

// fullJitter return randomized duration in interval [0, t)
func fullJitter(t time.Duration) time.Duration {
	return time.Duration(float64(t) * rand.Float64())
}
