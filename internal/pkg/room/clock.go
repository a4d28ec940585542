package room

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
)

// Clock is the time source of the room and the pollers
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// NewClock returns the wall clock
func NewClock() Clock {
	return clock.New()
}

// clockTimer drives backoff retries with the injected clock
type clockTimer struct {
	clk Clock
	c   <-chan time.Time
}

func (t *clockTimer) Start(d time.Duration) {
	t.c = t.clk.After(d)
}

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time {
	return t.c
}

func wait(ctx context.Context, clk Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
