package pool

import (
	"context"
	"time"
)

// DefaultRetryInterval is the wait between two failed connection attempts.
const DefaultRetryInterval = time.Second

// Backoff returns how long to wait after the given failed attempt (1-based).
type Backoff func(attempt int) time.Duration

// ConstantBackoff waits the same interval after every failure.
func ConstantBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// LinearBackoff waits attempt*step, so the third failure waits three steps.
func LinearBackoff(step time.Duration) Backoff {
	return func(attempt int) time.Duration { return time.Duration(attempt) * step }
}

// RetryPolicy controls connection establishment.
//
// With MaxAttempts left at 0 a connection attempt never gives up: the calling
// goroutine blocks until the server accepts or ctx is cancelled. Against a
// permanently unreachable server and a background context that is forever.
type RetryPolicy struct {
	// MaxAttempts bounds connect attempts per acquire. 0 means unbounded.
	MaxAttempts int
	// Backoff defaults to ConstantBackoff(DefaultRetryInterval).
	Backoff Backoff
	// Sleep defaults to a timer wait that returns early with ctx.Err().
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries forever, one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Backoff: ConstantBackoff(DefaultRetryInterval),
		Sleep:   sleepContext,
	}
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.Backoff == nil {
		r.Backoff = ConstantBackoff(DefaultRetryInterval)
	}
	if r.Sleep == nil {
		r.Sleep = sleepContext
	}
	if r.MaxAttempts < 0 {
		r.MaxAttempts = 0
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
