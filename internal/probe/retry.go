package probe

import (
	"context"
	"time"
)

// RetryProber re-probes a down endpoint before declaring it unreachable.
type RetryProber struct {
	Inner    Prober
	Attempts int
	Backoff  time.Duration
}

func NewRetryProber(inner Prober, attempts int, backoff time.Duration) Prober {
	if attempts <= 1 {
		return inner
	}
	return &RetryProber{Inner: inner, Attempts: attempts, Backoff: backoff}
}

func (r *RetryProber) Probe(ctx context.Context, endpoint string) Result {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last Result
	for i := 0; i < attempts; i++ {
		actx, cancel := attemptContext(ctx, attempts-i)
		last = r.Inner.Probe(actx, endpoint)
		cancel()
		if last.Up {
			return last
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			last.Message += " (deadline during retries)"
			return last
		case <-time.After(r.Backoff):
		}
	}
	last.Message += " (after retries)"
	return last
}

// attemptContext gives one of left remaining attempts an equal share of the
// time left on ctx, so a timed-out attempt does not starve the rest. Without
// a deadline ctx is returned as is.
func attemptContext(ctx context.Context, left int) (context.Context, context.CancelFunc) {
	dl, ok := ctx.Deadline()
	if !ok || left <= 1 {
		return ctx, func() {}
	}
	share := time.Until(dl) / time.Duration(left)
	if share <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, share)
}
