package pipeline

import (
	"context"
	"time"
)

// Backoff computes exponential retry delays.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Duration returns the delay before retry number attempt (0-based),
// doubling each time and capped at Max.
func (b Backoff) Duration(attempt int) time.Duration {
	d := b.Initial
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// sleepCtx waits for d or until ctx is done, returning the context
// error in the latter case.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
