package retry

import (
	"context"
	"time"
)

// Policy bounds how often and how patiently a unit of work is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Multiplier scales the delay after each failed attempt. Values <= 1 keep it flat.
	Multiplier float64
}

// Attempts returns the effective attempt budget (at least one).
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the delay to wait after the given 1-based attempt failed.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		return 0
	}
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				return p.MaxDelay
			}
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Sleeper pauses between attempts. Tests inject one that records instead of waiting.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a real timer and aborts early when ctx is done.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// policy's attempt budget is spent. It returns the number of attempts made
// and the last error.
func Do(ctx context.Context, p Policy, s Sleeper, fn func(ctx context.Context, attempt int) error) (int, error) {
	if s == nil {
		s = TimerSleeper{}
	}

	maxAttempts := p.Attempts()
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt >= maxAttempts {
			return attempt, err
		}
		if sleepErr := s.Sleep(ctx, p.Backoff(attempt)); sleepErr != nil {
			return attempt, err
		}
	}
}
