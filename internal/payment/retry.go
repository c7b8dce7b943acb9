package payment

import (
	"context"
	"time"
)

// RetryConfig bounds the retry loop around store writes.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetry is tuned for short store hiccups: five attempts spread over
// roughly three seconds.
var DefaultRetry = RetryConfig{
	Attempts: 5,
	Delay:    100 * time.Millisecond,
	MaxDelay: 2 * time.Second,
}

func (c RetryConfig) normalized() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 1
	}
	if c.Delay <= 0 {
		c.Delay = DefaultRetry.Delay
	}
	if c.MaxDelay < c.Delay {
		c.MaxDelay = c.Delay
	}
	return c
}

// retry runs fn up to cfg.Attempts times with exponential backoff, stopping
// early when retryable reports the error as final or the context ends.
func retry(ctx context.Context, cfg RetryConfig, fn func() error, retryable func(error) bool) error {
	cfg = cfg.normalized()

	var err error
	delay := cfg.Delay
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			if delay *= 2; delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}
