// Package retry runs fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"log"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Policy configures Do. After failed attempt n (counting from 0) the wait is
// BaseDelay * 2^n; MaxRetries+1 attempts are made in total.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// Sleep waits for d. Nil uses a timer that stops early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Label prefixes the log lines.
	Label string
}

func Default() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait that follows failed attempt n.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Do calls op until it succeeds, returns a non-retryable error, or the retries run out.
// The last error is returned unchanged.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}
	label := p.Label
	if label == "" {
		label = "retry"
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		log.Printf("%s: attempt %d failed: %v", label, attempt+1, err)
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt >= maxRetries {
			return zero, err
		}

		delay := p.Delay(attempt)
		log.Printf("%s: retrying in %s", label, delay)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			// Cancelled while waiting; the operation's own failure is the useful one.
			return zero, err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
