package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy retries transient and authentication failures with exponential
// backoff. Delay before attempt k (k >= 2) is InitialDelay * 2^(k-2),
// bounded by MaxDelay. After MaxAttempts consecutive failures the last error
// is returned wrapped in ExhaustedError.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// sleep is overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError reports that every retry attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// AttemptsOf returns the number of attempts made for the operation that
// produced err. Errors that never went through retry exhaustion count as a
// single attempt.
func AttemptsOf(err error) int {
	var ee *ExhaustedError
	if errors.As(err, &ee) {
		return ee.Attempts
	}
	return 1
}

// Do runs op, retrying retryable failures until an attempt succeeds, a
// non-retryable error occurs, the context is cancelled, or MaxAttempts is
// reached.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.delay(attempt)); err != nil {
				return err
			}
		}

		last = op(ctx)
		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return last
		}
		if !IsRetryable(last) {
			return last
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Err: last}
}

// delay computes the backoff delay before the given attempt (attempt >= 2).
func (p RetryPolicy) delay(attempt int) time.Duration {
	shift := attempt - 2
	if shift > 32 {
		shift = 32
	}

	d := p.InitialDelay << uint(shift)
	if d < 0 {
		d = p.MaxDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// sleepContext sleeps for d but returns early if the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
