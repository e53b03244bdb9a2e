package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

// testPolicy returns a policy whose sleeps are captured instead of executed.
func testPolicy(maxAttempts int, initial, max time.Duration) (RetryPolicy, *[]time.Duration) {
	delays := &[]time.Duration{}
	policy := RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initial,
		MaxDelay:     max,
		sleep: func(ctx context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return ctx.Err()
		},
	}
	return policy, delays
}

func TestRetrySucceedsWithoutSleeping(t *testing.T) {
	policy, delays := testPolicy(3, time.Second, 10*time.Second)

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, expected 1", calls)
	}
	if len(*delays) != 0 {
		t.Errorf("delays = %v, expected none", *delays)
	}
}

func TestRetryBackoffDelays(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		initial     time.Duration
		max         time.Duration
		expected    []time.Duration
	}{
		{
			name:        "doubles each attempt",
			maxAttempts: 3,
			initial:     time.Second,
			max:         10 * time.Second,
			expected:    []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:        "caps at max delay",
			maxAttempts: 5,
			initial:     time.Second,
			max:         4 * time.Second,
			expected:    []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, delays := testPolicy(tt.maxAttempts, tt.initial, tt.max)

			err := policy.Do(context.Background(), func(ctx context.Context) error {
				return Transientf("still down")
			})

			var exhausted *ExhaustedError
			if !errors.As(err, &exhausted) {
				t.Fatalf("expected ExhaustedError, got %v", err)
			}
			if exhausted.Attempts != tt.maxAttempts {
				t.Errorf("attempts = %d, expected %d", exhausted.Attempts, tt.maxAttempts)
			}

			if len(*delays) != len(tt.expected) {
				t.Fatalf("delays = %v, expected %v", *delays, tt.expected)
			}
			for i, d := range tt.expected {
				if (*delays)[i] != d {
					t.Errorf("delay[%d] = %v, expected %v", i, (*delays)[i], d)
				}
			}
		})
	}
}

func TestRetryRecoversMidway(t *testing.T) {
	policy, delays := testPolicy(3, time.Second, 10*time.Second)

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transientf("attempt %d failed", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, expected 3", calls)
	}
	if len(*delays) != 2 {
		t.Errorf("expected 2 sleeps, got %v", *delays)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	policy, delays := testPolicy(3, time.Second, 10*time.Second)

	cause := errors.New("malformed response")
	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to propagate, got %v", err)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Error("non-retryable failures must not be wrapped as exhaustion")
	}
	if calls != 1 {
		t.Errorf("calls = %d, expected 1", calls)
	}
	if len(*delays) != 0 {
		t.Errorf("delays = %v, expected none", *delays)
	}
}

func TestRetryAuthFailuresAreRetried(t *testing.T) {
	policy, _ := testPolicy(2, time.Second, 10*time.Second)

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return AuthFailuref("session expired")
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, expected 2", calls)
	}
	if KindOf(err) != KindAuthentication {
		t.Errorf("kind = %s, expected authentication", KindOf(err))
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Transientf("interrupted")
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, expected 1", calls)
	}
}

func TestAttemptsOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"exhausted", &ExhaustedError{Attempts: 3, Err: Transientf("down")}, 3},
		{"wrapped exhausted", &Error{Kind: KindTransient, Err: &ExhaustedError{Attempts: 5, Err: errors.New("x")}}, 5},
		{"plain error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AttemptsOf(tt.err); got != tt.expected {
				t.Errorf("AttemptsOf() = %d, expected %d", got, tt.expected)
			}
		})
	}
}
