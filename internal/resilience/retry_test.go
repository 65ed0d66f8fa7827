package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func always(error) bool { return true }
func never(error) bool  { return false }

func TestRetry_SucceedsFirstTry(t *testing.T) {
	t.Parallel()
	calls := 0
	got, err := Retry(context.Background(), RetryConfig{Attempts: 3, InitialBackoff: time.Millisecond}, always,
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want %q after 1", got, calls, "ok")
	}
}

func TestRetry_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()
	calls := 0
	got, err := Retry(context.Background(), RetryConfig{Attempts: 3, InitialBackoff: time.Millisecond}, always,
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errTransient
			}
			return 42, nil
		})
	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{Attempts: 5, InitialBackoff: time.Millisecond}, never,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected errTransient, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{Attempts: 3, InitialBackoff: time.Millisecond}, always,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected errTransient, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, RetryConfig{Attempts: 3, InitialBackoff: time.Minute}, always,
			func(ctx context.Context) (int, error) {
				calls++
				return 0, errTransient
			})
		done <- err
	}()

	// Give the first attempt time to fail and enter backoff, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt before cancellation, got %d", calls)
	}
}
