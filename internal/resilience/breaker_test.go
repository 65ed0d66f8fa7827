package resilience

import (
	"errors"
	"testing"
)

var errBoom = errors.New("boom")

func TestBreaker_PassesThroughWhileClosed(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", 3)

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected fn to be called once, got %d", calls)
	}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", 2)

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: expected errBoom, got %v", i, err)
		}
	}
	if !b.Tripped() {
		t.Fatal("expected breaker to be tripped after 2 consecutive failures")
	}

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrTripped) {
		t.Errorf("expected ErrTripped, got %v", err)
	}
	if calls != 0 {
		t.Errorf("fn must not run once tripped, ran %d times", calls)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", 2)

	_ = b.Execute(func() error { return errBoom })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errBoom })

	if b.Tripped() {
		t.Error("breaker tripped although failures were not consecutive")
	}
}

func TestBreaker_NeverRecovers(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", 1)

	_ = b.Execute(func() error { return errBoom })

	// Repeated calls stay rejected; there is no half-open probe phase.
	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrTripped) {
			t.Fatalf("call %d: expected ErrTripped, got %v", i, err)
		}
	}
}
