// Package resilience provides the failure-handling primitives used around
// the bridge's two kinds of remote calls: a [Breaker] that permanently
// trips a tool-server connection after repeated transport failures, and a
// bounded [Retry] with exponential backoff for transient model-service
// errors.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrTripped is returned by [Breaker.Execute] once the breaker has opened.
var ErrTripped = errors.New("breaker tripped")

// Breaker trips after a number of consecutive failures and then rejects all
// further calls for its lifetime.
//
// Unlike a classic three-state circuit breaker there is no half-open probe
// phase: the breaker guards a spawned stdio subprocess, and a child process
// whose pipe has broken does not come back within the session. Failing fast
// keeps the turn loop from blocking on a corpse.
type Breaker struct {
	name        string
	maxFailures int

	mu       sync.Mutex
	failures int
	tripped  bool
}

// NewBreaker creates a Breaker that trips after maxFailures consecutive
// failures. name is used in log messages. maxFailures values below 1 are
// treated as 1.
func NewBreaker(name string, maxFailures int) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{name: name, maxFailures: maxFailures}
}

// Execute runs fn unless the breaker has tripped, in which case it returns
// [ErrTripped] without calling fn. A successful call resets the consecutive
// failure count.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.tripped {
		b.mu.Unlock()
		return ErrTripped
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return nil
	}

	b.failures++
	if b.failures >= b.maxFailures && !b.tripped {
		b.tripped = true
		slog.Warn("breaker tripped, failing fast for the rest of the session",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
	return err
}

// Tripped reports whether the breaker has opened.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}
