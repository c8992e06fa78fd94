package options

import (
	"errors"
	"sync"
	"time"
)

// ErrEndpointSuspended is returned while a breaker is open and the remote
// endpoint is not being called.
var ErrEndpointSuspended = errors.New("options endpoint suspended after repeated failures")

// breakerState is the current state of an endpoint breaker.
type breakerState int

const (
	// breakerClosed allows all requests through. Failures are counted.
	breakerClosed breakerState = iota
	// breakerOpen rejects all requests immediately.
	breakerOpen
	// breakerHalfOpen allows a single probe request through.
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker guards one remote options endpoint. It trips after a run of
// consecutive failures, stays open for the cooldown, then lets one probe
// through. Safe for concurrent use.
type breaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	probing   bool
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold < 1 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{
		state:     breakerClosed,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// allow reports whether a request may go out. In half-open only one caller
// at a time gets the probe slot.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if time.Since(b.openedAt) > b.cooldown {
			b.state = breakerHalfOpen
			b.probing = true
			return nil
		}
		return ErrEndpointSuspended
	case breakerHalfOpen:
		if b.probing {
			return ErrEndpointSuspended
		}
		b.probing = true
		return nil
	}
	return nil
}

// recordSuccess closes the breaker.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = breakerClosed
	b.failures = 0
	b.probing = false
}

// recordFailure counts a failure; a failed probe reopens immediately.
func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = breakerOpen
			b.openedAt = time.Now()
		}
	case breakerHalfOpen:
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.probing = false
	}
}

// currentState returns the state, advancing open to half-open after the
// cooldown.
func (b *breaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen && time.Since(b.openedAt) > b.cooldown {
		b.state = breakerHalfOpen
		b.probing = false
	}
	return b.state
}
