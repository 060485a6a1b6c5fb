// Package circuitbreaker guards outbound program API calls so that a
// flapping or dead endpoint cannot stall every scan behind retries.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls are rejected immediately
	StateHalfOpen              // Testing if the endpoint has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker tracks consecutive failures against one named endpoint and
// rejects calls once the failure threshold is crossed. After the reset
// delay it admits probe calls (half-open) and closes again once enough
// probes succeed.
type Breaker struct {
	name string

	failureThreshold int
	successThreshold int
	resetDelay       time.Duration

	mu        sync.RWMutex
	state     State
	failures  int
	successes int
	lastTrip  time.Time
}

// New creates a Breaker for the named endpoint with default thresholds:
// trip after 3 consecutive failures, probe after 30 seconds, close
// after 2 consecutive probe successes.
func New(name string) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: 3,
		successThreshold: 2,
		resetDelay:       30 * time.Second,
	}
}

// WithFailureThreshold sets how many consecutive failures trip the circuit
func (b *Breaker) WithFailureThreshold(n int) *Breaker {
	b.failureThreshold = n
	return b
}

// WithSuccessThreshold sets how many probe successes close the circuit
func (b *Breaker) WithSuccessThreshold(n int) *Breaker {
	b.successThreshold = n
	return b
}

// WithResetDelay sets how long the circuit stays open before probing
func (b *Breaker) WithResetDelay(d time.Duration) *Breaker {
	b.resetDelay = d
	return b
}

// Allow reports whether a call may proceed. When the circuit is open
// and the reset delay has not elapsed, it returns an error and the
// caller should use its fallback path instead of dialing out.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastTrip) < b.resetDelay {
			return fmt.Errorf("circuit open for %s: endpoint suppressed until %s",
				b.name, b.lastTrip.Add(b.resetDelay).Format(time.RFC3339))
		}
		b.state = StateHalfOpen
		b.successes = 0
		logrus.WithField("endpoint", b.name).Info("Circuit breaker half-open: probing endpoint recovery")
	}
	return nil
}

// RecordSuccess notes a successful call, closing the circuit once
// enough probes pass.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.successes = 0
			logrus.WithField("endpoint", b.name).Info("Circuit breaker closed: endpoint recovered")
		}
	}
}

// RecordFailure notes a failed call. In half-open state a single
// failure re-trips immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.trip()
	}
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forcibly closes the circuit and clears counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	logrus.WithField("endpoint", b.name).Info("Circuit breaker manually reset to closed state")
}

// trip assumes b.mu is held
func (b *Breaker) trip() {
	b.state = StateOpen
	b.lastTrip = time.Now()
	b.successes = 0
	logrus.WithFields(logrus.Fields{
		"endpoint": b.name,
		"failures": b.failures,
	}).Warn("Circuit breaker tripped")
}
