// Package circuitbreaker isolates failing backend targets. Each breaker
// counts outcomes over a sliding time window: only events younger than the
// window contribute to the trip decision, so failures separated by long
// quiet spans never accumulate, and a breaker recovers once its failures
// age out even without a successful trial.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/vkuzn/apigw/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and requests are allowed.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and requests are rejected.
	StateOpen

	// StateHalfOpen indicates a single trial request is probing recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a request is rejected by an open circuit.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds configuration for a circuit breaker.
type Config struct {
	// Threshold is the number of failures within the window that trips
	// the breaker.
	Threshold int

	// Window is both the sliding counting window and the cool-down an
	// open breaker waits before allowing a half-open trial.
	Window time.Duration

	// MinRequests is the minimum number of requests within the window
	// before the breaker is eligible to trip.
	MinRequests int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Threshold:   5,
		Window:      30 * time.Second,
		MinRequests: 5,
	}
}

// normalize clamps invalid values to defaults.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.Threshold < 1 {
		c.Threshold = d.Threshold
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.MinRequests < 1 {
		c.MinRequests = d.MinRequests
	}
	return c
}

// event is one recorded request outcome.
type event struct {
	at      time.Time
	failure bool
}

// Breaker implements the circuit breaker state machine for one backend
// target. It is owned by a single dispatcher and never shared across
// endpoints, even when target URLs repeat.
type Breaker struct {
	name   string
	config Config
	logger observability.Logger

	mu               sync.Mutex
	state            State
	events           []event
	halfOpenInFlight bool
	lastTransition   time.Time
}

// New creates a new circuit breaker.
func New(name string, config Config, logger observability.Logger) *Breaker {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Breaker{
		name:           name,
		config:         config.normalize(),
		logger:         logger,
		state:          StateClosed,
		lastTransition: time.Now(),
	}
}

// Allow reports whether a request may proceed to the target. An open
// breaker whose cool-down has elapsed transitions to half-open and admits
// exactly one trial request.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.prune(now)

	var allowed bool
	switch b.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		if now.Sub(b.lastTransition) >= b.config.Window {
			b.transitionTo(StateHalfOpen, now)
			b.halfOpenInFlight = true
			allowed = true
		}

	case StateHalfOpen:
		if !b.halfOpenInFlight {
			b.halfOpenInFlight = true
			allowed = true
		}
	}

	recordDecision(b.name, allowed)
	return allowed
}

// RecordSuccess records a successful request outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.prune(now)
	recordOutcome(b.name, false)

	if b.state == StateHalfOpen {
		// Trial succeeded: close and start a fresh window.
		b.transitionTo(StateClosed, now)
		return
	}

	b.events = append(b.events, event{at: now})
}

// RecordFailure records a failed request outcome.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.prune(now)
	recordOutcome(b.name, true)

	if b.state == StateHalfOpen {
		// The single trial failed: back to open immediately.
		b.transitionTo(StateOpen, now)
		return
	}

	b.events = append(b.events, event{at: now, failure: true})

	if b.state == StateClosed && b.shouldTrip() {
		b.transitionTo(StateOpen, now)
	}
}

// shouldTrip checks the window counters against the trip condition.
// Caller must hold b.mu.
func (b *Breaker) shouldTrip() bool {
	if len(b.events) < b.config.MinRequests {
		return false
	}

	failures := 0
	for _, e := range b.events {
		if e.failure {
			failures++
		}
	}
	return failures >= b.config.Threshold
}

// prune drops events older than the window. Caller must hold b.mu.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.config.Window)
	i := 0
	for i < len(b.events) && !b.events[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		b.events = append(b.events[:0], b.events[i:]...)
	}
}

// transitionTo moves to a new state and resets window counters.
// Caller must hold b.mu.
func (b *Breaker) transitionTo(newState State, now time.Time) {
	oldState := b.state
	b.state = newState
	b.lastTransition = now
	b.events = b.events[:0]
	b.halfOpenInFlight = false

	recordStateChange(b.name, oldState, newState)

	b.logger.Info("circuit breaker state changed",
		observability.String("name", b.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the name of the circuit breaker.
func (b *Breaker) Name() string {
	return b.name
}

// Stats holds a snapshot of breaker counters within the current window.
type Stats struct {
	State          State
	Requests       int
	Failures       int
	LastTransition time.Time
}

// Stats returns a snapshot of the breaker's window counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(time.Now())

	failures := 0
	for _, e := range b.events {
		if e.failure {
			failures++
		}
	}

	return Stats{
		State:          b.state,
		Requests:       len(b.events),
		Failures:       failures,
		LastTransition: b.lastTransition,
	}
}
