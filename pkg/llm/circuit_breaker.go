package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/querylens/querylens-engine/pkg/apperrors"
)

// CircuitState is the breaker's position.
type CircuitState int

const (
	// CircuitClosed lets requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen lets a single probe request through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes when the breaker trips and how long it stays
// open.
type CircuitBreakerConfig struct {
	// Threshold is the consecutive-failure count that trips the breaker.
	Threshold int
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures and probes
// again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, Cooldown: 30 * time.Second}
}

// CircuitBreaker stops hammering a provider that keeps failing. It trips
// open after Threshold consecutive failures, rejects calls for Cooldown,
// then admits one probe request; the probe's outcome decides whether the
// breaker closes again or reopens.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	fails       int
	lastFailure time.Time
	state       CircuitState
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{threshold: cfg.Threshold, cooldown: cfg.Cooldown, state: CircuitClosed}
}

// BreakerOpenError is the rejection returned while the breaker is open. It
// is never retryable: backing off locally is the whole point.
type BreakerOpenError struct {
	State CircuitState
	Fails int
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("provider circuit %s after %d consecutive failures", e.State, e.Fails)
}

// Is matches apperrors.ErrUpstreamUnavailable so a tripped breaker surfaces
// to callers the same way a down provider does.
func (e *BreakerOpenError) Is(target error) bool {
	return target == apperrors.ErrUpstreamUnavailable
}

// IsRetryable implements the retry.RetryableError interface.
func (e *BreakerOpenError) IsRetryable() bool { return false }

// allow admits or rejects one request. In the open state the first call
// after the cooldown becomes the half-open probe.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.cooldown {
			cb.state = CircuitHalfOpen
			return nil
		}
		return &BreakerOpenError{State: CircuitOpen, Fails: cb.fails}
	default: // half-open, a probe is already in flight
		return &BreakerOpenError{State: CircuitHalfOpen, Fails: cb.fails}
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.fails = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.fails++
	cb.lastFailure = time.Now()
	if cb.state == CircuitHalfOpen || cb.fails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the breaker's current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.fails
}

// breakerEmbedder guards an Embedder with a circuit breaker.
type breakerEmbedder struct {
	inner   Embedder
	breaker *CircuitBreaker
}

var _ Embedder = (*breakerEmbedder)(nil)

// NewBreakerEmbedder wraps an Embedder so consecutive provider failures
// trip the breaker instead of stalling every request on retries.
func NewBreakerEmbedder(inner Embedder, breaker *CircuitBreaker) Embedder {
	return &breakerEmbedder{inner: inner, breaker: breaker}
}

func (e *breakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.breaker.allow(); err != nil {
		return nil, err
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.breaker.recordFailure()
		return nil, err
	}
	e.breaker.recordSuccess()
	return vec, nil
}

// breakerGenerator guards a Generator with a circuit breaker.
type breakerGenerator struct {
	inner   Generator
	breaker *CircuitBreaker
}

var _ Generator = (*breakerGenerator)(nil)

// NewBreakerGenerator wraps a Generator the same way NewBreakerEmbedder
// wraps an Embedder.
func NewBreakerGenerator(inner Generator, breaker *CircuitBreaker) Generator {
	return &breakerGenerator{inner: inner, breaker: breaker}
}

func (g *breakerGenerator) GenerateSQL(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := g.breaker.allow(); err != nil {
		return "", err
	}
	sqlText, err := g.inner.GenerateSQL(ctx, systemPrompt, userPrompt)
	if err != nil {
		g.breaker.recordFailure()
		return "", err
	}
	g.breaker.recordSuccess()
	return sqlText, nil
}
