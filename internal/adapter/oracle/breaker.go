// Package oracle holds PriceOracle implementations and decorators.
package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/investpool-backend/internal/domain"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, reject requests
	StateHalfOpen              // Testing recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned without calling the oracle while the breaker is open
var ErrCircuitOpen = fmt.Errorf("%w: price oracle circuit open", domain.ErrUpstream)

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Successes in half-open before closing
	Timeout          time.Duration // Time open before trying half-open
}

// DefaultBreakerConfig returns the defaults used for the exchange oracle
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// Breaker wraps a PriceOracle with a circuit breaker.
// Thread-safe for concurrent use.
type Breaker struct {
	oracle domain.PriceOracle
	cfg    BreakerConfig
	log    zerolog.Logger
	now    func() time.Time

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
}

// NewBreaker creates a new circuit breaker around oracle
func NewBreaker(oracle domain.PriceOracle, cfg BreakerConfig, log zerolog.Logger) *Breaker {
	defaults := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaults.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &Breaker{
		oracle: oracle,
		cfg:    cfg,
		log:    log.With().Str("component", "oracle_breaker").Logger(),
		now:    time.Now,
		state:  StateClosed,
	}
}

// CurrentPoolValue calls the wrapped oracle unless the circuit is open
func (b *Breaker) CurrentPoolValue(ctx context.Context) (decimal.Decimal, error) {
	if !b.allow() {
		return decimal.Zero, ErrCircuitOpen
	}

	value, err := b.oracle.CurrentPoolValue(ctx)
	switch {
	case err == nil:
		b.recordSuccess()
	case ctx.Err() != nil:
		// The caller gave up; says nothing about the oracle
	default:
		b.recordFailure()
	}
	return value, err
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Timeout {
			return false
		}
		b.state = StateHalfOpen
		b.successCount = 0
		b.log.Info().Msg("circuit half-open, probing oracle")
	}
	return true
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.log.Info().Msg("circuit closed")
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

// trip opens the circuit. Caller holds mu.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.log.Warn().Int("failures", b.failureCount).Dur("timeout", b.cfg.Timeout).Msg("circuit opened")
}
