package fault

import (
	"sync"
	"time"

	"github.com/slonana-labs/validator-core/internal/types"
)

// CircuitState is one of CLOSED, OPEN, HALF_OPEN.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the trip/recovery thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
	SuccessThreshold uint32
}

// DefaultCircuitBreakerConfig matches the teacher's benchlist defaults in
// spirit: a handful of failures trips, a short timeout before probing again.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
	}
}

// CircuitBreaker guards a single dependency. All transitions and counters
// are mutated under one mutex per Execute call, so there is no
// check-then-act gap between reading the state and recording the outcome.
type CircuitBreaker struct {
	mu            sync.Mutex
	cfg           CircuitBreakerConfig
	state         CircuitState
	fails         uint32
	succs         uint32
	lastFailureAt time.Time
}

// NewCircuitBreaker returns a CLOSED breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: Closed}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ErrCircuitOpen is returned when Execute short-circuits.
var ErrCircuitOpen = types.NewError(types.KindCircuitOpen, "circuit open", nil)

// Execute runs op under the breaker's protection. If OPEN and the timeout
// has not yet elapsed, it fails fast with ErrCircuitOpen without calling op.
// op runs with the breaker's lock held, so concurrent Execute calls on one
// breaker are serialized.
func (b *CircuitBreaker) Execute(op Operation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.lastFailureAt) < b.cfg.Timeout {
			return ErrCircuitOpen
		}
		b.state = HalfOpen
		b.succs = 0
	}

	err := op()

	switch b.state {
	case HalfOpen:
		if err != nil {
			b.state = Open
			b.lastFailureAt = time.Now()
			b.fails = 0
			b.succs = 0
			return err
		}
		b.succs++
		if b.succs >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.fails = 0
			b.succs = 0
		}
		return nil
	default: // Closed (Open was already handled above and always
		// transitions through HalfOpen before reaching here)
		if err != nil {
			b.fails++
			b.lastFailureAt = time.Now()
			if b.fails >= b.cfg.FailureThreshold {
				b.state = Open
			}
			return err
		}
		b.fails = 0
		return nil
	}
}
