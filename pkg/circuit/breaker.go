// Package circuit stops hammering the shared KV backend while it is down.
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/Payphone-Digital/adminauth/pkg/clock"
	"go.uber.org/zap"
)

type State int

const (
	StateClosed   State = iota // calls reach the backend
	StateOpen                  // calls fail fast
	StateHalfOpen              // probing whether the backend recovered
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

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config defines circuit breaker configuration
type Config struct {
	Threshold        int           // consecutive failures before opening
	Timeout          time.Duration // open period before a probe is let through
	SuccessThreshold int           // probe successes needed to close again
	Clock            clock.Clock   // defaults to the system clock
}

// DefaultConfig suits a Redis backend: a few seconds of errors trips it and
// the breaker probes again after 30s.
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
	}
}

type Breaker struct {
	name   string
	config Config
	clock  clock.Clock
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

func NewBreaker(name string, config Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.System()
	}

	return &Breaker{
		name:   name,
		config: config,
		clock:  clk,
		logger: logger,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open and records its outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn()
	b.Record(err)
	return err
}

// Allow reports ErrCircuitOpen while the open period lasts. The first call
// after it moves the breaker to half-open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.clock.Now().Sub(b.lastFailure) < b.config.Timeout {
		return ErrCircuitOpen
	}
	b.transitionTo(StateHalfOpen)
	return nil
}

func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.transitionTo(StateClosed)
			}
		}
		return
	}

	b.failures++
	b.successes = 0
	b.lastFailure = b.clock.Now()
	if b.state == StateHalfOpen || b.failures >= b.config.Threshold {
		b.transitionTo(StateOpen)
	}
}

// transitionTo must be called with mu held.
func (b *Breaker) transitionTo(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if next == StateClosed {
		b.failures = 0
		b.successes = 0
	}

	log := b.logger.Info
	if next == StateOpen {
		log = b.logger.Warn
	}
	log("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
		zap.Int("failures", b.failures),
	)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
