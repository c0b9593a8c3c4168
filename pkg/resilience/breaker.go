package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrBreakerOpen is returned by Breaker.Do while calls are being shed.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState is the phase a Breaker is in.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Breaker trips and how long it stays open.
// Zero fields take defaults.
type BreakerConfig struct {
	Failures int
	Reset    time.Duration
}

// Breaker sheds calls to a dependency after Failures consecutive errors.
// Once Reset has elapsed a single probe call is let through; its outcome
// closes or re-opens the circuit.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	clock  clockwork.Clock

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Reset <= 0 {
		cfg.Reset = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		clock:  clockwork.NewRealClock(),
	}
}

// Do runs fn unless the circuit is open. A nil return from fn counts as a
// success, so callers should map expected outcomes (such as a cache miss)
// to nil inside fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	b.release(err)
	return err
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.clock.Now().Sub(b.openedAt) >= b.cfg.Reset {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		if b.clock.Now().Sub(b.openedAt) < b.cfg.Reset {
			return ErrBreakerOpen
		}
		b.transition(BreakerHalfOpen)
	}
	if b.state == BreakerHalfOpen {
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.failures = 0
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Failures {
		b.openedAt = b.clock.Now()
		if b.state != BreakerOpen {
			b.transition(BreakerOpen)
		}
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to BreakerState) {
	b.logger.Warn("circuit state changed", "from", b.state.String(), "to", to.String(), "failures", b.failures)
	b.state = to
}
