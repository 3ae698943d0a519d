// Package circuitbreaker stops best-effort calls to a failing dependency
// (Redis) from adding latency to every request until the dependency recovers.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrCircuitOpen is returned without calling through while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when every half-open trial slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config of a breaker. Zero thresholds are replaced by New.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int
	// SuccessThreshold consecutive trial successes close a half-open breaker.
	SuccessThreshold int
	// Timeout is the cool-down before an open breaker admits trials.
	Timeout time.Duration
	// MaxHalfOpenRequests bounds concurrent trials.
	MaxHalfOpenRequests int

	OnStateChange func(name string, from, to State)
	// IsFailure classifies errors. Nil counts every error.
	IsFailure func(error) bool

	now func() time.Time
}

// Option configures a breaker.
type Option func(*Config)

func positive(n int, dst *int) {
	if n > 0 {
		*dst = n
	}
}

func WithFailureThreshold(n int) Option { return func(c *Config) { positive(n, &c.FailureThreshold) } }

func WithSuccessThreshold(n int) Option { return func(c *Config) { positive(n, &c.SuccessThreshold) } }

func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) { positive(n, &c.MaxHalfOpenRequests) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.now = now
		}
	}
}

// Counts are reset by Reset only. Consecutive counters restart on every transition.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	trials   int
	// generation changes on every transition so results of calls admitted
	// under an earlier state are not counted against the current one.
	generation uint64
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute calls fn unless the breaker rejects it. fn's error is returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.record(gen, cb.failed(err))
	return err
}

// ExecuteWithFallback runs fallback only when the breaker rejected the call.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return fallback(err)
	}
	return err
}

func (cb *CircuitBreaker) failed(err error) bool {
	if err == nil {
		return false
	}
	return cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err)
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.now().Sub(cb.openedAt) < cb.cfg.Timeout {
			return 0, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.trials >= cb.cfg.MaxHalfOpenRequests {
			return 0, ErrTooManyRequests
		}
		cb.trials++
	}
	return cb.generation, nil
}

func (cb *CircuitBreaker) record(gen uint64, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	if failed {
		cb.counts.TotalFailures++
	} else {
		cb.counts.TotalSuccesses++
	}
	if gen != cb.generation {
		return
	}

	if cb.state == StateHalfOpen {
		cb.trials--
	}

	if failed {
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
		return
	}

	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0
	if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.generation++
	cb.trials = 0
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	if to == StateOpen {
		cb.openedAt = cb.cfg.now()
	}

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) IsOpen() bool   { return cb.State() == StateOpen }
func (cb *CircuitBreaker) IsClosed() bool { return cb.State() == StateClosed }
func (cb *CircuitBreaker) Name() string   { return cb.cfg.Name }

// Reset closes the breaker and clears its counts without calling OnStateChange.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.counts = Counts{}
	cb.trials = 0
	cb.generation++
}

// CacheBreaker guards the Redis leaderboard and view cache.
// Redis is optional, so it trips fast and retries soon.
func CacheBreaker(onStateChange func(name string, from, to State), isFailure func(error) bool) *CircuitBreaker {
	return New(
		"redis",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(15*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
		WithIsFailure(isFailure),
	)
}
