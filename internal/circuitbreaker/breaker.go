package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, rejecting requests
	StateHalfOpen              // Probing whether the node recovered
)

// Breaker guards an RPC endpoint. Consecutive transport failures open it;
// after OpenTimeout a limited number of probe calls decide whether it
// closes again.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	probesInFlight   int
	failureThreshold int
	successThreshold int
	maxProbes        int
	openTimeout      time.Duration
	openedAt         time.Time
	now              func() time.Time
	onStateChange    func(from, to State)
}

// Config configures a circuit breaker.
type Config struct {
	FailureThreshold int           // consecutive failures before opening (default: 5)
	SuccessThreshold int           // successes in half-open before closing (default: 2)
	MaxProbes        int           // concurrent calls admitted while half-open (default: SuccessThreshold)
	OpenTimeout      time.Duration // how long to stay open before half-open (default: 30s)
	OnStateChange    func(from, to State)
	Now              func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = cfg.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		maxProbes:        cfg.MaxProbes,
		openTimeout:      cfg.OpenTimeout,
		now:              cfg.Now,
		onStateChange:    cfg.OnStateChange,
	}
}

// Allow reports whether a call may proceed. Every nil return must be paired
// with RecordSuccess or RecordFailure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireOpenLocked()
	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probesInFlight >= b.maxProbes {
			return ErrCircuitOpen
		}
		b.probesInFlight++
	}
	return nil
}

// Do runs fn if the breaker admits it and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
	return err
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.releaseProbeLocked()
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.setState(StateClosed)
		}
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.successCount = 0
	switch b.state {
	case StateHalfOpen:
		b.releaseProbeLocked()
		b.trip()
	case StateClosed:
		if b.failureCount >= b.failureThreshold {
			b.trip()
		}
	}
}

// GetState returns the current state.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireOpenLocked()
	return b.state
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.setState(StateOpen)
}

func (b *Breaker) expireOpenLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.openTimeout {
		b.setState(StateHalfOpen)
	}
}

func (b *Breaker) releaseProbeLocked() {
	if b.probesInFlight > 0 {
		b.probesInFlight--
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successCount = 0
	b.probesInFlight = 0
	if to == StateClosed {
		b.failureCount = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

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
