// Package health tracks whether the background loops are keeping up.
package health

import (
	"slices"
	"sync"
	"time"
)

type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"

	// DefaultUnhealthyThreshold is the number of consecutive failures
	// before a component is unhealthy.
	DefaultUnhealthyThreshold = 3

	// DefaultDegradedLatency is the p95 latency above which a healthy
	// component is reported as degraded.
	DefaultDegradedLatency = 10 * time.Second

	latencyWindowSize = 10
)

// Tracker follows one component. It is safe for concurrent use.
type Tracker struct {
	mu                  sync.RWMutex
	name                string
	status              Status
	consecutiveFailures int
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastError           string
	unhealthyThreshold  int
	degradedLatency     time.Duration
	recentLatencies     []time.Duration
	nowFn               func() time.Time
}

type Option func(*Tracker)

func WithUnhealthyThreshold(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.unhealthyThreshold = n
		}
	}
}

func WithDegradedLatency(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.degradedLatency = d
		}
	}
}

func WithNow(fn func() time.Time) Option {
	return func(t *Tracker) { t.nowFn = fn }
}

func NewTracker(name string, opts ...Option) *Tracker {
	t := &Tracker{
		name:               name,
		status:             StatusUnknown,
		unhealthyThreshold: DefaultUnhealthyThreshold,
		degradedLatency:    DefaultDegradedLatency,
		recentLatencies:    make([]time.Duration, 0, latencyWindowSize),
		nowFn:              time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Name() string { return t.name }

// RecordSuccess records a completed cycle and its latency. It returns true
// when the component recovers from unhealthy.
func (t *Tracker) RecordSuccess(latency time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFn()
	recovered := t.status == StatusUnhealthy
	t.consecutiveFailures = 0
	t.lastSuccessAt = &now
	t.lastError = ""

	if len(t.recentLatencies) >= latencyWindowSize {
		t.recentLatencies = t.recentLatencies[1:]
	}
	t.recentLatencies = append(t.recentLatencies, latency)

	if t.latencyDegraded() {
		t.status = StatusDegraded
	} else {
		t.status = StatusHealthy
	}
	return recovered
}

// RecordFailure returns true when this failure made the component unhealthy.
func (t *Tracker) RecordFailure(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFn()
	t.consecutiveFailures++
	t.lastFailureAt = &now
	if err != nil {
		t.lastError = err.Error()
	}
	if t.consecutiveFailures >= t.unhealthyThreshold && t.status != StatusUnhealthy {
		t.status = StatusUnhealthy
		return true
	}
	return false
}

// latencyDegraded must be called with mu held.
func (t *Tracker) latencyDegraded() bool {
	n := len(t.recentLatencies)
	if n < 2 {
		return false
	}
	sorted := slices.Clone(t.recentLatencies)
	slices.Sort(sorted)
	idx := (95*n - 1) / 100
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx] > t.degradedLatency
}

// Snapshot is a point-in-time, JSON-safe view of a Tracker.
type Snapshot struct {
	Name                string     `json:"name"`
	Status              Status     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Name:                t.name,
		Status:              t.status,
		ConsecutiveFailures: t.consecutiveFailures,
		LastSuccessAt:       t.lastSuccessAt,
		LastFailureAt:       t.lastFailureAt,
		LastError:           t.lastError,
	}
}
