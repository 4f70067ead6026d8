package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emperorhan/terra-sync/internal/circuitbreaker"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket rate limiter shared by every RPC call made
// against one network endpoint.
type Limiter struct {
	limiter *rate.Limiter
	network string
}

// NewLimiter creates a rate limiter that allows rps requests per second
// with a burst capacity of burst tokens. A batch counts as one request.
func NewLimiter(rps float64, burst int, network string) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		network: network,
	}
}

// Wait blocks until the limiter allows one event, or ctx is done.
// Uses Reserve() to guarantee exactly one token is consumed per call.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.RPCRateLimitWaits.WithLabelValues(l.network).Inc()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

// RecordRPCCall records an RPC call metric with status classification.
func RecordRPCCall(network, method string, err error) {
	status := ClassifyRPCError(err)
	metrics.RPCCallsTotal.WithLabelValues(network, method, status).Inc()
}

// ClassifyRPCError classifies an RPC error into a metric status label.
func ClassifyRPCError(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "execution reverted"):
		return "reverted"
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "500") || strings.Contains(lower, "502") || strings.Contains(lower, "503") || strings.Contains(lower, "internal server error"):
		return "server_error"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "network is unreachable") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "broken pipe") || strings.Contains(lower, "eof"):
		return "network_error"
	default:
		return "client_error"
	}
}
