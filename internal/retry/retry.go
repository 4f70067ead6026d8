package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain/evm/rpc"
	"github.com/emperorhan/terra-sync/internal/circuitbreaker"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient, reason: "explicit_transient"}
}

func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal, reason: "explicit_terminal"}
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return Decision{Class: ClassTransient, Reason: "circuit_open"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return classifyJSONRPCCode(rpcErr.Code)
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

// Execution reverts (code 3) are terminal; the node's -32000 range covers
// "header not found" and similar lag errors that clear on their own.
func classifyJSONRPCCode(code int) Decision {
	if code == 3 {
		return Decision{Class: ClassTerminal, Reason: "jsonrpc_execution_reverted"}
	}
	if code == -32603 || code == -32005 {
		return Decision{Class: ClassTransient, Reason: "jsonrpc_server_transient"}
	}
	if code <= -32000 && code >= -32099 {
		return Decision{Class: ClassTransient, Reason: "jsonrpc_server_range"}
	}
	return Decision{Class: ClassTerminal, Reason: "jsonrpc_terminal"}
}

// Policy bounds Do. Zero fields fall back to the defaults below.
type Policy struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

const (
	defaultMaxAttempts    = 3
	defaultBackoffInitial = 200 * time.Millisecond
	defaultBackoffMax     = 3 * time.Second
)

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

// Delay returns the exponential backoff before attempt+1.
func (p Policy) Delay(attempt int) time.Duration {
	initial := p.BackoffInitial
	if initial <= 0 {
		initial = defaultBackoffInitial
	}
	maxDelay := p.BackoffMax
	if maxDelay <= 0 {
		maxDelay = defaultBackoffMax
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

// Do runs fn until it succeeds, returns a terminal error, or the attempts
// are exhausted. Only transient failures are retried.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.attempts()

	var lastErr error
	lastDecision := Decision{Class: ClassTerminal, Reason: "unset"}
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		lastDecision = Classify(err)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !lastDecision.IsTransient() {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("transient_recovery_exhausted attempts=%d reason=%s: %w", attempts, lastDecision.Reason, lastErr)
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"too many requests",
	"rate limit",
	"http status 429",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
	"header not found",
	"deadlock detected",
	"could not serialize access",
}

var terminalMessageTokens = []string{
	"invalid argument",
	"invalid params",
	"method not found",
	"parse error",
	"execution reverted",
	"insufficient funds",
	"constraint violation",
}
