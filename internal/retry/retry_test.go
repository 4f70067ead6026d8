package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain/evm/rpc"
	"github.com/emperorhan/terra-sync/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_ExplicitMarkers(t *testing.T) {
	transient := Classify(Transient(errors.New("rpc timed out")))
	assert.Equal(t, ClassTransient, transient.Class)
	assert.Equal(t, "explicit_transient", transient.Reason)

	terminal := Classify(Terminal(errors.New("invalid params")))
	assert.Equal(t, ClassTerminal, terminal.Class)
	assert.Equal(t, "explicit_terminal", terminal.Reason)
}

func TestClassify_RepresentativeRuntimeErrors(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		expectedClass Class
	}{
		{"context deadline transient", context.DeadlineExceeded, ClassTransient},
		{"context canceled terminal", context.Canceled, ClassTerminal},
		{"circuit open transient", fmt.Errorf("eth_call: %w", circuitbreaker.ErrCircuitOpen), ClassTransient},
		{"rpc server range transient", fmt.Errorf("eth_getTransactionReceipt(0x1): %w", &rpc.RPCError{Code: -32000, Message: "header not found"}), ClassTransient},
		{"rpc revert terminal", &rpc.RPCError{Code: 3, Message: "execution reverted"}, ClassTerminal},
		{"rpc invalid params terminal", &rpc.RPCError{Code: -32602, Message: "invalid params"}, ClassTerminal},
		{"http 503 transient", errors.New("http status 503: service unavailable"), ClassTransient},
		{"serialization transient", errors.New("pq: could not serialize access due to concurrent update"), ClassTransient},
		{"unknown defaults terminal", errors.New("unexpected failure"), ClassTerminal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Classify(tc.err)
			assert.Equal(t, tc.expectedClass, decision.Class, decision.Reason)
		})
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BackoffInitial: 100 * time.Millisecond, BackoffMax: 350 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 350*time.Millisecond, p.Delay(3))
	assert.Equal(t, 350*time.Millisecond, p.Delay(10))
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BackoffInitial: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnTerminal(t *testing.T) {
	calls := 0
	terminal := errors.New("invalid argument")
	err := Do(context.Background(), Policy{MaxAttempts: 5, BackoffInitial: time.Millisecond}, func(context.Context) error {
		calls++
		return terminal
	})

	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2, BackoffInitial: time.Millisecond}, func(context.Context) error {
		calls++
		return errors.New("request timeout")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "transient_recovery_exhausted attempts=2")
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := Do(ctx, Policy{MaxAttempts: 3, BackoffInitial: time.Hour}, func(context.Context) error {
		cancel()
		return errors.New("temporarily unavailable")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
