package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/chain/evm/rpc"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/emperorhan/terra-sync/internal/retry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	defaultPollInterval  = 4 * time.Second
	defaultMaxBlockRange = 2000
)

// LogWatcher polls eth_getLogs for the terra events and delivers each
// non-empty poll as one batch. Unless a start block is set, watching starts
// past the first head a poll manages to read; the periodic refresh covers
// anything earlier.
type LogWatcher struct {
	client        rpc.RPCClient
	contract      string
	network       model.Network
	pollInterval  time.Duration
	maxBlockRange int64
	retryPolicy   retry.Policy
	logger        *slog.Logger

	next int64
}

type WatcherOption func(*LogWatcher)

func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *LogWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithMaxBlockRange(n int64) WatcherOption {
	return func(w *LogWatcher) {
		if n > 0 {
			w.maxBlockRange = n
		}
	}
}

// WithStartBlock begins scanning at block instead of the current head.
// Negative values keep the default.
func WithStartBlock(block int64) WatcherOption {
	return func(w *LogWatcher) {
		if block >= 0 {
			w.next = block
		}
	}
}

func NewLogWatcher(client rpc.RPCClient, contract string, network model.Network, logger *slog.Logger, opts ...WatcherOption) *LogWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &LogWatcher{
		client:        client,
		contract:      common.HexToAddress(contract).Hex(),
		network:       network,
		pollInterval:  defaultPollInterval,
		maxBlockRange: defaultMaxBlockRange,
		retryPolicy:   retry.Policy{MaxAttempts: 3},
		logger:        logger.With("component", "log_watcher", "network", network.String()),
		next:          -1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is done. Poll failures, including an unreachable node
// at startup, are logged and retried on the next tick without advancing the
// scan position.
func (w *LogWatcher) Run(ctx context.Context, out chan<- []chain.Event) error {
	w.logger.Info("log watcher started", "from_block", w.next, "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Poll(ctx, out); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Warn("log poll failed", "from_block", w.next, "error", err)
			}
		}
	}
}

// Poll scans one block range and forwards decoded events.
func (w *LogWatcher) Poll(ctx context.Context, out chan<- []chain.Event) error {
	var head int64
	if err := retry.Do(ctx, w.retryPolicy, func(ctx context.Context) error {
		var err error
		head, err = w.client.BlockNumber(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("head block: %w", err)
	}
	if w.next < 0 {
		w.next = head + 1
		w.logger.Info("log watcher anchored", "head", head)
		return nil
	}
	if head < w.next {
		return nil
	}

	to := head
	if to-w.next+1 > w.maxBlockRange {
		to = w.next + w.maxBlockRange - 1
	}

	filter := rpc.NewLogFilter(w.contract, w.next, to, EventTopics())
	var logs []*rpc.Log
	if err := retry.Do(ctx, w.retryPolicy, func(ctx context.Context) error {
		var err error
		logs, err = w.client.GetLogs(ctx, filter)
		return err
	}); err != nil {
		return fmt.Errorf("get logs: %w", err)
	}

	events := make([]chain.Event, 0, len(logs))
	for _, l := range logs {
		ev, ok, err := DecodeLog(l)
		if err != nil {
			w.logger.Warn("skipping undecodable log", "tx_hash", l.TransactionHash, "error", err)
			continue
		}
		if !ok {
			continue
		}
		events = append(events, ev)
		metrics.WatcherEventsTotal.WithLabelValues(w.network.String(), string(ev.Kind)).Inc()
	}

	if len(events) > 0 {
		select {
		case out <- events:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.next = to + 1
	metrics.WatcherHeadBlock.WithLabelValues(w.network.String()).Set(float64(to))
	return nil
}

// DecodeLog maps a contract log to an Event. ok is false for logs that are
// not terra events or were removed by a reorg.
func DecodeLog(l *rpc.Log) (chain.Event, bool, error) {
	if l == nil || l.Removed || len(l.Topics) == 0 {
		return chain.Event{}, false, nil
	}
	kind, known := eventByTopic[common.HexToHash(l.Topics[0])]
	if !known {
		return chain.Event{}, false, nil
	}

	var tokenID *big.Int
	if len(l.Topics) > 1 {
		tokenID = common.HexToHash(l.Topics[1]).Big()
	} else {
		data, err := hexutil.Decode(l.Data)
		if err != nil || len(data) < 32 {
			return chain.Event{}, false, fmt.Errorf("%s log without token id", kind)
		}
		tokenID = new(big.Int).SetBytes(data[:32])
	}
	if !tokenID.IsInt64() {
		return chain.Event{}, false, fmt.Errorf("%s token id %s out of range", kind, tokenID)
	}

	block, err := rpc.ParseHexInt64(l.BlockNumber)
	if err != nil {
		return chain.Event{}, false, fmt.Errorf("%s block number: %w", kind, err)
	}

	return chain.Event{
		Kind:        kind,
		TokenID:     model.TokenID(tokenID.Int64()),
		TxHash:      l.TransactionHash,
		BlockNumber: block,
	}, true, nil
}
