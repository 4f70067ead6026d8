// Package confirm follows submitted transactions until they are mined and
// then re-syncs the affected parcel.
package confirm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/emperorhan/terra-sync/internal/cache"
	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/emperorhan/terra-sync/internal/retry"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultTimeout        = 10 * time.Minute
	defaultDedupCapacity  = 4096
	processedHashLifetime = time.Hour
	markerRemovalTimeout  = 10 * time.Second
)

const (
	outcomeSuccess   = "success"
	outcomeReverted  = "reverted"
	outcomeTimeout   = "timeout"
	outcomeError     = "error"
	outcomeDuplicate = "duplicate"
)

// ParcelSyncer re-reads one parcel from the chain into the cache.
type ParcelSyncer interface {
	SyncParcel(ctx context.Context, id model.TokenID) error
}

// MarkerRemover clears the pending marker of a parcel.
type MarkerRemover interface {
	RemovePendingMarker(ctx context.Context, id model.TokenID) error
}

type Watcher struct {
	receipts     chain.ReceiptReader
	syncer       ParcelSyncer
	markers      MarkerRemover
	network      model.Network
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger

	processed *cache.LRU[string, struct{}]
	watching  sync.Map // tx hash -> struct{}

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Watcher)

func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func WithDedupCapacity(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.processed = cache.NewLRU[string, struct{}](n, processedHashLifetime)
		}
	}
}

func New(receipts chain.ReceiptReader, syncer ParcelSyncer, markers MarkerRemover, network model.Network, logger *slog.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		receipts:     receipts,
		syncer:       syncer,
		markers:      markers,
		network:      network,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
		logger:       logger.With("component", "confirm_watcher", "network", network.String()),
		processed:    cache.NewLRU[string, struct{}](defaultDedupCapacity, processedHashLifetime),
		root:         root,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts following txHash in the background and returns at once. A
// hash that is already being watched or was already processed is ignored.
// The background work is bound to the watcher, not to ctx.
func (w *Watcher) Watch(_ context.Context, txHash string, id model.TokenID) {
	hash := strings.ToLower(strings.TrimSpace(txHash))
	if _, done := w.processed.Get(hash); done {
		metrics.ConfirmOutcomes.WithLabelValues(w.network.String(), outcomeDuplicate).Inc()
		return
	}
	if _, busy := w.watching.LoadOrStore(hash, struct{}{}); busy {
		return
	}
	if w.root.Err() != nil {
		w.watching.Delete(hash)
		return
	}

	w.wg.Add(1)
	metrics.ConfirmInFlight.WithLabelValues(w.network.String()).Inc()
	go func() {
		defer w.wg.Done()
		defer metrics.ConfirmInFlight.WithLabelValues(w.network.String()).Dec()
		defer w.watching.Delete(hash)
		w.follow(hash, id)
	}()
}

// Stop abandons every watch and waits for the goroutines to exit. Markers of
// abandoned watches are left to the staleness window.
func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Watcher) follow(hash string, id model.TokenID) {
	log := w.logger.With("tx_hash", hash, "token_id", id)
	started := time.Now()

	ctx, cancel := context.WithTimeout(w.root, w.timeout)
	defer cancel()

	receipt, err := w.awaitReceipt(ctx, hash)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			metrics.ConfirmOutcomes.WithLabelValues(w.network.String(), outcomeTimeout).Inc()
			log.Warn("confirmation timed out; marker left to expire", "timeout", w.timeout)
		case errors.Is(err, context.Canceled):
			log.Debug("confirmation watch abandoned")
		default:
			metrics.ConfirmOutcomes.WithLabelValues(w.network.String(), outcomeError).Inc()
			log.Warn("confirmation watch failed", "error", err)
		}
		return
	}

	if !w.processed.PutIfAbsent(hash, struct{}{}) {
		metrics.ConfirmOutcomes.WithLabelValues(w.network.String(), outcomeDuplicate).Inc()
		return
	}

	outcome := outcomeSuccess
	if !receipt.Succeeded {
		outcome = outcomeReverted
	}
	metrics.ConfirmOutcomes.WithLabelValues(w.network.String(), outcome).Inc()
	metrics.ConfirmLatency.WithLabelValues(w.network.String()).Observe(time.Since(started).Seconds())
	log.Info("transaction mined", "block", receipt.BlockNumber, "succeeded", receipt.Succeeded)

	w.resync(ctx, log, id)
}

// resync re-reads the parcel; the marker is removed whatever the outcome.
func (w *Watcher) resync(ctx context.Context, log *slog.Logger, id model.TokenID) {
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markerRemovalTimeout)
		defer cancel()
		if err := w.markers.RemovePendingMarker(rmCtx, id); err != nil {
			log.Warn("pending marker removal failed", "error", err)
		}
	}()

	if err := w.syncer.SyncParcel(ctx, id); err != nil {
		log.Warn("parcel re-read after confirmation failed", "error", err)
	}
}

func (w *Watcher) awaitReceipt(ctx context.Context, hash string) (*chain.Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.receipts.Receipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && !retry.Classify(err).IsTransient():
			return nil, err
		case err != nil:
			w.logger.Debug("receipt poll failed; retrying", "tx_hash", hash, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
