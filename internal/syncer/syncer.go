// Package syncer keeps the secondary cache aligned with the chain. It owns
// the latest batch snapshot, reacts to contract events and performs the
// one-time bulk push of chain state per session.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/health"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/emperorhan/terra-sync/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRefreshInterval = 60 * time.Second
	defaultMaxParallel     = 16
)

// Mirror is the part of the secondary cache the synchronizer writes to.
type Mirror interface {
	RemovePendingMarker(ctx context.Context, id model.TokenID) error
	OverwriteChainState(ctx context.Context, state model.ChainState) error
	BulkOverwriteChainState(ctx context.Context, states []model.ChainState) error
}

// Snapshot is the result of one batch read. Terras holds only the ids whose
// read succeeded. A Snapshot is never mutated after it is published.
type Snapshot struct {
	Generation  uint64
	Count       uint64
	Terras      map[model.TokenID]*model.ChainTerra
	Failed      int
	RefreshedAt time.Time
}

type Syncer struct {
	reader          chain.TerraReader
	mirror          Mirror
	network         model.Network
	refreshInterval time.Duration
	maxParallel     int
	nowFn           func() time.Time
	health          *health.Tracker
	logger          *slog.Logger

	generation atomic.Uint64
	bulkSynced atomic.Bool
	count      atomic.Uint64

	mu       sync.RWMutex
	snapshot *Snapshot
}

type Option func(*Syncer)

// WithRefreshInterval sets the periodic batch refresh. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Syncer) { s.refreshInterval = d }
}

// WithMaxParallel bounds how many parcels are synced at the same time.
func WithMaxParallel(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithHealth reports every refresh outcome to t.
func WithHealth(t *health.Tracker) Option {
	return func(s *Syncer) { s.health = t }
}

func New(reader chain.TerraReader, mirror Mirror, network model.Network, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Syncer{
		reader:          reader,
		mirror:          mirror,
		network:         network,
		refreshInterval: defaultRefreshInterval,
		maxParallel:     defaultMaxParallel,
		nowFn:           time.Now,
		logger:          logger.With("component", "syncer", "network", network.String()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the latest applied batch read, or nil before the first one.
func (s *Syncer) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Count is the last known total supply.
func (s *Syncer) Count() uint64 {
	return s.count.Load()
}

// BulkSynced reports whether this session already pushed a full batch into
// the cache.
func (s *Syncer) BulkSynced() bool {
	return s.bulkSynced.Load()
}

// Run refreshes once, then consumes event deliveries from inbox and refreshes
// periodically until ctx is done or inbox is closed. Parcels named by a
// delivery are synced on a bounded set of workers so a slow read never holds
// back the next delivery. Batch refreshes requested while one is running are
// coalesced into a single follow-up.
func (s *Syncer) Run(ctx context.Context, inbox <-chan []chain.Event) error {
	s.logger.Info("syncer started", "refresh_interval", s.refreshInterval, "max_parallel", s.maxParallel)

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial refresh failed", "error", err)
	}

	var tick <-chan time.Time
	if s.refreshInterval > 0 {
		ticker := time.NewTicker(s.refreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	d := newDispatcher(s.maxParallel)
	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		for range d.refreshes {
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("background refresh failed", "error", err)
			}
		}
	}()
	drain := func() {
		d.workers.Wait()
		close(d.refreshes)
		<-refreshDone
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer stopping")
			drain()
			return ctx.Err()
		case events, ok := <-inbox:
			if !ok {
				s.logger.Info("syncer inbox closed")
				drain()
				return nil
			}
			s.dispatch(ctx, d, events)
		case <-tick:
			d.requestRefresh()
		}
	}
}

// ManualRefresh re-arms the bulk push and refreshes.
func (s *Syncer) ManualRefresh(ctx context.Context) error {
	s.bulkSynced.Store(false)
	return s.Refresh(ctx)
}

// Refresh reads the count and the full batch. A refresh that was overtaken
// by a newer one is dropped without touching the snapshot.
func (s *Syncer) Refresh(ctx context.Context) (err error) {
	gen := s.generation.Add(1)
	started := s.nowFn()
	network := s.network.String()

	ctx, span := tracing.Start(ctx, "syncer.Refresh", attribute.Int64("generation", int64(gen)))
	defer func() {
		tracing.End(span, err)
		s.recordHealth(err, s.nowFn().Sub(started))
	}()

	count, err := s.reader.TotalSupply(ctx)
	if err != nil {
		metrics.SyncRefreshTotal.WithLabelValues(network, "error").Inc()
		return fmt.Errorf("read total supply: %w", err)
	}
	s.count.Store(count)

	results, err := s.reader.ReadTerras(ctx, count)
	if err != nil {
		metrics.SyncRefreshTotal.WithLabelValues(network, "error").Inc()
		return fmt.Errorf("read %d terras: %w", count, err)
	}

	snap := &Snapshot{
		Generation:  gen,
		Count:       count,
		Terras:      make(map[model.TokenID]*model.ChainTerra, len(results)),
		RefreshedAt: s.nowFn(),
	}
	states := make([]model.ChainState, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.Terra == nil {
			snap.Failed++
			continue
		}
		snap.Terras[r.TokenID] = r.Terra
		states = append(states, r.Terra.State())
	}

	if !s.publish(snap) {
		metrics.SyncRefreshTotal.WithLabelValues(network, "superseded").Inc()
		s.logger.Debug("refresh superseded", "generation", gen)
		return nil
	}

	metrics.SyncRefreshTotal.WithLabelValues(network, "applied").Inc()
	metrics.SyncRefreshLatency.WithLabelValues(network).Observe(time.Since(started).Seconds())
	metrics.SyncSnapshotParcels.WithLabelValues(network).Set(float64(len(snap.Terras)))
	if snap.Failed > 0 {
		s.logger.Warn("refresh skipped unreadable parcels", "failed", snap.Failed, "count", count)
	}

	if len(states) > 0 && s.bulkSynced.CompareAndSwap(false, true) {
		if err := s.mirror.BulkOverwriteChainState(ctx, states); err != nil {
			s.bulkSynced.Store(false)
			return fmt.Errorf("bulk overwrite chain state: %w", err)
		}
		metrics.SyncBulkOverwrites.WithLabelValues(network).Inc()
		s.logger.Info("bulk chain state pushed", "parcels", len(states))
	}
	return nil
}

func (s *Syncer) recordHealth(err error, latency time.Duration) {
	if s.health == nil {
		return
	}
	if err != nil {
		if s.health.RecordFailure(err) {
			s.logger.Error("syncer became unhealthy", "error", err)
		}
		return
	}
	if s.health.RecordSuccess(latency) {
		s.logger.Info("syncer recovered")
	}
}

// publish stores snap unless a newer refresh has started.
func (s *Syncer) publish(snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Generation != s.generation.Load() {
		return false
	}
	if s.snapshot != nil && s.snapshot.Generation > snap.Generation {
		return false
	}
	s.snapshot = snap
	return true
}

// RefreshCount re-reads the total supply only.
func (s *Syncer) RefreshCount(ctx context.Context) error {
	count, err := s.reader.TotalSupply(ctx)
	if err != nil {
		return fmt.Errorf("read total supply: %w", err)
	}
	if prev := s.count.Swap(count); prev != count {
		s.logger.Info("parcel count changed", "previous", prev, "count", count)
	}
	return nil
}

// SyncParcel reads one parcel straight from the chain and overwrites its
// mirrored state.
func (s *Syncer) SyncParcel(ctx context.Context, id model.TokenID) (err error) {
	ctx, span := tracing.Start(ctx, "syncer.SyncParcel", attribute.Int64("token_id", int64(id)))
	defer func() { tracing.End(span, err) }()

	terra, err := s.reader.ReadTerra(ctx, id)
	if err != nil {
		metrics.SyncParcelErrors.WithLabelValues(s.network.String(), "read").Inc()
		return fmt.Errorf("read terra %d: %w", id, err)
	}
	if err := s.mirror.OverwriteChainState(ctx, terra.State()); err != nil {
		metrics.SyncParcelErrors.WithLabelValues(s.network.String(), "write").Inc()
		return fmt.Errorf("overwrite terra %d: %w", id, err)
	}
	return nil
}

// affected splits a delivery into the distinct parcels it touches and
// whether any new parcel was minted.
func (s *Syncer) affected(events []chain.Event) (ids []model.TokenID, created bool) {
	seen := make(map[model.TokenID]struct{}, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case chain.EventTerraCreated:
			created = true
		case chain.EventTerraBought, chain.EventListed, chain.EventDelisted:
			if _, dup := seen[ev.TokenID]; dup {
				continue
			}
			seen[ev.TokenID] = struct{}{}
			ids = append(ids, ev.TokenID)
		default:
			s.logger.Debug("ignoring event", "kind", ev.Kind, "token_id", ev.TokenID)
		}
	}
	return ids, created
}

// HandleEvents processes one delivery and waits for it. Every affected
// parcel is handled on its own goroutine: marker removal first, then the
// direct re-read. A batch re-fetch follows once all parcels are done.
func (s *Syncer) HandleEvents(ctx context.Context, events []chain.Event) {
	ids, created := s.affected(events)
	if created {
		s.refreshCountAfterMint(ctx)
	}
	if len(ids) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, id := range ids {
		g.Go(func() error {
			s.syncAfterEvent(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after events failed", "error", err)
	}
}

// dispatch hands a delivery to the worker set without waiting for it. A
// parcel that is already being synced is re-synced once its current pass
// finishes instead of running twice at the same time.
func (s *Syncer) dispatch(ctx context.Context, d *dispatcher, events []chain.Event) {
	ids, created := s.affected(events)
	if created {
		d.spawn(ctx, func() { s.refreshCountAfterMint(ctx) })
	}
	for _, id := range ids {
		if !d.claim(id) {
			continue
		}
		d.spawn(ctx, func() {
			for {
				s.syncAfterEvent(ctx, id)
				if !d.again(id) {
					break
				}
			}
			d.requestRefresh()
		})
	}
}

func (s *Syncer) refreshCountAfterMint(ctx context.Context) {
	if err := s.RefreshCount(ctx); err != nil {
		s.logger.Warn("count refresh after mint failed", "error", err)
	}
}

func (s *Syncer) syncAfterEvent(ctx context.Context, id model.TokenID) {
	if err := s.mirror.RemovePendingMarker(ctx, id); err != nil {
		s.logger.Warn("pending marker removal failed", "token_id", id, "error", err)
	}
	if err := s.SyncParcel(ctx, id); err != nil {
		s.logger.Warn("parcel sync after event failed", "token_id", id, "error", err)
	}
}
