// Package mirror is the secondary cache facade: parcel metadata, mirrored
// chain state and pending-transaction markers, with a change notification
// after every successful write.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/emperorhan/terra-sync/internal/store"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrInvalidTxHash = errors.New("invalid transaction hash")

const (
	opUpsertMetadata    = "upsert_metadata"
	opChainState        = "chain_state"
	opBulkChainState    = "bulk_chain_state"
	opAddMarker         = "add_marker"
	opRemoveMarker      = "remove_marker"
	opRemoveMarkerHash  = "remove_marker_by_hash"
	opPurgeStaleMarkers = "purge_stale_markers"
)

type Mirror struct {
	terras     store.TerraRepository
	pending    store.PendingTxRepository
	notifier   store.Notifier
	defaults   model.MetadataDefaults
	staleAfter time.Duration
	nowFn      func() time.Time
	logger     *slog.Logger
}

type Option func(*Mirror)

func WithNotifier(n store.Notifier) Option {
	return func(m *Mirror) { m.notifier = n }
}

func WithStaleAfter(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.staleAfter = d
		}
	}
}

func WithDefaults(d model.MetadataDefaults) Option {
	return func(m *Mirror) { m.defaults = d }
}

func WithNow(fn func() time.Time) Option {
	return func(m *Mirror) { m.nowFn = fn }
}

func New(terras store.TerraRepository, pending store.PendingTxRepository, logger *slog.Logger, opts ...Option) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mirror{
		terras:     terras,
		pending:    pending,
		defaults:   model.BuiltinMetadataDefaults(),
		staleAfter: model.DefaultPendingStaleAfter,
		nowFn:      time.Now,
		logger:     logger.With("component", "mirror"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Defaults returns the placeholder rotation used for rows without metadata.
func (m *Mirror) Defaults() model.MetadataDefaults {
	return m.defaults
}

func (m *Mirror) StaleAfter() time.Duration {
	return m.staleAfter
}

func (m *Mirror) ListParcelMetadata(ctx context.Context) (map[model.TokenID]model.TerraRecord, error) {
	rows, err := m.terras.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parcel metadata: %w", err)
	}
	out := make(map[model.TokenID]model.TerraRecord, len(rows))
	for _, row := range rows {
		out[row.TokenID] = row
	}
	return out, nil
}

// ListPendingTxs returns markers younger than the stale window.
func (m *Mirror) ListPendingTxs(ctx context.Context) ([]model.PendingTx, error) {
	txs, err := m.pending.ListSince(ctx, m.nowFn().Add(-m.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("list pending txs: %w", err)
	}
	return txs, nil
}

// ListPendingMarkers maps each parcel with a live marker to its action. If
// a race left two markers for one id, the newest wins.
func (m *Mirror) ListPendingMarkers(ctx context.Context) (map[model.TokenID]model.Action, error) {
	txs, err := m.ListPendingTxs(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[model.TokenID]model.Action, len(txs))
	newest := make(map[model.TokenID]time.Time, len(txs))
	for _, tx := range txs {
		if seen, ok := newest[tx.TokenID]; ok && seen.After(tx.CreatedAt) {
			continue
		}
		newest[tx.TokenID] = tx.CreatedAt
		out[tx.TokenID] = tx.Action
	}
	return out, nil
}

func (m *Mirror) UpsertMetadata(ctx context.Context, id model.TokenID, terrain string, crops []string) error {
	err := m.terras.UpsertMetadata(ctx, id, strings.TrimSpace(terrain), crops)
	m.recordWrite(opUpsertMetadata, err)
	if err != nil {
		return fmt.Errorf("upsert metadata %d: %w", id, err)
	}
	m.publish(ctx, store.TableTerras, id, opUpsertMetadata)
	return nil
}

func (m *Mirror) OverwriteChainState(ctx context.Context, state model.ChainState) error {
	err := m.terras.UpsertChainState(ctx, state, m.placeholder(state.TokenID))
	m.recordWrite(opChainState, err)
	if err != nil {
		return fmt.Errorf("overwrite chain state %d: %w", state.TokenID, err)
	}
	m.publish(ctx, store.TableTerras, state.TokenID, opChainState)
	return nil
}

func (m *Mirror) BulkOverwriteChainState(ctx context.Context, states []model.ChainState) error {
	if len(states) == 0 {
		return nil
	}
	err := m.terras.BulkUpsertChainState(ctx, states, m.placeholder)
	m.recordWrite(opBulkChainState, err)
	if err != nil {
		return fmt.Errorf("bulk overwrite chain state (%d parcels): %w", len(states), err)
	}
	for _, s := range states {
		m.publish(ctx, store.TableTerras, s.TokenID, opBulkChainState)
	}
	return nil
}

// AddPendingMarker replaces any marker for id with a new one.
func (m *Mirror) AddPendingMarker(ctx context.Context, id model.TokenID, txHash string, action model.Action, submitter string) (model.PendingTx, error) {
	hash, err := NormalizeTxHash(txHash)
	if err != nil {
		return model.PendingTx{}, err
	}
	if !action.Valid() {
		return model.PendingTx{}, fmt.Errorf("unknown action %q", action)
	}

	tx := model.PendingTx{
		TokenID:   id,
		TxHash:    hash,
		Action:    action,
		Submitter: model.NormalizeAddress(submitter),
		CreatedAt: m.nowFn().UTC(),
	}
	err = m.pending.ReplaceForTerra(ctx, tx)
	m.recordWrite(opAddMarker, err)
	if err != nil {
		return model.PendingTx{}, fmt.Errorf("add pending marker %d: %w", id, err)
	}
	m.publish(ctx, store.TablePendingTxs, id, opAddMarker)
	return tx, nil
}

// RemovePendingMarker is a no-op when id has no marker.
func (m *Mirror) RemovePendingMarker(ctx context.Context, id model.TokenID) error {
	n, err := m.pending.DeleteByTerra(ctx, id)
	m.recordWrite(opRemoveMarker, err)
	if err != nil {
		return fmt.Errorf("remove pending marker %d: %w", id, err)
	}
	if n > 0 {
		m.publish(ctx, store.TablePendingTxs, id, opRemoveMarker)
	}
	return nil
}

// RemovePendingMarkerByHash is a no-op when no marker carries txHash.
func (m *Mirror) RemovePendingMarkerByHash(ctx context.Context, txHash string) error {
	hash := strings.ToLower(strings.TrimSpace(txHash))
	n, err := m.pending.DeleteByTxHash(ctx, hash)
	m.recordWrite(opRemoveMarkerHash, err)
	if err != nil {
		return fmt.Errorf("remove pending marker %s: %w", hash, err)
	}
	if n > 0 {
		// token id is unknown here
		m.publish(ctx, store.TablePendingTxs, -1, opRemoveMarkerHash)
	}
	return nil
}

// PurgeStaleMarkers deletes markers that already fell out of the live window.
func (m *Mirror) PurgeStaleMarkers(ctx context.Context) (int64, error) {
	n, err := m.pending.DeleteBefore(ctx, m.nowFn().Add(-m.staleAfter))
	m.recordWrite(opPurgeStaleMarkers, err)
	if err != nil {
		return 0, fmt.Errorf("purge stale markers: %w", err)
	}
	if n > 0 {
		metrics.MirrorStaleMarkersPurged.Add(float64(n))
		m.logger.Info("purged stale pending markers", "count", n)
	}
	return n, nil
}

// RunJanitor purges stale markers every interval until ctx is done.
func (m *Mirror) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.PurgeStaleMarkers(ctx); err != nil {
				m.logger.Warn("janitor pass failed", "error", err)
			}
		}
	}
}

func (m *Mirror) placeholder(id model.TokenID) store.Placeholder {
	return store.Placeholder{
		Terrain: m.defaults.Terrain(id),
		Crops:   m.defaults.Crops(id),
	}
}

func (m *Mirror) publish(ctx context.Context, table string, id model.TokenID, op string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, store.Change{Table: table, TokenID: id, Op: op}); err != nil {
		m.logger.Warn("change notification failed", "table", table, "token_id", id, "op", op, "error", err)
	}
}

func (m *Mirror) recordWrite(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MirrorWritesTotal.WithLabelValues(op, status).Inc()
}

// NormalizeTxHash checks for a 0x-prefixed 32-byte hex hash and lower-cases it.
func NormalizeTxHash(txHash string) (string, error) {
	hash := strings.ToLower(strings.TrimSpace(txHash))
	raw, err := hexutil.Decode(hash)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTxHash, txHash)
	}
	return hash, nil
}
