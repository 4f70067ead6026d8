package store

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/emperorhan/terra-sync/internal/domain/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// TerraRepository stores the descriptive and mirrored fields of parcels.
type TerraRepository interface {
	List(ctx context.Context) ([]model.TerraRecord, error)
	Get(ctx context.Context, id model.TokenID) (*model.TerraRecord, error)

	// UpsertMetadata writes terrain and crops only. Mirrored chain fields of
	// an existing row are left untouched.
	UpsertMetadata(ctx context.Context, id model.TokenID, terrain string, crops []string) error

	// UpsertChainState writes owner, listed and price only. A missing row is
	// created with the given placeholder descriptive fields.
	UpsertChainState(ctx context.Context, state model.ChainState, placeholder Placeholder) error

	// BulkUpsertChainState applies UpsertChainState for every state in one
	// transaction. placeholder is consulted per token id.
	BulkUpsertChainState(ctx context.Context, states []model.ChainState, placeholder func(model.TokenID) Placeholder) error
}

// Placeholder is the descriptive content used when a row is first created
// by a chain sync.
type Placeholder struct {
	Terrain string
	Crops   []string
}

// PendingTxRepository stores optimistic pending-transaction markers.
type PendingTxRepository interface {
	// ListSince returns markers created strictly after cutoff.
	ListSince(ctx context.Context, cutoff time.Time) ([]model.PendingTx, error)

	// ReplaceForTerra deletes every marker of tx.TokenID then inserts tx.
	ReplaceForTerra(ctx context.Context, tx model.PendingTx) error

	DeleteByTerra(ctx context.Context, id model.TokenID) (int64, error)
	DeleteByTxHash(ctx context.Context, txHash string) (int64, error)

	// DeleteBefore removes markers created at or before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Change identifies a row whose content changed.
type Change struct {
	Table   string        `json:"table"`
	TokenID model.TokenID `json:"token_id"`
	Op      string        `json:"op"`
}

const (
	TableTerras     = "terras"
	TablePendingTxs = "pending_txs"
)

// Notifier fans out change notifications to subscribers. Publish must not
// block on slow subscribers.
type Notifier interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe delivers changes until ctx is done; the channel is closed then.
	Subscribe(ctx context.Context) (<-chan Change, error)
}
