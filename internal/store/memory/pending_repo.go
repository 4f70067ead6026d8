package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/store"
	"github.com/google/uuid"
)

type PendingTxRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.PendingTx
}

var _ store.PendingTxRepository = (*PendingTxRepo)(nil)

func NewPendingTxRepo() *PendingTxRepo {
	return &PendingTxRepo{rows: make(map[uuid.UUID]model.PendingTx)}
}

func (r *PendingTxRepo) ListSince(_ context.Context, cutoff time.Time) ([]model.PendingTx, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.PendingTx, 0, len(r.rows))
	for _, tx := range r.rows {
		if tx.CreatedAt.After(cutoff) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TokenID < out[j].TokenID
	})
	return out, nil
}

func (r *PendingTxRepo) ReplaceForTerra(_ context.Context, tx model.PendingTx) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(func(row model.PendingTx) bool { return row.TokenID == tx.TokenID })
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	r.rows[tx.ID] = tx
	return nil
}

func (r *PendingTxRepo) DeleteByTerra(_ context.Context, id model.TokenID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(func(row model.PendingTx) bool { return row.TokenID == id }), nil
}

func (r *PendingTxRepo) DeleteByTxHash(_ context.Context, txHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(func(row model.PendingTx) bool { return row.TxHash == txHash }), nil
}

func (r *PendingTxRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(func(row model.PendingTx) bool { return !row.CreatedAt.After(cutoff) }), nil
}

func (r *PendingTxRepo) deleteLocked(match func(model.PendingTx) bool) int64 {
	var n int64
	for id, row := range r.rows {
		if match(row) {
			delete(r.rows, id)
			n++
		}
	}
	return n
}
