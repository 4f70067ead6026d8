package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/store"
	"github.com/google/uuid"
)

type PendingTxRepo struct {
	db *DB
}

var _ store.PendingTxRepository = (*PendingTxRepo)(nil)

func NewPendingTxRepo(db *DB) *PendingTxRepo {
	return &PendingTxRepo{db: db}
}

func (r *PendingTxRepo) ListSince(ctx context.Context, cutoff time.Time) ([]model.PendingTx, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, token_id, tx_hash, action, submitter, created_at
		FROM pending_txs
		WHERE created_at > $1
		ORDER BY created_at, token_id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending txs: %w", err)
	}
	defer rows.Close()

	var out []model.PendingTx
	for rows.Next() {
		var (
			tx     model.PendingTx
			action string
		)
		if err := rows.Scan(&tx.ID, &tx.TokenID, &tx.TxHash, &action, &tx.Submitter, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending tx: %w", err)
		}
		tx.Action = model.Action(action)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending txs: %w", err)
	}
	return out, nil
}

// ReplaceForTerra runs the delete and insert in one transaction.
func (r *PendingTxRepo) ReplaceForTerra(ctx context.Context, p model.PendingTx) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace pending tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_txs WHERE token_id = $1`, p.TokenID); err != nil {
		return fmt.Errorf("delete pending txs for %d: %w", p.TokenID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pending_txs (id, token_id, tx_hash, action, submitter, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.TokenID, p.TxHash, string(p.Action), p.Submitter, p.CreatedAt); err != nil {
		return fmt.Errorf("insert pending tx for %d: %w", p.TokenID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace pending tx: %w", err)
	}
	return nil
}

func (r *PendingTxRepo) DeleteByTerra(ctx context.Context, id model.TokenID) (int64, error) {
	return r.exec(ctx, "delete pending txs by terra", `DELETE FROM pending_txs WHERE token_id = $1`, id)
}

func (r *PendingTxRepo) DeleteByTxHash(ctx context.Context, txHash string) (int64, error) {
	return r.exec(ctx, "delete pending txs by hash", `DELETE FROM pending_txs WHERE tx_hash = $1`, txHash)
}

func (r *PendingTxRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, "purge pending txs", `DELETE FROM pending_txs WHERE created_at <= $1`, cutoff)
}

func (r *PendingTxRepo) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n, nil
}
