package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/store"
	"github.com/lib/pq"
)

type TerraRepo struct {
	db *DB
}

var _ store.TerraRepository = (*TerraRepo)(nil)

func NewTerraRepo(db *DB) *TerraRepo {
	return &TerraRepo{db: db}
}

const selectTerraColumns = `token_id, terrain, crops, owner, listed, price_wei, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerra(row rowScanner) (model.TerraRecord, error) {
	var (
		rec    model.TerraRecord
		crops  pq.StringArray
		owner  sql.NullString
		listed sql.NullBool
		price  sql.NullString
	)
	if err := row.Scan(&rec.TokenID, &rec.Terrain, &crops, &owner, &listed, &price, &rec.UpdatedAt); err != nil {
		return model.TerraRecord{}, err
	}
	rec.Crops = []string(crops)
	if rec.Crops == nil {
		rec.Crops = []string{}
	}
	if owner.Valid {
		rec.Owner = &owner.String
	}
	if listed.Valid {
		rec.Listed = &listed.Bool
	}
	if price.Valid {
		rec.PriceWei = &price.String
	}
	return rec, nil
}

func (r *TerraRepo) List(ctx context.Context) ([]model.TerraRecord, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+selectTerraColumns+` FROM terras ORDER BY token_id`)
	if err != nil {
		return nil, fmt.Errorf("list terras: %w", err)
	}
	defer rows.Close()

	var out []model.TerraRecord
	for rows.Next() {
		rec, err := scanTerra(rows)
		if err != nil {
			return nil, fmt.Errorf("scan terra: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terras: %w", err)
	}
	return out, nil
}

func (r *TerraRepo) Get(ctx context.Context, id model.TokenID) (*model.TerraRecord, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rec, err := scanTerra(r.db.QueryRowContext(ctx,
		`SELECT `+selectTerraColumns+` FROM terras WHERE token_id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get terra %d: %w", id, err)
	}
	return &rec, nil
}

func (r *TerraRepo) UpsertMetadata(ctx context.Context, id model.TokenID, terrain string, crops []string) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO terras (token_id, terrain, crops, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (token_id) DO UPDATE SET
			terrain = EXCLUDED.terrain,
			crops = EXCLUDED.crops,
			updated_at = now()
	`, id, terrain, pq.Array(nonNil(crops)))
	if err != nil {
		return fmt.Errorf("upsert terra metadata %d: %w", id, err)
	}
	return nil
}

const upsertChainStateSQL = `
	INSERT INTO terras (token_id, terrain, crops, owner, listed, price_wei, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (token_id) DO UPDATE SET
		owner = EXCLUDED.owner,
		listed = EXCLUDED.listed,
		price_wei = EXCLUDED.price_wei,
		updated_at = now()
`

func (r *TerraRepo) UpsertChainState(ctx context.Context, state model.ChainState, placeholder store.Placeholder) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, upsertChainStateSQL, chainStateArgs(state, placeholder)...); err != nil {
		return fmt.Errorf("upsert terra chain state %d: %w", state.TokenID, err)
	}
	return nil
}

func (r *TerraRepo) BulkUpsertChainState(ctx context.Context, states []model.ChainState, placeholder func(model.TokenID) store.Placeholder) error {
	if len(states) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk chain state: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertChainStateSQL)
	if err != nil {
		return fmt.Errorf("prepare bulk chain state: %w", err)
	}
	defer stmt.Close()

	for _, state := range states {
		if _, err := stmt.ExecContext(ctx, chainStateArgs(state, placeholder(state.TokenID))...); err != nil {
			return fmt.Errorf("upsert terra chain state %d: %w", state.TokenID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk chain state: %w", err)
	}
	return nil
}

func chainStateArgs(state model.ChainState, placeholder store.Placeholder) []any {
	return []any{
		state.TokenID,
		placeholder.Terrain,
		pq.Array(nonNil(placeholder.Crops)),
		model.NormalizeAddress(state.Owner),
		state.Listed,
		state.PriceString(),
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
