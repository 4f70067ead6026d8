package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/store"
)

// TerraRepo is an in-process TerraRepository for single-node deployments
// and tests.
type TerraRepo struct {
	mu    sync.RWMutex
	rows  map[model.TokenID]model.TerraRecord
	nowFn func() time.Time
}

var _ store.TerraRepository = (*TerraRepo)(nil)

func NewTerraRepo() *TerraRepo {
	return &TerraRepo{
		rows:  make(map[model.TokenID]model.TerraRecord),
		nowFn: time.Now,
	}
}

func (r *TerraRepo) List(_ context.Context) ([]model.TerraRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.TerraRecord, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, cloneRecord(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

func (r *TerraRepo) Get(_ context.Context, id model.TokenID) (*model.TerraRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := cloneRecord(row)
	return &rec, nil
}

func (r *TerraRepo) UpsertMetadata(_ context.Context, id model.TokenID, terrain string, crops []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.rows[id]
	row.TokenID = id
	row.Terrain = terrain
	row.Crops = cloneStrings(crops)
	row.UpdatedAt = r.nowFn()
	r.rows[id] = row
	return nil
}

func (r *TerraRepo) UpsertChainState(_ context.Context, state model.ChainState, placeholder store.Placeholder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyChainStateLocked(state, placeholder)
	return nil
}

func (r *TerraRepo) BulkUpsertChainState(_ context.Context, states []model.ChainState, placeholder func(model.TokenID) store.Placeholder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, state := range states {
		r.applyChainStateLocked(state, placeholder(state.TokenID))
	}
	return nil
}

func (r *TerraRepo) applyChainStateLocked(state model.ChainState, placeholder store.Placeholder) {
	row, exists := r.rows[state.TokenID]
	if !exists {
		row = model.TerraRecord{
			TokenID: state.TokenID,
			Terrain: placeholder.Terrain,
			Crops:   cloneStrings(placeholder.Crops),
		}
	}
	owner := model.NormalizeAddress(state.Owner)
	listed := state.Listed
	price := state.PriceString()
	row.Owner = &owner
	row.Listed = &listed
	row.PriceWei = &price
	row.UpdatedAt = r.nowFn()
	r.rows[state.TokenID] = row
}

func cloneRecord(rec model.TerraRecord) model.TerraRecord {
	out := rec
	out.Crops = cloneStrings(rec.Crops)
	if rec.Owner != nil {
		v := *rec.Owner
		out.Owner = &v
	}
	if rec.Listed != nil {
		v := *rec.Listed
		out.Listed = &v
	}
	if rec.PriceWei != nil {
		v := *rec.PriceWei
		out.PriceWei = &v
	}
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
