// Package market merges the chain snapshot, the secondary cache and the live
// pending markers into the tiles shown on the map.
package market

import (
	"math/big"
	"sort"
	"strconv"

	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/geo"
	"github.com/emperorhan/terra-sync/internal/status"
	"github.com/shopspring/decimal"
)

const (
	tilesPerRow = 6
	weiDecimals = 18
)

type Tile struct {
	TokenID   model.TokenID `json:"token_id"`
	Name      string        `json:"name"`
	Corners   [4]geo.LatLng `json:"corners"`
	Center    geo.LatLng    `json:"center"`
	AreaM2    float64       `json:"area_m2"`
	WidthCm   uint32        `json:"width_cm"`
	HeightCm  uint32        `json:"height_cm"`
	Status    status.Status `json:"status"`
	Terrain   string        `json:"terrain"`
	Crops     []string      `json:"crops"`
	Owner     string        `json:"owner"`
	Listed    bool          `json:"listed"`
	PriceWei  string        `json:"price_wei"`
	PriceEth  string        `json:"price_eth"`
	Pending   model.Action  `json:"pending_action,omitempty"`
	FromCache bool          `json:"from_cache"`
}

// Input is everything one Build call merges.
type Input struct {
	Terras    map[model.TokenID]*model.ChainTerra
	Records   map[model.TokenID]model.TerraRecord
	Markers   map[model.TokenID]model.Action
	Connected string
	Defaults  model.MetadataDefaults
}

// Build returns one tile per successfully read parcel, ordered by token id.
// Parcels missing from the chain snapshot are skipped.
func Build(in Input) []Tile {
	ids := make([]model.TokenID, 0, len(in.Terras))
	for id, t := range in.Terras {
		if t != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tiles := make([]Tile, 0, len(ids))
	for _, id := range ids {
		var cached *model.TerraRecord
		if rec, ok := in.Records[id]; ok {
			cached = &rec
		}
		tiles = append(tiles, BuildTile(in.Terras[id], cached, in.Markers[id], in.Connected, in.Defaults))
	}
	return tiles
}

// BuildTile merges one parcel. cached may be nil and pending may be empty.
func BuildTile(terra *model.ChainTerra, cached *model.TerraRecord, pending model.Action, connected string, defaults model.MetadataDefaults) Tile {
	id := terra.TokenID
	fp := geo.DisplayFootprint(terra.Lat, terra.Lng, terra.WidthCm, terra.HeightCm)
	state := status.Effective(terra.State(), cached)

	// A cached row owns its metadata even when the crop list was cleared.
	terrain := defaults.Terrain(id)
	crops := defaults.Crops(id)
	if cached != nil {
		terrain = cached.Terrain
		crops = append(make([]string, 0, len(cached.Crops)), cached.Crops...)
	}

	owner := model.NormalizeAddress(state.Owner)
	return Tile{
		TokenID:  id,
		Name:     Name(id),
		Corners:  fp.Corners,
		Center:   fp.Center,
		AreaM2:   fp.AreaM2,
		WidthCm:  terra.WidthCm,
		HeightCm: terra.HeightCm,
		Status: status.Resolve(status.Input{
			Listed:    state.Listed,
			Owner:     owner,
			Connected: model.NormalizeAddress(connected),
			Pending:   pending,
		}),
		Terrain:   terrain,
		Crops:     crops,
		Owner:     owner,
		Listed:    state.Listed,
		PriceWei:  state.PriceString(),
		PriceEth:  FormatEther(state.PriceWei),
		Pending:   pending,
		FromCache: cached != nil && cached.Owner != nil,
	}
}

// Name labels parcels on a grid of six per row: 0 is "Parcel A1", 6 is "Parcel B1".
func Name(id model.TokenID) string {
	row := int(id) / tilesPerRow
	col := int(id)%tilesPerRow + 1
	return "Parcel " + rowLabel(row) + strconv.Itoa(col)
}

// rowLabel continues past Z with AA, AB and so on.
func rowLabel(row int) string {
	label := ""
	for {
		label = string(rune('A'+row%26)) + label
		row = row/26 - 1
		if row < 0 {
			return label
		}
	}
}

// FormatEther renders a wei amount in ether without losing precision.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -weiDecimals).String()
}

// ParseEther converts a decimal ether string to wei. Amounts finer than one
// wei are rejected.
func ParseEther(s string) (*big.Int, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, false
	}
	wei := d.Shift(weiDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, false
	}
	return wei.BigInt(), true
}

type Stats struct {
	Total       int     `json:"total"`
	Available   int     `json:"available"`
	Owned       int     `json:"owned"`
	Reserved    int     `json:"reserved"`
	Pending     int     `json:"pending"`
	TotalAreaM2 float64 `json:"total_area_m2"`
}

// Summarize counts tiles by status. Pending tiles count only toward Pending.
func Summarize(tiles []Tile) Stats {
	var s Stats
	area := decimal.Zero
	for _, t := range tiles {
		s.Total++
		area = area.Add(decimal.NewFromFloat(t.AreaM2))
		switch {
		case t.Status == status.Available:
			s.Available++
		case t.Status == status.Owned:
			s.Owned++
		case t.Status == status.Reserved:
			s.Reserved++
		case t.Status.IsPending():
			s.Pending++
		}
	}
	s.TotalAreaM2 = area.InexactFloat64()
	return s
}
