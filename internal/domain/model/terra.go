package model

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// TokenID is the sequential on-chain parcel id. Ids are dense (0..count-1)
// and never reused.
type TokenID int64

func (id TokenID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// ChainTerra is one parcel as read from the contract.
type ChainTerra struct {
	TokenID  TokenID
	Lat      int32 // microdegrees
	Lng      int32 // microdegrees
	WidthCm  uint32
	HeightCm uint32
	Listed   bool
	Price    *big.Int
	Owner    string // lower-cased hex
}

// State returns the mutable, authoritative subset of the parcel.
func (t *ChainTerra) State() ChainState {
	return ChainState{
		TokenID:  t.TokenID,
		Owner:    t.Owner,
		Listed:   t.Listed,
		PriceWei: t.Price,
	}
}

// ChainState is the chain-owned part of a parcel that is mirrored into the
// secondary cache.
type ChainState struct {
	TokenID  TokenID
	Owner    string
	Listed   bool
	PriceWei *big.Int
}

// PriceString renders the price as a base-10 integer string. A nil price is "0".
func (s ChainState) PriceString() string {
	if s.PriceWei == nil {
		return "0"
	}
	return s.PriceWei.String()
}

// TerraRecord is one row of the secondary cache. Owner, Listed and PriceWei
// mirror chain state and stay nil until the first authoritative sync.
type TerraRecord struct {
	TokenID   TokenID
	Terrain   string
	Crops     []string
	Owner     *string
	Listed    *bool
	PriceWei  *string
	UpdatedAt time.Time
}

// NormalizeAddress lower-cases and trims a hex address for comparisons and storage.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
