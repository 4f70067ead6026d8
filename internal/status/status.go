// Package status derives the display status of a parcel from chain state,
// the connected wallet and an optional pending-transaction marker.
package status

import (
	"math/big"
	"strings"

	"github.com/emperorhan/terra-sync/internal/domain/model"
)

type Status string

const (
	Available     Status = "available"
	Owned         Status = "owned"
	Reserved      Status = "reserved"
	PendingBuy    Status = "pending_buy"
	PendingList   Status = "pending_list"
	PendingDelist Status = "pending_delist"
)

// IsPending reports whether s is one of the optimistic overlay statuses.
func (s Status) IsPending() bool {
	switch s {
	case PendingBuy, PendingList, PendingDelist:
		return true
	}
	return false
}

// Input is everything Resolve looks at. Pending is empty when no live marker
// exists for the parcel.
type Input struct {
	Listed    bool
	Owner     string
	Connected string
	Pending   model.Action
}

// Base computes the chain-derived status without any pending overlay.
func Base(listed bool, owner, connected string) Status {
	if listed {
		return Available
	}
	if connected != "" && strings.EqualFold(owner, connected) {
		return Owned
	}
	return Reserved
}

// Resolve applies the pending overlay on top of Base. A marker whose action
// does not fit the base status is ignored.
func Resolve(in Input) Status {
	base := Base(in.Listed, in.Owner, in.Connected)

	switch in.Pending {
	case model.ActionBuy:
		if base == Available {
			return PendingBuy
		}
	case model.ActionList:
		if base == Owned || base == Reserved {
			return PendingList
		}
	case model.ActionDelist:
		if base == Available {
			return PendingDelist
		}
	}
	return base
}

// Effective picks the owner/listed/price to display. Mirrored cache values
// win when present; chain values fill whatever the cache has not seen yet.
func Effective(chain model.ChainState, cached *model.TerraRecord) model.ChainState {
	out := chain
	if cached == nil {
		return out
	}
	if cached.Owner != nil {
		out.Owner = *cached.Owner
	}
	if cached.Listed != nil {
		out.Listed = *cached.Listed
	}
	if cached.PriceWei != nil {
		if p, ok := new(big.Int).SetString(*cached.PriceWei, 10); ok {
			out.PriceWei = p
		}
	}
	return out
}
