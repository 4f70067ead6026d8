package chain

import (
	"context"
	"math/big"

	"github.com/emperorhan/terra-sync/internal/domain/model"
)

// TerraReader reads parcel state from the authoritative chain.
type TerraReader interface {
	// TotalSupply returns the number of minted parcels. Ids are 0..count-1.
	TotalSupply(ctx context.Context) (uint64, error)

	// ReadTerras reads ids 0..count-1 in one round trip. A failed id is
	// reported in its TerraResult; only a transport failure fails the call.
	ReadTerras(ctx context.Context, count uint64) ([]TerraResult, error)

	// ReadTerra reads a single parcel.
	ReadTerra(ctx context.Context, id model.TokenID) (*model.ChainTerra, error)
}

// TerraResult is one id of a batch read.
type TerraResult struct {
	TokenID model.TokenID
	Terra   *model.ChainTerra
	Err     error
}

// ReceiptReader reports transaction inclusion.
type ReceiptReader interface {
	// Receipt returns nil, nil while the transaction is not mined.
	Receipt(ctx context.Context, txHash string) (*Receipt, error)
}

// Receipt is the mined outcome of a transaction.
type Receipt struct {
	TxHash      string
	BlockNumber int64
	Succeeded   bool
}

// RoleReader answers admin-role membership.
type RoleReader interface {
	IsAdmin(ctx context.Context, address string) (bool, error)
}

// Simulator dry-runs a marketplace action from a given sender.
type Simulator interface {
	Simulate(ctx context.Context, req SimulateRequest) error
}

// SimulateRequest describes a pre-flight eth_call. PriceWei is the listing
// price for list and the payment for buy; it is ignored for delist.
type SimulateRequest struct {
	Action   model.Action
	TokenID  model.TokenID
	From     string
	PriceWei *big.Int
}

// EventKind names the contract events the synchronizer reacts to.
type EventKind string

const (
	EventTerraCreated EventKind = "created"
	EventTerraBought  EventKind = "bought"
	EventListed       EventKind = "listed"
	EventDelisted     EventKind = "delisted"
)

// Event is one decoded contract log.
type Event struct {
	Kind        EventKind
	TokenID     model.TokenID
	TxHash      string
	BlockNumber int64
}
