package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of marketplace transaction a pending marker tracks.
type Action string

const (
	ActionBuy    Action = "buy"
	ActionList   Action = "list"
	ActionDelist Action = "delist"
)

func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionList, ActionDelist:
		return true
	}
	return false
}

// ParseAction validates a wire value.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// PendingTx marks a broadcast but unconfirmed transaction for a parcel.
// At most one marker per TokenID is expected to be live.
type PendingTx struct {
	ID        uuid.UUID
	TokenID   TokenID
	TxHash    string
	Action    Action
	Submitter string
	CreatedAt time.Time
}

// DefaultPendingStaleAfter is how long a marker is treated as live without
// being confirmed or cleared by an event.
const DefaultPendingStaleAfter = 10 * time.Minute
