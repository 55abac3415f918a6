package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// SignerCount is the fixed size of the signer set.
	SignerCount = 3
	// SignersRequired is how many distinct confirmations execute an action.
	SignersRequired = 2
)

type ActionStatus uint8

const (
	ActionPending ActionStatus = iota
	ActionExecuted
)

func (s ActionStatus) String() string {
	var str = "undefined action status"
	switch s {
	case ActionPending:
		str = "pending"
	case ActionExecuted:
		str = "executed"
	}
	return str
}

// Action is a single proposed call held by the ledger. Confirmations maps a
// signer address to true while that signer's confirmation stands; revoked or
// rolled-back confirmations are deleted from the map, so len(Confirmations)
// always equals ConfirmationCount.
type Action struct {
	ID                uint64                  `json:"id"`
	Target            common.Address          `json:"target"`
	Value             *big.Int                `json:"value"`
	Payload           []byte                  `json:"payload"`
	Status            ActionStatus            `json:"status"`
	Confirmations     map[common.Address]bool `json:"confirmations"`
	ConfirmationCount int                     `json:"confirmation_count"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

func (a *Action) clone() Action {
	cp := *a
	cp.Value = new(big.Int)
	if a.Value != nil {
		cp.Value.Set(a.Value)
	}
	cp.Payload = append([]byte(nil), a.Payload...)
	cp.Confirmations = make(map[common.Address]bool, len(a.Confirmations))
	for addr, ok := range a.Confirmations {
		cp.Confirmations[addr] = ok
	}
	return cp
}
