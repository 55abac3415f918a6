package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventActionProposed      EventType = "action_proposed"
	EventActionConfirmed     EventType = "action_confirmed"
	EventConfirmationRevoked EventType = "confirmation_revoked"
	EventActionExecuted      EventType = "action_executed"
	EventDepositReceived     EventType = "deposit_received"
)

// Event is an audit record emitted after a state transition has been applied.
// Fields beyond Type and At are filled per event type: ActionID and Signer for
// confirmations and revocations, Target, Value and Payload for proposals and
// executions, From and Value for deposits.
type Event struct {
	Type     EventType      `json:"type"`
	ActionID uint64         `json:"action_id"`
	Signer   common.Address `json:"signer"`
	Target   common.Address `json:"target"`
	From     common.Address `json:"from"`
	Value    *big.Int       `json:"value"`
	Payload  []byte         `json:"payload"`
	At       time.Time      `json:"at"`
}

// Sink receives ledger events synchronously, in transition order. A Sink must
// not call back into the ledger that emitted the event.
type Sink interface {
	OnEvent(event Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(event Event)

func (f SinkFunc) OnEvent(event Event) {
	f(event)
}
