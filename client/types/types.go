package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lidofinance/qvault/storage"
)

// MessageEvent is the command type carried by a log message. The verb forms
// name what the sender asks for; the past-tense audit events are emitted by
// the ledger once the command is applied.
type MessageEvent string

const (
	EventActionPropose MessageEvent = "action_propose"
	EventActionConfirm MessageEvent = "action_confirm"
	EventActionRevoke  MessageEvent = "action_revoke"
	EventDepositNotify MessageEvent = "deposit_notify"
)

type ProposeActionRequest struct {
	Target    common.Address `json:"target"`
	Value     *big.Int       `json:"value"`
	Payload   []byte         `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

type ConfirmActionRequest struct {
	ActionID  uint64    `json:"action_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RevokeActionRequest struct {
	ActionID  uint64    `json:"action_id"`
	CreatedAt time.Time `json:"created_at"`
}

type NotifyDepositRequest struct {
	From      common.Address `json:"from"`
	Value     *big.Int       `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
}

// RequestFromMessage converts message data to its typed request struct.
func RequestFromMessage(message storage.Message) (interface{}, error) {
	switch MessageEvent(message.Event) {
	case EventActionPropose:
		var req ProposeActionRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return nil, fmt.Errorf("failed to unmarshal propose request: %v", err)
		}
		return req, nil
	case EventActionConfirm:
		var req ConfirmActionRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return nil, fmt.Errorf("failed to unmarshal confirm request: %v", err)
		}
		return req, nil
	case EventActionRevoke:
		var req RevokeActionRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return nil, fmt.Errorf("failed to unmarshal revoke request: %v", err)
		}
		return req, nil
	case EventDepositNotify:
		var req NotifyDepositRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deposit request: %v", err)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("invalid event: %s", message.Event)
	}
}

// RequestToBytes serializes a request for a message of the given event type.
func RequestToBytes(event MessageEvent, req interface{}) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %v", event, err)
	}
	return data, nil
}
