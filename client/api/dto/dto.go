package dto

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// This packages contains DTO (Data Transfer Object) structures
// for providing validated and sanitized values to service layer

type ProposeActionDTO struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
}

type ActionIdDTO struct {
	ActionID uint64
}

type NotifyDepositDTO struct {
	From  common.Address
	Value *big.Int
}

type StateOffsetDTO struct {
	Offset uint64
}

type ResetStateDTO struct {
	NewStateDBDSN      string
	UseOffset          bool
	KafkaConsumerGroup string
	Messages           []string
}
