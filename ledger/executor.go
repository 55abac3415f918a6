package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Executor carries out an action once its quorum is reached. Dispatch is
// called exactly once per execution attempt, after the action has been marked
// executed; a non-nil error rolls the attempt back and the action returns to
// pending. Implementations may call the ledger's read-side from within
// Dispatch and will observe the action as executed.
type Executor interface {
	Dispatch(target common.Address, value *big.Int, payload []byte) error
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(target common.Address, value *big.Int, payload []byte) error

func (f ExecutorFunc) Dispatch(target common.Address, value *big.Int, payload []byte) error {
	return f(target, value, payload)
}
