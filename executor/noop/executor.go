// Package noop provides a recording executor for daemons that follow the
// shared message log but must not duplicate on-chain calls. Exactly one
// daemon in the signer set runs with real dispatching enabled; the others
// acknowledge approved actions through this executor.
package noop

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lidofinance/qvault/client/modules/logger"
	"github.com/lidofinance/qvault/ledger"
)

var _ ledger.Executor = (*Executor)(nil)

// Dispatch is one recorded executor call.
type Dispatch struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
	At      time.Time
}

type Executor struct {
	mu         sync.Mutex
	logger     logger.Logger
	dispatches []Dispatch
}

func NewExecutor(log logger.Logger) *Executor {
	return &Executor{
		logger: log,
	}
}

// Dispatch records the approved action and succeeds.
func (e *Executor) Dispatch(target common.Address, value *big.Int, payload []byte) error {
	if value == nil {
		value = new(big.Int)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.dispatches = append(e.dispatches, Dispatch{
		Target:  target,
		Value:   new(big.Int).Set(value),
		Payload: append([]byte(nil), payload...),
		At:      time.Now(),
	})
	if e.logger != nil {
		e.logger.Log("Dispatching disabled, acknowledged action for %s (value %s, payload %d bytes)",
			target.Hex(), value.String(), len(payload))
	}
	return nil
}

// Dispatches returns the recorded calls in arrival order.
func (e *Executor) Dispatches() []Dispatch {
	e.mu.Lock()
	defer e.mu.Unlock()

	dispatches := make([]Dispatch, len(e.dispatches))
	copy(dispatches, e.dispatches)
	return dispatches
}
