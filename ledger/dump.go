package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type ledgerDump struct {
	Signers []common.Address `json:"signers"`
	Actions []*Action        `json:"actions"`
}

// Dump serializes the signer set and the full action history as JSON, for
// persistence between restarts. FromDump is the counterpart.
func (l *Ledger) Dump() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	dump := ledgerDump{
		Signers: append([]common.Address(nil), l.signers...),
		Actions: make([]*Action, 0, len(l.actions)),
	}
	for _, action := range l.actions {
		cp := action.clone()
		dump.Actions = append(dump.Actions, &cp)
	}

	data, err := json.Marshal(dump)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger dump: %w", err)
	}
	return data, nil
}

// FromDump rebuilds a ledger from a Dump. Executor and options are wired
// fresh: they are runtime collaborators, not persisted state.
func FromDump(data []byte, exec Executor, opts ...Option) (*Ledger, error) {
	var dump ledgerDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger dump: %w", err)
	}

	l, err := NewLedger(dump.Signers, exec, opts...)
	if err != nil {
		return nil, err
	}

	for i, action := range dump.Actions {
		if action == nil {
			return nil, fmt.Errorf("ledger dump is corrupted: nil action at index %d", i)
		}
		if action.ID != uint64(i) {
			return nil, fmt.Errorf("ledger dump is corrupted: action at index %d carries id %d", i, action.ID)
		}
		if action.ConfirmationCount != len(action.Confirmations) {
			return nil, fmt.Errorf("ledger dump is corrupted: action %d confirmation count mismatch", action.ID)
		}
		for signer, ok := range action.Confirmations {
			if !ok {
				return nil, fmt.Errorf("ledger dump is corrupted: action %d carries a cleared confirmation flag", action.ID)
			}
			if !l.isSigner(signer) {
				return nil, fmt.Errorf("ledger dump is corrupted: action %d confirmed by unknown signer %s", action.ID, signer.Hex())
			}
		}
		if action.Confirmations == nil {
			action.Confirmations = make(map[common.Address]bool, SignerCount)
		}
		if action.Value == nil {
			action.Value = new(big.Int)
		}
		l.actions = append(l.actions, action)
	}
	return l, nil
}
