package ledger

import (
	"errors"
	"fmt"
)

var (
	// Construction errors. No ledger is created when any of these is returned.
	ErrSignerCount     = errors.New("exactly three signers required")
	ErrInvalidSigner   = errors.New("not an authorized signer")
	ErrDuplicateSigner = errors.New("duplicate signer")

	// State-conflict errors. The caller should inspect the action state and retry
	// with a valid call.
	ErrUnknownAction          = errors.New("unknown action")
	ErrAlreadyConfirmed       = errors.New("action already confirmed by this signer")
	ErrNotConfirmed           = errors.New("action not confirmed by this signer")
	ErrAlreadyExecuted        = errors.New("action already executed")
	ErrNotEnoughConfirmations = errors.New("not enough confirmations")

	ErrNegativeValue = errors.New("negative value")

	// ErrReentrantCall is returned to any mutating call that arrives while an
	// executor dispatch is in flight on the same ledger. The rejected call has
	// zero effect.
	ErrReentrantCall = errors.New("reentrant ledger call")
)

// DispatchError is returned by Confirm when the quorum was reached but the
// executor reported a failure. The triggering confirmation and the executed
// mark are rolled back; the action stays pending.
type DispatchError struct {
	ActionID uint64
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch action %d: %v", e.ActionID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
