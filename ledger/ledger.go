// Package ledger implements a fixed 2-of-3 approval quorum over proposed
// actions. Any of the three signers may propose an action, confirm or revoke
// a confirmation of a pending one; the confirmation that reaches the quorum
// hands the action to the configured Executor within the same call.
package ledger

import (
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger holds the signer set and the full action history. All methods are
// safe for concurrent use. Mutating methods invoked while an executor
// dispatch is in flight fail with ErrReentrantCall; read methods succeed and
// observe the dispatching action as already executed.
type Ledger struct {
	mu          sync.RWMutex
	dispatching uint32

	signers   []common.Address
	signerIdx map[common.Address]struct{}
	actions   []*Action

	exec Executor
	sink Sink
	now  func() time.Time
}

type Option func(*Ledger)

// WithSink attaches an audit sink. Events are delivered synchronously, in
// transition order.
func WithSink(sink Sink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithClock overrides the timestamp source for action and event times.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger builds a ledger over exactly three distinct non-zero signers.
func NewLedger(signers []common.Address, exec Executor, opts ...Option) (*Ledger, error) {
	if len(signers) != SignerCount {
		return nil, ErrSignerCount
	}

	l := &Ledger{
		signers:   make([]common.Address, 0, SignerCount),
		signerIdx: make(map[common.Address]struct{}, SignerCount),
		exec:      exec,
		now:       time.Now,
	}
	for _, signer := range signers {
		if signer == (common.Address{}) {
			return nil, ErrInvalidSigner
		}
		if _, ok := l.signerIdx[signer]; ok {
			return nil, ErrDuplicateSigner
		}
		l.signers = append(l.signers, signer)
		l.signerIdx[signer] = struct{}{}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Propose appends a new pending action on behalf of caller and returns its
// ID. The proposer gets no implicit confirmation.
func (l *Ledger) Propose(caller, target common.Address, value *big.Int, payload []byte) (uint64, error) {
	if err := l.lockMutating(); err != nil {
		return 0, err
	}
	defer l.mu.Unlock()

	if !l.isSigner(caller) {
		return 0, ErrInvalidSigner
	}
	if value != nil && value.Sign() < 0 {
		return 0, ErrNegativeValue
	}

	now := l.now()
	action := &Action{
		ID:            uint64(len(l.actions)),
		Target:        target,
		Value:         copyValue(value),
		Payload:       append([]byte(nil), payload...),
		Status:        ActionPending,
		Confirmations: make(map[common.Address]bool, SignerCount),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	l.actions = append(l.actions, action)

	l.emit(Event{
		Type:     EventActionProposed,
		ActionID: action.ID,
		Signer:   caller,
		Target:   action.Target,
		Value:    copyValue(action.Value),
		Payload:  append([]byte(nil), action.Payload...),
		At:       now,
	})
	return action.ID, nil
}

// Confirm records caller's confirmation of a pending action. The confirmation
// that reaches the quorum executes the action before Confirm returns; if the
// executor fails, every state change of this call is rolled back and a
// *DispatchError is returned.
func (l *Ledger) Confirm(caller common.Address, actionID uint64) error {
	if err := l.lockMutating(); err != nil {
		return err
	}
	defer l.mu.Unlock()

	if !l.isSigner(caller) {
		return ErrInvalidSigner
	}
	action, err := l.action(actionID)
	if err != nil {
		return err
	}
	if action.Confirmations[caller] {
		return ErrAlreadyConfirmed
	}
	if action.Status == ActionExecuted {
		return ErrAlreadyExecuted
	}

	now := l.now()
	prevUpdated := action.UpdatedAt
	action.Confirmations[caller] = true
	action.ConfirmationCount++
	action.UpdatedAt = now

	if action.ConfirmationCount >= SignersRequired {
		if err := l.execute(action); err != nil {
			delete(action.Confirmations, caller)
			action.ConfirmationCount--
			action.UpdatedAt = prevUpdated
			return err
		}
		l.emit(Event{Type: EventActionConfirmed, ActionID: action.ID, Signer: caller, At: now})
		l.emit(Event{
			Type:     EventActionExecuted,
			ActionID: action.ID,
			Target:   action.Target,
			Value:    copyValue(action.Value),
			Payload:  append([]byte(nil), action.Payload...),
			At:       now,
		})
		return nil
	}

	l.emit(Event{Type: EventActionConfirmed, ActionID: action.ID, Signer: caller, At: now})
	return nil
}

// Revoke withdraws caller's standing confirmation from a pending action.
// Revoking never triggers execution even if the count re-crosses the
// threshold later.
func (l *Ledger) Revoke(caller common.Address, actionID uint64) error {
	if err := l.lockMutating(); err != nil {
		return err
	}
	defer l.mu.Unlock()

	if !l.isSigner(caller) {
		return ErrInvalidSigner
	}
	action, err := l.action(actionID)
	if err != nil {
		return err
	}
	if !action.Confirmations[caller] {
		return ErrNotConfirmed
	}
	if action.Status == ActionExecuted {
		return ErrAlreadyExecuted
	}

	delete(action.Confirmations, caller)
	action.ConfirmationCount--
	action.UpdatedAt = l.now()

	l.emit(Event{
		Type:     EventConfirmationRevoked,
		ActionID: action.ID,
		Signer:   caller,
		At:       action.UpdatedAt,
	})
	return nil
}

// NotifyDeposit records a passive value receipt. It touches no quorum state
// and accepts senders outside the signer set.
func (l *Ledger) NotifyDeposit(from common.Address, value *big.Int) error {
	if value != nil && value.Sign() < 0 {
		return ErrNegativeValue
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.emit(Event{
		Type:  EventDepositReceived,
		From:  from,
		Value: copyValue(value),
		At:    l.now(),
	})
	return nil
}

// execute finalizes the quorum. The action is marked executed before the
// executor runs, and the write lock is released for the duration of the
// Dispatch call, so the executor can read the ledger while any mutation
// attempt bounces off the dispatching token. The caller holds the write lock;
// it is held again on return.
func (l *Ledger) execute(action *Action) error {
	if action.Status == ActionExecuted {
		return ErrAlreadyExecuted
	}
	if action.ConfirmationCount < SignersRequired {
		return ErrNotEnoughConfirmations
	}

	action.Status = ActionExecuted

	if err := l.dispatch(action.Target, copyValue(action.Value), append([]byte(nil), action.Payload...)); err != nil {
		action.Status = ActionPending
		return &DispatchError{ActionID: action.ID, Err: err}
	}
	return nil
}

func (l *Ledger) dispatch(target common.Address, value *big.Int, payload []byte) error {
	atomic.StoreUint32(&l.dispatching, 1)
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		atomic.StoreUint32(&l.dispatching, 0)
	}()

	if l.exec == nil {
		return errors.New("no executor configured")
	}
	return l.exec.Dispatch(target, value, payload)
}

// lockMutating acquires the write lock unless an executor dispatch is in
// flight. The token is checked again under the lock: a caller that slips in
// while the lock is released around Dispatch must fail the same way.
func (l *Ledger) lockMutating() error {
	if atomic.LoadUint32(&l.dispatching) != 0 {
		return ErrReentrantCall
	}
	l.mu.Lock()
	if atomic.LoadUint32(&l.dispatching) != 0 {
		l.mu.Unlock()
		return ErrReentrantCall
	}
	return nil
}

// IsSigner reports whether addr belongs to the signer set. The set is
// immutable after construction.
func (l *Ledger) IsSigner(addr common.Address) bool {
	return l.isSigner(addr)
}

// Signers returns the signer set in construction order.
func (l *Ledger) Signers() []common.Address {
	return append([]common.Address(nil), l.signers...)
}

// ActionCount returns the number of actions ever proposed.
func (l *Ledger) ActionCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return uint64(len(l.actions))
}

// Action returns a deep copy of the action with the given ID.
func (l *Ledger) Action(actionID uint64) (Action, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	action, err := l.action(actionID)
	if err != nil {
		return Action{}, err
	}
	return action.clone(), nil
}

// Actions returns deep copies of all actions in proposal order.
func (l *Ledger) Actions() []Action {
	l.mu.RLock()
	defer l.mu.RUnlock()

	actions := make([]Action, 0, len(l.actions))
	for _, action := range l.actions {
		actions = append(actions, action.clone())
	}
	return actions
}

// HasConfirmed reports whether the signer's confirmation of the action
// currently stands.
func (l *Ledger) HasConfirmed(actionID uint64, signer common.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	action, err := l.action(actionID)
	if err != nil {
		return false, err
	}
	return action.Confirmations[signer], nil
}

// Confirmations returns the signers whose confirmations of the action stand,
// in signer-set order.
func (l *Ledger) Confirmations(actionID uint64) ([]common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	action, err := l.action(actionID)
	if err != nil {
		return nil, err
	}
	confirmed := make([]common.Address, 0, action.ConfirmationCount)
	for _, signer := range l.signers {
		if action.Confirmations[signer] {
			confirmed = append(confirmed, signer)
		}
	}
	return confirmed, nil
}

func (l *Ledger) isSigner(addr common.Address) bool {
	_, ok := l.signerIdx[addr]
	return ok
}

func (l *Ledger) action(actionID uint64) (*Action, error) {
	if actionID >= uint64(len(l.actions)) {
		return nil, ErrUnknownAction
	}
	return l.actions[actionID], nil
}

func (l *Ledger) emit(event Event) {
	if l.sink == nil {
		return
	}
	l.sink.OnEvent(event)
}

func copyValue(value *big.Int) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(value)
}
