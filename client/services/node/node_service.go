package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/lidofinance/qvault/client/api/dto"
	"github.com/lidofinance/qvault/client/config"
	"github.com/lidofinance/qvault/client/modules/keystore"
	"github.com/lidofinance/qvault/client/modules/logger"
	"github.com/lidofinance/qvault/client/modules/state"
	"github.com/lidofinance/qvault/client/repositories/action"
	"github.com/lidofinance/qvault/client/services"
	"github.com/lidofinance/qvault/client/types"
	"github.com/lidofinance/qvault/ledger"
	"github.com/lidofinance/qvault/storage"
	"github.com/lidofinance/qvault/storage/kafka_storage"
)

const pollingPeriod = time.Second

type NodeService interface {
	Poll() error
	GetLogger() logger.Logger
	GetAddress() common.Address
	ProcessMessage(message storage.Message) error
	ProposeAction(dto *dto.ProposeActionDTO) error
	ConfirmAction(dto *dto.ActionIdDTO) error
	RevokeConfirmation(dto *dto.ActionIdDTO) error
	NotifyDeposit(dto *dto.NotifyDepositDTO) error
	GetActions() []ledger.Action
	GetActionByID(dto *dto.ActionIdDTO) (ledger.Action, error)
	GetConfirmations(dto *dto.ActionIdDTO) ([]common.Address, error)
	GetSigners() []common.Address
	GetAuditLog() ([]*action.Record, error)
	GetActionAuditLog(dto *dto.ActionIdDTO) ([]*action.Record, error)
	GetStateOffset() (uint64, error)
	SaveOffset(dto *dto.StateOffsetDTO) error
	ResetState(dto *dto.ResetStateDTO) (string, error)
}

type BaseNodeService struct {
	sync.Mutex
	ctx        context.Context
	account    string
	address    common.Address
	signers    []common.Address
	topic      string
	stateMu    sync.RWMutex
	state      state.State
	storage    storage.Storage
	keyStore   keystore.KeyStore
	Logger     logger.Logger
	exec       ledger.Executor
	actionRepo action.ActionRepo
	ledger     *ledger.Ledger
	nextOffset uint64
}

// ledgerSnapshot is what the node persists after every applied message: the
// ledger dump together with the offset right past the last applied message.
// Storing both in one record keeps them consistent across restarts.
type ledgerSnapshot struct {
	NextOffset uint64          `json:"next_offset"`
	Ledger     json.RawMessage `json:"ledger"`
}

func NewNode(ctx context.Context, cfg *config.Config, sp *services.ServiceProvider) (NodeService, error) {
	keyPair, err := sp.GetKeyStore().LoadKeys(cfg.Username, "")
	if err != nil {
		return nil, fmt.Errorf("failed to LoadKeys: %w", err)
	}

	signers, err := cfg.SignerAddresses()
	if err != nil {
		return nil, fmt.Errorf("failed to read signers: %w", err)
	}

	node := &BaseNodeService{
		ctx:        ctx,
		account:    cfg.Username,
		address:    keyPair.Address(),
		signers:    signers,
		topic:      cfg.StorageTopic(),
		state:      sp.GetState(),
		storage:    sp.GetStorage(),
		keyStore:   sp.GetKeyStore(),
		Logger:     sp.GetLogger(),
		exec:       sp.GetExecutor(),
		actionRepo: sp.GetActionRepo(),
	}

	if err := node.restoreLedger(); err != nil {
		return nil, fmt.Errorf("failed to restore ledger: %w", err)
	}

	return node, nil
}

// restoreLedger rebuilds the in-memory ledger from the persisted snapshot, or
// starts a fresh one when the node state is empty.
func (s *BaseNodeService) restoreLedger() error {
	sink := newAuditSink(s.actionRepo, s.Logger)

	raw, err := s.getState().LoadLedgerState()
	if err != nil {
		return fmt.Errorf("failed to LoadLedgerState: %w", err)
	}

	if len(raw) == 0 {
		led, err := ledger.NewLedger(s.signers, s.exec, ledger.WithSink(sink))
		if err != nil {
			return err
		}
		s.ledger = led
		s.nextOffset = 0
		return nil
	}

	var snapshot ledgerSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal ledger snapshot: %w", err)
	}

	led, err := ledger.FromDump(snapshot.Ledger, s.exec, ledger.WithSink(sink))
	if err != nil {
		return err
	}

	restored := led.Signers()
	if len(restored) != len(s.signers) {
		return errors.New("configured signers do not match the restored ledger")
	}
	for i, signer := range restored {
		if s.signers[i] != signer {
			return errors.New("configured signers do not match the restored ledger")
		}
	}

	s.ledger = led
	s.nextOffset = snapshot.NextOffset
	return nil
}

func (s *BaseNodeService) GetLogger() logger.Logger {
	return s.Logger
}

func (s *BaseNodeService) GetAddress() common.Address {
	return s.address
}

// Poll is a main node loop, which gets new messages from an append-only log and processes them
func (s *BaseNodeService) Poll() error {
	tk := time.NewTicker(pollingPeriod)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			offset, err := s.getState().LoadOffset()
			if err != nil {
				return fmt.Errorf("failed to LoadOffset: %w", err)
			}

			messages, err := s.storage.GetMessages(offset)
			if err != nil {
				return fmt.Errorf("failed to GetMessages: %w", err)
			}

			for _, message := range messages {
				s.Logger.Log("Handling message with offset %d, type %s", message.Offset, message.Event)
				if err := s.ProcessMessage(message); err != nil {
					s.Logger.Log("Failed to process message with offset %d: %v", message.Offset, err)
				} else {
					s.Logger.Log("Successfully processed message with offset %d, type %s",
						message.Offset, message.Event)
				}
				if err := s.getState().SaveOffset(message.Offset + 1); err != nil {
					s.Logger.Log("Failed to save offset: %v", err)
				}
			}
		case <-s.ctx.Done():
			log.Println("Context closed, stop polling...")
			return nil
		}
	}
}

// ProcessMessage verifies the sender signature of a message and applies the
// carried command to the ledger. Messages below the applied watermark are
// skipped, so replaying the log after a rewound offset cannot apply a command
// twice.
func (s *BaseNodeService) ProcessMessage(message storage.Message) error {
	s.Lock()
	defer s.Unlock()

	if message.Offset < s.nextOffset {
		s.Logger.Log("Message with offset %d is already applied, skip it", message.Offset)
		return nil
	}

	applyErr := s.applyMessage(message)

	// The watermark advances even when the ledger rejects a command: the
	// message is consumed either way and must not be applied again.
	if err := s.persistLedger(message.Offset + 1); err != nil {
		return err
	}
	s.nextOffset = message.Offset + 1

	return applyErr
}

func (s *BaseNodeService) applyMessage(message storage.Message) error {
	if err := s.verifyMessage(message); err != nil {
		return fmt.Errorf("failed to verify message: %w", err)
	}

	request, err := types.RequestFromMessage(message)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	led := s.getLedger()
	switch request := request.(type) {
	case types.ProposeActionRequest:
		if err := request.Validate(); err != nil {
			return fmt.Errorf("invalid propose request: %w", err)
		}
		id, err := led.Propose(message.SenderAddr, request.Target, request.Value, request.Payload)
		if err != nil {
			return fmt.Errorf("failed to propose action: %w", err)
		}
		s.Logger.Log("Action %d proposed by %s", id, message.SenderAddr.Hex())
		return nil
	case types.ConfirmActionRequest:
		if err := request.Validate(); err != nil {
			return fmt.Errorf("invalid confirm request: %w", err)
		}
		if err := led.Confirm(message.SenderAddr, request.ActionID); err != nil {
			return fmt.Errorf("failed to confirm action %d: %w", request.ActionID, err)
		}
		return nil
	case types.RevokeActionRequest:
		if err := request.Validate(); err != nil {
			return fmt.Errorf("invalid revoke request: %w", err)
		}
		if err := led.Revoke(message.SenderAddr, request.ActionID); err != nil {
			return fmt.Errorf("failed to revoke confirmation of action %d: %w", request.ActionID, err)
		}
		return nil
	case types.NotifyDepositRequest:
		if err := request.Validate(); err != nil {
			return fmt.Errorf("invalid deposit request: %w", err)
		}
		if err := led.NotifyDeposit(request.From, request.Value); err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unexpected request type %T", request)
	}
}

func (s *BaseNodeService) verifyMessage(message storage.Message) error {
	if len(message.Signature) == 0 {
		return errors.New("message is not signed")
	}

	pubKey, err := crypto.SigToPub(crypto.Keccak256(message.Bytes()), message.Signature)
	if err != nil {
		return fmt.Errorf("failed to recover sender public key: %w", err)
	}

	if crypto.PubkeyToAddress(*pubKey) != message.SenderAddr {
		return errors.New("signature is corrupt")
	}

	return nil
}

func (s *BaseNodeService) persistLedger(nextOffset uint64) error {
	dump, err := s.getLedger().Dump()
	if err != nil {
		return fmt.Errorf("failed to dump ledger: %w", err)
	}

	data, err := json.Marshal(ledgerSnapshot{NextOffset: nextOffset, Ledger: dump})
	if err != nil {
		return fmt.Errorf("failed to marshal ledger snapshot: %w", err)
	}

	if err := s.getState().SaveLedgerState(data); err != nil {
		return fmt.Errorf("failed to SaveLedgerState: %w", err)
	}

	return nil
}

func (s *BaseNodeService) signMessage(message []byte) ([]byte, error) {
	keyPair, err := s.keyStore.LoadKeys(s.account, "")
	if err != nil {
		return nil, fmt.Errorf("failed to LoadKeys: %w", err)
	}

	return crypto.Sign(crypto.Keccak256(message), keyPair.Priv)
}

func (s *BaseNodeService) buildMessage(event types.MessageEvent, data []byte) (*storage.Message, error) {
	message := storage.Message{
		ID:         uuid.New().String(),
		Event:      string(event),
		Data:       data,
		SenderAddr: s.address,
	}

	signature, err := s.signMessage(message.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	message.Signature = signature
	return &message, nil
}

func (s *BaseNodeService) postRequest(event types.MessageEvent, request interface{}) error {
	data, err := types.RequestToBytes(event, request)
	if err != nil {
		return err
	}

	message, err := s.buildMessage(event, data)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	if err := s.storage.Send(*message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// ProposeAction posts a signed propose command to the append-only log. The
// action is registered once the nodes read the command back from the log.
func (s *BaseNodeService) ProposeAction(dto *dto.ProposeActionDTO) error {
	request := &types.ProposeActionRequest{
		Target:    dto.Target,
		Value:     dto.Value,
		Payload:   dto.Payload,
		CreatedAt: time.Now(),
	}
	if err := request.Validate(); err != nil {
		return fmt.Errorf("invalid propose request: %w", err)
	}

	return s.postRequest(types.EventActionPropose, request)
}

func (s *BaseNodeService) ConfirmAction(dto *dto.ActionIdDTO) error {
	request := &types.ConfirmActionRequest{
		ActionID:  dto.ActionID,
		CreatedAt: time.Now(),
	}
	if err := request.Validate(); err != nil {
		return fmt.Errorf("invalid confirm request: %w", err)
	}

	return s.postRequest(types.EventActionConfirm, request)
}

func (s *BaseNodeService) RevokeConfirmation(dto *dto.ActionIdDTO) error {
	request := &types.RevokeActionRequest{
		ActionID:  dto.ActionID,
		CreatedAt: time.Now(),
	}
	if err := request.Validate(); err != nil {
		return fmt.Errorf("invalid revoke request: %w", err)
	}

	return s.postRequest(types.EventActionRevoke, request)
}

func (s *BaseNodeService) NotifyDeposit(dto *dto.NotifyDepositDTO) error {
	request := &types.NotifyDepositRequest{
		From:      dto.From,
		Value:     dto.Value,
		CreatedAt: time.Now(),
	}
	if err := request.Validate(); err != nil {
		return fmt.Errorf("invalid deposit request: %w", err)
	}

	return s.postRequest(types.EventDepositNotify, request)
}

func (s *BaseNodeService) GetActions() []ledger.Action {
	return s.getLedger().Actions()
}

func (s *BaseNodeService) GetActionByID(dto *dto.ActionIdDTO) (ledger.Action, error) {
	return s.getLedger().Action(dto.ActionID)
}

func (s *BaseNodeService) GetConfirmations(dto *dto.ActionIdDTO) ([]common.Address, error) {
	return s.getLedger().Confirmations(dto.ActionID)
}

func (s *BaseNodeService) GetSigners() []common.Address {
	return s.getLedger().Signers()
}

func (s *BaseNodeService) GetAuditLog() ([]*action.Record, error) {
	return s.getActionRepo().GetRecords()
}

func (s *BaseNodeService) GetActionAuditLog(dto *dto.ActionIdDTO) ([]*action.Record, error) {
	return s.getActionRepo().GetRecordsByActionID(dto.ActionID)
}

func (s *BaseNodeService) GetStateOffset() (uint64, error) {
	return s.getState().LoadOffset()
}

func (s *BaseNodeService) SaveOffset(dto *dto.StateOffsetDTO) error {
	err := s.getState().SaveOffset(dto.Offset)
	if err != nil {
		return fmt.Errorf("failed to save offset: %v", err)
	}

	return nil
}

// ResetState switches the node to a fresh state database and rewinds the
// message log, so the ledger is rebuilt from scratch on the next poll.
func (s *BaseNodeService) ResetState(dto *dto.ResetStateDTO) (string, error) {
	s.Lock()
	defer s.Unlock()

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if err := s.storage.IgnoreMessages(dto.Messages, dto.UseOffset); err != nil {
		return "", fmt.Errorf("failed to ignore messages while resetting state: %v", err)
	}

	switch stg := s.storage.(type) {
	case *kafka_storage.KafkaStorage:
		if err := stg.SetConsumerGroup(dto.KafkaConsumerGroup); err != nil {
			return "", fmt.Errorf("failed to set consumer group while reseting state: %v", err)
		}
	}

	newState, newStateDbPath, err := s.state.NewStateFromOld(dto.NewStateDBDSN)
	if err != nil {
		return "", fmt.Errorf("failed to create new state from old: %v", err)
	}

	newRepo, err := action.NewActionRepo(newState, s.topic)
	if err != nil {
		return "", fmt.Errorf("failed to rebuild action repo: %v", err)
	}

	led, err := ledger.NewLedger(s.signers, s.exec, ledger.WithSink(newAuditSink(newRepo, s.Logger)))
	if err != nil {
		return "", fmt.Errorf("failed to rebuild ledger: %v", err)
	}

	s.state = newState
	s.actionRepo = newRepo
	s.ledger = led
	s.nextOffset = 0

	return newStateDbPath, err
}

func (s *BaseNodeService) getState() state.State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *BaseNodeService) getLedger() *ledger.Ledger {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.ledger
}

func (s *BaseNodeService) getActionRepo() action.ActionRepo {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.actionRepo
}
