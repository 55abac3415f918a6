package action

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/lidofinance/qvault/client/modules/state"
	"github.com/lidofinance/qvault/ledger"
)

const (
	AuditLogKey = "audit_log"
)

// Record is one persisted audit entry. Records mirror ledger events one to
// one and are kept in emission order.
type Record struct {
	ID        string           `json:"id"`
	Type      ledger.EventType `json:"type"`
	ActionID  uint64           `json:"action_id"`
	Signer    common.Address   `json:"signer"`
	Target    common.Address   `json:"target"`
	From      common.Address   `json:"from"`
	Value     *big.Int         `json:"value"`
	Payload   []byte           `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

// RecordFromEvent wraps a ledger event into a storable record.
func RecordFromEvent(event ledger.Event) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Type:      event.Type,
		ActionID:  event.ActionID,
		Signer:    event.Signer,
		Target:    event.Target,
		From:      event.From,
		Value:     event.Value,
		Payload:   event.Payload,
		CreatedAt: event.At,
	}
}

type ActionRepo interface {
	AppendRecord(record *Record) error
	GetRecords() ([]*Record, error)
	GetRecordsByActionID(actionID uint64) ([]*Record, error)
}

type BaseActionRepo struct {
	state             state.State
	auditCompositeKey string
}

func NewActionRepo(s state.State, topic string) (*BaseActionRepo, error) {
	auditCompositeKey := state.MakeCompositeKeyString(topic, AuditLogKey)

	repo := &BaseActionRepo{
		state:             s,
		auditCompositeKey: auditCompositeKey,
	}

	if err := repo.initJsonKey(auditCompositeKey); err != nil {
		return nil, fmt.Errorf("failed to init %s storage: %w", auditCompositeKey, err)
	}

	return repo, nil
}

func (r *BaseActionRepo) AppendRecord(record *Record) error {
	records, err := r.GetRecords()
	if err != nil {
		return fmt.Errorf("failed to getRecords: %w", err)
	}

	records = append(records, record)
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal audit records: %w", err)
	}

	if err := r.state.Set(r.auditCompositeKey, recordsJSON); err != nil {
		return fmt.Errorf("failed to put audit records: %w", err)
	}

	return nil
}

// GetRecords returns the full audit trail in emission order.
func (r *BaseActionRepo) GetRecords() ([]*Record, error) {
	bz, err := r.state.Get(r.auditCompositeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit records (key: %s): %w", r.auditCompositeKey, err)
	}

	if len(bz) == 0 {
		return []*Record{}, nil
	}

	var records []*Record
	if err := json.Unmarshal(bz, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit records: %w", err)
	}

	return records, nil
}

// GetRecordsByActionID returns the audit trail of a single action. Deposit
// records carry no action and are never included.
func (r *BaseActionRepo) GetRecordsByActionID(actionID uint64) ([]*Record, error) {
	records, err := r.GetRecords()
	if err != nil {
		return nil, err
	}

	result := make([]*Record, 0)
	for _, record := range records {
		if record.Type == ledger.EventDepositReceived {
			continue
		}
		if record.ActionID == actionID {
			result = append(result, record)
		}
	}

	return result, nil
}

func (r *BaseActionRepo) initJsonKey(key string) error {
	bz, err := r.state.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if len(bz) > 0 {
		return nil
	}

	if err := r.state.Set(key, []byte("[]")); err != nil {
		return fmt.Errorf("failed to init state: %w", err)
	}

	return nil
}
