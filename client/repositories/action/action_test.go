package action

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lidofinance/qvault/client/modules/state"
	"github.com/lidofinance/qvault/ledger"

	"github.com/stretchr/testify/require"
)

func TestAppendRecord(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/qvault_test_AppendRecord"
		topic  = "test_topic"
		signer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath, topic)
	req.NoError(err)

	repo, err := NewActionRepo(stg, topic)
	req.NoError(err)

	records, err := repo.GetRecords()
	req.NoError(err)
	req.Empty(records)

	record := RecordFromEvent(ledger.Event{
		Type:     ledger.EventActionProposed,
		ActionID: 0,
		Signer:   signer,
		Value:    big.NewInt(10),
		At:       time.Now(),
	})
	req.NotEmpty(record.ID)
	req.NoError(repo.AppendRecord(record))

	records, err = repo.GetRecords()
	req.NoError(err)
	req.Len(records, 1)
	req.Equal(ledger.EventActionProposed, records[0].Type)
	req.Equal(signer, records[0].Signer)
	req.Zero(records[0].Value.Cmp(big.NewInt(10)))
}

func TestGetRecordsByActionID(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/qvault_test_GetRecordsByActionID"
		topic  = "test_topic"
		signer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath, topic)
	req.NoError(err)

	repo, err := NewActionRepo(stg, topic)
	req.NoError(err)

	events := []ledger.Event{
		{Type: ledger.EventActionProposed, ActionID: 0, Signer: signer, At: time.Now()},
		{Type: ledger.EventActionConfirmed, ActionID: 0, Signer: signer, At: time.Now()},
		{Type: ledger.EventActionProposed, ActionID: 1, Signer: signer, At: time.Now()},
		// Deposits carry no action id and must not leak into action trails.
		{Type: ledger.EventDepositReceived, From: signer, Value: big.NewInt(1), At: time.Now()},
	}
	for _, event := range events {
		req.NoError(repo.AppendRecord(RecordFromEvent(event)))
	}

	records, err := repo.GetRecords()
	req.NoError(err)
	req.Len(records, 4)

	zero, err := repo.GetRecordsByActionID(0)
	req.NoError(err)
	req.Len(zero, 2)
	req.Equal(ledger.EventActionProposed, zero[0].Type)
	req.Equal(ledger.EventActionConfirmed, zero[1].Type)

	one, err := repo.GetRecordsByActionID(1)
	req.NoError(err)
	req.Len(one, 1)

	missing, err := repo.GetRecordsByActionID(42)
	req.NoError(err)
	req.Empty(missing)
}

func TestRecordsSurviveReopen(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/qvault_test_RecordsSurviveReopen"
		topic  = "test_topic"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath, topic)
	req.NoError(err)

	repo, err := NewActionRepo(stg, topic)
	req.NoError(err)
	req.NoError(repo.AppendRecord(RecordFromEvent(ledger.Event{
		Type: ledger.EventActionProposed, At: time.Now(),
	})))

	// A second repo over the same state must not wipe the trail.
	reopened, err := NewActionRepo(stg, topic)
	req.NoError(err)

	records, err := reopened.GetRecords()
	req.NoError(err)
	req.Len(records, 1)
}
