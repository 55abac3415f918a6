package ledger_test

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"lukechampine.com/frand"

	"github.com/lidofinance/qvault/ledger"

	"github.com/stretchr/testify/require"
)

func TestLedger_DumpRoundTrip(t *testing.T) {
	var (
		req  = require.New(t)
		exec = &testExecutor{}
		l    = newTestLedger(t, exec)
	)

	executedID, err := l.Propose(signerA, target, big.NewInt(10), []byte("rotate key"))
	req.NoError(err)
	req.NoError(l.Confirm(signerA, executedID))
	req.NoError(l.Confirm(signerC, executedID))

	pendingID, err := l.Propose(signerB, target, big.NewInt(20), nil)
	req.NoError(err)
	req.NoError(l.Confirm(signerB, pendingID))

	data, err := l.Dump()
	req.NoError(err)

	restored, err := ledger.FromDump(data, exec)
	req.NoError(err)
	req.Equal(l.Signers(), restored.Signers())

	bigIntCmp := cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })
	req.Empty(cmp.Diff(l.Actions(), restored.Actions(), bigIntCmp))

	// Numbering picks up where the dumped ledger left off.
	next, err := restored.Propose(signerA, target, big.NewInt(30), nil)
	req.NoError(err)
	req.Equal(uint64(2), next)

	// Restored pending state still executes on quorum.
	req.NoError(restored.Confirm(signerC, pendingID))

	action, err := restored.Action(pendingID)
	req.NoError(err)
	req.Equal(ledger.ActionExecuted, action.Status)
	req.Len(exec.calls, 2)
}

func TestLedger_DumpRoundTripRandomHistory(t *testing.T) {
	var (
		req     = require.New(t)
		exec    = &testExecutor{}
		l       = newTestLedger(t, exec)
		signers = testSigners()
	)

	for i := 0; i < 25; i++ {
		value := new(big.Int).SetUint64(frand.Uint64n(2e18))
		id, err := l.Propose(signers[frand.Intn(len(signers))], target, value, frand.Bytes(frand.Intn(64)+1))
		req.NoError(err)
		if frand.Intn(2) == 0 {
			req.NoError(l.Confirm(signers[frand.Intn(len(signers))], id))
		}
	}

	data, err := l.Dump()
	req.NoError(err)

	restored, err := ledger.FromDump(data, exec)
	req.NoError(err)

	bigIntCmp := cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })
	req.Empty(cmp.Diff(l.Actions(), restored.Actions(), bigIntCmp))
}

func testDump(actions string) []byte {
	return []byte(fmt.Sprintf(`{"signers":[%q,%q,%q],"actions":[%s]}`,
		signerA.Hex(), signerB.Hex(), signerC.Hex(), actions))
}

func testDumpAction(id int, confirmations string, count int) string {
	return fmt.Sprintf(`{"id":%d,"target":%q,"value":1,"payload":null,"status":0,`+
		`"confirmations":{%s},"confirmation_count":%d,`+
		`"created_at":"2022-04-01T12:00:00Z","updated_at":"2022-04-01T12:00:00Z"}`,
		id, target.Hex(), confirmations, count)
}

func TestFromDump_Validation(t *testing.T) {
	req := require.New(t)

	_, err := ledger.FromDump([]byte("{"), &testExecutor{})
	req.Error(err)

	// The dumped signer set goes through the regular construction checks.
	_, err = ledger.FromDump([]byte(`{"signers":[],"actions":[]}`), &testExecutor{})
	req.ErrorIs(err, ledger.ErrSignerCount)

	_, err = ledger.FromDump(testDump(testDumpAction(5, "", 0)), &testExecutor{})
	req.ErrorContains(err, "corrupted")

	confirmation := fmt.Sprintf("%q:true", signerA.Hex())
	_, err = ledger.FromDump(testDump(testDumpAction(0, confirmation, 2)), &testExecutor{})
	req.ErrorContains(err, "confirmation count mismatch")

	stranger := fmt.Sprintf("%q:true", outsider.Hex())
	_, err = ledger.FromDump(testDump(testDumpAction(0, stranger, 1)), &testExecutor{})
	req.ErrorContains(err, "unknown signer")

	cleared := fmt.Sprintf("%q:false", signerA.Hex())
	_, err = ledger.FromDump(testDump(testDumpAction(0, cleared, 1)), &testExecutor{})
	req.ErrorContains(err, "cleared confirmation flag")

	l, err := ledger.FromDump(testDump(testDumpAction(0, confirmation, 1)), &testExecutor{})
	req.NoError(err)

	confirmed, err := l.HasConfirmed(0, signerA)
	req.NoError(err)
	req.True(confirmed)
}
