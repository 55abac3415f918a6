package main

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"github.com/lidofinance/qvault/client/repositories/action"
	"github.com/lidofinance/qvault/ledger"
)

func TestRenderAction(t *testing.T) {
	color.NoColor = true

	act := ledger.Action{
		ID:      3,
		Target:  common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Value:   big.NewInt(42),
		Payload: []byte{0xde, 0xad},
		Status:  ledger.ActionPending,
		Confirmations: map[common.Address]bool{
			common.HexToAddress("0x1111111111111111111111111111111111111111"): true,
		},
		ConfirmationCount: 1,
	}

	out := renderAction(act)
	for _, want := range []string{
		"Action ID: 3",
		"Target: 0x4444444444444444444444444444444444444444",
		"Value: 42 wei",
		"Payload: 0xdead",
		"Status: pending (1/2 confirmations)",
		"Confirmed by: 0x1111111111111111111111111111111111111111",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered action, got:\n%s", want, out)
		}
	}

	act.Confirmations = nil
	act.ConfirmationCount = 0
	if out = renderAction(act); !strings.Contains(out, "Status: pending\n") {
		t.Fatalf("expected plain pending status, got:\n%s", out)
	}
	if strings.Contains(out, "Confirmed by") {
		t.Fatalf("unconfirmed action should not list confirmations, got:\n%s", out)
	}

	act.Status = ledger.ActionExecuted
	if out = renderAction(act); !strings.Contains(out, "Status: executed") {
		t.Fatalf("expected executed status, got:\n%s", out)
	}
}

func TestRenderRecord(t *testing.T) {
	color.NoColor = true

	var (
		createdAt = time.Date(2022, 5, 10, 12, 0, 0, 0, time.UTC)
		signer    = common.HexToAddress("0x2222222222222222222222222222222222222222")
		target    = common.HexToAddress("0x4444444444444444444444444444444444444444")
		from      = common.HexToAddress("0x5555555555555555555555555555555555555555")
	)

	cases := []struct {
		record *action.Record
		want   string
	}{
		{
			record: &action.Record{
				Type:      ledger.EventActionProposed,
				ActionID:  0,
				Signer:    signer,
				Target:    target,
				Value:     big.NewInt(42),
				CreatedAt: createdAt,
			},
			want: "2022-05-10T12:00:00Z action 0 proposed by 0x2222222222222222222222222222222222222222" +
				": call 0x4444444444444444444444444444444444444444 with 42 wei",
		},
		{
			record: &action.Record{
				Type:      ledger.EventActionConfirmed,
				ActionID:  0,
				Signer:    signer,
				CreatedAt: createdAt,
			},
			want: "2022-05-10T12:00:00Z action 0: action_confirmed by 0x2222222222222222222222222222222222222222",
		},
		{
			record: &action.Record{
				Type:      ledger.EventActionExecuted,
				ActionID:  0,
				Target:    target,
				CreatedAt: createdAt,
			},
			want: "2022-05-10T12:00:00Z action 0 executed against 0x4444444444444444444444444444444444444444",
		},
		{
			record: &action.Record{
				Type:      ledger.EventDepositReceived,
				From:      from,
				Value:     big.NewInt(1000),
				CreatedAt: createdAt,
			},
			want: "2022-05-10T12:00:00Z deposit of 1000 wei received from 0x5555555555555555555555555555555555555555",
		},
	}

	for _, tc := range cases {
		if got := renderRecord(tc.record); got != tc.want {
			t.Fatalf("wrong rendering for %s:\ngot  %q\nwant %q", tc.record.Type, got, tc.want)
		}
	}
}
