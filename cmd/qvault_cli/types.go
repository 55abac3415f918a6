package main

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"github.com/lidofinance/qvault/client/repositories/action"
	"github.com/lidofinance/qvault/ledger"
)

type ActionsResponse struct {
	ErrorMessage string          `json:"error_message,omitempty"`
	Result       []ledger.Action `json:"result"`
}

type ActionResponse struct {
	ErrorMessage string        `json:"error_message,omitempty"`
	Result       ledger.Action `json:"result"`
}

type ConfirmationsResponse struct {
	ErrorMessage string           `json:"error_message,omitempty"`
	Result       []common.Address `json:"result"`
}

type SignersResponse struct {
	ErrorMessage string           `json:"error_message,omitempty"`
	Result       []common.Address `json:"result"`
}

type AuditLogResponse struct {
	ErrorMessage string           `json:"error_message,omitempty"`
	Result       []*action.Record `json:"result"`
}

// renderStatus colorizes the action status: executed actions green, untouched
// proposals yellow, proposals with confirmations in progress cyan.
func renderStatus(act ledger.Action) string {
	switch {
	case act.Status == ledger.ActionExecuted:
		return color.GreenString(act.Status.String())
	case act.ConfirmationCount > 0:
		return color.CyanString("%s (%d/%d confirmations)",
			act.Status.String(), act.ConfirmationCount, ledger.SignersRequired)
	default:
		return color.YellowString(act.Status.String())
	}
}

func renderAction(act ledger.Action) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Action ID: %d\n", act.ID)
	fmt.Fprintf(&sb, "Target: %s\n", act.Target.Hex())
	fmt.Fprintf(&sb, "Value: %s wei\n", act.Value)
	if len(act.Payload) > 0 {
		fmt.Fprintf(&sb, "Payload: 0x%s\n", hex.EncodeToString(act.Payload))
	}
	fmt.Fprintf(&sb, "Status: %s\n", renderStatus(act))
	if len(act.Confirmations) > 0 {
		fmt.Fprintf(&sb, "Confirmed by: %s\n", strings.Join(confirmedBy(act), ", "))
	}
	return sb.String()
}

func confirmedBy(act ledger.Action) []string {
	addrs := make([]string, 0, len(act.Confirmations))
	for addr := range act.Confirmations {
		addrs = append(addrs, addr.Hex())
	}
	sort.Strings(addrs)
	return addrs
}

func renderRecord(record *action.Record) string {
	ts := record.CreatedAt.Format(time.RFC3339)
	switch record.Type {
	case ledger.EventDepositReceived:
		return fmt.Sprintf("%s deposit of %s wei received from %s", ts, record.Value, record.From.Hex())
	case ledger.EventActionProposed:
		return fmt.Sprintf("%s action %d proposed by %s: call %s with %s wei",
			ts, record.ActionID, record.Signer.Hex(), record.Target.Hex(), record.Value)
	case ledger.EventActionExecuted:
		return fmt.Sprintf("%s action %d executed against %s", ts, record.ActionID, record.Target.Hex())
	default:
		return fmt.Sprintf("%s action %d: %s by %s", ts, record.ActionID, record.Type, record.Signer.Hex())
	}
}
