package node

import (
	"github.com/lidofinance/qvault/client/modules/logger"
	"github.com/lidofinance/qvault/client/repositories/action"
	"github.com/lidofinance/qvault/ledger"
)

// auditSink appends every ledger event to the audit repository and mirrors it
// to the node log. Sinks run inside the ledger transition, so this must never
// call back into the ledger.
type auditSink struct {
	repo   action.ActionRepo
	logger logger.Logger
}

func newAuditSink(repo action.ActionRepo, log logger.Logger) *auditSink {
	return &auditSink{
		repo:   repo,
		logger: log,
	}
}

func (s *auditSink) OnEvent(event ledger.Event) {
	if err := s.repo.AppendRecord(action.RecordFromEvent(event)); err != nil {
		s.logger.Log("Failed to append audit record for event %s: %v", event.Type, err)
	}

	switch event.Type {
	case ledger.EventDepositReceived:
		s.logger.Log("Deposit of %s wei received from %s", event.Value, event.From.Hex())
	case ledger.EventActionExecuted:
		s.logger.Log("Action %d executed against %s", event.ActionID, event.Target.Hex())
	default:
		s.logger.Log("Action %d: %s by %s", event.ActionID, event.Type, event.Signer.Hex())
	}
}
