package worker

import (
	"context"
	"fmt"
	"log/slog"

	"taschengeld/internal/amqp"
	"taschengeld/internal/services"
)

// AuditWorker re-verifies balances against the ledger whenever a write
// is announced on the event stream
type AuditWorker struct {
	audit *services.AuditService
}

func NewAuditWorker(audit *services.AuditService) *AuditWorker {
	return &AuditWorker{audit: audit}
}

// HandleLedgerEvent processes a single ledger event message from AMQP
func (w *AuditWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"child_id", msg.ChildID,
		"kind", msg.Kind,
		"tx_count", len(msg.TxIDs))

	report, err := w.audit.VerifyChild(ctx, msg.ChildID)
	if err != nil {
		return fmt.Errorf("verify child %s: %w", msg.ChildID, err)
	}

	if !report.Clean {
		// Loud failure, but ack the message: re-verifying the same drifted
		// balance forever would only clog the queue.
		for _, m := range report.Mismatches {
			slog.ErrorContext(ctx, "Balance does not match ledger",
				"child_id", msg.ChildID,
				"pot", string(m.Pot),
				"balance_cents", m.Balance,
				"ledger_cents", m.LedgerSum)
		}
		return nil
	}

	slog.DebugContext(ctx, "Balance verified against ledger", "child_id", msg.ChildID)
	return nil
}

// StartupAuditCheck verifies every child once at worker startup.
// This recovers coverage for events missed during worker downtime.
func (w *AuditWorker) StartupAuditCheck(ctx context.Context) error {
	reports, err := w.audit.VerifyAll(ctx)
	if err != nil {
		return fmt.Errorf("verify all children at startup: %w", err)
	}

	dirty := 0
	for _, report := range reports {
		if !report.Clean {
			dirty++
			slog.ErrorContext(ctx, "Balance drift found at startup",
				"child_id", report.ChildID,
				"mismatches", len(report.Mismatches))
		}
	}

	slog.InfoContext(ctx, "Startup audit completed",
		"children", len(reports),
		"dirty", dirty)

	return nil
}
