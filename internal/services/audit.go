package services

import (
	"context"
	"fmt"
	"log/slog"

	"taschengeld/internal/core"
	"taschengeld/internal/storage"
)

// AuditService replays the ledger and compares it against the cached
// balance row. Under the atomic write path the two can never disagree; a
// mismatch means a bug or out-of-band database edits and is logged loudly.
type AuditService struct {
	storage *storage.SQLiteRepository
}

func NewAuditService(storage *storage.SQLiteRepository) *AuditService {
	return &AuditService{storage: storage}
}

// PotMismatch is one pot where the ledger sum and the balance row diverge.
type PotMismatch struct {
	Pot       core.Pot
	Balance   int64
	LedgerSum int64
}

// AuditReport summarizes one verification run.
type AuditReport struct {
	ChildID    string
	Clean      bool
	Mismatches []PotMismatch
}

// VerifyChild recomputes the signed pot sums from the transactions table
// and checks them against the balance row.
func (a *AuditService) VerifyChild(ctx context.Context, childID string) (AuditReport, error) {
	balance, err := a.storage.GetBalance(ctx, childID)
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit %s: %w", childID, err)
	}
	sums, err := a.storage.SumPots(ctx, childID)
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit %s: %w", childID, err)
	}

	report := AuditReport{ChildID: childID, Clean: true}
	for _, pot := range core.Pots {
		if balance.Pot(pot).Cents != sums[pot] {
			report.Clean = false
			report.Mismatches = append(report.Mismatches, PotMismatch{
				Pot:       pot,
				Balance:   balance.Pot(pot).Cents,
				LedgerSum: sums[pot],
			})
		}
	}

	if report.Clean {
		slog.DebugContext(ctx, "Ledger audit clean", "child_id", childID)
	} else {
		slog.ErrorContext(ctx, "Ledger audit found balance drift",
			"child_id", childID,
			"mismatches", len(report.Mismatches))
	}
	return report, nil
}

// VerifyAll audits every child and returns the reports with findings.
func (a *AuditService) VerifyAll(ctx context.Context) ([]AuditReport, error) {
	children, err := a.storage.ListChildren(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit all: %w", err)
	}
	var dirty []AuditReport
	for _, child := range children {
		report, err := a.VerifyChild(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		if !report.Clean {
			dirty = append(dirty, report)
		}
	}
	return dirty, nil
}
