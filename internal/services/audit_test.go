package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/storage"

	_ "modernc.org/sqlite"
)

func TestAuditClean(t *testing.T) {
	svc, repo := newTestService(t)
	audit := NewAuditService(repo)
	ctx := context.Background()

	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: core.NewDate(2026, 3, 2),
		Slices: slices(400, 400, 200, 0),
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}

	report, err := audit.VerifyChild(ctx, "c1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Clean || len(report.Mismatches) != 0 {
		t.Fatalf("expected clean report, got %+v", report)
	}

	dirty, err := audit.VerifyAll(ctx)
	if err != nil || len(dirty) != 0 {
		t.Fatalf("VerifyAll: dirty=%v err=%v", dirty, err)
	}
}

func TestAuditDetectsDrift(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	svc := NewLedgerService(repo, nil)
	audit := NewAuditService(repo)
	ctx := context.Background()

	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: core.NewDate(2026, 3, 2),
		Slices: slices(400, 400, 200, 0),
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}

	// Corrupt the snapshot out of band, the way a buggy client-side
	// read-then-write path used to.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer raw.Close()
	if _, err := raw.ExecContext(ctx, `UPDATE balances SET save_cents = save_cents + 77 WHERE child_id = 'c1'`); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}

	report, err := audit.VerifyChild(ctx, "c1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Clean {
		t.Fatal("audit missed the drift")
	}
	if len(report.Mismatches) != 1 || report.Mismatches[0].Pot != core.PotSave {
		t.Fatalf("unexpected mismatches %+v", report.Mismatches)
	}
	if report.Mismatches[0].Balance != 477 || report.Mismatches[0].LedgerSum != 400 {
		t.Fatalf("unexpected mismatch values %+v", report.Mismatches[0])
	}
}
