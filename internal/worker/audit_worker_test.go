package worker

import (
	"context"
	"testing"
	"time"

	"taschengeld/internal/amqp"
	"taschengeld/internal/core"
	"taschengeld/internal/services"
)

func TestHandleLedgerEventClean(t *testing.T) {
	repo, svc, _ := newTestSetup(t)
	ctx := context.Background()

	seedChild(t, repo, "c1", time.Now().UTC())
	receipt, err := svc.Payout(ctx, services.PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: core.Today(),
		Slices: map[core.Pot]core.Money{
			core.PotSpend:  {Cents: 400},
			core.PotSave:   {Cents: 400},
			core.PotInvest: {Cents: 200},
		},
	})
	if err != nil {
		t.Fatalf("payout: %v", err)
	}

	w := NewAuditWorker(services.NewAuditService(repo))
	msg := &amqp.LedgerEventMessage{
		ChildID:   "c1",
		Kind:      string(core.KindAllocation),
		TxIDs:     receipt.TxIDs,
		Timestamp: time.Now().UTC(),
	}
	if err := w.HandleLedgerEvent(ctx, msg); err != nil {
		t.Fatalf("handle event: %v", err)
	}
}

func TestHandleLedgerEventUnknownChild(t *testing.T) {
	repo, _, _ := newTestSetup(t)

	w := NewAuditWorker(services.NewAuditService(repo))
	msg := &amqp.LedgerEventMessage{ChildID: "ghost", Timestamp: time.Now().UTC()}
	if err := w.HandleLedgerEvent(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown child")
	}
}

func TestStartupAuditCheck(t *testing.T) {
	repo, svc, _ := newTestSetup(t)
	ctx := context.Background()

	seedChild(t, repo, "c1", time.Now().UTC())
	seedChild(t, repo, "c2", time.Now().UTC())
	if _, err := svc.Payout(ctx, services.PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: core.Today(),
		Slices: map[core.Pot]core.Money{core.PotSave: {Cents: 500}},
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}

	w := NewAuditWorker(services.NewAuditService(repo))
	if err := w.StartupAuditCheck(ctx); err != nil {
		t.Fatalf("startup audit: %v", err)
	}
}
