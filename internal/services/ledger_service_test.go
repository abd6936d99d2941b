package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/storage"
)

func newTestService(t *testing.T) (*LedgerService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	// nil AMQP client: events are skipped, which is the normal degraded mode.
	return NewLedgerService(repo, nil), repo
}

func seedChildAt(t *testing.T, repo *storage.SQLiteRepository, id string, age int, createdAt time.Time) {
	t.Helper()
	err := repo.CreateChild(context.Background(), core.Child{
		ID:        id,
		OwnerID:   "owner-1",
		Name:      "Mia",
		Age:       age,
		CreatedAt: createdAt,
	}, core.Settings{
		ChildID:              id,
		OwnerID:              "owner-1",
		InterestAprBasisPts:  DefaultAprBasisPoints,
		InvestThresholdCents: DefaultInvestThresholdCents,
		DonateMinAge:         DefaultDonateMinAge,
	})
	if err != nil {
		t.Fatalf("seed child: %v", err)
	}
}

func slices(spend, save, invest, donate int64) map[core.Pot]core.Money {
	m := map[core.Pot]core.Money{}
	for pot, cents := range map[core.Pot]int64{
		core.PotSpend:  spend,
		core.PotSave:   save,
		core.PotInvest: invest,
		core.PotDonate: donate,
	} {
		if cents != 0 {
			m[pot] = core.Money{Cents: cents}
		}
	}
	return m
}

func TestPayoutEndToEnd(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()

	receipt, err := svc.Payout(ctx, PayoutRequest{
		ChildID:    "c1",
		OwnerID:    "owner-1",
		OccurredOn: core.NewDate(2026, 3, 2),
		Slices:     slices(400, 400, 200, 0),
	})
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if len(receipt.TxIDs) != 4 {
		t.Fatalf("expected deposit + 3 allocations, got %d rows", len(receipt.TxIDs))
	}
	b := receipt.Balance
	if b.Spend.Cents != 400 || b.Save.Cents != 400 || b.Invest.Cents != 200 || b.Donate.Cents != 0 {
		t.Fatalf("unexpected balance %+v", b)
	}

	sums, err := repo.SumPots(ctx, "c1")
	if err != nil {
		t.Fatalf("sum pots: %v", err)
	}
	for _, pot := range core.Pots {
		if sums[pot] != b.Pot(pot).Cents {
			t.Fatalf("pot %s: ledger sum %d != balance %d", pot, sums[pot], b.Pot(pot).Cents)
		}
	}
}

func TestPayoutRejectedBeforeAnyWrite(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()

	// Pure "spend everything" violates the savings-share policy.
	_, err := svc.Payout(ctx, PayoutRequest{
		ChildID:    "c1",
		OwnerID:    "owner-1",
		OccurredOn: core.NewDate(2026, 3, 2),
		Slices:     slices(1000, 0, 0, 0),
	})
	if !errors.Is(err, core.ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}

	// No partial ledger rows may exist after a rejected call.
	if n, _ := repo.CountTransactions(ctx, "c1"); n != 0 {
		t.Fatalf("rejected payout left %d rows", n)
	}
}

func TestPayoutDonateGate(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "young", 5, time.Now().UTC())
	seedChildAt(t, repo, "old", 8, time.Now().UTC())
	ctx := context.Background()
	day := core.NewDate(2026, 3, 2)

	_, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "young", OwnerID: "owner-1", OccurredOn: day,
		Slices: slices(300, 300, 200, 200),
	})
	if !errors.Is(err, core.ErrPolicyViolation) {
		t.Fatalf("expected donate gate rejection, got %v", err)
	}

	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "old", OwnerID: "owner-1", OccurredOn: day,
		Slices: slices(300, 300, 200, 200),
	}); err != nil {
		t.Fatalf("payout for age-gated child: %v", err)
	}
}

func TestExpenseRejectsOverdraft(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()
	day := core.NewDate(2026, 3, 2)

	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: day,
		Slices: slices(400, 400, 200, 0),
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}

	_, err := svc.Expense(ctx, ExpenseRequest{
		ChildID: "c1", OwnerID: "owner-1", Pot: core.PotSpend,
		Amount: core.Money{Cents: 401}, OccurredOn: day,
	})
	if !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	balance, _ := svc.GetBalance(ctx, "c1")
	if balance.Spend.Cents != 400 {
		t.Fatalf("balance mutated by rejected expense: %+v", balance)
	}

	// Exact drain succeeds.
	if _, err := svc.Expense(ctx, ExpenseRequest{
		ChildID: "c1", OwnerID: "owner-1", Pot: core.PotSpend,
		Amount: core.Money{Cents: 400}, OccurredOn: day,
	}); err != nil {
		t.Fatalf("exact-drain expense: %v", err)
	}
}

func TestTransferInvestThresholdGate(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()
	day := core.NewDate(2026, 3, 2)

	// invest = threshold - 1
	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: day,
		Slices: slices(0, 1, 4999, 0),
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}

	_, err := svc.TransferInvest(ctx, TransferRequest{
		ChildID: "c1", OwnerID: "owner-1",
		Amount: core.Money{Cents: 1000}, OccurredOn: day,
	})
	if !errors.Is(err, core.ErrBelowThreshold) {
		t.Fatalf("expected ErrBelowThreshold, got %v", err)
	}

	// One more cent crosses the threshold.
	if _, err := svc.ExtraPayment(ctx, PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: day,
		Slices: slices(0, 0, 1, 0),
	}); err != nil {
		t.Fatalf("extra payment: %v", err)
	}

	receipt, err := svc.TransferInvest(ctx, TransferRequest{
		ChildID: "c1", OwnerID: "owner-1",
		Amount: core.Money{Cents: 1000}, OccurredOn: day,
	})
	if err != nil {
		t.Fatalf("transfer at threshold: %v", err)
	}
	if receipt.Balance.Invest.Cents != 4000 {
		t.Fatalf("invest after transfer = %d, want 4000", receipt.Balance.Invest.Cents)
	}
}

func TestAdjustCredits(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()

	receipt, err := svc.Adjust(ctx, AdjustRequest{
		ChildID: "c1", OwnerID: "owner-1", Pot: core.PotSave,
		Amount: core.Money{Cents: 250}, OccurredOn: core.NewDate(2026, 3, 2),
		Note: "found coins in the couch",
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if receipt.Balance.Save.Cents != 250 {
		t.Fatalf("save = %d, want 250", receipt.Balance.Save.Cents)
	}
}

func TestOverCreditCompensatedByExpense(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()

	// An adjustment credited too much; the downward correction is an
	// expense row, keeping amounts non-negative and direction kind-implied.
	if _, err := svc.Adjust(ctx, AdjustRequest{
		ChildID: "c1", OwnerID: "owner-1", Pot: core.PotSave,
		Amount: core.Money{Cents: 500}, OccurredOn: core.NewDate(2026, 3, 2),
		Note: "pocket money iou",
	}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	receipt, err := svc.Expense(ctx, ExpenseRequest{
		ChildID: "c1", OwnerID: "owner-1", Pot: core.PotSave,
		Amount: core.Money{Cents: 200}, OccurredOn: core.NewDate(2026, 3, 3),
		Note: "correction: iou was 3.00 not 5.00",
	})
	if err != nil {
		t.Fatalf("compensating expense: %v", err)
	}
	if receipt.Balance.Save.Cents != 300 {
		t.Fatalf("save = %d, want 300", receipt.Balance.Save.Cents)
	}

	sums, err := repo.SumPots(ctx, "c1")
	if err != nil {
		t.Fatalf("sum pots: %v", err)
	}
	if sums[core.PotSave] != 300 {
		t.Fatalf("ledger sum = %d, want 300", sums[core.PotSave])
	}
}

func TestHistoryAndStats(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()

	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: core.NewDate(2026, 3, 2),
		Slices: slices(400, 400, 200, 0),
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if _, err := svc.Expense(ctx, ExpenseRequest{
		ChildID: "c1", OwnerID: "owner-1", Pot: core.PotSpend,
		Amount: core.Money{Cents: 150}, OccurredOn: core.NewDate(2026, 3, 10),
	}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	history, err := svc.History(ctx, "c1", 2026, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(history))
	}

	stats, err := svc.MonthlyStats(ctx, "c1", 2026, 3)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Income.Cents != 1000 || stats.SpendAlloc.Cents != 400 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if n, _ := repo.CountTransactions(ctx, "c1"); n != 5 {
		t.Fatalf("transaction count = %d", n)
	}
}

func TestWishProgress(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()

	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID: "c1", OwnerID: "owner-1", OccurredOn: core.NewDate(2026, 3, 2),
		Slices: slices(0, 500, 500, 0),
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}

	status, err := svc.WishProgress(ctx, "c1", core.Money{Cents: 1000})
	if err != nil {
		t.Fatalf("wish progress: %v", err)
	}
	if status.Affordable || status.Progress != 0.5 || status.Save.Cents != 500 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestCreateChild(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	child, err := svc.CreateChild(ctx, CreateChildRequest{OwnerID: "owner-1", Name: "Ben", Age: 6})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if child.ID == "" {
		t.Fatal("child ID not assigned")
	}

	settings, err := repo.GetSettings(ctx, child.ID)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.InterestAprBasisPts != DefaultAprBasisPoints ||
		settings.InvestThresholdCents != DefaultInvestThresholdCents ||
		settings.DonateMinAge != DefaultDonateMinAge {
		t.Fatalf("unexpected default settings %+v", settings)
	}

	balance, err := repo.GetBalance(ctx, child.ID)
	if err != nil || balance.Total().Cents != 0 {
		t.Fatalf("new child balance %+v (err=%v)", balance, err)
	}

	if _, err := svc.CreateChild(ctx, CreateChildRequest{OwnerID: "owner-1"}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestTrendFromMonthEnd(t *testing.T) {
	svc, repo := newTestService(t)
	seedChildAt(t, repo, "c1", 8, time.Now().UTC())
	ctx := context.Background()

	// One payout in February, queried from March 31st: the short month must
	// still get its own bucket.
	if _, err := svc.Payout(ctx, PayoutRequest{
		ChildID:    "c1",
		OwnerID:    "owner-1",
		OccurredOn: core.NewDate(2026, 2, 14),
		Slices:     slices(0, 500, 0, 0),
	}); err != nil {
		t.Fatalf("payout: %v", err)
	}

	points, err := svc.Trend(ctx, "c1", core.NewDate(2026, 3, 31), 6)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(points) != 6 {
		t.Fatalf("expected 6 points, got %d", len(points))
	}
	if points[4].Year != 2026 || points[4].Month != 2 {
		t.Fatalf("bucket 4 = %d-%02d, want 2026-02", points[4].Year, points[4].Month)
	}
	if points[4].Total.Cents != 500 {
		t.Errorf("february total = %d, want 500", points[4].Total.Cents)
	}
}
