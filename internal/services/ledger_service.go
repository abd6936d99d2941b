// Package services orchestrates the ledger engine: it validates incoming
// money-movement events, drives the storage layer's atomic write path and
// publishes an event per committed batch.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taschengeld/internal/amqp"
	"taschengeld/internal/core"
	"taschengeld/internal/ledger"
	"taschengeld/internal/storage"

	"github.com/google/uuid"
)

// Default per-child settings, matching the values a new child starts with.
const (
	DefaultAprBasisPoints       = 200
	DefaultInvestThresholdCents = 5000
	DefaultDonateMinAge         = 7
)

// LedgerService is the single API surface for money movement. Every UI
// action (payout, extra payment, expense, transfer, adjustment) goes through
// here; no caller writes transactions or balances directly.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

type CreateChildRequest struct {
	OwnerID    string
	Name       string
	Age        int
	DonateFlag bool
}

// CreateChild creates the child with default settings and a zeroed balance.
func (s *LedgerService) CreateChild(ctx context.Context, req CreateChildRequest) (core.Child, error) {
	if req.Name == "" {
		return core.Child{}, fmt.Errorf("child name must not be empty: %w", core.ErrInvalidAmount)
	}
	child := core.Child{
		ID:         uuid.NewString(),
		OwnerID:    req.OwnerID,
		Name:       req.Name,
		Age:        req.Age,
		DonateFlag: req.DonateFlag,
		CreatedAt:  time.Now().UTC(),
	}
	settings := core.Settings{
		ChildID:              child.ID,
		OwnerID:              req.OwnerID,
		InterestAprBasisPts:  DefaultAprBasisPoints,
		InvestThresholdCents: DefaultInvestThresholdCents,
		DonateMinAge:         DefaultDonateMinAge,
	}
	if err := s.storage.CreateChild(ctx, child, settings); err != nil {
		return core.Child{}, fmt.Errorf("create child: %w", err)
	}
	return child, nil
}

// PayoutRequest carries a payout or extra payment: a total implied by the
// slices, fully assigned across pots.
type PayoutRequest struct {
	ChildID    string
	OwnerID    string
	OccurredOn core.Date
	Slices     map[core.Pot]core.Money
	Note       string
}

func (r PayoutRequest) total() core.Money {
	var sum int64
	for _, m := range r.Slices {
		sum += m.Cents
	}
	return core.Money{Cents: sum}
}

// Payout records a weekly allowance: one unallocated deposit row plus one
// allocation row per nonzero slice, committed atomically with the balance
// update. The savings-share policy applies.
func (s *LedgerService) Payout(ctx context.Context, req PayoutRequest) (storage.Receipt, error) {
	return s.payment(ctx, req, "weekly_allowance")
}

// ExtraPayment records an out-of-schedule payment with the same allocation
// rules as a payout.
func (s *LedgerService) ExtraPayment(ctx context.Context, req PayoutRequest) (storage.Receipt, error) {
	return s.payment(ctx, req, "extra_payment")
}

func (s *LedgerService) payment(ctx context.Context, req PayoutRequest, source string) (storage.Receipt, error) {
	total := req.total()
	if err := ledger.ValidateAllocation(total, req.Slices, ledger.RequireSavingsShare{}); err != nil {
		return storage.Receipt{}, fmt.Errorf("validate %s: %w", source, err)
	}

	if req.Slices[core.PotDonate].Cents > 0 {
		if err := s.checkDonateEnabled(ctx, req.ChildID); err != nil {
			return storage.Receipt{}, err
		}
	}

	txs := []core.Transaction{{
		ChildID:    req.ChildID,
		OwnerID:    req.OwnerID,
		Kind:       core.KindDeposit,
		Amount:     total,
		OccurredOn: req.OccurredOn,
		Note:       req.Note,
		Meta:       map[string]any{"source": source},
	}}
	for _, pot := range core.Pots {
		amount := req.Slices[pot]
		if amount.Cents <= 0 {
			continue
		}
		txs = append(txs, core.Transaction{
			ChildID:    req.ChildID,
			OwnerID:    req.OwnerID,
			Kind:       core.KindAllocation,
			Pot:        pot,
			Amount:     amount,
			OccurredOn: req.OccurredOn,
			Meta:       map[string]any{"source": source},
		})
	}

	receipt, err := s.storage.ApplyBatch(ctx, storage.ApplyRequest{
		ChildID:      req.ChildID,
		Transactions: txs,
	})
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("apply %s: %w", source, err)
	}

	s.publishEvent(ctx, req.ChildID, source, receipt.TxIDs)
	return receipt, nil
}

func (s *LedgerService) checkDonateEnabled(ctx context.Context, childID string) error {
	child, err := s.storage.GetChild(ctx, childID)
	if err != nil {
		return err
	}
	settings, err := s.storage.GetSettings(ctx, childID)
	if err != nil {
		return err
	}
	balance, err := s.storage.GetBalance(ctx, childID)
	if err != nil {
		return err
	}
	if !ledger.DonateEnabled(child, balance, settings) {
		return fmt.Errorf("donate pot not enabled for child %s: %w", childID, core.ErrPolicyViolation)
	}
	return nil
}

// ExpenseRequest debits a single pot.
type ExpenseRequest struct {
	ChildID    string
	OwnerID    string
	Pot        core.Pot
	Amount     core.Money
	OccurredOn core.Date
	Note       string
}

// Expense records money leaving a pot. An amount exceeding the pot's
// balance is rejected with ErrInsufficientFunds, never clamped.
func (s *LedgerService) Expense(ctx context.Context, req ExpenseRequest) (storage.Receipt, error) {
	if err := req.Amount.Validate(); err != nil {
		return storage.Receipt{}, err
	}
	receipt, err := s.storage.ApplyBatch(ctx, storage.ApplyRequest{
		ChildID: req.ChildID,
		Transactions: []core.Transaction{{
			ChildID:    req.ChildID,
			OwnerID:    req.OwnerID,
			Kind:       core.KindExpense,
			Pot:        req.Pot,
			Amount:     req.Amount,
			OccurredOn: req.OccurredOn,
			Note:       req.Note,
		}},
	})
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("apply expense: %w", err)
	}
	s.publishEvent(ctx, req.ChildID, "expense", receipt.TxIDs)
	return receipt, nil
}

// TransferRequest moves money out of the invest pot once the threshold is
// crossed.
type TransferRequest struct {
	ChildID    string
	OwnerID    string
	Amount     core.Money
	OccurredOn core.Date
	Note       string
}

// TransferInvest re-checks the threshold against the live balance at the
// moment of the transfer. The apply is pinned to the version that check ran
// against; a concurrent debit forces a re-read and re-check rather than a
// transfer from a pot that has since dropped below the threshold.
func (s *LedgerService) TransferInvest(ctx context.Context, req TransferRequest) (storage.Receipt, error) {
	if err := req.Amount.Validate(); err != nil {
		return storage.Receipt{}, err
	}
	settings, err := s.storage.GetSettings(ctx, req.ChildID)
	if err != nil {
		return storage.Receipt{}, err
	}

	for attempt := 1; attempt <= 3; attempt++ {
		balance, err := s.storage.GetBalance(ctx, req.ChildID)
		if err != nil {
			return storage.Receipt{}, err
		}
		if !ledger.CanTransferInvest(balance, settings) {
			return storage.Receipt{}, fmt.Errorf("invest %d below threshold %d: %w",
				balance.Invest.Cents, settings.InvestThresholdCents, core.ErrBelowThreshold)
		}

		receipt, err := s.storage.ApplyBatch(ctx, storage.ApplyRequest{
			ChildID: req.ChildID,
			Transactions: []core.Transaction{{
				ChildID:    req.ChildID,
				OwnerID:    req.OwnerID,
				Kind:       core.KindTransferOut,
				Pot:        core.PotInvest,
				Amount:     req.Amount,
				OccurredOn: req.OccurredOn,
				Note:       req.Note,
			}},
			ExpectedVersion: &balance.Version,
		})
		if errors.Is(err, core.ErrContention) {
			slog.WarnContext(ctx, "Transfer raced a concurrent write, re-checking threshold",
				"child_id", req.ChildID,
				"attempt", attempt)
			continue
		}
		if err != nil {
			return storage.Receipt{}, fmt.Errorf("apply transfer: %w", err)
		}
		s.publishEvent(ctx, req.ChildID, "invest_transfer", receipt.TxIDs)
		return receipt, nil
	}
	return storage.Receipt{}, fmt.Errorf("transfer for %s: %w", req.ChildID, core.ErrContention)
}

// AdjustRequest is a manual correction crediting one pot. The ledger is
// append-only, so a wrong row is compensated by a new row rather than
// edited: adjustments credit, and a downward correction is an expense row
// with an explanatory note.
type AdjustRequest struct {
	ChildID    string
	OwnerID    string
	Pot        core.Pot
	Amount     core.Money
	OccurredOn core.Date
	Note       string
}

func (s *LedgerService) Adjust(ctx context.Context, req AdjustRequest) (storage.Receipt, error) {
	if err := req.Amount.Validate(); err != nil {
		return storage.Receipt{}, err
	}
	receipt, err := s.storage.ApplyBatch(ctx, storage.ApplyRequest{
		ChildID: req.ChildID,
		Transactions: []core.Transaction{{
			ChildID:    req.ChildID,
			OwnerID:    req.OwnerID,
			Kind:       core.KindAdjustment,
			Pot:        req.Pot,
			Amount:     req.Amount,
			OccurredOn: req.OccurredOn,
			Note:       req.Note,
		}},
	})
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("apply adjustment: %w", err)
	}
	s.publishEvent(ctx, req.ChildID, "adjustment", receipt.TxIDs)
	return receipt, nil
}

// GetBalance reads the cached balance row; the ledger is not replayed.
func (s *LedgerService) GetBalance(ctx context.Context, childID string) (core.Balance, error) {
	return s.storage.GetBalance(ctx, childID)
}

// ListChildren returns every child known to the engine.
func (s *LedgerService) ListChildren(ctx context.Context) ([]core.Child, error) {
	return s.storage.ListChildren(ctx)
}

// History lists one month of ledger rows in chronological order.
func (s *LedgerService) History(ctx context.Context, childID string, year, month int) ([]core.Transaction, error) {
	first := core.NewDate(year, month, 1)
	return s.storage.ListTransactions(ctx, childID, first, core.EndOfMonth(first))
}

// MonthlyStats aggregates one month of ledger activity.
func (s *LedgerService) MonthlyStats(ctx context.Context, childID string, year, month int) (core.MonthStats, error) {
	first := core.NewDate(year, month, 1)
	last := core.EndOfMonth(first)
	txs, err := s.storage.ListTransactions(ctx, childID, first, last)
	if err != nil {
		return core.MonthStats{}, err
	}
	return core.ComputeMonthStats(txs, first, last), nil
}

// Trend returns credited growth per month for the trailing window.
func (s *LedgerService) Trend(ctx context.Context, childID string, today core.Date, months int) ([]core.TrendPoint, error) {
	from := core.MonthsBack(today, months-1)
	txs, err := s.storage.ListTransactions(ctx, childID, from, today)
	if err != nil {
		return nil, err
	}
	return core.ComputeTrend(txs, today, months), nil
}

// WishStatus compares a wish price against the live save balance.
type WishStatus struct {
	Affordable bool
	Progress   float64
	Save       core.Money
}

func (s *LedgerService) WishProgress(ctx context.Context, childID string, price core.Money) (WishStatus, error) {
	balance, err := s.storage.GetBalance(ctx, childID)
	if err != nil {
		return WishStatus{}, err
	}
	return WishStatus{
		Affordable: core.WishAffordable(price, balance.Save),
		Progress:   core.WishProgress(price, balance.Save),
		Save:       balance.Save,
	}, nil
}

func (s *LedgerService) publishEvent(ctx context.Context, childID, kind string, txIDs []string) {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping ledger event", "kind", kind)
		return
	}
	// The batch is already committed; a publish failure must not fail the
	// request.
	if err := s.amqpClient.PublishLedgerEvent(ctx, childID, kind, txIDs); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"child_id", childID,
			"kind", kind,
			"error", err)
	}
}
