package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taschengeld/internal/amqp"
	"taschengeld/internal/core"
	"taschengeld/internal/ledger"
	"taschengeld/internal/storage"
)

const (
	StatusAccrued    AccrualStatus = "accrued"
	StatusNothingDue AccrualStatus = "nothing_due"
	StatusNoGrowth   AccrualStatus = "no_growth"
)

type (
	AccrualStatus string

	// AccrualOutcome reports one accrual run for one child.
	AccrualOutcome struct {
		Status   AccrualStatus
		Interest core.Money
		Days     int
		Balance  core.Balance
	}
)

// AccrualEngine credits simple interest on the save pot. The interest row,
// the balance credit and the watermark advance commit as one unit, which is
// what makes repeated runs on the same day idempotent: the second run sees
// the advanced watermark and reports nothing due.
type AccrualEngine struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewAccrualEngine(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *AccrualEngine {
	return &AccrualEngine{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Accrue computes and posts interest for the child up to today. The amount
// is computed against a pinned balance version; if the row moves before the
// commit, the whole computation is redone against fresh state.
func (e *AccrualEngine) Accrue(ctx context.Context, childID string, today core.Date) (AccrualOutcome, error) {
	child, err := e.storage.GetChild(ctx, childID)
	if err != nil {
		return AccrualOutcome{}, err
	}
	settings, err := e.storage.GetSettings(ctx, childID)
	if err != nil {
		return AccrualOutcome{}, err
	}

	for attempt := 1; attempt <= 3; attempt++ {
		balance, err := e.storage.GetBalance(ctx, childID)
		if err != nil {
			return AccrualOutcome{}, err
		}

		days, err := ledger.AccrualDays(balance.LastInterestOn, child, today)
		if err != nil {
			// A child without a creation date is a data-integrity gap,
			// not a transient fault; log it and give up.
			slog.ErrorContext(ctx, "Interest accrual has no base date",
				"child_id", childID)
			return AccrualOutcome{}, fmt.Errorf("accrue for %s: %w", childID, err)
		}
		if days <= 0 {
			return AccrualOutcome{Status: StatusNothingDue, Balance: balance}, nil
		}

		interest := ledger.InterestFor(balance.Save, settings.InterestAprBasisPts, days)
		if interest.Cents <= 0 {
			// No transaction for negligible balances; posting zero-cent
			// rows would only be log noise.
			return AccrualOutcome{Status: StatusNoGrowth, Days: days, Balance: balance}, nil
		}

		receipt, err := e.storage.ApplyBatch(ctx, storage.ApplyRequest{
			ChildID: childID,
			Transactions: []core.Transaction{{
				ChildID:    childID,
				OwnerID:    balance.OwnerID,
				Kind:       core.KindInterest,
				Pot:        core.PotSave,
				Amount:     interest,
				OccurredOn: today,
				Meta:       map[string]any{"days": days, "apr_bp": settings.InterestAprBasisPts},
			}},
			Watermark:       &today,
			ExpectedVersion: &balance.Version,
		})
		if errors.Is(err, core.ErrContention) {
			slog.WarnContext(ctx, "Accrual raced a concurrent write, recomputing",
				"child_id", childID,
				"attempt", attempt)
			continue
		}
		if err != nil {
			return AccrualOutcome{}, fmt.Errorf("apply interest: %w", err)
		}

		slog.InfoContext(ctx, "Interest credited",
			"child_id", childID,
			"interest_cents", interest.Cents,
			"days", days,
			"apr_bp", settings.InterestAprBasisPts)

		e.publishEvent(ctx, childID, receipt.TxIDs)
		return AccrualOutcome{
			Status:   StatusAccrued,
			Interest: interest,
			Days:     days,
			Balance:  receipt.Balance,
		}, nil
	}
	return AccrualOutcome{}, fmt.Errorf("accrue for %s: %w", childID, core.ErrContention)
}

func (e *AccrualEngine) publishEvent(ctx context.Context, childID string, txIDs []string) {
	if e.amqpClient == nil {
		return
	}
	if err := e.amqpClient.PublishLedgerEvent(ctx, childID, "interest", txIDs); err != nil {
		slog.ErrorContext(ctx, "Failed to publish interest event",
			"child_id", childID,
			"error", err)
	}
}
