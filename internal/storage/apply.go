package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taschengeld/internal/core"

	"github.com/google/uuid"
)

// maxApplyAttempts bounds the retries on a version conflict before the
// contention is surfaced to the caller.
const maxApplyAttempts = 3

// ApplyRequest is one logical money-movement event: a non-empty batch of
// transaction rows plus the balance mutation they imply.
type ApplyRequest struct {
	ChildID      string
	Transactions []core.Transaction

	// Watermark, when set, advances balances.last_interest_on in the same
	// database transaction as the rows and the balance update.
	Watermark *core.Date

	// ExpectedVersion pins the apply to the balance version the caller
	// computed its amounts against. When the row has moved on, the apply
	// fails with ErrContention instead of retrying internally, so the
	// caller can recompute (interest accrual does this).
	ExpectedVersion *int64
}

// Receipt reports a committed apply: the assigned transaction IDs and the
// balance row as written.
type Receipt struct {
	TxIDs   []string
	Balance core.Balance
}

// ApplyBatch durably records one logical event. The transaction inserts,
// the balance read-modify-write and the optional watermark advance commit
// as a single SQLite transaction guarded by the balance row's version
// column; partial writes are impossible. Any pot that would go negative
// rejects the whole batch with ErrInsufficientFunds before anything is
// written.
func (r *SQLiteRepository) ApplyBatch(ctx context.Context, req ApplyRequest) (Receipt, error) {
	if len(req.Transactions) == 0 {
		return Receipt{}, core.ErrEmptyBatch
	}
	for i := range req.Transactions {
		tx := &req.Transactions[i]
		if tx.ChildID == "" {
			tx.ChildID = req.ChildID
		}
		if err := tx.Validate(); err != nil {
			return Receipt{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		if tx.ChildID != req.ChildID {
			return Receipt{}, fmt.Errorf("transaction %d belongs to child %s, batch is for %s", i, tx.ChildID, req.ChildID)
		}
	}

	deltas := core.DeltasFor(req.Transactions)

	var (
		receipt Receipt
		err     error
	)
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		receipt, err = r.applyOnce(ctx, req, deltas)
		if !errors.Is(err, core.ErrContention) {
			return receipt, err
		}
		// The caller computed against a pinned version; retrying here
		// would commit stale amounts.
		if req.ExpectedVersion != nil {
			return Receipt{}, err
		}
		slog.WarnContext(ctx, "Balance version conflict, retrying",
			"child_id", req.ChildID,
			"attempt", attempt)
	}
	return Receipt{}, fmt.Errorf("apply batch for %s after %d attempts: %w", req.ChildID, maxApplyAttempts, core.ErrContention)
}

func (r *SQLiteRepository) applyOnce(ctx context.Context, req ApplyRequest, deltas core.PotDeltas) (Receipt, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("begin apply: %w", err)
	}
	defer dbTx.Rollback()

	balance, err := scanBalance(dbTx.QueryRowContext(ctx, balanceQuery, req.ChildID), req.ChildID)
	if err != nil {
		return Receipt{}, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != balance.Version {
		return Receipt{}, fmt.Errorf("balance version moved from %d to %d: %w",
			*req.ExpectedVersion, balance.Version, core.ErrContention)
	}

	next, err := deltas.Apply(balance)
	if err != nil {
		return Receipt{}, err
	}
	if req.Watermark != nil {
		next.LastInterestOn = *req.Watermark
	}

	now := time.Now().UTC()
	txIDs := make([]string, 0, len(req.Transactions))
	for _, tx := range req.Transactions {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		if err := insertTransaction(ctx, dbTx, tx); err != nil {
			return Receipt{}, err
		}
		txIDs = append(txIDs, tx.ID)
	}

	var watermark any
	if !next.LastInterestOn.IsZero() {
		watermark = next.LastInterestOn.String()
	}
	res, err := dbTx.ExecContext(ctx,
		`UPDATE balances
		 SET spend_cents = ?, save_cents = ?, invest_cents = ?, donate_cents = ?,
		     last_interest_on = ?, version = version + 1, updated_at = ?
		 WHERE child_id = ? AND version = ?`,
		next.Spend.Cents, next.Save.Cents, next.Invest.Cents, next.Donate.Cents,
		watermark, now, req.ChildID, balance.Version)
	if err != nil {
		return Receipt{}, fmt.Errorf("update balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Receipt{}, fmt.Errorf("update balance result: %w", err)
	}
	if affected == 0 {
		return Receipt{}, fmt.Errorf("balance row for %s changed underneath: %w", req.ChildID, core.ErrContention)
	}

	if err := dbTx.Commit(); err != nil {
		return Receipt{}, fmt.Errorf("commit apply: %w", err)
	}

	next.Version = balance.Version + 1
	next.UpdatedAt = now

	slog.InfoContext(ctx, "Ledger batch applied",
		"child_id", req.ChildID,
		"rows", len(txIDs),
		"kind", string(req.Transactions[0].Kind),
		"version", next.Version)

	return Receipt{TxIDs: txIDs, Balance: next}, nil
}

func insertTransaction(ctx context.Context, dbTx *sql.Tx, tx core.Transaction) error {
	var pot any
	if tx.Pot != "" {
		pot = string(tx.Pot)
	}
	var meta any
	if len(tx.Meta) > 0 {
		encoded, err := json.Marshal(tx.Meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		meta = string(encoded)
	}
	_, err := dbTx.ExecContext(ctx,
		`INSERT INTO transactions (id, child_id, owner_id, kind, pot, amount_cents, occurred_on, created_at, note, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.ChildID, tx.OwnerID, string(tx.Kind), pot, tx.Amount.Cents,
		tx.OccurredOn.String(), tx.CreatedAt.UTC(), tx.Note, meta)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}
