// Package storage persists the ledger and its derived balance rows in
// SQLite. All money movement goes through ApplyBatch, which commits the
// transaction rows, the balance update and the accrual watermark as one
// database transaction.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"taschengeld/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; funneling every connection
	// through a single pooled conn turns SQLITE_BUSY into queueing.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateChild inserts the child together with its default settings and a
// zeroed balance row, all in one transaction.
func (r *SQLiteRepository) CreateChild(ctx context.Context, child core.Child, settings core.Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create child: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO children (id, owner_id, name, age, donate_flag, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		child.ID, child.OwnerID, child.Name, child.Age, child.DonateFlag, child.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert child: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings (child_id, owner_id, interest_apr_basis_points, invest_threshold_cents, payout_weekday, donate_min_age)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		child.ID, child.OwnerID, settings.InterestAprBasisPts, settings.InvestThresholdCents,
		int(settings.PayoutWeekday), settings.DonateMinAge)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (child_id, owner_id, updated_at) VALUES (?, ?, ?)`,
		child.ID, child.OwnerID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create child: %w", err)
	}

	slog.InfoContext(ctx, "Child created",
		"child_id", child.ID,
		"name", child.Name)
	return nil
}

func (r *SQLiteRepository) GetChild(ctx context.Context, childID string) (core.Child, error) {
	var (
		child      core.Child
		donateFlag int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, age, donate_flag, created_at FROM children WHERE id = ?`, childID).
		Scan(&child.ID, &child.OwnerID, &child.Name, &child.Age, &donateFlag, &child.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Child{}, fmt.Errorf("child %s: %w", childID, core.ErrChildNotFound)
	}
	if err != nil {
		return core.Child{}, fmt.Errorf("get child: %w", err)
	}
	child.DonateFlag = donateFlag != 0
	return child, nil
}

func (r *SQLiteRepository) ListChildren(ctx context.Context) ([]core.Child, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, age, donate_flag, created_at FROM children ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []core.Child
	for rows.Next() {
		var (
			child      core.Child
			donateFlag int
		)
		if err := rows.Scan(&child.ID, &child.OwnerID, &child.Name, &child.Age, &donateFlag, &child.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		child.DonateFlag = donateFlag != 0
		children = append(children, child)
	}
	return children, rows.Err()
}

func (r *SQLiteRepository) GetSettings(ctx context.Context, childID string) (core.Settings, error) {
	var (
		s       core.Settings
		weekday int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT child_id, owner_id, interest_apr_basis_points, invest_threshold_cents, payout_weekday, donate_min_age
		 FROM settings WHERE child_id = ?`, childID).
		Scan(&s.ChildID, &s.OwnerID, &s.InterestAprBasisPts, &s.InvestThresholdCents, &weekday, &s.DonateMinAge)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, fmt.Errorf("settings for %s: %w", childID, core.ErrChildNotFound)
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	s.PayoutWeekday = time.Weekday(weekday)
	return s, nil
}

func (r *SQLiteRepository) GetBalance(ctx context.Context, childID string) (core.Balance, error) {
	return scanBalance(r.db.QueryRowContext(ctx, balanceQuery, childID), childID)
}

const balanceQuery = `SELECT child_id, owner_id, spend_cents, save_cents, invest_cents, donate_cents,
	last_interest_on, version, updated_at FROM balances WHERE child_id = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner, childID string) (core.Balance, error) {
	var (
		b         core.Balance
		watermark sql.NullString
	)
	err := row.Scan(&b.ChildID, &b.OwnerID, &b.Spend.Cents, &b.Save.Cents, &b.Invest.Cents, &b.Donate.Cents,
		&watermark, &b.Version, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Balance{}, fmt.Errorf("balance for %s: %w", childID, core.ErrChildNotFound)
	}
	if err != nil {
		return core.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	if watermark.Valid && watermark.String != "" {
		d, err := core.ParseDate(watermark.String)
		if err != nil {
			return core.Balance{}, fmt.Errorf("parse watermark %q: %w", watermark.String, err)
		}
		b.LastInterestOn = d
	}
	return b, nil
}

// ListTransactions returns the child's ledger rows with occurredOn inside
// [from, to], both inclusive, in chronological order. createdAt breaks ties
// between rows backdated to the same day.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, childID string, from, to core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, child_id, owner_id, kind, pot, amount_cents, occurred_on, created_at, note, meta
		 FROM transactions
		 WHERE child_id = ? AND occurred_on >= ? AND occurred_on <= ?
		 ORDER BY occurred_on, created_at`,
		childID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		tx         core.Transaction
		pot        sql.NullString
		occurredOn string
		meta       sql.NullString
	)
	err := rows.Scan(&tx.ID, &tx.ChildID, &tx.OwnerID, (*string)(&tx.Kind), &pot, &tx.Amount.Cents,
		&occurredOn, &tx.CreatedAt, &tx.Note, &meta)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	if pot.Valid {
		tx.Pot = core.Pot(pot.String)
	}
	d, err := core.ParseDate(occurredOn)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_on %q: %w", occurredOn, err)
	}
	tx.OccurredOn = d
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &tx.Meta); err != nil {
			return core.Transaction{}, fmt.Errorf("decode meta: %w", err)
		}
	}
	return tx, nil
}

// SumPots replays the ledger for one child and returns the signed cent sum
// per pot. Used by the audit path to verify the balance row.
func (r *SQLiteRepository) SumPots(ctx context.Context, childID string) (map[core.Pot]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pot, SUM(CASE WHEN kind IN ('expense', 'transfer_out') THEN -amount_cents ELSE amount_cents END)
		 FROM transactions
		 WHERE child_id = ? AND pot IS NOT NULL
		 GROUP BY pot`, childID)
	if err != nil {
		return nil, fmt.Errorf("sum pots: %w", err)
	}
	defer rows.Close()

	sums := make(map[core.Pot]int64, len(core.Pots))
	for rows.Next() {
		var (
			pot string
			sum int64
		)
		if err := rows.Scan(&pot, &sum); err != nil {
			return nil, fmt.Errorf("scan pot sum: %w", err)
		}
		sums[core.Pot(pot)] = sum
	}
	return sums, rows.Err()
}

// CountTransactions returns the number of ledger rows for a child.
func (r *SQLiteRepository) CountTransactions(ctx context.Context, childID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE child_id = ?`, childID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
