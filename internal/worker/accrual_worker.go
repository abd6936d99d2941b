package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"taschengeld/internal/core"
	"taschengeld/internal/services"
	"taschengeld/internal/storage"
)

// AccrualWorker sweeps all children and credits due savings interest
type AccrualWorker struct {
	storage     *storage.SQLiteRepository
	engine      *services.AccrualEngine
	parallelism int
}

func NewAccrualWorker(storage *storage.SQLiteRepository, engine *services.AccrualEngine, parallelism int) *AccrualWorker {
	if parallelism < 1 {
		parallelism = 1
	}
	return &AccrualWorker{
		storage:     storage,
		engine:      engine,
		parallelism: parallelism,
	}
}

// SweepResult summarizes a single accrual sweep across all children
type SweepResult struct {
	Children     int
	Accrued      int
	NothingDue   int
	NoGrowth     int
	Failed       int
	InterestPaid int64
}

// RunSweep accrues interest for every child as of the given day.
// Children are processed concurrently up to the configured parallelism;
// a failure for one child is logged and counted but does not stop the sweep.
func (w *AccrualWorker) RunSweep(ctx context.Context, today core.Date) (SweepResult, error) {
	children, err := w.storage.ListChildren(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list children for sweep: %w", err)
	}

	if len(children) == 0 {
		slog.InfoContext(ctx, "No children to sweep")
		return SweepResult{}, nil
	}

	slog.InfoContext(ctx, "Starting accrual sweep",
		"children", len(children),
		"as_of", today.String(),
		"parallelism", w.parallelism)

	var accrued, nothingDue, noGrowth, failed, interestPaid atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)

	for _, child := range children {
		g.Go(func() error {
			outcome, err := w.engine.Accrue(gctx, child.ID, today)
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(gctx, "Accrual failed for child",
					"child_id", child.ID,
					"error", err)
				return nil
			}

			switch outcome.Status {
			case services.StatusAccrued:
				accrued.Add(1)
				interestPaid.Add(outcome.Interest.Cents)
			case services.StatusNothingDue:
				nothingDue.Add(1)
			case services.StatusNoGrowth:
				noGrowth.Add(1)
			}
			return nil
		})
	}

	// Workers swallow per-child errors, so Wait only reports context cancellation
	if err := g.Wait(); err != nil {
		return SweepResult{}, fmt.Errorf("accrual sweep interrupted: %w", err)
	}

	result := SweepResult{
		Children:     len(children),
		Accrued:      int(accrued.Load()),
		NothingDue:   int(nothingDue.Load()),
		NoGrowth:     int(noGrowth.Load()),
		Failed:       int(failed.Load()),
		InterestPaid: interestPaid.Load(),
	}

	slog.InfoContext(ctx, "Accrual sweep complete",
		"children", result.Children,
		"accrued", result.Accrued,
		"nothing_due", result.NothingDue,
		"no_growth", result.NoGrowth,
		"failed", result.Failed,
		"interest_paid_cents", result.InterestPaid)

	return result, nil
}
