package ledger

import "taschengeld/internal/core"

const (
	basisPointDivisor = 10_000
	daysPerYear       = 365
)

// InterestFor computes simple interest on a save balance for a whole number
// of elapsed calendar days at the given APR in basis points.
//
// The computation stays in int64 and floors the division, so the engine
// never over-credits: interest = floor(save * aprBp * days / (10000 * 365)).
// Non-positive inputs yield zero.
func InterestFor(save core.Money, aprBasisPoints int64, days int) core.Money {
	if save.Cents <= 0 || aprBasisPoints <= 0 || days <= 0 {
		return core.Money{}
	}
	cents := save.Cents * aprBasisPoints * int64(days) / (basisPointDivisor * daysPerYear)
	return core.Money{Cents: cents}
}

// AccrualDays returns the whole calendar days between the accrual base date
// and today. The base is the balance watermark when set, otherwise the
// child's creation date; with neither, accrual cannot run.
func AccrualDays(watermark core.Date, child core.Child, today core.Date) (int, error) {
	base := watermark
	if base.IsZero() {
		if child.CreatedAt.IsZero() {
			return 0, core.ErrNoBaseDate
		}
		base = core.DateOf(child.CreatedAt)
	}
	return base.DaysBetween(today), nil
}
