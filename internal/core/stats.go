package core

import "time"

// MonthStats is a compact summary of ledger activity in a date range.
type MonthStats struct {
	SpendAlloc  Money
	SaveAlloc   Money
	InvestAlloc Money
	DonateAlloc Money
	Interest    Money
	Income      Money // deposits (weekly allowance and extra payments)
	TransferOut Money
}

// TrendPoint is the credited amount (allocations plus interest) of one
// calendar month.
type TrendPoint struct {
	Year  int
	Month int // 1-12
	Total Money
}

// ComputeMonthStats aggregates transactions whose occurredOn falls inside
// [from, to], both inclusive.
func ComputeMonthStats(txs []Transaction, from, to Date) MonthStats {
	var stats MonthStats
	for _, tx := range txs {
		d := tx.OccurredOn
		if d.IsZero() || d.Before(from.Time) || d.After(to.Time) {
			continue
		}
		switch tx.Kind {
		case KindAllocation:
			switch tx.Pot {
			case PotSpend:
				stats.SpendAlloc.Cents += tx.Amount.Cents
			case PotSave:
				stats.SaveAlloc.Cents += tx.Amount.Cents
			case PotInvest:
				stats.InvestAlloc.Cents += tx.Amount.Cents
			case PotDonate:
				stats.DonateAlloc.Cents += tx.Amount.Cents
			}
		case KindInterest:
			stats.Interest.Cents += tx.Amount.Cents
		case KindDeposit:
			stats.Income.Cents += tx.Amount.Cents
		case KindTransferOut:
			stats.TransferOut.Cents += tx.Amount.Cents
		}
	}
	return stats
}

// ComputeTrend buckets credited cents (allocations and interest) per
// calendar month for the last monthsBack months, oldest first.
func ComputeTrend(txs []Transaction, now Date, monthsBack int) []TrendPoint {
	if monthsBack <= 0 {
		return nil
	}
	points := make([]TrendPoint, monthsBack)
	index := make(map[string]int, monthsBack)
	for i := 0; i < monthsBack; i++ {
		m := MonthsBack(now, monthsBack-1-i)
		y, mo, _ := m.Date()
		points[i] = TrendPoint{Year: y, Month: int(mo)}
		index[monthKey(y, int(mo))] = i
	}
	for _, tx := range txs {
		if tx.Kind != KindAllocation && tx.Kind != KindInterest {
			continue
		}
		y, mo, _ := tx.OccurredOn.Date()
		if i, ok := index[monthKey(y, int(mo))]; ok {
			points[i].Total.Cents += tx.Amount.Cents
		}
	}
	return points
}

// MonthsBack returns the first day of the month n months before d's month.
// Stepping by whole months from day 1 keeps short months intact; stepping
// from day 29-31 would normalize into a neighboring month and skew the
// bucket list.
func MonthsBack(d Date, n int) Date {
	y, m, _ := d.Date()
	return NewDate(y, int(m)-n, 1)
}

// StartOfMonth returns the first day of the date's month.
func StartOfMonth(d Date) Date {
	y, m, _ := d.Date()
	return NewDate(y, int(m), 1)
}

// EndOfMonth returns the last day of the date's month.
func EndOfMonth(d Date) Date {
	y, m, _ := d.Date()
	return Date{Time: time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)}
}

func monthKey(year, month int) string {
	return NewDate(year, month, 1).Format("2006-01")
}
