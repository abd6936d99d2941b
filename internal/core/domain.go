package core

import (
	"errors"
	"time"
)

const (
	PotSpend  Pot = "spend"
	PotSave   Pot = "save"
	PotInvest Pot = "invest"
	PotDonate Pot = "donate"
)

const (
	KindDeposit     TxKind = "deposit"
	KindAllocation  TxKind = "allocation"
	KindExpense     TxKind = "expense"
	KindInterest    TxKind = "interest"
	KindTransferOut TxKind = "transfer_out"
	KindAdjustment  TxKind = "adjustment"
)

type (
	// Pot names one of the four buckets a child's money lives in.
	// The zero value means "no pot" and is only valid on deposit rows.
	Pot string

	// TxKind classifies a ledger row. Direction is implied by the kind:
	// expense and transfer_out debit their pot, allocation, interest and
	// adjustment credit it, and a deposit touches no pot at all until it
	// is allocated.
	TxKind string

	Date struct {
		time.Time
	}

	// Transaction is an immutable ledger fact. Rows are never updated or
	// deleted; corrections are recorded as new adjustment rows.
	Transaction struct {
		ID         string
		ChildID    string
		OwnerID    string
		Kind       TxKind
		Pot        Pot // empty for unallocated deposits
		Amount     Money
		OccurredOn Date
		CreatedAt  time.Time
		Note       string
		Meta       map[string]any
	}

	// Balance is the materialized per-child aggregate over the ledger.
	// Each pot is kept >= 0 by construction; Version is the optimistic
	// concurrency token guarding read-modify-write cycles.
	Balance struct {
		ChildID        string
		OwnerID        string
		Spend          Money
		Save           Money
		Invest         Money
		Donate         Money
		LastInterestOn Date // zero until the first interest accrual
		Version        int64
		UpdatedAt      time.Time
	}

	// PotDeltas carries the signed cent movement of one logical event,
	// keyed by pot.
	PotDeltas map[Pot]int64

	// Settings is per-child configuration, owned externally and consumed
	// read-only by the engine.
	Settings struct {
		ChildID              string
		OwnerID              string
		InterestAprBasisPts  int64
		InvestThresholdCents int64
		PayoutWeekday        time.Weekday
		DonateMinAge         int
	}

	// Child is the slice of the external profile entity the engine needs.
	Child struct {
		ID         string
		OwnerID    string
		Name       string
		Age        int
		DonateFlag bool
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrUnknownPot        = errors.New("unknown pot")
	ErrUnknownKind       = errors.New("unknown transaction kind")
	ErrSliceMismatch     = errors.New("allocation slices do not sum to total")
	ErrPolicyViolation   = errors.New("allocation violates split policy")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBelowThreshold    = errors.New("invest balance below transfer threshold")
	ErrContention        = errors.New("balance update contention")
	ErrNoBaseDate        = errors.New("no base date for interest accrual")
	ErrChildNotFound     = errors.New("child not found")
	ErrEmptyBatch        = errors.New("empty transaction batch")
)

// Pots lists every pot in display order.
var Pots = []Pot{PotSpend, PotSave, PotInvest, PotDonate}

func (p Pot) Valid() bool {
	switch p {
	case PotSpend, PotSave, PotInvest, PotDonate:
		return true
	}
	return false
}

func (k TxKind) Valid() bool {
	switch k {
	case KindDeposit, KindAllocation, KindExpense, KindInterest, KindTransferOut, KindAdjustment:
		return true
	}
	return false
}

// Debits reports whether the kind reduces its pot.
func (k TxKind) Debits() bool {
	return k == KindExpense || k == KindTransferOut
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Today returns the current UTC calendar date.
func Today() Date {
	return DateOf(time.Now())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// DaysBetween returns the whole calendar days from d to other using UTC
// date components, so time-of-day and DST shifts never contribute.
func (d Date) DaysBetween(other Date) int {
	a := DateOf(d.Time).Time
	b := DateOf(other.Time).Time
	return int(b.Sub(a).Hours() / 24)
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t.UTC()}, nil
}

// Signed returns the balance contribution of the transaction in cents.
// Deposits carry no pot and contribute zero to every pot sum.
func (t Transaction) Signed() int64 {
	if t.Pot == "" {
		return 0
	}
	if t.Kind.Debits() {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (t Transaction) Validate() error {
	if t.ChildID == "" {
		return ErrChildNotFound
	}
	if !t.Kind.Valid() {
		return ErrUnknownKind
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if t.Pot == "" {
		if t.Kind != KindDeposit {
			return ErrUnknownPot
		}
	} else if !t.Pot.Valid() {
		return ErrUnknownPot
	}
	return t.OccurredOn.Validate()
}

// Pot returns the balance of a single pot.
func (b Balance) Pot(p Pot) Money {
	switch p {
	case PotSpend:
		return b.Spend
	case PotSave:
		return b.Save
	case PotInvest:
		return b.Invest
	case PotDonate:
		return b.Donate
	}
	return Money{}
}

func (b Balance) setPot(p Pot, m Money) Balance {
	switch p {
	case PotSpend:
		b.Spend = m
	case PotSave:
		b.Save = m
	case PotInvest:
		b.Invest = m
	case PotDonate:
		b.Donate = m
	}
	return b
}

// Total returns the sum of all four pots.
func (b Balance) Total() Money {
	return Money{Cents: b.Spend.Cents + b.Save.Cents + b.Invest.Cents + b.Donate.Cents}
}

// Apply adds the signed deltas to the balance and returns the result.
// The whole application is rejected with ErrInsufficientFunds if any pot
// would end up negative; a short pot is never silently clamped to zero,
// because clamping hides accounting errors.
func (d PotDeltas) Apply(b Balance) (Balance, error) {
	next := b
	for _, p := range Pots {
		delta, ok := d[p]
		if !ok || delta == 0 {
			continue
		}
		sum := next.Pot(p).Cents + delta
		if sum < 0 {
			return Balance{}, ErrInsufficientFunds
		}
		next = next.setPot(p, Money{Cents: sum})
	}
	return next, nil
}

// DeltasFor folds a transaction batch into signed pot deltas.
func DeltasFor(txs []Transaction) PotDeltas {
	deltas := make(PotDeltas)
	for _, t := range txs {
		if t.Pot == "" {
			continue
		}
		deltas[t.Pot] += t.Signed()
	}
	return deltas
}
