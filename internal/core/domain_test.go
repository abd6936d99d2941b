package core

import (
	"errors"
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		name string
		a, b Date
		want int
	}{
		{"same day", NewDate(2026, 3, 1), NewDate(2026, 3, 1), 0},
		{"one day", NewDate(2026, 3, 1), NewDate(2026, 3, 2), 1},
		{"across month", NewDate(2026, 2, 27), NewDate(2026, 3, 2), 3},
		{"backwards", NewDate(2026, 3, 2), NewDate(2026, 3, 1), -1},
	}
	for _, tc := range cases {
		if got := tc.a.DaysBetween(tc.b); got != tc.want {
			t.Errorf("%s: DaysBetween = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	// 23:59 to 00:01 the next day is still one whole calendar day.
	a := Date{Time: time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)}
	b := Date{Time: time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)}
	if got := a.DaysBetween(b); got != 1 {
		t.Fatalf("DaysBetween = %d, want 1", got)
	}
}

func TestTransactionSigned(t *testing.T) {
	cases := []struct {
		kind TxKind
		pot  Pot
		want int64
	}{
		{KindAllocation, PotSave, 100},
		{KindInterest, PotSave, 100},
		{KindAdjustment, PotSpend, 100},
		{KindExpense, PotSpend, -100},
		{KindTransferOut, PotInvest, -100},
		{KindDeposit, "", 0},
	}
	for _, tc := range cases {
		tx := Transaction{Kind: tc.kind, Pot: tc.pot, Amount: Money{Cents: 100}}
		if got := tx.Signed(); got != tc.want {
			t.Errorf("%s/%s: Signed = %d, want %d", tc.kind, tc.pot, got, tc.want)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ChildID:    "c1",
		Kind:       KindAllocation,
		Pot:        PotSave,
		Amount:     Money{Cents: 100},
		OccurredOn: NewDate(2026, 3, 1),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(Transaction) Transaction
		want   error
	}{
		{"negative amount", func(tx Transaction) Transaction { tx.Amount.Cents = -1; return tx }, ErrInvalidAmount},
		{"bad kind", func(tx Transaction) Transaction { tx.Kind = "loan"; return tx }, ErrUnknownKind},
		{"bad pot", func(tx Transaction) Transaction { tx.Pot = "piggy"; return tx }, ErrUnknownPot},
		{"pot-less non-deposit", func(tx Transaction) Transaction { tx.Pot = ""; return tx }, ErrUnknownPot},
		{"zero date", func(tx Transaction) Transaction { tx.OccurredOn = Date{}; return tx }, ErrInvalidDate},
		{"no child", func(tx Transaction) Transaction { tx.ChildID = ""; return tx }, ErrChildNotFound},
	}
	for _, tc := range cases {
		if err := tc.mutate(valid).Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	deposit := valid
	deposit.Kind = KindDeposit
	deposit.Pot = ""
	if err := deposit.Validate(); err != nil {
		t.Fatalf("pot-less deposit rejected: %v", err)
	}
}

func TestPotDeltasApply(t *testing.T) {
	b := Balance{Spend: Money{Cents: 400}, Save: Money{Cents: 300}}

	next, err := PotDeltas{PotSpend: -150, PotInvest: 200}.Apply(b)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if next.Spend.Cents != 250 || next.Invest.Cents != 200 || next.Save.Cents != 300 {
		t.Fatalf("unexpected balance after apply: %+v", next)
	}

	// A debit exceeding the pot rejects the whole application, leaving the
	// original balance untouched rather than clamping to zero.
	if _, err := (PotDeltas{PotSave: -301}).Apply(b); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := (PotDeltas{PotSpend: 100, PotSave: -301}).Apply(b); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("mixed deltas: expected ErrInsufficientFunds, got %v", err)
	}

	// Draining a pot to exactly zero is fine.
	next, err = PotDeltas{PotSave: -300}.Apply(b)
	if err != nil || next.Save.Cents != 0 {
		t.Fatalf("drain to zero: balance %+v, err %v", next, err)
	}
}

func TestDeltasFor(t *testing.T) {
	txs := []Transaction{
		{Kind: KindDeposit, Amount: Money{Cents: 1000}},
		{Kind: KindAllocation, Pot: PotSpend, Amount: Money{Cents: 400}},
		{Kind: KindAllocation, Pot: PotSave, Amount: Money{Cents: 400}},
		{Kind: KindAllocation, Pot: PotInvest, Amount: Money{Cents: 200}},
		{Kind: KindExpense, Pot: PotSpend, Amount: Money{Cents: 150}},
	}
	deltas := DeltasFor(txs)
	if deltas[PotSpend] != 250 || deltas[PotSave] != 400 || deltas[PotInvest] != 200 {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	if _, ok := deltas[""]; ok {
		t.Fatal("pot-less deposit must not produce a delta")
	}
}

func TestBalanceTotal(t *testing.T) {
	b := Balance{
		Spend:  Money{Cents: 1},
		Save:   Money{Cents: 2},
		Invest: Money{Cents: 3},
		Donate: Money{Cents: 4},
	}
	if got := b.Total().Cents; got != 10 {
		t.Fatalf("Total = %d, want 10", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-08-30")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.August || d.Day() != 30 {
		t.Fatalf("unexpected date: %v", d)
	}
	if _, err := ParseDate("30.08.2026"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
