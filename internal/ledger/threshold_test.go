package ledger

import (
	"testing"

	"taschengeld/internal/core"
)

func TestCanTransferInvest(t *testing.T) {
	settings := core.Settings{InvestThresholdCents: 5000}
	cases := []struct {
		invest int64
		want   bool
	}{
		{4999, false}, // one cent below
		{5000, true},  // exactly at threshold
		{5001, true},
	}
	for _, tc := range cases {
		b := core.Balance{Invest: core.Money{Cents: tc.invest}}
		if got := CanTransferInvest(b, settings); got != tc.want {
			t.Errorf("invest=%d: CanTransferInvest = %v, want %v", tc.invest, got, tc.want)
		}
	}
}

func TestDonateEnabled(t *testing.T) {
	settings := core.Settings{DonateMinAge: 7}
	cases := []struct {
		name    string
		age     int
		flag    bool
		donate  int64
		enabled bool
	}{
		{"too young, no flag", 5, false, 0, false},
		{"old enough", 7, false, 0, true},
		{"young but opted in", 5, true, 0, true},
		{"sticky with balance", 5, false, 150, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			child := core.Child{Age: tc.age, DonateFlag: tc.flag}
			balance := core.Balance{Donate: core.Money{Cents: tc.donate}}
			if got := DonateEnabled(child, balance, settings); got != tc.enabled {
				t.Fatalf("DonateEnabled = %v, want %v", got, tc.enabled)
			}
		})
	}
}
