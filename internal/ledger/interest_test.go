package ledger

import (
	"errors"
	"testing"
	"time"

	"taschengeld/internal/core"
)

func TestInterestFor(t *testing.T) {
	cases := []struct {
		name  string
		save  int64
		aprBp int64
		days  int
		want  int64
	}{
		// floor(10000 * 0.02/365 * 36) = floor(19.726...) = 19
		{"reference case", 10000, 200, 36, 19},
		{"one year at 2%", 10000, 200, 365, 200},
		{"tiny balance floors to zero", 50, 200, 30, 0},
		{"zero balance", 0, 200, 36, 0},
		{"zero days", 10000, 200, 0, 0},
		{"zero rate", 10000, 0, 36, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InterestFor(core.Money{Cents: tc.save}, tc.aprBp, tc.days)
			if got.Cents != tc.want {
				t.Fatalf("InterestFor(%d, %d, %d) = %d, want %d", tc.save, tc.aprBp, tc.days, got.Cents, tc.want)
			}
		})
	}
}

func TestInterestForNeverRoundsUp(t *testing.T) {
	// 9999 * 200 * 36 / 3650000 = 19.724...; floor, never round.
	if got := InterestFor(core.Money{Cents: 9999}, 200, 36); got.Cents != 19 {
		t.Fatalf("got %d, want 19", got.Cents)
	}
}

func TestAccrualDays(t *testing.T) {
	today := core.NewDate(2026, 8, 30)

	t.Run("watermark wins over creation date", func(t *testing.T) {
		child := core.Child{CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		days, err := AccrualDays(core.NewDate(2026, 8, 20), child, today)
		if err != nil || days != 10 {
			t.Fatalf("days = %d, err = %v", days, err)
		}
	})

	t.Run("falls back to creation date", func(t *testing.T) {
		child := core.Child{CreatedAt: time.Date(2026, 8, 1, 15, 30, 0, 0, time.UTC)}
		days, err := AccrualDays(core.Date{}, child, today)
		if err != nil || days != 29 {
			t.Fatalf("days = %d, err = %v", days, err)
		}
	})

	t.Run("no base date at all", func(t *testing.T) {
		if _, err := AccrualDays(core.Date{}, core.Child{}, today); !errors.Is(err, core.ErrNoBaseDate) {
			t.Fatalf("expected ErrNoBaseDate, got %v", err)
		}
	})
}
