package core

import "testing"

func TestWishAffordable(t *testing.T) {
	cases := []struct {
		price, save int64
		want        bool
	}{
		{1000, 999, false},
		{1000, 1000, true},
		{1000, 1500, true},
		{0, 0, true},
	}
	for _, tc := range cases {
		got := WishAffordable(Money{Cents: tc.price}, Money{Cents: tc.save})
		if got != tc.want {
			t.Errorf("WishAffordable(%d, %d) = %v, want %v", tc.price, tc.save, got, tc.want)
		}
	}
}

func TestWishProgress(t *testing.T) {
	cases := []struct {
		price, save int64
		want        float64
	}{
		{1000, 0, 0},
		{1000, 500, 0.5},
		{1000, 1000, 1},
		{1000, 2500, 1}, // capped
		{0, 500, 0},     // guarded against non-positive price
		{-100, 500, 0},
	}
	for _, tc := range cases {
		got := WishProgress(Money{Cents: tc.price}, Money{Cents: tc.save})
		if got != tc.want {
			t.Errorf("WishProgress(%d, %d) = %v, want %v", tc.price, tc.save, got, tc.want)
		}
	}
}
