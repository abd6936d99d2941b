// Package ledger holds the pure rule components of the pocket-money engine:
// allocation validation, interest computation and threshold gating. Nothing
// in this package touches storage; the services layer wires these rules into
// the atomic write path.
package ledger

import (
	"fmt"

	"taschengeld/internal/core"
)

// SplitPolicy is a pluggable predicate over an allocation's slices. It runs
// after the structural checks (non-negative slices, exact sum) and lets the
// product enforce domain rules such as a mandatory savings share.
type SplitPolicy interface {
	// Check returns nil if the slices satisfy the policy.
	Check(slices map[core.Pot]core.Money) error
}

// RequireSavingsShare is the default payout policy: at least one cent of a
// payout must land in save or invest, so a pure "spend everything" split is
// rejected. This preserves the product's savings incentive.
type RequireSavingsShare struct{}

func (RequireSavingsShare) Check(slices map[core.Pot]core.Money) error {
	if slices[core.PotSave].Cents+slices[core.PotInvest].Cents > 0 {
		return nil
	}
	return fmt.Errorf("save + invest must be > 0: %w", core.ErrPolicyViolation)
}

// NoPolicy accepts every structurally valid split. Used for donation-only
// contexts where the savings-share rule does not apply.
type NoPolicy struct{}

func (NoPolicy) Check(map[core.Pot]core.Money) error { return nil }

// ValidateAllocation checks that a payout's pot slices are a complete and
// exact assignment of the declared total. Rules, in order: every slice
// amount >= 0, the slices sum to the total exactly (amounts are integers,
// so this is hard equality with no rounding leeway), and the policy holds.
// Callers must not write anything to the ledger when an error is returned.
func ValidateAllocation(total core.Money, slices map[core.Pot]core.Money, policy SplitPolicy) error {
	if total.Cents <= 0 {
		return core.ErrInvalidAmount
	}
	var sum int64
	for pot, amount := range slices {
		if !pot.Valid() {
			return fmt.Errorf("slice %q: %w", pot, core.ErrUnknownPot)
		}
		if amount.Cents < 0 {
			return fmt.Errorf("slice %q: %w", pot, core.ErrInvalidAmount)
		}
		sum += amount.Cents
	}
	if sum != total.Cents {
		return fmt.Errorf("slices sum to %d, total is %d: %w", sum, total.Cents, core.ErrSliceMismatch)
	}
	if policy != nil {
		if err := policy.Check(slices); err != nil {
			return err
		}
	}
	return nil
}
