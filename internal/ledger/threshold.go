package ledger

import "taschengeld/internal/core"

// CanTransferInvest reports whether the invest pot has crossed the
// configured transfer threshold. Callers performing a transfer must
// re-check against the live balance at the moment of the write, not only
// when the action was offered.
func CanTransferInvest(balance core.Balance, settings core.Settings) bool {
	return balance.Invest.Cents >= settings.InvestThresholdCents
}

// DonateEnabled reports whether the donate pot is active for a child.
// It is sticky: once donate money exists the pot stays visible even if the
// age gate or flag would no longer enable it, so a nonzero balance is never
// hidden from the user.
func DonateEnabled(child core.Child, balance core.Balance, settings core.Settings) bool {
	if balance.Donate.Cents > 0 {
		return true
	}
	return child.Age >= settings.DonateMinAge || child.DonateFlag
}
