package core

// WishAffordable reports whether the save pot already covers a wish price.
// Not persisted anywhere; recomputed on every read.
func WishAffordable(price, save Money) bool {
	return save.Cents >= price.Cents
}

// WishProgress returns how far the save pot has come towards a wish price,
// as a ratio in [0, 1]. A non-positive price yields 0 rather than a division
// by zero or a ratio above one.
func WishProgress(price, save Money) float64 {
	if price.Cents <= 0 {
		return 0
	}
	ratio := float64(save.Cents) / float64(price.Cents)
	if ratio > 1 {
		return 1
	}
	return ratio
}
