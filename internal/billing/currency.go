package billing

// Fixed-rate conversions between reference cents and provider units.
// Rates are whole units per reference dollar and come from config.

// RublesFromCents converts reference cents to whole rubles, rounding
// half up.
func RublesFromCents(cents, rubPerUSD int64) int64 {
	if cents <= 0 || rubPerUSD <= 0 {
		return 0
	}
	return (cents*rubPerUSD + 50) / 100
}

// CentsFromRubles converts whole rubles back to reference cents,
// rounding half up.
func CentsFromRubles(rubles, rubPerUSD int64) int64 {
	if rubles <= 0 || rubPerUSD <= 0 {
		return 0
	}
	return (rubles*100 + rubPerUSD/2) / rubPerUSD
}

// StarsFromCents converts reference cents to stars, rounding half up.
func StarsFromCents(cents, starsPerUSD int64) int64 {
	if cents <= 0 || starsPerUSD <= 0 {
		return 0
	}
	return (cents*starsPerUSD + 50) / 100
}

// CentsFromStars converts stars back to reference cents, rounding half
// up.
func CentsFromStars(stars, starsPerUSD int64) int64 {
	if stars <= 0 || starsPerUSD <= 0 {
		return 0
	}
	return (stars*100 + starsPerUSD/2) / starsPerUSD
}
