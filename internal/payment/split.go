package payment

import "errors"

// One bonus coin is worth 100 minor currency units.
const coinMinorUnits = 100

var (
	ErrInsufficientBonus   = errors.New("requested bonus exceeds balance")
	ErrBelowMinimumPayment = errors.New("payable amount below minimum payment")
)

// SplitResult is the outcome of applying bonus coins to a catalog price.
type SplitResult struct {
	// PayableMinor is the real-currency amount to charge, minor units.
	PayableMinor int64
	// BonusCharged is the number of coins to debit after the provider
	// confirms the charge.
	BonusCharged int64
}

// Split computes how a purchase is covered by bonus coins and real currency.
// priceMinor is the catalog price in minor units; balance, requestedBonus
// and minimumPayment are in coins / major units. The same checks run again
// at charge time regardless of what the UI advertised.
func Split(priceMinor, balance, requestedBonus, minimumPayment int64) (SplitResult, error) {
	if requestedBonus > balance {
		return SplitResult{}, ErrInsufficientBonus
	}
	if requestedBonus > 0 && priceMinor/coinMinorUnits-requestedBonus < minimumPayment {
		return SplitResult{}, ErrBelowMinimumPayment
	}

	payable := priceMinor - requestedBonus*coinMinorUnits
	if payable < 0 {
		payable = 0
	}
	return SplitResult{PayableMinor: payable, BonusCharged: requestedBonus}, nil
}

// MaxSpendableBonus is the advisory cap shown to the user before they type
// an amount. The authoritative check stays in Split.
func MaxSpendableBonus(priceMinor, balance, minimumPayment int64) int64 {
	max := priceMinor/coinMinorUnits - minimumPayment
	if max > balance {
		max = balance
	}
	if max < 0 {
		max = 0
	}
	return max
}
