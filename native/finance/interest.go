package finance

import (
	"math"

	"github.com/holiman/uint256"
)

// Interest returns floor(principal * rate * d / (100% * Year)). Results that
// do not fit 256 bits saturate.
func Interest(rate Percent, principal uint256.Int, d Duration) uint256.Int {
	if rate == 0 || d == 0 || principal.IsZero() {
		return uint256.Int{}
	}
	var factor uint256.Int
	factor.Mul(uint256.NewInt(uint64(rate)), uint256.NewInt(uint64(d)))
	var denom uint256.Int
	denom.Mul(uint256.NewInt(uint64(Hundred)), uint256.NewInt(uint64(Year)))
	out, overflow := mulDiv(&principal, &factor, &denom)
	if overflow {
		out.SetAllOne()
	}
	return out
}

// Pay settles as much of the interest over d as payment affords. It returns
// the span paid for and the unspent change.
func Pay(rate Percent, principal, payment uint256.Int, d Duration) (Duration, uint256.Int) {
	if payment.IsZero() {
		return 0, uint256.Int{}
	}
	due := Interest(rate, principal, d)
	if due.IsZero() {
		return d, payment
	}
	if !payment.Lt(&due) {
		var change uint256.Int
		change.Sub(&payment, &due)
		return d, change
	}
	paidFor, overflow := mulDiv(uint256.NewInt(uint64(d)), &payment, &due)
	if overflow || !paidFor.IsUint64() {
		paidFor.SetUint64(math.MaxUint64)
	}
	span := Duration(paidFor.Uint64())
	if span > d {
		span = d
	}
	charged := Interest(rate, principal, span)
	var change uint256.Int
	change.Sub(&payment, &charged)
	return span, change
}
