package lpp

import (
	"math/big"

	"github.com/holiman/uint256"

	"leasechain/native/finance"
)

// InterestModel encapsulates the parameters that shape how the loan rate
// reacts to pool utilisation.
type InterestModel struct {
	// BaseRate is the annual rate quoted when utilisation is zero.
	BaseRate finance.Percent
	// Slope1 is the rate increase per unit of utilisation up to the kink.
	Slope1 finance.Percent
	// Slope2 governs the additional increase applied above the kink.
	Slope2 finance.Percent
	// Kink is the utilisation where the slope changes.
	Kink finance.Percent
}

// DefaultInterestModel provides a kinked curve with a modest base rate.
var DefaultInterestModel = InterestModel{BaseRate: 20, Slope1: 150, Slope2: 600, Kink: 800}

// Utilisation computes U = borrowed / (borrowed + available). An empty pool
// has zero utilisation.
func (m InterestModel) Utilisation(borrowed, available uint256.Int) *big.Rat {
	if borrowed.IsZero() {
		return new(big.Rat)
	}
	total := new(big.Int).Add(borrowed.ToBig(), available.ToBig())
	return new(big.Rat).SetFrac(borrowed.ToBig(), total)
}

// AnnualRate derives the loan rate for the given pool balances.
func (m InterestModel) AnnualRate(borrowed, available uint256.Int) finance.Percent {
	rate := percentRat(m.BaseRate)
	utilisation := m.Utilisation(borrowed, available)
	if utilisation.Sign() == 0 {
		return m.BaseRate
	}
	kink := percentRat(m.Kink)
	slope1 := percentRat(m.Slope1)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		return ratToPercent(rate.Add(rate, new(big.Rat).Mul(slope1, utilisation)))
	}
	rate.Add(rate, new(big.Rat).Mul(slope1, kink))
	excess := new(big.Rat).Sub(utilisation, kink)
	return ratToPercent(rate.Add(rate, new(big.Rat).Mul(percentRat(m.Slope2), excess)))
}

func percentRat(p finance.Percent) *big.Rat {
	return new(big.Rat).SetFrac64(int64(p), int64(finance.Hundred))
}

// ratToPercent rounds half up to the nearest permille.
func ratToPercent(r *big.Rat) finance.Percent {
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt64(int64(finance.Hundred)))
	num := new(big.Int).Add(scaled.Num(), new(big.Int).Rsh(scaled.Denom(), 1))
	return finance.Percent(num.Quo(num, scaled.Denom()).Uint64())
}
