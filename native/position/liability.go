package position

import (
	"fmt"

	"github.com/holiman/uint256"

	"leasechain/native/finance"
)

// Liability holds the LTV thresholds of a position. Warning levels split the
// range between Healthy and Max into zones.
type Liability struct {
	Initial    finance.Percent
	Healthy    finance.Percent
	FirstWarn  finance.Percent
	SecondWarn finance.Percent
	ThirdWarn  finance.Percent
	Max        finance.Percent
	RecalcTime finance.Duration
}

// Validate enforces 0 < Initial <= Healthy < FirstWarn < SecondWarn <
// ThirdWarn < Max <= 100%.
func (l Liability) Validate() error {
	ordered := l.Initial > 0 &&
		l.Initial <= l.Healthy &&
		l.Healthy < l.FirstWarn &&
		l.FirstWarn < l.SecondWarn &&
		l.SecondWarn < l.ThirdWarn &&
		l.ThirdWarn < l.Max &&
		l.Max <= finance.Hundred
	if !ordered {
		return fmt.Errorf("%w: %+v", ErrInvalidLiability, l)
	}
	if l.RecalcTime == 0 {
		return fmt.Errorf("%w: recalculation time must be positive", ErrInvalidLiability)
	}
	return nil
}

// InitBorrowAmount returns how much to borrow against a downpayment so the
// position starts at the Initial LTV, optionally capped by a loan-to-downpayment
// ratio.
func (l Liability) InitBorrowAmount(downpayment finance.Coin, maxLTD *finance.Percent) finance.Coin {
	out := finance.Zero(downpayment.Ticker)
	complement := l.Initial.Complement()
	if complement == 0 {
		return out
	}
	if _, overflow := out.Amount.MulDivOverflow(&downpayment.Amount, uint256.NewInt(uint64(l.Initial)), uint256.NewInt(uint64(complement))); overflow {
		out.Amount.SetAllOne()
	}
	if maxLTD != nil {
		capped := maxLTD.OfCoin(downpayment)
		if capped.Amount.Lt(&out.Amount) {
			out = capped
		}
	}
	return out
}

// AmountToLiquidate returns the value to sell so that the remaining position
// lands at the Healthy LTV: (due - healthy*value) / (1 - healthy).
func (l Liability) AmountToLiquidate(value, due finance.Coin) finance.Coin {
	out := finance.Zero(due.Ticker)
	healthyDue := l.Healthy.OfCoin(value)
	if !healthyDue.Amount.Lt(&due.Amount) {
		return out
	}
	complement := l.Healthy.Complement()
	if complement == 0 {
		return value
	}
	var excess uint256.Int
	excess.Sub(&due.Amount, &healthyDue.Amount)
	if _, overflow := out.Amount.MulDivOverflow(&excess, uint256.NewInt(uint64(finance.Hundred)), uint256.NewInt(uint64(complement))); overflow || value.Amount.Lt(&out.Amount) {
		return value
	}
	return out
}

// ZoneOf classifies an LTV below Max.
func (l Liability) ZoneOf(ltv finance.Percent) Zone {
	switch {
	case ltv < l.FirstWarn:
		return Zone{Level: 0, High: l.FirstWarn}
	case ltv < l.SecondWarn:
		return Zone{Level: 1, Low: percentPtr(l.FirstWarn), High: l.SecondWarn}
	case ltv < l.ThirdWarn:
		return Zone{Level: 2, Low: percentPtr(l.SecondWarn), High: l.ThirdWarn}
	default:
		return Zone{Level: 3, Low: percentPtr(l.ThirdWarn), High: l.Max}
	}
}

// Zone is the LTV range [Low, High) a position currently sits in. Zone 0 has
// no lower bound.
type Zone struct {
	Level uint8
	Low   *finance.Percent `rlp:"nil"`
	High  finance.Percent
}

func percentPtr(p finance.Percent) *finance.Percent { return &p }
