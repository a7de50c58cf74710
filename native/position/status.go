package position

import (
	"leasechain/native/finance"
)

// Cause tells why a liquidation was requested.
type Cause uint8

const (
	CauseLiability Cause = iota + 1
	CauseOverdue
)

func (c Cause) String() string {
	switch c {
	case CauseLiability:
		return "liability"
	case CauseOverdue:
		return "overdue"
	default:
		return "unknown"
	}
}

// Liquidation describes how much of the asset to sell. Amount equals the whole
// position when Full is set.
type Liquidation struct {
	Full   bool
	Amount finance.Coin
	Cause  Cause
	LTV    finance.Percent
}

// Status is the outcome of checking a position at a price.
type Status interface {
	isStatus()
}

// NeedLiquidation asks the lease to sell part or all of the position.
type NeedLiquidation struct {
	Liquidation Liquidation
}

// CloseAsked asks the lease to fully close the position on a close policy
// trigger.
type CloseAsked struct {
	Strategy Strategy
	LTV      finance.Percent
}

// NoDebt is reported for a position whose loan is fully repaid.
type NoDebt struct{}

// Steady is reported when nothing is to be done until the steadiness bounds
// are crossed.
type Steady struct {
	Zone       Zone
	LTV        finance.Percent
	Steadiness Steadiness
}

func (NeedLiquidation) isStatus() {}
func (CloseAsked) isStatus()      {}
func (NoDebt) isStatus()          {}
func (Steady) isStatus()          {}

// Steadiness bounds how long the current classification holds: until
// Horizon, or until the asset price drops below Below or rises to
// AboveOrEqual.
type Steadiness struct {
	Horizon      finance.Timestamp
	Below        *finance.Price `rlp:"nil"`
	AboveOrEqual *finance.Price `rlp:"nil"`
}

// Input is everything Check needs to know about a lease.
type Input struct {
	Spec               Spec
	Policy             ClosePolicy
	Asset              finance.Coin
	Price              finance.Price
	Due                finance.Coin
	Overdue            finance.Coin
	OverdueCollectable bool
	GraceDeadline      finance.Timestamp
	Now                finance.Timestamp
}

// LTV returns the loan-to-value of the position at the input price.
func (in Input) LTV() (finance.Percent, finance.Coin, error) {
	value, err := in.Price.Convert(in.Asset)
	if err != nil {
		return 0, finance.Coin{}, err
	}
	ltv, err := finance.RatioOf(in.Due, value)
	if err != nil {
		return 0, finance.Coin{}, err
	}
	return ltv, value, nil
}

// Check classifies a position. Liquidation outcomes take precedence over
// close policy triggers.
func Check(in Input) (Status, error) {
	if in.Due.IsZero() {
		return NoDebt{}, nil
	}
	ltv, value, err := in.LTV()
	if err != nil {
		return nil, err
	}
	liability := in.Spec.Liability
	if ltv >= liability.Max {
		if ltv >= finance.Hundred {
			return full(in, CauseLiability, ltv), nil
		}
		return sized(in, liability.AmountToLiquidate(value, in.Due), value, CauseLiability, ltv)
	}
	if in.OverdueCollectable && !in.Overdue.IsZero() && !in.Overdue.Amount.Lt(&in.Spec.MinTransaction.Amount) {
		return sized(in, in.Overdue, value, CauseOverdue, ltv)
	}
	if strategy, fired := in.Policy.Triggered(ltv); fired {
		return CloseAsked{Strategy: strategy, LTV: ltv}, nil
	}
	steadiness, err := steadiness(in, ltv)
	if err != nil {
		return nil, err
	}
	return Steady{Zone: liability.ZoneOf(ltv), LTV: ltv, Steadiness: steadiness}, nil
}

func full(in Input, cause Cause, ltv finance.Percent) NeedLiquidation {
	return NeedLiquidation{Liquidation: Liquidation{Full: true, Amount: in.Asset, Cause: cause, LTV: ltv}}
}

// sized turns an LPN amount into a partial liquidation, escalating to a full
// one when the sale or the remainder would fall below the minimums.
func sized(in Input, amount, value finance.Coin, cause Cause, ltv finance.Percent) (Status, error) {
	if !amount.Amount.Lt(&value.Amount) || amount.Amount.Lt(&in.Spec.MinTransaction.Amount) {
		return full(in, cause, ltv), nil
	}
	left, err := value.Sub(amount)
	if err != nil {
		return nil, err
	}
	if left.Amount.Lt(&in.Spec.MinAsset.Amount) {
		return full(in, cause, ltv), nil
	}
	sell, err := in.Price.Inverse().Convert(amount)
	if err != nil {
		return nil, err
	}
	if sell.IsZero() || !sell.Amount.Lt(&in.Asset.Amount) {
		return full(in, cause, ltv), nil
	}
	return NeedLiquidation{Liquidation: Liquidation{Amount: sell, Cause: cause, LTV: ltv}}, nil
}

func steadiness(in Input, ltv finance.Percent) (Steadiness, error) {
	liability := in.Spec.Liability
	zone := liability.ZoneOf(ltv)

	horizon := in.Now.Add(liability.RecalcTime)
	if in.GraceDeadline > in.Now {
		horizon = finance.MinTimestamp(horizon, in.GraceDeadline)
	}
	out := Steadiness{Horizon: horizon}

	below := zone.High
	if in.Policy.StopLoss != nil && *in.Policy.StopLoss < below {
		below = *in.Policy.StopLoss
	}
	// one LPN unit inside the zone so a price landing on the edge fires
	price, err := finance.PriceBelow(in.Asset, in.Due, below)
	if err != nil {
		return Steadiness{}, err
	}
	out.Below = &price

	var above *finance.Percent
	if zone.Low != nil {
		low := *zone.Low
		above = &low
	}
	if tp := in.Policy.TakeProfit; tp != nil && (above == nil || *tp > *above) {
		v := *tp
		above = &v
	}
	if above != nil {
		price, err := finance.PriceAt(in.Asset, in.Due, *above)
		if err != nil {
			return Steadiness{}, err
		}
		out.AboveOrEqual = &price
	}
	return out, nil
}
