package position

import "leasechain/native/finance"

// Strategy names a close policy trigger.
type Strategy uint8

const (
	StrategyTakeProfit Strategy = iota + 1
	StrategyStopLoss
)

func (s Strategy) String() string {
	switch s {
	case StrategyTakeProfit:
		return "take-profit"
	case StrategyStopLoss:
		return "stop-loss"
	default:
		return "unknown"
	}
}

// ClosePolicy holds the customer's automatic full-close triggers. Take profit
// fires once the LTV drops below it, stop loss once the LTV reaches it.
type ClosePolicy struct {
	TakeProfit *finance.Percent `rlp:"nil"`
	StopLoss   *finance.Percent `rlp:"nil"`
}

// TriggerChange sets a trigger to Value, or clears it when Reset is true.
type TriggerChange struct {
	Reset bool
	Value finance.Percent
}

// PolicyChange is a customer request; nil members leave a trigger untouched.
type PolicyChange struct {
	TakeProfit *TriggerChange
	StopLoss   *TriggerChange
}

// Triggered reports the strategy firing at ltv. Stop loss is checked first.
func (p ClosePolicy) Triggered(ltv finance.Percent) (Strategy, bool) {
	if p.StopLoss != nil && ltv >= *p.StopLoss {
		return StrategyStopLoss, true
	}
	if p.TakeProfit != nil && ltv < *p.TakeProfit {
		return StrategyTakeProfit, true
	}
	return 0, false
}

// Without clears a fired trigger.
func (p ClosePolicy) Without(s Strategy) ClosePolicy {
	switch s {
	case StrategyTakeProfit:
		p.TakeProfit = nil
	case StrategyStopLoss:
		p.StopLoss = nil
	}
	return p
}

// Change applies a customer request after validating it against the
// liquidation threshold and the position's current LTV and price.
func (p ClosePolicy) Change(change PolicyChange, liability Liability, ltv finance.Percent, price finance.Price) (ClosePolicy, error) {
	for _, c := range []*TriggerChange{change.TakeProfit, change.StopLoss} {
		if c != nil && !c.Reset && c.Value == 0 {
			return p, ErrZeroClosePolicy
		}
	}
	next := ClosePolicy{TakeProfit: apply(p.TakeProfit, change.TakeProfit), StopLoss: apply(p.StopLoss, change.StopLoss)}
	if next.StopLoss != nil && *next.StopLoss >= liability.Max {
		return p, ErrLiquidationConflict
	}
	if next.TakeProfit != nil && *next.TakeProfit >= liability.Max {
		return p, ErrLiquidationConflict
	}
	if next.TakeProfit != nil && next.StopLoss != nil && *next.TakeProfit >= *next.StopLoss {
		return p, ErrLiquidationConflict
	}
	if strategy, fired := next.Triggered(ltv); fired {
		return p, &TriggerError{Strategy: strategy, LTV: ltv, Price: price}
	}
	return next, nil
}

func apply(current *finance.Percent, change *TriggerChange) *finance.Percent {
	if change == nil {
		if current == nil {
			return nil
		}
		v := *current
		return &v
	}
	if change.Reset {
		return nil
	}
	v := change.Value
	return &v
}
