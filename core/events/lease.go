package events

import (
	"strconv"

	"leasechain/core/types"
	"leasechain/crypto"
	"leasechain/native/finance"
)

const (
	TypeLeaseOpened             = "lease.opened"
	TypeLeaseRepaid             = "lease.repaid"
	TypeLeaseLiquidationStarted = "lease.liquidation_started"
	TypeLeaseLiquidated         = "lease.liquidated"
	TypeLeaseCloseStarted       = "lease.close_started"
	TypeLeasePositionClosed     = "lease.position_closed"
	TypeLeaseClosePolicyChanged = "lease.close_policy_changed"
	TypeLeaseClosed             = "lease.closed"
	TypeLeaseDexTimeout         = "lease.dex_timeout"
	TypeLeaseSlippageAnomaly    = "lease.slippage_anomaly"
)

type LeaseOpened struct {
	Lease          crypto.Address
	Customer       crypto.Address
	Asset          finance.Coin
	Downpayment    finance.Coin
	Loan           finance.Coin
	AnnualInterest finance.Percent
	AnnualMargin   finance.Percent
	At             finance.Timestamp
}

func (LeaseOpened) EventType() string { return TypeLeaseOpened }

func (e LeaseOpened) Event() *types.Event {
	return &types.Event{
		Type: TypeLeaseOpened,
		Attributes: map[string]string{
			"lease":          e.Lease.String(),
			"customer":       e.Customer.String(),
			"asset":          formatCoin(e.Asset),
			"downpayment":    formatCoin(e.Downpayment),
			"loan":           formatCoin(e.Loan),
			"annualInterest": formatPercent(e.AnnualInterest),
			"annualMargin":   formatPercent(e.AnnualMargin),
			"at":             formatTimestamp(e.At),
		},
	}
}

type LeaseRepaid struct {
	Lease           crypto.Address
	Payment         finance.Coin
	OverdueMargin   finance.Coin
	OverdueInterest finance.Coin
	DueMargin       finance.Coin
	DueInterest     finance.Coin
	Principal       finance.Coin
	Change          finance.Coin
	LoanClosed      bool
}

func (LeaseRepaid) EventType() string { return TypeLeaseRepaid }

func (e LeaseRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeLeaseRepaid,
		Attributes: map[string]string{
			"lease":           e.Lease.String(),
			"payment":         formatCoin(e.Payment),
			"overdueMargin":   formatCoin(e.OverdueMargin),
			"overdueInterest": formatCoin(e.OverdueInterest),
			"dueMargin":       formatCoin(e.DueMargin),
			"dueInterest":     formatCoin(e.DueInterest),
			"principal":       formatCoin(e.Principal),
			"change":          formatCoin(e.Change),
			"loanClosed":      strconv.FormatBool(e.LoanClosed),
		},
	}
}

type LeaseLiquidationStarted struct {
	Lease  crypto.Address
	Cause  string
	Full   bool
	Amount finance.Coin
	LTV    finance.Percent
}

func (LeaseLiquidationStarted) EventType() string { return TypeLeaseLiquidationStarted }

func (e LeaseLiquidationStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeLeaseLiquidationStarted,
		Attributes: map[string]string{
			"lease":  e.Lease.String(),
			"cause":  e.Cause,
			"full":   strconv.FormatBool(e.Full),
			"amount": formatCoin(e.Amount),
			"ltv":    formatPercent(e.LTV),
		},
	}
}

type LeaseLiquidated struct {
	Lease     crypto.Address
	Sold      finance.Coin
	Proceeds  finance.Coin
	Shortfall finance.Coin
	Full      bool
}

func (LeaseLiquidated) EventType() string { return TypeLeaseLiquidated }

func (e LeaseLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLeaseLiquidated,
		Attributes: map[string]string{
			"lease":     e.Lease.String(),
			"sold":      formatCoin(e.Sold),
			"proceeds":  formatCoin(e.Proceeds),
			"shortfall": formatCoin(e.Shortfall),
			"full":      strconv.FormatBool(e.Full),
		},
	}
}

// LeaseCloseStarted is emitted when a customer request or a close policy
// trigger starts selling the position.
type LeaseCloseStarted struct {
	Lease    crypto.Address
	Amount   finance.Coin
	Full     bool
	Strategy string
}

func (LeaseCloseStarted) EventType() string { return TypeLeaseCloseStarted }

func (e LeaseCloseStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeLeaseCloseStarted,
		Attributes: map[string]string{
			"lease":    e.Lease.String(),
			"amount":   formatCoin(e.Amount),
			"full":     strconv.FormatBool(e.Full),
			"strategy": e.Strategy,
		},
	}
}

type LeasePositionClosed struct {
	Lease    crypto.Address
	Sold     finance.Coin
	Proceeds finance.Coin
	Full     bool
}

func (LeasePositionClosed) EventType() string { return TypeLeasePositionClosed }

func (e LeasePositionClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeLeasePositionClosed,
		Attributes: map[string]string{
			"lease":    e.Lease.String(),
			"sold":     formatCoin(e.Sold),
			"proceeds": formatCoin(e.Proceeds),
			"full":     strconv.FormatBool(e.Full),
		},
	}
}

type LeaseClosePolicyChanged struct {
	Lease      crypto.Address
	TakeProfit *finance.Percent
	StopLoss   *finance.Percent
}

func (LeaseClosePolicyChanged) EventType() string { return TypeLeaseClosePolicyChanged }

func (e LeaseClosePolicyChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeLeaseClosePolicyChanged,
		Attributes: map[string]string{
			"lease":      e.Lease.String(),
			"takeProfit": formatOptionalPercent(e.TakeProfit),
			"stopLoss":   formatOptionalPercent(e.StopLoss),
		},
	}
}

type LeaseClosed struct {
	Lease    crypto.Address
	Customer crypto.Address
	Returned finance.Coin
}

func (LeaseClosed) EventType() string { return TypeLeaseClosed }

func (e LeaseClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeLeaseClosed,
		Attributes: map[string]string{
			"lease":    e.Lease.String(),
			"customer": e.Customer.String(),
			"returned": formatCoin(e.Returned),
		},
	}
}

type LeaseDexTimeout struct {
	Lease crypto.Address
	Stage string
}

func (LeaseDexTimeout) EventType() string { return TypeLeaseDexTimeout }

func (e LeaseDexTimeout) Event() *types.Event {
	return &types.Event{
		Type:       TypeLeaseDexTimeout,
		Attributes: map[string]string{"lease": e.Lease.String(), "stage": e.Stage},
	}
}

type LeaseSlippageAnomaly struct {
	Lease crypto.Address
	Stage string
}

func (LeaseSlippageAnomaly) EventType() string { return TypeLeaseSlippageAnomaly }

func (e LeaseSlippageAnomaly) Event() *types.Event {
	return &types.Event{
		Type:       TypeLeaseSlippageAnomaly,
		Attributes: map[string]string{"lease": e.Lease.String(), "stage": e.Stage},
	}
}
