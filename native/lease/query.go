package lease

import (
	"context"

	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/platform"
)

// Status values of a query response.
const (
	StatusOpening    = "opening"
	StatusOpened     = "opened"
	StatusPaid       = "paid"
	StatusClosed     = "closed"
	StatusLiquidated = "liquidated"
)

// ClosePolicyResponse renders the close policy triggers.
type ClosePolicyResponse struct {
	TakeProfit *finance.Percent `json:"take_profit,omitempty"`
	StopLoss   *finance.Percent `json:"stop_loss,omitempty"`
}

// StateResponse is the customer-facing view of a lease.
type StateResponse struct {
	Status          string               `json:"status"`
	State           string               `json:"state"`
	Customer        string               `json:"customer,omitempty"`
	Amount          *finance.Coin        `json:"amount,omitempty"`
	Value           *finance.Coin        `json:"value,omitempty"`
	LTV             *finance.Percent     `json:"ltv,omitempty"`
	Principal       *finance.Coin        `json:"principal_due,omitempty"`
	AnnualInterest  *finance.Percent     `json:"loan_interest_rate,omitempty"`
	AnnualMargin    *finance.Percent     `json:"margin_interest_rate,omitempty"`
	OverdueMargin   *finance.Coin        `json:"overdue_margin,omitempty"`
	OverdueInterest *finance.Coin        `json:"overdue_interest,omitempty"`
	DueMargin       *finance.Coin        `json:"due_margin,omitempty"`
	DueInterest     *finance.Coin        `json:"due_interest,omitempty"`
	DueProjection   finance.Duration     `json:"due_projection_ns,omitempty"`
	ClosePolicy     *ClosePolicyResponse `json:"close_policy,omitempty"`
	InProgress      string               `json:"in_progress,omitempty"`
	SlippageAnomaly bool                 `json:"slippage_anomaly,omitempty"`
}

// Query describes a lease at now. Price lookups go through q; their failures
// are returned as they are.
func Query(ctx context.Context, st State, now finance.Timestamp, q platform.Querier) (StateResponse, error) {
	resp := StateResponse{State: st.Kind().String()}
	switch s := st.(type) {
	case RequestLoan:
		resp.Status = StatusOpening
		resp.Customer = s.Form.Customer.String()
		resp.InProgress = st.Kind().String()
		return resp, nil
	case OpenIcaAccount:
		resp.Status = StatusOpening
		resp.Customer = s.Form.Customer.String()
		resp.InProgress = st.Kind().String()
		return resp, nil
	case Opening:
		resp.Status = StatusOpening
		resp.Customer = s.Form.Customer.String()
		inProgress(&resp, s.Task)
		return resp, nil
	case Closed:
		resp.Status = StatusClosed
		resp.Customer = s.Customer.String()
		return resp, nil
	case Liquidated:
		resp.Status = StatusLiquidated
		resp.Customer = s.Customer.String()
		return resp, nil
	case PaidActive:
		paid(&resp, s.Lease)
		return resp, nil
	case ClosingTransferIn:
		paid(&resp, s.Lease)
		inProgress(&resp, s.Task)
		return resp, nil
	}

	lease, ok := leaseOf(st)
	if !ok {
		return StateResponse{}, ErrUnknownKind
	}
	if err := opened(ctx, &resp, lease, now, q); err != nil {
		return StateResponse{}, err
	}
	switch s := st.(type) {
	case Repayment:
		inProgress(&resp, s.Task)
	case Liquidation:
		inProgress(&resp, s.Task)
	case ClosePosition:
		inProgress(&resp, s.Task)
	}
	return resp, nil
}

func paid(resp *StateResponse, lease Lease) {
	resp.Status = StatusPaid
	resp.Customer = lease.Customer.String()
	amount := lease.Asset
	resp.Amount = &amount
}

func inProgress(resp *StateResponse, task dex.Task) {
	resp.InProgress = task.Label()
	resp.SlippageAnomaly = task.Anomalous()
}

func opened(ctx context.Context, resp *StateResponse, lease Lease, now finance.Timestamp, q platform.Querier) error {
	resp.Status = StatusOpened
	resp.Customer = lease.Customer.String()
	amount := lease.Asset
	resp.Amount = &amount

	state := lease.Loan.State(now)
	resp.Principal = &state.Principal
	resp.AnnualInterest = &state.AnnualInterest
	resp.AnnualMargin = &state.AnnualMargin
	resp.OverdueMargin = &state.OverdueMargin
	resp.OverdueInterest = &state.OverdueInterest
	resp.DueMargin = &state.DueMargin
	resp.DueInterest = &state.DueInterest
	if deadline := lease.Loan.GraceDeadline(); deadline > now {
		resp.DueProjection = deadline.Since(now)
	}
	policy := lease.Position.Policy
	if policy.TakeProfit != nil || policy.StopLoss != nil {
		resp.ClosePolicy = &ClosePolicyResponse{TakeProfit: policy.TakeProfit, StopLoss: policy.StopLoss}
	}

	price, err := q.Price(ctx, lease.Asset.Ticker, lease.lpn())
	if err != nil {
		return err
	}
	value, err := price.Convert(lease.Asset)
	if err != nil {
		return err
	}
	resp.Value = &value
	ltv, err := finance.RatioOf(state.TotalDue(), value)
	if err != nil {
		return err
	}
	resp.LTV = &ltv
	return nil
}
