package lease

import (
	"context"

	"leasechain/core/events"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/loan"
	"leasechain/native/platform"
	"leasechain/native/position"
)

func (m *Machine) openedActive(ctx context.Context, env platform.Env, s OpenedActive, msg Message) (State, platform.Batch, error) {
	lease := s.Lease
	switch msg := msg.(type) {
	case Repay:
		payment, err := m.payment(env)
		if err != nil {
			return nil, platform.Batch{}, err
		}
		if payment.Ticker == lease.lpn() {
			return m.repay(ctx, env, lease, payment, platform.Batch{})
		}
		var batch platform.Batch
		batch.Schedule(platform.RemovePriceAlarm{Oracle: lease.Collaborators.Oracle})
		step, err := m.orchestrator(lease.Collaborators).Start(ctx, dex.Scope{Env: env, Account: lease.Account}, dex.FlowRepayment, []finance.Coin{payment}, lease.lpn())
		if err != nil {
			return nil, platform.Batch{}, err
		}
		batch.Schedule(step.Messages...)
		lease.Account = step.Account
		return Repayment{Lease: lease, Payment: payment, Task: step.Task}, batch, nil
	case ChangeClosePolicy:
		in, err := m.input(ctx, env, lease)
		if err != nil {
			return nil, platform.Batch{}, err
		}
		ltv, _, err := in.LTV()
		if err != nil {
			return nil, platform.Batch{}, err
		}
		policy, err := lease.Position.Policy.Change(msg.Change, lease.Position.Spec.Liability, ltv, in.Price)
		if err != nil {
			return nil, platform.Batch{}, err
		}
		lease.Position.Policy = policy
		var batch platform.Batch
		batch.Emit(events.LeaseClosePolicyChanged{Lease: lease.Address, TakeProfit: policy.TakeProfit, StopLoss: policy.StopLoss})
		return m.reconcile(ctx, env, lease, batch)
	case ClosePositionRequest:
		if msg.Amount == nil {
			return m.startClose(ctx, env, lease, lease.Asset, true, 0, platform.Batch{})
		}
		price, err := env.Querier.Price(ctx, lease.Asset.Ticker, lease.lpn())
		if err != nil {
			return nil, platform.Batch{}, err
		}
		if err := lease.Position.Spec.ValidateClose(lease.Asset, *msg.Amount, price); err != nil {
			return nil, platform.Batch{}, err
		}
		return m.startClose(ctx, env, lease, *msg.Amount, false, 0, platform.Batch{})
	case TimeAlarm, PriceAlarm, Heal:
		return m.reconcile(ctx, env, lease, platform.Batch{})
	default:
		return reject(s, msg)
	}
}

func (m *Machine) paidActive(ctx context.Context, env platform.Env, s PaidActive, msg Message) (State, platform.Batch, error) {
	switch msg.(type) {
	case Close:
		lease := s.Lease
		step, err := m.orchestrator(lease.Collaborators).Start(ctx, dex.Scope{Env: env, Account: lease.Account}, dex.FlowReturnAsset, []finance.Coin{lease.Asset}, "")
		if err != nil {
			return nil, platform.Batch{}, err
		}
		var batch platform.Batch
		batch.Schedule(step.Messages...)
		lease.Account = step.Account
		return ClosingTransferIn{Lease: lease, Task: step.Task}, batch, nil
	case Heal:
		return s, platform.Batch{}, nil
	default:
		return reject(s, msg)
	}
}

// input gathers what a position check needs at the current price.
func (m *Machine) input(ctx context.Context, env platform.Env, lease Lease) (position.Input, error) {
	price, err := env.Querier.Price(ctx, lease.Asset.Ticker, lease.lpn())
	if err != nil {
		return position.Input{}, err
	}
	state := lease.Loan.State(env.Now)
	return position.Input{
		Spec:               lease.Position.Spec,
		Policy:             lease.Position.Policy,
		Asset:              lease.Asset,
		Price:              price,
		Due:                state.TotalDue(),
		Overdue:            state.Overdue(),
		OverdueCollectable: lease.Loan.OverdueCollectable(env.Now),
		GraceDeadline:      lease.Loan.GraceDeadline(),
		Now:                env.Now,
	}, nil
}

// reconcile checks the position and either starts selling it or subscribes
// to the alarms bounding its current classification.
func (m *Machine) reconcile(ctx context.Context, env platform.Env, lease Lease, batch platform.Batch) (State, platform.Batch, error) {
	in, err := m.input(ctx, env, lease)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	status, err := position.Check(in)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	switch st := status.(type) {
	case position.NoDebt:
		batch.Schedule(platform.RemovePriceAlarm{Oracle: lease.Collaborators.Oracle})
		return PaidActive{Lease: lease}, batch, nil
	case position.NeedLiquidation:
		return m.startLiquidation(ctx, env, lease, st.Liquidation, batch)
	case position.CloseAsked:
		lease.Position.Policy = lease.Position.Policy.Without(st.Strategy)
		return m.startClose(ctx, env, lease, lease.Asset, true, st.Strategy, batch)
	case position.Steady:
		batch.Schedule(
			platform.AddTimeAlarm{TimeAlarms: lease.Collaborators.TimeAlarms, At: st.Steadiness.Horizon},
			platform.AddPriceAlarm{Oracle: lease.Collaborators.Oracle, Below: *st.Steadiness.Below, AboveOrEqual: st.Steadiness.AboveOrEqual},
		)
		return OpenedActive{Lease: lease}, batch, nil
	default:
		return nil, platform.Batch{}, ErrUnknownKind
	}
}

func (m *Machine) startLiquidation(ctx context.Context, env platform.Env, lease Lease, liq position.Liquidation, batch platform.Batch) (State, platform.Batch, error) {
	batch.Schedule(platform.RemovePriceAlarm{Oracle: lease.Collaborators.Oracle})
	batch.Emit(events.LeaseLiquidationStarted{
		Lease:  lease.Address,
		Cause:  liq.Cause.String(),
		Full:   liq.Full,
		Amount: liq.Amount,
		LTV:    liq.LTV,
	})
	step, err := m.orchestrator(lease.Collaborators).Start(ctx, dex.Scope{Env: env, Account: lease.Account}, dex.FlowClosing, []finance.Coin{liq.Amount}, lease.lpn())
	if err != nil {
		return nil, platform.Batch{}, err
	}
	batch.Schedule(step.Messages...)
	lease.Account = step.Account
	return Liquidation{Lease: lease, Liquidation: liq, Task: step.Task}, batch, nil
}

func (m *Machine) startClose(ctx context.Context, env platform.Env, lease Lease, amount finance.Coin, full bool, strategy position.Strategy, batch platform.Batch) (State, platform.Batch, error) {
	batch.Schedule(platform.RemovePriceAlarm{Oracle: lease.Collaborators.Oracle})
	trigger := "customer"
	if strategy != 0 {
		trigger = strategy.String()
	}
	batch.Emit(events.LeaseCloseStarted{Lease: lease.Address, Amount: amount, Full: full, Strategy: trigger})
	step, err := m.orchestrator(lease.Collaborators).Start(ctx, dex.Scope{Env: env, Account: lease.Account}, dex.FlowClosing, []finance.Coin{amount}, lease.lpn())
	if err != nil {
		return nil, platform.Batch{}, err
	}
	batch.Schedule(step.Messages...)
	lease.Account = step.Account
	return ClosePosition{Lease: lease, Full: full, Amount: amount, Strategy: strategy, Task: step.Task}, batch, nil
}

// repay applies an LPN payment to the loan and settles it with the profit,
// the pool and the customer.
func (m *Machine) repay(ctx context.Context, env platform.Env, lease Lease, payment finance.Coin, batch platform.Batch) (State, platform.Batch, error) {
	if _, err := m.applyPayment(env, &lease, payment, &batch); err != nil {
		return nil, platform.Batch{}, err
	}
	if lease.Loan.Paid() {
		batch.Schedule(platform.RemovePriceAlarm{Oracle: lease.Collaborators.Oracle})
		return PaidActive{Lease: lease}, batch, nil
	}
	return m.reconcile(ctx, env, lease, batch)
}

func (m *Machine) applyPayment(env platform.Env, lease *Lease, payment finance.Coin, batch *platform.Batch) (loan.RepayReceipt, error) {
	receipt, err := lease.Loan.Repay(payment, env.Now)
	if err != nil {
		return loan.RepayReceipt{}, err
	}
	if margin := receipt.MarginPaid(); !margin.IsZero() {
		batch.Schedule(platform.BankSend{To: lease.Collaborators.Profit, Coins: []finance.Coin{margin}})
	}
	if pool := receipt.PoolPaid(); !pool.IsZero() {
		batch.Schedule(platform.RepayLoan{
			Lpp:            lease.Collaborators.Lpp,
			Payment:        pool,
			Interest:       receipt.InterestPaid(),
			Principal:      receipt.Principal,
			InterestPaidBy: lease.Loan.Interest.Start,
		})
	}
	if !receipt.Change.IsZero() {
		batch.Schedule(platform.BankSend{To: lease.Customer, Coins: []finance.Coin{receipt.Change}})
	}
	batch.Emit(events.LeaseRepaid{
		Lease:           lease.Address,
		Payment:         payment,
		OverdueMargin:   receipt.OverdueMargin,
		OverdueInterest: receipt.OverdueInterest,
		DueMargin:       receipt.DueMargin,
		DueInterest:     receipt.DueInterest,
		Principal:       receipt.Principal,
		Change:          receipt.Change,
		LoanClosed:      receipt.Close,
	})
	return receipt, nil
}

// shortfall asks the reserve to cover what the pool is still owed after the
// whole position was sold.
func shortfall(env platform.Env, lease Lease, batch *platform.Batch) (finance.Coin, error) {
	if lease.Loan.Paid() {
		return finance.Zero(lease.lpn()), nil
	}
	state := lease.Loan.State(env.Now)
	interest, err := state.OverdueInterest.Add(state.DueInterest)
	if err != nil {
		return finance.Coin{}, err
	}
	owed, err := state.Principal.Add(interest)
	if err != nil {
		return finance.Coin{}, err
	}
	batch.Schedule(platform.CoverLosses{
		Reserve:   lease.Collaborators.Reserve,
		Lpp:       lease.Collaborators.Lpp,
		Amount:    owed,
		Interest:  interest,
		Principal: state.Principal,
		At:        env.Now,
	})
	return owed, nil
}
