package lease

import (
	"context"

	"leasechain/core/events"
	"leasechain/native/finance"
	"leasechain/native/platform"
)

func (m *Machine) repayment(ctx context.Context, env platform.Env, s Repayment, msg Message) (State, platform.Batch, error) {
	step, batch, handled, err := m.drive(ctx, env, s, s.Lease.Collaborators, s.Lease.Account, s.Task, msg)
	if !handled {
		return reject(s, msg)
	}
	if err != nil {
		return nil, platform.Batch{}, err
	}
	s.Lease.Account, s.Task = step.Account, step.Task
	if !step.Finished {
		return s, batch, nil
	}
	return m.repay(ctx, env, s.Lease, s.Task.Received, batch)
}

func (m *Machine) liquidation(ctx context.Context, env platform.Env, s Liquidation, msg Message) (State, platform.Batch, error) {
	step, batch, handled, err := m.drive(ctx, env, s, s.Lease.Collaborators, s.Lease.Account, s.Task, msg)
	if !handled {
		return reject(s, msg)
	}
	if err != nil {
		return nil, platform.Batch{}, err
	}
	s.Lease.Account, s.Task = step.Account, step.Task
	if !step.Finished {
		return s, batch, nil
	}

	proceeds := s.Task.Received
	lease, err := s.Lease.sold(s.Liquidation.Amount)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	if !s.Liquidation.Full {
		batch.Emit(events.LeaseLiquidated{Lease: lease.Address, Sold: s.Liquidation.Amount, Proceeds: proceeds, Shortfall: finance.Zero(proceeds.Ticker)})
		return m.repay(ctx, env, lease, proceeds, batch)
	}
	if _, err := m.applyPayment(env, &lease, proceeds, &batch); err != nil {
		return nil, platform.Batch{}, err
	}
	lost, err := shortfall(env, lease, &batch)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	batch.Emit(events.LeaseLiquidated{Lease: lease.Address, Sold: s.Liquidation.Amount, Proceeds: proceeds, Shortfall: lost, Full: true})
	return Liquidated{Lease: lease.Address, Customer: lease.Customer}, batch, nil
}

func (m *Machine) closePosition(ctx context.Context, env platform.Env, s ClosePosition, msg Message) (State, platform.Batch, error) {
	step, batch, handled, err := m.drive(ctx, env, s, s.Lease.Collaborators, s.Lease.Account, s.Task, msg)
	if !handled {
		return reject(s, msg)
	}
	if err != nil {
		return nil, platform.Batch{}, err
	}
	s.Lease.Account, s.Task = step.Account, step.Task
	if !step.Finished {
		return s, batch, nil
	}

	proceeds := s.Task.Received
	lease, err := s.Lease.sold(s.Amount)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	batch.Emit(events.LeasePositionClosed{Lease: lease.Address, Sold: s.Amount, Proceeds: proceeds, Full: s.Full})
	if !s.Full {
		return m.repay(ctx, env, lease, proceeds, batch)
	}
	if _, err := m.applyPayment(env, &lease, proceeds, &batch); err != nil {
		return nil, platform.Batch{}, err
	}
	if _, err := shortfall(env, lease, &batch); err != nil {
		return nil, platform.Batch{}, err
	}
	return Closed{Lease: lease.Address, Customer: lease.Customer}, batch, nil
}

func (m *Machine) closingTransferIn(ctx context.Context, env platform.Env, s ClosingTransferIn, msg Message) (State, platform.Batch, error) {
	step, batch, handled, err := m.drive(ctx, env, s, s.Lease.Collaborators, s.Lease.Account, s.Task, msg)
	if !handled {
		return reject(s, msg)
	}
	if err != nil {
		return nil, platform.Batch{}, err
	}
	s.Lease.Account, s.Task = step.Account, step.Task
	if !step.Finished {
		return s, batch, nil
	}
	returned := s.Task.Received
	batch.Schedule(platform.BankSend{To: s.Lease.Customer, Coins: []finance.Coin{returned}})
	batch.Emit(events.LeaseClosed{Lease: s.Lease.Address, Customer: s.Lease.Customer, Returned: returned})
	return Closed{Lease: s.Lease.Address, Customer: s.Lease.Customer}, batch, nil
}
