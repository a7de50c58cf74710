package lease

import (
	"context"
	"errors"
	"fmt"

	"leasechain/core/events"
	"leasechain/crypto"
	nativecommon "leasechain/native/common"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/platform"
)

// PauseModule is the switch consulted by customer operations.
const PauseModule = "lease"

// Machine advances leases. It holds configuration only; every call takes the
// persisted state and returns its successor together with the messages and
// events to dispatch once the successor is saved.
type Machine struct {
	Registry *finance.Registry
	Builder  dex.Builder
	// PollInterval and TransferInTimeout drive the transfer in balance
	// checks.
	PollInterval      finance.Duration
	TransferInTimeout finance.Duration
	Pauses            nativecommon.PauseView
}

func (m *Machine) orchestrator(c Collaborators) dex.Orchestrator {
	return dex.Orchestrator{
		Builder:           m.Builder,
		TimeAlarms:        c.TimeAlarms,
		PollInterval:      m.PollInterval,
		TransferInTimeout: m.TransferInTimeout,
	}
}

// Handle dispatches msg to the state. On error nothing must be persisted.
func (m *Machine) Handle(ctx context.Context, env platform.Env, st State, msg Message) (State, platform.Batch, error) {
	if env.Querier == nil {
		return nil, platform.Batch{}, errMissingQuerier
	}
	if env.IDs == nil {
		return nil, platform.Batch{}, errMissingSequencer
	}
	if st.Kind().Terminal() {
		if isCustomer(msg) {
			return nil, platform.Batch{}, unsupported(msg, st)
		}
		return nil, platform.Batch{}, violation(msg, st, ErrTerminated)
	}
	if err := authorize(env, st, msg); err != nil {
		return nil, platform.Batch{}, err
	}
	if isCustomer(msg) {
		if err := nativecommon.Guard(m.Pauses, PauseModule); err != nil {
			return nil, platform.Batch{}, err
		}
	}
	switch s := st.(type) {
	case RequestLoan:
		return m.requestLoan(ctx, env, s, msg)
	case OpenIcaAccount:
		return m.openIcaAccount(ctx, env, s, msg)
	case Opening:
		return m.opening(ctx, env, s, msg)
	case OpenedActive:
		return m.openedActive(ctx, env, s, msg)
	case Repayment:
		return m.repayment(ctx, env, s, msg)
	case Liquidation:
		return m.liquidation(ctx, env, s, msg)
	case ClosePosition:
		return m.closePosition(ctx, env, s, msg)
	case ClosingTransferIn:
		return m.closingTransferIn(ctx, env, s, msg)
	case PaidActive:
		return m.paidActive(ctx, env, s, msg)
	default:
		return nil, platform.Batch{}, fmt.Errorf("%w: %T", ErrUnknownKind, st)
	}
}

func authorize(env platform.Env, st State, msg Message) error {
	switch msg.(type) {
	case DexCallback, DexCallbackContinue:
		return expectSender(env, env.Contract, msg)
	case TimeAlarm:
		return expectSender(env, collaboratorsOf(st).TimeAlarms, msg)
	case PriceAlarm:
		return expectSender(env, collaboratorsOf(st).Oracle, msg)
	case LoanOpened:
		return expectSender(env, collaboratorsOf(st).Lpp, msg)
	}
	if isCustomer(msg) {
		return expectSender(env, customerOf(st), msg)
	}
	return nil
}

func expectSender(env platform.Env, want crypto.Address, msg Message) error {
	if want.IsZero() || env.Sender != want {
		return fmt.Errorf("%w: %s from %s", ErrUnauthorized, msg.Operation(), env.Sender)
	}
	return nil
}

func collaboratorsOf(st State) Collaborators {
	switch s := st.(type) {
	case RequestLoan:
		return s.Form.Collaborators
	case OpenIcaAccount:
		return s.Form.Collaborators
	case Opening:
		return s.Form.Collaborators
	}
	if l, ok := leaseOf(st); ok {
		return l.Collaborators
	}
	return Collaborators{}
}

func customerOf(st State) crypto.Address {
	switch s := st.(type) {
	case RequestLoan:
		return s.Form.Customer
	case OpenIcaAccount:
		return s.Form.Customer
	case Opening:
		return s.Form.Customer
	case Closed:
		return s.Customer
	case Liquidated:
		return s.Customer
	}
	if l, ok := leaseOf(st); ok {
		return l.Customer
	}
	return crypto.Address{}
}

// reject answers a message the state has no handler for.
func reject(st State, msg Message) (State, platform.Batch, error) {
	if isCustomer(msg) {
		return nil, platform.Batch{}, unsupported(msg, st)
	}
	return nil, platform.Batch{}, violation(msg, st, nil)
}

// drive hands a DEX related message to the orchestrator.
func (m *Machine) drive(ctx context.Context, env platform.Env, st State, coll Collaborators, acc dex.Account, task dex.Task, msg Message) (dex.Step, platform.Batch, bool, error) {
	o := m.orchestrator(coll)
	sc := dex.Scope{Env: env, Account: acc}
	var (
		step dex.Step
		err  error
	)
	switch msg := msg.(type) {
	case OnResponse:
		step, err = o.OnResponse(ctx, sc, task, msg.Correlation, msg.Data)
	case OnTimeout:
		step, err = o.OnTimeout(ctx, sc, task, msg.Correlation)
	case OnError:
		step, err = o.OnError(ctx, sc, task, msg.Correlation)
	case OnOpenAck:
		step, err = o.OnOpenAck(ctx, sc, task, msg.Correlation, msg.Host)
	case DexCallback:
		step, err = o.OnCallback(ctx, sc, task)
	case DexCallbackContinue:
		step, err = o.OnContinue(ctx, sc, task)
	case TimeAlarm:
		step, err = o.OnTimeAlarm(ctx, sc, task)
	case Heal:
		step, err = o.Heal(ctx, sc, task)
	default:
		return dex.Step{}, platform.Batch{}, false, nil
	}
	if err != nil {
		if errors.Is(err, dex.ErrUnexpected) {
			return dex.Step{}, platform.Batch{}, true, violation(msg, st, err)
		}
		return dex.Step{}, platform.Batch{}, true, err
	}
	var batch platform.Batch
	batch.Schedule(step.Messages...)
	if step.Task.Phase == dex.PhaseRecoveringIca && task.Phase != dex.PhaseRecoveringIca {
		batch.Emit(events.LeaseDexTimeout{Lease: env.Contract, Stage: task.Stage.String()})
	}
	if step.Task.Anomalous() && !task.Anomalous() {
		batch.Emit(events.LeaseSlippageAnomaly{Lease: env.Contract, Stage: task.Stage.String()})
	}
	return step, batch, true, nil
}

// payment returns the single coin attached to a call.
func (m *Machine) payment(env platform.Env) (finance.Coin, error) {
	if len(env.Funds) != 1 {
		return finance.Coin{}, fmt.Errorf("%w: expected one coin, got %d", ErrInvalidPayment, len(env.Funds))
	}
	coin := env.Funds[0]
	if coin.IsZero() {
		return finance.Coin{}, fmt.Errorf("%w: zero amount", ErrInvalidPayment)
	}
	if !m.Registry.Payable(coin.Ticker) {
		return finance.Coin{}, fmt.Errorf("%w: %s is not accepted", ErrInvalidPayment, coin.Ticker)
	}
	return coin, nil
}
