package dex

import (
	"context"
	"fmt"

	"leasechain/crypto"
	"leasechain/native/finance"
	"leasechain/native/platform"
)

// Orchestrator drives tasks through their stages. It is stateless; every
// call takes the persisted task and returns its successor.
type Orchestrator struct {
	Builder    Builder
	TimeAlarms crypto.Address
	// PollInterval spaces the balance checks after a transfer in.
	PollInterval finance.Duration
	// TransferInTimeout bounds the wait for transferred funds before the
	// transfer is reissued.
	TransferInTimeout finance.Duration
}

// Scope is what a call needs besides the task.
type Scope struct {
	Env     platform.Env
	Account Account
}

// Step is the outcome of a call.
type Step struct {
	Task     Task
	Account  Account
	Messages []platform.Message
	// Finished is set when the continuation arrived and the caller takes
	// over.
	Finished bool
}

func (o Orchestrator) step(sc Scope, t Task) Step {
	return Step{Task: t, Account: sc.Account}
}

// Start begins flow over coins. FlowReturnAsset takes a single coin and
// ignores target.
func (o Orchestrator) Start(ctx context.Context, sc Scope, flow Flow, coins []finance.Coin, target string) (Step, error) {
	stage, ok := flow.first()
	if !ok {
		return Step{}, fmt.Errorf("dex: unknown flow %d", flow)
	}
	if !sc.Account.Opened() {
		return Step{}, ErrInvalidAccount
	}
	t := Task{Flow: flow, Stage: stage, Coins: append([]finance.Coin(nil), coins...), Target: target}
	if flow == FlowReturnAsset {
		if len(coins) != 1 {
			return Step{}, fmt.Errorf("dex: returning the asset takes one coin, got %d", len(coins))
		}
		t.Received = coins[0]
		t.Target = coins[0].Ticker
	}
	return o.enter(ctx, sc, o.step(sc, t))
}

// OnResponse handles a successful acknowledgement of the pending packet.
func (o Orchestrator) OnResponse(ctx context.Context, sc Scope, t Task, id string, data []byte) (Step, error) {
	if err := awaitingAck(t, id); err != nil {
		return Step{}, err
	}
	switch t.Stage {
	case StageTransferOut:
		t.Index++
	case StageSwap:
		resp, err := DecodeTxResponse(data)
		if err != nil {
			return Step{}, err
		}
		out, err := o.Builder.SwapOutput(resp, int(t.Swaps))
		if err != nil {
			return Step{}, err
		}
		if _, overflow := t.Received.Amount.AddOverflow(&t.Received.Amount, &out); overflow {
			return Step{}, finance.ErrOverflow
		}
	}
	t.Phase = PhaseAwaitingCallback
	t.Pending = platform.Pending{}
	s := o.step(sc, t)
	s.Messages = append(s.Messages, platform.SelfCallback{Kind: platform.DexCallback})
	return s, nil
}

// OnCallback resumes the task after an acknowledged step.
func (o Orchestrator) OnCallback(ctx context.Context, sc Scope, t Task) (Step, error) {
	if t.Phase != PhaseAwaitingCallback {
		return Step{}, fmt.Errorf("%w: callback in phase %s", ErrUnexpected, t.Phase)
	}
	if t.Stage == StageTransferOut {
		return o.enter(ctx, sc, o.step(sc, t))
	}
	return o.advance(ctx, sc, o.step(sc, t))
}

// OnContinue hands the completed task back to the caller.
func (o Orchestrator) OnContinue(ctx context.Context, sc Scope, t Task) (Step, error) {
	if t.Phase != PhaseCompleted {
		return Step{}, fmt.Errorf("%w: continuation in phase %s", ErrUnexpected, t.Phase)
	}
	s := o.step(sc, t)
	s.Finished = true
	return s, nil
}

// OnTimeout reopens the interchain account; the stage is reissued once the
// account is acknowledged.
func (o Orchestrator) OnTimeout(ctx context.Context, sc Scope, t Task, id string) (Step, error) {
	if err := awaitingAck(t, id); err != nil {
		return Step{}, err
	}
	corr := sc.Env.IDs.Next("register_ica")
	t.Phase = PhaseRecoveringIca
	t.Pending = platform.Pending{ID: corr, Op: "register_ica"}
	t.Attempts++
	s := o.step(sc, t)
	s.Messages = append(s.Messages, o.Builder.RegisterIca(sc.Account.Owner, sc.Account.Connection, corr))
	return s, nil
}

// OnOpenAck records the reopened account and reissues the current stage.
func (o Orchestrator) OnOpenAck(ctx context.Context, sc Scope, t Task, id, host string) (Step, error) {
	if t.Phase != PhaseRecoveringIca || !t.Pending.Matches(id) {
		return Step{}, fmt.Errorf("%w: account acknowledgement in phase %s", ErrUnexpected, t.Phase)
	}
	acc, err := NewAccount(sc.Account.Owner, host, sc.Account.Connection)
	if err != nil {
		return Step{}, err
	}
	sc.Account = acc
	return o.enter(ctx, sc, o.step(sc, t))
}

// OnError handles an error acknowledgement. Transfers out are retried, a
// failed swap parks the task until healed and a failed transfer in falls
// back to watching the balance.
func (o Orchestrator) OnError(ctx context.Context, sc Scope, t Task, id string) (Step, error) {
	if err := awaitingAck(t, id); err != nil {
		return Step{}, err
	}
	t.Pending = platform.Pending{}
	switch t.Stage {
	case StageSwap:
		t.Phase = PhaseAnomaly
		return o.step(sc, t), nil
	case StageTransferInInit:
		t.Stage = StageTransferInFinish
		return o.enterTransferInFinish(ctx, sc, o.step(sc, t))
	default:
		t.Attempts++
		return o.enter(ctx, sc, o.step(sc, t))
	}
}

// OnTimeAlarm checks whether transferred funds arrived.
func (o Orchestrator) OnTimeAlarm(ctx context.Context, sc Scope, t Task) (Step, error) {
	if t.Phase != PhaseAwaitingBalance {
		return Step{}, fmt.Errorf("%w: time alarm in phase %s", ErrUnexpected, t.Phase)
	}
	return o.pollBalance(ctx, sc, o.step(sc, t))
}

// Heal re-drives a task that stopped making progress. Tasks waiting on an
// in-flight packet are left alone.
func (o Orchestrator) Heal(ctx context.Context, sc Scope, t Task) (Step, error) {
	s := o.step(sc, t)
	switch t.Phase {
	case PhaseAnomaly:
		return o.enter(ctx, sc, s)
	case PhaseAwaitingBalance:
		return o.pollBalance(ctx, sc, s)
	case PhaseAwaitingCallback:
		s.Messages = append(s.Messages, platform.SelfCallback{Kind: platform.DexCallback})
	case PhaseCompleted:
		s.Messages = append(s.Messages, platform.SelfCallback{Kind: platform.DexCallbackContinue})
	}
	return s, nil
}

func awaitingAck(t Task, id string) error {
	if t.Phase != PhaseAwaitingAck {
		return fmt.Errorf("%w: acknowledgement in phase %s", ErrUnexpected, t.Phase)
	}
	if !t.Pending.Matches(id) {
		return fmt.Errorf("%w: unknown correlation %q", ErrUnexpected, id)
	}
	return nil
}

func (o Orchestrator) enter(ctx context.Context, sc Scope, s Step) (Step, error) {
	switch s.Task.Stage {
	case StageTransferOut:
		return o.enterTransferOut(ctx, sc, s)
	case StageSwap:
		return o.enterSwap(ctx, sc, s)
	case StageTransferInInit:
		return o.enterTransferIn(ctx, sc, s)
	case StageTransferInFinish:
		return o.enterTransferInFinish(ctx, sc, s)
	default:
		return Step{}, fmt.Errorf("dex: unknown stage %d", s.Task.Stage)
	}
}

func (o Orchestrator) advance(ctx context.Context, sc Scope, s Step) (Step, error) {
	next, ok := s.Task.Flow.next(s.Task.Stage)
	if !ok {
		return o.complete(s), nil
	}
	s.Task.Stage = next
	return o.enter(ctx, sc, s)
}

func (o Orchestrator) complete(s Step) Step {
	s.Task.Phase = PhaseCompleted
	s.Task.Pending = platform.Pending{}
	s.Messages = append(s.Messages, platform.SelfCallback{Kind: platform.DexCallbackContinue})
	return s
}

func (o Orchestrator) await(s Step, corr, op string, msg platform.Message) Step {
	s.Task.Phase = PhaseAwaitingAck
	s.Task.Pending = platform.Pending{ID: corr, Op: op}
	s.Messages = append(s.Messages, msg)
	return s
}

func (o Orchestrator) enterTransferOut(ctx context.Context, sc Scope, s Step) (Step, error) {
	t := &s.Task
	for t.Index < uint64(len(t.Coins)) && t.Coins[t.Index].IsZero() {
		t.Index++
	}
	if t.Index >= uint64(len(t.Coins)) {
		return o.advance(ctx, sc, s)
	}
	corr := sc.Env.IDs.Next("transfer_out")
	msg, err := o.Builder.TransferOut(sc.Account, t.Coins[t.Index], sc.Env.Now, corr)
	if err != nil {
		return Step{}, err
	}
	return o.await(s, corr, "transfer_out", msg), nil
}

func (o Orchestrator) enterSwap(ctx context.Context, sc Scope, s Step) (Step, error) {
	corr := sc.Env.IDs.Next("swap")
	tx, direct, swaps, err := o.Builder.Swap(ctx, sc.Env.Querier, sc.Account, s.Task.Coins, s.Task.Target, sc.Env.Now, corr)
	if err != nil {
		return Step{}, err
	}
	s.Task.Received = direct
	s.Task.Swaps = uint64(swaps)
	if tx == nil {
		return o.advance(ctx, sc, s)
	}
	return o.await(s, corr, "swap", *tx), nil
}

func (o Orchestrator) enterTransferIn(ctx context.Context, sc Scope, s Step) (Step, error) {
	if s.Task.Received.IsZero() {
		return o.complete(s), nil
	}
	baseline, err := sc.Env.Querier.Balance(ctx, sc.Env.Contract, s.Task.Received.Ticker)
	if err != nil {
		return Step{}, err
	}
	s.Task.Baseline = baseline
	corr := sc.Env.IDs.Next("transfer_in")
	tx, err := o.Builder.TransferIn(sc.Account, s.Task.Received, sc.Env.Now, corr)
	if err != nil {
		return Step{}, err
	}
	return o.await(s, corr, "transfer_in", tx), nil
}

func (o Orchestrator) enterTransferInFinish(ctx context.Context, sc Scope, s Step) (Step, error) {
	s.Task.Deadline = sc.Env.Now.Add(o.TransferInTimeout)
	s.Task.Pending = platform.Pending{}
	return o.pollBalance(ctx, sc, s)
}

func (o Orchestrator) pollBalance(ctx context.Context, sc Scope, s Step) (Step, error) {
	t := &s.Task
	balance, err := sc.Env.Querier.Balance(ctx, sc.Env.Contract, t.Received.Ticker)
	if err != nil {
		return Step{}, err
	}
	expected, err := t.Baseline.Add(t.Received)
	if err != nil {
		return Step{}, err
	}
	arrived, err := balance.Cmp(expected)
	if err != nil {
		return Step{}, err
	}
	if arrived >= 0 {
		return o.complete(s), nil
	}
	if !sc.Env.Now.Before(t.Deadline) {
		t.Stage = StageTransferInInit
		t.Attempts++
		return o.enterTransferIn(ctx, sc, s)
	}
	t.Phase = PhaseAwaitingBalance
	s.Messages = append(s.Messages, platform.AddTimeAlarm{
		TimeAlarms: o.TimeAlarms,
		At:         sc.Env.Now.Add(o.PollInterval),
	})
	return s, nil
}
