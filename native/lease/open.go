package lease

import (
	"context"
	"fmt"

	"leasechain/core/events"
	nativecommon "leasechain/native/common"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/loan"
	"leasechain/native/platform"
)

// Instantiate validates an open request, sizes the loan against the
// downpayment attached to the call and asks the pool for it.
func (m *Machine) Instantiate(ctx context.Context, env platform.Env, form Form) (State, platform.Batch, error) {
	if env.Querier == nil {
		return nil, platform.Batch{}, errMissingQuerier
	}
	if env.IDs == nil {
		return nil, platform.Batch{}, errMissingSequencer
	}
	if err := nativecommon.Guard(m.Pauses, PauseModule); err != nil {
		return nil, platform.Batch{}, err
	}
	if err := form.validate(m.Registry); err != nil {
		return nil, platform.Batch{}, err
	}
	if env.Sender != form.Customer {
		return nil, platform.Batch{}, fmt.Errorf("%w: lease for %s opened by %s", ErrUnauthorized, form.Customer, env.Sender)
	}
	downpayment, err := m.payment(env)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	lpn := m.Registry.Lpn()
	value := downpayment
	if downpayment.Ticker != lpn {
		price, err := env.Querier.Price(ctx, downpayment.Ticker, lpn)
		if err != nil {
			return nil, platform.Batch{}, err
		}
		if value, err = price.Convert(downpayment); err != nil {
			return nil, platform.Batch{}, err
		}
	}
	borrow := form.Position.Liability.InitBorrowAmount(value, form.MaxLTD)
	if borrow.IsZero() {
		return nil, platform.Batch{}, fmt.Errorf("%w: downpayment %s buys no loan", ErrInvalidForm, downpayment)
	}
	total, err := value.Add(borrow)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	if err := form.Position.ValidateOpen(value, total); err != nil {
		return nil, platform.Batch{}, err
	}

	corr := env.IDs.Next("open_loan")
	var batch platform.Batch
	batch.Schedule(platform.OpenLoan{Lpp: form.Collaborators.Lpp, Amount: borrow, Correlation: corr})
	return RequestLoan{
		Form:        form,
		Downpayment: downpayment,
		Borrow:      borrow,
		Pending:     platform.Pending{ID: corr, Op: "open_loan"},
	}, batch, nil
}

func (m *Machine) requestLoan(ctx context.Context, env platform.Env, s RequestLoan, msg Message) (State, platform.Batch, error) {
	switch msg := msg.(type) {
	case LoanOpened:
		if !s.Pending.Matches(msg.Correlation) {
			return nil, platform.Batch{}, violation(msg, s, fmt.Errorf("unknown correlation %q", msg.Correlation))
		}
		if !msg.Amount.Equal(s.Borrow) {
			return nil, platform.Batch{}, violation(msg, s, fmt.Errorf("granted %s, requested %s", msg.Amount, s.Borrow))
		}
		grant := Grant{Amount: msg.Amount, AnnualRate: msg.AnnualRate, At: msg.InterestPaidBy}
		if grant.At == 0 || grant.At > env.Now {
			grant.At = env.Now
		}
		return m.registerIca(env, OpenIcaAccount{Form: s.Form, Downpayment: s.Downpayment, Grant: grant})
	case Heal:
		return s, platform.Batch{}, nil
	default:
		return reject(s, msg)
	}
}

func (m *Machine) registerIca(env platform.Env, s OpenIcaAccount) (State, platform.Batch, error) {
	corr := env.IDs.Next("register_ica")
	s.Pending = platform.Pending{ID: corr, Op: "register_ica"}
	var batch platform.Batch
	batch.Schedule(m.Builder.RegisterIca(env.Contract, s.Form.Connection, corr))
	return s, batch, nil
}

func (m *Machine) openIcaAccount(ctx context.Context, env platform.Env, s OpenIcaAccount, msg Message) (State, platform.Batch, error) {
	switch msg := msg.(type) {
	case OnOpenAck:
		if !s.Pending.Matches(msg.Correlation) {
			return nil, platform.Batch{}, violation(msg, s, fmt.Errorf("unknown correlation %q", msg.Correlation))
		}
		acc, err := dex.NewAccount(env.Contract, msg.Host, s.Form.Connection)
		if err != nil {
			return nil, platform.Batch{}, err
		}
		coins := []finance.Coin{s.Downpayment, s.Grant.Amount}
		if s.Downpayment.Ticker == s.Grant.Amount.Ticker {
			merged, err := s.Downpayment.Add(s.Grant.Amount)
			if err != nil {
				return nil, platform.Batch{}, err
			}
			coins = []finance.Coin{merged}
		}
		o := m.orchestrator(s.Form.Collaborators)
		step, err := o.Start(ctx, dex.Scope{Env: env, Account: acc}, dex.FlowOpening, coins, s.Form.Currency)
		if err != nil {
			return nil, platform.Batch{}, err
		}
		var batch platform.Batch
		batch.Schedule(step.Messages...)
		next := Opening{Form: s.Form, Downpayment: s.Downpayment, Grant: s.Grant, Account: step.Account, Task: step.Task}
		return next, batch, nil
	case OnTimeout:
		if !s.Pending.Matches(msg.Correlation) {
			return nil, platform.Batch{}, violation(msg, s, fmt.Errorf("unknown correlation %q", msg.Correlation))
		}
		return m.registerIca(env, s)
	case Heal:
		return m.registerIca(env, s)
	default:
		return reject(s, msg)
	}
}

func (m *Machine) opening(ctx context.Context, env platform.Env, s Opening, msg Message) (State, platform.Batch, error) {
	step, batch, handled, err := m.drive(ctx, env, s, s.Form.Collaborators, s.Account, s.Task, msg)
	if !handled {
		return reject(s, msg)
	}
	if err != nil {
		return nil, platform.Batch{}, err
	}
	s.Account, s.Task = step.Account, step.Task
	if !step.Finished {
		return s, batch, nil
	}

	terms := s.Form.terms(s.Grant.AnnualRate)
	l, err := loan.New(s.Grant.Amount, terms, s.Grant.At)
	if err != nil {
		return nil, platform.Batch{}, err
	}
	lease := Lease{
		Address:       env.Contract,
		Customer:      s.Form.Customer,
		Asset:         s.Task.Received,
		Position:      Position{Spec: s.Form.Position},
		Loan:          l,
		Collaborators: s.Form.Collaborators,
		Account:       s.Account,
	}
	batch.Emit(events.LeaseOpened{
		Lease:          lease.Address,
		Customer:       lease.Customer,
		Asset:          lease.Asset,
		Downpayment:    s.Downpayment,
		Loan:           s.Grant.Amount,
		AnnualInterest: terms.AnnualInterest,
		AnnualMargin:   terms.AnnualMargin,
		At:             env.Now,
	})
	return m.reconcile(ctx, env, lease, batch)
}
