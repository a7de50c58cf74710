package lease

import (
	"fmt"

	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/loan"
	"leasechain/native/position"
)

// Collaborators are the contracts a lease talks to.
type Collaborators struct {
	Lpp        crypto.Address
	Oracle     crypto.Address
	TimeAlarms crypto.Address
	Profit     crypto.Address
	Reserve    crypto.Address
}

// Validate checks every address is set.
func (c Collaborators) Validate() error {
	named := []struct {
		name string
		addr crypto.Address
	}{
		{"lpp", c.Lpp}, {"oracle", c.Oracle}, {"time alarms", c.TimeAlarms}, {"profit", c.Profit}, {"reserve", c.Reserve},
	}
	for _, n := range named {
		if n.addr.IsZero() {
			return fmt.Errorf("%w: %s address required", ErrInvalidForm, n.name)
		}
	}
	return nil
}

// Position is the liability configuration of a lease together with the
// customer's close policy.
type Position struct {
	Spec   position.Spec
	Policy position.ClosePolicy
}

// Form is a customer request to open a lease. The downpayment travels as the
// funds of the call.
type Form struct {
	Customer      crypto.Address
	Currency      string
	MaxLTD        *finance.Percent `rlp:"nil"`
	Position      position.Spec
	AnnualMargin  finance.Percent
	DuePeriod     finance.Duration
	GracePeriod   finance.Duration
	Collaborators Collaborators
	Connection    dex.Connection
}

func (f Form) validate(reg *finance.Registry) error {
	if f.Customer.IsZero() {
		return fmt.Errorf("%w: customer required", ErrInvalidForm)
	}
	if !reg.InGroup(f.Currency, finance.GroupLease) {
		return fmt.Errorf("%w: %q is not a lease currency", ErrInvalidForm, f.Currency)
	}
	if _, err := reg.DexSymbol(f.Currency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	if err := f.Position.Validate(reg.Lpn()); err != nil {
		return err
	}
	if err := f.terms(0).Validate(); err != nil {
		return err
	}
	if err := f.Collaborators.Validate(); err != nil {
		return err
	}
	return f.Connection.Validate()
}

func (f Form) terms(annualInterest finance.Percent) loan.Terms {
	return loan.Terms{
		AnnualInterest: annualInterest,
		AnnualMargin:   f.AnnualMargin,
		DuePeriod:      f.DuePeriod,
		GracePeriod:    f.GracePeriod,
	}
}

// Grant is the loan the pool handed out.
type Grant struct {
	Amount     finance.Coin
	AnnualRate finance.Percent
	At         finance.Timestamp
}

// Lease is an open position.
type Lease struct {
	Address       crypto.Address
	Customer      crypto.Address
	Asset         finance.Coin
	Position      Position
	Loan          loan.Loan
	Collaborators Collaborators
	Account       dex.Account
}

func (l Lease) lpn() string { return l.Loan.Lpn() }

// sold removes amount from the position.
func (l Lease) sold(amount finance.Coin) (Lease, error) {
	left, err := l.Asset.Sub(amount)
	if err != nil {
		return Lease{}, err
	}
	l.Asset = left
	return l, nil
}
