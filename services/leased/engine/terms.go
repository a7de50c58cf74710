package engine

import (
	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/position"
)

// Terms are the host-wide parameters every new lease is opened with.
type Terms struct {
	Position      position.Spec
	AnnualMargin  finance.Percent
	DuePeriod     finance.Duration
	GracePeriod   finance.Duration
	Collaborators lease.Collaborators
	Connection    dex.Connection
}

// Form completes a customer's open request with the host terms.
func (t Terms) Form(customer crypto.Address, currency string, maxLTD *finance.Percent) lease.Form {
	return lease.Form{
		Customer:      customer,
		Currency:      currency,
		MaxLTD:        maxLTD,
		Position:      t.Position,
		AnnualMargin:  t.AnnualMargin,
		DuePeriod:     t.DuePeriod,
		GracePeriod:   t.GracePeriod,
		Collaborators: t.Collaborators,
		Connection:    t.Connection,
	}
}
