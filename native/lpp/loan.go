package lpp

import (
	"leasechain/crypto"
	"leasechain/native/finance"
)

// Loan is the pool's record of what a lease borrowed.
type Loan struct {
	Lease          crypto.Address
	Principal      finance.Coin
	AnnualRate     finance.Percent
	InterestPaidBy finance.Timestamp
}

// RepayShares splits a repayment between interest, principal and the excess
// returned to the payer.
type RepayShares struct {
	Interest  finance.Coin
	Principal finance.Coin
	Excess    finance.Coin
}

// InterestDue is the interest accrued since InterestPaidBy.
func (l Loan) InterestDue(by finance.Timestamp) finance.Coin {
	return finance.Coin{
		Ticker: l.Principal.Ticker,
		Amount: finance.Interest(l.AnnualRate, l.Principal.Amount, by.Since(l.InterestPaidBy)),
	}
}

// Repayment is a payment the lease already split between interest and
// principal.
type Repayment struct {
	Interest       finance.Coin
	Principal      finance.Coin
	InterestPaidBy finance.Timestamp
}

// Settle books a pre-split repayment. Principal beyond what is owed comes back
// as excess and the interest clock never moves backwards.
func (l *Loan) Settle(r Repayment) (RepayShares, error) {
	lpn := l.Principal.Ticker
	for _, c := range []finance.Coin{r.Interest, r.Principal} {
		if c.Ticker != lpn && !c.IsZero() {
			return RepayShares{}, &finance.CurrencyMismatchError{Expected: lpn, Actual: c.Ticker}
		}
	}
	shares := RepayShares{
		Interest:  finance.Coin{Ticker: lpn, Amount: r.Interest.Amount},
		Principal: finance.Zero(lpn),
		Excess:    finance.Zero(lpn),
	}
	if r.Principal.Amount.Lt(&l.Principal.Amount) {
		shares.Principal.Amount = r.Principal.Amount
	} else {
		shares.Principal.Amount = l.Principal.Amount
		shares.Excess.Amount.Sub(&r.Principal.Amount, &l.Principal.Amount)
	}
	if r.InterestPaidBy > l.InterestPaidBy {
		l.InterestPaidBy = r.InterestPaidBy
	}
	l.Principal.Amount.Sub(&l.Principal.Amount, &shares.Principal.Amount)
	return shares, nil
}
