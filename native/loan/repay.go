package loan

import (
	"github.com/holiman/uint256"

	"leasechain/native/finance"
)

// RepayReceipt records how a payment was allocated. The amounts add up to the
// payment exactly.
type RepayReceipt struct {
	OverdueMargin   finance.Coin
	OverdueInterest finance.Coin
	DueMargin       finance.Coin
	DueInterest     finance.Coin
	Principal       finance.Coin
	Change          finance.Coin
	Close           bool
}

func emptyReceipt(ticker string) RepayReceipt {
	zero := finance.Zero(ticker)
	return RepayReceipt{
		OverdueMargin:   zero,
		OverdueInterest: zero,
		DueMargin:       zero,
		DueInterest:     zero,
		Principal:       zero,
		Change:          zero,
	}
}

// MarginPaid is the part of the payment owed to the protocol.
func (r RepayReceipt) MarginPaid() finance.Coin {
	return sum(r.Principal.Ticker, r.OverdueMargin, r.DueMargin)
}

// InterestPaid is the loan interest owed to the pool.
func (r RepayReceipt) InterestPaid() finance.Coin {
	return sum(r.Principal.Ticker, r.OverdueInterest, r.DueInterest)
}

// PoolPaid is the interest and principal forwarded to the pool.
func (r RepayReceipt) PoolPaid() finance.Coin {
	return sum(r.Principal.Ticker, r.InterestPaid(), r.Principal)
}

// Total is the whole payment.
func (r RepayReceipt) Total() finance.Coin {
	return sum(r.Principal.Ticker, r.MarginPaid(), r.PoolPaid(), r.Change)
}

// Repay allocates payment to overdue margin, overdue interest, due margin, due
// interest and principal in that order. Whatever is left is returned as
// change. A zero payment leaves the loan untouched.
func (l *Loan) Repay(payment finance.Coin, now finance.Timestamp) (RepayReceipt, error) {
	lpn := l.Lpn()
	if payment.Ticker != lpn {
		return RepayReceipt{}, &finance.CurrencyMismatchError{Expected: lpn, Actual: payment.Ticker}
	}
	receipt := emptyReceipt(lpn)
	receipt.Close = l.Paid()
	if payment.IsZero() {
		return receipt, nil
	}

	remaining := payment.Amount
	principal := l.Principal.Amount
	boundary := l.overdueBoundary(now)

	margin := l.Margin.ExtendTo(now)
	interest := l.Interest.ExtendTo(now)

	margin, receipt.OverdueMargin.Amount = payUntil(margin, principal, &remaining, boundary)
	interest, receipt.OverdueInterest.Amount = payUntil(interest, principal, &remaining, boundary)
	margin, receipt.DueMargin.Amount = payUntil(margin, principal, &remaining, now)
	interest, receipt.DueInterest.Amount = payUntil(interest, principal, &remaining, now)

	if remaining.Lt(&principal) {
		receipt.Principal.Amount = remaining
		remaining.Clear()
	} else {
		receipt.Principal.Amount = principal
		remaining.Sub(&remaining, &principal)
	}
	receipt.Change.Amount = remaining

	l.Margin = margin
	l.Interest = interest
	l.Principal.Amount.Sub(&l.Principal.Amount, &receipt.Principal.Amount)
	receipt.Close = l.Paid()
	return receipt, nil
}

// payUntil pays the stream's interest accrued up to until out of remaining and
// returns the amount taken.
func payUntil(stream finance.InterestPeriod, principal uint256.Int, remaining *uint256.Int, until finance.Timestamp) (finance.InterestPeriod, uint256.Int) {
	var paid uint256.Int
	if until <= stream.Start || remaining.IsZero() {
		return stream, paid
	}
	window := finance.InterestPeriod{Start: stream.Start, Length: until.Since(stream.Start), Rate: stream.Rate}
	settled, change := window.Pay(principal, *remaining, until)
	paid.Sub(remaining, &change)
	*remaining = change
	stream.Length = stream.Till().Since(settled.Start)
	stream.Start = settled.Start
	return stream, paid
}
