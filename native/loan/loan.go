package loan

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"leasechain/native/finance"
)

var (
	ErrInvalidPeriods = errors.New("loan: due period must be positive and shorter than the grace period")
	ErrZeroPrincipal  = errors.New("loan: principal must be positive")
)

// Loan tracks the principal a lease owes the pool together with the margin and
// loan interest streams accruing on it.
type Loan struct {
	Principal   finance.Coin
	Interest    finance.InterestPeriod
	Margin      finance.InterestPeriod
	DuePeriod   finance.Duration
	GracePeriod finance.Duration
}

// Terms configures a new loan.
type Terms struct {
	AnnualInterest finance.Percent
	AnnualMargin   finance.Percent
	DuePeriod      finance.Duration
	GracePeriod    finance.Duration
}

// Validate checks the due and grace windows.
func (t Terms) Validate() error {
	if t.DuePeriod == 0 || t.DuePeriod >= t.GracePeriod {
		return fmt.Errorf("%w: due=%s grace=%s", ErrInvalidPeriods, t.DuePeriod, t.GracePeriod)
	}
	return nil
}

// New opens a loan whose interest starts accruing at start.
func New(principal finance.Coin, terms Terms, start finance.Timestamp) (Loan, error) {
	if principal.IsZero() {
		return Loan{}, ErrZeroPrincipal
	}
	if err := terms.Validate(); err != nil {
		return Loan{}, err
	}
	return Loan{
		Principal:   principal,
		Interest:    finance.NewInterestPeriod(terms.AnnualInterest, start),
		Margin:      finance.NewInterestPeriod(terms.AnnualMargin, start),
		DuePeriod:   terms.DuePeriod,
		GracePeriod: terms.GracePeriod,
	}, nil
}

// Lpn is the ticker the loan is denominated in.
func (l Loan) Lpn() string { return l.Principal.Ticker }

// Paid reports whether no principal remains.
func (l Loan) Paid() bool { return l.Principal.IsZero() }

// State is a snapshot of what the loan owes at a given instant.
type State struct {
	Principal       finance.Coin
	AnnualInterest  finance.Percent
	AnnualMargin    finance.Percent
	OverdueMargin   finance.Coin
	OverdueInterest finance.Coin
	DueMargin       finance.Coin
	DueInterest     finance.Coin
}

// Overdue sums the overdue margin and interest.
func (s State) Overdue() finance.Coin {
	return sum(s.Principal.Ticker, s.OverdueMargin, s.OverdueInterest)
}

// Interest sums every unpaid interest amount.
func (s State) Interest() finance.Coin {
	return sum(s.Principal.Ticker, s.OverdueMargin, s.OverdueInterest, s.DueMargin, s.DueInterest)
}

// TotalDue is the principal together with all unpaid interest.
func (s State) TotalDue() finance.Coin {
	return sum(s.Principal.Ticker, s.Principal, s.Interest())
}

// State evaluates the loan at now.
func (l Loan) State(now finance.Timestamp) State {
	boundary := l.overdueBoundary(now)
	lpn := l.Lpn()
	overdueMargin, dueMargin := l.split(l.Margin, boundary, now)
	overdueInterest, dueInterest := l.split(l.Interest, boundary, now)
	return State{
		Principal:       l.Principal,
		AnnualInterest:  l.Interest.Rate,
		AnnualMargin:    l.Margin.Rate,
		OverdueMargin:   finance.Coin{Ticker: lpn, Amount: overdueMargin},
		OverdueInterest: finance.Coin{Ticker: lpn, Amount: overdueInterest},
		DueMargin:       finance.Coin{Ticker: lpn, Amount: dueMargin},
		DueInterest:     finance.Coin{Ticker: lpn, Amount: dueInterest},
	}
}

// OverdueCollectable reports whether overdue interest has outlived the grace
// period and may be collected by liquidating part of the position.
func (l Loan) OverdueCollectable(now finance.Timestamp) bool {
	if l.GraceDeadline() > now {
		return false
	}
	return !l.State(now).Overdue().IsZero()
}

// GraceDeadline is the instant the oldest unpaid interest leaves its grace
// period.
func (l Loan) GraceDeadline() finance.Timestamp {
	start := finance.MinTimestamp(l.Margin.Start, l.Interest.Start)
	return start.Add(l.GracePeriod)
}

func (l Loan) overdueBoundary(now finance.Timestamp) finance.Timestamp {
	return now.SubDuration(l.DuePeriod)
}

func (l Loan) split(stream finance.InterestPeriod, boundary, now finance.Timestamp) (overdue, due uint256.Int) {
	stream = stream.ExtendTo(now)
	if boundary > stream.Start {
		overdue = finance.Interest(stream.Rate, l.Principal.Amount, boundary.Since(stream.Start))
	}
	from := finance.MaxTimestamp(stream.Start, boundary)
	due = finance.Interest(stream.Rate, l.Principal.Amount, now.Since(from))
	return overdue, due
}

func sum(ticker string, coins ...finance.Coin) finance.Coin {
	out := finance.Zero(ticker)
	for _, c := range coins {
		out.Amount.Add(&out.Amount, &c.Amount)
	}
	return out
}
