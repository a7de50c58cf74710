package loan

import (
	"errors"
	"testing"

	"leasechain/native/finance"
)

func usdc(v uint64) finance.Coin { return finance.NewCoin("USDC", v) }

func newTestLoan(t *testing.T) Loan {
	t.Helper()
	l, err := New(usdc(1000), Terms{
		AnnualInterest: finance.FromPercent(20),
		AnnualMargin:   finance.FromPercent(10),
		DuePeriod:      finance.Year / 4,
		GracePeriod:    finance.Year / 3,
	}, 0)
	if err != nil {
		t.Fatalf("new loan: %v", err)
	}
	return l
}

func expectCoin(t *testing.T, name string, got finance.Coin, want uint64) {
	t.Helper()
	if !got.Equal(usdc(want)) {
		t.Fatalf("%s: got %s want %d USDC", name, got, want)
	}
}

func TestNewValidatesPeriods(t *testing.T) {
	_, err := New(usdc(1000), Terms{DuePeriod: finance.Day, GracePeriod: finance.Day}, 0)
	if !errors.Is(err, ErrInvalidPeriods) {
		t.Fatalf("expected invalid periods, got %v", err)
	}
	_, err = New(usdc(1000), Terms{GracePeriod: finance.Day}, 0)
	if !errors.Is(err, ErrInvalidPeriods) {
		t.Fatalf("expected invalid periods for zero due, got %v", err)
	}
	if _, err := New(usdc(0), Terms{DuePeriod: 1, GracePeriod: 2}, 0); !errors.Is(err, ErrZeroPrincipal) {
		t.Fatalf("expected zero principal, got %v", err)
	}
}

func TestStateSplitsOverdueAndDue(t *testing.T) {
	l := newTestLoan(t)
	st := l.State(finance.Timestamp(finance.Year / 2))
	expectCoin(t, "overdue margin", st.OverdueMargin, 25)
	expectCoin(t, "overdue interest", st.OverdueInterest, 50)
	expectCoin(t, "due margin", st.DueMargin, 25)
	expectCoin(t, "due interest", st.DueInterest, 50)
	expectCoin(t, "total due", st.TotalDue(), 1150)

	early := l.State(finance.Timestamp(finance.Year / 8))
	expectCoin(t, "early overdue", early.Overdue(), 0)
}

func TestRepayZeroIsNoop(t *testing.T) {
	l := newTestLoan(t)
	before := l
	receipt, err := l.Repay(usdc(0), finance.Timestamp(finance.Year/2))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if l != before {
		t.Fatalf("zero payment mutated the loan: %+v -> %+v", before, l)
	}
	expectCoin(t, "total", receipt.Total(), 0)
	if receipt.Close {
		t.Fatalf("open loan reported closed")
	}
}

func TestRepayOverdueFirst(t *testing.T) {
	l := newTestLoan(t)
	now := finance.Timestamp(finance.Year / 2)
	receipt, err := l.Repay(usdc(60), now)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	expectCoin(t, "overdue margin", receipt.OverdueMargin, 25)
	expectCoin(t, "overdue interest", receipt.OverdueInterest, 35)
	expectCoin(t, "due margin", receipt.DueMargin, 0)
	expectCoin(t, "principal", receipt.Principal, 0)

	st := l.State(now)
	expectCoin(t, "remaining overdue margin", st.OverdueMargin, 0)
	expectCoin(t, "remaining overdue interest", st.OverdueInterest, 15)
	expectCoin(t, "remaining due margin", st.DueMargin, 25)
	expectCoin(t, "remaining due interest", st.DueInterest, 50)
}

func TestRepayExactInterestMovesStartToNow(t *testing.T) {
	l := newTestLoan(t)
	now := finance.Timestamp(finance.Year / 2)
	receipt, err := l.Repay(usdc(150), now)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	expectCoin(t, "change", receipt.Change, 0)
	expectCoin(t, "principal", receipt.Principal, 0)
	if l.Interest.Start != now || l.Margin.Start != now {
		t.Fatalf("periods not settled to now: interest=%d margin=%d", l.Interest.Start, l.Margin.Start)
	}
	expectCoin(t, "principal left", l.Principal, 1000)
}

func TestRepayPrincipalAndChange(t *testing.T) {
	l := newTestLoan(t)
	receipt, err := l.Repay(usdc(1200), finance.Timestamp(finance.Year/2))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	expectCoin(t, "margin", receipt.MarginPaid(), 50)
	expectCoin(t, "interest", receipt.InterestPaid(), 100)
	expectCoin(t, "principal", receipt.Principal, 1000)
	expectCoin(t, "change", receipt.Change, 50)
	if !receipt.Close || !l.Paid() {
		t.Fatalf("expected loan to be closed")
	}
}

func TestRepayAllocatesWholePayment(t *testing.T) {
	for payment := uint64(0); payment <= 1300; payment += 13 {
		l := newTestLoan(t)
		start := l
		now := finance.Timestamp(finance.Year/2 + 7*finance.Hour)
		receipt, err := l.Repay(usdc(payment), now)
		if err != nil {
			t.Fatalf("repay %d: %v", payment, err)
		}
		expectCoin(t, "total", receipt.Total(), payment)
		for _, pair := range [][2]finance.InterestPeriod{{start.Margin, l.Margin}, {start.Interest, l.Interest}} {
			before, after := pair[0], pair[1]
			if after.Start < before.Start {
				t.Fatalf("payment %d moved start backwards", payment)
			}
			if after.Start > now {
				t.Fatalf("payment %d moved start past the charged span", payment)
			}
			if after.Till() < before.Till() {
				t.Fatalf("payment %d shrank the period end", payment)
			}
		}
		paidPrincipal := receipt.Principal.Amount.Uint64()
		if paidPrincipal > 0 && !l.State(now).Interest().IsZero() {
			t.Fatalf("payment %d reached principal before interest", payment)
		}
	}
}

func TestRepayRejectsForeignCurrency(t *testing.T) {
	l := newTestLoan(t)
	_, err := l.Repay(finance.NewCoin("ATOM", 5), 0)
	var mismatch *finance.CurrencyMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
}

func TestOverdueCollectable(t *testing.T) {
	l := newTestLoan(t)
	if l.OverdueCollectable(finance.Timestamp(finance.Year/4 + finance.Day)) {
		t.Fatalf("overdue collectable before the grace deadline")
	}
	if !l.OverdueCollectable(finance.Timestamp(finance.Year / 2)) {
		t.Fatalf("overdue not collectable after the grace deadline")
	}
	if got := l.GraceDeadline(); got != finance.Timestamp(finance.Year/3) {
		t.Fatalf("unexpected grace deadline %d", got)
	}
}
