package lpp

import (
	"errors"

	"github.com/holiman/uint256"

	"leasechain/core/rewards"
	"leasechain/crypto"
	nativecommon "leasechain/native/common"
	"leasechain/native/finance"
)

var (
	errNilState              = errors.New("lpp pool: state not configured")
	errInvalidAmount         = errors.New("lpp pool: amount must be positive")
	errInsufficientLiquidity = errors.New("lpp pool: insufficient liquidity")
	errLoanExists            = errors.New("lpp pool: lease already has an open loan")
	errNoLoan                = errors.New("lpp pool: no open loan for lease")
	errNoRewardScale         = errors.New("lpp pool: reward scale not configured")
)

// Exported aliases allow callers to match pool failures.
var (
	ErrInsufficientLiquidity = errInsufficientLiquidity
	ErrLoanExists            = errLoanExists
	ErrNoLoan                = errNoLoan
)

// PauseModule is the switch that halts deposits and new loans.
const PauseModule = "lpp"

// Totals aggregates the pool balances.
type Totals struct {
	Available finance.Coin
	Borrowed  finance.Coin
	Interest  finance.Coin
}

type poolState interface {
	GetTotals() (*Totals, error)
	PutTotals(totals *Totals) error
	GetLoan(lease crypto.Address) (*Loan, error)
	PutLoan(loan *Loan) error
	DeleteLoan(lease crypto.Address) error
}

// Pool lends the LPN to leases and books their repayments.
type Pool struct {
	state         poolState
	lpn           string
	interestModel InterestModel
	scale         *rewards.Scale
	tvlUnit       uint256.Int
	pauses        nativecommon.PauseView
}

// NewPool constructs a pool lending the given currency.
func NewPool(lpn string, model InterestModel) *Pool {
	p := &Pool{lpn: lpn, interestModel: model}
	p.tvlUnit.SetOne()
	return p
}

// SetState wires the pool to the external persistence layer.
func (p *Pool) SetState(state poolState) { p.state = state }

func (p *Pool) SetPauses(v nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = v
}

// SetRewardScale configures the TVL to APR mapping. unit is the amount of the
// LPN that counts as one step of a bar threshold.
func (p *Pool) SetRewardScale(scale rewards.Scale, unit uint256.Int) {
	if p == nil {
		return
	}
	p.scale = &scale
	if unit.IsZero() {
		unit.SetOne()
	}
	p.tvlUnit = unit
}

// Lpn returns the currency the pool lends.
func (p *Pool) Lpn() string { return p.lpn }

// Totals returns the current pool balances.
func (p *Pool) Totals() (Totals, error) {
	totals, err := p.ensureTotals()
	if err != nil {
		return Totals{}, err
	}
	return *totals, nil
}

// Deposit adds lendable liquidity.
func (p *Pool) Deposit(amount finance.Coin) error {
	if p == nil || p.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(p.pauses, PauseModule); err != nil {
		return err
	}
	if amount.IsZero() {
		return errInvalidAmount
	}
	totals, err := p.ensureTotals()
	if err != nil {
		return err
	}
	available, err := totals.Available.Add(amount)
	if err != nil {
		return err
	}
	totals.Available = available
	return p.state.PutTotals(totals)
}

// Quote returns the annual rate a loan of amount would be charged.
func (p *Pool) Quote(amount finance.Coin) (finance.Percent, error) {
	totals, err := p.ensureTotals()
	if err != nil {
		return 0, err
	}
	if amount.Ticker != p.lpn {
		return 0, &finance.CurrencyMismatchError{Expected: p.lpn, Actual: amount.Ticker}
	}
	if totals.Available.Amount.Lt(&amount.Amount) {
		return 0, errInsufficientLiquidity
	}
	var borrowed, available uint256.Int
	borrowed.Add(&totals.Borrowed.Amount, &amount.Amount)
	available.Sub(&totals.Available.Amount, &amount.Amount)
	return p.interestModel.AnnualRate(borrowed, available), nil
}

// OpenLoan lends amount to a lease at the currently quoted rate.
func (p *Pool) OpenLoan(lease crypto.Address, amount finance.Coin, now finance.Timestamp) (Loan, error) {
	if p == nil || p.state == nil {
		return Loan{}, errNilState
	}
	if err := nativecommon.Guard(p.pauses, PauseModule); err != nil {
		return Loan{}, err
	}
	if amount.IsZero() {
		return Loan{}, errInvalidAmount
	}
	existing, err := p.state.GetLoan(lease)
	if err != nil {
		return Loan{}, err
	}
	if existing != nil {
		return Loan{}, errLoanExists
	}
	rate, err := p.Quote(amount)
	if err != nil {
		return Loan{}, err
	}
	totals, err := p.ensureTotals()
	if err != nil {
		return Loan{}, err
	}
	loan := &Loan{Lease: lease, Principal: amount, AnnualRate: rate, InterestPaidBy: now}
	if totals.Available, err = totals.Available.Sub(amount); err != nil {
		return Loan{}, err
	}
	if totals.Borrowed, err = totals.Borrowed.Add(amount); err != nil {
		return Loan{}, err
	}
	if err := p.state.PutLoan(loan); err != nil {
		return Loan{}, err
	}
	if err := p.state.PutTotals(totals); err != nil {
		return Loan{}, err
	}
	return *loan, nil
}

// Loan returns the open loan of a lease, if any.
func (p *Pool) Loan(lease crypto.Address) (*Loan, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	return p.state.GetLoan(lease)
}

// SettleLoan books a repayment whose interest and principal the lease has
// already computed, so both ledgers close on the same amounts. The loan record
// is removed once its principal reaches zero.
func (p *Pool) SettleLoan(lease crypto.Address, repayment Repayment) (RepayShares, error) {
	if p == nil || p.state == nil {
		return RepayShares{}, errNilState
	}
	loan, err := p.state.GetLoan(lease)
	if err != nil {
		return RepayShares{}, err
	}
	if loan == nil {
		return RepayShares{}, errNoLoan
	}
	shares, err := loan.Settle(repayment)
	if err != nil {
		return RepayShares{}, err
	}
	totals, err := p.ensureTotals()
	if err != nil {
		return RepayShares{}, err
	}
	returned, err := shares.Interest.Add(shares.Principal)
	if err != nil {
		return RepayShares{}, err
	}
	if totals.Available, err = totals.Available.Add(returned); err != nil {
		return RepayShares{}, err
	}
	if totals.Borrowed, err = totals.Borrowed.Sub(shares.Principal); err != nil {
		return RepayShares{}, err
	}
	if totals.Interest, err = totals.Interest.Add(shares.Interest); err != nil {
		return RepayShares{}, err
	}
	if loan.Principal.IsZero() {
		err = p.state.DeleteLoan(lease)
	} else {
		err = p.state.PutLoan(loan)
	}
	if err != nil {
		return RepayShares{}, err
	}
	if err := p.state.PutTotals(totals); err != nil {
		return RepayShares{}, err
	}
	return shares, nil
}

// RewardsAPR maps the pool's total value locked onto the reward scale.
func (p *Pool) RewardsAPR() (finance.Percent, error) {
	if p.scale == nil {
		return 0, errNoRewardScale
	}
	totals, err := p.ensureTotals()
	if err != nil {
		return 0, err
	}
	var tvl uint256.Int
	tvl.Add(&totals.Available.Amount, &totals.Borrowed.Amount)
	tvl.Div(&tvl, &p.tvlUnit)
	return p.scale.APR(tvl), nil
}

func (p *Pool) ensureTotals() (*Totals, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	totals, err := p.state.GetTotals()
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = &Totals{
			Available: finance.Zero(p.lpn),
			Borrowed:  finance.Zero(p.lpn),
			Interest:  finance.Zero(p.lpn),
		}
	}
	return totals, nil
}
