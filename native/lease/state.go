package lease

import (
	"fmt"

	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/platform"
	"leasechain/native/position"
)

// Kind tags the lifecycle state of a lease. Values are persisted and must
// never be renumbered.
type Kind uint8

const (
	KindRequestLoan Kind = iota + 1
	KindOpenIcaAccount
	KindTransferOut
	KindBuyAsset
	KindOpenedActive
	KindRepaymentTransferOut
	KindBuyLpn
	KindRepaymentTransferIn
	KindPartialLiquidation
	KindFullLiquidation
	KindPartialClose
	KindFullClose
	KindClosingTransferIn
	KindPaidActive
	KindClosed
	KindLiquidated
)

var kindNames = map[Kind]string{
	KindRequestLoan:          "request_loan",
	KindOpenIcaAccount:       "open_ica_account",
	KindTransferOut:          "transfer_out",
	KindBuyAsset:             "buy_asset",
	KindOpenedActive:         "opened_active",
	KindRepaymentTransferOut: "repayment_transfer_out",
	KindBuyLpn:               "buy_lpn",
	KindRepaymentTransferIn:  "repayment_transfer_in",
	KindPartialLiquidation:   "partial_liquidation",
	KindFullLiquidation:      "full_liquidation",
	KindPartialClose:         "partial_close",
	KindFullClose:            "full_close",
	KindClosingTransferIn:    "closing_transfer_in",
	KindPaidActive:           "paid_active",
	KindClosed:               "closed",
	KindLiquidated:           "liquidated",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Terminal reports whether no further transitions are accepted.
func (k Kind) Terminal() bool { return k == KindClosed || k == KindLiquidated }

// State is one step of the lease lifecycle. Every variant carries what it
// needs to resume after a restart.
type State interface {
	Kind() Kind
	isState()
}

// RequestLoan waits for the pool to hand out the loan.
type RequestLoan struct {
	Form        Form
	Downpayment finance.Coin
	Borrow      finance.Coin
	Pending     platform.Pending
}

// OpenIcaAccount waits for the interchain account registration.
type OpenIcaAccount struct {
	Form        Form
	Downpayment finance.Coin
	Grant       Grant
	Pending     platform.Pending
}

// Opening moves the downpayment and the loan to the DEX and buys the asset.
type Opening struct {
	Form        Form
	Downpayment finance.Coin
	Grant       Grant
	Account     dex.Account
	Task        dex.Task
}

// OpenedActive is an open position with outstanding debt.
type OpenedActive struct {
	Lease Lease
}

// Repayment converts a non-LPN payment into the LPN before it is applied.
type Repayment struct {
	Lease   Lease
	Payment finance.Coin
	Task    dex.Task
}

// Liquidation sells part or all of the position to cover the debt.
type Liquidation struct {
	Lease       Lease
	Liquidation position.Liquidation
	Task        dex.Task
}

// ClosePosition sells part or all of the position on customer request or on
// a close policy trigger. Strategy is zero for customer requests.
type ClosePosition struct {
	Lease    Lease
	Full     bool
	Amount   finance.Coin
	Strategy position.Strategy
	Task     dex.Task
}

// ClosingTransferIn brings the asset of a paid lease back to the customer.
type ClosingTransferIn struct {
	Lease Lease
	Task  dex.Task
}

// PaidActive is a position whose loan is fully repaid.
type PaidActive struct {
	Lease Lease
}

// Closed is terminal: the customer got the asset or the proceeds back.
type Closed struct {
	Lease    crypto.Address
	Customer crypto.Address
}

// Liquidated is terminal: the position was sold to cover the debt.
type Liquidated struct {
	Lease    crypto.Address
	Customer crypto.Address
}

func (RequestLoan) Kind() Kind    { return KindRequestLoan }
func (OpenIcaAccount) Kind() Kind { return KindOpenIcaAccount }
func (OpenedActive) Kind() Kind   { return KindOpenedActive }
func (PaidActive) Kind() Kind     { return KindPaidActive }
func (Closed) Kind() Kind         { return KindClosed }
func (Liquidated) Kind() Kind     { return KindLiquidated }

func (s Opening) Kind() Kind {
	if s.Task.Stage == dex.StageTransferOut {
		return KindTransferOut
	}
	return KindBuyAsset
}

func (s Repayment) Kind() Kind {
	switch s.Task.Stage {
	case dex.StageTransferOut:
		return KindRepaymentTransferOut
	case dex.StageSwap:
		return KindBuyLpn
	default:
		return KindRepaymentTransferIn
	}
}

func (s Liquidation) Kind() Kind {
	if s.Liquidation.Full {
		return KindFullLiquidation
	}
	return KindPartialLiquidation
}

func (s ClosePosition) Kind() Kind {
	if s.Full {
		return KindFullClose
	}
	return KindPartialClose
}

func (ClosingTransferIn) Kind() Kind { return KindClosingTransferIn }

func (RequestLoan) isState()       {}
func (OpenIcaAccount) isState()    {}
func (Opening) isState()           {}
func (OpenedActive) isState()      {}
func (Repayment) isState()         {}
func (Liquidation) isState()       {}
func (ClosePosition) isState()     {}
func (ClosingTransferIn) isState() {}
func (PaidActive) isState()        {}
func (Closed) isState()            {}
func (Liquidated) isState()        {}

// newState returns an empty variant for a persisted kind.
func newState(k Kind) (State, error) {
	switch k {
	case KindRequestLoan:
		return &RequestLoan{}, nil
	case KindOpenIcaAccount:
		return &OpenIcaAccount{}, nil
	case KindTransferOut, KindBuyAsset:
		return &Opening{}, nil
	case KindOpenedActive:
		return &OpenedActive{}, nil
	case KindRepaymentTransferOut, KindBuyLpn, KindRepaymentTransferIn:
		return &Repayment{}, nil
	case KindPartialLiquidation, KindFullLiquidation:
		return &Liquidation{}, nil
	case KindPartialClose, KindFullClose:
		return &ClosePosition{}, nil
	case KindClosingTransferIn:
		return &ClosingTransferIn{}, nil
	case KindPaidActive:
		return &PaidActive{}, nil
	case KindClosed:
		return &Closed{}, nil
	case KindLiquidated:
		return &Liquidated{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
}

// deref turns a decoded pointer variant back into a value.
func deref(st State) State {
	switch s := st.(type) {
	case *RequestLoan:
		return *s
	case *OpenIcaAccount:
		return *s
	case *Opening:
		return *s
	case *OpenedActive:
		return *s
	case *Repayment:
		return *s
	case *Liquidation:
		return *s
	case *ClosePosition:
		return *s
	case *ClosingTransferIn:
		return *s
	case *PaidActive:
		return *s
	case *Closed:
		return *s
	case *Liquidated:
		return *s
	default:
		return st
	}
}

// leaseOf returns the open lease a state carries, if any.
func leaseOf(st State) (Lease, bool) {
	switch s := st.(type) {
	case OpenedActive:
		return s.Lease, true
	case Repayment:
		return s.Lease, true
	case Liquidation:
		return s.Lease, true
	case ClosePosition:
		return s.Lease, true
	case ClosingTransferIn:
		return s.Lease, true
	case PaidActive:
		return s.Lease, true
	default:
		return Lease{}, false
	}
}

// TaskOf returns the DEX task a state is driving, if any.
func TaskOf(st State) (dex.Task, bool) {
	switch s := deref(st).(type) {
	case Opening:
		return s.Task, true
	case Repayment:
		return s.Task, true
	case Liquidation:
		return s.Task, true
	case ClosePosition:
		return s.Task, true
	case ClosingTransferIn:
		return s.Task, true
	default:
		return dex.Task{}, false
	}
}

// NeedsHeal reports whether st waits on something only the lease itself
// re-arms: an alarm subscription, a balance poll or a self callback. Such
// states stall when the host loses its in-memory subscriptions.
func NeedsHeal(st State) bool {
	if st.Kind() == KindOpenedActive {
		return true
	}
	task, ok := TaskOf(st)
	if !ok {
		return false
	}
	switch task.Phase {
	case dex.PhaseAwaitingBalance, dex.PhaseAwaitingCallback, dex.PhaseCompleted:
		return true
	default:
		return false
	}
}
