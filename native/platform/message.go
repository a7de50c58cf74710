package platform

import (
	"leasechain/crypto"
	"leasechain/native/finance"
)

// Message is a request a lease hands to a collaborator. Messages of one
// batch are delivered in order.
type Message interface {
	MessageType() string
}

const (
	TypeOpenLoan         = "lpp/open_loan"
	TypeRepayLoan        = "lpp/repay_loan"
	TypeBankSend         = "bank/send"
	TypeAddTimeAlarm     = "timealarms/add_alarm"
	TypeAddPriceAlarm    = "oracle/add_price_alarm"
	TypeRemovePriceAlarm = "oracle/remove_price_alarm"
	TypeCoverLosses      = "reserve/cover_liquidation_losses"
	TypeSelfCallback     = "self/callback"
)

// OpenLoan borrows Amount from the pool. The pool answers with the
// correlation id.
type OpenLoan struct {
	Lpp         crypto.Address `json:"lpp"`
	Amount      finance.Coin   `json:"amount"`
	Correlation string         `json:"correlation"`
}

// RepayLoan forwards interest and principal to the pool. The pool books the
// split as given and moves its interest clock to InterestPaidBy.
type RepayLoan struct {
	Lpp            crypto.Address    `json:"lpp"`
	Payment        finance.Coin      `json:"payment"`
	Interest       finance.Coin      `json:"interest"`
	Principal      finance.Coin      `json:"principal"`
	InterestPaidBy finance.Timestamp `json:"interest_paid_by"`
}

// BankSend transfers local funds held by the lease.
type BankSend struct {
	To    crypto.Address `json:"to"`
	Coins []finance.Coin `json:"coins"`
}

// AddTimeAlarm asks to be woken up at At. A new alarm replaces the previous
// one.
type AddTimeAlarm struct {
	TimeAlarms crypto.Address    `json:"time_alarms"`
	At         finance.Timestamp `json:"at"`
}

// AddPriceAlarm subscribes to the asset price leaving [Below, AboveOrEqual).
type AddPriceAlarm struct {
	Oracle       crypto.Address `json:"oracle"`
	Below        finance.Price  `json:"below"`
	AboveOrEqual *finance.Price `json:"above_or_equal,omitempty"`
}

// RemovePriceAlarm drops the lease's price subscription.
type RemovePriceAlarm struct {
	Oracle crypto.Address `json:"oracle"`
}

// CoverLosses asks the reserve to repay the pool the part of the debt a full
// liquidation could not.
type CoverLosses struct {
	Reserve   crypto.Address    `json:"reserve"`
	Lpp       crypto.Address    `json:"lpp"`
	Amount    finance.Coin      `json:"amount"`
	Interest  finance.Coin      `json:"interest"`
	Principal finance.Coin      `json:"principal"`
	At        finance.Timestamp `json:"at"`
}

// CallbackKind distinguishes the two self-addressed continuations.
type CallbackKind uint8

const (
	DexCallback CallbackKind = iota + 1
	DexCallbackContinue
)

func (k CallbackKind) String() string {
	switch k {
	case DexCallback:
		return "dex_callback"
	case DexCallbackContinue:
		return "dex_callback_continue"
	default:
		return "unknown"
	}
}

// SelfCallback is delivered back to the issuing lease in a later invocation.
type SelfCallback struct {
	Kind CallbackKind `json:"kind"`
}

func (OpenLoan) MessageType() string         { return TypeOpenLoan }
func (RepayLoan) MessageType() string        { return TypeRepayLoan }
func (BankSend) MessageType() string         { return TypeBankSend }
func (AddTimeAlarm) MessageType() string     { return TypeAddTimeAlarm }
func (AddPriceAlarm) MessageType() string    { return TypeAddPriceAlarm }
func (RemovePriceAlarm) MessageType() string { return TypeRemovePriceAlarm }
func (CoverLosses) MessageType() string      { return TypeCoverLosses }
func (SelfCallback) MessageType() string     { return TypeSelfCallback }
