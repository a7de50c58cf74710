package lease

import (
	"leasechain/native/finance"
	"leasechain/native/position"
)

// Message is an inbound request to a lease.
type Message interface {
	Operation() string
}

// Customer operations.
type (
	// Repay applies the funds attached to the call.
	Repay struct{}
	// ChangeClosePolicy sets or clears the automatic close triggers.
	ChangeClosePolicy struct {
		Change position.PolicyChange
	}
	// ClosePositionRequest sells Amount of the asset, or all of it when
	// Amount is nil.
	ClosePositionRequest struct {
		Amount *finance.Coin
	}
	// Close returns the asset of a paid lease to the customer.
	Close struct{}
)

// Alarms.
type (
	TimeAlarm  struct{}
	PriceAlarm struct{}
)

// Replies from collaborators.
type (
	// LoanOpened is the pool's reply to an open loan request.
	// InterestPaidBy is when the pool started charging interest.
	LoanOpened struct {
		Correlation    string
		Amount         finance.Coin
		AnnualRate     finance.Percent
		InterestPaidBy finance.Timestamp
	}
	// OnOpenAck acknowledges an interchain account registration.
	OnOpenAck struct {
		Correlation string
		Host        string
	}
	// OnResponse acknowledges a packet with its result data.
	OnResponse struct {
		Correlation string
		Data        []byte
	}
	// OnTimeout reports a packet that timed out.
	OnTimeout struct {
		Correlation string
	}
	// OnError reports a packet acknowledged with an error.
	OnError struct {
		Correlation string
		Reason      string
	}
)

// Self-addressed continuations and recovery.
type (
	DexCallback         struct{}
	DexCallbackContinue struct{}
	// Heal re-drives the pending step of the current state.
	Heal struct{}
)

func (Repay) Operation() string                { return "repay" }
func (ChangeClosePolicy) Operation() string    { return "change_close_policy" }
func (ClosePositionRequest) Operation() string { return "close_position" }
func (Close) Operation() string                { return "close" }
func (TimeAlarm) Operation() string            { return "time_alarm" }
func (PriceAlarm) Operation() string           { return "price_alarm" }
func (LoanOpened) Operation() string           { return "loan_opened" }
func (OnOpenAck) Operation() string            { return "open_ack" }
func (OnResponse) Operation() string           { return "response" }
func (OnTimeout) Operation() string            { return "timeout" }
func (OnError) Operation() string              { return "error" }
func (DexCallback) Operation() string          { return "dex_callback" }
func (DexCallbackContinue) Operation() string  { return "dex_callback_continue" }
func (Heal) Operation() string                 { return "heal" }

// isCustomer reports whether msg must come from the lease's customer.
func isCustomer(msg Message) bool {
	switch msg.(type) {
	case Repay, ChangeClosePolicy, ClosePositionRequest, Close:
		return true
	default:
		return false
	}
}
