package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/lpp"
	"leasechain/native/platform"
)

// Outbound statuses recorded in the outbox.
const (
	StatusDelivered = "delivered"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// Outbox keeps every message a lease sent. DEX packets stay pending until a
// relayer picks them up.
type Outbox interface {
	RecordOutbound(ctx context.Context, lease crypto.Address, msgType string, payload []byte, status, reason string, at time.Time) error
}

// Followup is a reply a local collaborator sends back to a lease.
type Followup struct {
	Lease  crypto.Address
	Sender crypto.Address
	Funds  []finance.Coin
	Msg    lease.Message
}

// Dispatcher delivers outbound lease messages to the in-process
// collaborators: the pool, the bank, the oracle and the time alarms.
type Dispatcher struct {
	Pool   *lpp.Pool
	Host   *Host
	Outbox Outbox
}

// Dispatch delivers one message sent by from. Failures are recorded in the
// outbox and returned.
func (d *Dispatcher) Dispatch(ctx context.Context, from crypto.Address, now finance.Timestamp, msg platform.Message) ([]Followup, error) {
	followups, status, err := d.deliver(from, now, msg)
	reason := ""
	if err != nil {
		status, reason = StatusFailed, err.Error()
	}
	if d.Outbox != nil {
		payload, encErr := json.Marshal(msg)
		if encErr != nil {
			return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), encErr)
		}
		if recErr := d.Outbox.RecordOutbound(ctx, from, msg.MessageType(), payload, status, reason, now.Time()); recErr != nil {
			return nil, recErr
		}
	}
	return followups, err
}

func (d *Dispatcher) deliver(from crypto.Address, now finance.Timestamp, msg platform.Message) ([]Followup, string, error) {
	switch m := msg.(type) {
	case platform.OpenLoan:
		if err := d.Host.Covers(m.Lpp, m.Amount); err != nil {
			return nil, "", err
		}
		loan, err := d.Pool.OpenLoan(from, m.Amount, now)
		if err != nil {
			return nil, "", err
		}
		if err := d.Host.Transfer(m.Lpp, from, loan.Principal); err != nil {
			return nil, "", err
		}
		reply := lease.LoanOpened{
			Correlation:    m.Correlation,
			Amount:         loan.Principal,
			AnnualRate:     loan.AnnualRate,
			InterestPaidBy: loan.InterestPaidBy,
		}
		return []Followup{{Lease: from, Sender: m.Lpp, Msg: reply}}, StatusDelivered, nil
	case platform.RepayLoan:
		if err := d.Host.Transfer(from, m.Lpp, m.Payment); err != nil {
			return nil, "", err
		}
		shares, err := d.Pool.SettleLoan(from, lpp.Repayment{
			Interest:       m.Interest,
			Principal:      m.Principal,
			InterestPaidBy: m.InterestPaidBy,
		})
		if err != nil {
			return nil, "", err
		}
		if !shares.Excess.IsZero() {
			if err := d.Host.Transfer(m.Lpp, from, shares.Excess); err != nil {
				return nil, "", err
			}
		}
		return nil, StatusDelivered, nil
	case platform.CoverLosses:
		if err := d.Host.Transfer(m.Reserve, m.Lpp, m.Amount); err != nil {
			return nil, "", err
		}
		repayment := lpp.Repayment{Interest: m.Interest, Principal: m.Principal, InterestPaidBy: m.At}
		if _, err := d.Pool.SettleLoan(from, repayment); err != nil {
			return nil, "", err
		}
		return nil, StatusDelivered, nil
	case platform.BankSend:
		return nil, StatusDelivered, d.Host.Transfer(from, m.To, m.Coins...)
	case platform.AddTimeAlarm:
		d.Host.SetTimeAlarm(from, m.TimeAlarms, m.At)
		return nil, StatusDelivered, nil
	case platform.AddPriceAlarm:
		return nil, StatusDelivered, d.Host.SetPriceAlarm(from, m.Oracle, m)
	case platform.RemovePriceAlarm:
		d.Host.RemovePriceAlarm(from)
		return nil, StatusDelivered, nil
	case dex.IbcTransfer:
		if err := d.Host.SendPacket(from, m.Correlation, m.Coin); err != nil {
			return nil, "", err
		}
		return nil, StatusPending, nil
	case dex.RegisterIca, dex.IcaTx:
		return nil, StatusPending, nil
	default:
		return nil, "", fmt.Errorf("leased dispatcher: unsupported message %s", msg.MessageType())
	}
}
