package server

import (
	"errors"
	"fmt"
	"strings"

	"leasechain/crypto"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/position"
)

var (
	errInvalidRequest = errors.New("invalid request")
	errThrottled      = errors.New("rate limit exceeded")
)

// Customer and Sender may be omitted when the request carries a token; the
// token subject is used instead.
type openRequest struct {
	Customer    crypto.Address   `json:"customer"`
	Currency    string           `json:"currency"`
	MaxLTD      *finance.Percent `json:"max_ltd,omitempty"`
	Downpayment finance.Coin     `json:"downpayment"`
}

type triggerChange struct {
	Reset bool            `json:"reset,omitempty"`
	Value finance.Percent `json:"value,omitempty"`
}

// messageBody is the tagged JSON form of an inbound lease message. Which
// fields apply depends on Type.
type messageBody struct {
	Type        string         `json:"type"`
	TakeProfit  *triggerChange `json:"take_profit,omitempty"`
	StopLoss    *triggerChange `json:"stop_loss,omitempty"`
	Amount      *finance.Coin  `json:"amount,omitempty"`
	Correlation string         `json:"correlation,omitempty"`
	Host        string         `json:"host,omitempty"`
	Data        []byte         `json:"data,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

type executeRequest struct {
	Sender  crypto.Address `json:"sender"`
	Funds   []finance.Coin `json:"funds,omitempty"`
	Message messageBody    `json:"message"`
}

type priceRequest struct {
	Amount finance.Coin `json:"amount"`
	Quote  finance.Coin `json:"quote"`
}

type creditRequest struct {
	Address crypto.Address `json:"address"`
	Coins   []finance.Coin `json:"coins"`
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (c *triggerChange) change() *position.TriggerChange {
	if c == nil {
		return nil
	}
	return &position.TriggerChange{Reset: c.Reset, Value: c.Value}
}

// customerMessage decodes the operations a customer or an alarm source may
// send.
func (m messageBody) customerMessage() (lease.Message, error) {
	switch strings.ToLower(strings.TrimSpace(m.Type)) {
	case "repay":
		return lease.Repay{}, nil
	case "change_close_policy":
		return lease.ChangeClosePolicy{Change: position.PolicyChange{
			TakeProfit: m.TakeProfit.change(),
			StopLoss:   m.StopLoss.change(),
		}}, nil
	case "close_position":
		return lease.ClosePositionRequest{Amount: m.Amount}, nil
	case "close":
		return lease.Close{}, nil
	case "time_alarm":
		return lease.TimeAlarm{}, nil
	case "price_alarm":
		return lease.PriceAlarm{}, nil
	case "heal":
		return lease.Heal{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", errInvalidRequest, m.Type)
	}
}

// sudoMessage decodes the DEX relayer callbacks.
func (m messageBody) sudoMessage() (lease.Message, error) {
	if strings.TrimSpace(m.Correlation) == "" {
		return nil, fmt.Errorf("%w: correlation required", errInvalidRequest)
	}
	switch strings.ToLower(strings.TrimSpace(m.Type)) {
	case "open_ack":
		return lease.OnOpenAck{Correlation: m.Correlation, Host: m.Host}, nil
	case "response":
		return lease.OnResponse{Correlation: m.Correlation, Data: m.Data}, nil
	case "timeout":
		return lease.OnTimeout{Correlation: m.Correlation}, nil
	case "error":
		return lease.OnError{Correlation: m.Correlation, Reason: m.Reason}, nil
	default:
		return nil, fmt.Errorf("%w: unknown callback type %q", errInvalidRequest, m.Type)
	}
}
