package dex

import (
	"encoding/json"
	"fmt"

	"leasechain/crypto"
	"leasechain/native/finance"
)

const (
	TypeRegisterIca = "ica/register"
	TypeIbcTransfer = "ibc/transfer"
	TypeIcaTx       = "ica/submit_tx"

	icaVersion   = "ics27-1"
	transferPort = "transfer"
)

// Any is a type-tagged payload executed by the interchain account.
type Any struct {
	TypeURL string          `json:"type_url"`
	Value   json.RawMessage `json:"value"`
}

func newAny(typeURL string, value interface{}) (Any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Any{}, err
	}
	return Any{TypeURL: typeURL, Value: raw}, nil
}

// RegisterIca opens (or reopens) the interchain account of Owner.
type RegisterIca struct {
	Owner        crypto.Address `json:"owner"`
	ConnectionID string         `json:"connection_id"`
	Version      string         `json:"version"`
	Correlation  string         `json:"correlation"`
}

// IbcTransfer sends local funds to the interchain account.
type IbcTransfer struct {
	Sender      crypto.Address    `json:"sender"`
	Receiver    string            `json:"receiver"`
	Channel     string            `json:"channel"`
	Coin        finance.Coin      `json:"coin"`
	Denom       string            `json:"denom"`
	Timeout     finance.Timestamp `json:"timeout"`
	Correlation string            `json:"correlation"`
}

// IcaTx executes messages on the DEX chain through the interchain account.
type IcaTx struct {
	Owner        crypto.Address    `json:"owner"`
	ConnectionID string            `json:"connection_id"`
	Host         string            `json:"host"`
	Msgs         []Any             `json:"msgs"`
	Memo         string            `json:"memo,omitempty"`
	Timeout      finance.Timestamp `json:"timeout"`
	Correlation  string            `json:"correlation"`
}

func (RegisterIca) MessageType() string { return TypeRegisterIca }
func (IbcTransfer) MessageType() string { return TypeIbcTransfer }
func (IcaTx) MessageType() string       { return TypeIcaTx }

// TxResponse is the acknowledgement data of an interchain transaction.
type TxResponse struct {
	MsgResponses []Any `json:"msg_responses"`
}

// DecodeTxResponse parses acknowledgement data.
func DecodeTxResponse(data []byte) (TxResponse, error) {
	var resp TxResponse
	if len(data) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return TxResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return resp, nil
}

// Encode renders the response as acknowledgement data.
func (r TxResponse) Encode() []byte {
	raw, _ := json.Marshal(r)
	return raw
}

type denomAmount struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type msgTransfer struct {
	SourcePort       string      `json:"source_port"`
	SourceChannel    string      `json:"source_channel"`
	Token            denomAmount `json:"token"`
	Sender           string      `json:"sender"`
	Receiver         string      `json:"receiver"`
	TimeoutTimestamp uint64      `json:"timeout_timestamp"`
}

const typeMsgTransfer = "/ibc.applications.transfer.v1.MsgTransfer"
