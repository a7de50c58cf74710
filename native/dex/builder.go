package dex

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"leasechain/crypto"
	"leasechain/native/finance"
	"leasechain/native/platform"
)

// Builder renders the outbound messages of DEX tasks.
type Builder struct {
	Registry *finance.Registry
	Venue    Venue
	// Timeout bounds how long a packet may stay unacknowledged.
	Timeout finance.Duration
}

// RegisterIca opens the interchain account of owner over conn.
func (b Builder) RegisterIca(owner crypto.Address, conn Connection, correlation string) RegisterIca {
	return RegisterIca{
		Owner:        owner,
		ConnectionID: conn.ConnectionID,
		Version:      icaVersion,
		Correlation:  correlation,
	}
}

// TransferOut moves a local coin to the interchain account.
func (b Builder) TransferOut(acc Account, coin finance.Coin, now finance.Timestamp, correlation string) (IbcTransfer, error) {
	if coin.IsZero() {
		return IbcTransfer{}, ErrNothingToMove
	}
	bank, err := b.Registry.BankSymbol(coin.Ticker)
	if err != nil {
		return IbcTransfer{}, err
	}
	if _, err := b.Registry.DexSymbol(coin.Ticker); err != nil {
		return IbcTransfer{}, err
	}
	return IbcTransfer{
		Sender:      acc.Owner,
		Receiver:    acc.Host,
		Channel:     acc.Connection.TransferChannel.Local,
		Coin:        coin,
		Denom:       bank,
		Timeout:     now.Add(b.Timeout),
		Correlation: correlation,
	}, nil
}

// Swap sells every coin not already in target. It returns the transaction,
// the part of coins already in target and the number of swap messages.
// A nil transaction means nothing needs swapping.
func (b Builder) Swap(ctx context.Context, q platform.Querier, acc Account, coins []finance.Coin, target string, now finance.Timestamp, correlation string) (*IcaTx, finance.Coin, int, error) {
	direct := finance.Zero(target)
	var msgs []Any
	for _, coin := range coins {
		if coin.IsZero() {
			continue
		}
		if coin.Ticker == target {
			sum, err := direct.Add(coin)
			if err != nil {
				return nil, finance.Coin{}, 0, err
			}
			direct = sum
			continue
		}
		msg, err := b.swapMsg(ctx, q, acc, coin, target)
		if err != nil {
			return nil, finance.Coin{}, 0, err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil, direct, 0, nil
	}
	return &IcaTx{
		Owner:        acc.Owner,
		ConnectionID: acc.Connection.ConnectionID,
		Host:         acc.Host,
		Msgs:         msgs,
		Timeout:      now.Add(b.Timeout),
		Correlation:  correlation,
	}, direct, len(msgs), nil
}

func (b Builder) swapMsg(ctx context.Context, q platform.Querier, acc Account, coin finance.Coin, target string) (Any, error) {
	denom, err := b.Registry.DexSymbol(coin.Ticker)
	if err != nil {
		return Any{}, err
	}
	path, err := q.SwapPath(ctx, coin.Ticker, target)
	if err != nil {
		return Any{}, err
	}
	if len(path) == 0 || path[len(path)-1].Target != target {
		return Any{}, fmt.Errorf("%w: %s -> %s", ErrNoSwapPath, coin.Ticker, target)
	}
	route := make([]Hop, len(path))
	for i, hop := range path {
		hopDenom, err := b.Registry.DexSymbol(hop.Target)
		if err != nil {
			return Any{}, err
		}
		route[i] = Hop{PoolID: hop.PoolID, Denom: hopDenom}
	}
	return b.Venue.SwapMsg(SwapInput{Sender: acc.Host, Denom: denom, Amount: coin.Amount, Route: route})
}

// SwapOutput sums the amounts bought by the swaps of a transaction.
func (b Builder) SwapOutput(resp TxResponse, swaps int) (uint256.Int, error) {
	if len(resp.MsgResponses) != swaps {
		return uint256.Int{}, fmt.Errorf("%w: expected %d swap responses, got %d", ErrInvalidResponse, swaps, len(resp.MsgResponses))
	}
	var total uint256.Int
	for _, msg := range resp.MsgResponses {
		out, err := b.Venue.AmountOut(msg)
		if err != nil {
			return uint256.Int{}, err
		}
		if _, overflow := total.AddOverflow(&total, &out); overflow {
			return uint256.Int{}, finance.ErrOverflow
		}
	}
	return total, nil
}

// TransferIn moves a coin from the interchain account back to its owner.
func (b Builder) TransferIn(acc Account, coin finance.Coin, now finance.Timestamp, correlation string) (IcaTx, error) {
	if coin.IsZero() {
		return IcaTx{}, ErrNothingToMove
	}
	denom, err := b.Registry.DexSymbol(coin.Ticker)
	if err != nil {
		return IcaTx{}, err
	}
	timeout := now.Add(b.Timeout)
	msg, err := newAny(typeMsgTransfer, msgTransfer{
		SourcePort:       transferPort,
		SourceChannel:    acc.Connection.TransferChannel.Remote,
		Token:            denomAmount{Denom: denom, Amount: coin.Amount.Dec()},
		Sender:           acc.Host,
		Receiver:         acc.Owner.String(),
		TimeoutTimestamp: uint64(timeout),
	})
	if err != nil {
		return IcaTx{}, err
	}
	return IcaTx{
		Owner:        acc.Owner,
		ConnectionID: acc.Connection.ConnectionID,
		Host:         acc.Host,
		Msgs:         []Any{msg},
		Timeout:      timeout,
		Correlation:  correlation,
	}, nil
}
