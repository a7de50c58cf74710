package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/loan"
	"leasechain/native/platform"
	"leasechain/native/position"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.LeasePrefix, raw)
}

var (
	customer   = addr(0x01)
	contract   = addr(0x02)
	lppAddr    = addr(0x03)
	oracle     = addr(0x04)
	timeAlarms = addr(0x05)
	profit     = addr(0x06)
	reserve    = addr(0x07)
	stranger   = addr(0x08)
)

func usdc(v uint64) finance.Coin { return finance.NewCoin("USDC", v) }
func atom(v uint64) finance.Coin { return finance.NewCoin("ATOM", v) }

type fakeQuerier struct {
	prices   map[string]finance.Price
	balances map[string]finance.Coin
	paths    map[string][]platform.SwapHop
}

func (q *fakeQuerier) Price(_ context.Context, base, quote string) (finance.Price, error) {
	p, ok := q.prices[base+">"+quote]
	if !ok {
		return finance.Price{}, fmt.Errorf("no price for %s/%s", base, quote)
	}
	return p, nil
}

func (q *fakeQuerier) SwapPath(_ context.Context, from, to string) ([]platform.SwapHop, error) {
	return q.paths[from+">"+to], nil
}

func (q *fakeQuerier) Balance(_ context.Context, _ crypto.Address, ticker string) (finance.Coin, error) {
	if c, ok := q.balances[ticker]; ok {
		return c, nil
	}
	return finance.Zero(ticker), nil
}

func (q *fakeQuerier) setAtomPrice(atoms, usdcs uint64) {
	q.prices["ATOM>USDC"] = finance.Price{Amount: atom(atoms), Quote: usdc(usdcs)}
}

var testLiability = position.Liability{
	Initial:    600,
	Healthy:    700,
	FirstWarn:  750,
	SecondWarn: 780,
	ThirdWarn:  800,
	Max:        850,
	RecalcTime: 7 * finance.Day,
}

func testForm() Form {
	return Form{
		Customer: customer,
		Currency: "ATOM",
		Position: position.Spec{
			Liability:      testLiability,
			MinAsset:       usdc(100),
			MinTransaction: usdc(10),
		},
		AnnualMargin: finance.FromPercent(10),
		DuePeriod:    finance.Year / 4,
		GracePeriod:  finance.Year / 3,
		Collaborators: Collaborators{
			Lpp: lppAddr, Oracle: oracle, TimeAlarms: timeAlarms, Profit: profit, Reserve: reserve,
		},
		Connection: dex.Connection{
			ConnectionID:    "connection-0",
			TransferChannel: dex.Channel{Local: "channel-0", Remote: "channel-12"},
		},
	}
}

type harness struct {
	t       *testing.T
	machine *Machine
	querier *fakeQuerier
	ids     *platform.Sequencer
	now     finance.Timestamp
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := finance.NewRegistry([]finance.Currency{
		{Ticker: "USDC", BankSymbol: "ibc/usdc", DexSymbol: "uusdc", Decimals: 6, Group: finance.GroupLpn},
		{Ticker: "ATOM", BankSymbol: "ibc/atom", DexSymbol: "uatom", Decimals: 6, Group: finance.GroupLease},
		{Ticker: "OSMO", BankSymbol: "ibc/osmo", DexSymbol: "uosmo", Decimals: 6, Group: finance.GroupPayment},
	})
	require.NoError(t, err)
	q := &fakeQuerier{
		prices:   map[string]finance.Price{},
		balances: map[string]finance.Coin{},
		paths: map[string][]platform.SwapHop{
			"USDC>ATOM": {{PoolID: 1, Target: "ATOM"}},
			"ATOM>USDC": {{PoolID: 1, Target: "USDC"}},
			"OSMO>USDC": {{PoolID: 5, Target: "USDC"}},
		},
	}
	q.setAtomPrice(1, 1)
	return &harness{
		t: t,
		machine: &Machine{
			Registry:          reg,
			Builder:           dex.Builder{Registry: reg, Venue: dex.NativeAMM{}, Timeout: 10 * finance.Minute},
			PollInterval:      finance.Minute,
			TransferInTimeout: 30 * finance.Minute,
		},
		querier: q,
		ids:     platform.NewSequencer(contract, 0),
	}
}

func (h *harness) env(sender crypto.Address, funds ...finance.Coin) platform.Env {
	return platform.Env{
		Now:      h.now,
		Contract: contract,
		Sender:   sender,
		Funds:    funds,
		Querier:  h.querier,
		IDs:      h.ids,
	}
}

func (h *harness) handle(st State, sender crypto.Address, msg Message, funds ...finance.Coin) (State, platform.Batch) {
	h.t.Helper()
	next, batch, err := h.machine.Handle(context.Background(), h.env(sender, funds...), st, msg)
	require.NoError(h.t, err)
	return next, batch
}

func (h *harness) fail(st State, sender crypto.Address, msg Message, funds ...finance.Coin) error {
	h.t.Helper()
	next, batch, err := h.machine.Handle(context.Background(), h.env(sender, funds...), st, msg)
	require.Error(h.t, err)
	require.Nil(h.t, next)
	require.True(h.t, batch.Empty())
	return err
}

// sudo delivers a DEX reply to the correlation the state waits on.
func (h *harness) sudo(st State, build func(corr string) Message) (State, platform.Batch) {
	h.t.Helper()
	return h.handle(st, crypto.Address{}, build(pendingOf(h.t, st).ID))
}

// callback delivers every self callback of the batch in order.
func (h *harness) callback(st State, batch platform.Batch) (State, platform.Batch) {
	h.t.Helper()
	cbs := batch.Callbacks()
	require.Len(h.t, cbs, 1)
	var msg Message = DexCallback{}
	if cbs[0].Kind == platform.DexCallbackContinue {
		msg = DexCallbackContinue{}
	}
	return h.handle(st, contract, msg)
}

func pendingOf(t *testing.T, st State) platform.Pending {
	t.Helper()
	switch s := st.(type) {
	case RequestLoan:
		return s.Pending
	case OpenIcaAccount:
		return s.Pending
	case Opening:
		return s.Task.Pending
	case Repayment:
		return s.Task.Pending
	case Liquidation:
		return s.Task.Pending
	case ClosePosition:
		return s.Task.Pending
	case ClosingTransferIn:
		return s.Task.Pending
	}
	t.Fatalf("state %s has nothing pending", st.Kind())
	return platform.Pending{}
}

func swapResponse(amounts ...string) []byte {
	var resp dex.TxResponse
	for _, amount := range amounts {
		value, _ := json.Marshal(map[string]string{"token_out_amount": amount})
		resp.MsgResponses = append(resp.MsgResponses, dex.Any{
			TypeURL: "/osmosis.poolmanager.v1beta1.MsgSwapExactAmountInResponse",
			Value:   value,
		})
	}
	return resp.Encode()
}

func messagesOf[T platform.Message](b platform.Batch) []T {
	var out []T
	for _, msg := range b.Messages {
		if m, ok := msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

func eventTypes(b platform.Batch) []string {
	out := make([]string, 0, len(b.Events))
	for _, evt := range b.Events {
		out = append(out, evt.Type)
	}
	return out
}

func testAccount(t *testing.T) dex.Account {
	t.Helper()
	acc, err := dex.NewAccount(contract, "dex1host", testForm().Connection)
	require.NoError(t, err)
	return acc
}

// openLease builds an open lease of 2000 ATOM owing 1000 USDC since zero time.
func openLease(t *testing.T) Lease {
	t.Helper()
	form := testForm()
	l, err := loan.New(usdc(1000), form.terms(finance.FromPercent(20)), 0)
	require.NoError(t, err)
	return Lease{
		Address:       contract,
		Customer:      customer,
		Asset:         atom(2000),
		Position:      Position{Spec: form.Position},
		Loan:          l,
		Collaborators: form.Collaborators,
		Account:       testAccount(t),
	}
}

// settleTransferIn walks a task from its swap response to the continuation,
// crediting the proceeds locally. batch is the one that issued the pending
// step.
func (h *harness) settleTransferIn(st State, batch platform.Batch, proceeds finance.Coin, swapOut string) (State, platform.Batch) {
	h.t.Helper()
	if swapOut != "" {
		st, batch = h.sudo(st, func(corr string) Message { return OnResponse{Correlation: corr, Data: swapResponse(swapOut)} })
		st, batch = h.callback(st, batch)
	}
	require.Len(h.t, messagesOf[dex.IcaTx](batch), 1)
	st, batch = h.sudo(st, func(corr string) Message { return OnResponse{Correlation: corr} })
	h.querier.balances[proceeds.Ticker] = proceeds
	st, batch = h.callback(st, batch)
	return h.callback(st, batch)
}
