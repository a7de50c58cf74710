package dex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leasechain/crypto"
	"leasechain/native/finance"
	"leasechain/native/platform"
)

type fakeQuerier struct {
	balances map[string]finance.Coin
	paths    map[string][]platform.SwapHop
}

func (q *fakeQuerier) Price(context.Context, string, string) (finance.Price, error) {
	return finance.Price{}, errors.New("not priced")
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

func testRegistry(t *testing.T) *finance.Registry {
	t.Helper()
	reg, err := finance.NewRegistry([]finance.Currency{
		{Ticker: "USDC", BankSymbol: "ibc/usdc", DexSymbol: "uusdc", Decimals: 6, Group: finance.GroupLpn},
		{Ticker: "ATOM", BankSymbol: "ibc/atom", DexSymbol: "uatom", Decimals: 6, Group: finance.GroupLease},
		{Ticker: "OSMO", BankSymbol: "ibc/osmo", DexSymbol: "uosmo", Decimals: 6, Group: finance.GroupPayment},
	})
	require.NoError(t, err)
	return reg
}

type harness struct {
	orch    Orchestrator
	querier *fakeQuerier
	scope   Scope
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	owner := crypto.NewAddress(crypto.LeasePrefix, append(make([]byte, 19), 0x07))
	acc, err := NewAccount(owner, "dex1host", Connection{
		ConnectionID:    "connection-0",
		TransferChannel: Channel{Local: "channel-0", Remote: "channel-12"},
	})
	require.NoError(t, err)
	q := &fakeQuerier{
		balances: map[string]finance.Coin{},
		paths: map[string][]platform.SwapHop{
			"USDC>ATOM": {{PoolID: 1, Target: "ATOM"}},
			"OSMO>ATOM": {{PoolID: 7, Target: "USDC"}, {PoolID: 1, Target: "ATOM"}},
			"ATOM>USDC": {{PoolID: 1, Target: "USDC"}},
		},
	}
	return &harness{
		orch: Orchestrator{
			Builder:           Builder{Registry: testRegistry(t), Venue: NativeAMM{}, Timeout: 10 * finance.Minute},
			TimeAlarms:        crypto.NewAddress(crypto.LeasePrefix, append(make([]byte, 19), 0x09)),
			PollInterval:      finance.Minute,
			TransferInTimeout: 30 * finance.Minute,
		},
		querier: q,
		scope: Scope{
			Env: platform.Env{
				Now:      finance.TimestampFrom(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
				Contract: owner,
				Querier:  q,
				IDs:      platform.NewSequencer(owner, 0),
			},
			Account: acc,
		},
	}
}

// apply carries the account of a step into the next call.
func (h *harness) apply(s Step) Task {
	h.scope.Account = s.Account
	return s.Task
}

func ammResponse(t *testing.T, amounts ...string) []byte {
	t.Helper()
	var resp TxResponse
	for _, amount := range amounts {
		msg, err := newAny(typeAmmSwapResponse, ammSwapResponse{TokenOutAmount: amount})
		require.NoError(t, err)
		resp.MsgResponses = append(resp.MsgResponses, msg)
	}
	return resp.Encode()
}

func requireCallback(t *testing.T, s Step, kind platform.CallbackKind) {
	t.Helper()
	require.Len(t, s.Messages, 1)
	require.Equal(t, platform.SelfCallback{Kind: kind}, s.Messages[0])
}

func TestOpeningFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	coins := []finance.Coin{finance.NewCoin("OSMO", 50), finance.NewCoin("USDC", 300)}

	s, err := h.orch.Start(ctx, h.scope, FlowOpening, coins, "ATOM")
	require.NoError(t, err)
	require.Equal(t, StageTransferOut, s.Task.Stage)
	require.Equal(t, PhaseAwaitingAck, s.Task.Phase)
	require.Len(t, s.Messages, 1)
	transfer := s.Messages[0].(IbcTransfer)
	require.Equal(t, "ibc/osmo", transfer.Denom)
	require.Equal(t, "channel-0", transfer.Channel)
	require.Equal(t, "dex1host", transfer.Receiver)
	task := h.apply(s)

	s, err = h.orch.OnResponse(ctx, h.scope, task, task.Pending.ID, nil)
	require.NoError(t, err)
	requireCallback(t, s, platform.DexCallback)
	task = h.apply(s)

	s, err = h.orch.OnCallback(ctx, h.scope, task)
	require.NoError(t, err)
	require.Equal(t, "ibc/usdc", s.Messages[0].(IbcTransfer).Denom)
	task = h.apply(s)

	s, err = h.orch.OnResponse(ctx, h.scope, task, task.Pending.ID, nil)
	require.NoError(t, err)
	task = h.apply(s)
	s, err = h.orch.OnCallback(ctx, h.scope, task)
	require.NoError(t, err)
	require.Equal(t, StageSwap, s.Task.Stage)
	tx := s.Messages[0].(IcaTx)
	require.Len(t, tx.Msgs, 2)
	require.Equal(t, typeAmmSwap, tx.Msgs[0].TypeURL)
	var swap ammSwap
	require.NoError(t, json.Unmarshal(tx.Msgs[0].Value, &swap))
	require.Equal(t, "uosmo", swap.TokenIn.Denom)
	require.Len(t, swap.Routes, 2)
	require.Equal(t, "uatom", swap.Routes[1].TokenOutDenom)
	require.Equal(t, "1", swap.TokenOutMinAmount)
	task = h.apply(s)

	s, err = h.orch.OnResponse(ctx, h.scope, task, task.Pending.ID, ammResponse(t, "10", "30"))
	require.NoError(t, err)
	require.True(t, s.Task.Received.Equal(finance.NewCoin("ATOM", 40)))
	task = h.apply(s)

	s, err = h.orch.OnCallback(ctx, h.scope, task)
	require.NoError(t, err)
	require.True(t, s.Task.Done())
	requireCallback(t, s, platform.DexCallbackContinue)
	task = h.apply(s)

	s, err = h.orch.OnContinue(ctx, h.scope, task)
	require.NoError(t, err)
	require.True(t, s.Finished)
	require.True(t, s.Task.Received.Equal(finance.NewCoin("ATOM", 40)))
}

func TestSwapSkipsTargetCurrency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	task := Task{Flow: FlowOpening, Stage: StageTransferOut, Phase: PhaseAwaitingCallback,
		Coins: []finance.Coin{finance.NewCoin("ATOM", 5)}, Index: 1, Target: "ATOM"}

	s, err := h.orch.OnCallback(ctx, h.scope, task)
	require.NoError(t, err)
	require.True(t, s.Task.Done())
	require.True(t, s.Task.Received.Equal(finance.NewCoin("ATOM", 5)))
}

func TestTimeoutReopensAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.orch.Start(ctx, h.scope, FlowClosing, []finance.Coin{finance.NewCoin("ATOM", 100)}, "USDC")
	require.NoError(t, err)
	task := h.apply(s)
	swapID := task.Pending.ID

	s, err = h.orch.OnTimeout(ctx, h.scope, task, swapID)
	require.NoError(t, err)
	require.Equal(t, PhaseRecoveringIca, s.Task.Phase)
	require.Equal(t, uint64(1), s.Task.Attempts)
	register := s.Messages[0].(RegisterIca)
	require.Equal(t, "connection-0", register.ConnectionID)
	task = h.apply(s)

	_, err = h.orch.OnResponse(ctx, h.scope, task, swapID, ammResponse(t, "90"))
	require.ErrorIs(t, err, ErrUnexpected)

	s, err = h.orch.OnOpenAck(ctx, h.scope, task, task.Pending.ID, "dex1fresh")
	require.NoError(t, err)
	require.Equal(t, "dex1fresh", s.Account.Host)
	require.Equal(t, PhaseAwaitingAck, s.Task.Phase)
	require.Equal(t, "dex1fresh", s.Messages[0].(IcaTx).Host)
	require.NotEqual(t, swapID, s.Task.Pending.ID)
}

func TestSwapErrorParksUntilHealed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.orch.Start(ctx, h.scope, FlowClosing, []finance.Coin{finance.NewCoin("ATOM", 100)}, "USDC")
	require.NoError(t, err)
	task := h.apply(s)

	_, err = h.orch.OnError(ctx, h.scope, task, "other")
	require.ErrorIs(t, err, ErrUnexpected)

	s, err = h.orch.OnError(ctx, h.scope, task, task.Pending.ID)
	require.NoError(t, err)
	require.True(t, s.Task.Anomalous())
	require.Empty(t, s.Messages)
	task = h.apply(s)

	s, err = h.orch.Heal(ctx, h.scope, task)
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingAck, s.Task.Phase)
	require.Equal(t, StageSwap, s.Task.Stage)
	require.IsType(t, IcaTx{}, s.Messages[0])
}

func TestHealLeavesInFlightTaskAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.orch.Start(ctx, h.scope, FlowClosing, []finance.Coin{finance.NewCoin("ATOM", 100)}, "USDC")
	require.NoError(t, err)
	task := h.apply(s)

	s, err = h.orch.Heal(ctx, h.scope, task)
	require.NoError(t, err)
	require.Empty(t, s.Messages)
	require.Equal(t, task, s.Task)

	task.Phase = PhaseAwaitingCallback
	s, err = h.orch.Heal(ctx, h.scope, task)
	require.NoError(t, err)
	requireCallback(t, s, platform.DexCallback)
}

func TestTransferInWaitsForBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.querier.balances["ATOM"] = finance.NewCoin("ATOM", 5)

	s, err := h.orch.Start(ctx, h.scope, FlowReturnAsset, []finance.Coin{finance.NewCoin("ATOM", 100)}, "")
	require.NoError(t, err)
	require.Equal(t, StageTransferInInit, s.Task.Stage)
	require.True(t, s.Task.Baseline.Equal(finance.NewCoin("ATOM", 5)))
	tx := s.Messages[0].(IcaTx)
	require.Len(t, tx.Msgs, 1)
	var transfer msgTransfer
	require.NoError(t, json.Unmarshal(tx.Msgs[0].Value, &transfer))
	require.Equal(t, "channel-12", transfer.SourceChannel)
	require.Equal(t, "uatom", transfer.Token.Denom)
	require.Equal(t, "100", transfer.Token.Amount)
	require.Equal(t, h.scope.Account.Owner.String(), transfer.Receiver)
	task := h.apply(s)

	s, err = h.orch.OnResponse(ctx, h.scope, task, task.Pending.ID, nil)
	require.NoError(t, err)
	task = h.apply(s)
	s, err = h.orch.OnCallback(ctx, h.scope, task)
	require.NoError(t, err)
	require.Equal(t, StageTransferInFinish, s.Task.Stage)
	require.Equal(t, PhaseAwaitingBalance, s.Task.Phase)
	alarm := s.Messages[0].(platform.AddTimeAlarm)
	require.Equal(t, h.scope.Env.Now.Add(finance.Minute), alarm.At)
	task = h.apply(s)

	h.querier.balances["ATOM"] = finance.NewCoin("ATOM", 105)
	s, err = h.orch.OnTimeAlarm(ctx, h.scope, task)
	require.NoError(t, err)
	require.True(t, s.Task.Done())
	requireCallback(t, s, platform.DexCallbackContinue)

	_, err = h.orch.OnTimeAlarm(ctx, h.scope, s.Task)
	require.ErrorIs(t, err, ErrUnexpected)
}

func TestTransferInReissuedAfterDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.orch.Start(ctx, h.scope, FlowReturnAsset, []finance.Coin{finance.NewCoin("ATOM", 100)}, "")
	require.NoError(t, err)
	task := h.apply(s)

	s, err = h.orch.OnError(ctx, h.scope, task, task.Pending.ID)
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingBalance, s.Task.Phase)
	task = h.apply(s)

	h.scope.Env.Now = task.Deadline
	s, err = h.orch.OnTimeAlarm(ctx, h.scope, task)
	require.NoError(t, err)
	require.Equal(t, StageTransferInInit, s.Task.Stage)
	require.Equal(t, PhaseAwaitingAck, s.Task.Phase)
	require.Equal(t, uint64(1), s.Task.Attempts)
	require.IsType(t, IcaTx{}, s.Messages[0])
}

func TestRouterVenue(t *testing.T) {
	venue, err := NewVenue(VenueRouter, "dex1router")
	require.NoError(t, err)
	amount := finance.NewCoin("ATOM", 42)
	msg, err := venue.SwapMsg(SwapInput{
		Sender: "dex1host",
		Denom:  "uatom",
		Amount: amount.Amount,
		Route:  []Hop{{PoolID: 1, Denom: "uusdc"}},
	})
	require.NoError(t, err)
	require.Equal(t, typeExecute, msg.TypeURL)
	var exec executeContract
	require.NoError(t, json.Unmarshal(msg.Value, &exec))
	require.Equal(t, "dex1router", exec.Contract)
	require.Equal(t, "42", exec.Funds[0].Amount)

	data := base64.StdEncoding.EncodeToString([]byte(`{"return_amount":"77"}`))
	resp, err := newAny(typeExecuteResponse, executeResponse{Data: data})
	require.NoError(t, err)
	out, err := venue.AmountOut(resp)
	require.NoError(t, err)
	require.Equal(t, uint64(77), out.Uint64())

	_, err = venue.AmountOut(Any{TypeURL: typeAmmSwapResponse})
	require.ErrorIs(t, err, ErrInvalidResponse)

	_, err = NewVenue(VenueRouter, "")
	require.Error(t, err)
}

func TestSwapRequiresPath(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Start(context.Background(), h.scope, FlowClosing, []finance.Coin{finance.NewCoin("OSMO", 10)}, "USDC")
	require.ErrorIs(t, err, ErrNoSwapPath)
}

func TestSwapOutputCountsResponses(t *testing.T) {
	b := Builder{Venue: NativeAMM{}}
	resp, err := DecodeTxResponse(ammResponse(t, "5"))
	require.NoError(t, err)
	_, err = b.SwapOutput(resp, 2)
	require.ErrorIs(t, err, ErrInvalidResponse)
}
