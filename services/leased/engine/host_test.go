package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/platform"
	"leasechain/native/position"
)

func TestHostPrices(t *testing.T) {
	h := NewHost(nil)
	ctx := context.Background()
	_, err := h.Price(ctx, "ATOM", "USDC")
	require.ErrorIs(t, err, ErrNoPrice)

	require.ErrorIs(t, h.SetPrice(finance.Price{Amount: atom(0), Quote: usdc(1)}), finance.ErrZeroPrice)
	require.NoError(t, h.SetPrice(finance.Price{Amount: atom(2), Quote: usdc(3)}))
	inverse, err := h.Price(ctx, "USDC", "ATOM")
	require.NoError(t, err)
	require.True(t, inverse.Amount.Equal(usdc(3)))
	require.True(t, inverse.Quote.Equal(atom(2)))

	// a newer observation in the opposite direction replaces the old one
	require.NoError(t, h.SetPrice(finance.Price{Amount: usdc(1), Quote: atom(1)}))
	direct, err := h.Price(ctx, "ATOM", "USDC")
	require.NoError(t, err)
	require.True(t, direct.Amount.Equal(atom(1)))
}

func TestHostTransfersAreAllOrNothing(t *testing.T) {
	h := NewHost(nil)
	ctx := context.Background()
	require.NoError(t, h.Credit(customer, usdc(100), atom(5)))

	err := h.Transfer(customer, stranger, usdc(60), atom(6))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	balance, err := h.Balance(ctx, customer, "USDC")
	require.NoError(t, err)
	require.True(t, balance.Equal(usdc(100)))

	require.ErrorIs(t, h.Transfer(customer, stranger, usdc(60), usdc(60)), ErrInsufficientFunds)
	require.NoError(t, h.Transfer(customer, stranger, usdc(60), atom(5)))
	got, err := h.Balance(ctx, stranger, "ATOM")
	require.NoError(t, err)
	require.True(t, got.Equal(atom(5)))

	require.ErrorIs(t, h.Covers(customer, usdc(41)), ErrInsufficientFunds)
	require.NoError(t, h.Covers(customer, usdc(40)))
}

func TestHostPacketRefunds(t *testing.T) {
	h := NewHost(nil)
	ctx := context.Background()
	require.NoError(t, h.Credit(customer, usdc(100)))

	require.ErrorIs(t, h.SendPacket(customer, "a", atom(1)), ErrInsufficientFunds)
	require.NoError(t, h.SendPacket(customer, "a", usdc(60)))
	require.NoError(t, h.SendPacket(customer, "b", usdc(40)))
	empty, err := h.Balance(ctx, customer, "USDC")
	require.NoError(t, err)
	require.True(t, empty.IsZero())

	coin, ok, err := h.RefundPacket(customer, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, coin.Equal(usdc(60)))
	_, ok, err = h.RefundPacket(customer, "a")
	require.NoError(t, err)
	require.False(t, ok)

	h.AckPacket(customer, "b")
	_, ok, err = h.RefundPacket(customer, "b")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = h.RefundPacket(stranger, "a")
	require.NoError(t, err)
	require.False(t, ok)

	balance, err := h.Balance(ctx, customer, "USDC")
	require.NoError(t, err)
	require.True(t, balance.Equal(usdc(60)))
}

func TestHostSwapPaths(t *testing.T) {
	h := NewHost(map[string][]platform.SwapHop{"OSMO>USDC": {{PoolID: 5, Target: "USDC"}}})
	hops, err := h.SwapPath(context.Background(), "OSMO", "USDC")
	require.NoError(t, err)
	require.Equal(t, []platform.SwapHop{{PoolID: 5, Target: "USDC"}}, hops)
	hops, err = h.SwapPath(context.Background(), "USDC", "OSMO")
	require.NoError(t, err)
	require.Empty(t, hops)
}

func TestHostDueAlarms(t *testing.T) {
	h := NewHost(nil)
	first, second := addr(0x21), addr(0x22)
	require.NoError(t, h.SetPrice(finance.Price{Amount: atom(1), Quote: usdc(1)}))

	h.SetTimeAlarm(first, timeAlarms, 100)
	h.SetTimeAlarm(first, timeAlarms, 200)
	above := finance.Price{Amount: atom(10), Quote: usdc(12)}
	require.NoError(t, h.SetPriceAlarm(second, oracle, platform.AddPriceAlarm{
		Oracle:       oracle,
		Below:        finance.Price{Amount: atom(10), Quote: usdc(8)},
		AboveOrEqual: &above,
	}))
	require.Error(t, h.SetPriceAlarm(second, oracle, platform.AddPriceAlarm{Oracle: oracle}))

	require.Empty(t, h.DueAlarms(150))
	due := h.DueAlarms(200)
	require.Equal(t, []Alarm{{Lease: first, Sender: timeAlarms}}, due)
	require.Empty(t, h.DueAlarms(300))

	require.NoError(t, h.SetPrice(finance.Price{Amount: atom(10), Quote: usdc(12)}))
	due = h.DueAlarms(300)
	require.Equal(t, []Alarm{{Lease: second, Sender: oracle, Price: true}}, due)

	require.NoError(t, h.SetPriceAlarm(second, oracle, platform.AddPriceAlarm{Oracle: oracle, Below: finance.Price{Amount: atom(1), Quote: usdc(2)}}))
	h.RemovePriceAlarm(second)
	require.Empty(t, h.DueAlarms(300))
}

func TestDispatcherCoversLosses(t *testing.T) {
	f := newFixture(t)
	addr := f.open()
	d := f.exec.Dispatcher
	now := finance.TimestampFrom(f.now)

	_, err := d.Dispatch(context.Background(), addr, now, platform.CoverLosses{Reserve: reserve, Lpp: lppAddr, Amount: usdc(600), Principal: usdc(600), At: now})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, StatusFailed, f.journal.last(platform.TypeCoverLosses).status)

	require.NoError(t, f.host.Credit(reserve, usdc(600)))
	_, err = d.Dispatch(context.Background(), addr, now, platform.CoverLosses{Reserve: reserve, Lpp: lppAddr, Amount: usdc(600), Principal: usdc(600), At: now})
	require.NoError(t, err)
	loan, err := f.pool.Loan(addr)
	require.NoError(t, err)
	require.Nil(t, loan)

	_, err = d.Dispatch(context.Background(), addr, now, platform.SelfCallback{Kind: platform.DexCallback})
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{lease.ErrInvalidForm, ClassValidation},
		{&position.TriggerError{Strategy: position.StrategyStopLoss}, ClassValidation},
		{&finance.CurrencyMismatchError{Expected: "USDC", Actual: "ATOM"}, ClassValidation},
		{lease.ErrUnauthorized, ClassUnauthorized},
		{&lease.UnsupportedOperationError{Operation: "repay", State: lease.KindClosed}, ClassUnsupported},
		{&lease.ProtocolViolationError{Message: "time_alarm", State: lease.KindBuyAsset}, ClassProtocol},
		{lease.ErrNotFound, ClassNotFound},
		{errors.New("disk on fire"), ClassInternal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}
