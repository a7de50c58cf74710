package lease

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"leasechain/native/finance"
	"leasechain/native/platform"
	"leasechain/native/position"
)

// sampleStates walks a lease through its lifecycle and returns one state of
// every variant.
func sampleStates(t *testing.T) []State {
	t.Helper()
	h := newHarness(t)
	capped := finance.Percent(900)
	form := testForm()
	form.MaxLTD = &capped

	requested, batch, err := h.machine.Instantiate(context.Background(), h.env(customer, usdc(400)), form)
	require.NoError(t, err)
	corr := messagesOf[platform.OpenLoan](batch)[0].Correlation
	registering, _ := h.handle(requested, lppAddr, LoanOpened{Correlation: corr, Amount: usdc(360), AnnualRate: finance.FromPercent(20)})
	opening, _ := h.sudo(registering, func(corr string) Message { return OnOpenAck{Correlation: corr, Host: "dex1host"} })

	h.now = finance.Timestamp(finance.Year / 10)
	lease := openLease(t)
	sl := finance.Percent(800)
	lease.Position.Policy = position.ClosePolicy{StopLoss: &sl}
	active := OpenedActive{Lease: lease}
	repaying, _ := h.handle(active, customer, Repay{}, finance.NewCoin("OSMO", 80))
	closing, _ := h.handle(active, customer, ClosePositionRequest{})
	h.querier.setAtomPrice(2000, 1150)
	liquidating, _ := h.handle(active, oracle, PriceAlarm{})

	paidLease := openLease(t)
	paidLease.Loan.Principal = usdc(0)
	paid := PaidActive{Lease: paidLease}
	returning, _ := h.handle(paid, customer, Close{})

	return []State{
		requested, registering, opening, active, repaying, liquidating, closing,
		returning, paid,
		Closed{Lease: contract, Customer: customer},
		Liquidated{Lease: contract, Customer: customer},
	}
}

func TestRecordRoundTrip(t *testing.T) {
	for _, st := range sampleStates(t) {
		st := st
		t.Run(st.Kind().String(), func(t *testing.T) {
			data, err := Encode(Record{State: st, Seq: 7})
			require.NoError(t, err)
			rec, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, st.Kind(), rec.State.Kind())
			require.Equal(t, uint64(7), rec.Seq)
			again, err := Encode(rec)
			require.NoError(t, err)
			require.Equal(t, data, again)
		})
	}
}

func TestDecodeRejectsMismatchedTag(t *testing.T) {
	body, err := rlp.EncodeToBytes(Closed{Lease: contract, Customer: customer})
	require.NoError(t, err)
	data, err := rlp.EncodeToBytes(envelope{Version: RecordVersion, Tag: 0, Body: body})
	require.NoError(t, err)
	_, err = Decode(data)
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = Encode(Record{})
	require.Error(t, err)
}

func TestMigrateFromFirstLayout(t *testing.T) {
	st := OpenedActive{Lease: openLease(t)}
	body, err := rlp.EncodeToBytes(st)
	require.NoError(t, err)
	old, err := rlp.EncodeToBytes(envelopeV1{Version: 1, Tag: uint8(st.Kind()), Body: body})
	require.NoError(t, err)

	_, err = Decode(old)
	require.ErrorIs(t, err, ErrUnknownVersion)

	data, changed, err := Migrate(old)
	require.NoError(t, err)
	require.True(t, changed)
	rec, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, seqAfterV1, rec.Seq)
	require.Equal(t, KindOpenedActive, rec.State.Kind())
	require.True(t, rec.State.(OpenedActive).Lease.Asset.Equal(atom(2000)))

	same, changed, err := Migrate(data)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, data, same)
}

func TestMigrateRejectsUnknownLayouts(t *testing.T) {
	future, err := rlp.EncodeToBytes(envelope{Version: RecordVersion + 1, Tag: uint8(KindClosed)})
	require.NoError(t, err)
	_, _, err = Migrate(future)
	require.ErrorIs(t, err, ErrUnknownVersion)

	ancient, err := rlp.EncodeToBytes(envelopeV1{Version: 0, Tag: uint8(KindClosed)})
	require.NoError(t, err)
	_, _, err = Migrate(ancient)
	require.ErrorIs(t, err, ErrUnknownVersion)

	broken, err := rlp.EncodeToBytes(envelopeV1{Version: 1, Tag: uint8(KindClosed), Body: []byte{0x01}})
	require.NoError(t, err)
	_, _, err = Migrate(broken)
	require.Error(t, err)
}
