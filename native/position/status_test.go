package position

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"leasechain/native/finance"
)

func atom(v uint64) finance.Coin { return finance.NewCoin("ATOM", v) }
func usdc(v uint64) finance.Coin { return finance.NewCoin("USDC", v) }

func pct(v finance.Percent) *finance.Percent { return &v }

func testSpec() Spec {
	return Spec{
		Liability: Liability{
			Initial:    600,
			Healthy:    700,
			FirstWarn:  750,
			SecondWarn: 780,
			ThirdWarn:  800,
			Max:        850,
			RecalcTime: 7 * finance.Day,
		},
		MinAsset:       usdc(100),
		MinTransaction: usdc(10),
	}
}

func testInput(due uint64) Input {
	return Input{
		Spec:          testSpec(),
		Asset:         atom(1000),
		Price:         finance.Price{Amount: atom(1), Quote: usdc(1)},
		Due:           usdc(due),
		Overdue:       usdc(0),
		GraceDeadline: finance.Timestamp(100 * finance.Day),
		Now:           finance.Timestamp(finance.Day),
	}
}

func TestCheckSteady(t *testing.T) {
	status, err := Check(testInput(500))
	require.NoError(t, err)
	steady, ok := status.(Steady)
	require.True(t, ok, "unexpected status %#v", status)
	require.Equal(t, uint8(0), steady.Zone.Level)
	require.Equal(t, finance.Percent(500), steady.LTV)
	require.Equal(t, finance.Timestamp(8*finance.Day), steady.Steadiness.Horizon)
	require.NotNil(t, steady.Steadiness.Below)
	require.True(t, steady.Steadiness.Below.Amount.Equal(atom(1000)))
	require.True(t, steady.Steadiness.Below.Quote.Equal(usdc(667)))
	require.Nil(t, steady.Steadiness.AboveOrEqual)
}

func TestCheckSteadinessBoundsFollowPolicy(t *testing.T) {
	in := testInput(760)
	in.Policy = ClosePolicy{TakeProfit: pct(600), StopLoss: pct(770)}
	in.GraceDeadline = in.Now.Add(finance.Day)

	status, err := Check(in)
	require.NoError(t, err)
	steady, ok := status.(Steady)
	require.True(t, ok, "unexpected status %#v", status)
	require.Equal(t, uint8(1), steady.Zone.Level)
	require.Equal(t, in.Now.Add(finance.Day), steady.Steadiness.Horizon)

	below, err := finance.PriceBelow(in.Asset, in.Due, 770)
	require.NoError(t, err)
	require.Equal(t, below, *steady.Steadiness.Below)
	above, err := finance.PriceAt(in.Asset, in.Due, 750)
	require.NoError(t, err)
	require.Equal(t, above, *steady.Steadiness.AboveOrEqual)
}

func TestSteadinessBelowFiresOnZoneEdge(t *testing.T) {
	in := testInput(600)
	status, err := Check(in)
	require.NoError(t, err)
	steady, ok := status.(Steady)
	require.True(t, ok, "unexpected status %#v", status)
	require.Equal(t, uint8(0), steady.Zone.Level)

	edge, err := finance.PriceAt(in.Asset, in.Due, in.Spec.Liability.FirstWarn)
	require.NoError(t, err)
	cmp, err := edge.Cmp(*steady.Steadiness.Below)
	require.NoError(t, err)
	require.Negative(t, cmp)

	in.Price = edge
	status, err = Check(in)
	require.NoError(t, err)
	moved, ok := status.(Steady)
	require.True(t, ok, "unexpected status %#v", status)
	require.Equal(t, uint8(1), moved.Zone.Level)
	require.Equal(t, in.Spec.Liability.FirstWarn, moved.LTV)

	in.Price = *steady.Steadiness.Below
	status, err = Check(in)
	require.NoError(t, err)
	require.Equal(t, uint8(0), status.(Steady).Zone.Level)
}

func TestCheckPartialLiquidation(t *testing.T) {
	status, err := Check(testInput(860))
	require.NoError(t, err)
	need, ok := status.(NeedLiquidation)
	require.True(t, ok, "unexpected status %#v", status)
	require.False(t, need.Liquidation.Full)
	require.Equal(t, CauseLiability, need.Liquidation.Cause)
	require.True(t, need.Liquidation.Amount.Equal(atom(533)), "amount %s", need.Liquidation.Amount)
}

func TestCheckEscalatesToFull(t *testing.T) {
	status, err := Check(testInput(1000))
	require.NoError(t, err)
	require.True(t, status.(NeedLiquidation).Liquidation.Full)

	in := testInput(860)
	in.Spec.MinAsset = usdc(500)
	status, err = Check(in)
	require.NoError(t, err)
	need := status.(NeedLiquidation)
	require.True(t, need.Liquidation.Full)
	require.True(t, need.Liquidation.Amount.Equal(atom(1000)))

	in = testInput(851)
	in.Spec.MinTransaction = usdc(600)
	status, err = Check(in)
	require.NoError(t, err)
	require.True(t, status.(NeedLiquidation).Liquidation.Full)
}

func TestCheckOverdueCollection(t *testing.T) {
	in := testInput(500)
	in.OverdueCollectable = true
	in.Overdue = usdc(50)
	status, err := Check(in)
	require.NoError(t, err)
	need, ok := status.(NeedLiquidation)
	require.True(t, ok, "unexpected status %#v", status)
	require.Equal(t, CauseOverdue, need.Liquidation.Cause)
	require.True(t, need.Liquidation.Amount.Equal(atom(50)))

	in.Overdue = usdc(5)
	status, err = Check(in)
	require.NoError(t, err)
	_, steady := status.(Steady)
	require.True(t, steady, "small overdue must wait, got %#v", status)
}

func TestCheckClosePolicy(t *testing.T) {
	in := testInput(820)
	in.Policy = ClosePolicy{StopLoss: pct(800)}
	status, err := Check(in)
	require.NoError(t, err)
	require.Equal(t, CloseAsked{Strategy: StrategyStopLoss, LTV: 820}, status)

	in = testInput(300)
	in.Policy = ClosePolicy{TakeProfit: pct(400)}
	status, err = Check(in)
	require.NoError(t, err)
	require.Equal(t, CloseAsked{Strategy: StrategyTakeProfit, LTV: 300}, status)
}

func TestLiquidationTakesPrecedence(t *testing.T) {
	for due := uint64(850); due < 1100; due += 5 {
		in := testInput(due)
		in.Policy = ClosePolicy{StopLoss: pct(800)}
		status, err := Check(in)
		require.NoError(t, err)
		_, ok := status.(NeedLiquidation)
		require.True(t, ok, "due %d: expected liquidation, got %#v", due, status)
	}
}

func TestNoDebt(t *testing.T) {
	status, err := Check(testInput(0))
	require.NoError(t, err)
	require.Equal(t, NoDebt{}, status)
}

func TestChangeClosePolicy(t *testing.T) {
	liability := testSpec().Liability
	price := finance.Price{Amount: atom(1), Quote: usdc(1)}
	var policy ClosePolicy

	_, err := policy.Change(PolicyChange{TakeProfit: &TriggerChange{Value: 0}}, liability, 500, price)
	require.ErrorIs(t, err, ErrZeroClosePolicy)
	_, err = policy.Change(PolicyChange{StopLoss: &TriggerChange{Value: 0}}, liability, 500, price)
	require.ErrorIs(t, err, ErrZeroClosePolicy)

	_, err = policy.Change(PolicyChange{StopLoss: &TriggerChange{Value: 850}}, liability, 500, price)
	require.ErrorIs(t, err, ErrLiquidationConflict)
	_, err = policy.Change(PolicyChange{TakeProfit: &TriggerChange{Value: 400}, StopLoss: &TriggerChange{Value: 400}}, liability, 500, price)
	require.ErrorIs(t, err, ErrLiquidationConflict)

	_, err = policy.Change(PolicyChange{TakeProfit: &TriggerChange{Value: 600}}, liability, 500, price)
	var trigger *TriggerError
	require.True(t, errors.As(err, &trigger), "expected trigger error, got %v", err)
	require.Equal(t, StrategyTakeProfit, trigger.Strategy)
	require.Equal(t, price, trigger.Price)
	require.Equal(t, finance.Percent(500), trigger.LTV)

	_, err = policy.Change(PolicyChange{StopLoss: &TriggerChange{Value: 450}}, liability, 500, price)
	require.True(t, errors.As(err, &trigger))
	require.Equal(t, StrategyStopLoss, trigger.Strategy)

	next, err := policy.Change(PolicyChange{TakeProfit: &TriggerChange{Value: 400}, StopLoss: &TriggerChange{Value: 700}}, liability, 500, price)
	require.NoError(t, err)
	require.Equal(t, finance.Percent(400), *next.TakeProfit)
	require.Equal(t, finance.Percent(700), *next.StopLoss)

	next, err = next.Change(PolicyChange{TakeProfit: &TriggerChange{Reset: true}}, liability, 500, price)
	require.NoError(t, err)
	require.Nil(t, next.TakeProfit)
	require.Equal(t, finance.Percent(700), *next.StopLoss)
}

func TestLiabilityAmounts(t *testing.T) {
	liability := testSpec().Liability
	require.NoError(t, liability.Validate())
	require.True(t, liability.InitBorrowAmount(usdc(1000), nil).Equal(usdc(1500)))
	require.True(t, liability.InitBorrowAmount(usdc(1000), pct(1000)).Equal(usdc(1000)))
	require.True(t, liability.AmountToLiquidate(usdc(1000), usdc(600)).IsZero())

	broken := liability
	broken.FirstWarn = broken.Healthy
	require.ErrorIs(t, broken.Validate(), ErrInvalidLiability)
}

func TestValidateClose(t *testing.T) {
	spec := testSpec()
	price := finance.Price{Amount: atom(1), Quote: usdc(1)}
	require.NoError(t, spec.ValidateClose(atom(1000), atom(500), price))
	require.ErrorIs(t, spec.ValidateClose(atom(1000), atom(5), price), ErrPositionTooSmall)
	require.ErrorIs(t, spec.ValidateClose(atom(1000), atom(950), price), ErrPositionTooSmall)
	require.ErrorIs(t, spec.ValidateClose(atom(1000), atom(1000), price), ErrInvalidCloseAmount)
	require.ErrorIs(t, spec.ValidateClose(atom(1000), atom(0), price), ErrInvalidCloseAmount)
}
