package pnl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/eligibility"
	"github.com/quantfabric/swapflow/internal/model"
)

func date(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func lot(id string, qty, cost int64, costDay, settleDay int) model.Lot {
	c, s := date(costDay), date(settleDay)
	return model.Lot{
		ID: id, ContractID: "swap-1",
		Quantity:  decimal.NewFromInt(qty),
		CostPrice: decimal.NewFromInt(cost),
		CostDate:  &c, SettlementDate: &s,
		Status: model.LotStatusActive,
	}
}

func testContract() model.Contract {
	return model.Contract{
		ID: "swap-1", Currency: "USD",
		EquityLeg: model.EquityLeg{Underlier: "ACME"},
	}
}

func snapWithClose(day time.Time, px int64) *model.MarketDataSnapshot {
	snap := model.NewMarketDataSnapshot(time.Now(), 24*time.Hour)
	snap.SetPrice("ACME", day, decimal.NewFromInt(px))
	return snap
}

func TestOneFlowPerEligibleLot(t *testing.T) {
	calc := NewCalculator(eligibility.NewEngine(), zap.NewNop())
	lots := []model.Lot{
		lot("lot-1", 100, 90, 2, 4),
		lot("lot-2", 50, 110, 3, 5),
	}

	flows, err := calc.Calculate(testContract(), lots, snapWithClose(date(10), 105), date(10))
	require.NoError(t, err)
	require.Len(t, flows, 2)

	// (105 - 90) * 100 = 1500 gain, (105 - 110) * 50 = -250 loss.
	assert.True(t, decimal.NewFromInt(1500).Equal(flows[0].Amount), "got %s", flows[0].Amount)
	assert.True(t, decimal.NewFromInt(-250).Equal(flows[1].Amount), "got %s", flows[1].Amount)
	assert.Equal(t, model.CashFlowPnL, flows[0].Type)
	assert.Equal(t, "lot-1", flows[0].LotID)
}

func TestGatesOnCostDateNotSettlementDate(t *testing.T) {
	calc := NewCalculator(eligibility.NewEngine(), zap.NewNop())
	// Cost date has passed but settlement has not: the lot marks P&L anyway.
	unsettled := lot("lot-1", 100, 90, 2, 20)

	flows, err := calc.Calculate(testContract(), []model.Lot{unsettled}, snapWithClose(date(10), 105), date(10))
	require.NoError(t, err)
	assert.Len(t, flows, 1, "P&L eligibility is cost-date gated")

	// Cost date in the future: no P&L even though a price exists.
	future := lot("lot-2", 100, 90, 15, 16)
	flows, err = calc.Calculate(testContract(), []model.Lot{future}, snapWithClose(date(10), 105), date(10))
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestMissingCloseFailsInsteadOfMarkingZero(t *testing.T) {
	calc := NewCalculator(eligibility.NewEngine(), zap.NewNop())
	snap := model.NewMarketDataSnapshot(time.Now(), 24*time.Hour)

	_, err := calc.Calculate(testContract(), []model.Lot{lot("lot-1", 100, 90, 2, 4)}, snap, date(10))
	require.Error(t, err)
	assert.True(t, commonerr.IsKind(err, commonerr.KindMissingMarketData))
}

func TestUsesMostRecentCloseAtOrBefore(t *testing.T) {
	calc := NewCalculator(eligibility.NewEngine(), zap.NewNop())
	snap := snapWithClose(date(6), 100) // Friday close
	snap.SetPrice("ACME", date(9), decimal.NewFromInt(120))

	// Marking on Saturday uses Friday's close, never interpolates.
	flows, err := calc.Calculate(testContract(), []model.Lot{lot("lot-1", 10, 90, 2, 4)}, snap, date(7))
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(flows[0].Amount), "marks against the Friday close: (100-90)*10")
}
