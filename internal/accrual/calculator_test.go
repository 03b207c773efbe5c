package accrual

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

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testContract(conv model.DayCountConvention, freq model.Frequency) model.Contract {
	return model.Contract{
		ID:        "swap-1",
		Notional:  decimal.NewFromInt(1_000_000),
		Currency:  "USD",
		StartDate: date(2025, 1, 1),
		EndDate:   date(2026, 1, 1),
		EquityLeg: model.EquityLeg{Underlier: "ACME"},
		InterestLeg: model.InterestLeg{
			RateIndex:    "SOFR",
			Spread:       decimal.Zero,
			DayCount:     conv,
			PayFrequency: freq,
		},
	}
}

func millionLot() []model.Lot {
	settle := date(2025, 1, 2)
	cost := date(2025, 1, 2)
	return []model.Lot{{
		ID:             "lot-1",
		ContractID:     "swap-1",
		Quantity:       decimal.NewFromInt(10_000),
		CostPrice:      decimal.NewFromInt(100),
		CostDate:       &cost,
		SettlementDate: &settle,
		Status:         model.LotStatusActive,
	}}
}

func snapshotWithRate(day time.Time, rate string) *model.MarketDataSnapshot {
	snap := model.NewMarketDataSnapshot(time.Now(), 24*time.Hour)
	snap.SetRate("SOFR", day, decimal.RequireFromString(rate))
	return snap
}

func newCalc() *Calculator {
	return NewCalculator(eligibility.NewEngine(), NewCalendar(nil), zap.NewNop())
}

func sumAmounts(flows []*model.CashFlow) decimal.Decimal {
	total := decimal.Zero
	for _, cf := range flows {
		total = total.Add(cf.Amount)
	}
	return total
}

// 2025-06-02 is a Monday; [2025-06-02, 2025-07-01] is a 30-day window.
var thirtyDays = model.DateRange{Start: date(2025, 6, 2), End: date(2025, 7, 1)}

func TestThirtyDayAct360MatchesClosedForm(t *testing.T) {
	calc := newCalc()
	contract := testContract(model.DayCountAct360, model.FrequencyDaily)
	snap := snapshotWithRate(date(2025, 6, 1), "0.0525")

	flows, err := calc.Accrue(contract, millionLot(), snap, thirtyDays)
	require.NoError(t, err)

	// Every flow is a business-day DAILY_CLOSE accrual; Fridays carry the
	// weekend so the fractions cover all 30 calendar days.
	for _, cf := range flows {
		assert.Equal(t, model.CashFlowInterest, cf.Type)
		assert.Equal(t, model.BasisDailyClose, cf.Basis)
		assert.Equal(t, model.StageAccrual, cf.Stage)
	}
	want := 1_000_000 * 0.0525 * 30.0 / 360.0 // 4,375.00
	got, _ := sumAmounts(flows).Float64()
	assert.InDelta(t, want, got, 0.01)
}

func TestThirtyDayAct365FMatchesExampleScenario(t *testing.T) {
	calc := newCalc()
	contract := testContract(model.DayCountAct365F, model.FrequencyDaily)
	snap := snapshotWithRate(date(2025, 6, 1), "0.0525")

	flows, err := calc.Accrue(contract, millionLot(), snap, thirtyDays)
	require.NoError(t, err)

	got, _ := sumAmounts(flows).Float64()
	assert.InDelta(t, 4315.07, got, 0.01)
}

func TestRateResolvesFromMostRecentResetNoInterpolation(t *testing.T) {
	calc := newCalc()
	contract := testContract(model.DayCountAct360, model.FrequencyDaily)
	snap := snapshotWithRate(date(2025, 6, 1), "0.05")
	snap.SetRate("SOFR", date(2025, 6, 16), decimal.RequireFromString("0.06"))

	flows, err := calc.Accrue(contract, millionLot(), snap, model.DateRange{
		Start: date(2025, 6, 12), // Thursday
		End:   date(2025, 6, 17), // Tuesday
	})
	require.NoError(t, err)
	require.Len(t, flows, 4) // Thu, Fri(+weekend), Mon, Tue

	// Expected amounts mirror the calculator's operation order exactly:
	// notional * rate * (days / 360).
	expect := func(rate string, days int64) decimal.Decimal {
		frac := decimal.NewFromInt(days).Div(decimal.NewFromInt(360))
		return decimal.NewFromInt(1_000_000).Mul(decimal.RequireFromString(rate)).Mul(frac)
	}
	assert.True(t, flows[0].Amount.Equal(expect("0.05", 1)), "Thursday accrues at the 6/1 fixing")
	assert.True(t, flows[1].Amount.Equal(expect("0.05", 3)), "Friday carries the weekend at the old fixing")
	assert.True(t, flows[2].Amount.Equal(expect("0.06", 1)), "Monday 6/16 picks up the new fixing")
	assert.True(t, flows[3].Amount.Equal(expect("0.06", 1)), "Tuesday stays on the 6/16 fixing")
}

func TestMissingRateIsAnErrorNotZero(t *testing.T) {
	calc := newCalc()
	contract := testContract(model.DayCountAct360, model.FrequencyDaily)
	// Snapshot only has fixings after the window start.
	snap := snapshotWithRate(date(2025, 7, 1), "0.05")

	_, err := calc.Accrue(contract, millionLot(), snap, thirtyDays)
	require.Error(t, err)
	assert.Equal(t, commonerr.KindMissingMarketData, commonerr.KindOf(err))
}

func TestNotionalExcludesUnsettledLots(t *testing.T) {
	calc := newCalc()
	contract := testContract(model.DayCountAct360, model.FrequencyDaily)
	snap := snapshotWithRate(date(2025, 6, 1), "0.05")

	lateSettle := date(2025, 8, 1)
	cost := date(2025, 1, 2)
	lots := append(millionLot(), model.Lot{
		ID: "lot-2", ContractID: "swap-1",
		Quantity: decimal.NewFromInt(99_999), CostPrice: decimal.NewFromInt(100),
		CostDate: &cost, SettlementDate: &lateSettle,
		Status: model.LotStatusActive,
	})

	flows, err := calc.Accrue(contract, lots, snap, thirtyDays)
	require.NoError(t, err)

	// The unsettled lot must not inflate notional: totals match the single
	// million-notional lot exactly.
	want := 1_000_000 * 0.05 * 30.0 / 360.0
	got, _ := sumAmounts(flows).Float64()
	assert.InDelta(t, want, got, 0.01)
}

func TestMonthlyFrequencyConsolidates(t *testing.T) {
	calc := newCalc()
	contract := testContract(model.DayCountAct360, model.FrequencyMonthly)
	snap := snapshotWithRate(date(2025, 5, 1), "0.05")

	flows, err := calc.Accrue(contract, millionLot(), snap, model.DateRange{
		Start: date(2025, 6, 2),
		End:   date(2025, 7, 31),
	})
	require.NoError(t, err)
	require.Len(t, flows, 2, "one consolidated flow per month")
	assert.Equal(t, model.BasisScheduled, flows[0].Basis)
	assert.Equal(t, time.June, flows[0].Date.Month())
	assert.Equal(t, time.July, flows[1].Date.Month())
}

func TestPrincipalEmittedOnlyWhenWindowCoversMaturity(t *testing.T) {
	calc := newCalc()
	contract := testContract(model.DayCountAct360, model.FrequencyDaily)

	cf := calc.Principal(contract, millionLot(), thirtyDays)
	assert.Nil(t, cf, "maturity outside the window")

	cf = calc.Principal(contract, millionLot(), model.DateRange{
		Start: date(2025, 12, 1),
		End:   date(2026, 1, 15),
	})
	require.NotNil(t, cf)
	assert.Equal(t, model.CashFlowPrincipal, cf.Type)
	assert.True(t, decimal.NewFromInt(1_000_000).Equal(cf.Amount))
}

func TestYearFractionConventions(t *testing.T) {
	start, end := date(2025, 1, 1), date(2025, 1, 31)

	f, err := YearFraction(start, end, model.DayCountAct360)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Div(decimal.NewFromInt(360)).Equal(f))

	f, err = YearFraction(start, end, model.DayCount30360)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(29).Div(decimal.NewFromInt(360)).Equal(f), "30/360 caps the 31st at 30")

	_, err = YearFraction(start, end, model.DayCountConvention("ACT/ACT"))
	require.Error(t, err)
	assert.Equal(t, commonerr.KindCalculation, commonerr.KindOf(err))
}
