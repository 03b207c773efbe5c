// Package accrual computes interest cash flows for synthetic equity swaps:
// day-count conventions, business-day generation and reset-schedule rate
// resolution over the eligible notional.
package accrual

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/eligibility"
	"github.com/quantfabric/swapflow/internal/model"
)

// Calculator produces interest cash flows for one contract over a range.
type Calculator struct {
	elig     *eligibility.Engine
	calendar *Calendar
	logger   *zap.Logger
}

// NewCalculator wires the accrual calculator.
func NewCalculator(elig *eligibility.Engine, calendar *Calendar, logger *zap.Logger) *Calculator {
	return &Calculator{elig: elig, calendar: calendar, logger: logger}
}

// Accrue generates interest cash flows for each business day in the range
// that falls inside the contract's active period:
//
//	daily_interest = eligible_notional(day) * (rate + spread) * year_fraction
//
// The rate is the index fixing as of the most recent reset date at or before
// the day; a missing fixing fails the contract rather than substituting zero.
// Daily-frequency contracts get one DAILY_CLOSE flow per day; other
// frequencies consolidate each calendar month into one SCHEDULED flow.
func (c *Calculator) Accrue(contract model.Contract, lots []model.Lot, snap *model.MarketDataSnapshot, r model.DateRange) ([]*model.CashFlow, error) {
	daily := contract.InterestLeg.PayFrequency == "" || contract.InterestLeg.PayFrequency == model.FrequencyDaily

	var flows []*model.CashFlow
	var periodSum decimal.Decimal
	var periodStart, periodEnd time.Time

	flush := func() {
		if periodSum.IsZero() {
			return
		}
		cf := model.NewCashFlow(contract.ID, "", model.CashFlowInterest, periodEnd, periodSum, contract.Currency, model.BasisScheduled)
		cf.AccrualStart = periodStart
		cf.AccrualEnd = periodEnd
		cf.SettlementDate = c.calendar.NextBusinessDay(periodEnd)
		flows = append(flows, cf)
		periodSum = decimal.Zero
		periodStart = time.Time{}
	}

	for day := model.DateOnly(r.Start); !day.After(model.DateOnly(r.End)); day = day.AddDate(0, 0, 1) {
		if !contract.ActiveOn(day) || !c.calendar.IsBusinessDay(day) {
			continue
		}
		notional := c.elig.EligibleNotional(lots, day)
		if notional.IsZero() {
			continue
		}
		rate, ok := snap.RateAtOrBefore(contract.InterestLeg.RateIndex, day)
		if !ok {
			return nil, commonerr.E(commonerr.KindMissingMarketData,
				"no fixing for index %s at or before %s", contract.InterestLeg.RateIndex, model.DateKey(day)).
				WithContract(contract.ID)
		}
		// A business day accrues through to the next business day, so the
		// Friday flow carries the weekend and the summed fractions cover the
		// full calendar period.
		accrualEnd := c.calendar.NextBusinessDay(day)
		frac, err := YearFraction(day, accrualEnd, contract.InterestLeg.DayCount)
		if err != nil {
			return nil, err
		}
		amount := notional.Mul(rate.Add(contract.InterestLeg.Spread)).Mul(frac)

		if daily {
			cf := model.NewCashFlow(contract.ID, "", model.CashFlowInterest, day, amount, contract.Currency, model.BasisDailyClose)
			cf.AccrualStart = day
			cf.AccrualEnd = accrualEnd
			cf.SettlementDate = accrualEnd
			flows = append(flows, cf)
			continue
		}

		if periodStart.IsZero() {
			periodStart = day
		} else if day.Month() != periodEnd.Month() || day.Year() != periodEnd.Year() {
			flush()
			periodStart = day
		}
		periodEnd = day
		periodSum = periodSum.Add(amount)
	}
	if !daily {
		flush()
	}
	return flows, nil
}

// Principal emits the terminal PRINCIPAL flow when the calculation window
// covers the contract end date: the eligible notional returns at maturity.
func (c *Calculator) Principal(contract model.Contract, lots []model.Lot, r model.DateRange) *model.CashFlow {
	end := model.DateOnly(contract.EndDate)
	if !r.Contains(end) {
		return nil
	}
	notional := c.elig.EligibleNotional(lots, end)
	if notional.IsZero() {
		return nil
	}
	cf := model.NewCashFlow(contract.ID, "", model.CashFlowPrincipal, end, notional, contract.Currency, model.BasisScheduled)
	cf.AccrualStart = end
	cf.AccrualEnd = end
	cf.SettlementDate = c.calendar.NextBusinessDay(end)
	c.logger.Debug("principal flow generated",
		zap.String("contract_id", contract.ID),
		zap.String("amount", notional.String()))
	return cf
}
