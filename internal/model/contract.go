// Package model defines the immutable domain entities shared by the
// calculation engine: contracts, lots, market data snapshots, cash flows and
// settlement instructions.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayCountConvention is the fraction-of-year rule used to convert an annual
// rate into a period accrual.
type DayCountConvention string

const (
	DayCountAct360  DayCountConvention = "ACT/360"
	DayCountAct365F DayCountConvention = "ACT/365F"
	DayCount30360   DayCountConvention = "30/360"
)

// Frequency of interest consolidation or payment.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
)

// DividendTreatment governs how gross dividend, withheld tax and net payable
// relate for a contract's equity leg.
type DividendTreatment string

const (
	TreatmentGrossUp       DividendTreatment = "GROSS_UP"
	TreatmentNetAmount     DividendTreatment = "NET_AMOUNT"
	TreatmentNoWithholding DividendTreatment = "NO_WITHHOLDING"
	TreatmentTaxCredit     DividendTreatment = "TAX_CREDIT"
)

// EquityLeg describes the equity side of a synthetic swap.
type EquityLeg struct {
	Underlier         string            `json:"underlier"`
	DividendTreatment DividendTreatment `json:"dividend_treatment"`
	WithholdingRate   decimal.Decimal   `json:"withholding_rate"`
	ReferenceNotional decimal.Decimal   `json:"reference_notional"`
}

// InterestLeg describes the financing side of a synthetic swap.
type InterestLeg struct {
	RateIndex      string             `json:"rate_index"`
	Spread         decimal.Decimal    `json:"spread"`
	DayCount       DayCountConvention `json:"day_count"`
	ResetFrequency Frequency          `json:"reset_frequency"`
	PayFrequency   Frequency          `json:"pay_frequency"`
}

// Contract is a synthetic equity swap as captured upstream. It is read-only
// inside the engine; every calculation treats it as an immutable input.
type Contract struct {
	ID          string          `json:"id"`
	Notional    decimal.Decimal `json:"notional"`
	Currency    string          `json:"currency"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	EquityLeg   EquityLeg       `json:"equity_leg"`
	InterestLeg InterestLeg     `json:"interest_leg"`
}

// ActiveOn reports whether the contract covers the given date, inclusive of
// both endpoints.
func (c Contract) ActiveOn(day time.Time) bool {
	d := DateOnly(day)
	return !d.Before(DateOnly(c.StartDate)) && !d.After(DateOnly(c.EndDate))
}

// DateOnly truncates a timestamp to its UTC calendar date. All eligibility
// comparisons and series lookups operate on calendar dates, never instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey renders a date in the fixed series-key format.
func DateKey(t time.Time) string {
	return DateOnly(t).Format("2006-01-02")
}
