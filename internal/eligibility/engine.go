// Package eligibility implements the lot gating rules: which lots count
// toward interest-bearing notional and which count toward realized P&L.
//
// The two predicates gate on different dates. Interest eligibility is
// settlement-date gated (funding must exist before financing accrues); P&L
// eligibility is cost-date gated (ownership is established at cost basis).
// Conflating the two is a correctness bug and is pinned down in tests.
package eligibility

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfabric/swapflow/internal/model"
)

// Engine evaluates lot eligibility at a point in time or over a period.
type Engine struct{}

// NewEngine returns a stateless eligibility engine.
func NewEngine() *Engine { return &Engine{} }

// InterestEligible reports whether the lot contributes to interest-bearing
// notional on day: ACTIVE and settled at or before day. A lot with no
// settlement date is never eligible (fail closed).
func (e *Engine) InterestEligible(lot model.Lot, day time.Time) bool {
	if lot.Status != model.LotStatusActive || lot.SettlementDate == nil {
		return false
	}
	return !model.DateOnly(*lot.SettlementDate).After(model.DateOnly(day))
}

// PnLEligible reports whether the lot contributes to realized P&L on day:
// ACTIVE and cost date at or before day. A lot with no cost date is never
// eligible (fail closed).
func (e *Engine) PnLEligible(lot model.Lot, day time.Time) bool {
	if lot.Status != model.LotStatusActive || lot.CostDate == nil {
		return false
	}
	return !model.DateOnly(*lot.CostDate).After(model.DateOnly(day))
}

// EligibleNotional sums quantity x cost price across interest-eligible lots
// on day. Lots settling after day are excluded entirely; there is no partial
// contribution.
func (e *Engine) EligibleNotional(lots []model.Lot, day time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		if e.InterestEligible(lot, day) {
			total = total.Add(lot.Notional())
		}
	}
	return total
}

// EligibleNotionalInRange applies the interest predicate with an inclusive
// range bound: lots settled at or before the range end.
func (e *Engine) EligibleNotionalInRange(lots []model.Lot, r model.DateRange) decimal.Decimal {
	return e.EligibleNotional(lots, r.End)
}

// PnLEligibleLots filters to the lots contributing to P&L on day.
func (e *Engine) PnLEligibleLots(lots []model.Lot, day time.Time) []model.Lot {
	out := make([]model.Lot, 0, len(lots))
	for _, lot := range lots {
		if e.PnLEligible(lot, day) {
			out = append(out, lot)
		}
	}
	return out
}

// InterestEligibleLots filters to the lots contributing to notional on day.
func (e *Engine) InterestEligibleLots(lots []model.Lot, day time.Time) []model.Lot {
	out := make([]model.Lot, 0, len(lots))
	for _, lot := range lots {
		if e.InterestEligible(lot, day) {
			out = append(out, lot)
		}
	}
	return out
}
