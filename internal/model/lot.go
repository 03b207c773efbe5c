package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotStatus is the lifecycle state of a lot.
type LotStatus string

const (
	LotStatusActive LotStatus = "ACTIVE"
	LotStatusClosed LotStatus = "CLOSED"
)

// Lot is the atomic ownership unit of a position. A position is the set of
// lots sharing a contract. CostDate gates P&L eligibility and SettlementDate
// gates interest eligibility; the two fields are intentionally distinct and
// must never be unified.
type Lot struct {
	ID         string          `json:"id"`
	ContractID string          `json:"contract_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	// CostDate establishes ownership for P&L purposes. Nil means the lot is
	// not P&L eligible on any date (fail closed).
	CostDate *time.Time `json:"cost_date,omitempty"`
	// SettlementDate establishes funding for interest purposes. Nil means the
	// lot never contributes to interest-bearing notional (fail closed).
	SettlementDate *time.Time `json:"settlement_date,omitempty"`
	Status         LotStatus  `json:"status"`
}

// Notional is the lot's contribution to interest-bearing notional when
// eligible: quantity x cost price.
func (l Lot) Notional() decimal.Decimal {
	return l.Quantity.Mul(l.CostPrice)
}
