// Package pnl computes mark-to-market profit/loss cash flows per lot.
package pnl

import (
	"time"

	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/eligibility"
	"github.com/quantfabric/swapflow/internal/model"
)

// Calculator marks eligible lots against the snapshot close.
type Calculator struct {
	elig   *eligibility.Engine
	logger *zap.Logger
}

// NewCalculator wires the P&L calculator.
func NewCalculator(elig *eligibility.Engine, logger *zap.Logger) *Calculator {
	return &Calculator{elig: elig, logger: logger}
}

// Calculate produces one PNL cash flow per P&L-eligible lot on the
// calculation date: (close - cost_price) * quantity. Eligibility gates on the
// lot's cost date, not its settlement date. A missing close price fails the
// contract rather than marking at zero.
func (c *Calculator) Calculate(contract model.Contract, lots []model.Lot, snap *model.MarketDataSnapshot, calcDate time.Time) ([]*model.CashFlow, error) {
	eligible := c.elig.PnLEligibleLots(lots, calcDate)
	if len(eligible) == 0 {
		return nil, nil
	}
	px, ok := snap.PriceAtOrBefore(contract.EquityLeg.Underlier, calcDate)
	if !ok {
		return nil, commonerr.E(commonerr.KindMissingMarketData,
			"no close for %s at or before %s", contract.EquityLeg.Underlier, model.DateKey(calcDate)).
			WithContract(contract.ID)
	}
	flows := make([]*model.CashFlow, 0, len(eligible))
	for _, lot := range eligible {
		amount := px.Sub(lot.CostPrice).Mul(lot.Quantity)
		cf := model.NewCashFlow(contract.ID, lot.ID, model.CashFlowPnL, calcDate, amount, contract.Currency, model.BasisTradeLevel)
		cf.AccrualStart = model.DateOnly(calcDate)
		cf.AccrualEnd = model.DateOnly(calcDate)
		cf.SettlementDate = model.DateOnly(calcDate)
		flows = append(flows, cf)
	}
	return flows, nil
}
