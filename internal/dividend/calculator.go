// Package dividend computes gross dividend, withholding tax and net payable
// for synthetic equity swaps, per lot or proportioned at contract level.
package dividend

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/eligibility"
	"github.com/quantfabric/swapflow/internal/model"
)

// defaultJurisdictions maps settlement currency to tax jurisdiction. The
// mapping is documented configuration, never inferred from counterparty.
var defaultJurisdictions = map[string]string{
	"USD": "US",
	"EUR": "EU",
	"GBP": "UK",
	"JPY": "JP",
	"CHF": "CH",
	"AUD": "AU",
	"CAD": "CA",
	"HKD": "HK",
}

// Calculator produces dividend cash flows and their withholding tax records.
type Calculator struct {
	elig          *eligibility.Engine
	jurisdictions map[string]string
	logger        *zap.Logger
}

// NewCalculator wires the dividend calculator. Passing a nil jurisdiction map
// selects the documented currency mapping.
func NewCalculator(elig *eligibility.Engine, jurisdictions map[string]string, logger *zap.Logger) *Calculator {
	if jurisdictions == nil {
		jurisdictions = defaultJurisdictions
	}
	return &Calculator{elig: elig, jurisdictions: jurisdictions, logger: logger}
}

// Result pairs a dividend cash flow with its one-to-one tax record.
type Result struct {
	CashFlow  *model.CashFlow
	TaxRecord *model.WithholdingTaxRecord
}

// TaxReference derives the idempotency and tax-utility reporting key for a
// dividend event on a contract.
func TaxReference(contractID string, exDate time.Time) string {
	return fmt.Sprintf("%s:%s", contractID, model.DateKey(exDate))
}

// Calculate processes every dividend event whose ex-date falls inside the
// calculation window (at or before the calculation date, and not before the
// window start so a split range never counts an event twice). Lot-based gross
// is used when lots are supplied; otherwise the contract-level notional
// proportioning applies.
func (c *Calculator) Calculate(contract model.Contract, lots []model.Lot, snap *model.MarketDataSnapshot, window model.DateRange) ([]Result, error) {
	events := snap.Dividends(contract.EquityLeg.Underlier)
	var results []Result
	for _, ev := range events {
		if !window.Contains(ev.ExDate) {
			continue
		}
		gross, err := c.gross(contract, lots, ev)
		if err != nil {
			return nil, err
		}
		if gross.IsZero() {
			continue
		}
		rate := contract.EquityLeg.WithholdingRate
		treatment := contract.EquityLeg.DividendTreatment
		withheld := gross.Mul(rate)

		var net decimal.Decimal
		switch treatment {
		case model.TreatmentNoWithholding:
			withheld = decimal.Zero
			net = gross
		case model.TreatmentTaxCredit:
			// Withheld amount is tracked on the tax record but not deducted
			// from net; the credit is recovered through the tax utility.
			net = gross
		default:
			// GROSS_UP and NET_AMOUNT both pay net of withholding.
			net = gross.Sub(withheld)
		}

		cf := model.NewCashFlow(contract.ID, "", model.CashFlowDividend, ev.ExDate, net, contract.Currency, model.BasisTradeLevel)
		cf.AccrualStart = ev.ExDate
		cf.AccrualEnd = ev.ExDate
		cf.SettlementDate = model.DateOnly(ev.PayDate)
		if cf.SettlementDate.IsZero() {
			cf.SettlementDate = model.DateOnly(ev.ExDate)
		}

		jurisdiction, ok := c.jurisdictions[contract.Currency]
		if !ok {
			jurisdiction = "XX"
			c.logger.Warn("no jurisdiction mapping for settlement currency",
				zap.String("currency", contract.Currency),
				zap.String("contract_id", contract.ID))
		}

		results = append(results, Result{
			CashFlow: cf,
			TaxRecord: &model.WithholdingTaxRecord{
				Reference:    TaxReference(contract.ID, ev.ExDate),
				CashFlowID:   cf.ID,
				ContractID:   contract.ID,
				Gross:        gross,
				Rate:         rate,
				Withheld:     withheld,
				Net:          net,
				Treatment:    treatment,
				Jurisdiction: jurisdiction,
				ExDate:       model.DateOnly(ev.ExDate),
				CreatedAt:    time.Now().UTC(),
			},
		})
	}
	return results, nil
}

// gross computes the gross dividend amount for one event.
func (c *Calculator) gross(contract model.Contract, lots []model.Lot, ev model.DividendEvent) (decimal.Decimal, error) {
	if len(lots) > 0 {
		// Lot-based: sum over lots holding the position on the ex-date.
		total := decimal.Zero
		for _, lot := range c.elig.PnLEligibleLots(lots, ev.ExDate) {
			total = total.Add(lot.Quantity.Mul(ev.AmountPerShare))
		}
		return total, nil
	}
	// Contract-based: proportion the per-share amount by notional over the
	// equity leg's reference notional.
	ref := contract.EquityLeg.ReferenceNotional
	if ref.IsZero() {
		return decimal.Decimal{}, commonerr.E(commonerr.KindCalculation,
			"contract-level dividend requires a reference notional").WithContract(contract.ID)
	}
	return contract.Notional.Mul(ev.AmountPerShare).Div(ref), nil
}
