package engine

import (
	"context"
	"sort"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// chunkResult is the immutable output of one chunk computation. Workers never
// write shared state; the router merges these after the fan-in barrier.
type chunkResult struct {
	ContractID string
	Flows      []*model.CashFlow
	TaxRecords []*model.WithholdingTaxRecord
	Err        error
}

// computeChunk runs the three calculators over one contract and sub-range
// against an already-resolved snapshot. Pure math: no persistence, no stage
// transitions, no publication.
func (e *Engine) computeChunk(ctx context.Context, ch chunk, snap *model.MarketDataSnapshot) chunkResult {
	res := chunkResult{ContractID: ch.Contract.ID}
	if err := ctx.Err(); err != nil {
		res.Err = commonerr.Wrap(commonerr.KindCancelled, err, "chunk cancelled").WithContract(ch.Contract.ID)
		return res
	}

	interest, err := e.accrual.Accrue(ch.Contract, ch.Lots, snap, ch.Range)
	if err != nil {
		res.Err = err
		return res
	}
	res.Flows = append(res.Flows, interest...)

	dividends, err := e.dividend.Calculate(ch.Contract, ch.Lots, snap, ch.Range)
	if err != nil {
		res.Err = err
		return res
	}
	for _, d := range dividends {
		res.Flows = append(res.Flows, d.CashFlow)
		res.TaxRecords = append(res.TaxRecords, d.TaxRecord)
	}

	if ch.MarkPnL && len(ch.Lots) > 0 {
		pnl, err := e.pnl.Calculate(ch.Contract, ch.Lots, snap, ch.Range.End)
		if err != nil {
			res.Err = err
			return res
		}
		res.Flows = append(res.Flows, pnl...)
	}

	if principal := e.accrual.Principal(ch.Contract, ch.Lots, ch.Range); principal != nil {
		res.Flows = append(res.Flows, principal)
	}
	return res
}

// typeOrder fixes a deterministic intra-day ordering for merged output.
var typeOrder = map[model.CashFlowType]int{
	model.CashFlowInterest:  0,
	model.CashFlowDividend:  1,
	model.CashFlowPnL:       2,
	model.CashFlowPrincipal: 3,
}

// sortFlows orders flows by contract, then date, then type, then lot. Chunk
// results merged in this order are indistinguishable from an unsplit run.
func sortFlows(flows []*model.CashFlow) {
	sort.SliceStable(flows, func(i, j int) bool {
		a, b := flows[i], flows[j]
		if a.ContractID != b.ContractID {
			return a.ContractID < b.ContractID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if typeOrder[a.Type] != typeOrder[b.Type] {
			return typeOrder[a.Type] < typeOrder[b.Type]
		}
		return a.LotID < b.LotID
	})
}

// validate rejects malformed requests before any calculation starts.
// Validation failures are synchronous and never retried.
func validate(req model.CalculationRequest) error {
	if len(req.Contracts) == 0 {
		return commonerr.E(commonerr.KindValidation, "request carries no contracts")
	}
	for _, c := range req.Contracts {
		if c.ID == "" {
			return commonerr.E(commonerr.KindValidation, "contract with empty id")
		}
		if c.Currency == "" {
			return commonerr.E(commonerr.KindValidation, "contract %s has no currency", c.ID)
		}
	}
	if req.Range.Start.IsZero() || req.Range.End.IsZero() {
		return commonerr.E(commonerr.KindValidation, "date range is required")
	}
	if model.DateOnly(req.Range.End).Before(model.DateOnly(req.Range.Start)) {
		return commonerr.E(commonerr.KindValidation, "date range end precedes start")
	}
	if req.Strategy == model.StrategySelfContained && req.Embedded == nil {
		return commonerr.E(commonerr.KindValidation, "self-contained strategy requires embedded market data")
	}
	return nil
}
