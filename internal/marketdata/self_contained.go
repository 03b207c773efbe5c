package marketdata

import (
	"context"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// SelfContainedResolver reads only the data embedded in the request. Missing
// instrument or index coverage is a MissingMarketData failure; nothing is
// fetched.
type SelfContainedResolver struct{}

// NewSelfContainedResolver returns the embedded-data resolver.
func NewSelfContainedResolver() *SelfContainedResolver {
	return &SelfContainedResolver{}
}

// Resolve validates that the embedded snapshot covers the requested
// instruments and returns it unchanged.
func (r *SelfContainedResolver) Resolve(_ context.Context, req ResolveRequest) (*model.MarketDataSnapshot, error) {
	snap := req.Embedded
	if snap == nil {
		return nil, commonerr.E(commonerr.KindMissingMarketData,
			"self-contained resolution requires embedded market data").WithContract(req.ContractID)
	}
	if req.Underlier != "" {
		if _, ok := snap.PriceAtOrBefore(req.Underlier, req.Range.End); !ok {
			return nil, commonerr.E(commonerr.KindMissingMarketData,
				"embedded data has no prices for %s in window ending %s", req.Underlier, model.DateKey(req.Range.End)).
				WithContract(req.ContractID)
		}
	}
	if req.RateIndex != "" {
		if _, ok := snap.RateAtOrBefore(req.RateIndex, req.Range.End); !ok {
			return nil, commonerr.E(commonerr.KindMissingMarketData,
				"embedded data has no fixings for %s in window ending %s", req.RateIndex, model.DateKey(req.Range.End)).
				WithContract(req.ContractID)
		}
	}
	return snap, nil
}
