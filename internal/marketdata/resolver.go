// Package marketdata resolves the price, rate and dividend inputs for a
// calculation window. Three strategies are supported: self-contained (data
// embedded in the request), external (concurrent source fetches joined before
// return) and hybrid (cache, then external, then self-contained fallback).
package marketdata

import (
	"context"
	"time"

	"github.com/quantfabric/swapflow/internal/model"
)

// ResolveRequest identifies the market inputs one contract calculation needs.
type ResolveRequest struct {
	ContractID string
	Underlier  string
	RateIndex  string
	Range      model.DateRange
	// Embedded carries request-supplied data for the self-contained strategy
	// and the hybrid fallback.
	Embedded *model.MarketDataSnapshot
}

// CacheKey identifies the resolved window for cache purposes.
func (r ResolveRequest) CacheKey() string {
	return r.Underlier + "|" + r.RateIndex + "|" + model.DateKey(r.Range.Start) + "|" + model.DateKey(r.Range.End)
}

// Resolver obtains a market data snapshot for a calculation window.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*model.MarketDataSnapshot, error)
}

// Source is an external market data provider. The three fetches for one
// resolution are independent and issued concurrently.
type Source interface {
	FetchPrices(ctx context.Context, underlier string, r model.DateRange) (*model.Series, error)
	FetchRates(ctx context.Context, index string, r model.DateRange) (*model.Series, error)
	FetchDividends(ctx context.Context, underlier string, r model.DateRange) ([]model.DividendEvent, error)
}

// Clock abstracts time for validity-window tests.
type Clock func() time.Time
