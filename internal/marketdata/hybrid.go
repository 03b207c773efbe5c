package marketdata

import (
	"context"

	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// HybridResolver tries cache, then external, then the request's embedded
// data, in that order. Each miss or failure degrades silently to the next
// source with a log line; only exhaustion of all three fails the request.
type HybridResolver struct {
	cache    *SnapshotCache
	external *ExternalResolver
	embedded *SelfContainedResolver
	logger   *zap.Logger
}

// NewHybridResolver wires the fallback chain.
func NewHybridResolver(cache *SnapshotCache, external *ExternalResolver, embedded *SelfContainedResolver, logger *zap.Logger) *HybridResolver {
	return &HybridResolver{cache: cache, external: external, embedded: embedded, logger: logger}
}

// Resolve walks the fallback chain.
func (r *HybridResolver) Resolve(ctx context.Context, req ResolveRequest) (*model.MarketDataSnapshot, error) {
	if snap, ok := r.cache.Get(ctx, req.CacheKey()); ok {
		return snap, nil
	}

	snap, err := r.external.Resolve(ctx, req)
	if err == nil {
		r.cache.Put(ctx, req.CacheKey(), snap)
		return snap, nil
	}
	if commonerr.IsKind(err, commonerr.KindCancelled) {
		return nil, err
	}
	r.logger.Warn("external market data degraded to embedded fallback",
		zap.String("contract_id", req.ContractID),
		zap.Error(err))

	snap, ferr := r.embedded.Resolve(ctx, req)
	if ferr != nil {
		// Exhausted: report the external failure as the primary cause.
		return nil, commonerr.Wrap(commonerr.KindMarketDataUnavailable, err,
			"all market data sources exhausted for contract %s", req.ContractID)
	}
	return snap, nil
}
