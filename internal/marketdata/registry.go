package marketdata

import "github.com/quantfabric/swapflow/internal/model"

// Registry holds the wired resolver strategies and selects one per request.
type Registry struct {
	selfContained *SelfContainedResolver
	external      *ExternalResolver
	hybrid        *HybridResolver
}

// NewRegistry wires the strategy registry.
func NewRegistry(selfContained *SelfContainedResolver, external *ExternalResolver, hybrid *HybridResolver) *Registry {
	return &Registry{selfContained: selfContained, external: external, hybrid: hybrid}
}

// For returns the resolver for the requested strategy. An unset strategy
// selects hybrid.
func (r *Registry) For(strategy model.MarketDataStrategy) Resolver {
	switch strategy {
	case model.StrategySelfContained:
		return r.selfContained
	case model.StrategyExternal:
		return r.external
	default:
		return r.hybrid
	}
}
