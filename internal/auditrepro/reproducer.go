package auditrepro

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantfabric/swapflow/internal/model"
)

// Replayer re-runs the calculation math over pre-resolved snapshots. The
// engine implements it; reproduction must never consult live market data.
type Replayer interface {
	Replay(ctx context.Context, req model.CalculationRequest, snapshots map[string]*model.MarketDataSnapshot) (*model.CalculationResult, error)
}

// Reproducer rebuilds a past result from the archived inputs.
type Reproducer struct {
	archive *InputArchive
	replay  Replayer
	logger  *zap.Logger
}

// NewReproducer wires the reproducer.
func NewReproducer(archive *InputArchive, replay Replayer, logger *zap.Logger) *Reproducer {
	return &Reproducer{archive: archive, replay: replay, logger: logger}
}

// Reproduce loads the recorded inputs for the request and re-runs the
// calculation. Amounts must come out bit-identical to the original run; that
// equivalence is the regulatory contract and is pinned down in tests.
func (r *Reproducer) Reproduce(ctx context.Context, requestID string) (*model.CalculationResult, error) {
	inputs, err := r.archive.Load(requestID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("reproducing calculation from recorded inputs",
		zap.String("request_id", requestID),
		zap.Int("contracts", len(inputs.Request.Contracts)))
	return r.replay.Replay(ctx, inputs.Request, inputs.Snapshots)
}
