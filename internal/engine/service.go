package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/accrual"
	"github.com/quantfabric/swapflow/internal/auditrepro"
	"github.com/quantfabric/swapflow/internal/dividend"
	"github.com/quantfabric/swapflow/internal/lifecycle"
	"github.com/quantfabric/swapflow/internal/marketdata"
	"github.com/quantfabric/swapflow/internal/metrics"
	"github.com/quantfabric/swapflow/internal/model"
	"github.com/quantfabric/swapflow/internal/pnl"
	"github.com/quantfabric/swapflow/internal/settlement"
	"github.com/quantfabric/swapflow/internal/store"
)

// Publisher is the settlement publication surface the engine needs; nil
// disables publication (tests, replay-only deployments).
type Publisher interface {
	Publish(ctx context.Context, ins *model.SettlementInstruction) error
}

// Engine executes calculation requests end to end: market data resolution,
// the three calculators, stage transitions, instruction generation and
// publication, caching and audit recording.
type Engine struct {
	router    *Router
	resolvers *marketdata.Registry
	accrual   *accrual.Calculator
	dividend  *dividend.Calculator
	pnl       *pnl.Calculator
	stages    *lifecycle.Machine
	generator *settlement.Generator
	publisher Publisher

	cache      *auditrepro.ResultCache
	archive    *auditrepro.InputArchive
	reproducer *auditrepro.Reproducer

	flows        store.CashFlowStore
	instructions store.InstructionStore
	taxes        store.TaxRecordStore
	status       store.StatusStore

	metrics *metrics.Metrics
	clock   func() time.Time
	logger  *zap.Logger
}

// Deps wires an Engine. Stores are required; Publisher may be nil.
type Deps struct {
	Router    *Router
	Resolvers *marketdata.Registry
	Accrual   *accrual.Calculator
	Dividend  *dividend.Calculator
	PnL       *pnl.Calculator
	Stages    *lifecycle.Machine
	Generator *settlement.Generator
	Publisher Publisher
	Cache     *auditrepro.ResultCache
	Archive   *auditrepro.InputArchive
	Flows     store.CashFlowStore
	Instr     store.InstructionStore
	Taxes     store.TaxRecordStore
	Status    store.StatusStore
	Metrics   *metrics.Metrics
	Clock     func() time.Time
	Logger    *zap.Logger
}

// New builds the engine and its audit reproducer.
func New(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	e := &Engine{
		router:       d.Router,
		resolvers:    d.Resolvers,
		accrual:      d.Accrual,
		dividend:     d.Dividend,
		pnl:          d.PnL,
		stages:       d.Stages,
		generator:    d.Generator,
		publisher:    d.Publisher,
		cache:        d.Cache,
		archive:      d.Archive,
		flows:        d.Flows,
		instructions: d.Instr,
		taxes:        d.Taxes,
		status:       d.Status,
		metrics:      d.Metrics,
		clock:        d.Clock,
		logger:       d.Logger,
	}
	e.reproducer = auditrepro.NewReproducer(d.Archive, e, d.Logger)
	return e
}

// Calculate runs one request. Identical inputs hit the result cache: the
// second call performs no resolution, no calculation and no re-publication.
func (e *Engine) Calculate(ctx context.Context, req model.CalculationRequest) (*model.CalculationResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	route := e.router.Classify(req)
	req.Type = route
	key := req.NaturalKey()

	if cached, ok := e.cache.Get(key); ok {
		e.metrics.CacheHits.Inc()
		e.metrics.CalculationsTotal.WithLabelValues(string(route), "cache_hit").Inc()
		hit := *cached
		hit.FromCache = true
		return &hit, nil
	}
	e.metrics.CacheMisses.Inc()

	started := e.clock()
	if err := e.status.Accept(ctx, key, route); err != nil {
		e.logger.Warn("status accept failed", zap.String("request_id", key), zap.Error(err))
	}
	_ = e.status.MarkRunning(ctx, key)

	result, snaps, err := e.execute(ctx, req, key, route)
	if err != nil {
		outcome := "error"
		status := model.RequestFailed
		if commonerr.IsKind(err, commonerr.KindCancelled) {
			outcome = "cancelled"
			status = model.RequestCancelled
		}
		e.metrics.CalculationsTotal.WithLabelValues(string(route), outcome).Inc()
		_ = e.status.Finish(ctx, key, status, err.Error())
		return nil, err
	}

	e.finalize(ctx, req, key, result, snaps)
	e.metrics.CalculationDuration.WithLabelValues(string(route)).Observe(e.clock().Sub(started).Seconds())
	e.metrics.CalculationsTotal.WithLabelValues(string(route), "ok").Inc()

	finalStatus := model.RequestCompleted
	if result.Failed() {
		finalStatus = model.RequestFailed
	}
	_ = e.status.Finish(ctx, key, finalStatus, "")
	return result, nil
}

// execute resolves market data and runs the calculators over the routed
// execution shape. Per-contract failures are isolated into statuses; only
// cancellation fails the request as a whole.
func (e *Engine) execute(ctx context.Context, req model.CalculationRequest, key string, route model.CalculationType) (*model.CalculationResult, map[string]*model.MarketDataSnapshot, error) {
	resolver := e.resolvers.For(req.Strategy)
	snaps := make(map[string]*model.MarketDataSnapshot, len(req.Contracts))
	statusByContract := make(map[string]*model.ContractStatus, len(req.Contracts))
	for _, c := range req.Contracts {
		statusByContract[c.ID] = &model.ContractStatus{ContractID: c.ID, OK: true}
		snap, err := resolver.Resolve(ctx, marketdata.ResolveRequest{
			ContractID: c.ID,
			Underlier:  c.EquityLeg.Underlier,
			RateIndex:  c.InterestLeg.RateIndex,
			Range:      req.Range,
			Embedded:   req.Embedded,
		})
		if err != nil {
			if commonerr.IsKind(err, commonerr.KindCancelled) {
				return nil, nil, err
			}
			e.markFailed(statusByContract[c.ID], err)
			e.logger.Error("market data resolution failed",
				zap.String("contract_id", c.ID), zap.Error(err))
			continue
		}
		snaps[c.ID] = snap
	}

	var resolvable []model.Contract
	for _, c := range req.Contracts {
		if _, ok := snaps[c.ID]; ok {
			resolvable = append(resolvable, c)
		}
	}
	chunked := req
	chunked.Contracts = resolvable
	chunks := e.router.Chunks(chunked)

	var (
		results []chunkResult
		err     error
	)
	if route == model.CalcRealTime {
		results, err = e.runInline(ctx, chunks, snaps)
	} else {
		results, err = e.runChunks(ctx, chunks, snaps)
	}
	if err != nil {
		return nil, nil, err
	}

	result := &model.CalculationResult{
		RequestID:  key,
		Route:      route,
		ComputedAt: e.clock().UTC(),
	}
	for _, cr := range results {
		if cr.Err != nil {
			e.markFailed(statusByContract[cr.ContractID], cr.Err)
			e.logger.Error("contract calculation failed",
				zap.String("contract_id", cr.ContractID), zap.Error(cr.Err))
			continue
		}
		result.CashFlows = append(result.CashFlows, cr.Flows...)
		result.TaxRecords = append(result.TaxRecords, cr.TaxRecords...)
	}
	// Drop partial output of contracts that failed in a later chunk; a
	// contract's result is all or nothing even though the batch is not.
	result.CashFlows = filterFailed(result.CashFlows, statusByContract)
	result.TaxRecords = filterFailedTax(result.TaxRecords, statusByContract)
	sortFlows(result.CashFlows)

	for _, c := range req.Contracts {
		result.Statuses = append(result.Statuses, *statusByContract[c.ID])
	}
	return result, snaps, nil
}

func (e *Engine) markFailed(st *model.ContractStatus, err error) {
	if !st.OK {
		return
	}
	st.OK = false
	st.ErrorKind = string(commonerr.KindOf(err))
	st.Error = err.Error()
}

func filterFailed(flows []*model.CashFlow, statuses map[string]*model.ContractStatus) []*model.CashFlow {
	out := flows[:0]
	for _, cf := range flows {
		if st, ok := statuses[cf.ContractID]; ok && st.OK {
			out = append(out, cf)
		}
	}
	return out
}

func filterFailedTax(recs []*model.WithholdingTaxRecord, statuses map[string]*model.ContractStatus) []*model.WithholdingTaxRecord {
	out := recs[:0]
	for _, r := range recs {
		if st, ok := statuses[r.ContractID]; ok && st.OK {
			out = append(out, r)
		}
	}
	return out
}

// finalize advances settlement-due flows, generates and publishes their
// instructions, persists everything and records the cache and audit entries.
// Never called on the replay path.
func (e *Engine) finalize(ctx context.Context, req model.CalculationRequest, key string, result *model.CalculationResult, snaps map[string]*model.MarketDataSnapshot) {
	realized := e.stages.RealizeDue(result.CashFlows, e.clock())
	for _, cf := range realized {
		ins, err := e.generator.Generate(cf)
		if err != nil {
			e.logger.Error("instruction generation failed",
				zap.String("cash_flow_id", cf.ID), zap.Error(err))
			continue
		}
		if e.publisher != nil {
			if err := e.publisher.Publish(ctx, ins); err != nil {
				e.metrics.SettlementRetries.Inc()
				e.logger.Error("instruction publication failed",
					zap.String("instruction_id", ins.ID), zap.Error(err))
			}
		}
		result.Instructions = append(result.Instructions, ins)
	}

	if err := e.flows.SaveCashFlows(ctx, result.CashFlows); err != nil {
		e.logger.Error("cash flow persistence failed", zap.String("request_id", key), zap.Error(err))
	}
	if err := e.taxes.SaveTaxRecords(ctx, result.TaxRecords); err != nil {
		e.logger.Error("tax record persistence failed", zap.String("request_id", key), zap.Error(err))
	}
	if err := e.instructions.SaveInstructions(ctx, result.Instructions); err != nil {
		e.logger.Error("instruction persistence failed", zap.String("request_id", key), zap.Error(err))
	}

	e.cache.Put(key, result)
	if err := e.archive.Record(key, auditrepro.RecordedInputs{Request: req, Snapshots: snaps}); err != nil {
		e.logger.Error("audit input recording failed", zap.String("request_id", key), zap.Error(err))
	}
}

// CalculateBatch runs independent requests; one request's failure never fails
// its siblings. Failed slots carry a result whose statuses explain the
// failure.
func (e *Engine) CalculateBatch(ctx context.Context, reqs []model.CalculationRequest) []*model.CalculationResult {
	out := make([]*model.CalculationResult, len(reqs))
	for i, req := range reqs {
		result, err := e.Calculate(ctx, req)
		if err != nil {
			result = &model.CalculationResult{
				Route:      req.Type,
				ComputedAt: e.clock().UTC(),
				Statuses:   batchFailureStatuses(req, err),
			}
		}
		out[i] = result
	}
	return out
}

func batchFailureStatuses(req model.CalculationRequest, err error) []model.ContractStatus {
	kind := string(commonerr.KindOf(err))
	statuses := make([]model.ContractStatus, 0, len(req.Contracts))
	for _, c := range req.Contracts {
		statuses = append(statuses, model.ContractStatus{
			ContractID: c.ID,
			OK:         false,
			ErrorKind:  kind,
			Error:      err.Error(),
		})
	}
	return statuses
}

// GetCashFlows queries persisted cash flows for a contract and range.
func (e *Engine) GetCashFlows(ctx context.Context, contractID string, r model.DateRange, filter store.CashFlowFilter) ([]*model.CashFlow, error) {
	if contractID == "" {
		return nil, commonerr.E(commonerr.KindValidation, "contract id is required")
	}
	return e.flows.FindCashFlows(ctx, contractID, r, filter)
}

// GetPendingSettlements queries pending settlement instructions.
func (e *Engine) GetPendingSettlements(ctx context.Context, filter store.InstructionFilter) ([]*model.SettlementInstruction, error) {
	return e.instructions.FindPending(ctx, filter)
}

// GetCachedResult returns the memoized result for a request id.
func (e *Engine) GetCachedResult(requestID string) (*model.CalculationResult, error) {
	if result, ok := e.cache.Get(requestID); ok {
		return result, nil
	}
	return nil, commonerr.E(commonerr.KindNotFound, "no cached result for request %s", requestID)
}

// ReproduceCalculation re-runs a past request from its recorded inputs.
func (e *Engine) ReproduceCalculation(ctx context.Context, requestID string) (*model.CalculationResult, error) {
	return e.reproducer.Reproduce(ctx, requestID)
}

// RequestStatus returns the lifecycle record for a request.
func (e *Engine) RequestStatus(ctx context.Context, requestID string) (*model.CalculationRecord, error) {
	return e.status.Get(ctx, requestID)
}

// Replay implements auditrepro.Replayer: the calculators run over the
// recorded snapshots with no resolution, no stage transitions, no persistence
// and no publication. Amounts must match the original run bit for bit.
func (e *Engine) Replay(ctx context.Context, req model.CalculationRequest, snapshots map[string]*model.MarketDataSnapshot) (*model.CalculationResult, error) {
	// Contracts whose resolution failed in the original run have no recorded
	// snapshot; they are reported as failed again rather than recomputed.
	replayable := req
	replayable.Contracts = nil
	for _, c := range req.Contracts {
		if _, ok := snapshots[c.ID]; ok {
			replayable.Contracts = append(replayable.Contracts, c)
		}
	}
	chunks := e.router.Chunks(replayable)
	results, err := e.runInline(ctx, chunks, snapshots)
	if err != nil {
		return nil, err
	}
	result := &model.CalculationResult{
		RequestID:  req.NaturalKey(),
		Route:      req.Type,
		ComputedAt: e.clock().UTC(),
	}
	statusByContract := make(map[string]*model.ContractStatus, len(req.Contracts))
	for _, c := range req.Contracts {
		st := &model.ContractStatus{ContractID: c.ID, OK: true}
		if _, ok := snapshots[c.ID]; !ok {
			st.OK = false
			st.ErrorKind = string(commonerr.KindMarketDataUnavailable)
			st.Error = "no snapshot recorded in original run"
		}
		statusByContract[c.ID] = st
	}
	for _, cr := range results {
		if cr.Err != nil {
			e.markFailed(statusByContract[cr.ContractID], cr.Err)
			continue
		}
		result.CashFlows = append(result.CashFlows, cr.Flows...)
		result.TaxRecords = append(result.TaxRecords, cr.TaxRecords...)
	}
	result.CashFlows = filterFailed(result.CashFlows, statusByContract)
	result.TaxRecords = filterFailedTax(result.TaxRecords, statusByContract)
	sortFlows(result.CashFlows)
	for _, c := range req.Contracts {
		result.Statuses = append(result.Statuses, *statusByContract[c.ID])
	}
	return result, nil
}
