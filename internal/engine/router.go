// Package engine routes calculation requests, executes the calculators over
// contracts and date ranges, and exposes the engine's logical operations.
package engine

import (
	"time"

	"github.com/quantfabric/swapflow/internal/model"
)

// RouterConfig bounds the route classification and chunking.
type RouterConfig struct {
	// RealTimeMaxContracts is the largest contract set served inline.
	RealTimeMaxContracts int
	// IncrementalMaxDays is the largest range (in days) served by the
	// in-memory parallel route.
	IncrementalMaxDays int
	// HistoricalContracts forces the historical route at or above this
	// contract count regardless of range span.
	HistoricalContracts int
	// ChunkDays is the nominal date-range chunk for historical execution;
	// chunks snap to month ends so consolidated interest flows are identical
	// whether or not the range was split.
	ChunkDays int
	// Workers bounds the historical pool.
	Workers int
}

// Router classifies requests and splits oversized ones into chunks.
// Classification is a pure function of request shape: the same request always
// takes the same route, independent of load.
type Router struct {
	cfg RouterConfig
}

// NewRouter builds a router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// Classify picks the route for a request. An explicit type hint wins;
// otherwise single-date small requests run inline, short ranges run on the
// incremental route, and everything else is historical.
func (r *Router) Classify(req model.CalculationRequest) model.CalculationType {
	if req.Type != "" {
		return req.Type
	}
	days := req.Range.Days()
	contracts := len(req.Contracts)
	if contracts >= r.cfg.HistoricalContracts {
		return model.CalcHistorical
	}
	if days <= 1 && contracts <= r.cfg.RealTimeMaxContracts {
		return model.CalcRealTime
	}
	if days <= r.cfg.IncrementalMaxDays {
		return model.CalcIncremental
	}
	return model.CalcHistorical
}

// chunk is one independently computable unit: a single contract over a date
// sub-range. MarkPnL is set only on the chunk containing the overall range
// end, so mark-to-market flows are produced exactly once however the range
// was split.
type chunk struct {
	Contract model.Contract
	Lots     []model.Lot
	Range    model.DateRange
	MarkPnL  bool
}

// Chunks splits a request into per-contract, month-aligned date sub-ranges.
// Sub-range results must recombine to the same totals as a single unsplit
// computation; month alignment is what keeps consolidated interest flows
// identical across the two shapes.
func (r *Router) Chunks(req model.CalculationRequest) []chunk {
	overallEnd := model.DateOnly(req.Range.End)
	var out []chunk
	for _, c := range req.Contracts {
		lots := req.Lots[c.ID]
		for _, sub := range splitRange(req.Range, r.cfg.ChunkDays) {
			out = append(out, chunk{
				Contract: c,
				Lots:     lots,
				Range:    sub,
				MarkPnL:  sub.Contains(overallEnd),
			})
		}
	}
	return out
}

// splitRange cuts an inclusive range into sub-ranges of roughly chunkDays,
// extending each cut to the end of its calendar month.
func splitRange(r model.DateRange, chunkDays int) []model.DateRange {
	start := model.DateOnly(r.Start)
	end := model.DateOnly(r.End)
	var out []model.DateRange
	for !start.After(end) {
		cut := start.AddDate(0, 0, chunkDays-1)
		cut = monthEnd(cut)
		if cut.After(end) {
			cut = end
		}
		out = append(out, model.DateRange{Start: start, End: cut})
		start = cut.AddDate(0, 0, 1)
	}
	return out
}

func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, -1)
}
