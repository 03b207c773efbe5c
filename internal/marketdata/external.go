package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// ExternalResolver fetches price, rate and dividend series from a Source.
// The three fetches run concurrently and join at a single barrier before the
// snapshot is assembled; the first failure wins. No fallback is applied here;
// that is the hybrid resolver's job.
type ExternalResolver struct {
	source   Source
	validity time.Duration
	clock    Clock
	logger   *zap.Logger
}

// NewExternalResolver wires an external resolver with the given snapshot
// validity window.
func NewExternalResolver(source Source, validity time.Duration, clock Clock, logger *zap.Logger) *ExternalResolver {
	if clock == nil {
		clock = time.Now
	}
	return &ExternalResolver{source: source, validity: validity, clock: clock, logger: logger}
}

// Resolve issues the three independent fetches and joins them.
func (r *ExternalResolver) Resolve(ctx context.Context, req ResolveRequest) (*model.MarketDataSnapshot, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		prices    *model.Series
		rates     *model.Series
		dividends []model.DividendEvent
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		ser, err := r.source.FetchPrices(ctx, req.Underlier, req.Range)
		if err != nil {
			fail(commonerr.Wrap(commonerr.KindMarketDataUnavailable, err, "price fetch for %s", req.Underlier))
			return
		}
		prices = ser
	}()
	go func() {
		defer wg.Done()
		ser, err := r.source.FetchRates(ctx, req.RateIndex, req.Range)
		if err != nil {
			fail(commonerr.Wrap(commonerr.KindMarketDataUnavailable, err, "rate fetch for %s", req.RateIndex))
			return
		}
		rates = ser
	}()
	go func() {
		defer wg.Done()
		evs, err := r.source.FetchDividends(ctx, req.Underlier, req.Range)
		if err != nil {
			fail(commonerr.Wrap(commonerr.KindMarketDataUnavailable, err, "dividend fetch for %s", req.Underlier))
			return
		}
		dividends = evs
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, commonerr.Wrap(commonerr.KindCancelled, err, "market data resolution cancelled")
	}

	now := r.clock()
	snap := model.NewMarketDataSnapshot(now, r.validity)
	assembleSeries(snap.SetPrice, req.Underlier, prices)
	assembleSeries(snap.SetRate, req.RateIndex, rates)
	for _, ev := range dividends {
		snap.AddDividend(ev)
	}
	r.logger.Debug("external market data resolved",
		zap.String("underlier", req.Underlier),
		zap.String("rate_index", req.RateIndex),
		zap.Time("as_of", now))
	return snap, nil
}

func assembleSeries(set func(string, time.Time, decimal.Decimal), key string, ser *model.Series) {
	if ser == nil || key == "" {
		return
	}
	ser.Each(func(day time.Time, v decimal.Decimal) {
		set(key, day, v)
	})
}
