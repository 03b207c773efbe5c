package engine

import (
	"context"
	"sync"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// runChunks fans chunks out over the bounded worker pool and joins at a
// single barrier. Each worker writes only its own slot of the results slice;
// there is no shared accumulator. On cancellation the completed chunks are
// discarded and a CANCELLED error is returned: a cancelled request commits
// nothing.
func (e *Engine) runChunks(ctx context.Context, chunks []chunk, snaps map[string]*model.MarketDataSnapshot) ([]chunkResult, error) {
	workers := e.router.cfg.Workers
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	results := make([]chunkResult, len(chunks))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				ch := chunks[idx]
				e.metrics.ChunksDispatched.Inc()
				results[idx] = e.computeChunk(ctx, ch, snaps[ch.Contract.ID])
			}
		}()
	}

feed:
	for idx := range chunks {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, commonerr.Wrap(commonerr.KindCancelled, err, "historical request cancelled; %d chunks discarded", len(chunks))
	}
	return results, nil
}

// runInline executes the chunks sequentially on the calling goroutine, the
// real-time path.
func (e *Engine) runInline(ctx context.Context, chunks []chunk, snaps map[string]*model.MarketDataSnapshot) ([]chunkResult, error) {
	results := make([]chunkResult, len(chunks))
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, commonerr.Wrap(commonerr.KindCancelled, err, "request cancelled")
		}
		results[i] = e.computeChunk(ctx, ch, snaps[ch.Contract.ID])
	}
	return results, nil
}
