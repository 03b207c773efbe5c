// Package auditrepro memoizes completed calculations by request identity and
// deterministically reproduces past results from their recorded inputs. The
// input archive, not the result, is the regulatory artifact: reproduction
// re-runs the math on the original inputs and must match bit for bit.
package auditrepro

import (
	"sync"

	"github.com/quantfabric/swapflow/internal/model"
)

// ResultCache memoizes results by request natural key. It is the only shared
// mutable structure on the hot path; entries are single-key upserts and
// same-key races are benign because results are deterministic for the same
// inputs (last write wins with an identical value).
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]*model.CalculationResult
}

// NewResultCache builds an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]*model.CalculationResult)}
}

// Get returns the memoized result for a request key.
func (c *ResultCache) Get(key string) (*model.CalculationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[key]
	return r, ok
}

// Put stores a completed result.
func (c *ResultCache) Put(key string, result *model.CalculationResult) {
	c.mu.Lock()
	c.results[key] = result
	c.mu.Unlock()
}

// Len returns the number of memoized results.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
