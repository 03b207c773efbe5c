package store

import (
	"context"
	"sort"
	"sync"
	"time"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// MemoryStore is the in-memory implementation of every store interface. Used
// by tests and DB-less deployments.
type MemoryStore struct {
	mu           sync.RWMutex
	flows        map[string]*model.CashFlow
	instructions map[string]*model.SettlementInstruction // by cash flow id
	taxRecords   map[string]*model.WithholdingTaxRecord  // by reference
	records      map[string]*model.CalculationRecord
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flows:        make(map[string]*model.CashFlow),
		instructions: make(map[string]*model.SettlementInstruction),
		taxRecords:   make(map[string]*model.WithholdingTaxRecord),
		records:      make(map[string]*model.CalculationRecord),
	}
}

// SaveCashFlows upserts flows by id.
func (s *MemoryStore) SaveCashFlows(_ context.Context, flows []*model.CashFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cf := range flows {
		s.flows[cf.ID] = cf
	}
	return nil
}

// FindCashFlows filters flows by contract, range and optional filters.
func (s *MemoryStore) FindCashFlows(_ context.Context, contractID string, r model.DateRange, filter CashFlowFilter) ([]*model.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.CashFlow
	for _, cf := range s.flows {
		if cf.ContractID != contractID || !r.Contains(cf.Date) {
			continue
		}
		if filter.Type != "" && cf.Type != filter.Type {
			continue
		}
		if filter.Stage != "" && cf.Stage != filter.Stage {
			continue
		}
		if filter.LotID != "" && cf.LotID != filter.LotID {
			continue
		}
		out = append(out, cf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// SaveInstructions upserts with do-nothing semantics on an existing cash
// flow id, mirroring the unique-index behavior of the Postgres store.
func (s *MemoryStore) SaveInstructions(_ context.Context, ins []*model.SettlementInstruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range ins {
		if _, exists := s.instructions[in.CashFlowID]; !exists {
			s.instructions[in.CashFlowID] = in
		}
	}
	return nil
}

// FindPending returns PENDING instructions matching the filter.
func (s *MemoryStore) FindPending(_ context.Context, filter InstructionFilter) ([]*model.SettlementInstruction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.SettlementInstruction
	for _, in := range s.instructions {
		if in.Status != model.InstructionPending {
			continue
		}
		if filter.ContractID != "" && in.ContractID != filter.ContractID {
			continue
		}
		if filter.Currency != "" && in.Currency != filter.Currency {
			continue
		}
		if !filter.DueBy.IsZero() && model.DateOnly(in.SettlementDate).After(model.DateOnly(filter.DueBy)) {
			continue
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettlementDate.Before(out[j].SettlementDate) })
	return out, nil
}

// SaveTaxRecords upserts by reference, first write wins.
func (s *MemoryStore) SaveTaxRecords(_ context.Context, recs []*model.WithholdingTaxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if _, exists := s.taxRecords[rec.Reference]; !exists {
			s.taxRecords[rec.Reference] = rec
		}
	}
	return nil
}

// Accept records request acceptance.
func (s *MemoryStore) Accept(_ context.Context, requestID string, route model.CalculationType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[requestID] = &model.CalculationRecord{
		RequestID:  requestID,
		Status:     model.RequestAccepted,
		Route:      route,
		AcceptedAt: time.Now().UTC(),
	}
	return nil
}

// MarkRunning flips a request to RUNNING.
func (s *MemoryStore) MarkRunning(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[requestID]; ok {
		rec.Status = model.RequestRunning
	}
	return nil
}

// Finish records the terminal status.
func (s *MemoryStore) Finish(_ context.Context, requestID string, status model.RequestStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[requestID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	rec.Status = status
	rec.Error = errMsg
	rec.FinishedAt = &now
	return nil
}

// Get returns the status record for a request.
func (s *MemoryStore) Get(_ context.Context, requestID string) (*model.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[requestID]
	if !ok {
		return nil, commonerr.E(commonerr.KindNotFound, "no calculation record for %s", requestID)
	}
	return rec, nil
}

// EvictOlderThan applies the retention policy to finished requests.
func (s *MemoryStore) EvictOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, rec := range s.records {
		if rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
			delete(s.records, id)
			evicted++
		}
	}
	return evicted, nil
}
