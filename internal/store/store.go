// Package store persists cash flows, settlement instructions, tax records
// and calculation request status. A GORM/Postgres implementation backs
// production; an in-memory implementation backs tests and DB-less runs.
package store

import (
	"context"
	"time"

	"github.com/quantfabric/swapflow/internal/model"
)

// CashFlowFilter narrows GetCashFlows queries.
type CashFlowFilter struct {
	Type  model.CashFlowType
	Stage model.Stage
	LotID string
}

// CashFlowStore persists cash flows with their stage history.
type CashFlowStore interface {
	SaveCashFlows(ctx context.Context, flows []*model.CashFlow) error
	FindCashFlows(ctx context.Context, contractID string, r model.DateRange, filter CashFlowFilter) ([]*model.CashFlow, error)
}

// InstructionFilter narrows pending-settlement queries.
type InstructionFilter struct {
	ContractID string
	Currency   string
	DueBy      time.Time
}

// InstructionStore persists settlement instructions keyed by cash flow id.
type InstructionStore interface {
	SaveInstructions(ctx context.Context, ins []*model.SettlementInstruction) error
	FindPending(ctx context.Context, filter InstructionFilter) ([]*model.SettlementInstruction, error)
}

// TaxRecordStore persists withholding tax records by unique reference.
type TaxRecordStore interface {
	SaveTaxRecords(ctx context.Context, recs []*model.WithholdingTaxRecord) error
}

// StatusStore tracks request lifecycle for status queries and audit lookup.
// It is an injected collaborator with an explicit retention policy, not a
// package-level singleton.
type StatusStore interface {
	Accept(ctx context.Context, requestID string, route model.CalculationType) error
	MarkRunning(ctx context.Context, requestID string) error
	Finish(ctx context.Context, requestID string, status model.RequestStatus, errMsg string) error
	Get(ctx context.Context, requestID string) (*model.CalculationRecord, error)
	EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
