package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func flow(contractID string, d int, typ model.CashFlowType) *model.CashFlow {
	cf := model.NewCashFlow(contractID, "lot-1", typ, day(d), decimal.NewFromInt(100), "USD", model.BasisDailyClose)
	cf.SettlementDate = day(d + 2)
	return cf
}

func TestFindCashFlowsFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	flows := []*model.CashFlow{
		flow("swap-1", 2, model.CashFlowInterest),
		flow("swap-1", 3, model.CashFlowDividend),
		flow("swap-1", 20, model.CashFlowInterest),
		flow("swap-2", 2, model.CashFlowInterest),
	}
	require.NoError(t, s.SaveCashFlows(ctx, flows))

	r := model.DateRange{Start: day(1), End: day(10)}
	got, err := s.FindCashFlows(ctx, "swap-1", r, CashFlowFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2, "range and contract bound the result")

	got, err = s.FindCashFlows(ctx, "swap-1", r, CashFlowFilter{Type: model.CashFlowDividend})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.CashFlowDividend, got[0].Type)
}

func TestSaveInstructionsKeepsFirstPerCashFlow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &model.SettlementInstruction{ID: "ins-1", CashFlowID: "cf-1", Status: model.InstructionPending, SettlementDate: day(4)}
	dup := &model.SettlementInstruction{ID: "ins-2", CashFlowID: "cf-1", Status: model.InstructionPending, SettlementDate: day(4)}
	require.NoError(t, s.SaveInstructions(ctx, []*model.SettlementInstruction{first}))
	require.NoError(t, s.SaveInstructions(ctx, []*model.SettlementInstruction{dup}))

	got, err := s.FindPending(ctx, InstructionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ins-1", got[0].ID, "re-saving for the same cash flow does not replace")
}

func TestFindPendingAppliesFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveInstructions(ctx, []*model.SettlementInstruction{
		{ID: "a", CashFlowID: "cf-1", ContractID: "swap-1", Currency: "USD", Status: model.InstructionPending, SettlementDate: day(4)},
		{ID: "b", CashFlowID: "cf-2", ContractID: "swap-1", Currency: "EUR", Status: model.InstructionPending, SettlementDate: day(9)},
		{ID: "c", CashFlowID: "cf-3", ContractID: "swap-2", Currency: "USD", Status: model.InstructionProcessing, SettlementDate: day(4)},
	}))

	got, err := s.FindPending(ctx, InstructionFilter{Currency: "USD"})
	require.NoError(t, err)
	require.Len(t, got, 1, "non-pending instructions never match")
	assert.Equal(t, "a", got[0].ID)

	got, err = s.FindPending(ctx, InstructionFilter{DueBy: day(5)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestTaxRecordsFirstWriteWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	orig := &model.WithholdingTaxRecord{Reference: "swap-1:2025-06-02", Gross: decimal.NewFromInt(3000)}
	replay := &model.WithholdingTaxRecord{Reference: "swap-1:2025-06-02", Gross: decimal.NewFromInt(9999)}
	require.NoError(t, s.SaveTaxRecords(ctx, []*model.WithholdingTaxRecord{orig}))
	require.NoError(t, s.SaveTaxRecords(ctx, []*model.WithholdingTaxRecord{replay}))

	assert.True(t, decimal.NewFromInt(3000).Equal(s.taxRecords["swap-1:2025-06-02"].Gross),
		"a replayed calculation never rewrites the filed record")
}

func TestStatusLifecycleAndRetention(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Accept(ctx, "req-1", model.CalcIncremental))
	require.NoError(t, s.MarkRunning(ctx, "req-1"))

	rec, err := s.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.RequestRunning, rec.Status)

	require.NoError(t, s.Finish(ctx, "req-1", model.RequestCompleted, ""))
	rec, err = s.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.RequestCompleted, rec.Status)
	require.NotNil(t, rec.FinishedAt)

	_, err = s.Get(ctx, "absent")
	require.Error(t, err)
	assert.True(t, commonerr.IsKind(err, commonerr.KindNotFound))

	evicted, err := s.EvictOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = s.Get(ctx, "req-1")
	assert.Error(t, err, "finished records past retention are gone")
}
