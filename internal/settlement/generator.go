// Package settlement turns realized cash flows into payment instructions and
// publishes them to the downstream payments topic.
package settlement

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfabric/swapflow/internal/model"
)

// Generator creates exactly one settlement instruction per realized cash
// flow. Generation is idempotent on the cash flow id: regenerating for a cash
// flow that already has an instruction returns the existing one.
type Generator struct {
	mu     sync.Mutex
	byFlow map[string]*model.SettlementInstruction
	logger *zap.Logger
}

// NewGenerator wires the instruction generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{byFlow: make(map[string]*model.SettlementInstruction), logger: logger}
}

// Generate builds the instruction for a cash flow at or past
// REALIZED_DEFERRED. The amount is frozen at generation time; a later
// recalculation supersedes the cash flow and generates a fresh instruction
// instead of mutating this one.
func (g *Generator) Generate(cf *model.CashFlow) (*model.SettlementInstruction, error) {
	if !cf.Stage.Realized() {
		return nil, fmt.Errorf("cash flow %s is %s; instructions are generated from REALIZED_DEFERRED onward", cf.ID, cf.Stage)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.byFlow[cf.ID]; ok {
		return existing, nil
	}

	now := time.Now().UTC()
	ins := &model.SettlementInstruction{
		ID:             uuid.NewString(),
		CashFlowID:     cf.ID,
		ContractID:     cf.ContractID,
		SettlementDate: cf.SettlementDate,
		Amount:         cf.Amount,
		Currency:       cf.Currency,
		Method:         methodFor(cf.Type, cf.Currency),
		Priority:       priorityFor(cf.Type),
		Reference:      fmt.Sprintf("%s/%s/%s", cf.ContractID, cf.Type, model.DateKey(cf.Date)),
		Status:         model.InstructionPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	g.byFlow[cf.ID] = ins
	g.logger.Debug("settlement instruction generated",
		zap.String("instruction_id", ins.ID),
		zap.String("cash_flow_id", cf.ID),
		zap.String("amount", ins.Amount.String()))
	return ins, nil
}

// methodFor derives the payment rail from cash flow type and currency.
// Principal moves by wire regardless of currency; USD income flows ride ACH,
// everything else books internally until a correspondent is configured.
func methodFor(typ model.CashFlowType, currency string) model.SettlementMethod {
	if typ == model.CashFlowPrincipal {
		return model.MethodWire
	}
	if currency == "USD" {
		return model.MethodACH
	}
	return model.MethodBook
}

// priorityFor derives downstream processing priority from cash flow type.
func priorityFor(typ model.CashFlowType) model.SettlementPriority {
	if typ == model.CashFlowPrincipal {
		return model.PriorityHigh
	}
	return model.PriorityNormal
}
