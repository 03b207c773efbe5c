// Package lifecycle enforces the settlement stage machine for cash flows.
//
// Stages advance in strict forward order with no skipping and no backward
// moves: ACCRUAL -> REALIZED_DEFERRED -> REALIZED_UNSETTLED ->
// REALIZED_SETTLED. Any stage may move to FAILED, but only through an
// explicit compensating action carrying a reason. FAILED is terminal; a
// re-drive creates a new cash flow record and never resurrects the failed
// one.
package lifecycle

import (
	"time"

	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// Machine advances cash flows through their settlement lifecycle.
type Machine struct {
	logger *zap.Logger
}

// NewMachine wires the stage machine.
func NewMachine(logger *zap.Logger) *Machine {
	return &Machine{logger: logger}
}

// Advance moves the cash flow to the given stage. The target must be exactly
// the next stage in the forward order; skipping or reversing is an invariant
// violation and fails loudly rather than coercing to a nearest valid state.
func (m *Machine) Advance(cf *model.CashFlow, to model.Stage) error {
	if cf.Stage == model.StageFailed {
		return commonerr.E(commonerr.KindStageTransition,
			"cash flow %s is FAILED and terminal; re-drive creates a new record", cf.ID)
	}
	from, target := cf.Stage.Rank(), to.Rank()
	if target < 0 {
		return commonerr.E(commonerr.KindStageTransition,
			"cannot advance cash flow %s to %s; use Fail for compensation", cf.ID, to)
	}
	if target != from+1 {
		return commonerr.E(commonerr.KindStageTransition,
			"illegal transition %s -> %s for cash flow %s", cf.Stage, to, cf.ID)
	}
	m.record(cf, to, "OK", "")
	m.logger.Debug("stage advanced",
		zap.String("cash_flow_id", cf.ID),
		zap.String("from", string(cf.Stage)),
		zap.String("to", string(to)))
	cf.Stage = to
	return nil
}

// Fail moves the cash flow to FAILED as an explicit compensating action. A
// reason is mandatory: unreasoned failure marks are rejected.
func (m *Machine) Fail(cf *model.CashFlow, reason string) error {
	if reason == "" {
		return commonerr.E(commonerr.KindStageTransition,
			"compensation to FAILED requires a reason for cash flow %s", cf.ID)
	}
	if cf.Stage == model.StageFailed {
		return commonerr.E(commonerr.KindStageTransition,
			"cash flow %s is already FAILED", cf.ID)
	}
	m.record(cf, model.StageFailed, "FAILED", reason)
	m.logger.Warn("cash flow compensated to FAILED",
		zap.String("cash_flow_id", cf.ID),
		zap.String("reason", reason))
	cf.Stage = model.StageFailed
	return nil
}

// Redrive manually re-drives a FAILED cash flow by creating a fresh record in
// ACCRUAL that supersedes the failed one. The failed record is left intact
// for audit.
func (m *Machine) Redrive(failed *model.CashFlow) (*model.CashFlow, error) {
	if failed.Stage != model.StageFailed {
		return nil, commonerr.E(commonerr.KindStageTransition,
			"re-drive requires a FAILED cash flow, %s is %s", failed.ID, failed.Stage)
	}
	fresh := model.NewCashFlow(failed.ContractID, failed.LotID, failed.Type, failed.Date, failed.Amount, failed.Currency, failed.Basis)
	fresh.AccrualStart = failed.AccrualStart
	fresh.AccrualEnd = failed.AccrualEnd
	fresh.SettlementDate = failed.SettlementDate
	failed.SupersededBy = fresh.ID
	m.logger.Info("failed cash flow re-driven",
		zap.String("failed_id", failed.ID),
		zap.String("new_id", fresh.ID))
	return fresh, nil
}

// RealizeDue advances ACCRUAL flows whose settlement date has arrived into
// REALIZED_DEFERRED. Driven by settlement-date arrival; the further
// REALIZED_* moves are driven by settlement integration signals.
func (m *Machine) RealizeDue(flows []*model.CashFlow, asOf time.Time) []*model.CashFlow {
	var realized []*model.CashFlow
	day := model.DateOnly(asOf)
	for _, cf := range flows {
		if cf.Stage != model.StageAccrual || model.DateOnly(cf.SettlementDate).After(day) {
			continue
		}
		if err := m.Advance(cf, model.StageRealizedDeferred); err != nil {
			// Advance from ACCRUAL to REALIZED_DEFERRED cannot legally fail;
			// surface it loudly if it ever does.
			m.logger.Error("realize transition rejected",
				zap.String("cash_flow_id", cf.ID), zap.Error(err))
			continue
		}
		realized = append(realized, cf)
	}
	return realized
}

// record closes the open history entry and appends the next one.
func (m *Machine) record(cf *model.CashFlow, to model.Stage, status, reason string) {
	now := time.Now().UTC()
	if n := len(cf.History); n > 0 && cf.History[n-1].ExitedAt == nil {
		cf.History[n-1].ExitedAt = &now
	}
	cf.History = append(cf.History, model.StageHistoryEntry{
		CashFlowID: cf.ID,
		Stage:      to,
		EnteredAt:  now,
		Status:     status,
		Reason:     reason,
	})
}

// StageAt reconstructs the stage of a cash flow as of an instant from its
// append-only history.
func StageAt(cf *model.CashFlow, t time.Time) (model.Stage, bool) {
	var stage model.Stage
	found := false
	for _, h := range cf.History {
		if h.EnteredAt.After(t) {
			break
		}
		stage = h.Stage
		found = true
	}
	return stage, found
}
