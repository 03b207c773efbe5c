package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

func newFlow() *model.CashFlow {
	cf := model.NewCashFlow("swap-1", "lot-1", model.CashFlowInterest,
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(100), "USD", model.BasisDailyClose)
	cf.SettlementDate = time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	return cf
}

func TestStagesAdvanceStrictlyForward(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()
	require.Equal(t, model.StageAccrual, cf.Stage)

	require.NoError(t, m.Advance(cf, model.StageRealizedDeferred))
	require.NoError(t, m.Advance(cf, model.StageRealizedUnsettled))
	require.NoError(t, m.Advance(cf, model.StageRealizedSettled))
	assert.Equal(t, model.StageRealizedSettled, cf.Stage)
}

func TestSkippingAStageIsRejected(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()

	err := m.Advance(cf, model.StageRealizedUnsettled)
	require.Error(t, err)
	assert.True(t, commonerr.IsKind(err, commonerr.KindStageTransition))
	assert.Equal(t, model.StageAccrual, cf.Stage, "flow is left untouched")
}

func TestBackwardMoveIsRejected(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()
	require.NoError(t, m.Advance(cf, model.StageRealizedDeferred))

	err := m.Advance(cf, model.StageAccrual)
	require.Error(t, err)
	assert.True(t, commonerr.IsKind(err, commonerr.KindStageTransition))
}

func TestFailRequiresReason(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()

	err := m.Fail(cf, "")
	require.Error(t, err)
	assert.Equal(t, model.StageAccrual, cf.Stage)

	require.NoError(t, m.Fail(cf, "settlement bounced"))
	assert.Equal(t, model.StageFailed, cf.Stage)
	last := cf.History[len(cf.History)-1]
	assert.Equal(t, "settlement bounced", last.Reason)
}

func TestFailedIsTerminal(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()
	require.NoError(t, m.Fail(cf, "counterparty rejected"))

	assert.Error(t, m.Advance(cf, model.StageRealizedDeferred))
	assert.Error(t, m.Fail(cf, "again"))
}

func TestRedriveCreatesFreshRecordAndLinksIt(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()
	require.NoError(t, m.Fail(cf, "wire recalled"))

	fresh, err := m.Redrive(cf)
	require.NoError(t, err)
	assert.NotEqual(t, cf.ID, fresh.ID)
	assert.Equal(t, model.StageAccrual, fresh.Stage)
	assert.True(t, cf.Amount.Equal(fresh.Amount))
	assert.Equal(t, fresh.ID, cf.SupersededBy)
	assert.Equal(t, model.StageFailed, cf.Stage, "failed record stays for audit")

	_, err = m.Redrive(fresh)
	assert.Error(t, err, "only FAILED flows can be re-driven")
}

func TestHistoryIsAppendOnlyWithClosedEntries(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()
	require.NoError(t, m.Advance(cf, model.StageRealizedDeferred))
	require.NoError(t, m.Advance(cf, model.StageRealizedUnsettled))

	require.Len(t, cf.History, 3)
	for i, h := range cf.History[:len(cf.History)-1] {
		require.NotNil(t, h.ExitedAt, "entry %d must be closed", i)
	}
	assert.Nil(t, cf.History[len(cf.History)-1].ExitedAt, "current stage entry stays open")
	assert.Equal(t, model.StageAccrual, cf.History[0].Stage)
	assert.Equal(t, model.StageRealizedUnsettled, cf.History[2].Stage)
}

func TestRealizeDueOnlyTouchesFlowsWhoseSettlementDateArrived(t *testing.T) {
	m := NewMachine(zap.NewNop())
	due := newFlow()
	notDue := newFlow()
	notDue.SettlementDate = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	realized := m.RealizeDue([]*model.CashFlow{due, notDue}, time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC))
	require.Len(t, realized, 1)
	assert.Equal(t, due.ID, realized[0].ID)
	assert.Equal(t, model.StageRealizedDeferred, due.Stage)
	assert.Equal(t, model.StageAccrual, notDue.Stage)
}

func TestStageAtReconstructsPointInTime(t *testing.T) {
	m := NewMachine(zap.NewNop())
	cf := newFlow()
	t0 := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.Advance(cf, model.StageRealizedDeferred))
	time.Sleep(2 * time.Millisecond)
	t1 := time.Now().UTC()
	require.NoError(t, m.Advance(cf, model.StageRealizedUnsettled))

	stage, ok := StageAt(cf, t0)
	require.True(t, ok)
	assert.Equal(t, model.StageAccrual, stage)

	stage, ok = StageAt(cf, t1)
	require.True(t, ok)
	assert.Equal(t, model.StageRealizedDeferred, stage)

	stage, ok = StageAt(cf, time.Now().UTC())
	require.True(t, ok)
	assert.Equal(t, model.StageRealizedUnsettled, stage)

	_, ok = StageAt(cf, cf.History[0].EnteredAt.Add(-time.Hour))
	assert.False(t, ok)
}
