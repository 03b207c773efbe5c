package store

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantfabric/swapflow/common/dbutil"
	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

// GormStore implements every store interface over GORM/Postgres.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to Postgres and migrates the engine tables.
func Open(dsn string, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, commonerr.Wrap(commonerr.KindInternal, err, "open database")
	}
	if err := db.AutoMigrate(
		&model.CashFlow{},
		&model.StageHistoryEntry{},
		&model.WithholdingTaxRecord{},
		&model.SettlementInstruction{},
		&model.CalculationRecord{},
	); err != nil {
		return nil, commonerr.Wrap(commonerr.KindInternal, err, "migrate schema")
	}
	return &GormStore{db: db, logger: logger}, nil
}

// NewGormStore wraps an existing gorm handle (tests use sqlite-free mocks, so
// this is only exercised against Postgres).
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

// SaveCashFlows upserts flows and their history in one transaction.
func (s *GormStore) SaveCashFlows(ctx context.Context, flows []*model.CashFlow) error {
	if len(flows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, cf := range flows {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(cf).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindCashFlows queries by contract and inclusive date range with optional
// filters, preloading stage history.
func (s *GormStore) FindCashFlows(ctx context.Context, contractID string, r model.DateRange, filter CashFlowFilter) ([]*model.CashFlow, error) {
	q := s.db.WithContext(ctx).
		Preload("History").
		Where("contract_id = ?", contractID).
		Where("date >= ? AND date <= ?", model.DateOnly(r.Start), model.DateOnly(r.End))
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Stage != "" {
		q = q.Where("stage = ?", filter.Stage)
	}
	if filter.LotID != "" {
		q = q.Where("lot_id = ?", filter.LotID)
	}
	var flows []*model.CashFlow
	if err := q.Order("date asc").Find(&flows).Error; err != nil {
		return nil, dbutil.Wrap(err, "query cash flows for %s", contractID)
	}
	return flows, nil
}

// SaveInstructions upserts instructions; the cash-flow-id unique index keeps
// generation idempotent across processes.
func (s *GormStore) SaveInstructions(ctx context.Context, ins []*model.SettlementInstruction) error {
	if len(ins) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cash_flow_id"}},
		DoNothing: true,
	}).Create(ins).Error
}

// FindPending returns PENDING instructions matching the filter.
func (s *GormStore) FindPending(ctx context.Context, filter InstructionFilter) ([]*model.SettlementInstruction, error) {
	q := s.db.WithContext(ctx).Where("status = ?", model.InstructionPending)
	if filter.ContractID != "" {
		q = q.Where("contract_id = ?", filter.ContractID)
	}
	if filter.Currency != "" {
		q = q.Where("currency = ?", filter.Currency)
	}
	if !filter.DueBy.IsZero() {
		q = q.Where("settlement_date <= ?", model.DateOnly(filter.DueBy))
	}
	var ins []*model.SettlementInstruction
	if err := q.Order("settlement_date asc").Find(&ins).Error; err != nil {
		return nil, dbutil.Wrap(err, "query pending instructions")
	}
	return ins, nil
}

// SaveTaxRecords upserts by unique reference, the idempotency key for
// tax-utility reporting.
func (s *GormStore) SaveTaxRecords(ctx context.Context, recs []*model.WithholdingTaxRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoNothing: true,
	}).Create(recs).Error
}

// Accept records a newly accepted request.
func (s *GormStore) Accept(ctx context.Context, requestID string, route model.CalculationType) error {
	rec := &model.CalculationRecord{
		RequestID:  requestID,
		Status:     model.RequestAccepted,
		Route:      route,
		AcceptedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "route"}),
	}).Create(rec).Error
}

// MarkRunning flips a request to RUNNING.
func (s *GormStore) MarkRunning(ctx context.Context, requestID string) error {
	return s.updateStatus(ctx, requestID, model.RequestRunning, "", nil)
}

// Finish records the terminal status.
func (s *GormStore) Finish(ctx context.Context, requestID string, status model.RequestStatus, errMsg string) error {
	now := time.Now().UTC()
	return s.updateStatus(ctx, requestID, status, errMsg, &now)
}

func (s *GormStore) updateStatus(ctx context.Context, requestID string, status model.RequestStatus, errMsg string, finishedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	if finishedAt != nil {
		updates["finished_at"] = finishedAt
	}
	return s.db.WithContext(ctx).Model(&model.CalculationRecord{}).
		Where("request_id = ?", requestID).
		Updates(updates).Error
}

// Get returns the status record for a request.
func (s *GormStore) Get(ctx context.Context, requestID string) (*model.CalculationRecord, error) {
	return dbutil.FindOne[model.CalculationRecord](
		s.db.WithContext(ctx).Where("request_id = ?", requestID),
		"no calculation record for %s", requestID)
}

// EvictOlderThan applies the retention policy to finished requests.
func (s *GormStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("finished_at IS NOT NULL AND finished_at < ?", cutoff).
		Delete(&model.CalculationRecord{})
	if res.Error != nil {
		return 0, dbutil.Wrap(res.Error, "evict calculation records")
	}
	return int(res.RowsAffected), nil
}
