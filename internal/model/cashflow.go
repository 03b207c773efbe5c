package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashFlowType classifies a generated cash flow.
type CashFlowType string

const (
	CashFlowInterest  CashFlowType = "INTEREST"
	CashFlowDividend  CashFlowType = "DIVIDEND"
	CashFlowPnL       CashFlowType = "PNL"
	CashFlowPrincipal CashFlowType = "PRINCIPAL"
)

// CalculationBasis records how a cash flow amount was derived.
type CalculationBasis string

const (
	BasisDailyClose CalculationBasis = "DAILY_CLOSE"
	BasisScheduled  CalculationBasis = "SCHEDULED"
	BasisTradeLevel CalculationBasis = "TRADE_LEVEL"
)

// Stage is the settlement lifecycle phase of a cash flow. Stages advance in
// strict forward order; see the lifecycle package for transition rules.
type Stage string

const (
	StageAccrual           Stage = "ACCRUAL"
	StageRealizedDeferred  Stage = "REALIZED_DEFERRED"
	StageRealizedUnsettled Stage = "REALIZED_UNSETTLED"
	StageRealizedSettled   Stage = "REALIZED_SETTLED"
	StageFailed            Stage = "FAILED"
)

// stageRank orders the forward stages. FAILED sits outside the forward order.
var stageRank = map[Stage]int{
	StageAccrual:           0,
	StageRealizedDeferred:  1,
	StageRealizedUnsettled: 2,
	StageRealizedSettled:   3,
}

// Rank returns the position of a forward stage, or -1 for FAILED.
func (s Stage) Rank() int {
	if r, ok := stageRank[s]; ok {
		return r
	}
	return -1
}

// Realized reports whether the stage is at or past REALIZED_DEFERRED.
func (s Stage) Realized() bool {
	return s.Rank() >= stageRank[StageRealizedDeferred]
}

// StageHistoryEntry is one transition in a cash flow's lifecycle. Entries are
// append-only to support point-in-time reconstruction; stage state is never
// overwritten in place.
type StageHistoryEntry struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	CashFlowID string     `gorm:"column:cash_flow_id;type:varchar(64);index;not null" json:"cash_flow_id"`
	Stage      Stage      `gorm:"column:stage;type:varchar(32);not null" json:"stage"`
	EnteredAt  time.Time  `gorm:"column:entered_at;not null" json:"entered_at"`
	ExitedAt   *time.Time `gorm:"column:exited_at" json:"exited_at,omitempty"`
	Status     string     `gorm:"column:status;type:varchar(32)" json:"status"`
	Reason     string     `gorm:"column:reason;type:varchar(512)" json:"reason,omitempty"`
}

// TableName sets the stage history table.
func (StageHistoryEntry) TableName() string { return "cash_flow_stage_history" }

// CashFlow is a single computed flow of money on a contract. Amounts are
// frozen at creation; recalculation supersedes a cash flow with a new record
// rather than mutating it, so audit history is never rewritten.
type CashFlow struct {
	ID             string           `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	ContractID     string           `gorm:"column:contract_id;type:varchar(64);index;not null" json:"contract_id"`
	LotID          string           `gorm:"column:lot_id;type:varchar(64);index" json:"lot_id,omitempty"`
	Type           CashFlowType     `gorm:"column:type;type:varchar(16);index;not null" json:"type"`
	Date           time.Time        `gorm:"column:date;index;not null" json:"date"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:decimal(24,8);not null" json:"amount"`
	Currency       string           `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Stage          Stage            `gorm:"column:stage;type:varchar(32);index;not null" json:"stage"`
	Basis          CalculationBasis `gorm:"column:basis;type:varchar(16);not null" json:"basis"`
	AccrualStart   time.Time        `gorm:"column:accrual_start" json:"accrual_start"`
	AccrualEnd     time.Time        `gorm:"column:accrual_end" json:"accrual_end"`
	SettlementDate time.Time        `gorm:"column:settlement_date;index" json:"settlement_date"`
	SupersededBy   string           `gorm:"column:superseded_by;type:varchar(64)" json:"superseded_by,omitempty"`
	CreatedAt      time.Time        `gorm:"column:created_at" json:"created_at"`

	History []StageHistoryEntry `gorm:"foreignKey:CashFlowID;references:ID" json:"history,omitempty"`
}

// TableName sets the cash flow table.
func (CashFlow) TableName() string { return "cash_flows" }

// NewCashFlow creates a flow directly in ACCRUAL with its opening history
// entry, as the calculators require.
func NewCashFlow(contractID, lotID string, typ CashFlowType, day time.Time, amount decimal.Decimal, currency string, basis CalculationBasis) *CashFlow {
	now := time.Now().UTC()
	return &CashFlow{
		ID:         uuid.NewString(),
		ContractID: contractID,
		LotID:      lotID,
		Type:       typ,
		Date:       DateOnly(day),
		Amount:     amount,
		Currency:   currency,
		Stage:      StageAccrual,
		Basis:      basis,
		CreatedAt:  now,
		History: []StageHistoryEntry{{
			Stage:     StageAccrual,
			EnteredAt: now,
			Status:    "OPEN",
		}},
	}
}

// WithholdingTaxRecord pairs one-to-one with a dividend cash flow and carries
// the figures reported to the tax utility.
type WithholdingTaxRecord struct {
	ID           uint              `gorm:"primaryKey" json:"-"`
	Reference    string            `gorm:"column:reference;type:varchar(128);uniqueIndex;not null" json:"reference"`
	CashFlowID   string            `gorm:"column:cash_flow_id;type:varchar(64);uniqueIndex;not null" json:"cash_flow_id"`
	ContractID   string            `gorm:"column:contract_id;type:varchar(64);index;not null" json:"contract_id"`
	Gross        decimal.Decimal   `gorm:"column:gross;type:decimal(24,8);not null" json:"gross"`
	Rate         decimal.Decimal   `gorm:"column:rate;type:decimal(10,6);not null" json:"rate"`
	Withheld     decimal.Decimal   `gorm:"column:withheld;type:decimal(24,8);not null" json:"withheld"`
	Net          decimal.Decimal   `gorm:"column:net;type:decimal(24,8);not null" json:"net"`
	Treatment    DividendTreatment `gorm:"column:treatment;type:varchar(16);not null" json:"treatment"`
	Jurisdiction string            `gorm:"column:jurisdiction;type:varchar(8);not null" json:"jurisdiction"`
	ExDate       time.Time         `gorm:"column:ex_date;not null" json:"ex_date"`
	CreatedAt    time.Time         `gorm:"column:created_at" json:"created_at"`
}

// TableName sets the tax record table.
func (WithholdingTaxRecord) TableName() string { return "withholding_tax_records" }
