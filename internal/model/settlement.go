package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstructionStatus is the settlement instruction lifecycle.
type InstructionStatus string

const (
	InstructionPending    InstructionStatus = "PENDING"
	InstructionProcessing InstructionStatus = "PROCESSING"
	InstructionCompleted  InstructionStatus = "COMPLETED"
	InstructionFailed     InstructionStatus = "FAILED"
)

// SettlementMethod is the payment rail an instruction routes to.
type SettlementMethod string

const (
	MethodWire SettlementMethod = "WIRE"
	MethodACH  SettlementMethod = "ACH"
	MethodBook SettlementMethod = "BOOK_TRANSFER"
)

// SettlementPriority orders instruction processing downstream.
type SettlementPriority string

const (
	PriorityHigh   SettlementPriority = "HIGH"
	PriorityNormal SettlementPriority = "NORMAL"
)

// SettlementInstruction is the payment order generated for a realized cash
// flow. Exactly one instruction exists per cash flow; the amount is frozen at
// generation time and a later recalculation produces a new cash flow with a
// new instruction rather than mutating this one.
type SettlementInstruction struct {
	ID             string             `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	CashFlowID     string             `gorm:"column:cash_flow_id;type:varchar(64);uniqueIndex;not null" json:"cash_flow_id"`
	ContractID     string             `gorm:"column:contract_id;type:varchar(64);index;not null" json:"contract_id"`
	SettlementDate time.Time          `gorm:"column:settlement_date;index;not null" json:"settlement_date"`
	Amount         decimal.Decimal    `gorm:"column:amount;type:decimal(24,8);not null" json:"amount"`
	Currency       string             `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Method         SettlementMethod   `gorm:"column:method;type:varchar(16);not null" json:"method"`
	Priority       SettlementPriority `gorm:"column:priority;type:varchar(8);not null" json:"priority"`
	Reference      string             `gorm:"column:reference;type:varchar(128);not null" json:"reference"`
	Status         InstructionStatus  `gorm:"column:status;type:varchar(16);index;not null" json:"status"`
	FailReason     string             `gorm:"column:fail_reason;type:varchar(512)" json:"fail_reason,omitempty"`
	RetryCount     int                `gorm:"column:retry_count;default:0" json:"retry_count"`
	CreatedAt      time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"column:updated_at" json:"updated_at"`
}

// TableName sets the instruction table.
func (SettlementInstruction) TableName() string { return "settlement_instructions" }
