package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// CalculationType hints how a request should be routed. Empty means the
// router classifies from request shape.
type CalculationType string

const (
	CalcRealTime    CalculationType = "REAL_TIME"
	CalcIncremental CalculationType = "INCREMENTAL"
	CalcHistorical  CalculationType = "HISTORICAL"
)

// MarketDataStrategy selects how market inputs are resolved.
type MarketDataStrategy string

const (
	StrategySelfContained MarketDataStrategy = "SELF_CONTAINED"
	StrategyExternal      MarketDataStrategy = "EXTERNAL"
	StrategyHybrid        MarketDataStrategy = "HYBRID"
)

// DateRange is an inclusive calendar-date interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the inclusive day count of the range.
func (r DateRange) Days() int {
	return int(DateOnly(r.End).Sub(DateOnly(r.Start)).Hours()/24) + 1
}

// Contains reports whether day falls inside the range, inclusive.
func (r DateRange) Contains(day time.Time) bool {
	d := DateOnly(day)
	return !d.Before(DateOnly(r.Start)) && !d.After(DateOnly(r.End))
}

// CalculationRequest carries everything needed to price one or more contracts
// over a date range. Identity is the natural key, not object identity, so the
// same request recomputed later hits the same cache and audit entries.
type CalculationRequest struct {
	Contracts   []Contract          `json:"contracts"`
	Lots        map[string][]Lot    `json:"lots"` // keyed by contract id
	Range       DateRange           `json:"range"`
	Type        CalculationType     `json:"type,omitempty"`
	Strategy    MarketDataStrategy  `json:"strategy,omitempty"`
	Embedded    *MarketDataSnapshot `json:"-"`
	DataVersion string              `json:"data_version,omitempty"`
}

// NaturalKey derives the deterministic identity of the request: contract ids,
// date range, calculation type and input data version. It is both the cache
// key and the audit reproduction key.
func (req CalculationRequest) NaturalKey() string {
	ids := make([]string, 0, len(req.Contracts))
	for _, c := range req.Contracts {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	var b strings.Builder
	b.WriteString(strings.Join(ids, ","))
	b.WriteByte('|')
	b.WriteString(DateKey(req.Range.Start))
	b.WriteByte('|')
	b.WriteString(DateKey(req.Range.End))
	b.WriteByte('|')
	b.WriteString(string(req.Type))
	b.WriteByte('|')
	b.WriteString(req.DataVersion)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ContractStatus is the per-contract outcome inside a result. Batch failures
// are isolated per contract, never all-or-nothing.
type ContractStatus struct {
	ContractID string `json:"contract_id"`
	OK         bool   `json:"ok"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CalculationResult is the complete output of one request.
type CalculationResult struct {
	RequestID    string                   `json:"request_id"`
	Route        CalculationType          `json:"route"`
	CashFlows    []*CashFlow              `json:"cash_flows"`
	TaxRecords   []*WithholdingTaxRecord  `json:"tax_records,omitempty"`
	Instructions []*SettlementInstruction `json:"instructions,omitempty"`
	Statuses     []ContractStatus         `json:"statuses"`
	FromCache    bool                     `json:"from_cache"`
	ComputedAt   time.Time                `json:"computed_at"`
}

// Failed reports whether every contract in the result failed.
func (r *CalculationResult) Failed() bool {
	if len(r.Statuses) == 0 {
		return false
	}
	for _, s := range r.Statuses {
		if s.OK {
			return false
		}
	}
	return true
}

// RequestStatus tracks a request through acceptance and execution. Stored in
// an injected status store, not a package-level singleton.
type RequestStatus string

const (
	RequestAccepted  RequestStatus = "ACCEPTED"
	RequestRunning   RequestStatus = "RUNNING"
	RequestCompleted RequestStatus = "COMPLETED"
	RequestFailed    RequestStatus = "FAILED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// CalculationRecord is the persisted status/audit row for a request.
type CalculationRecord struct {
	RequestID  string          `gorm:"column:request_id;type:varchar(64);primaryKey" json:"request_id"`
	Status     RequestStatus   `gorm:"column:status;type:varchar(16);index;not null" json:"status"`
	Route      CalculationType `gorm:"column:route;type:varchar(16)" json:"route"`
	Error      string          `gorm:"column:error;type:varchar(512)" json:"error,omitempty"`
	AcceptedAt time.Time       `gorm:"column:accepted_at;not null" json:"accepted_at"`
	FinishedAt *time.Time      `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

// TableName sets the calculation record table.
func (CalculationRecord) TableName() string { return "calculation_requests" }
