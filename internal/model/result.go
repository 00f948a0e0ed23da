package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the terminal outcome of one attempted match. A record is
// either matched or carries exactly one unmatched status; statuses never
// change within a run.
type MatchStatus string

const (
	StatusMatched           MatchStatus = "matched"
	StatusUnmatchedAmount   MatchStatus = "unmatched_amount"
	StatusNoSettlementMatch MatchStatus = "no_settlement_match"
	StatusMissingGLEntry    MatchStatus = "missing_gl_entry"
	StatusGLMismatch        MatchStatus = "gl_mismatch"
)

// MatchType describes which pair of sources a result compares.
type MatchType string

const (
	MatchOrderToSettlement MatchType = "order_to_settlement"
	MatchSettlementToGL    MatchType = "settlement_to_gl"
)

// ReconciliationResult is one attempted match between a source and a target
// record, produced fresh for every run of a reconciliation date.
type ReconciliationResult struct {
	ID             string
	Date           time.Time // partition key
	SourceType     string
	SourceID       string
	TargetType     string
	TargetID       string
	MatchType      MatchType
	MatchStatus    MatchStatus
	AmountDiff     decimal.Decimal
	TimeDiffDays   int
	Notes          string
	OrderNetValue  decimal.Decimal
	SettlementNet  decimal.Decimal
	SettlementFees decimal.Decimal
	GLCash         decimal.Decimal
	GLFees         decimal.Decimal
}

// ExceptionType identifies the failure mode of a non-clean reconciliation
// outcome. The set is closed; unrecognized values classify as unknown.
type ExceptionType string

const (
	ExcMissingPSPSettlement ExceptionType = "missing_psp_settlement"
	ExcNoSettlementMatch    ExceptionType = "no_settlement_match"
	ExcUnmatchedAmount      ExceptionType = "unmatched_amount"
	ExcMissingGLEntry       ExceptionType = "missing_gl_entry"
	ExcPSPGLMismatch        ExceptionType = "psp_gl_mismatch"
	ExcFeeMismatch          ExceptionType = "fee_mismatch"
	ExcSettlementDelay      ExceptionType = "settlement_delay"
)

// Severity ranks exception urgency. Rank order is total and fixed:
// CRITICAL is most urgent, UNKNOWN least.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Rank returns the sort position of a severity, 1 = most urgent.
// Unrecognized severities rank last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 4
	default:
		return 5
	}
}

// ExceptionRecord is a classified, review-ready exception. Each record
// references exactly one ReconciliationResult.
type ExceptionRecord struct {
	ID                string
	ResultID          string
	Type              ExceptionType
	Severity          Severity
	Category          string
	Details           string
	RecommendedAction string
	DetectedAt        time.Time
	AmountDiff        decimal.Decimal
	PriorityRank      int // assigned by the prioritizer, 1..N
}
