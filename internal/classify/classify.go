// Package classify maps reconciliation outcomes to review-ready exceptions:
// each exception type carries a fixed severity, category and recommended
// action, and classified exceptions are ranked for triage.
package classify

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/id"
	"github.com/settled-dev/settled/internal/model"
)

// Descriptor is the fixed classification attached to an exception type.
type Descriptor struct {
	Severity          model.Severity
	Category          string
	Description       string
	RecommendedAction string
}

// descriptors is the closed classification table. Types not present here
// classify as unknownDescriptor; they never abort processing.
var descriptors = map[model.ExceptionType]Descriptor{
	model.ExcMissingPSPSettlement: {
		Severity:          model.SeverityHigh,
		Category:          "Missing Data",
		Description:       "Order has no matching PSP settlement",
		RecommendedAction: "Investigate PSP settlement delay or missing data",
	},
	model.ExcNoSettlementMatch: {
		Severity:          model.SeverityHigh,
		Category:          "Missing Data",
		Description:       "Order not matched to any settlement period",
		RecommendedAction: "Verify order was processed and settlement received",
	},
	model.ExcUnmatchedAmount: {
		Severity:          model.SeverityHigh,
		Category:          "Value Mismatch",
		Description:       "Settlement amount differs from net order value beyond tolerance",
		RecommendedAction: "Compare order, refund and settlement amounts for the variance source",
	},
	model.ExcMissingGLEntry: {
		Severity:          model.SeverityHigh,
		Category:          "Missing Data",
		Description:       "PSP settlement has no matching GL entry",
		RecommendedAction: "Review GL posting process and create missing entry",
	},
	model.ExcPSPGLMismatch: {
		Severity:          model.SeverityCritical,
		Category:          "Value Mismatch",
		Description:       "PSP settlement amount does not match GL cash entry",
		RecommendedAction: "Investigate and resolve variance immediately",
	},
	model.ExcFeeMismatch: {
		Severity:          model.SeverityMedium,
		Category:          "Value Mismatch",
		Description:       "PSP fees do not match GL fee entries",
		RecommendedAction: "Review fee calculation and GL posting",
	},
	model.ExcSettlementDelay: {
		Severity:          model.SeverityMedium,
		Category:          "Timing Issue",
		Description:       "Settlement occurred outside expected window",
		RecommendedAction: "Monitor for pattern, may indicate PSP processing issue",
	},
}

var unknownDescriptor = Descriptor{
	Severity:          model.SeverityUnknown,
	Category:          "Other",
	Description:       "Unknown exception type",
	RecommendedAction: "Manual review required",
}

// Lookup returns the descriptor for an exception type. Unrecognized types
// degrade to the unknown descriptor rather than failing.
func Lookup(t model.ExceptionType) Descriptor {
	if d, ok := descriptors[t]; ok {
		return d
	}
	return unknownDescriptor
}

// Known reports whether the exception type is part of the closed table.
func Known(t model.ExceptionType) bool {
	_, ok := descriptors[t]
	return ok
}

// Classifier turns findings into classified, prioritized exception records.
type Classifier struct {
	detectedAt time.Time
}

// NewClassifier creates a Classifier. detectedAt stamps every record so a
// rerun with the same timestamp reproduces identical output.
func NewClassifier(detectedAt time.Time) *Classifier {
	return &Classifier{detectedAt: detectedAt}
}

// Classify builds an exception record for a single result. The ID is
// assigned later, when the full set is prioritized.
func (c *Classifier) Classify(resultID string, t model.ExceptionType, amountDiff decimal.Decimal) model.ExceptionRecord {
	d := Lookup(t)
	return model.ExceptionRecord{
		ResultID:          resultID,
		Type:              t,
		Severity:          d.Severity,
		Category:          d.Category,
		Details:           d.Description,
		RecommendedAction: d.RecommendedAction,
		DetectedAt:        c.detectedAt,
		AmountDiff:        amountDiff,
	}
}

// Prioritize orders exceptions by severity rank, then absolute amount
// difference descending. The sort is stable, so records tied on both keys
// keep their input order. Ranks and IDs are assigned contiguously 1..N.
func (c *Classifier) Prioritize(date time.Time, exceptions []model.ExceptionRecord) []model.ExceptionRecord {
	ranked := make([]model.ExceptionRecord, len(exceptions))
	copy(ranked, exceptions)

	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Severity.Rank(), ranked[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return ranked[i].AmountDiff.Abs().GreaterThan(ranked[j].AmountDiff.Abs())
	})

	for i := range ranked {
		ranked[i].PriorityRank = i + 1
		ranked[i].ID = id.FormatExceptionID(date, i+1)
	}
	return ranked
}
