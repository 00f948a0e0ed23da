// Package engine implements the reconciliation core: net order values are
// matched against PSP settlements inside a settlement window, matched
// settlements are tied out against the general ledger, and every non-clean
// outcome becomes a classified exception.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/settled-dev/settled/internal/classify"
	"github.com/settled-dev/settled/internal/config"
	"github.com/settled-dev/settled/internal/id"
	"github.com/settled-dev/settled/internal/model"
)

// Inputs are the four record collections consumed by one run. They are
// treated as immutable; the engine never mutates them.
type Inputs struct {
	Orders      []model.Order
	Refunds     []model.Refund
	Settlements []model.Settlement
	GLEntries   []model.GLEntry
}

// Summary aggregates one partition's outcome.
type Summary struct {
	TotalRecords        int
	MatchedCount        int
	ExceptionCount      int
	ExceptionTypeCounts map[model.ExceptionType]int
	TotalOrderValue     decimal.Decimal
	TotalPSPNet         decimal.Decimal
	TotalGLCash         decimal.Decimal
	TotalVariance       decimal.Decimal
}

// MatchRate returns the percentage of matched order-to-settlement records.
func (s Summary) MatchRate() decimal.Decimal {
	if s.TotalRecords == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.MatchedCount)).
		Div(decimal.NewFromInt(int64(s.TotalRecords))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// Output is the full derived artifact set for one reconciliation date.
type Output struct {
	Date       time.Time
	Results    []model.ReconciliationResult
	Exceptions []model.ExceptionRecord
	Summary    Summary
}

// Engine runs reconciliation for one date partition at a time. It performs
// no I/O; ingestion and persistence happen around it.
type Engine struct {
	windowDays   int
	tolerance    decimal.Decimal
	cashAccounts []string
	feeAccounts  []string
	log          *logrus.Logger

	// Now stamps exception detection times. Override in tests (or for
	// reproducible reruns); defaults to time.Now.
	Now func() time.Time
}

// New builds an Engine from configuration.
func New(cfg *config.Config, log *logrus.Logger) (*Engine, error) {
	tol, err := cfg.Reconciliation.Tolerance()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		windowDays:   cfg.Reconciliation.SettlementWindowDays,
		tolerance:    tol,
		cashAccounts: cfg.Ledger.CashAccounts,
		feeAccounts:  cfg.Ledger.FeeAccounts,
		log:          log,
		Now:          time.Now,
	}, nil
}

// Run reconciles one date partition. It is pure given its inputs and the
// engine configuration: the same inputs always produce identical results,
// exceptions and ranks. The previous partition content is expected to be
// replaced wholesale by the caller, never patched.
func (e *Engine) Run(ctx context.Context, date time.Time, in Inputs) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateInputs(in); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"date":        date.Format("2006-01-02"),
		"orders":      len(in.Orders),
		"refunds":     len(in.Refunds),
		"settlements": len(in.Settlements),
		"gl_entries":  len(in.GLEntries),
		"window_days": e.windowDays,
		"tolerance":   e.tolerance.String(),
	}).Info("starting reconciliation")

	refunds := refundsByOrder(in.Refunds)
	matcher := NewMatcher(e.windowDays, e.tolerance, in.Settlements)
	tieOut := NewTieOut(e.tolerance, e.cashAccounts, e.feeAccounts, in.GLEntries)
	classifier := classify.NewClassifier(e.Now())

	// Fixed processing order keeps result IDs stable across reruns.
	orders := make([]model.Order, len(in.Orders))
	copy(orders, in.Orders)
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	out := &Output{Date: date}
	out.Summary.ExceptionTypeCounts = make(map[model.ExceptionType]int)
	var raw []model.ExceptionRecord
	seq := 0

	nextResultID := func() string {
		seq++
		return id.FormatResultID(date, seq)
	}

	for _, order := range orders {
		net := NetValue(order, refunds[order.ID])
		match := matcher.Match(order, net)

		result := model.ReconciliationResult{
			ID:            nextResultID(),
			Date:          date,
			SourceType:    "order",
			SourceID:      order.ID,
			MatchType:     model.MatchOrderToSettlement,
			MatchStatus:   match.Status,
			AmountDiff:    match.AmountDiff,
			TimeDiffDays:  match.TimeDiffDays,
			OrderNetValue: net,
		}
		if match.Settlement != nil {
			result.TargetType = "settlement"
			result.TargetID = match.Settlement.ID
			result.SettlementNet = match.Settlement.NetAmount
			result.SettlementFees = match.Settlement.Fees
			out.Summary.TotalPSPNet = out.Summary.TotalPSPNet.Add(match.Settlement.NetAmount)
		}

		switch match.Status {
		case model.StatusUnmatchedAmount:
			result.Notes = fmt.Sprintf("settlement %s differs from net order value by %s",
				match.Settlement.ID, match.AmountDiff.StringFixed(2))
			raw = append(raw, classifier.Classify(result.ID, model.ExcUnmatchedAmount, match.AmountDiff))
		case model.StatusNoSettlementMatch:
			result.Notes = "no settlement within window"
			raw = append(raw, classifier.Classify(result.ID, model.ExcNoSettlementMatch, match.AmountDiff))
		}
		if match.Delayed {
			result.Notes = "amount-matched settlement found outside window"
			raw = append(raw, classifier.Classify(result.ID, model.ExcSettlementDelay, match.AmountDiff))
		}

		out.Summary.TotalOrderValue = out.Summary.TotalOrderValue.Add(net)
		out.Results = append(out.Results, result)

		if match.Status != model.StatusMatched {
			continue
		}

		// Ledger tie-out for the matched settlement. Fee mismatches and
		// delays never block the cash status; they co-occur as extra
		// exceptions on the same record.
		tie := tieOut.Check(*match.Settlement)
		glResult := model.ReconciliationResult{
			ID:             nextResultID(),
			Date:           date,
			SourceType:     "settlement",
			SourceID:       match.Settlement.ID,
			TargetType:     "gl_entry",
			MatchType:      model.MatchSettlementToGL,
			MatchStatus:    model.StatusMatched,
			AmountDiff:     tie.CashDiff,
			SettlementNet:  match.Settlement.NetAmount,
			SettlementFees: match.Settlement.Fees,
			GLCash:         tie.GLCash,
			GLFees:         tie.GLFees,
		}

		switch {
		case tie.MissingEntry:
			glResult.MatchStatus = model.StatusMissingGLEntry
			glResult.Notes = "no GL entry references settlement"
			raw = append(raw, classifier.Classify(glResult.ID, model.ExcMissingGLEntry, tie.CashDiff))
		case tie.CashMismatch:
			glResult.MatchStatus = model.StatusGLMismatch
			glResult.Notes = fmt.Sprintf("GL cash differs from settlement net by %s", tie.CashDiff.StringFixed(2))
			raw = append(raw, classifier.Classify(glResult.ID, model.ExcPSPGLMismatch, tie.CashDiff))
		}
		if !tie.MissingEntry && tie.FeeMismatch {
			raw = append(raw, classifier.Classify(glResult.ID, model.ExcFeeMismatch, tie.FeeDiff))
		}

		if !tie.MissingEntry {
			out.Summary.TotalGLCash = out.Summary.TotalGLCash.Add(tie.GLCash)
		}
		out.Summary.TotalVariance = out.Summary.TotalVariance.Add(tie.CashDiff)
		out.Results = append(out.Results, glResult)
	}

	out.Exceptions = classifier.Prioritize(date, raw)
	out.Summary.TotalRecords = len(out.Results)
	for _, r := range out.Results {
		if r.MatchStatus == model.StatusMatched {
			out.Summary.MatchedCount++
		}
	}
	out.Summary.ExceptionCount = len(out.Exceptions)
	for _, exc := range out.Exceptions {
		out.Summary.ExceptionTypeCounts[exc.Type]++
	}

	e.log.WithFields(logrus.Fields{
		"date":       date.Format("2006-01-02"),
		"records":    out.Summary.TotalRecords,
		"matched":    out.Summary.MatchedCount,
		"exceptions": out.Summary.ExceptionCount,
	}).Info("reconciliation complete")

	return out, nil
}

// validateInputs rejects the run when a required field is missing. The
// engine assumes well-typed records; this is the fail-fast backstop for
// ingestion bugs, not a data-quality pass.
func validateInputs(in Inputs) error {
	for i, o := range in.Orders {
		if o.ID == "" {
			return fmt.Errorf("order %d: missing order ID", i)
		}
		if o.Date.IsZero() {
			return fmt.Errorf("order %s: missing order date", o.ID)
		}
	}
	for i, r := range in.Refunds {
		if r.ID == "" {
			return fmt.Errorf("refund %d: missing refund ID", i)
		}
		if r.OrderID == "" {
			return fmt.Errorf("refund %s: missing order reference", r.ID)
		}
	}
	for i, s := range in.Settlements {
		if s.ID == "" {
			return fmt.Errorf("settlement %d: missing settlement ID", i)
		}
		if s.SourceReference == "" {
			return fmt.Errorf("settlement %s: missing source reference", s.ID)
		}
		if s.Date.IsZero() {
			return fmt.Errorf("settlement %s: missing settlement date", s.ID)
		}
	}
	for i, e := range in.GLEntries {
		if e.ID == "" {
			return fmt.Errorf("gl entry %d: missing entry ID", i)
		}
		if e.ReferenceID == "" {
			return fmt.Errorf("gl entry %s: missing reference ID", e.ID)
		}
	}
	return nil
}
