// Package report renders reconciliation output as daily CSV reports and a
// console summary. Reports are advisory review artifacts; nothing here
// feeds back into matching.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/settled-dev/settled/internal/engine"
	"github.com/settled-dev/settled/internal/model"
)

// ExceptionHeader is the CSV header for the daily exception report.
const ExceptionHeader = "priority_rank,exception_id,order_id,order_date,severity,category,exception_type,description,order_net_value,settlement_id,psp_fees,psp_net,gl_cash,gl_fees,amount_diff,recommended_action"

const dateFormat = "2006-01-02"

// WriteExceptionReport writes the prioritized exception queue as CSV. Rows
// come out in priority order; an empty exception set still produces the
// header so downstream consumers always find a file with known columns.
func WriteExceptionReport(w io.Writer, out *engine.Output) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(ExceptionHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	resultsByID := make(map[string]model.ReconciliationResult, len(out.Results))
	orderBySettlement := make(map[string]model.ReconciliationResult)
	for _, r := range out.Results {
		resultsByID[r.ID] = r
		if r.MatchType == model.MatchOrderToSettlement && r.TargetID != "" {
			orderBySettlement[r.TargetID] = r
		}
	}

	for _, exc := range out.Exceptions {
		result := resultsByID[exc.ResultID]

		orderID := result.SourceID
		orderDate := result.Date
		settlementID := result.TargetID
		if result.MatchType == model.MatchSettlementToGL {
			settlementID = result.SourceID
			if orderResult, ok := orderBySettlement[result.SourceID]; ok {
				orderID = orderResult.SourceID
			}
		}

		row := []string{
			strconv.Itoa(exc.PriorityRank),
			exc.ID,
			orderID,
			orderDate.Format(dateFormat),
			string(exc.Severity),
			exc.Category,
			string(exc.Type),
			exc.Details,
			result.OrderNetValue.StringFixed(2),
			settlementID,
			result.SettlementFees.StringFixed(2),
			result.SettlementNet.StringFixed(2),
			result.GLCash.StringFixed(2),
			result.GLFees.StringFixed(2),
			exc.AmountDiff.StringFixed(2),
			exc.RecommendedAction,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing exception %s: %w", exc.ID, err)
		}
	}
	return cw.Error()
}

// SummaryHeader is the CSV header for the daily summary report.
const SummaryHeader = "metric,value"

// WriteSummaryReport writes the partition summary as metric/value rows.
func WriteSummaryReport(w io.Writer, summary engine.Summary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	rows := [][]string{
		strings.Split(SummaryHeader, ","),
		{"Total Records", strconv.Itoa(summary.TotalRecords)},
		{"Matched Records", strconv.Itoa(summary.MatchedCount)},
		{"Exceptions", strconv.Itoa(summary.ExceptionCount)},
		{"Match Rate %", summary.MatchRate().StringFixed(2)},
		{"Total Order Value", summary.TotalOrderValue.StringFixed(2)},
		{"Total PSP Net", summary.TotalPSPNet.StringFixed(2)},
		{"Total GL Cash", summary.TotalGLCash.StringFixed(2)},
		{"Total Variance", summary.TotalVariance.StringFixed(2)},
	}

	// Exception type breakdown in a fixed order.
	types := make([]string, 0, len(summary.ExceptionTypeCounts))
	for t := range summary.ExceptionTypeCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, []string{
			"Exception: " + t,
			strconv.Itoa(summary.ExceptionTypeCounts[model.ExceptionType(t)]),
		})
	}

	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	return cw.Error()
}

// PrintSummary writes a human-readable run summary.
func PrintSummary(w io.Writer, out *engine.Output) {
	s := out.Summary
	fmt.Fprintf(w, "Reconciliation summary for %s\n", out.Date.Format(dateFormat))
	fmt.Fprintf(w, "  Total records:     %d\n", s.TotalRecords)
	fmt.Fprintf(w, "  Matched records:   %d\n", s.MatchedCount)
	fmt.Fprintf(w, "  Exceptions:        %d\n", s.ExceptionCount)
	fmt.Fprintf(w, "  Match rate:        %s%%\n", s.MatchRate().StringFixed(2))
	fmt.Fprintf(w, "  Total order value: %s\n", s.TotalOrderValue.StringFixed(2))
	fmt.Fprintf(w, "  Total PSP net:     %s\n", s.TotalPSPNet.StringFixed(2))
	fmt.Fprintf(w, "  Total GL cash:     %s\n", s.TotalGLCash.StringFixed(2))
	fmt.Fprintf(w, "  Total variance:    %s\n", s.TotalVariance.StringFixed(2))

	if s.ExceptionCount > 0 {
		fmt.Fprintln(w, "  Exceptions by type:")
		types := make([]string, 0, len(s.ExceptionTypeCounts))
		for t := range s.ExceptionTypeCounts {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "    %-24s %d\n", t, s.ExceptionTypeCounts[model.ExceptionType(t)])
		}
	}
}
