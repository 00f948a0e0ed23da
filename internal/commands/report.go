package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/config"
	"github.com/settled-dev/settled/internal/engine"
	"github.com/settled-dev/settled/internal/logging"
	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/report"
	"github.com/settled-dev/settled/internal/store"
)

func newReportCommand() *cobra.Command {
	var (
		workDir string
		dateStr string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate reports for a stored reconciliation date",
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(workDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			cfg, err := config.Load(filepath.Join(absDir, "settled.yaml"))
			if err != nil {
				return err
			}
			date, err := time.Parse(dateFormat, dateStr)
			if err != nil {
				return fmt.Errorf("parsing --date %q: %w", dateStr, err)
			}
			return runReport(cmd, absDir, cfg, date)
		},
	}

	cmd.Flags().StringVar(&workDir, "dir", ".", "workspace directory")
	cmd.Flags().StringVar(&dateStr, "date", "", "reconciliation date (YYYY-MM-DD, required)")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func runReport(cmd *cobra.Command, workDir string, cfg *config.Config, date time.Time) error {
	log := logging.NewLogger(cfg.Logging)

	db, err := store.Open(filepath.Join(workDir, cfg.Storage.DatabasePath))
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	results, err := db.ResultsForDate(ctx, date)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no stored results for %s; run `settled run --date %s` first",
			date.Format(dateFormat), date.Format(dateFormat))
	}
	exceptions, err := db.ExceptionsForDate(ctx, date)
	if err != nil {
		return err
	}

	out := rebuildOutput(date, results, exceptions)
	generator := report.NewGenerator(filepath.Join(workDir, cfg.Data.OutputDir), log)
	excPath, sumPath, err := generator.Generate(out)
	if err != nil {
		return err
	}

	report.PrintSummary(cmd.OutOrStdout(), out)
	fmt.Fprintf(cmd.OutOrStdout(), "Reports written to %s and %s\n", excPath, sumPath)
	return nil
}

// rebuildOutput reassembles an engine output from stored rows so the report
// generator sees the same shape a fresh run produces.
func rebuildOutput(date time.Time, results []model.ReconciliationResult, exceptions []model.ExceptionRecord) *engine.Output {
	out := &engine.Output{Date: date, Results: results, Exceptions: exceptions}
	out.Summary.TotalRecords = len(results)
	out.Summary.ExceptionCount = len(exceptions)
	out.Summary.ExceptionTypeCounts = make(map[model.ExceptionType]int)
	for _, exc := range exceptions {
		out.Summary.ExceptionTypeCounts[exc.Type]++
	}
	for _, r := range results {
		if r.MatchStatus == model.StatusMatched {
			out.Summary.MatchedCount++
		}
		switch r.MatchType {
		case model.MatchOrderToSettlement:
			out.Summary.TotalOrderValue = out.Summary.TotalOrderValue.Add(r.OrderNetValue)
			if r.TargetID != "" {
				out.Summary.TotalPSPNet = out.Summary.TotalPSPNet.Add(r.SettlementNet)
			}
		case model.MatchSettlementToGL:
			if r.MatchStatus != model.StatusMissingGLEntry {
				out.Summary.TotalGLCash = out.Summary.TotalGLCash.Add(r.GLCash)
			}
			out.Summary.TotalVariance = out.Summary.TotalVariance.Add(r.AmountDiff)
		}
	}
	return out
}
