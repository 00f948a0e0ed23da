package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/config"
	"github.com/settled-dev/settled/internal/engine"
	"github.com/settled-dev/settled/internal/ingest"
	"github.com/settled-dev/settled/internal/logging"
	"github.com/settled-dev/settled/internal/report"
	"github.com/settled-dev/settled/internal/runlog"
	"github.com/settled-dev/settled/internal/store"
)

const dateFormat = "2006-01-02"

func newRunCommand() *cobra.Command {
	var (
		workDir    string
		dateStr    string
		fromStr    string
		toStr      string
		windowDays int
		tolerance  string
		parallel   int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile one or more dates and write reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(workDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg, err := config.Load(filepath.Join(absDir, "settled.yaml"))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("window-days") {
				cfg.Reconciliation.SettlementWindowDays = windowDays
			}
			if cmd.Flags().Changed("tolerance") {
				cfg.Reconciliation.AmountTolerance = tolerance
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			from, to, err := resolveDateRange(dateStr, fromStr, toStr)
			if err != nil {
				return err
			}

			return runReconciliation(cmd, absDir, cfg, from, to, parallel)
		},
	}

	cmd.Flags().StringVar(&workDir, "dir", ".", "workspace directory")
	cmd.Flags().StringVar(&dateStr, "date", "", "single reconciliation date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&fromStr, "from", "", "start of date range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "end of date range (YYYY-MM-DD)")
	cmd.Flags().IntVar(&windowDays, "window-days", 5, "settlement window in days")
	cmd.Flags().StringVar(&tolerance, "tolerance", "0.05", "amount tolerance in currency units")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of date partitions to process concurrently")

	return cmd
}

func resolveDateRange(dateStr, fromStr, toStr string) (time.Time, time.Time, error) {
	if dateStr != "" {
		if fromStr != "" || toStr != "" {
			return time.Time{}, time.Time{}, fmt.Errorf("--date cannot be combined with --from/--to")
		}
		d, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --date %q: %w", dateStr, err)
		}
		return d, d, nil
	}
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("either --date or both --from and --to are required")
	}
	from, err := time.Parse(dateFormat, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing --from %q: %w", fromStr, err)
	}
	to, err := time.Parse(dateFormat, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing --to %q: %w", toStr, err)
	}
	return from, to, nil
}

func runReconciliation(cmd *cobra.Command, workDir string, cfg *config.Config, from, to time.Time, parallel int) error {
	log := logging.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := ingest.NewLoader(filepath.Join(workDir, cfg.Data.InputDir), log)
	inputs, err := loader.LoadAll()
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, log)
	if err != nil {
		return err
	}

	db, err := store.Open(filepath.Join(workDir, cfg.Storage.DatabasePath))
	if err != nil {
		return err
	}
	defer db.Close()

	started := time.Now()
	runner := engine.NewBatchRunner(eng, db, parallel, log)
	outputs, err := runner.Run(ctx, from, to, inputs)
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No orders found between %s and %s\n", from.Format(dateFormat), to.Format(dateFormat))
		return nil
	}

	generator := report.NewGenerator(filepath.Join(workDir, cfg.Data.OutputDir), log)
	runID := runlog.NewRunID()
	var entries []runlog.Entry

	for _, out := range outputs {
		if _, _, err := generator.Generate(out); err != nil {
			return err
		}
		report.PrintSummary(cmd.OutOrStdout(), out)
		entries = append(entries, runlog.Entry{
			RunID:      runID,
			Timestamp:  time.Now(),
			Date:       out.Date,
			Records:    out.Summary.TotalRecords,
			Matched:    out.Summary.MatchedCount,
			Exceptions: out.Summary.ExceptionCount,
			Duration:   time.Since(started),
		})
	}

	if err := runlog.Append(workDir, entries); err != nil {
		// The run itself succeeded; a broken audit log should not fail it.
		log.WithError(err).Warn("failed to append run log")
	}
	return nil
}
