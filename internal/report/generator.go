package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/settled-dev/settled/internal/engine"
)

// Generator writes the daily report files for completed partitions.
type Generator struct {
	outputDir string
	log       *logrus.Logger
}

// NewGenerator creates a Generator writing into outputDir.
func NewGenerator(outputDir string, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.New()
	}
	return &Generator{outputDir: outputDir, log: log}
}

// ExceptionReportPath returns the exception report filename for a date.
func (g *Generator) ExceptionReportPath(out *engine.Output) string {
	return filepath.Join(g.outputDir, fmt.Sprintf("exception_report_%s.csv", out.Date.Format("20060102")))
}

// SummaryReportPath returns the summary report filename for a date.
func (g *Generator) SummaryReportPath(out *engine.Output) string {
	return filepath.Join(g.outputDir, fmt.Sprintf("reconciliation_summary_%s.csv", out.Date.Format("20060102")))
}

// Generate writes both reports for one partition and returns their paths.
// Files are written via a temp file and rename, so a crash mid-write never
// leaves a truncated report behind.
func (g *Generator) Generate(out *engine.Output) (exceptionPath, summaryPath string, err error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating output dir: %w", err)
	}

	exceptionPath = g.ExceptionReportPath(out)
	if err := writeAtomic(exceptionPath, func(f *os.File) error {
		return WriteExceptionReport(f, out)
	}); err != nil {
		return "", "", fmt.Errorf("exception report: %w", err)
	}

	summaryPath = g.SummaryReportPath(out)
	if err := writeAtomic(summaryPath, func(f *os.File) error {
		return WriteSummaryReport(f, out.Summary)
	}); err != nil {
		return "", "", fmt.Errorf("summary report: %w", err)
	}

	g.log.WithFields(logrus.Fields{
		"date":             out.Date.Format("2006-01-02"),
		"exception_report": exceptionPath,
		"summary_report":   summaryPath,
		"exceptions":       len(out.Exceptions),
	}).Info("reports generated")

	return exceptionPath, summaryPath, nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming report: %w", err)
	}
	return nil
}
