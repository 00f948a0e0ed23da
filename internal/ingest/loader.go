package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/settled-dev/settled/internal/engine"
)

// Input file names inside the configured input directory.
const (
	OrdersFile      = "orders.csv"
	RefundsFile     = "refunds.csv"
	SettlementsFile = "psp_settlements.csv"
	GLEntriesFile   = "gl_entries.csv"
)

// Loader reads the four input collections from a directory.
type Loader struct {
	inputDir string
	log      *logrus.Logger
}

// NewLoader creates a Loader for an input directory.
func NewLoader(inputDir string, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}
	return &Loader{inputDir: inputDir, log: log}
}

// LoadAll loads all four sources. Any failure aborts the load and names the
// file and row that failed; no partially loaded source is returned.
func (l *Loader) LoadAll() (engine.Inputs, error) {
	var in engine.Inputs

	ordersFile, err := os.Open(filepath.Join(l.inputDir, OrdersFile))
	if err != nil {
		return engine.Inputs{}, fmt.Errorf("opening %s: %w", OrdersFile, err)
	}
	defer ordersFile.Close()
	if in.Orders, err = ReadOrders(ordersFile); err != nil {
		return engine.Inputs{}, fmt.Errorf("%s: %w", OrdersFile, err)
	}

	refundsFile, err := os.Open(filepath.Join(l.inputDir, RefundsFile))
	if err != nil {
		return engine.Inputs{}, fmt.Errorf("opening %s: %w", RefundsFile, err)
	}
	defer refundsFile.Close()
	if in.Refunds, err = ReadRefunds(refundsFile); err != nil {
		return engine.Inputs{}, fmt.Errorf("%s: %w", RefundsFile, err)
	}

	settlementsFile, err := os.Open(filepath.Join(l.inputDir, SettlementsFile))
	if err != nil {
		return engine.Inputs{}, fmt.Errorf("opening %s: %w", SettlementsFile, err)
	}
	defer settlementsFile.Close()
	if in.Settlements, err = ReadSettlements(settlementsFile); err != nil {
		return engine.Inputs{}, fmt.Errorf("%s: %w", SettlementsFile, err)
	}

	glFile, err := os.Open(filepath.Join(l.inputDir, GLEntriesFile))
	if err != nil {
		return engine.Inputs{}, fmt.Errorf("opening %s: %w", GLEntriesFile, err)
	}
	defer glFile.Close()
	if in.GLEntries, err = ReadGLEntries(glFile); err != nil {
		return engine.Inputs{}, fmt.Errorf("%s: %w", GLEntriesFile, err)
	}

	l.log.WithFields(logrus.Fields{
		"orders":      len(in.Orders),
		"refunds":     len(in.Refunds),
		"settlements": len(in.Settlements),
		"gl_entries":  len(in.GLEntries),
	}).Info("input data loaded")

	return in, nil
}
