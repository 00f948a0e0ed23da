// Package runlog keeps an append-only CSV audit trail of reconciliation
// runs: which dates were processed, when, and what they produced.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Entry is one row in the run log.
type Entry struct {
	RunID      string // random per invocation, groups multi-date batches
	Timestamp  time.Time
	Date       time.Time // reconciliation date processed
	Records    int
	Matched    int
	Exceptions int
	Duration   time.Duration
}

// NewRunID returns a fresh identifier for one CLI invocation.
func NewRunID() string {
	return uuid.NewString()
}

// Header is the CSV header for run-log.csv.
const Header = "run_id,timestamp,reconciliation_date,records,matched,exceptions,duration_ms"

const (
	numFields     = 7
	logDir        = "logs"
	logFile       = "logs/run-log.csv"
	colRunID      = 0
	colTimestamp  = 1
	colDate       = 2
	colRecords    = 3
	colMatched    = 4
	colExceptions = 5
	colDuration   = 6
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colRunID] = e.RunID
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colDate] = e.Date.Format("2006-01-02")
	row[colRecords] = strconv.Itoa(e.Records)
	row[colMatched] = strconv.Itoa(e.Matched)
	row[colExceptions] = strconv.Itoa(e.Exceptions)
	row[colDuration] = strconv.FormatInt(e.Duration.Milliseconds(), 10)
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	date, err := time.Parse("2006-01-02", record[colDate])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	records, err := strconv.Atoi(record[colRecords])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing records %q: %w", record[colRecords], err)
	}
	matched, err := strconv.Atoi(record[colMatched])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing matched %q: %w", record[colMatched], err)
	}
	exceptions, err := strconv.Atoi(record[colExceptions])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing exceptions %q: %w", record[colExceptions], err)
	}
	ms, err := strconv.ParseInt(record[colDuration], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing duration %q: %w", record[colDuration], err)
	}

	return Entry{
		RunID:      record[colRunID],
		Timestamp:  ts,
		Date:       date,
		Records:    records,
		Matched:    matched,
		Exceptions: exceptions,
		Duration:   time.Duration(ms) * time.Millisecond,
	}, nil
}

// Append writes entries to <workDir>/logs/run-log.csv, creating the file
// and header if needed.
func Append(workDir string, entries []Entry) error {
	dir := filepath.Join(workDir, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(workDir, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	if needsHeader {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	cw := csv.NewWriter(f)
	defer cw.Flush()
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing run log: %w", err)
	}
	return nil
}

// Read returns all entries from <workDir>/logs/run-log.csv. A missing file
// reads as empty.
func Read(workDir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(workDir, logFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
