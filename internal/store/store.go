// Package store persists derived reconciliation artifacts in SQLite. A
// partition (one reconciliation date) is always written in a single
// transaction that replaces any previous content for that date, so readers
// never observe a half-written partition.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/engine"
	"github.com/settled-dev/settled/internal/model"
)

const dateFormat = "2006-01-02"

// Store provides SQLite access for reconciliation results and exceptions.
type Store struct {
	db *sql.DB
}

// Compile-time check that Store can act as the batch runner's sink.
var _ engine.PartitionSink = (*Store)(nil)

// Open opens (and if needed creates) the results database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reconciliation_results (
		result_id           TEXT PRIMARY KEY,
		reconciliation_date TEXT NOT NULL,
		source_type         TEXT NOT NULL,
		source_id           TEXT NOT NULL,
		target_type         TEXT,
		target_id           TEXT,
		match_type          TEXT NOT NULL,
		match_status        TEXT NOT NULL,
		amount_diff         TEXT NOT NULL,
		time_diff_days      INTEGER NOT NULL,
		notes               TEXT,
		order_net_value     TEXT NOT NULL,
		settlement_net      TEXT NOT NULL,
		settlement_fees     TEXT NOT NULL,
		gl_cash             TEXT NOT NULL,
		gl_fees             TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_date
		ON reconciliation_results(reconciliation_date);

	CREATE TABLE IF NOT EXISTS exception_records (
		exception_id        TEXT PRIMARY KEY,
		result_id           TEXT NOT NULL REFERENCES reconciliation_results(result_id) ON DELETE CASCADE,
		reconciliation_date TEXT NOT NULL,
		exception_type      TEXT NOT NULL,
		severity            TEXT NOT NULL,
		category            TEXT NOT NULL,
		details             TEXT,
		recommended_action  TEXT,
		detected_at         TEXT NOT NULL,
		amount_diff         TEXT NOT NULL,
		priority_rank       INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exceptions_date
		ON exception_records(reconciliation_date);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// WritePartition replaces the stored content for the output's date with the
// given results and exceptions. The whole write happens in one transaction;
// on any error the partition is left exactly as it was.
func (s *Store) WritePartition(ctx context.Context, out *engine.Output) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning partition write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	date := out.Date.Format(dateFormat)
	if _, err := tx.ExecContext(ctx, `DELETE FROM reconciliation_results WHERE reconciliation_date = ?`, date); err != nil {
		return fmt.Errorf("clearing partition %s: %w", date, err)
	}

	for _, r := range out.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reconciliation_results
			(result_id, reconciliation_date, source_type, source_id, target_type, target_id,
			 match_type, match_status, amount_diff, time_diff_days, notes,
			 order_net_value, settlement_net, settlement_fees, gl_cash, gl_fees)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, date, r.SourceType, r.SourceID, r.TargetType, r.TargetID,
			string(r.MatchType), string(r.MatchStatus), r.AmountDiff.String(), r.TimeDiffDays, r.Notes,
			r.OrderNetValue.String(), r.SettlementNet.String(), r.SettlementFees.String(),
			r.GLCash.String(), r.GLFees.String(),
		)
		if err != nil {
			return fmt.Errorf("inserting result %s: %w", r.ID, err)
		}
	}

	for _, e := range out.Exceptions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO exception_records
			(exception_id, result_id, reconciliation_date, exception_type, severity, category,
			 details, recommended_action, detected_at, amount_diff, priority_rank)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.ResultID, date, string(e.Type), string(e.Severity), e.Category,
			e.Details, e.RecommendedAction, e.DetectedAt.UTC().Format(time.RFC3339), e.AmountDiff.String(), e.PriorityRank,
		)
		if err != nil {
			return fmt.Errorf("inserting exception %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing partition %s: %w", date, err)
	}
	return nil
}

// ResultsForDate returns the stored results for a date, ordered by ID.
func (s *Store) ResultsForDate(ctx context.Context, date time.Time) ([]model.ReconciliationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result_id, reconciliation_date, source_type, source_id, target_type, target_id,
		       match_type, match_status, amount_diff, time_diff_days, notes,
		       order_net_value, settlement_net, settlement_fees, gl_cash, gl_fees
		FROM reconciliation_results
		WHERE reconciliation_date = ?
		ORDER BY result_id`, date.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []model.ReconciliationResult
	for rows.Next() {
		var (
			r                                 model.ReconciliationResult
			dateStr, matchType, matchStatus   string
			diff, net, sNet, sFees, cash, gfs string
			notes, targetType, targetID       sql.NullString
		)
		err := rows.Scan(&r.ID, &dateStr, &r.SourceType, &r.SourceID, &targetType, &targetID,
			&matchType, &matchStatus, &diff, &r.TimeDiffDays, &notes,
			&net, &sNet, &sFees, &cash, &gfs)
		if err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if r.Date, err = time.Parse(dateFormat, dateStr); err != nil {
			return nil, fmt.Errorf("parsing result date %q: %w", dateStr, err)
		}
		r.TargetType = targetType.String
		r.TargetID = targetID.String
		r.MatchType = model.MatchType(matchType)
		r.MatchStatus = model.MatchStatus(matchStatus)
		r.Notes = notes.String
		if r.AmountDiff, err = decimal.NewFromString(diff); err != nil {
			return nil, fmt.Errorf("parsing amount_diff %q: %w", diff, err)
		}
		if r.OrderNetValue, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("parsing order_net_value %q: %w", net, err)
		}
		if r.SettlementNet, err = decimal.NewFromString(sNet); err != nil {
			return nil, fmt.Errorf("parsing settlement_net %q: %w", sNet, err)
		}
		if r.SettlementFees, err = decimal.NewFromString(sFees); err != nil {
			return nil, fmt.Errorf("parsing settlement_fees %q: %w", sFees, err)
		}
		if r.GLCash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("parsing gl_cash %q: %w", cash, err)
		}
		if r.GLFees, err = decimal.NewFromString(gfs); err != nil {
			return nil, fmt.Errorf("parsing gl_fees %q: %w", gfs, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ExceptionsForDate returns the stored exceptions for a date in priority
// order.
func (s *Store) ExceptionsForDate(ctx context.Context, date time.Time) ([]model.ExceptionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exception_id, result_id, exception_type, severity, category,
		       details, recommended_action, detected_at, amount_diff, priority_rank
		FROM exception_records
		WHERE reconciliation_date = ?
		ORDER BY priority_rank`, date.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("querying exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []model.ExceptionRecord
	for rows.Next() {
		var (
			e                          model.ExceptionRecord
			excType, severity          string
			detectedAt, diff           string
			details, recommendedAction sql.NullString
		)
		err := rows.Scan(&e.ID, &e.ResultID, &excType, &severity, &e.Category,
			&details, &recommendedAction, &detectedAt, &diff, &e.PriorityRank)
		if err != nil {
			return nil, fmt.Errorf("scanning exception: %w", err)
		}
		e.Type = model.ExceptionType(excType)
		e.Severity = model.Severity(severity)
		e.Details = details.String
		e.RecommendedAction = recommendedAction.String
		if e.DetectedAt, err = time.Parse(time.RFC3339, detectedAt); err != nil {
			return nil, fmt.Errorf("parsing detected_at %q: %w", detectedAt, err)
		}
		if e.AmountDiff, err = decimal.NewFromString(diff); err != nil {
			return nil, fmt.Errorf("parsing amount_diff %q: %w", diff, err)
		}
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}

// Dates returns every reconciliation date present in the store, ascending.
func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT reconciliation_date FROM reconciliation_results ORDER BY reconciliation_date`)
	if err != nil {
		return nil, fmt.Errorf("querying dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, fmt.Errorf("scanning date: %w", err)
		}
		d, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing date %q: %w", dateStr, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
