// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acqlog owns the append-only acquisition log: one structured row
// per identifier per run, persisted in SQLite, with a later in-place merge
// for batch revalidation verdicts.
package acqlog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshintel/fulltext-engine/pkg/types"
)

// Store manages the acquisition log database. Exactly one logical writer
// mutates it per run; concurrent external runs must be serialized by the
// caller.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the log database at path, creating the schema if
// needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening log database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS acquisitions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			id TEXT NOT NULL,
			id_type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			method TEXT NOT NULL,
			status TEXT,
			success INTEGER NOT NULL,
			failure_reason TEXT,
			pdf_url TEXT,
			file_path TEXT,
			file_size_kb REAL,
			pdf_valid INTEGER,
			pdf_invalid_reason TEXT,
			UNIQUE(run_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_acq_file_path ON acquisitions(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_acq_run ON acquisitions(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Append records one outcome. The (run_id, id) uniqueness constraint makes
// the write idempotent: replaying an outcome after a crash between
// file-write and log-write never duplicates a row.
func (s *Store) Append(ctx context.Context, o types.Outcome) error {
	var sizeKB any
	if o.FilePath != "" {
		sizeKB = o.FileSizeKB
	}
	var valid any
	if o.PDFValid != nil {
		valid = boolToInt(*o.PDFValid)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO acquisitions
		 (run_id, id, id_type, timestamp, method, status, success,
		  failure_reason, pdf_url, file_path, file_size_kb, pdf_valid, pdf_invalid_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.ID, o.IDType, o.Timestamp.UTC().Format(time.RFC3339), o.Method,
		nullable(o.Status), boolToInt(o.Success), nullable(string(o.FailureReason)),
		nullable(o.PDFURL), nullable(o.FilePath), sizeKB, valid,
		nullable(string(o.PDFInvalidReason)))
	if err != nil {
		return fmt.Errorf("appending outcome for %s: %w", o.ID, err)
	}
	return nil
}

// Revalidation is one batch-revalidation verdict keyed by file path.
type Revalidation struct {
	FilePath string
	Valid    bool
	Reason   types.FailureReason
}

// MergeValidation updates rows in place with revalidation verdicts. Rows
// are matched by file path; no row is ever duplicated. Files found invalid
// flip success to false and record the invalidity as the failure reason.
func (s *Store) MergeValidation(ctx context.Context, verdicts []Revalidation) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer tx.Rollback()

	var updated int
	for _, v := range verdicts {
		var res sql.Result
		if v.Valid {
			res, err = tx.ExecContext(ctx,
				`UPDATE acquisitions
				 SET pdf_valid = 1, pdf_invalid_reason = NULL
				 WHERE file_path = ?`, v.FilePath)
		} else {
			res, err = tx.ExecContext(ctx,
				`UPDATE acquisitions
				 SET success = 0, failure_reason = ?, pdf_valid = 0, pdf_invalid_reason = ?
				 WHERE file_path = ?`, string(v.Reason), string(v.Reason), v.FilePath)
		}
		if err != nil {
			return 0, fmt.Errorf("merging verdict for %s: %w", v.FilePath, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			updated += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing merge: %w", err)
	}
	return updated, nil
}

// Outcomes returns the rows for one run in submission order. An empty
// runID returns every row.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]types.Outcome, error) {
	query := `SELECT run_id, id, id_type, timestamp, method, status, success,
	                 failure_reason, pdf_url, file_path, file_size_kb, pdf_valid, pdf_invalid_reason
	          FROM acquisitions`
	args := []any{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []types.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// LatestRun returns the run ID of the most recently appended row, or ""
// when the log is empty.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM acquisitions ORDER BY rowid DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return runID, nil
}

// Downloaded returns rows that stored a file, for the batch revalidation
// pass.
func (s *Store) Downloaded(ctx context.Context) ([]types.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, id, id_type, timestamp, method, status, success,
		        failure_reason, pdf_url, file_path, file_size_kb, pdf_valid, pdf_invalid_reason
		 FROM acquisitions
		 WHERE file_path IS NOT NULL AND file_path != ''
		 ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying downloaded rows: %w", err)
	}
	defer rows.Close()

	var outcomes []types.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// ExportCSV writes the full log in the column order the downstream report
// generator consumes.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	outcomes, err := s.Outcomes(ctx, "")
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "id_type", "timestamp", "method", "status", "success",
		"failure_reason", "pdf_url", "file_path", "file_size_kb", "pdf_valid", "pdf_invalid_reason"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, o := range outcomes {
		sizeKB := ""
		if o.FilePath != "" {
			sizeKB = strconv.FormatFloat(o.FileSizeKB, 'f', 1, 64)
		}
		valid := ""
		if o.PDFValid != nil {
			valid = strconv.FormatBool(*o.PDFValid)
		}
		rec := []string{
			o.ID, o.IDType, o.Timestamp.UTC().Format(time.RFC3339), o.Method, o.Status,
			strconv.FormatBool(o.Success), string(o.FailureReason), o.PDFURL,
			o.FilePath, sizeKB, valid, string(o.PDFInvalidReason),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing CSV row for %s: %w", o.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func scanOutcome(rows *sql.Rows) (types.Outcome, error) {
	var o types.Outcome
	var ts string
	var status, failure, pdfURL, filePath, invalidReason sql.NullString
	var success int
	var sizeKB sql.NullFloat64
	var valid sql.NullInt64

	if err := rows.Scan(&o.RunID, &o.ID, &o.IDType, &ts, &o.Method, &status, &success,
		&failure, &pdfURL, &filePath, &sizeKB, &valid, &invalidReason); err != nil {
		return o, fmt.Errorf("scanning outcome row: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		o.Timestamp = t
	}
	o.Status = status.String
	o.Success = success != 0
	o.FailureReason = types.FailureReason(failure.String)
	o.PDFURL = pdfURL.String
	o.FilePath = filePath.String
	o.FileSizeKB = sizeKB.Float64
	if valid.Valid {
		b := valid.Int64 != 0
		o.PDFValid = &b
	}
	o.PDFInvalidReason = types.FailureReason(invalidReason.String)
	return o, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullable maps "" to NULL so nullable columns stay NULL rather than
// collecting empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
