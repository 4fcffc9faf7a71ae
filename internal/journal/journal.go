// Package journal persists qualification run outcomes to SQLite so
// results survive the terminal session. Uses WAL mode for concurrent
// read access while a run is being written.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/flashqual/internal/tester"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (runs + results)
const currentSchemaVersion = 1

// Journal is a durable store of run results.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal database at the given path.
// Applies required pragmas and the schema automatically; idempotent.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY surprises.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Run is one journaled qualification run.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	ChipKind  string
	ChipName  string
	OSRelease string
}

// RecordRun inserts the run header row.
func (j *Journal) RecordRun(ctx context.Context, r Run) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, chip_kind, chip_name, os_release)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.StartedAt.UTC().Format(time.RFC3339), r.ChipKind, r.ChipName, r.OSRelease)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.ID, err)
	}
	return nil
}

// RecordResults appends the scenario results for a run, preserving
// registration order through the seq column.
func (j *Journal) RecordResults(ctx context.Context, runID uuid.UUID, results []tester.Result) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording results: %w", err)
	}
	defer tx.Rollback()

	for i, r := range results {
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (run_id, seq, name, outcome, detail)
			 VALUES (?, ?, ?, ?, ?)`,
			runID.String(), i, r.Name, r.Outcome.String(), detail); err != nil {
			return fmt.Errorf("recording result %q: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

// ResultRow is one journaled scenario result.
type ResultRow struct {
	Seq     int
	Name    string
	Outcome string
	Detail  string
}

// LatestRun returns the most recent run and its results in seq order.
// Returns sql.ErrNoRows when the journal holds no runs.
func (j *Journal) LatestRun(ctx context.Context) (Run, []ResultRow, error) {
	var run Run
	var id, started string
	err := j.db.QueryRowContext(ctx,
		`SELECT id, started_at, chip_kind, chip_name, os_release
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`).
		Scan(&id, &started, &run.ChipKind, &run.ChipName, &run.OSRelease)
	if err != nil {
		return Run{}, nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return Run{}, nil, fmt.Errorf("journal holds malformed run id %q: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return Run{}, nil, fmt.Errorf("journal holds malformed timestamp %q: %w", started, err)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, name, outcome, detail FROM results
		 WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("reading results for run %s: %w", id, err)
	}
	defer rows.Close()

	var results []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.Seq, &r.Name, &r.Outcome, &r.Detail); err != nil {
			return Run{}, nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, err
	}
	return run, results, nil
}
