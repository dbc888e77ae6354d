// Package journal records the engine's operation history: one row per
// backup, restore, export or import run.
package journal

import (
	"database/sql"
	"fmt"

	"smlb/internal/journal/migrations"
	"smlb/internal/model"
	"smlb/internal/smlb"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements smlb.Journal on a SQLite database.
type SQLiteJournal struct {
	db    *sql.DB
	clock smlb.Clock
}

var _ smlb.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (or creates) the journal database at path and
// migrates it to the current schema. path may be ":memory:".
func NewSQLiteJournal(path string, clock smlb.Clock) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal schema: %w", err)
	}

	return &SQLiteJournal{db: db, clock: clock}, nil
}

// Begin records the start of an operation and returns its row ID.
func (j *SQLiteJournal) Begin(planName string, operation string) (int64, error) {
	res, err := j.db.Exec(
		"INSERT INTO operations (plan_name, operation, status, started_at) VALUES (?, ?, 'running', ?)",
		planName, operation, j.clock.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording operation start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// Finish closes an operation record with the given status.
func (j *SQLiteJournal) Finish(id int64, status string) error {
	_, err := j.db.Exec(
		"UPDATE operations SET status = ?, finished_at = ? WHERE id = ?",
		status, j.clock.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("recording operation finish: %w", err)
	}
	return nil
}

// Recent returns at most limit operation records, newest first. A
// non-positive limit returns no records; a negative SQLite LIMIT would
// mean unbounded otherwise.
func (j *SQLiteJournal) Recent(limit int) ([]*model.OperationRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.Query(
		"SELECT id, plan_name, operation, status, started_at, finished_at FROM operations ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	var records []*model.OperationRecord
	for rows.Next() {
		var rec model.OperationRecord
		var finished sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.PlanName, &rec.Operation, &rec.Status, &rec.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return records, nil
}

// Close closes the journal database.
func (j *SQLiteJournal) Close() error { return j.db.Close() }
