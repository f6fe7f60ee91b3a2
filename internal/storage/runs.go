package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses. A "running" row whose process died stays running; the next
// `runs` listing makes the orphan visible.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run is one conversion's ledger entry.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Status     string    `json:"status"`
	Sleep      int       `json:"sleep_sessions"`
	SpO2       int       `json:"spo2_readings"`
	HeartRate  int       `json:"heart_rate_readings"`
	Skipped    int       `json:"records_skipped"`
	Error      string    `json:"error,omitempty"`
}

// timeLayout keeps ledger timestamps lexically sortable and readable from
// the sqlite3 shell.
const timeLayout = time.RFC3339Nano

// StartRun records a new run in the running state.
func (db *DB) StartRun(ctx context.Context, run Run) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, input_path, output_path, started_at, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Source, run.InputPath, run.OutputPath,
		run.StartedAt.UTC().Format(timeLayout), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// FinishRun records a run's outcome and counters.
func (db *DB) FinishRun(ctx context.Context, run Run) error {
	_, err := db.db.ExecContext(ctx,
		`UPDATE runs SET
		 finished_at = ?, status = ?, sleep_sessions = ?, spo2_readings = ?,
		 heart_rate_readings = ?, records_skipped = ?, error = ?
		 WHERE id = ?`,
		run.FinishedAt.UTC().Format(timeLayout), run.Status,
		run.Sleep, run.SpO2, run.HeartRate, run.Skipped, run.Error,
		run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, source, input_path, output_path, started_at, finished_at,
		 status, sleep_sessions, spo2_readings, heart_rate_readings,
		 records_skipped, error
		 FROM runs
		 ORDER BY started_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var (
			r          Run
			id         string
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&id, &r.Source, &r.InputPath, &r.OutputPath,
			&startedAt, &finishedAt, &r.Status, &r.Sleep, &r.SpO2,
			&r.HeartRate, &r.Skipped, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", id, err)
		}
		if finishedAt.Valid {
			if r.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
				return nil, fmt.Errorf("run %s finished_at: %w", id, err)
			}
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
