// Package history persists run and iteration records to a SQLite database
// for cross-run analysis, a feature spec.md does not name but the teacher
// carries (internal/learning/store.go). Grounded directly on that store's
// embedded-schema-migration shape, generalized from per-task learning rows
// to per-run/per-iteration build history.
package history

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store manages the SQLite database backing run/iteration history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath, creating parent
// directories for file-based databases, and applies the embedded schema.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("history: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	store := &Store{db: db}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID               string
	PlanPath            string
	StartedAt           time.Time
	EndedAt             time.Time
	StopReason          string
	IterationsCompleted int
	StoriesDone         []string
}

// IterationRecord is one row of the iterations table.
type IterationRecord struct {
	RunID      string
	Iteration  int
	StoryID    string
	StoryTitle string
	Status     string
	StartedAt  time.Time
	EndedAt    time.Time
	LogPath    string
	MetaPath   string
}

// RecordRun inserts a run's summary row. When a row with the same run id
// already exists, it updates ended_at, stop_reason, iterations_done and
// stories_done, keeping the original plan_path and started_at.
func (s *Store) RecordRun(r RunRecord) error {
	storiesJSON, err := json.Marshal(r.StoriesDone)
	if err != nil {
		return fmt.Errorf("history: marshal storiesDone: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, plan_path, started_at, ended_at, stop_reason, iterations_done, stories_done)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   ended_at = excluded.ended_at,
		   stop_reason = excluded.stop_reason,
		   iterations_done = excluded.iterations_done,
		   stories_done = excluded.stories_done`,
		r.RunID, r.PlanPath, r.StartedAt, r.EndedAt, r.StopReason, r.IterationsCompleted, string(storiesJSON),
	)
	if err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}
	return nil
}

// RecordIteration inserts one iteration row.
func (s *Store) RecordIteration(r IterationRecord) error {
	duration := r.EndedAt.Sub(r.StartedAt).Seconds()
	_, err := s.db.Exec(
		`INSERT INTO iterations (run_id, iteration, story_id, story_title, status, started_at, ended_at, duration_secs, log_path, meta_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Iteration, r.StoryID, r.StoryTitle, r.Status, r.StartedAt, r.EndedAt, duration, r.LogPath, r.MetaPath,
	)
	if err != nil {
		return fmt.Errorf("history: insert iteration: %w", err)
	}
	return nil
}

// IterationsForRun returns every iteration row for runID, ordered by
// iteration number.
func (s *Store) IterationsForRun(runID string) ([]IterationRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, iteration, story_id, story_title, status, started_at, ended_at, log_path, meta_path
		 FROM iterations WHERE run_id = ? ORDER BY iteration ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query iterations: %w", err)
	}
	defer rows.Close()

	var out []IterationRecord
	for rows.Next() {
		var rec IterationRecord
		var logPath, metaPath sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Iteration, &rec.StoryID, &rec.StoryTitle, &rec.Status, &rec.StartedAt, &rec.EndedAt, &logPath, &metaPath); err != nil {
			return nil, fmt.Errorf("history: scan iteration: %w", err)
		}
		rec.LogPath = logPath.String
		rec.MetaPath = metaPath.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate iterations: %w", err)
	}
	return out, nil
}

// Runs returns every run summary, most recent first.
func (s *Store) Runs() ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, plan_path, started_at, ended_at, stop_reason, iterations_done, stories_done
		 FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var endedAt sql.NullTime
		var stopReason sql.NullString
		var storiesJSON string
		if err := rows.Scan(&rec.RunID, &rec.PlanPath, &rec.StartedAt, &endedAt, &stopReason, &rec.IterationsCompleted, &storiesJSON); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		if endedAt.Valid {
			rec.EndedAt = endedAt.Time
		}
		rec.StopReason = stopReason.String
		if storiesJSON != "" {
			if err := json.Unmarshal([]byte(storiesJSON), &rec.StoriesDone); err != nil {
				return nil, fmt.Errorf("history: unmarshal storiesDone: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return out, nil
}
