package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/migdalzone/tracecap/internal/suite"
)

// Run is one recorded suite execution.
type Run struct {
	ID        string
	Suite     string
	AgentID   string
	StartedAt time.Time
	Summary   suite.Summary
}

// WriteRun records a completed run and all of its results in one
// transaction. Results are stored in input order; the position column
// preserves it on read-back.
func (s *Store) WriteRun(ctx context.Context, run Run, results []suite.TestResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, agent_id, started_at, total, passed, failed, success_rate, avg_duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Suite,
		run.AgentID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Summary.Total,
		run.Summary.Passed,
		run.Summary.Failed,
		run.Summary.SuccessRate,
		run.Summary.AverageDuration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	for i, r := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO results
			(run_id, position, question, response, expected, duration_ms, success,
			 error_message, similarity, quality, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			i,
			r.Question,
			r.Response,
			r.Expected,
			r.Duration.Milliseconds(),
			r.Success,
			r.ErrorMessage,
			r.Similarity,
			r.Quality,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("write result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, agent_id, started_at, total, passed, failed, success_rate, avg_duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadResults returns the results of one run in their original order.
func (s *Store) ReadResults(ctx context.Context, runID string) ([]suite.TestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, response, expected, duration_ms, success,
		       error_message, similarity, quality, timestamp
		FROM results
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	defer rows.Close()

	var results []suite.TestResult
	for rows.Next() {
		var (
			r          suite.TestResult
			durationMS int64
			timestamp  string
		)
		if err := rows.Scan(
			&r.Question, &r.Response, &r.Expected, &durationMS, &r.Success,
			&r.ErrorMessage, &r.Similarity, &r.Quality, &timestamp,
		); err != nil {
			return nil, fmt.Errorf("read results: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			r.Timestamp = ts
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return results, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run       Run
		startedAt string
		avgMS     int64
	)
	if err := rows.Scan(
		&run.ID, &run.Suite, &run.AgentID, &startedAt,
		&run.Summary.Total, &run.Summary.Passed, &run.Summary.Failed,
		&run.Summary.SuccessRate, &avgMS,
	); err != nil {
		return Run{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = ts
	}
	run.Summary.AverageDuration = time.Duration(avgMS) * time.Millisecond
	return run, nil
}
