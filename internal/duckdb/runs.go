package duckdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/tinytelemetry/countdown/internal/model"
)

// InsertRun appends one finished run.
func (s *Store) InsertRun(rec model.RunRecord) error {
	if rec.ID == "" {
		return errors.New("duckdb: run record without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, ended_at, total_seconds, remaining_seconds, outcome) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.EndedAt.UTC(), rec.TotalSeconds, rec.RemainingSeconds, string(rec.Outcome),
	)
	if err != nil {
		return fmt.Errorf("duckdb: insert run %s: %w", rec.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = model.DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, total_seconds, remaining_seconds, outcome
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("duckdb: recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunRecord, 0, limit)
	for rows.Next() {
		var rec model.RunRecord
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.EndedAt, &rec.TotalSeconds, &rec.RemainingSeconds, &outcome); err != nil {
			return nil, fmt.Errorf("duckdb: scan run: %w", err)
		}
		rec.Outcome = model.Outcome(outcome)
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// RunStats aggregates all recorded runs.
func (s *Store) RunStats() (model.RunStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var stats model.RunStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE outcome = ?),
			COUNT(*) FILTER (WHERE outcome = ?),
			CAST(COALESCE(SUM(total_seconds - remaining_seconds), 0) AS BIGINT)
		FROM runs`,
		string(model.OutcomeCompleted), string(model.OutcomeStopped),
	).Scan(&stats.Completed, &stats.Stopped, &stats.SecondsCounted)
	if err != nil {
		return model.RunStats{}, fmt.Errorf("duckdb: run stats: %w", err)
	}
	return stats, nil
}

// TotalRunCount returns the number of recorded runs.
func (s *Store) TotalRunCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// DeleteBefore removes runs that started before cutoff and returns how many
// were deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("duckdb: delete expired runs: %w", err)
	}
	return res.RowsAffected()
}
