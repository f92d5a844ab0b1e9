package history

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one pipeline execution.
type Run struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
	Source       string    `json:"source"`
	Model        string    `json:"model"`
	Turbo        bool      `json:"turbo"`
	InputChars   int       `json:"input_chars"`
	OutputChars  int       `json:"output_chars"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Stats summarizes all recorded runs.
type Stats struct {
	TotalRuns     int     `json:"total_runs"`
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	TotalChars    int64   `json:"total_chars"`
}

// SaveRun inserts r and sets its ID.
func (db *DB) SaveRun(r *Run) error {
	query := `
		INSERT INTO runs (
			started_at_ms, duration_ms, source, model, turbo,
			input_chars, output_chars, success, error_kind, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.conn.Exec(query,
		r.StartedAt.UnixMilli(), r.DurationMs, r.Source, r.Model, r.Turbo,
		r.InputChars, r.OutputChars, r.Success, nullString(r.ErrorKind), nullString(r.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	r.ID = id
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT
			id, started_at_ms, duration_ms, source, model, turbo,
			input_chars, output_chars, success, error_kind, error_message
		FROM runs
		ORDER BY started_at_ms DESC, id DESC
		LIMIT ?
	`
	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var startedMs int64
		var errorKind, errorMessage sql.NullString
		err := rows.Scan(
			&r.ID, &startedMs, &r.DurationMs, &r.Source, &r.Model, &r.Turbo,
			&r.InputChars, &r.OutputChars, &r.Success, &errorKind, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.ErrorKind = errorKind.String
		r.ErrorMessage = errorMessage.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats aggregates every recorded run.
func (db *DB) Stats() (Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(SUM(input_chars), 0)
		FROM runs
	`
	var s Stats
	err := db.conn.QueryRow(query).Scan(&s.TotalRuns, &s.SuccessCount, &s.FailureCount, &s.AvgDurationMs, &s.TotalChars)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
