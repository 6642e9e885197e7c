package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/catalogsync/pkg/types"
)

// Run status values derived from the stored stats.
const (
	RunActive    = "active"
	RunCompleted = "completed"
	RunStopped   = "stopped"
)

// Run is the summary row of one batch.
type Run struct {
	ID            string    `json:"id"`
	Source        string    `json:"source,omitempty"`
	Total         int       `json:"total"`
	Processed     int       `json:"processed"`
	Failed        int       `json:"failed"`
	Stopped       bool      `json:"stopped"`
	EventsDropped int       `json:"events_dropped"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
}

// Status reports whether the run is still active, completed or stopped.
func (r Run) Status() string {
	switch {
	case r.EndedAt.IsZero():
		return RunActive
	case r.Stopped:
		return RunStopped
	default:
		return RunCompleted
	}
}

// CreateRun records the start of a batch along with its items, which are
// kept so failed ones can be resubmitted.
func (s *Store) CreateRun(ctx context.Context, stats types.BatchStats, source string, items []types.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, total, started_at) VALUES (?, ?, ?, ?)`,
		stats.RunID, source, stats.Total, toMillis(stats.StartTime),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_items (run_id, position, item_id, item) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("failed to encode item %s: %w", it.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, stats.RunID, i, it.ID, string(data)); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// RecordResult stores the terminal result of one item and bumps the run
// counters. Recording the same item twice replaces the earlier result.
func (s *Store) RecordResult(ctx context.Context, runID string, r types.ItemResult) error {
	steps, err := json.Marshal(r.Steps)
	if err != nil {
		return err
	}
	updated, err := json.Marshal(r.FieldsUpdated)
	if err != nil {
		return err
	}
	fieldErrs, err := json.Marshal(r.FieldErrors)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO results
		(run_id, item_id, success, failed_step, error, steps, fields_updated, field_errors, screenshot, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.ItemID, r.Success, r.FailedStep, r.Error, string(steps), string(updated), string(fieldErrs),
		r.Screenshot, toMillis(r.StartedAt), r.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE runs SET
		processed = (SELECT COUNT(*) FROM results WHERE run_id = ? AND success = 1),
		failed = (SELECT COUNT(*) FROM results WHERE run_id = ? AND success = 0)
		WHERE id = ?`, runID, runID, runID)
	if err != nil {
		return fmt.Errorf("failed to update run counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}

// FinishRun stores the final stats of a batch.
func (s *Store) FinishRun(ctx context.Context, stats types.BatchStats) error {
	end := stats.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET processed = ?, failed = ?, stopped = ?, events_dropped = ?, ended_at = ? WHERE id = ?`,
		stats.Processed, stats.Failed, stats.Stopped, stats.EventsDropped, toMillis(end), stats.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

const runColumns = `id, source, total, processed, failed, stopped, events_dropped, started_at, ended_at`

func scanRun(row interface{ Scan(...interface{}) error }) (Run, error) {
	var (
		r       Run
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Source, &r.Total, &r.Processed, &r.Failed, &r.Stopped, &r.EventsDropped, &started, &ended); err != nil {
		return Run{}, err
	}
	r.StartedAt = fromMillis(started)
	if ended.Valid {
		r.EndedAt = fromMillis(ended.Int64)
	}
	return r, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Results returns the stored item results of a run in submission order.
func (s *Store) Results(ctx context.Context, runID string) ([]types.ItemResult, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT r.item_id, r.success, r.failed_step, r.error, r.steps,
			r.fields_updated, r.field_errors, r.screenshot, r.started_at, r.duration_ms
		FROM results r
		LEFT JOIN run_items i ON i.run_id = r.run_id AND i.item_id = r.item_id
		WHERE r.run_id = ?
		ORDER BY COALESCE(i.position, 0), r.rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ItemResult
	for rows.Next() {
		var (
			r                           types.ItemResult
			steps, updated, fieldErrors string
			started, durationMS         int64
		)
		if err := rows.Scan(&r.ItemID, &r.Success, &r.FailedStep, &r.Error, &steps,
			&updated, &fieldErrors, &r.Screenshot, &started, &durationMS); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(steps), &r.Steps); err != nil {
			return nil, fmt.Errorf("corrupt steps for %s: %w", r.ItemID, err)
		}
		if err := json.Unmarshal([]byte(updated), &r.FieldsUpdated); err != nil {
			return nil, fmt.Errorf("corrupt fields for %s: %w", r.ItemID, err)
		}
		if err := json.Unmarshal([]byte(fieldErrors), &r.FieldErrors); err != nil {
			return nil, fmt.Errorf("corrupt field errors for %s: %w", r.ItemID, err)
		}
		r.StepsCompleted = []string{}
		for _, st := range r.Steps {
			if st.Success {
				r.StepsCompleted = append(r.StepsCompleted, st.Name)
			}
		}
		r.StartedAt = fromMillis(started)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// FailedItems returns the submitted items of a run whose result was a
// failure, in submission order, ready to be resubmitted.
func (s *Store) FailedItems(ctx context.Context, runID string) ([]types.Item, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT i.item FROM run_items i
		JOIN results r ON r.run_id = i.run_id AND r.item_id = i.item_id
		WHERE i.run_id = ? AND r.success = 0
		ORDER BY i.position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Item
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var it types.Item
		if err := json.Unmarshal([]byte(data), &it); err != nil {
			return nil, fmt.Errorf("corrupt stored item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
