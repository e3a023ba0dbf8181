package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// Run is a persisted repair run.
type Run struct {
	ID            string                   `json:"id"`
	SpecID        string                   `json:"spec_id"`
	MaxIterations int                      `json:"max_iterations"`
	Outcome       string                   `json:"outcome"`
	AbortReason   string                   `json:"abort_reason,omitempty"`
	Converged     bool                     `json:"converged"`
	ErrorCount    int                      `json:"error_count"`
	WarningCount  int                      `json:"warning_count"`
	FinalSpec     *models.Specification    `json:"final_spec,omitempty"`
	StartedAt     time.Time                `json:"started_at"`
	FinishedAt    time.Time                `json:"finished_at"`
	Iterations    []models.RepairIteration `json:"iterations,omitempty"`
}

// FromResult converts a repair result into a Run.
func FromResult(res *repair.Result) *Run {
	return &Run{
		ID:            res.RunID,
		SpecID:        res.FinalSpec.ID,
		MaxIterations: res.MaxIterations,
		Outcome:       string(res.Outcome),
		AbortReason:   string(res.AbortReason),
		Converged:     res.Converged,
		ErrorCount:    len(res.FinalValidation.Errors),
		WarningCount:  len(res.FinalValidation.Warnings),
		FinalSpec:     res.FinalSpec,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		Iterations:    res.Iterations,
	}
}

// SaveRun stores a run and its iterations in one transaction.
func (db *DB) SaveRun(r *Run) error {
	finalSpec, err := marshalSpec(r.FinalSpec)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO repair_runs (id, spec_id, max_iterations, outcome, abort_reason, converged,
				error_count, warning_count, final_spec, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.SpecID, r.MaxIterations, r.Outcome, nullString(r.AbortReason), r.Converged,
			r.ErrorCount, r.WarningCount, finalSpec, formatTime(r.StartedAt), formatTime(r.FinishedAt))
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}

		for _, it := range r.Iterations {
			spec, err := marshalSpec(it.Spec)
			if err != nil {
				return fmt.Errorf("save iteration %d: %w", it.Iteration, err)
			}
			var reduction sql.NullInt64
			if it.ErrorReduction != nil {
				reduction = sql.NullInt64{Int64: int64(*it.ErrorReduction), Valid: true}
			}
			_, err = tx.Exec(`
				INSERT INTO repair_iterations (run_id, iteration, error_count, warning_count,
					error_reduction, status, detail, degraded, spec, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, r.ID, it.Iteration, it.ErrorCount, it.WarningCount, reduction, string(it.Status),
				nullString(it.Detail), it.Degraded, spec, formatTime(it.Timestamp))
			if err != nil {
				return fmt.Errorf("save iteration %d: %w", it.Iteration, err)
			}
		}
		return nil
	})
}

const runColumns = `id, spec_id, max_iterations, outcome, abort_reason, converged,
	error_count, warning_count, final_spec, started_at, finished_at`

// GetRun retrieves a run and its iterations by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM repair_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := db.Query(`
		SELECT iteration, error_count, warning_count, error_reduction, status, detail, degraded, spec, recorded_at
		FROM repair_iterations WHERE run_id = ? ORDER BY iteration
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get iterations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.RepairIteration
		var reduction sql.NullInt64
		var status string
		var detail, spec sql.NullString
		var recordedAt string
		if err := rows.Scan(&it.Iteration, &it.ErrorCount, &it.WarningCount, &reduction,
			&status, &detail, &it.Degraded, &spec, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		if reduction.Valid {
			n := int(reduction.Int64)
			it.ErrorReduction = &n
		}
		it.Status = models.IterationStatus(status)
		it.Detail = detail.String
		it.Timestamp, _ = parseTime(recordedAt)
		if it.Spec, err = unmarshalSpec(spec); err != nil {
			return nil, fmt.Errorf("decode iteration %d: %w", it.Iteration, err)
		}
		r.Iterations = append(r.Iterations, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}

	return r, nil
}

// ListRuns returns the most recent runs first, without iterations.
// A limit of zero or less returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM repair_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its iterations.
func (db *DB) DeleteRun(id string) error {
	result, err := db.Exec(`DELETE FROM repair_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var abortReason, finalSpec, finishedAt sql.NullString
	var startedAt string
	if err := s.Scan(&r.ID, &r.SpecID, &r.MaxIterations, &r.Outcome, &abortReason, &r.Converged,
		&r.ErrorCount, &r.WarningCount, &finalSpec, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.AbortReason = abortReason.String
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)

	spec, err := unmarshalSpec(finalSpec)
	if err != nil {
		return nil, fmt.Errorf("decode final spec: %w", err)
	}
	r.FinalSpec = spec
	return &r, nil
}

func marshalSpec(spec *models.Specification) (sql.NullString, error) {
	if spec == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(spec)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal spec: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalSpec(s sql.NullString) (*models.Specification, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var spec models.Specification
	if err := json.Unmarshal([]byte(s.String), &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
