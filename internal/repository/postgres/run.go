// Package postgres implements the persistence layer against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/lead-refinery/internal/domain"
)

// RunRepo records pipeline runs.
type RunRepo struct{ db *sql.DB }

// NewRunRepo creates a Postgres-backed run repository.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

// Save inserts or updates a run record.
func (r *RunRepo) Save(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refinery_runs
			(id, kind, status, input_rows, output_rows, ng_company, ng_email, ng_industry, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = $3, input_rows = $4, output_rows = $5,
			ng_company = $6, ng_email = $7, ng_industry = $8,
			error = $9, finished_at = $11
	`, run.ID, run.Kind, run.Status, run.InputRows, run.OutputRows,
		run.NGCompany, run.NGEmail, run.NGIndustry, run.Error,
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *RunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, status, input_rows, output_rows, ng_company, ng_email, ng_industry, error, started_at, finished_at
		FROM refinery_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(&run.ID, &run.Kind, &run.Status,
			&run.InputRows, &run.OutputRows,
			&run.NGCompany, &run.NGEmail, &run.NGIndustry,
			&run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Get returns one run by ID, or sql.ErrNoRows.
func (r *RunRepo) Get(ctx context.Context, id string) (*domain.Run, error) {
	var run domain.Run
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, status, input_rows, output_rows, ng_company, ng_email, ng_industry, error, started_at, finished_at
		FROM refinery_runs
		WHERE id = $1
	`, id).Scan(&run.ID, &run.Kind, &run.Status,
		&run.InputRows, &run.OutputRows,
		&run.NGCompany, &run.NGEmail, &run.NGIndustry,
		&run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
