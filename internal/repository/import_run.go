package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/soupcal/internal/model"
)

// RunStatus enumerates the lifecycle of a calendar import.
type RunStatus string

const (
	StatusQueued     RunStatus = "queued"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// ImportRun represents a row in the import_runs table.
type ImportRun struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Source       string     `json:"source"`
	RequestedBy  string     `json:"requestedBy,omitempty"`
	Status       RunStatus  `json:"status"`
	RowsImported int        `json:"rowsImported"`
	RowsRejected int        `json:"rowsRejected"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ImportRunRepository tracks imports requested through the API, Slack and
// the scheduler.
type ImportRunRepository struct {
	pool *pgxpool.Pool
}

// NewImportRunRepository constructs a repository.
func NewImportRunRepository(pool *pgxpool.Pool) *ImportRunRepository {
	return &ImportRunRepository{pool: pool}
}

// Create inserts a queued run before the import task is enqueued. Creating
// a run whose id already exists leaves the stored run untouched.
func (r *ImportRunRepository) Create(ctx context.Context, run *ImportRun) error {
	now := time.Now().UTC()
	run.Status = StatusQueued
	run.CreatedAt = now
	run.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO import_runs (id, kind, source, requested_by, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING
	`, run.ID, run.Kind, run.Source, run.RequestedBy, run.Status, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// Get returns a run by id.
func (r *ImportRunRepository) Get(ctx context.Context, id string) (*ImportRun, error) {
	var (
		run        ImportRun
		start, end sql.NullTime
		errorMsg   sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, kind, source, requested_by, status, rows_imported, rows_rejected,
			start_date, end_date, error_message, created_at, updated_at
		FROM import_runs WHERE id=$1
	`, id)
	if err := row.Scan(&run.ID, &run.Kind, &run.Source, &run.RequestedBy, &run.Status, &run.RowsImported,
		&run.RowsRejected, &start, &end, &errorMsg, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("import run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("select import run: %w", err)
	}
	if start.Valid {
		run.StartDate = &start.Time
	}
	if end.Valid {
		run.EndDate = &end.Time
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		run.ErrorMessage = &msg
	}
	return &run, nil
}

// MarkProcessing sets the status to processing.
func (r *ImportRunRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, StatusProcessing, nil, nil)
}

// MarkFailed marks the import as failed and stores the message.
func (r *ImportRunRepository) MarkFailed(ctx context.Context, id string, msg string) error {
	return r.updateStatus(ctx, id, StatusFailed, nil, &msg)
}

// MarkCompleted stores the outcome of a successful import.
func (r *ImportRunRepository) MarkCompleted(ctx context.Context, id string, result *model.ImportResult) error {
	return r.updateStatus(ctx, id, StatusCompleted, result, nil)
}

func (r *ImportRunRepository) updateStatus(ctx context.Context, id string, status RunStatus, result *model.ImportResult, errorMsg *string) error {
	var (
		imported, rejected *int
		start, end         *time.Time
	)
	if result != nil {
		imported, rejected = &result.Rows, &result.Rejected
		if !result.StartDate.IsZero() {
			start, end = &result.StartDate, &result.EndDate
		}
	}
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE import_runs
		SET status=$1,
			rows_imported = COALESCE($2, rows_imported),
			rows_rejected = COALESCE($3, rows_rejected),
			start_date = COALESCE($4, start_date),
			end_date = COALESCE($5, end_date),
			error_message = $6,
			updated_at=$7
		WHERE id=$8
	`, status, imported, rejected, start, end, errorMsg, now, id)
	if err != nil {
		return fmt.Errorf("update import run: %w", err)
	}
	return nil
}
