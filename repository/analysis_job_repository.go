package repository

import (
	"context"
	"time"

	"clausecheck-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, document_id, status, current_step, steps, error_message,
	created_at, updated_at, completed_at`

// AnalysisJobRepository stores the step-by-step progress of document analyses
type AnalysisJobRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisJobRepository creates a new analysis job repository
func NewAnalysisJobRepository(db *pgxpool.Pool) *AnalysisJobRepository {
	return &AnalysisJobRepository{db: db}
}

// Create inserts a job. The id is chosen by the caller so it can be returned
// to the client before processing starts.
func (r *AnalysisJobRepository) Create(ctx context.Context, job *models.AnalysisJob) error {
	if job.Steps == nil {
		job.Steps = make(models.AnalysisSteps, 0)
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO analysis_jobs (id, document_id, status, current_step, steps, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		job.ID, job.DocumentID, job.Status, job.CurrentStep, job.Steps, job.ErrorMessage,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

// GetByID returns pgx.ErrNoRows for an unknown id
func (r *AnalysisJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func scanJob(row pgx.Row) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := row.Scan(
		&job.ID,
		&job.DocumentID,
		&job.Status,
		&job.CurrentStep,
		&job.Steps,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if job.Steps == nil {
		job.Steps = make(models.AnalysisSteps, 0)
	}
	return &job, nil
}

// UpdateStatus moves a job to a new status
func (r *AnalysisJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.AnalysisJobStatus) error {
	return r.update(ctx, `UPDATE analysis_jobs SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

// UpdateProgress records the step being worked on and the full step list
func (r *AnalysisJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.AnalysisSteps) error {
	return r.update(ctx, `
		UPDATE analysis_jobs
		SET current_step = $2, steps = $3, updated_at = NOW()
		WHERE id = $1`, id, currentStep, steps)
}

// Complete marks a job completed
func (r *AnalysisJobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, `
		UPDATE analysis_jobs
		SET status = $2, completed_at = $3, updated_at = $3
		WHERE id = $1`, id, models.JobStatusCompleted, time.Now())
}

// Fail marks a job failed with a message
func (r *AnalysisJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.update(ctx, `
		UPDATE analysis_jobs
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1`, id, models.JobStatusFailed, errorMessage)
}

// FailAbandoned fails every pending or running job not touched for idle and
// returns the affected document ids. Jobs run in-process, so after a restart
// nothing will ever pick them up again.
func (r *AnalysisJobRepository) FailAbandoned(ctx context.Context, idle time.Duration, errorMessage string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE analysis_jobs
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE status IN ($3, $4) AND updated_at <= NOW() - make_interval(secs => $5)
		RETURNING document_id`,
		models.JobStatusFailed, errorMessage, models.JobStatusPending, models.JobStatusInProgress, idle.Seconds())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *AnalysisJobRepository) update(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(tag)
}

// requireRow turns an UPDATE that matched nothing into pgx.ErrNoRows
func requireRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
