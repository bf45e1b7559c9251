package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	apperrors "github.com/vanity-grinder/internal/errors"
	"github.com/vanity-grinder/internal/models"
	"github.com/vanity-grinder/internal/types"
)

// VanityJobRepository handles vanity job persistence
type VanityJobRepository struct {
	db *PostgresDB
}

// NewVanityJobRepository creates a new vanity job repository
func NewVanityJobRepository(db *PostgresDB) *VanityJobRepository {
	return &VanityJobRepository{db: db}
}

// CreateJobParams holds the fields for a new vanity job record
type CreateJobParams struct {
	Pattern         string
	IsSuffix        bool
	CaseSensitive   bool
	ThreadCount     int
	CPULimitPercent int
	RequestedBy     string
	RequestIP       string
}

// Create inserts a new vanity job in the pending state and returns it
func (r *VanityJobRepository) Create(ctx context.Context, params CreateJobParams) (*models.VanityJob, error) {
	now := time.Now().UTC()
	job := &models.VanityJob{
		ID:              uuid.NewString(),
		Pattern:         params.Pattern,
		IsSuffix:        params.IsSuffix,
		CaseSensitive:   params.CaseSensitive,
		ThreadCount:     params.ThreadCount,
		CPULimitPercent: params.CPULimitPercent,
		Status:          types.JobPending,
		Attempts:        0,
		RequestedBy:     params.RequestedBy,
		RequestIP:       params.RequestIP,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	query := `
		INSERT INTO vanity_jobs (
			id, pattern, is_suffix, case_sensitive, thread_count, cpu_limit_percent,
			status, attempts, requested_by, request_ip, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		job.ID,
		job.Pattern,
		job.IsSuffix,
		job.CaseSensitive,
		job.ThreadCount,
		job.CPULimitPercent,
		string(job.Status),
		job.Attempts,
		job.RequestedBy,
		job.RequestIP,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vanity job: %w", err)
	}

	return job, nil
}

// GetByID retrieves a vanity job by ID
func (r *VanityJobRepository) GetByID(ctx context.Context, id string) (*models.VanityJob, error) {
	query := `
		SELECT id, pattern, is_suffix, case_sensitive, thread_count, cpu_limit_percent,
			   status, attempts, wallet_address, private_key, failure_reason,
			   requested_by, request_ip, lease_expires_at, created_at, updated_at, completed_at
		FROM vanity_jobs
		WHERE id = $1
	`

	job, err := scanVanityJob(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewJobNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get vanity job: %w", err)
	}

	return job, nil
}

// List retrieves vanity jobs, newest first, optionally filtered by status
func (r *VanityJobRepository) List(ctx context.Context, status *types.JobStatus, limit int) ([]*models.VanityJob, error) {
	query := `
		SELECT id, pattern, is_suffix, case_sensitive, thread_count, cpu_limit_percent,
			   status, attempts, wallet_address, private_key, failure_reason,
			   requested_by, request_ip, lease_expires_at, created_at, updated_at, completed_at
		FROM vanity_jobs
	`

	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		args = []interface{}{string(*status), limit}
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = []interface{}{limit}
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vanity jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.VanityJob
	for rows.Next() {
		job, err := scanVanityJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vanity job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vanity jobs: %w", err)
	}

	return jobs, nil
}

// MarkProcessing transitions a job to processing and grants it a lease.
// The write is guarded so a job that already reached a terminal state is
// left untouched; the bool reports whether the transition applied.
func (r *VanityJobRepository) MarkProcessing(ctx context.Context, id string, leaseUntil time.Time) (bool, error) {
	query := `
		UPDATE vanity_jobs
		SET status = 'processing', lease_expires_at = $2, updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Pool().Exec(ctx, query, id, leaseUntil, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark vanity job processing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.resolveUnapplied(ctx, id)
	}

	return true, nil
}

// UpdateProgress folds a progress report into the job row and renews its
// lease. Attempts never move backwards; reports that arrive after the job
// reached a terminal state are dropped.
func (r *VanityJobRepository) UpdateProgress(ctx context.Context, id string, attempts int64, leaseUntil time.Time) error {
	query := `
		UPDATE vanity_jobs
		SET attempts = GREATEST(attempts, $2), lease_expires_at = $3, updated_at = $4
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	_, err := r.db.Pool().Exec(ctx, query, id, attempts, leaseUntil, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update vanity job progress: %w", err)
	}

	return nil
}

// Complete records a successful search result. The guarded write makes the
// first completion win: once any terminal state is set, later results are
// rejected and the bool comes back false.
func (r *VanityJobRepository) Complete(ctx context.Context, id, address, privateKey string, attempts int64) (bool, error) {
	query := `
		UPDATE vanity_jobs
		SET status = 'completed', wallet_address = $2, private_key = $3,
			attempts = GREATEST(attempts, $4), lease_expires_at = NULL,
			completed_at = $5, updated_at = $5
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Pool().Exec(ctx, query, id, address, privateKey, attempts, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to complete vanity job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.resolveUnapplied(ctx, id)
	}

	return true, nil
}

// Cancel transitions a job to cancelled if it has not already reached a
// terminal state
func (r *VanityJobRepository) Cancel(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE vanity_jobs
		SET status = 'cancelled', lease_expires_at = NULL,
			completed_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Pool().Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to cancel vanity job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.resolveUnapplied(ctx, id)
	}

	return true, nil
}

// Fail transitions a job to failed with a reason if it has not already
// reached a terminal state
func (r *VanityJobRepository) Fail(ctx context.Context, id, reason string, attempts int64) (bool, error) {
	query := `
		UPDATE vanity_jobs
		SET status = 'failed', failure_reason = $2,
			attempts = GREATEST(attempts, $3), lease_expires_at = NULL,
			completed_at = $4, updated_at = $4
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Pool().Exec(ctx, query, id, reason, attempts, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark vanity job failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.resolveUnapplied(ctx, id)
	}

	return true, nil
}

// ListExpiredLeases finds non-terminal jobs whose lease lapsed before
// leaseCutoff. Jobs that never received a lease are matched against
// nullLeaseCutoff on updated_at so a crashed submission is still reaped.
func (r *VanityJobRepository) ListExpiredLeases(ctx context.Context, leaseCutoff, nullLeaseCutoff time.Time) ([]*models.VanityJob, error) {
	query := `
		SELECT id, pattern, is_suffix, case_sensitive, thread_count, cpu_limit_percent,
			   status, attempts, wallet_address, private_key, failure_reason,
			   requested_by, request_ip, lease_expires_at, created_at, updated_at, completed_at
		FROM vanity_jobs
		WHERE status IN ('pending', 'processing')
		  AND (lease_expires_at < $1 OR (lease_expires_at IS NULL AND updated_at < $2))
		ORDER BY updated_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, leaseCutoff, nullLeaseCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired leases: %w", err)
	}
	defer rows.Close()

	var jobs []*models.VanityJob
	for rows.Next() {
		job, err := scanVanityJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vanity job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired leases: %w", err)
	}

	return jobs, nil
}

// resolveUnapplied explains a guarded update that matched no rows: the job
// is either gone or already terminal. Terminal is expected and reported as
// not-applied; anything else is an error.
func (r *VanityJobRepository) resolveUnapplied(ctx context.Context, id string) (bool, error) {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Status.IsTerminal() {
		return false, nil
	}
	return false, fmt.Errorf("vanity job %s in unexpected state %s", id, job.Status)
}

// scanVanityJob reads one vanity_jobs row into a model
func scanVanityJob(row pgx.Row) (*models.VanityJob, error) {
	var job models.VanityJob
	var status string

	err := row.Scan(
		&job.ID,
		&job.Pattern,
		&job.IsSuffix,
		&job.CaseSensitive,
		&job.ThreadCount,
		&job.CPULimitPercent,
		&status,
		&job.Attempts,
		&job.WalletAddress,
		&job.PrivateKey,
		&job.FailureReason,
		&job.RequestedBy,
		&job.RequestIP,
		&job.LeaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = types.JobStatus(status)
	return &job, nil
}
