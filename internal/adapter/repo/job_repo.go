package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"productstudio/internal/domain"
	"productstudio/internal/infra"
	"productstudio/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on Postgres.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// CreateWithCredit runs the reserve-and-insert statement. An empty result
// means the profile is missing or out of credit.
func (r *JobRepositoryPG) CreateWithCredit(ctx context.Context, nj domain.NewJob) (*domain.Job, int, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QCreateJobWithCredit, nj.UserID, nj.ImageURL, nj.StyleID)
	var (
		job       domain.Job
		status    string
		remaining int
	)
	err := row.Scan(&job.ID, &job.UserID, &job.ImageURL, &job.StyleID, &status, &job.ResultURL, &job.CreatedAt, &remaining)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, 0, domain.ErrNoCredit
		}
		return nil, 0, fmt.Errorf("create job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	return &job, remaining, nil
}

func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

func (r *JobRepositoryPG) ClaimPending(ctx context.Context) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimPendingJob))
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete fails with domain.ErrJobFinal when the job is not processing.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID, resultURL string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteJob, jobID, resultURL)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobFinal
	}
	return nil
}

func (r *JobRepositoryPG) Fail(ctx context.Context, jobID string) error {
	var failed int
	if err := r.sql.QueryRow(ctx, sqlinline.QFailJobRefund, jobID).Scan(&failed); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if failed == 0 {
		return domain.ErrJobFinal
	}
	return nil
}

// RequeueStale returns processing jobs untouched for longer than olderThan to
// the pending queue, e.g. after a worker crashed mid-job.
func (r *JobRepositoryPG) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QRequeueStaleJobs, int(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
	)
	if err := row.Scan(&job.ID, &job.UserID, &job.ImageURL, &job.StyleID, &status, &job.ResultURL, &job.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
