package jobdb

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const NoRowsAffected = 0

var (
	// ErrNoSuchJob is returned when reporting against a job id that does not exist.
	ErrNoSuchJob = errors.New("no job found for the given id")

	// ErrJobSuperseded is returned when a success/failure report finds the job is no
	// longer RUNNING. A producer re-enqueued the same (owner_id, dedupe_key) while the
	// worker was in flight, so the report must not clobber the refreshed job.
	ErrJobSuperseded = errors.New("job is no longer claimed, it was superseded by a re-enqueue")
)

type JobsDB interface {
	// EnqueueJob inserts the job, or on an (owner_id, dedupe_key) conflict overwrites the
	// existing row's payload, schedule and type, resets attempts to zero and clears any
	// recorded error. The surviving row's id is written back into job.ID.
	EnqueueJob(ctx context.Context, job *Job) error

	// EnqueueJobs upserts a batch of jobs inside one transaction.
	EnqueueJobs(ctx context.Context, jobs []*Job) error

	// ClaimDueJobs atomically claims up to limit due, eligible jobs. Claiming flips the
	// row to RUNNING and increments attempts in the same statement that selects it, with
	// FOR UPDATE SKIP LOCKED so concurrent claimers never receive the same row.
	// Results are ordered by priority (higher first), then run_after, then id.
	ClaimDueJobs(ctx context.Context, limit int, now time.Time) ([]Job, error)

	// MarkJobSucceeded transitions RUNNING -> COMPLETED.
	MarkJobSucceeded(ctx context.Context, jobID string, now time.Time) error

	// MarkJobFailed records the failure reason and either schedules a retry with
	// exponential backoff or, when the attempt budget is exhausted, transitions the job
	// to FAILED. Returns true when the failure was terminal.
	MarkJobFailed(ctx context.Context, jobID string, errMsg string, now time.Time) (bool, error)

	// FailedJobs lists terminally failed jobs for operator inspection, most recent
	// first. An empty ownerID lists across all owners.
	FailedJobs(ctx context.Context, ownerID string, limit int) ([]Job, error)

	// GetJob fetches a single job by id.
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

type jobsDB struct {
	db          *bun.DB
	backoffBase time.Duration
	backoffMax  time.Duration
}

func NewJobsDB(db *bun.DB, backoffBase, backoffMax time.Duration) JobsDB {
	return &jobsDB{
		db:          db,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
	}
}

func (r *jobsDB) EnqueueJob(ctx context.Context, job *Job) error {
	_, err := r.upsertQuery(r.db, job).Exec(ctx)
	return err
}

func (r *jobsDB) EnqueueJobs(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}

	return RunInTx(ctx, r.db, func(tx bun.Tx) error {
		for _, job := range jobs {
			if _, err := r.upsertQuery(tx, job).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// upsertQuery is the single conditional insert-or-update both enqueue paths share.
// attempts is reset and last_error cleared so a re-triggered event gets a full retry
// budget, last writer wins on the mutable fields.
func (r *jobsDB) upsertQuery(idb bun.IDB, job *Job) *bun.InsertQuery {
	return idb.NewInsert().
		Model(job).
		On("CONFLICT (owner_id, dedupe_key) DO UPDATE").
		Set("job_type = EXCLUDED.job_type").
		Set("priority = EXCLUDED.priority").
		Set("payload = EXCLUDED.payload").
		Set("run_after = EXCLUDED.run_after").
		Set("max_attempts = EXCLUDED.max_attempts").
		Set("attempts = (?)", 0).
		Set("last_error = NULL").
		Set("status = (?)", Pending).
		Set("claimed_at = NULL").
		Set("completed_at = NULL").
		Set("updated_at = EXCLUDED.updated_at").
		// xmax <> 0 only on the conflict arm, which is how Postgres tells an
		// update apart from a fresh insert.
		Returning("id, (xmax <> 0) AS deduped")
}

func (r *jobsDB) ClaimDueJobs(ctx context.Context, limit int, now time.Time) ([]Job, error) {
	var jobs []Job
	sub := r.db.NewSelect().
		Table("sync_jobs").
		Column("id").
		Where("status IN (?)", bun.In([]string{Pending, PendingRetry})).
		Where("run_after <= (?)", now).
		Where("attempts < max_attempts").
		OrderExpr("priority DESC").
		Order("run_after").
		Order("id").
		Limit(limit).
		For("UPDATE SKIP LOCKED")

	err := r.db.NewUpdate().
		TableExpr("sync_jobs as j").
		TableExpr("(?) as sub", sub).
		Set("attempts = j.attempts + (?)", 1).
		Set("claimed_at = (?)", now).
		Set("updated_at = (?)", now).
		Set("status = (?)", Running).
		Where("sub.id = j.id").
		Returning("j.*").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, err
	}

	// UPDATE ... RETURNING carries no ordering guarantee, restore the claim order.
	slices.SortFunc(jobs, compareByClaimOrder)

	return jobs, nil
}

func compareByClaimOrder(a, b Job) int {
	if a.Priority != b.Priority {
		return b.Priority - a.Priority
	}
	if !a.RunAfter.Equal(b.RunAfter) {
		if a.RunAfter.Before(b.RunAfter) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

func (r *jobsDB) MarkJobSucceeded(ctx context.Context, jobID string, now time.Time) error {
	res, err := r.db.NewUpdate().
		Table("sync_jobs").
		Set("status = (?)", Completed).
		Set("completed_at = (?)", now).
		Set("claimed_at = NULL").
		Set("updated_at = (?)", now).
		Where("id = (?)", jobID).
		Where("status = (?)", Running).
		Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == NoRowsAffected {
		return r.reportMissError(ctx, jobID)
	}

	return nil
}

func (r *jobsDB) MarkJobFailed(ctx context.Context, jobID string, errMsg string, now time.Time) (bool, error) {
	var status Status
	err := r.db.NewUpdate().
		Table("sync_jobs").
		Set("last_error = (?)", errMsg).
		Set("claimed_at = NULL").
		Set("updated_at = (?)", now).
		Set("status = CASE WHEN attempts >= max_attempts THEN (?) ELSE (?) END", Failed, PendingRetry).
		Set(
			"run_after = CASE WHEN attempts >= max_attempts THEN run_after "+
				"ELSE (?) + make_interval(secs => LEAST((?), (?) * POWER(2, GREATEST(attempts - 1, 0)))) END",
			now, r.backoffMax.Seconds(), r.backoffBase.Seconds(),
		).
		Where("id = (?)", jobID).
		Where("status = (?)", Running).
		Returning("status").
		Scan(ctx, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, r.reportMissError(ctx, jobID)
		}
		return false, err
	}

	return status == Failed, nil
}

// reportMissError distinguishes a report against a vanished job from one against a job
// that a producer re-enqueued mid-flight.
func (r *jobsDB) reportMissError(ctx context.Context, jobID string) error {
	exists, err := r.db.NewSelect().
		Table("sync_jobs").
		Where("id = (?)", jobID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoSuchJob
	}

	return ErrJobSuperseded
}

func (r *jobsDB) FailedJobs(ctx context.Context, ownerID string, limit int) ([]Job, error) {
	var jobs []Job
	q := r.db.NewSelect().
		Model(&jobs).
		Where("status = (?)", Failed).
		OrderExpr("updated_at DESC").
		Limit(limit)
	if ownerID != "" {
		q = q.Where("owner_id = (?)", ownerID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *jobsDB) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job := new(Job)
	err := r.db.NewSelect().
		Model(job).
		Where("id = (?)", jobID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSuchJob
		}
		return nil, err
	}

	return job, nil
}
