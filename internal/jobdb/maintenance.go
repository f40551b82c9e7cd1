package jobdb

import (
	"context"
	"crypto/sha256"
	"time"

	"github.com/uptrace/bun"

	"github.com/SixtySecondsApp/pg-sync-queue/hash"
)

const stalledClaimError = "claim expired: worker never reported back"

type JobsMaintenanceDB interface {
	// RequeueStalledJobs reclaims RUNNING jobs whose claim is older than stalledBefore.
	// The claim already consumed an attempt, so a job whose worker keeps dying still
	// converges to FAILED once its budget runs out. Returns the number of rows touched.
	RequeueStalledJobs(ctx context.Context, stalledBefore, now time.Time) (int, error)

	// PurgeCompletedJobs deletes COMPLETED jobs finished before olderThan. The queue
	// table has very high churn, completed rows are only kept for a retention window.
	PurgeCompletedJobs(ctx context.Context, olderThan time.Time) (int, error)

	// ReIndex rebuilds the due-scan index. High churn leaves the B-Tree with many empty
	// or nearly empty pages that never get compacted.
	ReIndex(ctx context.Context) error

	// WithAdvisoryLock runs fn only if a pg advisory xact lock derived from name could
	// be taken. Returns false without error when another instance holds the lock, so
	// HA deployments don't duplicate maintenance work.
	WithAdvisoryLock(ctx context.Context, name string, fn func(ctx context.Context) error) (bool, error)
}

type jobsMaintainer struct {
	db *bun.DB
}

func NewJobsMaintainer(db *bun.DB) JobsMaintenanceDB {
	return &jobsMaintainer{
		db: db,
	}
}

func (r *jobsMaintainer) RequeueStalledJobs(ctx context.Context, stalledBefore, now time.Time) (int, error) {
	res, err := r.db.NewUpdate().
		Table("sync_jobs").
		Set("status = CASE WHEN attempts >= max_attempts THEN (?) ELSE (?) END", Failed, PendingRetry).
		Set("last_error = CASE WHEN attempts >= max_attempts THEN (?) ELSE last_error END", stalledClaimError).
		Set("claimed_at = NULL").
		Set("updated_at = (?)", now).
		Where("status = (?)", Running).
		Where("claimed_at < (?)", stalledBefore).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(rows), nil
}

func (r *jobsMaintainer) PurgeCompletedJobs(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.db.NewDelete().
		Table("sync_jobs").
		Where("status = (?)", Completed).
		Where("completed_at < (?)", olderThan).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(rows), nil
}

func (r *jobsMaintainer) ReIndex(ctx context.Context) error {
	// Plain REINDEX rather than CONCURRENTLY so it can run inside the advisory-lock
	// transaction. The handler is scheduled off-peak, the exclusive lock is brief.
	_, err := r.db.ExecContext(ctx, "REINDEX INDEX sync_jobs_due_idx")
	return err
}

func (r *jobsMaintainer) WithAdvisoryLock(ctx context.Context, name string, fn func(ctx context.Context) error) (bool, error) {
	f := hash.NewHash(sha256.New())
	if err := f.Write([]byte(name)); err != nil {
		return false, err
	}
	lockID := f.LockID()

	return RunInTxWithReturnType(ctx, r.db, func(tx bun.Tx) (bool, error) {
		var lock AdvisoryXactLock
		err := tx.NewSelect().
			ColumnExpr("(?) as lock_id", lockID).
			ColumnExpr("pg_try_advisory_xact_lock((?)) as locked", lockID).
			Scan(ctx, &lock)
		if err != nil {
			return false, err
		}

		if !lock.Locked {
			return false, nil
		}

		// The lock is held until the surrounding transaction commits, which is after
		// fn returns, so concurrent maintainers stay serialized for its duration.
		return true, fn(ctx)
	})
}
