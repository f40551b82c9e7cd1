package jobdb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Status = string

const (
	Pending      Status = "PENDING"
	PendingRetry Status = "PENDING_RETRY"
	Running      Status = "RUNNING"
	Completed    Status = "COMPLETED"
	Failed       Status = "FAILED"
)

// Job is one row of the sync_jobs queue. One row per (owner_id, dedupe_key),
// enforced by a unique constraint, so re-enqueueing the same logical event
// collapses into the existing row instead of piling up duplicates.
type Job struct {
	bun.BaseModel `bun:"table:sync_jobs"`

	ID          string     `bun:"id,pk"`
	OwnerID     string     `bun:"owner_id,notnull"`
	DedupeKey   string     `bun:"dedupe_key,notnull"`
	JobType     string     `bun:"job_type,notnull"`
	Priority    int        `bun:"priority,notnull"`
	Payload     []byte     `bun:"payload"`
	Status      Status     `bun:"status,notnull"`
	Attempts    int        `bun:"attempts,notnull"`
	MaxAttempts int        `bun:"max_attempts,notnull"`
	RunAfter    time.Time  `bun:"run_after,notnull"`
	LastError   *string    `bun:"last_error"`
	ClaimedAt   *time.Time `bun:"claimed_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`

	// Deduped is set by the enqueue upsert when the request landed on the
	// conflict arm, i.e. it refreshed an existing row instead of inserting.
	Deduped bool `bun:"deduped,scanonly"`
}

func (j *Job) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		now := time.Now().UTC()
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		if j.UpdatedAt.IsZero() {
			j.UpdatedAt = now
		}
	}
	return nil
}

type AdvisoryXactLock struct {
	LockID int64 `bun:"lock_id"`
	Locked bool  `bun:"locked"`
}
