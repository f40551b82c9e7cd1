package syncq

import (
	"errors"
	"time"

	"github.com/SixtySecondsApp/pg-sync-queue/internal/jobdb"
)

// JobRequest is a producer's request to enqueue deferred work. Repeated requests with
// the same (OwnerID, DedupeKey) coalesce into a single pending job, last writer wins on
// the mutable fields.
type JobRequest struct {
	// OwnerID scopes the dedupe key to a tenant/organization.
	OwnerID string

	// DedupeKey collapses repeated logical events into one pending job. Derive it from
	// the triggering entity's identity, e.g. "meeting_note:42".
	DedupeKey string

	// JobType selects the handler on the consuming side, e.g. "hubspot_note".
	JobType string

	// Priority orders eligible jobs, higher number wins.
	Priority int

	// RunAfter is the earliest eligible execution time. Zero means immediately.
	RunAfter time.Time

	// MaxAttempts caps execution tries. Zero means the configured default.
	MaxAttempts int

	// Payload is opaque structured data consumed only by the worker.
	Payload []byte
}

func (j JobRequest) isValidRequest() error {
	if len(j.OwnerID) == 0 {
		return errors.New("owner id cant be empty")
	}

	if len(j.DedupeKey) == 0 {
		return errors.New("dedupe key cant be empty")
	}

	if len(j.JobType) == 0 {
		return errors.New("job type cant be empty")
	}

	if j.MaxAttempts < 0 {
		return errors.New("max attempts cant be negative")
	}

	return nil
}

// Job is a claimed unit of work handed to a worker.
type Job struct {
	ID          string
	OwnerID     string
	DedupeKey   string
	JobType     string
	Priority    int
	Payload     []byte
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func jobFromRecord(record jobdb.Job) Job {
	job := Job{
		ID:          record.ID,
		OwnerID:     record.OwnerID,
		DedupeKey:   record.DedupeKey,
		JobType:     record.JobType,
		Priority:    record.Priority,
		Payload:     record.Payload,
		Attempts:    record.Attempts,
		MaxAttempts: record.MaxAttempts,
		RunAfter:    record.RunAfter,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	if record.LastError != nil {
		job.LastError = *record.LastError
	}

	return job
}
