package syncq

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"

	"github.com/SixtySecondsApp/pg-sync-queue/internal/jobdb"
	"github.com/SixtySecondsApp/pg-sync-queue/migrations"
)

const (
	uninitialized = iota
	running
)

var (
	// ErrNoSuchJob is returned when reporting against an unknown job id.
	ErrNoSuchJob = jobdb.ErrNoSuchJob

	// ErrJobSuperseded is returned when a report lands after a producer re-enqueued the
	// same (owner, dedupe key). The refreshed job stays pending, the report is a no-op.
	ErrJobSuperseded = jobdb.ErrJobSuperseded
)

// Queue is a durable, idempotent work queue over Postgres. Producers enqueue writeback
// jobs keyed by (owner, dedupe key), workers claim due batches and report back. All
// coordination happens through atomic conditional statements, never application locks,
// so any number of producers and workers can share one queue.
type Queue struct {
	conf      *Config
	jobs      jobdb.JobsDB
	maint     jobdb.JobsMaintenanceDB
	db        *bun.DB
	clock     clockwork.Clock
	processor *MaintenanceProcessor
	state     atomic.Uint32
}

func NewFromConfig(conf *Config) (*Queue, error) {
	db, err := initializeDB(conf)
	if err != nil {
		return nil, err
	}

	return New(conf, db, clockwork.NewRealClock()), nil
}

// New builds a Queue over an existing connection. Useful when the caller owns pooling,
// or wants to drive time with a fake clock in tests.
func New(conf *Config, db *bun.DB, clock clockwork.Clock) *Queue {
	return &Queue{
		conf:  conf,
		jobs:  jobdb.NewJobsDB(db, conf.RetryBackoffBase, conf.RetryBackoffMax),
		maint: jobdb.NewJobsMaintainer(db),
		db:    db,
		clock: clock,
		state: atomic.Uint32{},
	}
}

// NewWithStores builds a Queue over pre-built store implementations. Intended for
// tests that substitute mocks for the Postgres-backed stores.
func NewWithStores(conf *Config, jobs jobdb.JobsDB, maint jobdb.JobsMaintenanceDB, clock clockwork.Clock) *Queue {
	return &Queue{
		conf:  conf,
		jobs:  jobs,
		maint: maint,
		clock: clock,
		state: atomic.Uint32{},
	}
}

// Init runs migrations and starts the maintenance processor (stalled-claim requeue,
// completed-row purge, index upkeep). Call once.
func (q *Queue) Init(ctx context.Context) error {
	if q.db == nil {
		return errors.New("queue has no database connection, migrations need one built from New or NewFromConfig")
	}

	if !q.state.CompareAndSwap(uninitialized, running) {
		return errors.New("initializing queue already occurred, and queue is actively running")
	}

	if err := migrations.Migrate(ctx, q.db, q.conf.Logger); err != nil {
		return err
	}

	q.processor = NewMaintenanceProcessor(q.conf, q.maint, q.clock)
	q.processor.SetUp()
	q.processor.Start()

	return nil
}

// Enqueue stores a job request, collapsing it into any existing job with the same
// (owner, dedupe key). Re-enqueueing resets the attempt budget and clears the recorded
// error. Returns the id of the surviving row. Duplicate calls are not an error.
func (q *Queue) Enqueue(ctx context.Context, req JobRequest) (string, error) {
	record, err := q.recordFromRequest(req)
	if err != nil {
		return "", err
	}

	if err := q.jobs.EnqueueJob(ctx, record); err != nil {
		return "", err
	}
	metrics.enqueuedJobs.WithLabelValues(req.JobType).Inc()
	if record.Deduped {
		metrics.dedupedJobs.WithLabelValues(req.JobType).Inc()
	}

	return record.ID, nil
}

// EnqueueBatch upserts many requests in one transaction.
func (q *Queue) EnqueueBatch(ctx context.Context, reqs []JobRequest) ([]string, error) {
	records := make([]*jobdb.Job, 0, len(reqs))
	for _, req := range reqs {
		record, err := q.recordFromRequest(req)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := q.jobs.EnqueueJobs(ctx, records); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		metrics.enqueuedJobs.WithLabelValues(record.JobType).Inc()
		if record.Deduped {
			metrics.dedupedJobs.WithLabelValues(record.JobType).Inc()
		}
		ids = append(ids, record.ID)
	}

	return ids, nil
}

// ClaimBatch atomically claims up to maxN due jobs for this caller. A claimed job is
// RUNNING and invisible to other claimers until it is reported on or its claim stalls
// out. maxN <= 0 falls back to the configured batch size.
func (q *Queue) ClaimBatch(ctx context.Context, maxN int) ([]Job, error) {
	if maxN <= 0 {
		maxN = q.conf.ClaimBatchSize
	}

	records, err := q.jobs.ClaimDueJobs(ctx, maxN, q.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(records))
	for _, record := range records {
		metrics.claimedJobs.WithLabelValues(record.JobType).Inc()
		jobs = append(jobs, jobFromRecord(record))
	}

	return jobs, nil
}

// ReportSuccess completes a claimed job. It will never be claimed again.
func (q *Queue) ReportSuccess(ctx context.Context, jobID string) error {
	return q.jobs.MarkJobSucceeded(ctx, jobID, q.clock.Now().UTC())
}

// ReportFailure records the failure reason on a claimed job. The job is rescheduled
// with backoff, or kept as terminally FAILED once its attempt budget is exhausted.
// Returns true when the failure was terminal.
func (q *Queue) ReportFailure(ctx context.Context, jobID string, errMsg string) (bool, error) {
	return q.jobs.MarkJobFailed(ctx, jobID, errMsg, q.clock.Now().UTC())
}

// FailedJobs lists terminally failed jobs with their last recorded error, for operator
// remediation. An empty ownerID lists across all owners.
func (q *Queue) FailedJobs(ctx context.Context, ownerID string, limit int) ([]Job, error) {
	records, err := q.jobs.FailedJobs(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(records))
	for _, record := range records {
		jobs = append(jobs, jobFromRecord(record))
	}

	return jobs, nil
}

func (q *Queue) Close() error {
	if q.processor != nil {
		q.processor.Close()
	}
	if q.db == nil {
		return nil
	}

	return q.db.Close()
}

func (q *Queue) recordFromRequest(req JobRequest) (*jobdb.Job, error) {
	if err := req.isValidRequest(); err != nil {
		return nil, err
	}

	now := q.clock.Now().UTC()
	runAfter := req.RunAfter
	if runAfter.IsZero() {
		runAfter = now
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = q.conf.DefaultMaxAttempts
	}

	return &jobdb.Job{
		ID:          ulid.Make().String(),
		OwnerID:     req.OwnerID,
		DedupeKey:   req.DedupeKey,
		JobType:     req.JobType,
		Priority:    req.Priority,
		Payload:     req.Payload,
		Status:      jobdb.Pending,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		RunAfter:    runAfter.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
