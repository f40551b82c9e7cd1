package jobdb_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/ory/dockertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/SixtySecondsApp/pg-sync-queue/internal/jobdb"
	"github.com/SixtySecondsApp/pg-sync-queue/testHelper"
	"github.com/SixtySecondsApp/pg-sync-queue/testHelper/postgres"
)

func setUpDB(t *testing.T) postgres.Resource {
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	resource := postgres.SetUp(pool, t)
	resource.DB.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))

	return resource
}

func newJob(owner, dedupeKey, jobType string, priority int, runAfter time.Time, maxAttempts int) *jobdb.Job {
	now := time.Now().UTC()
	return &jobdb.Job{
		ID:          ulid.Make().String(),
		OwnerID:     owner,
		DedupeKey:   dedupeKey,
		JobType:     jobType,
		Priority:    priority,
		Payload:     []byte(`{}`),
		Status:      jobdb.Pending,
		MaxAttempts: maxAttempts,
		RunAfter:    runAfter,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ownedBy(owner string) func(jobdb.Job) bool {
	return func(j jobdb.Job) bool { return j.OwnerID == owner }
}

func TestEnqueueDeduplication(t *testing.T) {
	resource := setUpDB(t)

	db := jobdb.NewJobsDB(resource.DB, time.Second*30, time.Minute*30)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("re-enqueue collapses into one row, last writer wins", func(t *testing.T) {
		first := newJob("org1", "meeting_note:42", "hubspot_note", 50, now, 3)
		first.Payload = []byte(`{"meeting_id":42}`)
		require.NoError(t, db.EnqueueJob(ctx, first))

		second := newJob("org1", "meeting_note:42", "hubspot_note", 50, now, 3)
		second.Payload = []byte(`{"meeting_id":42,"rev":2}`)
		require.NoError(t, db.EnqueueJob(ctx, second))

		count, err := resource.DB.NewSelect().
			Table("sync_jobs").
			Where("owner_id = (?)", "org1").
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		// the upsert reports the surviving row's id and whether it deduped
		assert.Equal(t, first.ID, second.ID)
		assert.False(t, first.Deduped)
		assert.True(t, second.Deduped)

		job, err := db.GetJob(ctx, first.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"meeting_id":42,"rev":2}`, string(job.Payload))
		assert.Equal(t, 0, job.Attempts)
		assert.Nil(t, job.LastError)
		assert.Equal(t, jobdb.Pending, job.Status)
	})

	t.Run("same dedupe key under different owners stays separate", func(t *testing.T) {
		require.NoError(t, db.EnqueueJob(ctx, newJob("org2", "meeting_note:42", "hubspot_note", 0, now, 3)))
		require.NoError(t, db.EnqueueJob(ctx, newJob("org3", "meeting_note:42", "hubspot_note", 0, now, 3)))

		count, err := resource.DB.NewSelect().
			Table("sync_jobs").
			Where("dedupe_key = (?)", "meeting_note:42").
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("batch enqueue upserts all requests in one transaction", func(t *testing.T) {
		batch := []*jobdb.Job{
			newJob("org_batch", "deal:1", "hubspot_note", 0, now, 3),
			newJob("org_batch", "deal:2", "hubspot_note", 0, now, 3),
			newJob("org_batch", "deal:2", "hubspot_note", 0, now, 3),
		}
		require.NoError(t, db.EnqueueJobs(ctx, batch))

		count, err := resource.DB.NewSelect().
			Table("sync_jobs").
			Where("owner_id = (?)", "org_batch").
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestClaimDueJobs(t *testing.T) {
	resource := setUpDB(t)

	db := jobdb.NewJobsDB(resource.DB, time.Second*30, time.Minute*30)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("higher priority claimed first", func(t *testing.T) {
		low := newJob("org_prio", "deal:low", "hubspot_note", 10, now, 3)
		high := newJob("org_prio", "deal:high", "hubspot_note", 50, now, 3)
		require.NoError(t, db.EnqueueJob(ctx, low))
		require.NoError(t, db.EnqueueJob(ctx, high))

		claimed, err := db.ClaimDueJobs(ctx, 1, now)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "deal:high", claimed[0].DedupeKey)
		assert.Equal(t, jobdb.Running, claimed[0].Status)
		assert.Equal(t, 1, claimed[0].Attempts)
		require.NotNil(t, claimed[0].ClaimedAt)

		claimed, err = db.ClaimDueJobs(ctx, 1, now)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "deal:low", claimed[0].DedupeKey)

		byStatus := testHelper.GroupBy(claimed, func(j jobdb.Job) string { return j.Status })
		assert.Len(t, byStatus[jobdb.Running], 1)
	})

	t.Run("future run_after excluded until due", func(t *testing.T) {
		delayed := newJob("org_future", "deal:later", "hubspot_note", 0, now.Add(time.Hour), 3)
		require.NoError(t, db.EnqueueJob(ctx, delayed))

		claimed, err := db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_future"))
		assert.Empty(t, mine)

		claimed, err = db.ClaimDueJobs(ctx, 100, now.Add(time.Duration(2)*time.Hour))
		require.NoError(t, err)
		mine, _ = testHelper.Partition(claimed, ownedBy("org_future"))
		require.Len(t, mine, 1)
		assert.Equal(t, "deal:later", mine[0].DedupeKey)
	})

	t.Run("claimed jobs invisible to a second claimer", func(t *testing.T) {
		inflight := newJob("org_inflight", "deal:7", "hubspot_note", 0, now, 3)
		require.NoError(t, db.EnqueueJob(ctx, inflight))

		claimed, err := db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_inflight"))
		require.Len(t, mine, 1)

		claimed, err = db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ = testHelper.Partition(claimed, ownedBy("org_inflight"))
		assert.Empty(t, mine)
	})

	t.Run("concurrent claimers never receive the same job", func(t *testing.T) {
		batch := make([]*jobdb.Job, 0, 20)
		for i := 0; i < 20; i++ {
			batch = append(batch, newJob("org_conc", fmt.Sprintf("deal:%d", i), "hubspot_note", 0, now, 3))
		}
		require.NoError(t, db.EnqueueJobs(ctx, batch))

		results := make([][]jobdb.Job, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				claimed, err := db.ClaimDueJobs(ctx, 20, now)
				assert.NoError(t, err)
				mine, _ := testHelper.Partition(claimed, ownedBy("org_conc"))
				results[n] = mine
			}(i)
		}
		wg.Wait()

		// SKIP LOCKED makes the claim sets disjoint, every job lands with
		// exactly one claimer.
		seen := make(map[string]int)
		for _, claimed := range results {
			for _, job := range claimed {
				seen[job.ID]++
			}
		}
		require.Len(t, seen, 20)
		for id, claims := range seen {
			assert.Equal(t, 1, claims, id)
		}
	})
}

func TestRetryAndTerminalFailure(t *testing.T) {
	resource := setUpDB(t)

	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("retries until the budget is spent, then terminal", func(t *testing.T) {
		// zero backoff keeps every retry immediately eligible
		db := jobdb.NewJobsDB(resource.DB, 0, 0)

		job := newJob("org_retry", "deal:1", "hubspot_note", 0, now, 3)
		require.NoError(t, db.EnqueueJob(ctx, job))

		for attempt := 1; attempt <= 3; attempt++ {
			claimed, err := db.ClaimDueJobs(ctx, 100, now)
			require.NoError(t, err)
			mine, _ := testHelper.Partition(claimed, ownedBy("org_retry"))
			require.Len(t, mine, 1, "attempt %d should be claimable", attempt)
			assert.Equal(t, attempt, mine[0].Attempts)

			terminal, err := db.MarkJobFailed(ctx, mine[0].ID, fmt.Sprintf("boom %d", attempt), now)
			require.NoError(t, err)
			assert.Equal(t, attempt == 3, terminal)
		}

		claimed, err := db.ClaimDueJobs(ctx, 100, now.Add(time.Duration(24)*time.Hour))
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_retry"))
		assert.Empty(t, mine, "terminally failed jobs must never be claimed again")

		failed, err := db.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobdb.Failed, failed.Status)
		assert.Equal(t, 3, failed.Attempts)
		require.NotNil(t, failed.LastError)
		assert.Equal(t, "boom 3", *failed.LastError)
	})

	t.Run("terminal jobs are listed for operators", func(t *testing.T) {
		db := jobdb.NewJobsDB(resource.DB, 0, 0)

		scoped, err := db.FailedJobs(ctx, "org_retry", 10)
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		assert.Equal(t, "deal:1", scoped[0].DedupeKey)

		all, err := db.FailedJobs(ctx, "", 10)
		require.NoError(t, err)
		assert.NotEmpty(t, all)
	})

	t.Run("backoff delays the next attempt", func(t *testing.T) {
		db := jobdb.NewJobsDB(resource.DB, time.Second*30, time.Minute*30)

		job := newJob("org_backoff", "deal:2", "hubspot_note", 0, now, 3)
		require.NoError(t, db.EnqueueJob(ctx, job))

		claimed, err := db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_backoff"))
		require.Len(t, mine, 1)

		terminal, err := db.MarkJobFailed(ctx, mine[0].ID, "rate limited", now)
		require.NoError(t, err)
		assert.False(t, terminal)

		claimed, err = db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ = testHelper.Partition(claimed, ownedBy("org_backoff"))
		assert.Empty(t, mine, "retry must wait out the backoff")

		claimed, err = db.ClaimDueJobs(ctx, 100, now.Add(time.Duration(31)*time.Second))
		require.NoError(t, err)
		mine, _ = testHelper.Partition(claimed, ownedBy("org_backoff"))
		require.Len(t, mine, 1)
		assert.Equal(t, 2, mine[0].Attempts)
	})
}

func TestReportSuccess(t *testing.T) {
	resource := setUpDB(t)

	db := jobdb.NewJobsDB(resource.DB, time.Second*30, time.Minute*30)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("round trip, completed jobs never claimed again", func(t *testing.T) {
		job := newJob("org_ok", "deal:1", "hubspot_note", 0, now, 3)
		require.NoError(t, db.EnqueueJob(ctx, job))

		claimed, err := db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_ok"))
		require.Len(t, mine, 1)

		require.NoError(t, db.MarkJobSucceeded(ctx, mine[0].ID, now))

		done, err := db.GetJob(ctx, mine[0].ID)
		require.NoError(t, err)
		assert.Equal(t, jobdb.Completed, done.Status)
		assert.NotNil(t, done.CompletedAt)

		claimed, err = db.ClaimDueJobs(ctx, 100, now.Add(time.Duration(24)*time.Hour))
		require.NoError(t, err)
		mine, _ = testHelper.Partition(claimed, ownedBy("org_ok"))
		assert.Empty(t, mine)

		// a second report finds nothing RUNNING
		assert.ErrorIs(t, db.MarkJobSucceeded(ctx, done.ID, now), jobdb.ErrJobSuperseded)
	})

	t.Run("reporting an unknown job", func(t *testing.T) {
		assert.ErrorIs(t, db.MarkJobSucceeded(ctx, ulid.Make().String(), now), jobdb.ErrNoSuchJob)
	})

	t.Run("re-enqueue while in flight supersedes the claim", func(t *testing.T) {
		job := newJob("org_super", "meeting_note:9", "hubspot_note", 0, now, 3)
		require.NoError(t, db.EnqueueJob(ctx, job))

		claimed, err := db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_super"))
		require.Len(t, mine, 1)

		refreshed := newJob("org_super", "meeting_note:9", "hubspot_note", 0, now, 3)
		refreshed.Payload = []byte(`{"meeting_id":9,"rev":2}`)
		require.NoError(t, db.EnqueueJob(ctx, refreshed))

		assert.ErrorIs(t, db.MarkJobSucceeded(ctx, mine[0].ID, now), jobdb.ErrJobSuperseded)

		current, err := db.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobdb.Pending, current.Status)
		assert.Equal(t, 0, current.Attempts)
		assert.JSONEq(t, `{"meeting_id":9,"rev":2}`, string(current.Payload))
	})
}

func TestMaintenance(t *testing.T) {
	resource := setUpDB(t)

	db := jobdb.NewJobsDB(resource.DB, time.Second*30, time.Minute*30)
	maint := jobdb.NewJobsMaintainer(resource.DB)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	t.Run("stalled claims become eligible again", func(t *testing.T) {
		job := newJob("org_stall", "deal:1", "hubspot_note", 0, past, 3)
		require.NoError(t, db.EnqueueJob(ctx, job))

		claimed, err := db.ClaimDueJobs(ctx, 100, past)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_stall"))
		require.Len(t, mine, 1)

		requeued, err := maint.RequeueStalledJobs(ctx, now.Add(-time.Duration(10)*time.Minute), now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, requeued, 1)

		stalled, err := db.GetJob(ctx, mine[0].ID)
		require.NoError(t, err)
		assert.Equal(t, jobdb.PendingRetry, stalled.Status)
		assert.Nil(t, stalled.ClaimedAt)
		assert.Equal(t, 1, stalled.Attempts)

		claimed, err = db.ClaimDueJobs(ctx, 100, now)
		require.NoError(t, err)
		mine, _ = testHelper.Partition(claimed, ownedBy("org_stall"))
		require.Len(t, mine, 1)
		assert.Equal(t, 2, mine[0].Attempts)
	})

	t.Run("stalled claim on the final attempt goes terminal", func(t *testing.T) {
		job := newJob("org_stall_final", "deal:2", "hubspot_note", 0, past, 1)
		require.NoError(t, db.EnqueueJob(ctx, job))

		claimed, err := db.ClaimDueJobs(ctx, 100, past)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_stall_final"))
		require.Len(t, mine, 1)

		_, err = maint.RequeueStalledJobs(ctx, now.Add(-time.Duration(10)*time.Minute), now)
		require.NoError(t, err)

		dead, err := db.GetJob(ctx, mine[0].ID)
		require.NoError(t, err)
		assert.Equal(t, jobdb.Failed, dead.Status)
		require.NotNil(t, dead.LastError)
		assert.Contains(t, *dead.LastError, "claim expired")
	})

	t.Run("completed jobs purged past retention", func(t *testing.T) {
		job := newJob("org_purge", "deal:3", "hubspot_note", 0, past, 3)
		require.NoError(t, db.EnqueueJob(ctx, job))

		claimed, err := db.ClaimDueJobs(ctx, 100, past)
		require.NoError(t, err)
		mine, _ := testHelper.Partition(claimed, ownedBy("org_purge"))
		require.Len(t, mine, 1)

		completedAt := now.Add(-time.Duration(48) * time.Hour)
		require.NoError(t, db.MarkJobSucceeded(ctx, mine[0].ID, completedAt))

		purged, err := maint.PurgeCompletedJobs(ctx, now.Add(-time.Duration(24)*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, purged, 1)

		_, err = db.GetJob(ctx, mine[0].ID)
		assert.ErrorIs(t, err, jobdb.ErrNoSuchJob)
	})

	t.Run("advisory lock runs the callback when uncontended", func(t *testing.T) {
		ran := false
		acquired, err := maint.WithAdvisoryLock(ctx, "maintenance_lock_test", func(ctx context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, acquired)
		assert.True(t, ran)
	})

	t.Run("reindex rebuilds the due index", func(t *testing.T) {
		assert.NoError(t, maint.ReIndex(ctx))
	})
}
