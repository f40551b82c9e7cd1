package syncq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/SixtySecondsApp/pg-sync-queue/mocks"
)

// runLocked makes the advisory-lock mock behave like an uncontended lock.
func runLocked(ctx context.Context, name string, fn func(ctx context.Context) error) (bool, error) {
	return true, fn(ctx)
}

func TestStalledRequeueHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockJobsMaintenanceDB(ctrl)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC))
	conf := NewConfig(WithStallTimeout(time.Duration(10) * time.Minute))
	handler := newStalledRequeueJob(conf, db, clock)

	t.Run("requeues claims older than the stall timeout", func(t *testing.T) {
		db.EXPECT().
			WithAdvisoryLock(gomock.Any(), "stalled_requeue", gomock.Any()).
			DoAndReturn(runLocked)
		db.EXPECT().
			RequeueStalledJobs(gomock.Any(), clock.Now().UTC().Add(-time.Duration(10)*time.Minute), clock.Now().UTC()).
			Return(2, nil)

		require.NoError(t, handler.Handle(context.Background()))
	})

	t.Run("lock held elsewhere skips without error", func(t *testing.T) {
		db.EXPECT().
			WithAdvisoryLock(gomock.Any(), "stalled_requeue", gomock.Any()).
			Return(false, nil)

		require.NoError(t, handler.Handle(context.Background()))
	})

	t.Run("store errors propagate", func(t *testing.T) {
		db.EXPECT().
			WithAdvisoryLock(gomock.Any(), "stalled_requeue", gomock.Any()).
			DoAndReturn(runLocked)
		db.EXPECT().
			RequeueStalledJobs(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(0, errors.New("connection refused"))

		assert.ErrorContains(t, handler.Handle(context.Background()), "connection refused")
	})
}

func TestPurgeCompletedHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockJobsMaintenanceDB(ctrl)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC))
	conf := NewConfig(WithCompletedRetention(time.Duration(24) * time.Hour))
	handler := newPurgeCompletedJob(conf, db, clock)

	db.EXPECT().
		WithAdvisoryLock(gomock.Any(), "purge_completed", gomock.Any()).
		DoAndReturn(runLocked)
	db.EXPECT().
		PurgeCompletedJobs(gomock.Any(), clock.Now().UTC().Add(-time.Duration(24)*time.Hour)).
		Return(17, nil)

	require.NoError(t, handler.Handle(context.Background()))
}

func TestReindexHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockJobsMaintenanceDB(ctrl)
	conf := NewConfig()
	handler := newReindexJob(conf, db, clockwork.NewFakeClock())

	db.EXPECT().
		WithAdvisoryLock(gomock.Any(), "reindex", gomock.Any()).
		DoAndReturn(runLocked)
	db.EXPECT().
		ReIndex(gomock.Any()).
		Return(nil)

	require.NoError(t, handler.Handle(context.Background()))
}

func TestHandlerSchedulesParse(t *testing.T) {
	conf := NewConfig()
	ctrl := gomock.NewController(t)
	db := mocks.NewMockJobsMaintenanceDB(ctrl)
	clock := clockwork.NewFakeClock()

	processor := NewMaintenanceProcessor(conf, db, clock)
	processor.SetUp()

	assert.Len(t, processor.jobMetas, 3)
	for _, meta := range processor.jobMetas {
		assert.NotEmpty(t, meta.Name())
		_, err := cron.ParseStandard(meta.PeriodicSchedule())
		assert.NoError(t, err, meta.Name())
	}
}
