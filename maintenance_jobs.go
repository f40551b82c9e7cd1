package syncq

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/SixtySecondsApp/pg-sync-queue/internal/jobdb"
)

var (
	_ JobHandler = &stalledRequeueJobHandler{}
	_ JobHandler = &purgeCompletedJobHandler{}
	_ JobHandler = &reindexJobHandler{}
)

type HandleFunc = func(ctx context.Context) error

type JobRegister interface {
	Register(handle JobHandler)
}

type JobHandler interface {
	JobMeta
	Handle(ctx context.Context) error
}

type JobMeta interface {
	PeriodicSchedule() string
	Name() string
}

type baseJobHandler struct {
	db     jobdb.JobsMaintenanceDB
	conf   *Config
	clock  clockwork.Clock
	logger *logrus.Logger
}

// withLock runs fn under the handler's advisory lock and logs a skip when another
// instance already holds it.
func (b *baseJobHandler) withLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	acquired, err := b.db.WithAdvisoryLock(ctx, name, fn)
	if err != nil {
		return err
	}
	if !acquired {
		b.logger.WithField("job", name).Debug("skipped, another instance holds the lock")
	}

	return nil
}

type stalledRequeueJobHandler struct {
	baseJobHandler
}

func newStalledRequeueJob(conf *Config, db jobdb.JobsMaintenanceDB, clock clockwork.Clock) *stalledRequeueJobHandler {
	return &stalledRequeueJobHandler{
		baseJobHandler: baseJobHandler{
			db:     db,
			conf:   conf,
			clock:  clock,
			logger: conf.Logger,
		},
	}
}

// Handle requeues claims held past the stall timeout. Crashed pods and rolling
// deployments leave RUNNING rows behind that nobody will ever report on.
func (s *stalledRequeueJobHandler) Handle(ctx context.Context) error {
	return s.withLock(ctx, s.Name(), func(ctx context.Context) error {
		now := s.clock.Now().UTC()
		requeued, err := s.db.RequeueStalledJobs(ctx, now.Add(-s.conf.StallTimeout), now)
		if err != nil {
			return err
		}

		if requeued > 0 {
			metrics.stalledRequeues.Add(float64(requeued))
			s.logger.WithField("requeued", requeued).Warn("requeued stalled claims")
		}
		return nil
	})
}

func (s *stalledRequeueJobHandler) PeriodicSchedule() string {
	return "*/2 * * * *"
}

func (s *stalledRequeueJobHandler) Name() string {
	return "stalled_requeue"
}

type purgeCompletedJobHandler struct {
	baseJobHandler
}

func newPurgeCompletedJob(conf *Config, db jobdb.JobsMaintenanceDB, clock clockwork.Clock) *purgeCompletedJobHandler {
	return &purgeCompletedJobHandler{
		baseJobHandler: baseJobHandler{
			db:     db,
			conf:   conf,
			clock:  clock,
			logger: conf.Logger,
		},
	}
}

func (p *purgeCompletedJobHandler) Handle(ctx context.Context) error {
	return p.withLock(ctx, p.Name(), func(ctx context.Context) error {
		olderThan := p.clock.Now().UTC().Add(-p.conf.CompletedRetention)
		purged, err := p.db.PurgeCompletedJobs(ctx, olderThan)
		if err != nil {
			return err
		}

		if purged > 0 {
			metrics.purgedJobs.Add(float64(purged))
			p.logger.WithField("purged", purged).Info("purged completed jobs past retention")
		}
		return nil
	})
}

// PeriodicSchedule Start little past the beginning of every 6 hour mark to prevent
// scheduling oddities.
func (p *purgeCompletedJobHandler) PeriodicSchedule() string {
	return "5 */6 * * *"
}

func (p *purgeCompletedJobHandler) Name() string {
	return "purge_completed"
}

type reindexJobHandler struct {
	baseJobHandler
}

func newReindexJob(conf *Config, db jobdb.JobsMaintenanceDB, clock clockwork.Clock) *reindexJobHandler {
	return &reindexJobHandler{
		baseJobHandler: baseJobHandler{
			db:     db,
			conf:   conf,
			clock:  clock,
			logger: conf.Logger,
		},
	}
}

// Handle rebuilds the due-scan index. The queue has very high churn and the partial
// B-Tree accumulates empty pages that never compact on their own.
func (r *reindexJobHandler) Handle(ctx context.Context) error {
	return r.withLock(ctx, r.Name(), func(ctx context.Context) error {
		return r.db.ReIndex(ctx)
	})
}

// PeriodicSchedule Start little past midnight to prevent scheduling oddities.
func (r *reindexJobHandler) PeriodicSchedule() string {
	return "5 0 * * *"
}

func (r *reindexJobHandler) Name() string {
	return "reindex"
}
