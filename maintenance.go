package syncq

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/SixtySecondsApp/pg-sync-queue/internal/jobdb"
)

const (
	maintenanceExecutors  = 3
	maintenanceJobTimeout = time.Minute * 5
)

type JobScheduler interface {
	SetUp()
	Start()
	Close()
}

var (
	_ JobRegister  = &MaintenanceProcessor{}
	_ JobScheduler = &MaintenanceProcessor{}
)

// MaintenanceProcessor runs the queue's periodic upkeep: reclaiming stalled claims,
// purging completed rows past retention and rebuilding the hot index. Schedules are
// standard cron expressions, ordered in a min-heap by next run time. Each handler runs
// under a Postgres advisory lock so concurrent instances don't duplicate work.
type MaintenanceProcessor struct {
	baseJobHandler
	registeredJobs map[string]HandleFunc
	jobMetas       []JobMeta
	jobsChan       chan string
	clock          clockwork.Clock
	shutdown       chan struct{}
	state          atomic.Uint32
}

type maintenanceSchedule struct {
	meta      JobMeta
	schedule  cron.Schedule
	nextRunAt time.Time
}

func NewMaintenanceProcessor(conf *Config, db jobdb.JobsMaintenanceDB, clock clockwork.Clock) *MaintenanceProcessor {
	b := baseJobHandler{conf: conf, db: db, clock: clock, logger: conf.Logger}
	return &MaintenanceProcessor{
		baseJobHandler: b,
		registeredJobs: make(map[string]HandleFunc),
		clock:          clock,
		jobMetas:       make([]JobMeta, 0),
		jobsChan:       make(chan string),
		shutdown:       make(chan struct{}),
	}
}

func (m *MaintenanceProcessor) SetUp() {
	handlers := []JobHandler{
		newStalledRequeueJob(m.conf, m.db, m.clock),
		newPurgeCompletedJob(m.conf, m.db, m.clock),
		newReindexJob(m.conf, m.db, m.clock),
	}

	for _, j := range handlers {
		m.Register(j)
	}
}

func (m *MaintenanceProcessor) Register(handle JobHandler) {
	handleFunc := func(ctx context.Context) error {
		return handle.Handle(ctx)
	}
	m.registeredJobs[handle.Name()] = handleFunc
	m.jobMetas = append(m.jobMetas, handle)
}

func (m *MaintenanceProcessor) Start() {
	if !m.state.CompareAndSwap(uninitialized, running) {
		return
	}

	go m.orchestrate()

	for i := 0; i < maintenanceExecutors; i++ {
		go m.execute()
	}
}

func (m *MaintenanceProcessor) Close() {
	if !m.state.CompareAndSwap(running, uninitialized) {
		return
	}
	close(m.shutdown)
}

func (m *MaintenanceProcessor) orchestrate() {
	queue := NewJobSchedulerQueue()
	for _, meta := range m.jobMetas {
		schedule, err := cron.ParseStandard(meta.PeriodicSchedule())
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"job":      meta.Name(),
				"schedule": meta.PeriodicSchedule(),
			}).Error("unable to parse crontab schedule")
			continue
		}
		queue.Push(&maintenanceSchedule{
			meta:      meta,
			schedule:  schedule,
			nextRunAt: schedule.Next(m.clock.Now()),
		})
	}

	for queue.Len() > 0 {
		next := queue.Pop()
		dur := next.nextRunAt.Sub(m.clock.Now())
		// in case of negative just fire right away, the job is already overdue.
		if dur < 0 {
			dur = time.Millisecond * 100
		}

		select {
		case <-m.shutdown:
			return
		case <-m.clock.After(dur):
		}

		// in case more than one job is overdue/ready. This can happen when frequently
		// running jobs eventually overlap with longer waiting jobs that are ready.
		now := m.clock.Now()
		due := []*maintenanceSchedule{next}
		for queue.Len() > 0 && !queue.Peek().nextRunAt.After(now) {
			due = append(due, queue.Pop())
		}

		for _, ready := range due {
			ready.nextRunAt = ready.schedule.Next(now)
			queue.Push(ready)

			select {
			case m.jobsChan <- ready.meta.Name():
			case <-m.shutdown:
				return
			}
		}
	}
}

func (m *MaintenanceProcessor) execute() {
	for {
		select {
		case <-m.shutdown:
			return
		case jobName := <-m.jobsChan:
			ctx, cancel := context.WithTimeout(context.Background(), maintenanceJobTimeout)
			handler := m.registeredJobs[jobName]
			if err := handler(ctx); err != nil {
				m.logger.WithFields(logrus.Fields{
					"job":   jobName,
					"error": err,
				}).Error("maintenance job failed")
			}
			cancel()
		}
	}
}
