package syncq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Handler executes the side effect for one claimed job, e.g. pushing a note to a
// third-party CRM. Returning an error schedules a retry until the attempt budget runs
// out, then the job is kept as terminally failed.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Dispatcher polls the queue for due jobs and fans them out to worker goroutines, one
// handler per job type. Many dispatcher processes can share one queue, the claim
// statement keeps them from receiving the same job.
type Dispatcher struct {
	queue    *Queue
	conf     *Config
	clock    clockwork.Clock
	logger   *logrus.Logger
	ack      Acknowledger
	handlers map[string]Handler
	jobsChan chan Job
	shutdown chan struct{}
	wg       sync.WaitGroup
	state    atomic.Uint32
}

func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		conf:     queue.conf,
		clock:    queue.clock,
		logger:   queue.conf.Logger,
		ack:      newAcknowledger(queue, queue.conf.Logger),
		handlers: make(map[string]Handler),
		jobsChan: make(chan Job),
		shutdown: make(chan struct{}),
		state:    atomic.Uint32{},
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (d *Dispatcher) Register(jobType string, handler Handler) {
	d.handlers[jobType] = handler
}

func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.state.CompareAndSwap(uninitialized, running) {
		return errors.New("dispatcher already started")
	}

	go d.poll(ctx)

	for i := 0; i < d.conf.WorkerCount; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	d.logger.WithFields(logrus.Fields{
		"workers":       d.conf.WorkerCount,
		"poll_interval": d.conf.PollInterval,
	}).Info("dispatcher started")

	return nil
}

// Close stops polling and waits for in-flight jobs to be acknowledged.
func (d *Dispatcher) Close() {
	if !d.state.CompareAndSwap(running, uninitialized) {
		return
	}
	close(d.shutdown)
	d.wg.Wait()
}

func (d *Dispatcher) poll(ctx context.Context) {
	ticker := d.clock.NewTicker(d.conf.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(d.jobsChan)
			return
		case <-d.shutdown:
			close(d.jobsChan)
			return
		case <-ticker.Chan():
		}

		jobs, err := d.queue.ClaimBatch(ctx, d.conf.ClaimBatchSize)
		if err != nil {
			d.logger.WithError(err).Error("failed to claim due jobs")
			continue
		}

		for _, job := range jobs {
			select {
			case d.jobsChan <- job:
			case <-d.shutdown:
				// Unsent claims stay RUNNING until the stalled-claim requeue
				// makes them eligible again.
				close(d.jobsChan)
				return
			}
		}
	}
}

func (d *Dispatcher) work(ctx context.Context, num int) {
	defer d.wg.Done()

	for job := range d.jobsChan {
		d.execute(ctx, num, job)
	}
}

func (d *Dispatcher) execute(ctx context.Context, num int, job Job) {
	handler, ok := d.handlers[job.JobType]
	if !ok {
		d.logger.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"job_type": job.JobType,
		}).Warn("no handler registered for job type")
		d.acknowledge(ctx, job, Failure("no handler registered for job type "+job.JobType))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, d.conf.JobTimeout)
	defer cancel()

	start := d.clock.Now()
	err := d.handle(jobCtx, handler, job)
	metrics.jobElapsedMS.WithLabelValues(job.JobType).Observe(float64(d.clock.Since(start).Milliseconds()))

	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"job_type":   job.JobType,
			"owner_id":   job.OwnerID,
			"attempt":    job.Attempts,
			"worker_num": num,
			"error":      err,
		}).Error("job execution failed")
		d.acknowledge(ctx, job, Failure(err.Error()))
		return
	}

	d.acknowledge(ctx, job, Success)
}

func (d *Dispatcher) handle(ctx context.Context, handler Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler.Handle(ctx, job)
}

func (d *Dispatcher) acknowledge(ctx context.Context, job Job, ack Acknowledgement) {
	if err := d.ack.Acknowledge(ctx, job, ack); err != nil {
		// The job stays RUNNING and will be recovered by the stalled-claim requeue.
		d.logger.WithFields(logrus.Fields{
			"job_id": job.ID,
			"ack":    ack.String(),
			"error":  err,
		}).Error("failed to acknowledge job")
	}
}
