package syncq

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

type AckStatus = string

const (
	ackSuccess AckStatus = "success"
	ackFailure AckStatus = "failure"
)

type Acknowledgement struct {
	Status AckStatus
	Reason string
}

var Success = Acknowledgement{Status: ackSuccess}

func Failure(reason string) Acknowledgement {
	return Acknowledgement{Status: ackFailure, Reason: reason}
}

func (a Acknowledgement) String() string {
	return a.Status
}

type Acknowledger interface {
	Acknowledge(ctx context.Context, job Job, ack Acknowledgement) error
}

type queueAcknowledger struct {
	queue  *Queue
	logger *logrus.Logger
}

func newAcknowledger(queue *Queue, logger *logrus.Logger) Acknowledger {
	return &queueAcknowledger{
		queue:  queue,
		logger: logger,
	}
}

func (a *queueAcknowledger) Acknowledge(ctx context.Context, job Job, ack Acknowledgement) error {
	switch ack.Status {
	case ackSuccess:
		err := a.queue.ReportSuccess(ctx, job.ID)
		if errors.Is(err, ErrJobSuperseded) {
			// The producer refreshed this job while we worked on it. The refreshed job
			// is pending with new payload, our result stands for the old one.
			a.logger.WithFields(logrus.Fields{
				"job_id":   job.ID,
				"job_type": job.JobType,
			}).Debug("success reported for a superseded job")
			return nil
		}
		if err != nil {
			return err
		}
		metrics.succeededJobs.WithLabelValues(job.JobType).Inc()
		return nil
	case ackFailure:
		terminal, err := a.queue.ReportFailure(ctx, job.ID, ack.Reason)
		if errors.Is(err, ErrJobSuperseded) {
			a.logger.WithFields(logrus.Fields{
				"job_id":   job.ID,
				"job_type": job.JobType,
			}).Debug("failure reported for a superseded job")
			return nil
		}
		if err != nil {
			return err
		}

		if terminal {
			metrics.terminalJobs.WithLabelValues(job.JobType).Inc()
			a.logger.WithFields(logrus.Fields{
				"job_id":   job.ID,
				"job_type": job.JobType,
				"owner_id": job.OwnerID,
				"error":    ack.Reason,
			}).Error("job exhausted its retry budget")
		} else {
			metrics.retriedJobs.WithLabelValues(job.JobType).Inc()
		}
		return nil
	default:
		return errors.New("unknown acknowledgement status " + ack.Status)
	}
}
