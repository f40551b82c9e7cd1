package syncq

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "sixty"
	metricsSubsystem = "sync_queue"
)

type queueMetrics struct {
	enqueuedJobs  *prometheus.CounterVec
	dedupedJobs   *prometheus.CounterVec
	claimedJobs   *prometheus.CounterVec
	succeededJobs *prometheus.CounterVec
	retriedJobs   *prometheus.CounterVec
	terminalJobs  *prometheus.CounterVec
	jobElapsedMS  *prometheus.HistogramVec

	stalledRequeues prometheus.Counter
	purgedJobs      prometheus.Counter
}

var metrics *queueMetrics

func init() {
	setupMetrics()
}

func setupMetrics() {
	cv := newCounterVecHelper
	hv := newHistogramVecHelper
	metrics = &queueMetrics{
		enqueuedJobs:  cv("enqueued_jobs", "job_type"),
		dedupedJobs:   cv("deduped_jobs", "job_type"),
		claimedJobs:   cv("claimed_jobs", "job_type"),
		succeededJobs: cv("succeeded_jobs", "job_type"),
		retriedJobs:   cv("retried_jobs", "job_type"),
		terminalJobs:  cv("terminal_jobs", "job_type"),
		jobElapsedMS:  hv("job_elapsed_ms", "job_type"),

		stalledRequeues: newCounterHelper("stalled_requeues"),
		purgedJobs:      newCounterHelper("purged_jobs"),
	}
}

func newCounterVecHelper(name string, labels ...string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{}
	opts.Namespace = metricsNamespace
	opts.Subsystem = metricsSubsystem
	opts.Name = name
	opts.Help = name
	counters := prometheus.NewCounterVec(opts, labels)
	prometheus.MustRegister(counters)
	return counters
}

func newCounterHelper(name string) prometheus.Counter {
	opts := prometheus.CounterOpts{}
	opts.Namespace = metricsNamespace
	opts.Subsystem = metricsSubsystem
	opts.Name = name
	opts.Help = name
	counter := prometheus.NewCounter(opts)
	prometheus.MustRegister(counter)
	return counter
}

func newHistogramVecHelper(name string, labels ...string) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{}
	opts.Namespace = metricsNamespace
	opts.Subsystem = metricsSubsystem
	opts.Name = name
	opts.Help = name
	opts.Buckets = prometheus.ExponentialBuckets(10, 2.5, 10)
	histograms := prometheus.NewHistogramVec(opts, labels)
	prometheus.MustRegister(histograms)
	return histograms
}
