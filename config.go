package syncq

import (
	"crypto/tls"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	///////////////////
	// QUEUE SECTION //
	///////////////////

	// Interval rate for polling the queue for due jobs.
	PollInterval time.Duration

	// Upper bound on jobs claimed per poll.
	ClaimBatchSize int

	// Number of dispatcher goroutines executing claimed jobs.
	WorkerCount int

	// Per-job execution deadline applied by the dispatcher.
	JobTimeout time.Duration

	// Attempt ceiling applied when an enqueue request does not set one.
	DefaultMaxAttempts int

	// Retry delay after a failed attempt grows exponentially from RetryBackoffBase,
	// capped at RetryBackoffMax.
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration

	/////////////////////////
	// MAINTENANCE SECTION //
	/////////////////////////

	// A RUNNING job whose claim is older than StallTimeout is treated as orphaned by a
	// dead worker and made eligible again (or failed, if its attempt budget is spent).
	StallTimeout time.Duration

	// How long COMPLETED jobs are retained before the purge job deletes them.
	CompletedRetention time.Duration

	/////////////////////
	// GENERAL SECTION //
	/////////////////////

	DSN string

	TLSConfig *tls.Config

	Logger *logrus.Logger
}

type ConfigFunc func(c *Config)

func NewConfig(opts ...ConfigFunc) *Config {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &Config{
		PollInterval:       time.Duration(5) * time.Second,
		ClaimBatchSize:     50,
		WorkerCount:        4,
		JobTimeout:         time.Duration(30) * time.Second,
		DefaultMaxAttempts: 3,
		RetryBackoffBase:   time.Duration(30) * time.Second,
		RetryBackoffMax:    time.Duration(30) * time.Minute,
		StallTimeout:       time.Duration(10) * time.Minute,
		CompletedRetention: time.Duration(24) * time.Hour,
		Logger:             logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func WithPollInterval(interval time.Duration) ConfigFunc {
	return func(c *Config) {
		c.PollInterval = interval
	}
}

func WithClaimBatchSize(size int) ConfigFunc {
	return func(c *Config) {
		c.ClaimBatchSize = size
	}
}

func WithWorkerCount(count int) ConfigFunc {
	return func(c *Config) {
		c.WorkerCount = count
	}
}

func WithJobTimeout(timeout time.Duration) ConfigFunc {
	return func(c *Config) {
		c.JobTimeout = timeout
	}
}

func WithDefaultMaxAttempts(attempts int) ConfigFunc {
	return func(c *Config) {
		c.DefaultMaxAttempts = attempts
	}
}

func WithRetryBackoff(base, max time.Duration) ConfigFunc {
	return func(c *Config) {
		c.RetryBackoffBase = base
		c.RetryBackoffMax = max
	}
}

func WithStallTimeout(timeout time.Duration) ConfigFunc {
	return func(c *Config) {
		c.StallTimeout = timeout
	}
}

func WithCompletedRetention(retention time.Duration) ConfigFunc {
	return func(c *Config) {
		c.CompletedRetention = retention
	}
}

func WithDSN(dsn string) ConfigFunc {
	return func(c *Config) {
		c.DSN = dsn
	}
}

func WithTLSConfig(tlsConfig *tls.Config) ConfigFunc {
	return func(c *Config) {
		c.TLSConfig = tlsConfig
	}
}

func WithLogger(logger *logrus.Logger) ConfigFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}
