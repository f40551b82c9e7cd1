package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	syncq "github.com/SixtySecondsApp/pg-sync-queue"
)

type config struct {
	PostgresDSN    string        `env:"POSTGRES_DSN,notEmpty"`
	MetricsAddr    string        `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	ClaimBatchSize int           `env:"CLAIM_BATCH_SIZE" envDefault:"50"`
	WorkerCount    int           `env:"WORKER_COUNT" envDefault:"4"`
	JobTimeout     time.Duration `env:"JOB_TIMEOUT" envDefault:"30s"`
	StallTimeout   time.Duration `env:"STALL_TIMEOUT" envDefault:"10m"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"15s"`

	// Job type to webhook endpoint, e.g.
	// WEBHOOK_ENDPOINTS=hubspot_note:https://hooks.internal/hubspot,slack_notify:https://hooks.internal/slack
	WebhookEndpoints map[string]string `env:"WEBHOOK_ENDPOINTS,notEmpty"`
}

func main() {
	logger := logrus.New()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.WithError(err).Fatal("failed to parse environment")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Fatal("failed to parse log level")
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue, err := syncq.NewFromConfig(syncq.NewConfig(
		syncq.WithDSN(cfg.PostgresDSN),
		syncq.WithPollInterval(cfg.PollInterval),
		syncq.WithClaimBatchSize(cfg.ClaimBatchSize),
		syncq.WithWorkerCount(cfg.WorkerCount),
		syncq.WithJobTimeout(cfg.JobTimeout),
		syncq.WithStallTimeout(cfg.StallTimeout),
		syncq.WithLogger(logger),
	))
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}

	if err := queue.Init(ctx); err != nil {
		logger.WithError(err).Fatal("failed to initialize queue")
	}

	dispatcher := syncq.NewDispatcher(queue)
	webhook := syncq.NewWebhookHandler(cfg.WebhookEndpoints, cfg.WebhookTimeout, logger)
	for jobType := range cfg.WebhookEndpoints {
		dispatcher.Register(jobType, webhook)
	}

	if err := dispatcher.Start(ctx); err != nil {
		logger.WithError(err).Fatal("failed to start dispatcher")
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics listener failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	dispatcher.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	_ = queue.Close()
}
