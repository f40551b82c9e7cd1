package syncq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

var _ Handler = &WebhookHandler{}

// WebhookHandler delivers job payloads as HTTP POSTs, one endpoint per job type. It is
// the stock consumer for writeback queues whose side effect lives behind a webhook
// (CRM note push, chat notification).
type WebhookHandler struct {
	endpoints  map[string]string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewWebhookHandler(endpoints map[string]string, timeout time.Duration, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (w *WebhookHandler) Handle(ctx context.Context, job Job) error {
	endpoint, ok := w.endpoints[job.JobType]
	if !ok {
		return fmt.Errorf("no endpoint configured for job type %s", job.JobType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(job.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Job-ID", job.ID)
	req.Header.Set("X-Job-Owner", job.OwnerID)
	req.Header.Set("X-Job-Attempt", strconv.Itoa(job.Attempts))

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook %s responded with status %d", endpoint, resp.StatusCode)
	}

	w.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"endpoint": endpoint,
	}).Debug("webhook delivered")

	return nil
}
