// Package delivery forwards queued contact inquiries to the business.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kalambet/tysite/internal/contact"
	"github.com/kalambet/tysite/internal/storage"
)

// JobStore abstracts the job queue and inquiry operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetInquiry(id string) (storage.Inquiry, error)
	MarkInquiryDelivered(id string, at time.Time) error
}

// Worker processes contact_deliver jobs from the SQLite job queue.
type Worker struct {
	store      JobStore
	client     *http.Client
	webhookURL string
	poll       time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewWorker creates a Worker. An empty webhookURL makes the worker log each
// inquiry instead of posting it. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, client *http.Client, webhookURL string, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Worker{
		store:      store,
		client:     client,
		webhookURL: webhookURL,
		poll:       pollInterval,
		now:        time.Now,
		logger:     slog.Default(),
	}
}

// SetLogger replaces the worker's logger.
func (w *Worker) SetLogger(l *slog.Logger) {
	if l != nil {
		w.logger = l
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single contact_deliver job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{contact.DeliverJobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload contact.DeliverPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	q, err := w.store.GetInquiry(payload.InquiryID)
	if err != nil {
		return fmt.Errorf("loading inquiry %s: %w", payload.InquiryID, err)
	}
	if q.Status == "delivered" {
		return nil
	}

	if w.webhookURL == "" {
		w.logger.Info("new inquiry",
			"id", q.ID, "name", q.Name, "email", q.Email, "phone", q.Phone, "message", q.Message)
	} else if err := w.post(ctx, q); err != nil {
		return err
	}

	if err := w.store.MarkInquiryDelivered(q.ID, w.now()); err != nil {
		return fmt.Errorf("marking inquiry delivered: %w", err)
	}
	return nil
}

func (w *Worker) post(ctx context.Context, q storage.Inquiry) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encoding inquiry: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting inquiry: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
