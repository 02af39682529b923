package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tysite/internal/storage"
)

// DeliverJobType is the job queue type for inquiries awaiting delivery.
const DeliverJobType = "contact_deliver"

// DefaultSubmitDelay mirrors the latency of the original simulated endpoint.
const DefaultSubmitDelay = 1500 * time.Millisecond

// SimulatedSender accepts every submission after Delay. It stops early with
// ctx.Err() if the context ends first.
type SimulatedSender struct {
	Delay time.Duration
}

func (s SimulatedSender) Send(ctx context.Context, _ Form) error {
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InquiryStore is the persistence the QueueSender needs. Implemented by storage.Store.
type InquiryStore interface {
	SaveInquiry(q storage.Inquiry) error
	EnqueueJob(job storage.Job) error
}

// QueueSender persists the inquiry and enqueues a delivery job for the worker.
type QueueSender struct {
	Store InquiryStore
	Now   func() time.Time
}

// DeliverPayload is the JSON payload of a contact_deliver job.
type DeliverPayload struct {
	InquiryID string `json:"inquiry_id"`
}

func (s QueueSender) Send(ctx context.Context, f Form) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	q := storage.Inquiry{
		ID:        uuid.New().String(),
		CreatedAt: now().UTC(),
		VisitorID: VisitorFromContext(ctx),
		Name:      strings.TrimSpace(f.Name),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Message:   strings.TrimSpace(f.Message),
	}
	if err := s.Store.SaveInquiry(q); err != nil {
		return fmt.Errorf("saving inquiry: %w", err)
	}

	payload, err := json.Marshal(DeliverPayload{InquiryID: q.ID})
	if err != nil {
		return fmt.Errorf("creating job payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        DeliverJobType,
		PayloadJSON: string(payload),
	}
	if err := s.Store.EnqueueJob(job); err != nil {
		return fmt.Errorf("enqueueing delivery: %w", err)
	}
	return nil
}

type visitorKey struct{}

// WithVisitor attaches the submitting visitor's id to ctx.
func WithVisitor(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorKey{}, visitorID)
}

// VisitorFromContext returns the visitor id set by WithVisitor, or "".
func VisitorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorKey{}).(string); ok {
		return v
	}
	return ""
}
