package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Inquiry is a contact form submission waiting for (or past) delivery.
type Inquiry struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	VisitorID   string     `json:"visitor_id,omitempty"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Message     string     `json:"message"`
	Status      string     `json:"status"` // "queued", "delivered"
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PayloadJSON string    `json:"payload_json"`
	Status      string    `json:"status"` // "pending", "running", "completed", "failed"
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	RunAfter    time.Time `json:"run_after"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastError   string    `json:"last_error,omitempty"`
}
