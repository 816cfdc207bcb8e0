package synclog

import (
	"encoding/json"
	"time"
)

// Status represents the outcome of one synchronization attempt.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Trigger identifies what started a synchronization attempt.
type Trigger string

const (
	TriggerAuto     Trigger = "auto"
	TriggerManual   Trigger = "manual"
	TriggerRetryJob Trigger = "retry_job"
)

// Entry is one immutable audit record of one synchronization attempt for one
// invoice. Entries are created server-side only; this package never mutates
// them.
type Entry struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Status      Status          `json:"status"`
	TriggeredBy Trigger         `json:"triggered_by"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	DurationMS  *int64          `json:"duration_ms,omitempty"`
	Request     json.RawMessage `json:"request,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsTerminal reports whether the attempt reached a final outcome.
func (e Entry) IsTerminal() bool {
	switch e.Status {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
