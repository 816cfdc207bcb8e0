package billingclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type SyncLog struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Status      string          `json:"status"`
	TriggeredBy string          `json:"triggered_by"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	DurationMS  *int64          `json:"duration_ms,omitempty"`
	Request     json.RawMessage `json:"request,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListSyncLogs returns the audit ledger for an invoice, most-recent-first.
func (c *Client) ListSyncLogs(ctx context.Context, invoiceID string) ([]SyncLog, error) {
	path := fmt.Sprintf("/api/invoices/%s/sync-logs", invoiceID)
	var logs []SyncLog
	err := c.doRequestWithRetry(ctx, http.MethodGet, path, nil, &logs)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	return logs, nil
}
