// Package ledger exposes the read-only audit ledger of synchronization
// attempts. Mutation happens server-side as a side effect of retry/cancel/
// enable commands; this package only loads and derives.
package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/domain/synclog"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
)

// Lister is the slice of the billing API the ledger needs.
type Lister interface {
	ListSyncLogs(ctx context.Context, invoiceID string) ([]billingclient.SyncLog, error)
}

type Service struct {
	client Lister
	logger *zap.Logger
}

func NewService(client Lister, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		logger: logger.Named("ledger"),
	}
}

// Load fetches the ledger for an invoice, most-recent-first. A load failure
// yields an empty sequence: the ledger is supplementary audit information,
// and the invoice's primary status does not depend on it.
func (s *Service) Load(ctx context.Context, invoiceID string) []synclog.Entry {
	logs, err := s.client.ListSyncLogs(ctx, invoiceID)
	if err != nil {
		s.logger.Warn("sync_log_load_failed",
			zap.String("invoice_id", invoiceID),
			zap.Error(err),
		)
		return nil
	}

	entries := make([]synclog.Entry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, synclog.Entry{
			ID:          l.ID,
			InvoiceID:   l.InvoiceID,
			Status:      synclog.Status(l.Status),
			TriggeredBy: synclog.Trigger(l.TriggeredBy),
			RetryCount:  l.RetryCount,
			MaxRetries:  l.MaxRetries,
			NextRetryAt: l.NextRetryAt,
			DurationMS:  l.DurationMS,
			Request:     l.Request,
			Response:    l.Response,
			CreatedAt:   l.CreatedAt,
		})
	}
	return entries
}

// View bundles the ledger with its derived flags for display.
type View struct {
	Entries              []synclog.Entry `json:"entries"`
	AutoRetryEnabled     bool            `json:"auto_retry_enabled"`
	AutoRetryDisabled    bool            `json:"auto_retry_disabled"`
	RetryBudgetExhausted bool            `json:"retry_budget_exhausted"`
}

// LoadView loads the ledger and computes the derived enablement flags.
func (s *Service) LoadView(ctx context.Context, invoiceID string) View {
	entries := s.Load(ctx, invoiceID)
	return View{
		Entries:              entries,
		AutoRetryEnabled:     synclog.AutoRetryEnabled(entries),
		AutoRetryDisabled:    synclog.AutoRetryDisabled(entries),
		RetryBudgetExhausted: synclog.RetryBudgetExhausted(entries),
	}
}
