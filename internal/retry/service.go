// Package retry holds the per-invoice retry state machine: a retry command
// is fired at the billing API, a simulated progress indicator climbs while
// the server works, and the first matching push-channel event resolves the
// machine.
package retry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/correlate"
	"github.com/probabilityIA/invoicing-console/internal/domain/event"
	"github.com/probabilityIA/invoicing-console/internal/domain/invoice"
	"github.com/probabilityIA/invoicing-console/internal/ledger"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
)

var (
	// ErrRetryInFlight guards the per-invoice busy flag: only one retry may
	// be pending per invoice at a time.
	ErrRetryInFlight = errors.New("a retry is already in flight for this invoice")
)

// Commander is the slice of the billing API the retry machine issues
// commands through.
type Commander interface {
	RetryInvoice(ctx context.Context, invoiceID string) error
	CancelAutoRetry(ctx context.Context, invoiceID string) error
	EnableAutoRetry(ctx context.Context, invoiceID string) error
}

// InvoiceFetcher refreshes the invoice after a resolution so the display
// shows the post-retry status and artifacts.
type InvoiceFetcher interface {
	GetInvoice(ctx context.Context, id string) (*billingclient.Invoice, error)
}

// reloadTimeout bounds the ledger reload triggered by an inbound event; the
// event arrives on the channel's read goroutine and must not block it for
// long.
const reloadTimeout = 10 * time.Second

type Service struct {
	commander Commander
	fetcher   InvoiceFetcher
	ledger    *ledger.Service
	logger    *zap.Logger
	opts      Options

	mu       sync.Mutex
	machines map[string]*Machine
}

func NewService(commander Commander, fetcher InvoiceFetcher, ledgerSvc *ledger.Service, logger *zap.Logger) *Service {
	return NewServiceWithOptions(commander, fetcher, ledgerSvc, logger, Options{})
}

func NewServiceWithOptions(commander Commander, fetcher InvoiceFetcher, ledgerSvc *ledger.Service, logger *zap.Logger, opts Options) *Service {
	return &Service{
		commander: commander,
		fetcher:   fetcher,
		ledger:    ledgerSvc,
		logger:    logger.Named("retry.machine"),
		opts:      opts.withDefaults(),
		machines:  make(map[string]*Machine),
	}
}

// StartRetry issues a retry command for an invoice and arms the progress
// display. A local command failure (network, validation) aborts immediately
// back to idle; a server-side processing failure arrives later as an
// invoice.failed event.
func (s *Service) StartRetry(ctx context.Context, invoiceID, orderID string) (Snapshot, error) {
	s.mu.Lock()
	if existing, ok := s.machines[invoiceID]; ok && existing.currentState() == StateRetrying {
		s.mu.Unlock()
		return Snapshot{}, ErrRetryInFlight
	}
	m := newMachine(invoiceID, orderID, s.opts)
	s.machines[invoiceID] = m
	s.mu.Unlock()

	if err := s.commander.RetryInvoice(ctx, invoiceID); err != nil {
		m.abort()
		s.mu.Lock()
		delete(s.machines, invoiceID)
		s.mu.Unlock()
		s.logger.Warn("retry_command_failed",
			zap.String("invoice_id", invoiceID),
			zap.Error(err),
		)
		return Snapshot{}, err
	}

	retriesStarted.Inc()
	s.logger.Info("retry_started",
		zap.String("invoice_id", invoiceID),
		zap.String("order_id", orderID),
	)
	return m.snapshot(), nil
}

// Status returns the current machine snapshot for an invoice, if any retry
// has been started for it this session.
func (s *Service) Status(invoiceID string) (Snapshot, bool) {
	s.mu.Lock()
	m, ok := s.machines[invoiceID]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return m.snapshot(), true
}

// Detach drops the machine for an invoice, e.g. when the hosting view goes
// away. The server-side attempt, if any, continues regardless.
func (s *Service) Detach(invoiceID string) {
	s.mu.Lock()
	m, ok := s.machines[invoiceID]
	if ok {
		delete(s.machines, invoiceID)
	}
	s.mu.Unlock()
	if ok {
		m.halt()
	}
}

// CancelAutoRetry turns off the server-scheduled retry. Success reloads the
// ledger; failure leaves all prior state untouched.
func (s *Service) CancelAutoRetry(ctx context.Context, invoiceID string) (ledger.View, error) {
	if err := s.commander.CancelAutoRetry(ctx, invoiceID); err != nil {
		return ledger.View{}, err
	}
	s.logger.Info("auto_retry_cancelled", zap.String("invoice_id", invoiceID))
	return s.ledger.LoadView(ctx, invoiceID), nil
}

// EnableAutoRetry re-enables the server-scheduled retry. Same contract as
// CancelAutoRetry.
func (s *Service) EnableAutoRetry(ctx context.Context, invoiceID string) (ledger.View, error) {
	if err := s.commander.EnableAutoRetry(ctx, invoiceID); err != nil {
		return ledger.View{}, err
	}
	s.logger.Info("auto_retry_enabled", zap.String("invoice_id", invoiceID))
	return s.ledger.LoadView(ctx, invoiceID), nil
}

// OnEvent feeds one decoded push-channel event into the retry machines.
// Registered on the subscription for invoice.created, invoice.failed,
// invoice.cancelled and credit_note.created.
func (s *Service) OnEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.InvoiceCreated:
		s.resolveMatching(ev, true, e.InvoiceID)
	case event.InvoiceFailed:
		s.resolveMatching(ev, false, e.InvoiceID)
	case event.InvoiceCancelled:
		// Auto-retry was cancelled server-side; the ledger view changes but
		// no in-flight retry resolves.
		s.logger.Info("invoice_cancelled_observed", zap.String("invoice_id", e.InvoiceID))
	case event.CreditNoteCreated:
		s.logger.Info("credit_note_observed",
			zap.String("credit_note_id", e.CreditNoteID),
			zap.String("invoice_id", e.InvoiceID),
		)
	}
}

func (s *Service) resolveMatching(ev event.Event, success bool, eventInvoiceID string) {
	s.mu.Lock()
	var matched *Machine
	for _, m := range s.machines {
		if m.currentState() != StateRetrying {
			continue
		}
		if correlate.Matches(ev, m.keys()) {
			matched = m
			break
		}
	}
	s.mu.Unlock()

	if matched == nil {
		return
	}

	if correlate.MatchedByOrderFallback(ev, matched.keys()) {
		// An order can carry multiple invoices (credit notes); resolving by
		// order id alone is ambiguous, so it is flagged rather than silent.
		s.logger.Warn("retry_resolved_by_order_fallback",
			zap.String("invoice_id", matched.invoiceID),
			zap.String("order_id", matched.orderID),
			zap.String("event_invoice_id", eventInvoiceID),
		)
	}

	if !matched.resolve(success) {
		// Duplicate delivery of an already-applied terminal event.
		return
	}

	outcome := "success"
	if !success {
		outcome = "failed"
	}
	retriesResolved.WithLabelValues(outcome).Inc()
	s.logger.Info("retry_resolved",
		zap.String("invoice_id", matched.invoiceID),
		zap.String("outcome", outcome),
	)

	// Reload the ledger exactly once per resolution so the audit view and
	// derived flags reflect the new attempt, then refresh the invoice for
	// display.
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	s.ledger.Load(ctx, matched.invoiceID)
	s.refreshInvoice(ctx, matched)
}

func (s *Service) refreshInvoice(ctx context.Context, m *Machine) {
	if s.fetcher == nil {
		return
	}
	fresh, err := s.fetcher.GetInvoice(ctx, m.invoiceID)
	if err != nil {
		s.logger.Warn("invoice_refresh_failed",
			zap.String("invoice_id", m.invoiceID),
			zap.Error(err),
		)
		return
	}
	m.setInvoice(mapInvoice(fresh))
}

// mapInvoice converts the billing API wire shape into the domain entity.
func mapInvoice(in *billingclient.Invoice) *invoice.Invoice {
	if in == nil {
		return nil
	}
	out := &invoice.Invoice{
		ID:            in.ID,
		OrderID:       in.OrderID,
		BusinessID:    in.BusinessID,
		Status:        invoice.Status(in.Status),
		InvoiceNumber: in.InvoiceNumber,
		CustomerName:  in.CustomerName,
		TotalAmount:   in.TotalAmount,
		Currency:      in.Currency,
		ErrorMessage:  in.ErrorMessage,
		CreatedAt:     in.CreatedAt,
		UpdatedAt:     in.UpdatedAt,
	}
	if out.Status == invoice.StatusIssued {
		out.Artifacts = &invoice.Artifacts{
			CUFE:       in.CUFE,
			PDFURL:     in.PDFURL,
			XMLURL:     in.XMLURL,
			InvoiceURL: in.InvoiceURL,
		}
	}
	return out
}
