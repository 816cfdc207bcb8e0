package invoice

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an invoice.
type Status string

const (
	StatusPending   Status = "pending"
	StatusIssued    Status = "issued"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrRetryNotAllowed = errors.New("invoice is not in a retryable state")
	ErrMissingArtifact = errors.New("issued invoice is missing provider artifacts")
)

// Artifacts holds the documents returned by the billing provider once an
// invoice has been issued. They exist only for issued invoices.
type Artifacts struct {
	CUFE       string `json:"cufe"`
	PDFURL     string `json:"pdf_url"`
	XMLURL     string `json:"xml_url"`
	InvoiceURL string `json:"invoice_url"`
}

// Invoice is the core domain entity.
// It contains no transport or persistence details.
type Invoice struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	BusinessID    string          `json:"business_id"`
	Status        Status          `json:"status"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	CustomerName  string          `json:"customer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Artifacts     *Artifacts      `json:"artifacts,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInvoice creates a new invoice in pending state.
func NewInvoice(orderID, businessID, customerName string, total decimal.Decimal, currency string) *Invoice {
	return &Invoice{
		OrderID:      orderID,
		BusinessID:   businessID,
		CustomerName: customerName,
		TotalAmount:  total,
		Currency:     currency,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

// MarkIssued transitions the invoice to issued state. Provider artifacts and
// the invoice number are only ever set here; the failure message is cleared
// because artifacts and error_message are mutually exclusive.
func (i *Invoice) MarkIssued(number string, artifacts Artifacts) {
	i.Status = StatusIssued
	i.InvoiceNumber = number
	i.Artifacts = &artifacts
	i.ErrorMessage = ""
	i.UpdatedAt = time.Now().UTC()
}

// MarkFailed transitions the invoice to failed state and records the
// provider-reported error. Artifacts are dropped for the same exclusivity
// reason as in MarkIssued.
func (i *Invoice) MarkFailed(errMsg string) {
	i.Status = StatusFailed
	i.ErrorMessage = errMsg
	i.Artifacts = nil
	i.UpdatedAt = time.Now().UTC()
}

// MarkCancelled transitions the invoice to cancelled state.
func (i *Invoice) MarkCancelled() {
	i.Status = StatusCancelled
	i.ErrorMessage = ""
	i.Artifacts = nil
	i.UpdatedAt = time.Now().UTC()
}

// CanRetry reports whether a manual retry may be issued for this invoice.
func (i *Invoice) CanRetry() bool {
	return i.Status == StatusFailed
}

// Validate enforces the status/artifact exclusivity invariant: artifacts are
// present iff issued, error_message is present iff failed.
func (i *Invoice) Validate() error {
	switch i.Status {
	case StatusIssued:
		if i.Artifacts == nil || i.Artifacts.CUFE == "" {
			return ErrMissingArtifact
		}
		if i.ErrorMessage != "" {
			return errors.New("issued invoice must not carry an error message")
		}
	case StatusFailed:
		if i.Artifacts != nil {
			return errors.New("failed invoice must not carry artifacts")
		}
	default:
		if i.Artifacts != nil {
			return errors.New("artifacts are only valid on issued invoices")
		}
		if i.ErrorMessage != "" {
			return errors.New("error message is only valid on failed invoices")
		}
	}
	return nil
}
