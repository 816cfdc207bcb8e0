// Package correlate matches inbound push-channel events to locally pending
// operations by shared entity identifier. It is shared by the retry machine
// and the bulk orchestrator.
package correlate

import "github.com/probabilityIA/invoicing-console/internal/domain/event"

// Keys identifies a pending local operation. InvoiceID may be empty when the
// operation was started from an order that has no invoice yet.
type Keys struct {
	InvoiceID string
	OrderID   string
}

// Matches reports whether an inbound event resolves the pending operation
// identified by keys. The invoice id is authoritative; the order id is a
// fallback because some server paths report results keyed by order rather
// than invoice.
func Matches(ev event.Event, keys Keys) bool {
	invoiceID, orderID, ok := resolutionKeys(ev)
	if !ok {
		return false
	}
	if keys.InvoiceID != "" && invoiceID != "" {
		return invoiceID == keys.InvoiceID
	}
	if keys.OrderID != "" && orderID != "" {
		return orderID == keys.OrderID
	}
	return false
}

// MatchedByOrderFallback reports whether a match relied on the order id
// rather than the invoice id. Callers warn on this path: an order with
// multiple invoices (credit notes) makes the fallback ambiguous.
func MatchedByOrderFallback(ev event.Event, keys Keys) bool {
	if !Matches(ev, keys) {
		return false
	}
	invoiceID, _, _ := resolutionKeys(ev)
	return keys.InvoiceID == "" || invoiceID == ""
}

// resolutionKeys extracts the correlation identifiers from events that can
// resolve a pending operation. Aggregate events (bulk progress/completion)
// carry no per-entity keys and never match.
func resolutionKeys(ev event.Event) (invoiceID, orderID string, ok bool) {
	switch e := ev.(type) {
	case event.InvoiceCreated:
		return e.InvoiceID, e.OrderID, true
	case event.InvoiceFailed:
		return e.InvoiceID, e.OrderID, true
	case event.InvoiceCancelled:
		return e.InvoiceID, e.OrderID, true
	case event.CreditNoteCreated:
		return e.InvoiceID, e.OrderID, true
	default:
		return "", "", false
	}
}
