// Package event defines the closed set of push-channel events the console
// consumes and the single decode point for raw channel messages.
package event

import (
	"encoding/json"
	"errors"
)

// Type identifies a push-channel event.
type Type string

const (
	TypeInvoiceCreated    Type = "invoice.created"
	TypeInvoiceFailed     Type = "invoice.failed"
	TypeInvoiceCancelled  Type = "invoice.cancelled"
	TypeCreditNoteCreated Type = "credit_note.created"
	TypeBulkJobProgress   Type = "bulk_job.progress"
	TypeBulkJobCompleted  Type = "bulk_job.completed"
)

// Types lists every event type the console subscribes to.
func Types() []Type {
	return []Type{
		TypeInvoiceCreated,
		TypeInvoiceFailed,
		TypeInvoiceCancelled,
		TypeCreditNoteCreated,
		TypeBulkJobProgress,
		TypeBulkJobCompleted,
	}
}

// ErrIgnore marks a channel message that carries no consumable event:
// heartbeats, unrelated traffic, unknown types, or malformed payloads.
// Callers drop these without surfacing an error.
var ErrIgnore = errors.New("message carries no consumable event")

// Event is the closed tagged union over the six event types. Payloads are
// decoded once here, never re-validated downstream.
type Event interface {
	EventType() Type
	Business() string
}

type InvoiceCreated struct {
	BusinessID    string `json:"business_id"`
	InvoiceID     string `json:"invoice_id"`
	OrderID       string `json:"order_id"`
	InvoiceNumber string `json:"invoice_number"`
}

func (e InvoiceCreated) EventType() Type  { return TypeInvoiceCreated }
func (e InvoiceCreated) Business() string { return e.BusinessID }

type InvoiceFailed struct {
	BusinessID   string `json:"business_id"`
	InvoiceID    string `json:"invoice_id"`
	OrderID      string `json:"order_id"`
	ErrorMessage string `json:"error_message"`
}

func (e InvoiceFailed) EventType() Type  { return TypeInvoiceFailed }
func (e InvoiceFailed) Business() string { return e.BusinessID }

type InvoiceCancelled struct {
	BusinessID string `json:"business_id"`
	InvoiceID  string `json:"invoice_id"`
	OrderID    string `json:"order_id"`
}

func (e InvoiceCancelled) EventType() Type  { return TypeInvoiceCancelled }
func (e InvoiceCancelled) Business() string { return e.BusinessID }

type CreditNoteCreated struct {
	BusinessID   string `json:"business_id"`
	CreditNoteID string `json:"credit_note_id"`
	InvoiceID    string `json:"invoice_id"`
	OrderID      string `json:"order_id"`
}

func (e CreditNoteCreated) EventType() Type  { return TypeCreditNoteCreated }
func (e CreditNoteCreated) Business() string { return e.BusinessID }

// BulkJobProgress is an authoritative snapshot of the server-side batch, not
// a delta. Each event fully replaces the previous counters.
type BulkJobProgress struct {
	BusinessID  string  `json:"business_id"`
	Processed   int     `json:"processed"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	TotalOrders int     `json:"total_orders"`
	Progress    float64 `json:"progress"`
}

func (e BulkJobProgress) EventType() Type  { return TypeBulkJobProgress }
func (e BulkJobProgress) Business() string { return e.BusinessID }

type BulkJobCompleted struct {
	BusinessID  string `json:"business_id"`
	Processed   int    `json:"processed"`
	Successful  int    `json:"successful"`
	Failed      int    `json:"failed"`
	TotalOrders int    `json:"total_orders"`
}

func (e BulkJobCompleted) EventType() Type  { return TypeBulkJobCompleted }
func (e BulkJobCompleted) Business() string { return e.BusinessID }

type envelope struct {
	Type     Type `json:"type"`
	Metadata struct {
		EventType Type `json:"event_type"`
	} `json:"metadata"`
	BusinessID string          `json:"business_id"`
	Data       json.RawMessage `json:"data"`
}

// Decode parses a raw channel message into a typed event. Messages without a
// recognizable type or without a data payload yield ErrIgnore; the channel
// carries heartbeats and unrelated traffic, so that is not an error
// condition.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrIgnore
	}

	typ := env.Type
	if typ == "" {
		typ = env.Metadata.EventType
	}
	if typ == "" || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, ErrIgnore
	}

	switch typ {
	case TypeInvoiceCreated:
		var p InvoiceCreated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrIgnore
		}
		if p.BusinessID == "" {
			p.BusinessID = env.BusinessID
		}
		return p, nil
	case TypeInvoiceFailed:
		var p InvoiceFailed
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrIgnore
		}
		if p.BusinessID == "" {
			p.BusinessID = env.BusinessID
		}
		return p, nil
	case TypeInvoiceCancelled:
		var p InvoiceCancelled
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrIgnore
		}
		if p.BusinessID == "" {
			p.BusinessID = env.BusinessID
		}
		return p, nil
	case TypeCreditNoteCreated:
		var p CreditNoteCreated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrIgnore
		}
		if p.BusinessID == "" {
			p.BusinessID = env.BusinessID
		}
		return p, nil
	case TypeBulkJobProgress:
		var p BulkJobProgress
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrIgnore
		}
		if p.BusinessID == "" {
			p.BusinessID = env.BusinessID
		}
		return p, nil
	case TypeBulkJobCompleted:
		var p BulkJobCompleted
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrIgnore
		}
		if p.BusinessID == "" {
			p.BusinessID = env.BusinessID
		}
		return p, nil
	default:
		return nil, ErrIgnore
	}
}
