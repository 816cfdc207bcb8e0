package billingclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	BusinessID    string          `json:"business_id"`
	Status        string          `json:"status"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	CUFE          string          `json:"cufe,omitempty"`
	PDFURL        string          `json:"pdf_url,omitempty"`
	XMLURL        string          `json:"xml_url,omitempty"`
	InvoiceURL    string          `json:"invoice_url,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ListInvoicesParams struct {
	Status      string
	OrderID     string
	CustomerID  string
	CreatedFrom string
	CreatedTo   string
	PageToken   string
	PageSize    int
}

type createInvoiceRequest struct {
	OrderID string `json:"order_id"`
}

// CreateInvoice asks the backend to issue an invoice for one order. The real
// work happens server-side; the result arrives later on the push channel.
func (c *Client) CreateInvoice(ctx context.Context, orderID string) (*Invoice, error) {
	var invoice Invoice
	err := c.doRequest(ctx, http.MethodPost, "/api/invoices", createInvoiceRequest{OrderID: orderID}, &invoice)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return &invoice, nil
}

// RetryInvoice requests a new synchronization attempt for a failed invoice.
func (c *Client) RetryInvoice(ctx context.Context, invoiceID string) error {
	path := fmt.Sprintf("/api/invoices/%s/retry", invoiceID)
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to retry invoice: %w", err)
	}
	return nil
}

// CancelAutoRetry turns off the server-scheduled background retry.
func (c *Client) CancelAutoRetry(ctx context.Context, invoiceID string) error {
	path := fmt.Sprintf("/api/invoices/%s/auto-retry/cancel", invoiceID)
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to cancel auto-retry: %w", err)
	}
	return nil
}

// EnableAutoRetry re-enables the server-scheduled background retry.
func (c *Client) EnableAutoRetry(ctx context.Context, invoiceID string) error {
	path := fmt.Sprintf("/api/invoices/%s/auto-retry/enable", invoiceID)
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to enable auto-retry: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (c *Client) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	path := fmt.Sprintf("/api/invoices/%s", id)
	var invoice Invoice
	err := c.doRequestWithRetry(ctx, http.MethodGet, path, nil, &invoice)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

// ListInvoices lists invoices with optional filtering. Results are cached
// briefly; this path backs display lists, not state decisions.
func (c *Client) ListInvoices(ctx context.Context, params ListInvoicesParams) ([]Invoice, error) {
	path := "/api/invoices"

	query := buildListInvoicesQuery(params)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	if cached, ok := c.cache.Get(path); ok {
		return cached.([]Invoice), nil
	}

	var invoices []Invoice
	err := c.doRequestWithRetry(ctx, http.MethodGet, path, nil, &invoices)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	c.cache.Set(path, invoices)
	return invoices, nil
}

func buildListInvoicesQuery(params ListInvoicesParams) url.Values {
	query := url.Values{}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.OrderID != "" {
		query.Set("order_id", params.OrderID)
	}
	if params.CustomerID != "" {
		query.Set("customer_id", params.CustomerID)
	}
	if params.CreatedFrom != "" {
		query.Set("created_from", params.CreatedFrom)
	}
	if params.CreatedTo != "" {
		query.Set("created_to", params.CreatedTo)
	}
	if params.PageToken != "" {
		query.Set("page_token", params.PageToken)
	}
	if params.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(params.PageSize))
	}
	return query
}
