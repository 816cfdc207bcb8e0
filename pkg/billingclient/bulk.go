package billingclient

import (
	"context"
	"fmt"
	"net/http"
)

type bulkCreateRequest struct {
	OrderIDs   []string `json:"order_ids"`
	BusinessID string   `json:"business_id,omitempty"`
}

// BulkCreateAck acknowledges that the batch was accepted. Per-order results
// arrive asynchronously on the push channel.
type BulkCreateAck struct {
	Accepted int `json:"accepted"`
}

// CreateInvoicesBulk submits a batch of orders for invoicing.
func (c *Client) CreateInvoicesBulk(ctx context.Context, orderIDs []string, businessID string) (*BulkCreateAck, error) {
	if len(orderIDs) == 0 {
		return nil, fmt.Errorf("order_ids must not be empty")
	}

	var ack BulkCreateAck
	req := bulkCreateRequest{OrderIDs: orderIDs, BusinessID: businessID}
	if err := c.doRequest(ctx, http.MethodPost, "/api/invoices/bulk", req, &ack); err != nil {
		return nil, fmt.Errorf("failed to create invoices in bulk: %w", err)
	}
	return &ack, nil
}
