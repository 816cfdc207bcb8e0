package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/probabilityIA/invoicing-console/internal/retry"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
)

// ListInvoices proxies the invoice list with the caller's filters.
func (r *Router) ListInvoices(c *gin.Context) {
	params := billingclient.ListInvoicesParams{
		Status:      c.Query("status"),
		OrderID:     c.Query("order_id"),
		CustomerID:  c.Query("customer_id"),
		CreatedFrom: c.Query("created_from"),
		CreatedTo:   c.Query("created_to"),
		PageToken:   c.Query("page_token"),
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		params.PageSize = size
	}

	invoices, err := r.client.ListInvoices(c.Request.Context(), params)
	if err != nil {
		r.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (r *Router) GetInvoice(c *gin.Context) {
	inv, err := r.client.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		if billingclient.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		r.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

type createInvoiceRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// CreateInvoice asks the backend to issue an invoice for one order. The
// result arrives later as an invoice.created or invoice.failed event.
func (r *Router) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		return
	}

	inv, err := r.client.CreateInvoice(c.Request.Context(), req.OrderID)
	if err != nil {
		r.apiError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, inv)
}

type startRetryRequest struct {
	OrderID string `json:"order_id"`
}

// StartRetry fires the retry command and returns the initial machine
// snapshot. 409 when a retry is already pending for the invoice.
func (r *Router) StartRetry(c *gin.Context) {
	var req startRetryRequest
	// Body is optional; order_id improves event correlation when present.
	_ = c.ShouldBindJSON(&req)

	snap, err := r.retrySvc.StartRetry(c.Request.Context(), c.Param("id"), req.OrderID)
	if err != nil {
		if errors.Is(err, retry.ErrRetryInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		r.apiError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}

// RetryStatus reports the machine state for an invoice, 404 when no retry
// was started this session.
func (r *Router) RetryStatus(c *gin.Context) {
	snap, ok := r.retrySvc.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no retry in progress"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DetachRetry drops the local machine; any server-side attempt continues.
func (r *Router) DetachRetry(c *gin.Context) {
	r.retrySvc.Detach(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (r *Router) CancelAutoRetry(c *gin.Context) {
	view, err := r.retrySvc.CancelAutoRetry(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *Router) EnableAutoRetry(c *gin.Context) {
	view, err := r.retrySvc.EnableAutoRetry(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListSyncLogs returns the audit ledger with the derived auto-retry flags.
// A backend load failure degrades to an empty ledger rather than an error.
func (r *Router) ListSyncLogs(c *gin.Context) {
	view := r.ledgerSvc.LoadView(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, view)
}

// apiError maps billing API failures onto the response. Upstream status
// codes pass through; anything else is a gateway-side failure.
func (r *Router) apiError(c *gin.Context, err error) {
	var apiErr *billingclient.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
