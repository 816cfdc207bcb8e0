package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/probabilityIA/invoicing-console/internal/bulk"
	"github.com/probabilityIA/invoicing-console/pkg/snowflake"
)

type submitBulkJobRequest struct {
	OrderIDs   []string `json:"order_ids"`
	BusinessID string   `json:"business_id"`
}

// SubmitBulkJob accepts an order selection and fires the batch-create
// command. The response is the initial job view; progress arrives via
// GET /api/bulk-jobs/:id.
func (r *Router) SubmitBulkJob(c *gin.Context) {
	var req submitBulkJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	businessID := req.BusinessID
	if businessID == "" {
		businessID = r.cfg.BusinessID
	}

	view, err := r.orchestrator.Submit(c.Request.Context(), businessID, req.OrderIDs)
	if err != nil {
		if errors.Is(err, bulk.ErrEmptySelection) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		r.apiError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

func (r *Router) GetBulkJob(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	view, err := r.orchestrator.Job(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bulk job not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// CloseBulkJob drops the job from the local registry. The server keeps
// processing the batch either way.
func (r *Router) CloseBulkJob(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	r.orchestrator.Close(id)
	c.Status(http.StatusNoContent)
}

// ListBulkJobs is the ops view of every tracked job, completed or not.
func (r *Router) ListBulkJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": r.orchestrator.Jobs()})
}
