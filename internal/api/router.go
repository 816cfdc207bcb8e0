package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/api/middleware"
	"github.com/probabilityIA/invoicing-console/internal/auth"
	"github.com/probabilityIA/invoicing-console/internal/bulk"
	"github.com/probabilityIA/invoicing-console/internal/config"
	"github.com/probabilityIA/invoicing-console/internal/ledger"
	"github.com/probabilityIA/invoicing-console/internal/retry"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
)

const (
	permCreate     = "invoices:create"
	permRetry      = "invoices:retry"
	permBulkCreate = "invoices:bulk-create"
)

type Router struct {
	engine       *gin.Engine
	server       *http.Server
	cfg          *config.Config
	retrySvc     *retry.Service
	orchestrator *bulk.Orchestrator
	ledgerSvc    *ledger.Service
	client       *billingclient.Client
	authMw       *auth.Middleware
	logger       *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	retrySvc *retry.Service,
	orchestrator *bulk.Orchestrator,
	ledgerSvc *ledger.Service,
	client *billingclient.Client,
	authMw *auth.Middleware,
	logger *zap.Logger,
) *Router {
	// Disable GIN default logger
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Add recovery middleware
	r.Use(gin.Recovery())

	// Add custom middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:       r,
		cfg:          cfg,
		retrySvc:     retrySvc,
		orchestrator: orchestrator,
		ledgerSvc:    ledgerSvc,
		client:       client,
		authMw:       authMw,
		logger:       logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	// Simple health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics endpoint
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Console API (Protected)
	api := r.engine.Group("/api")
	api.Use(r.authMw.Handler())
	{
		api.GET("/invoices", r.ListInvoices)
		api.GET("/invoices/:id", r.GetInvoice)
		api.POST("/invoices", r.authMw.RequirePermission(permCreate), r.CreateInvoice)
		api.GET("/invoices/:id/retry", r.RetryStatus)
		api.GET("/invoices/:id/sync-logs", r.ListSyncLogs)
		api.GET("/bulk-jobs/:id", r.GetBulkJob)

		retryGroup := api.Group("")
		retryGroup.Use(r.authMw.RequirePermission(permRetry))
		{
			retryGroup.POST("/invoices/:id/retry", r.StartRetry)
			retryGroup.DELETE("/invoices/:id/retry", r.DetachRetry)
			retryGroup.POST("/invoices/:id/auto-retry/cancel", r.CancelAutoRetry)
			retryGroup.POST("/invoices/:id/auto-retry/enable", r.EnableAutoRetry)
		}

		bulkGroup := api.Group("")
		bulkGroup.Use(r.authMw.RequirePermission(permBulkCreate))
		{
			bulkGroup.POST("/bulk-jobs", r.SubmitBulkJob)
			bulkGroup.DELETE("/bulk-jobs/:id", r.CloseBulkJob)
		}
	}

	// Admin Routes (Protected by ADMIN_API_TOKEN)
	admin := r.engine.Group("/admin")
	admin.Use(r.adminAuth())
	{
		admin.GET("/bulk-jobs", r.ListBulkJobs)
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

func (r *Router) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(r.cfg.AdminAPIToken)
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_token_not_configured"})
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if provided == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				provided = strings.TrimSpace(authHeader[7:])
			}
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Shutdown gracefully shuts down the HTTP server
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
