package app

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/api"
	"github.com/probabilityIA/invoicing-console/internal/auth"
	"github.com/probabilityIA/invoicing-console/internal/bulk"
	"github.com/probabilityIA/invoicing-console/internal/config"
	"github.com/probabilityIA/invoicing-console/internal/domain/event"
	"github.com/probabilityIA/invoicing-console/internal/ledger"
	"github.com/probabilityIA/invoicing-console/internal/retry"
	"github.com/probabilityIA/invoicing-console/pkg/authclient"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
	zaplog "github.com/probabilityIA/invoicing-console/pkg/log"
	"github.com/probabilityIA/invoicing-console/pkg/pushchannel"
	"github.com/probabilityIA/invoicing-console/pkg/snowflake"
)

// RunServer starts the HTTP server, the push-channel subscription and the
// background sweeper.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,

			// Infrastructure (Adapters)
			authclient.NewFromEnv,
			newBillingClient,
			pushchannel.NewFromEnv,

			// Billing API interface bindings
			fx.Annotate(
				func(c *billingclient.Client) *billingclient.Client { return c },
				fx.As(new(retry.Commander)),
				fx.As(new(retry.InvoiceFetcher)),
				fx.As(new(ledger.Lister)),
				fx.As(new(bulk.Submitter)),
			),

			// Services
			ledger.NewService,
			newRetryService,
			newOrchestrator,

			// Auth
			auth.NewMiddleware,

			// API
			api.NewRouter,
		),
		snowflake.Module, // Snowflake ID Module
		zaplog.Module,    // Logger Module
		fx.Invoke(registerHooks),
	)

	app.Run()
}

// newBillingClient authenticates billing commands with the client-credentials
// token from the auth service.
func newBillingClient(creds *authclient.Client) *billingclient.Client {
	return billingclient.NewWithCredentials(billingclient.LoadFromEnv(), creds)
}

func newRetryService(cfg *config.Config, commander retry.Commander, fetcher retry.InvoiceFetcher, ledgerSvc *ledger.Service, logger *zap.Logger) *retry.Service {
	return retry.NewServiceWithOptions(commander, fetcher, ledgerSvc, logger, retry.Options{
		ProgressInterval: cfg.RetryProgressInterval,
	})
}

func newOrchestrator(cfg *config.Config, submitter bulk.Submitter, node *snowflake.Node, logger *zap.Logger) *bulk.Orchestrator {
	return bulk.NewOrchestratorWithOptions(submitter, node, logger, bulk.Options{
		FallbackTimeout: cfg.BulkFallbackTimeout,
		Retention:       cfg.BulkRetention,
		SweepInterval:   cfg.BulkSweepInterval,
	})
}

func registerHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	router *api.Router,
	channel *pushchannel.Client,
	retrySvc *retry.Service,
	orchestrator *bulk.Orchestrator,
	logger *zap.Logger,
) {
	var subscription *pushchannel.Subscription
	var sweeperCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			sub, err := channel.Subscribe(ctx, cfg.BusinessID, event.Types())
			if err != nil {
				return err
			}
			subscription = sub

			// Retry machines and bulk jobs share the stream; both see every
			// event type they care about.
			for _, t := range []event.Type{
				event.TypeInvoiceCreated,
				event.TypeInvoiceFailed,
				event.TypeInvoiceCancelled,
				event.TypeCreditNoteCreated,
			} {
				sub.On(t, retrySvc.OnEvent)
			}
			for _, t := range []event.Type{
				event.TypeInvoiceCreated,
				event.TypeInvoiceFailed,
				event.TypeBulkJobProgress,
				event.TypeBulkJobCompleted,
			} {
				sub.On(t, orchestrator.OnEvent)
			}

			sweeperCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			sweeperCancel = cancel
			go orchestrator.Run(sweeperCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			if subscription != nil {
				subscription.Close()
			}
			if sweeperCancel != nil {
				sweeperCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}
