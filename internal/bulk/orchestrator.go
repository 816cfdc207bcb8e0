// Package bulk tracks batch invoice-creation jobs: one submission against
// the billing API, per-order terminal statuses fed by push-channel events,
// aggregate counters from authoritative server snapshots, and a fallback
// timer racing the completion event.
package bulk

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/domain/event"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
	"github.com/probabilityIA/invoicing-console/pkg/snowflake"
)

var (
	ErrEmptySelection = errors.New("bulk job requires at least one order")
	ErrJobNotFound    = errors.New("bulk job not found")
)

// Submitter is the slice of the billing API that accepts batch submissions.
type Submitter interface {
	CreateInvoicesBulk(ctx context.Context, orderIDs []string, businessID string) (*billingclient.BulkCreateAck, error)
}

// Options tune the orchestrator. Tests inject millisecond budgets.
type Options struct {
	// FallbackTimeout bounds how long a job waits for a completion event
	// before degrading to advisory completion.
	FallbackTimeout time.Duration
	// Retention is how long completed jobs stay queryable before the
	// sweeper drops them.
	Retention time.Duration
	// SweepInterval is the sweeper tick.
	SweepInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.FallbackTimeout <= 0 {
		o.FallbackTimeout = 30 * time.Second
	}
	if o.Retention <= 0 {
		o.Retention = 15 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	return o
}

type Orchestrator struct {
	submitter Submitter
	node      *snowflake.Node
	logger    *zap.Logger
	opts      Options

	mu   sync.Mutex
	jobs map[int64]*Job
}

func NewOrchestrator(submitter Submitter, node *snowflake.Node, logger *zap.Logger) *Orchestrator {
	return NewOrchestratorWithOptions(submitter, node, logger, Options{})
}

func NewOrchestratorWithOptions(submitter Submitter, node *snowflake.Node, logger *zap.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		submitter: submitter,
		node:      node,
		logger:    logger.Named("bulk.orchestrator"),
		opts:      opts.withDefaults(),
		jobs:      make(map[int64]*Job),
	}
}

// Submit records the selection, issues the batch-create command and arms the
// fallback timer. A failed submission aborts the job outright: no timer, no
// registered state.
func (o *Orchestrator) Submit(ctx context.Context, businessID string, orderIDs []string) (View, error) {
	if len(orderIDs) == 0 {
		return View{}, ErrEmptySelection
	}

	job := newJob(o.node.GenerateID(), businessID, orderIDs)

	if _, err := o.submitter.CreateInvoicesBulk(ctx, orderIDs, businessID); err != nil {
		o.logger.Warn("bulk_submit_failed",
			zap.String("business_id", businessID),
			zap.Int("orders", len(orderIDs)),
			zap.Error(err),
		)
		return View{}, err
	}

	o.mu.Lock()
	o.jobs[job.ID] = job
	o.mu.Unlock()

	job.markRunning(o.opts.FallbackTimeout, func() {
		if job.complete(CompletedByTimeout) {
			jobsCompleted.WithLabelValues(string(CompletedByTimeout)).Inc()
			o.logger.Info("bulk_job_timed_out",
				zap.Int64("job_id", job.ID),
				zap.String("business_id", job.BusinessID),
			)
		}
	})

	jobsSubmitted.Inc()
	o.logger.Info("bulk_job_submitted",
		zap.Int64("job_id", job.ID),
		zap.String("business_id", businessID),
		zap.Int("orders", len(orderIDs)),
	)
	return job.view(), nil
}

// Job returns the current view of one job.
func (o *Orchestrator) Job(id int64) (View, error) {
	o.mu.Lock()
	job, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return View{}, ErrJobNotFound
	}
	return job.view(), nil
}

// Jobs returns views of every tracked job, including completed ones still
// inside the retention window.
func (o *Orchestrator) Jobs() []View {
	o.mu.Lock()
	jobs := make([]*Job, 0, len(o.jobs))
	for _, job := range o.jobs {
		jobs = append(jobs, job)
	}
	o.mu.Unlock()

	views := make([]View, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.view())
	}
	return views
}

// Close drops a job from the registry, mirroring the hosting surface being
// closed. Server-side work continues regardless.
func (o *Orchestrator) Close(id int64) {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if ok {
		delete(o.jobs, id)
	}
	o.mu.Unlock()
	if ok {
		job.discard()
	}
}

// OnEvent feeds one decoded push-channel event into the active jobs.
// Registered on the subscription for invoice.created, invoice.failed,
// bulk_job.progress and bulk_job.completed.
func (o *Orchestrator) OnEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.BulkJobProgress:
		o.eachActiveJob(e.BusinessID, func(job *Job) {
			if job.applySnapshot(e.Processed, e.Successful, e.Failed) {
				o.logger.Debug("bulk_progress_applied",
					zap.Int64("job_id", job.ID),
					zap.Int("processed", e.Processed),
				)
			}
		})
	case event.BulkJobCompleted:
		o.eachActiveJob(e.BusinessID, func(job *Job) {
			job.applySnapshot(e.Processed, e.Successful, e.Failed)
			if job.complete(CompletedByEvent) {
				jobsCompleted.WithLabelValues(string(CompletedByEvent)).Inc()
				o.logger.Info("bulk_job_completed",
					zap.Int64("job_id", job.ID),
					zap.Int("successful", e.Successful),
					zap.Int("failed", e.Failed),
				)
			}
		})
	case event.InvoiceCreated:
		o.applyOrderResult(e.BusinessID, e.OrderID, true, e.InvoiceID, "")
	case event.InvoiceFailed:
		o.applyOrderResult(e.BusinessID, e.OrderID, false, e.InvoiceID, e.ErrorMessage)
	}
}

func (o *Orchestrator) applyOrderResult(businessID, orderID string, success bool, invoiceID, errMsg string) {
	o.eachActiveJob(businessID, func(job *Job) {
		if !job.applyOrderResult(orderID, success, invoiceID, errMsg) {
			return
		}
		// Every order terminal is the second completion path besides the
		// explicit completion event.
		if job.allOrdersTerminal() && job.complete(CompletedByOrders) {
			jobsCompleted.WithLabelValues(string(CompletedByOrders)).Inc()
			o.logger.Info("bulk_job_all_orders_terminal", zap.Int64("job_id", job.ID))
		}
	})
}

// eachActiveJob visits every non-completed job of a business. In practice
// one batch runs per business at a time; the loop keeps the aggregate
// correct if the UI ever races two.
func (o *Orchestrator) eachActiveJob(businessID string, fn func(*Job)) {
	o.mu.Lock()
	active := make([]*Job, 0, len(o.jobs))
	for _, job := range o.jobs {
		if businessID != "" && job.BusinessID != "" && job.BusinessID != businessID {
			continue
		}
		if job.isCompleted() {
			continue
		}
		active = append(active, job)
	}
	o.mu.Unlock()

	for _, job := range active {
		fn(job)
	}
}
