package bulk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/domain/event"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
	"github.com/probabilityIA/invoicing-console/pkg/snowflake"
)

type mockSubmitter struct {
	mu        sync.Mutex
	calls     int
	submitErr error
	lastIDs   []string
}

func (m *mockSubmitter) CreateInvoicesBulk(ctx context.Context, orderIDs []string, businessID string) (*billingclient.BulkCreateAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastIDs = append([]string(nil), orderIDs...)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &billingclient.BulkCreateAck{Accepted: len(orderIDs)}, nil
}

func newTestOrchestrator(t *testing.T, submitter *mockSubmitter, opts Options) *Orchestrator {
	node, err := snowflake.NewNode()
	require.NoError(t, err)
	return NewOrchestratorWithOptions(submitter, node, zap.NewNop(), opts)
}

func TestSubmit_EmptySelection(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{})

	_, err := o.Submit(context.Background(), "biz-1", nil)
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Equal(t, 0, submitter.calls)
}

func TestSubmit_Success(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1", "ord-2", "ord-3"})
	require.NoError(t, err)

	assert.Equal(t, StateRunning, view.State)
	assert.Equal(t, 3, view.Counters.Total)
	assert.Equal(t, 0, view.Counters.Processed)
	assert.False(t, view.Completed)
	for _, orderID := range []string{"ord-1", "ord-2", "ord-3"} {
		assert.Equal(t, OrderPending, view.Orders[orderID].Status)
	}
	assert.Equal(t, []string{"ord-1", "ord-2", "ord-3"}, submitter.lastIDs)
}

func TestSubmit_CommandFailureRegistersNothing(t *testing.T) {
	submitter := &mockSubmitter{submitErr: errors.New("bad gateway")}
	o := newTestOrchestrator(t, submitter, Options{})

	_, err := o.Submit(context.Background(), "biz-1", []string{"ord-1"})
	require.Error(t, err)
	assert.Empty(t, o.Jobs())
}

func TestOnEvent_ProgressSnapshots(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: time.Minute})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1", "ord-2", "ord-3", "ord-4"})
	require.NoError(t, err)

	o.OnEvent(event.BulkJobProgress{BusinessID: "biz-1", Processed: 2, Successful: 2, Failed: 0, TotalOrders: 4})

	got, err := o.Job(view.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Counters.Processed)
	assert.Equal(t, 2, got.Counters.Successful)
	assert.Equal(t, 4, got.Counters.Total)

	// Snapshots replace, never accumulate: a duplicate does not double count.
	o.OnEvent(event.BulkJobProgress{BusinessID: "biz-1", Processed: 2, Successful: 2, Failed: 0, TotalOrders: 4})
	got, _ = o.Job(view.ID)
	assert.Equal(t, 2, got.Counters.Processed)

	// Total stays pinned to the selection size regardless of the event.
	o.OnEvent(event.BulkJobProgress{BusinessID: "biz-1", Processed: 3, Successful: 2, Failed: 1, TotalOrders: 99})
	got, _ = o.Job(view.ID)
	assert.Equal(t, 4, got.Counters.Total)
	assert.Equal(t, 3, got.Counters.Processed)
}

func TestOnEvent_CompletionEvent(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: time.Minute})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1", "ord-2"})
	require.NoError(t, err)

	o.OnEvent(event.BulkJobCompleted{BusinessID: "biz-1", Processed: 2, Successful: 1, Failed: 1, TotalOrders: 2})

	got, err := o.Job(view.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, CompletedByEvent, got.Cause)
	assert.Equal(t, 2, got.Counters.Processed)
	assert.Empty(t, got.Note)

	// Events after completion are ignored.
	o.OnEvent(event.BulkJobProgress{BusinessID: "biz-1", Processed: 9, Successful: 9, Failed: 0})
	got, _ = o.Job(view.ID)
	assert.Equal(t, 2, got.Counters.Processed)
}

func TestOnEvent_PerOrderResults(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: time.Minute})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1", "ord-2"})
	require.NoError(t, err)

	o.OnEvent(event.InvoiceCreated{BusinessID: "biz-1", InvoiceID: "inv-1", OrderID: "ord-1"})

	got, _ := o.Job(view.ID)
	assert.Equal(t, OrderSuccess, got.Orders["ord-1"].Status)
	assert.Equal(t, "inv-1", got.Orders["ord-1"].InvoiceID)
	assert.False(t, got.Completed)

	// Out-of-selection orders are ignored.
	o.OnEvent(event.InvoiceCreated{BusinessID: "biz-1", InvoiceID: "inv-x", OrderID: "ord-99"})
	got, _ = o.Job(view.ID)
	assert.NotContains(t, got.Orders, "ord-99")

	// Last order terminal completes the job without an explicit event.
	o.OnEvent(event.InvoiceFailed{BusinessID: "biz-1", OrderID: "ord-2", ErrorMessage: "DIAN rejected"})
	got, _ = o.Job(view.ID)
	assert.Equal(t, OrderFailed, got.Orders["ord-2"].Status)
	assert.Equal(t, "DIAN rejected", got.Orders["ord-2"].ErrorMessage)
	assert.True(t, got.Completed)
	assert.Equal(t, CompletedByOrders, got.Cause)
}

func TestOnEvent_DuplicateOrderResultIgnored(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: time.Minute})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1", "ord-2"})
	require.NoError(t, err)

	o.OnEvent(event.InvoiceCreated{BusinessID: "biz-1", InvoiceID: "inv-1", OrderID: "ord-1"})
	// Redelivery with a conflicting outcome does not flip the terminal status.
	o.OnEvent(event.InvoiceFailed{BusinessID: "biz-1", OrderID: "ord-1", ErrorMessage: "late duplicate"})

	got, _ := o.Job(view.ID)
	assert.Equal(t, OrderSuccess, got.Orders["ord-1"].Status)
}

func TestOnEvent_BusinessFilter(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: time.Minute})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1"})
	require.NoError(t, err)

	o.OnEvent(event.BulkJobCompleted{BusinessID: "biz-other", Processed: 1, Successful: 1})

	got, _ := o.Job(view.ID)
	assert.False(t, got.Completed)
}

func TestFallbackTimeout(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: 20 * time.Millisecond})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := o.Job(view.ID)
		return err == nil && got.Completed
	}, time.Second, 5*time.Millisecond)

	got, _ := o.Job(view.ID)
	assert.Equal(t, CompletedByTimeout, got.Cause)
	assert.NotEmpty(t, got.Note, "timeout completion carries an advisory note")
}

func TestCompletionRace_EventBeatsTimer(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: 30 * time.Millisecond})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1"})
	require.NoError(t, err)

	o.OnEvent(event.BulkJobCompleted{BusinessID: "biz-1", Processed: 1, Successful: 1})

	// Give the timer a chance to fire; the cause must not change.
	time.Sleep(60 * time.Millisecond)
	got, _ := o.Job(view.ID)
	assert.Equal(t, CompletedByEvent, got.Cause)
}

func TestClose(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{FallbackTimeout: time.Minute})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1"})
	require.NoError(t, err)

	o.Close(view.ID)

	_, err = o.Job(view.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	// Late events for the closed job are harmless.
	o.OnEvent(event.BulkJobCompleted{BusinessID: "biz-1", Processed: 1, Successful: 1})
}

func TestSweeper_DropsExpiredJobs(t *testing.T) {
	submitter := &mockSubmitter{}
	o := newTestOrchestrator(t, submitter, Options{
		FallbackTimeout: time.Minute,
		Retention:       10 * time.Millisecond,
		SweepInterval:   10 * time.Millisecond,
	})

	view, err := o.Submit(context.Background(), "biz-1", []string{"ord-1"})
	require.NoError(t, err)
	o.OnEvent(event.BulkJobCompleted{BusinessID: "biz-1", Processed: 1, Successful: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	assert.Eventually(t, func() bool {
		_, err := o.Job(view.ID)
		return errors.Is(err, ErrJobNotFound)
	}, time.Second, 10*time.Millisecond)
}
