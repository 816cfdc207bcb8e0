package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/domain/synclog"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
)

type mockLister struct {
	logs []billingclient.SyncLog
	err  error
}

func (m *mockLister) ListSyncLogs(ctx context.Context, invoiceID string) ([]billingclient.SyncLog, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.logs, nil
}

func TestLoad_MapsEntries(t *testing.T) {
	next := time.Now().Add(5 * time.Minute)
	duration := int64(850)
	mock := &mockLister{
		logs: []billingclient.SyncLog{
			{
				ID:          "log-1",
				InvoiceID:   "inv-1",
				Status:      "failed",
				TriggeredBy: "auto",
				RetryCount:  1,
				MaxRetries:  3,
				NextRetryAt: &next,
				DurationMS:  &duration,
				CreatedAt:   time.Now(),
			},
		},
	}
	svc := NewService(mock, zap.NewNop())

	entries := svc.Load(context.Background(), "inv-1")
	require.Len(t, entries, 1)
	assert.Equal(t, synclog.StatusFailed, entries[0].Status)
	assert.Equal(t, synclog.TriggerAuto, entries[0].TriggeredBy)
	assert.Equal(t, 3, entries[0].MaxRetries)
	require.NotNil(t, entries[0].NextRetryAt)
	require.NotNil(t, entries[0].DurationMS)
	assert.Equal(t, int64(850), *entries[0].DurationMS)
}

func TestLoad_FailSoft(t *testing.T) {
	mock := &mockLister{err: errors.New("ledger unavailable")}
	svc := NewService(mock, zap.NewNop())

	entries := svc.Load(context.Background(), "inv-1")
	assert.Empty(t, entries)
}

func TestLoadView_DerivedFlags(t *testing.T) {
	next := time.Now().Add(5 * time.Minute)
	mock := &mockLister{
		logs: []billingclient.SyncLog{
			{ID: "log-2", Status: "failed", NextRetryAt: &next, RetryCount: 1, MaxRetries: 3},
			{ID: "log-1", Status: "failed"},
		},
	}
	svc := NewService(mock, zap.NewNop())

	view := svc.LoadView(context.Background(), "inv-1")
	assert.Len(t, view.Entries, 2)
	assert.True(t, view.AutoRetryEnabled)
	assert.False(t, view.AutoRetryDisabled)
	assert.False(t, view.RetryBudgetExhausted)
}

func TestLoadView_FailSoftFlags(t *testing.T) {
	mock := &mockLister{err: errors.New("boom")}
	svc := NewService(mock, zap.NewNop())

	view := svc.LoadView(context.Background(), "inv-1")
	assert.Empty(t, view.Entries)
	assert.False(t, view.AutoRetryEnabled)
	assert.False(t, view.AutoRetryDisabled)
	assert.False(t, view.RetryBudgetExhausted)
}
