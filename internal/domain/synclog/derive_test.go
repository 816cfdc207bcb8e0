package synclog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entry(status Status, nextRetry bool) Entry {
	e := Entry{Status: status}
	if nextRetry {
		at := time.Now().Add(5 * time.Minute)
		e.NextRetryAt = &at
	}
	return e
}

func TestAutoRetryEnabled(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry // most-recent-first
		want    bool
	}{
		{"empty ledger", nil, false},
		{"failed with schedule", []Entry{entry(StatusFailed, true)}, true},
		{"failed without schedule", []Entry{entry(StatusFailed, false)}, false},
		{"success only", []Entry{entry(StatusSuccess, false)}, false},
		{
			"cancellation newer than schedule",
			[]Entry{entry(StatusCancelled, false), entry(StatusFailed, true)},
			false,
		},
		{
			"schedule newer than cancellation",
			[]Entry{entry(StatusFailed, true), entry(StatusCancelled, false)},
			true,
		},
		{
			"pending on top of scheduled failure",
			[]Entry{entry(StatusPending, false), entry(StatusFailed, true)},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoRetryEnabled(tt.entries))
		})
	}
}

func TestAutoRetryDisabled(t *testing.T) {
	// Cancelled newest: disabled.
	entries := []Entry{entry(StatusCancelled, false), entry(StatusFailed, true)}
	assert.True(t, AutoRetryDisabled(entries))

	// Re-enabled after a cancellation: not disabled.
	entries = []Entry{entry(StatusFailed, true), entry(StatusCancelled, false)}
	assert.False(t, AutoRetryDisabled(entries))

	// Non-terminal entries are skipped when finding the latest terminal one.
	entries = []Entry{entry(StatusProcessing, false), entry(StatusCancelled, false)}
	assert.True(t, AutoRetryDisabled(entries))

	// Success as latest terminal entry: neither enabled nor disabled.
	entries = []Entry{entry(StatusSuccess, false), entry(StatusCancelled, false)}
	assert.False(t, AutoRetryDisabled(entries))

	assert.False(t, AutoRetryDisabled(nil))
}

func TestEnabledAndDisabledAreExclusive(t *testing.T) {
	ledgers := [][]Entry{
		nil,
		{entry(StatusFailed, true)},
		{entry(StatusCancelled, false)},
		{entry(StatusCancelled, false), entry(StatusFailed, true)},
		{entry(StatusFailed, true), entry(StatusCancelled, false)},
		{entry(StatusSuccess, false), entry(StatusFailed, true)},
	}

	for _, entries := range ledgers {
		if AutoRetryEnabled(entries) {
			assert.False(t, AutoRetryDisabled(entries))
		}
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	assert.False(t, RetryBudgetExhausted(nil))

	withBudget := []Entry{{Status: StatusFailed, RetryCount: 3, MaxRetries: 3}}
	assert.True(t, RetryBudgetExhausted(withBudget))

	remaining := []Entry{{Status: StatusFailed, RetryCount: 1, MaxRetries: 3}}
	assert.False(t, RetryBudgetExhausted(remaining))

	// Zero max_retries means no budget is enforced.
	unbounded := []Entry{{Status: StatusFailed, RetryCount: 10, MaxRetries: 0}}
	assert.False(t, RetryBudgetExhausted(unbounded))

	// Only the newest entry's counters matter.
	stale := []Entry{
		{Status: StatusFailed, RetryCount: 0, MaxRetries: 3},
		{Status: StatusFailed, RetryCount: 3, MaxRetries: 3},
	}
	assert.False(t, RetryBudgetExhausted(stale))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, Entry{Status: StatusSuccess}.IsTerminal())
	assert.True(t, Entry{Status: StatusFailed}.IsTerminal())
	assert.True(t, Entry{Status: StatusCancelled}.IsTerminal())
	assert.False(t, Entry{Status: StatusPending}.IsTerminal())
	assert.False(t, Entry{Status: StatusProcessing}.IsTerminal())
}
