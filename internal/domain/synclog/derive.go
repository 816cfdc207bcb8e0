package synclog

// The functions below derive UI-facing flags from the audit ledger. They all
// expect entries ordered most-recent-first, which is how the billing API
// returns them. Derived state is never stored; it is recomputed on every
// ledger reload.

// AutoRetryEnabled reports whether the server still has a background retry
// scheduled for the invoice: some attempt failed with a next_retry_at set,
// and no more recent entry cancelled the schedule.
func AutoRetryEnabled(entries []Entry) bool {
	for _, e := range entries {
		if e.Status == StatusCancelled {
			return false
		}
		if e.Status == StatusFailed && e.NextRetryAt != nil {
			return true
		}
	}
	return false
}

// AutoRetryDisabled reports whether auto-retry was explicitly turned off:
// the most recent terminal entry is a cancellation and no retry remains
// scheduled. Mutually exclusive with AutoRetryEnabled by construction.
func AutoRetryDisabled(entries []Entry) bool {
	if AutoRetryEnabled(entries) {
		return false
	}
	for _, e := range entries {
		if !e.IsTerminal() {
			continue
		}
		return e.Status == StatusCancelled
	}
	return false
}

// RetryBudgetExhausted reports whether the latest attempt used up the retry
// budget. The newest entry's counters define the current budget.
func RetryBudgetExhausted(entries []Entry) bool {
	if len(entries) == 0 {
		return false
	}
	latest := entries[0]
	return latest.MaxRetries > 0 && latest.RetryCount >= latest.MaxRetries
}
