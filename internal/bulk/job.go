package bulk

import (
	"sync"
	"time"
)

// JobState is the lifecycle of one client-local bulk job.
type JobState string

const (
	StateCollecting JobState = "collecting-selection"
	StateSubmitted  JobState = "submitted"
	StateRunning    JobState = "running"
	StateCompleted  JobState = "completed"
)

// OrderStatus is the per-order terminal tracking inside one job.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderSuccess    OrderStatus = "success"
	OrderFailed     OrderStatus = "failed"
)

// CompletionCause records which of the racing resolvers won.
type CompletionCause string

const (
	CompletedByEvent   CompletionCause = "event"
	CompletedByOrders  CompletionCause = "orders"
	CompletedByTimeout CompletionCause = "timeout"
)

// OrderResult is the tracked outcome for one order in the selection.
type OrderResult struct {
	Status       OrderStatus `json:"status"`
	InvoiceID    string      `json:"invoice_id,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Counters is the aggregate view of a job. Total is fixed at submission to
// the size of the selection and never changes afterwards.
type Counters struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Job aggregates one submitted batch. It lives only in memory: a restart
// loses in-flight progress by design, the backend owns final invoice state.
type Job struct {
	ID         int64
	BusinessID string

	mu        sync.Mutex
	state     JobState
	orderIDs  []string
	orders    map[string]*OrderResult
	counters  Counters
	completed bool
	cause     CompletionCause
	timer     *time.Timer

	createdAt   time.Time
	completedAt time.Time
}

func newJob(id int64, businessID string, orderIDs []string) *Job {
	j := &Job{
		ID:         id,
		BusinessID: businessID,
		state:      StateCollecting,
		orderIDs:   append([]string(nil), orderIDs...),
		orders:     make(map[string]*OrderResult, len(orderIDs)),
		createdAt:  time.Now().UTC(),
	}
	for _, orderID := range orderIDs {
		j.orders[orderID] = &OrderResult{Status: OrderPending}
	}
	j.counters = Counters{Total: len(orderIDs)}
	j.state = StateSubmitted
	return j
}

// markRunning arms the fallback timer. onTimeout fires only if no completion
// beat it.
func (j *Job) markRunning(fallback time.Duration, onTimeout func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateRunning
	j.timer = time.AfterFunc(fallback, onTimeout)
}

// complete flips the job to its terminal state. It reports false when the
// job was already completed, which makes the {event, timer} race safe:
// whichever fires second becomes a no-op.
func (j *Job) complete(cause CompletionCause) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.completed {
		return false
	}
	j.completed = true
	j.cause = cause
	j.state = StateCompleted
	j.completedAt = time.Now().UTC()
	if j.timer != nil {
		j.timer.Stop()
	}
	return true
}

// discard stops the fallback timer without recording a completion cause.
// Used when the owning surface goes away before the job resolves.
func (j *Job) discard() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timer != nil {
		j.timer.Stop()
	}
}

// applySnapshot replaces the aggregate counters with an authoritative
// server snapshot. Snapshots, not deltas, guard against double counting
// under duplicate delivery. Total stays pinned to the selection size.
func (j *Job) applySnapshot(processed, successful, failed int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.completed {
		return false
	}
	j.counters.Processed = processed
	j.counters.Successful = successful
	j.counters.Failed = failed
	return true
}

// applyOrderResult records a terminal outcome for one order of the
// selection. Orders outside the selection, already-terminal orders, and
// events arriving after completion are all ignored.
func (j *Job) applyOrderResult(orderID string, success bool, invoiceID, errMsg string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.completed {
		return false
	}
	result, ok := j.orders[orderID]
	if !ok {
		return false
	}
	if result.Status == OrderSuccess || result.Status == OrderFailed {
		return false
	}

	if success {
		result.Status = OrderSuccess
		result.InvoiceID = invoiceID
	} else {
		result.Status = OrderFailed
		result.ErrorMessage = errMsg
	}
	return true
}

// allOrdersTerminal reports whether every order in the selection reached a
// terminal status.
func (j *Job) allOrdersTerminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, result := range j.orders {
		if result.Status != OrderSuccess && result.Status != OrderFailed {
			return false
		}
	}
	return len(j.orders) > 0
}

func (j *Job) isCompleted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completed
}

func (j *Job) completedSince() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt
}

// View is the display snapshot of a job. Orders keep submission order.
type View struct {
	ID         int64                  `json:"id,string"`
	BusinessID string                 `json:"business_id"`
	State      JobState               `json:"state"`
	Orders     map[string]OrderResult `json:"orders"`
	OrderIDs   []string               `json:"order_ids"`
	Counters   Counters               `json:"counters"`
	Completed  bool                   `json:"completed"`
	Cause      CompletionCause        `json:"completed_by,omitempty"`
	Note       string                 `json:"note,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func (j *Job) view() View {
	j.mu.Lock()
	defer j.mu.Unlock()

	orders := make(map[string]OrderResult, len(j.orders))
	for id, result := range j.orders {
		orders[id] = *result
	}

	v := View{
		ID:         j.ID,
		BusinessID: j.BusinessID,
		State:      j.state,
		Orders:     orders,
		OrderIDs:   append([]string(nil), j.orderIDs...),
		Counters:   j.counters,
		Completed:  j.completed,
		Cause:      j.cause,
		CreatedAt:  j.createdAt,
	}
	if j.cause == CompletedByTimeout {
		// No completion signal within budget is indistinguishable from a
		// slow batch; advise rather than alarm.
		v.Note = "No completion signal received in time; the batch may still be processing. Check the invoice list for final results."
	}
	return v
}
