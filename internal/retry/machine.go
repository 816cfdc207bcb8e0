package retry

import (
	"sync"
	"time"

	"github.com/probabilityIA/invoicing-console/internal/correlate"
	"github.com/probabilityIA/invoicing-console/internal/domain/invoice"
)

// State is the client-local, ephemeral retry state of one invoice. It is
// never persisted; the backend remains the source of truth for the invoice
// itself.
type State string

const (
	StateIdle            State = "idle"
	StateRetrying        State = "retrying"
	StateResolvedSuccess State = "resolved-success"
	StateResolvedFailed  State = "resolved-failed"
)

// Options tune the simulated progress display. Tests inject millisecond
// intervals; production uses the defaults.
type Options struct {
	// ProgressInterval is the fixed tick between simulated progress bumps.
	ProgressInterval time.Duration
	// ProgressStep is added on each tick.
	ProgressStep int
	// ProgressCeiling caps simulated progress below 100: the bar signals
	// "work is happening" while the real result is still pending.
	ProgressCeiling int
}

func (o Options) withDefaults() Options {
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 500 * time.Millisecond
	}
	if o.ProgressStep <= 0 {
		o.ProgressStep = 7
	}
	if o.ProgressCeiling <= 0 || o.ProgressCeiling >= 100 {
		o.ProgressCeiling = 90
	}
	return o
}

// Machine tracks one in-flight retry for one invoice. At most one machine
// per invoice is retrying at a time; the service guards that with its
// registry before a machine is ever created.
type Machine struct {
	invoiceID string
	orderID   string

	mu        sync.Mutex
	state     State
	progress  int
	refreshed *invoice.Invoice

	stop     chan struct{}
	stopOnce sync.Once
}

func newMachine(invoiceID, orderID string, opts Options) *Machine {
	m := &Machine{
		invoiceID: invoiceID,
		orderID:   orderID,
		state:     StateRetrying,
		// Progress starts above zero so the display moves immediately.
		progress: opts.ProgressStep,
		stop:     make(chan struct{}),
	}
	go m.tickProgress(opts)
	return m
}

// keys returns the correlation identifiers for matching inbound events.
func (m *Machine) keys() correlate.Keys {
	return correlate.Keys{InvoiceID: m.invoiceID, OrderID: m.orderID}
}

// tickProgress bumps the simulated progress on a fixed interval, up to the
// ceiling. It never reaches 100 on its own.
func (m *Machine) tickProgress(opts Options) {
	ticker := time.NewTicker(opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.state == StateRetrying && m.progress < opts.ProgressCeiling {
				m.progress += opts.ProgressStep
				if m.progress > opts.ProgressCeiling {
					m.progress = opts.ProgressCeiling
				}
			}
			m.mu.Unlock()
		}
	}
}

// resolve moves the machine to a terminal state. It reports false when the
// machine was already terminal, which makes duplicate event delivery a
// no-op.
func (m *Machine) resolve(success bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRetrying {
		return false
	}
	if success {
		m.state = StateResolvedSuccess
	} else {
		m.state = StateResolvedFailed
	}
	m.progress = 100
	m.halt()
	return true
}

// abort returns the machine to idle after a local command failure. Distinct
// from a server-reported processing failure: no event is awaited.
func (m *Machine) abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRetrying {
		m.state = StateIdle
		m.progress = 0
	}
	m.halt()
}

func (m *Machine) halt() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Machine) setInvoice(inv *invoice.Invoice) {
	m.mu.Lock()
	m.refreshed = inv
	m.mu.Unlock()
}

// Snapshot is a point-in-time view of the machine for display.
type Snapshot struct {
	InvoiceID string           `json:"invoice_id"`
	OrderID   string           `json:"order_id,omitempty"`
	State     State            `json:"state"`
	Progress  int              `json:"progress"`
	Invoice   *invoice.Invoice `json:"invoice,omitempty"`
}

func (m *Machine) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		InvoiceID: m.invoiceID,
		OrderID:   m.orderID,
		State:     m.state,
		Progress:  m.progress,
		Invoice:   m.refreshed,
	}
}

func (m *Machine) currentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
