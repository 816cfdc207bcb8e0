// Package testhelper provides shared test doubles for the billing API.
package testhelper

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// MockBillingServer is a fake billing API for client and service tests.
// Counters record traffic; the Should* toggles force failures.
type MockBillingServer struct {
	Server *httptest.Server

	CreateRequests  int
	RetryRequests   int
	CancelRequests  int
	EnableRequests  int
	BulkRequests    int
	SyncLogRequests int

	ShouldFailRetry   bool
	ShouldFailBulk    bool
	ShouldFailSyncLog bool

	// SyncLogsJSON is served verbatim from the sync-logs endpoint.
	SyncLogsJSON string
}

// NewMockBillingServer starts a fake billing API that is torn down with the
// test.
func NewMockBillingServer(t *testing.T) *MockBillingServer {
	mock := &MockBillingServer{SyncLogsJSON: "[]"}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/invoices/bulk", func(w http.ResponseWriter, r *http.Request) {
		mock.BulkRequests++
		if mock.ShouldFailBulk {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"bulk submission rejected"}`))
			return
		}
		var req struct {
			OrderIDs []string `json:"order_ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"accepted": len(req.OrderIDs)})
	})

	mux.HandleFunc("/api/invoices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			mock.CreateRequests++
			var req struct {
				OrderID string `json:"order_id"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.Write([]byte(`{"id":"inv-new","order_id":"` + req.OrderID + `","status":"pending","total_amount":"0"}`))
			return
		}
		w.Write([]byte(`[{"id":"inv-1","order_id":"ord-1","status":"failed","total_amount":"100.50","currency":"COP"}]`))
	})

	mux.HandleFunc("/api/invoices/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/retry"):
			mock.RetryRequests++
			if mock.ShouldFailRetry {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"message":"invoice is not retryable"}`))
				return
			}
			w.WriteHeader(http.StatusAccepted)

		case strings.HasSuffix(r.URL.Path, "/auto-retry/cancel"):
			mock.CancelRequests++
			w.WriteHeader(http.StatusOK)

		case strings.HasSuffix(r.URL.Path, "/auto-retry/enable"):
			mock.EnableRequests++
			w.WriteHeader(http.StatusOK)

		case strings.HasSuffix(r.URL.Path, "/sync-logs"):
			mock.SyncLogRequests++
			if mock.ShouldFailSyncLog {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"message":"ledger unavailable"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(mock.SyncLogsJSON))

		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"inv-1","order_id":"ord-1","status":"issued","total_amount":"100.50","currency":"COP"}`))
		}
	})

	mock.Server = httptest.NewServer(mux)
	t.Cleanup(mock.Server.Close)

	return mock
}

// URL returns the base URL of the mock server
func (m *MockBillingServer) URL() string {
	return m.Server.URL
}
