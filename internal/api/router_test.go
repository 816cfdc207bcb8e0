package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/auth"
	"github.com/probabilityIA/invoicing-console/internal/bulk"
	"github.com/probabilityIA/invoicing-console/internal/config"
	"github.com/probabilityIA/invoicing-console/internal/ledger"
	"github.com/probabilityIA/invoicing-console/internal/retry"
	"github.com/probabilityIA/invoicing-console/pkg/billingclient"
	"github.com/probabilityIA/invoicing-console/pkg/snowflake"
	"github.com/probabilityIA/invoicing-console/pkg/testhelper"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, permissions []string) string {
	claims := jwt.MapClaims{
		"sub":         "ops@example.com",
		"exp":         time.Now().Add(time.Hour).Unix(),
		"permissions": permissions,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newTestRouter(t *testing.T) (*Router, *testhelper.MockBillingServer) {
	mock := testhelper.NewMockBillingServer(t)

	cfg := &config.Config{
		Port:          "0",
		AuthJWTSecret: testSecret,
		AdminAPIToken: "admin-secret",
		BusinessID:    "biz-1",
	}

	logger := zap.NewNop()
	client := billingclient.New(billingclient.Config{
		BaseURL:   mock.URL(),
		APIKey:    "test-key",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		RateBurst: 100,
		CacheTTL:  time.Minute,
		CacheSize: 10,
	})

	ledgerSvc := ledger.NewService(client, logger)
	retrySvc := retry.NewServiceWithOptions(client, client, ledgerSvc, logger, retry.Options{
		ProgressInterval: 5 * time.Millisecond,
	})

	node, err := snowflake.NewNode()
	require.NoError(t, err)
	orchestrator := bulk.NewOrchestratorWithOptions(client, node, logger, bulk.Options{
		FallbackTimeout: time.Minute,
	})

	return NewRouter(cfg, retrySvc, orchestrator, ledgerSvc, client, auth.NewMiddleware(cfg, logger), logger), mock
}

func doRequest(r *Router, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.engine.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/invoices/inv-1/sync-logs", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_BadSignature(t *testing.T) {
	r, _ := newTestRouter(t)

	claims := jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/api/invoices/inv-1/sync-logs", bad, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_MissingPermission(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signToken(t, []string{"invoices:read"})

	w := doRequest(r, http.MethodPost, "/api/invoices/inv-1/retry", token, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodPost, "/api/bulk-jobs", token, `{"order_ids":["ord-1"]}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateInvoice(t *testing.T) {
	r, mock := newTestRouter(t)
	token := signToken(t, []string{"invoices:create"})

	w := doRequest(r, http.MethodPost, "/api/invoices", token, `{"order_id":"ord-9"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, mock.CreateRequests)

	w = doRequest(r, http.MethodPost, "/api/invoices", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Creation requires its own permission.
	w = doRequest(r, http.MethodPost, "/api/invoices", signToken(t, nil), `{"order_id":"ord-9"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStartRetry(t *testing.T) {
	r, mock := newTestRouter(t)
	token := signToken(t, []string{"invoices:retry"})

	w := doRequest(r, http.MethodPost, "/api/invoices/inv-1/retry", token, `{"order_id":"ord-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, mock.RetryRequests)

	var snap retry.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "inv-1", snap.InvoiceID)
	assert.Equal(t, retry.StateRetrying, snap.State)

	// Busy guard: second start conflicts.
	w = doRequest(r, http.MethodPost, "/api/invoices/inv-1/retry", token, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Status endpoint sees the machine.
	w = doRequest(r, http.MethodGet, "/api/invoices/inv-1/retry", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartRetry_UpstreamRejection(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ShouldFailRetry = true
	token := signToken(t, []string{"invoices:retry"})

	w := doRequest(r, http.MethodPost, "/api/invoices/inv-1/retry", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRetryStatus_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signToken(t, nil)

	w := doRequest(r, http.MethodGet, "/api/invoices/inv-none/retry", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncLogs(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.SyncLogsJSON = `[{"id":"log-1","invoice_id":"inv-1","status":"failed","next_retry_at":"2026-08-29T12:00:00Z"}]`
	token := signToken(t, nil)

	w := doRequest(r, http.MethodGet, "/api/invoices/inv-1/sync-logs", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var view ledger.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Entries, 1)
	assert.True(t, view.AutoRetryEnabled)
}

func TestSyncLogs_FailSoft(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ShouldFailSyncLog = true
	token := signToken(t, nil)

	w := doRequest(r, http.MethodGet, "/api/invoices/inv-1/sync-logs", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var view ledger.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Empty(t, view.Entries)
}

func TestAutoRetryToggle(t *testing.T) {
	r, mock := newTestRouter(t)
	token := signToken(t, []string{"invoices:retry"})

	w := doRequest(r, http.MethodPost, "/api/invoices/inv-1/auto-retry/cancel", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mock.CancelRequests)

	w = doRequest(r, http.MethodPost, "/api/invoices/inv-1/auto-retry/enable", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mock.EnableRequests)
}

func TestBulkJobLifecycle(t *testing.T) {
	r, mock := newTestRouter(t)
	token := signToken(t, []string{"invoices:bulk-create"})

	w := doRequest(r, http.MethodPost, "/api/bulk-jobs", token, `{"order_ids":["ord-1","ord-2"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, mock.BulkRequests)

	var view bulk.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 2, view.Counters.Total)
	assert.Equal(t, "biz-1", view.BusinessID)

	// View ids are serialized as strings for js clients.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.True(t, strings.HasPrefix(string(raw["id"]), `"`))

	idStr := strings.Trim(string(raw["id"]), `"`)
	w = doRequest(r, http.MethodGet, "/api/bulk-jobs/"+idStr, token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodDelete, "/api/bulk-jobs/"+idStr, token, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(r, http.MethodGet, "/api/bulk-jobs/"+idStr, token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkJob_EmptySelection(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signToken(t, []string{"invoices:bulk-create"})

	w := doRequest(r, http.MethodPost, "/api/bulk-jobs", token, `{"order_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkJob_InvalidID(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signToken(t, nil)

	w := doRequest(r, http.MethodGet, "/api/bulk-jobs/not-a-number", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/bulk-jobs", nil)
	w := httptest.NewRecorder()
	r.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/bulk-jobs", nil)
	req.Header.Set("X-Admin-Token", "admin-secret")
	w = httptest.NewRecorder()
	r.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
