package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

type fixture struct {
	router  http.Handler
	ledger  *app.Ledger
	redis   *miniredis.Miniredis
	metrics *observability.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &app.Config{
		AppEnv:              "test",
		EntryPrefix:         "JE",
		CashAccountCode:     "1100",
		EnableFinancialYear: true,
		AutoAssignFY:        true,
		FYStartMonth:        1,
		RateLimit:           1000,
		AppRequestTimeout:   5 * time.Second,
	}
	ledger := app.NewLedger(app.MemoryRepositories(memstore.New()), nil, reports.NewCache(client, time.Minute), cfg, nil)
	require.NoError(t, ledger.Accounts.SeedDefaults(ctx))
	_, err := ledger.Years.CreateCalendarYear(ctx, 2024, true)
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	params := ledger.RouterParams(nil, cfg, nil)
	params.Metrics = metrics
	return fixture{router: app.NewRouter(params), ledger: ledger, redis: mr, metrics: metrics}
}

func (f fixture) accountID(t *testing.T, code string) int64 {
	t.Helper()
	acc, err := f.ledger.Accounts.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return acc.ID
}

func (f fixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPostTransactionRecordsActorAndBumpsReportCache(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/reports/trial-balance?date=2024-03-31", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	version, err := f.redis.Get("reports:version")
	require.NoError(t, err)
	require.Equal(t, "1", version)

	body := map[string]any{
		"debit_account_id":  f.accountID(t, "1100"),
		"credit_account_id": f.accountID(t, "6100"),
		"amount":            "150.25",
		"description":       "Counter sale",
		"entry_date":        "2024-03-10",
		"reference":         map[string]string{"domain": "invoice", "id": "INV-7"},
	}
	rec = f.do(t, http.MethodPost, "/api/v1/journals/transactions", body, map[string]string{app.ActorHeader: "42"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var entry struct {
		EntryNumber     string `json:"entry_number"`
		Status          string `json:"status"`
		CreatedBy       *int64 `json:"created_by"`
		FinancialYearID *int64 `json:"financial_year_id"`
		Lines           []struct {
			Type   string          `json:"type"`
			Amount decimal.Decimal `json:"amount"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "POSTED", entry.Status)
	assert.NotEmpty(t, entry.EntryNumber)
	require.NotNil(t, entry.CreatedBy)
	assert.Equal(t, int64(42), *entry.CreatedBy)
	assert.NotNil(t, entry.FinancialYearID)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, "150.25", entry.Lines[0].Amount.StringFixed(2))

	version, err = f.redis.Get("reports:version")
	require.NoError(t, err)
	assert.Equal(t, "2", version)

	cashID := f.accountID(t, "1100")
	rec = f.do(t, http.MethodGet, "/api/v1/accounts/"+strconv.FormatInt(cashID, 10)+"/balance?date=2024-03-31", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.Equal(t, "150.25", balance["balance"])
}

func TestRejectsMalformedActor(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/journals/", nil, map[string]string{app.ActorHeader: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/journals/", nil, map[string]string{app.ActorHeader: "-3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnbalancedEntryIsUnprocessable(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{
		"entry_date":  "2024-03-10",
		"description": "Broken",
		"lines": []map[string]any{
			{"account_id": f.accountID(t, "1100"), "type": "DEBIT", "amount": "10.00"},
			{"account_id": f.accountID(t, "6100"), "type": "CREDIT", "amount": "9.00"},
		},
	}
	rec := f.do(t, http.MethodPost, "/api/v1/journals/", body, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil, nil).Code)

	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger_http_requests_total")
}
