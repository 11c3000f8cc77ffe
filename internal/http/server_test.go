package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/cache"
	"kharcha/internal/core"
	"kharcha/internal/ledger/memory"
	"kharcha/internal/metrics"
	"kharcha/internal/middleware/trace"
	"kharcha/internal/parser"
	"kharcha/internal/services"
)

var today = time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	clock := func() time.Time { return today }
	store := memory.NewWithClock(clock)
	svc := services.NewTransactionService(store,
		services.WithClock(clock),
		services.WithParser(parser.New(nil, parser.WithClock(clock), parser.WithDateParser(nil))),
		services.WithSummaryCache(cache.NewLRUCache[core.Summary](4, time.Minute)),
	)
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 1000
	}
	s := NewServer(cfg, svc)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateAndListTransactions(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/transactions",
		`{"description":"Uber to airport","amount":"1250.5","type":"expense","date":"2024-06-09"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	created := decode[transactionResponse](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "2024-06-09", created.Date)
	assert.Equal(t, core.CategoryTransport, created.Category)
	assert.Equal(t, "Expense", created.Type)
	assert.Equal(t, moneyResponse{Cents: 125050, Value: "1250.50", Formatted: "₹1,250.50"}, created.Amount)

	rec = do(t, s, http.MethodPost, "/api/transactions",
		`{"description":"Salary credited","amount":100000,"type":"Income","category":"Transfers"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	income := decode[transactionResponse](t, rec)
	assert.Equal(t, "2024-06-10", income.Date, "missing date means today")
	assert.Equal(t, core.CategoryTransfers, income.Category, "explicit category is kept")

	rec = do(t, s, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]transactionResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, income.ID, list[0].ID, "newest first")
}

func TestCreateTransactionRejectsBadInput(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
		field  string
	}{
		{"missing description", `{"amount":"10","type":"Expense"}`, http.StatusBadRequest, "validation_failed", "description"},
		{"bad type", `{"description":"x","amount":"10","type":"refund"}`, http.StatusBadRequest, "validation_failed", "type"},
		{"bad date", `{"description":"x","amount":"10","type":"Expense","date":"09/06/2024"}`, http.StatusBadRequest, "validation_failed", "date"},
		{"negative amount", `{"description":"x","amount":"-10","type":"Expense"}`, http.StatusBadRequest, "validation_failed", "amount"},
		{"unknown field", `{"description":"x","amount":"10","type":"Expense","tip":1}`, http.StatusBadRequest, "malformed_json", ""},
		{"not json", `description=x`, http.StatusBadRequest, "malformed_json", ""},
		{"unknown category", `{"description":"fruit","amount":"10","type":"Expense","category":"Bananas"}`, http.StatusUnprocessableEntity, "invalid_transaction", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/transactions", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.RequestID)
			if tt.field != "" {
				assert.Contains(t, resp.Error.Fields, tt.field)
			}
		})
	}

	rec := do(t, s, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, "[]\n", rec.Body.String(), "nothing was stored")
}

func TestParseVoice(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/voice/parse", `{"text":"Spent 500 on groceries yesterday"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	draft := decode[draftResponse](t, rec)
	require.NotNil(t, draft.Amount)
	assert.Equal(t, "500", *draft.Amount)
	assert.Equal(t, core.CategoryGroceries, draft.Category)
	assert.Equal(t, "2024-06-09", draft.Date)
	assert.True(t, draft.DateResolved)
	assert.Equal(t, "Expense", draft.Type)

	rec = do(t, s, http.MethodPost, "/api/voice/parse", `{"text":"bought groceries"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	draft = decode[draftResponse](t, rec)
	assert.Nil(t, draft.Amount, "no amount is null, not zero")
	assert.False(t, draft.DateResolved)
	assert.Equal(t, "2024-06-10", draft.Date)

	rec = do(t, s, http.MethodPost, "/api/voice/parse", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/voice/parse", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_text", decode[errorResponse](t, rec).Error.Code)
}

func TestSaveVoice(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/voice/save", `{"text":"Received 10000 salary today"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[transactionResponse](t, rec)
	assert.Equal(t, "Income", saved.Type)
	assert.Equal(t, core.Uncategorized, saved.Category)
	assert.Equal(t, int64(1_000_000), saved.Amount.Cents)
	assert.Equal(t, "Received 10000 salary today", saved.Description)

	rec = do(t, s, http.MethodPost, "/api/voice/save", `{"text":"bought groceries"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "amount_unknown", decode[errorResponse](t, rec).Error.Code)

	rec = do(t, s, http.MethodPost, "/api/voice/save",
		`{"draft":{"amount":"420.75","category":"Dining","date":"2024-06-08","type":"Expense","text":"coffee with friends"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved = decode[transactionResponse](t, rec)
	assert.Equal(t, core.CategoryDining, saved.Category)
	assert.Equal(t, "2024-06-08", saved.Date)
	assert.Equal(t, int64(42075), saved.Amount.Cents)

	rec = do(t, s, http.MethodPost, "/api/voice/save", `{"draft":{"amount":"1","category":"Dining","date":"2024-06-08","type":"refund","text":"x"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error.Fields, "type")

	rec = do(t, s, http.MethodPost, "/api/voice/save", `{"draft":{"amount":"40","category":"Bananas","date":"2024-06-08","type":"Expense","text":"fruit"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "invalid_transaction", decode[errorResponse](t, rec).Error.Code)

	rec = do(t, s, http.MethodPost, "/api/voice/save", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error.Fields, "text")
}

const statement = "Date,Description,Amount\n" +
	",Opening balance,0\n" +
	"2024-06-01,Salary credited,\"50,000\"\n" +
	",Uber ride,-300\n"

func TestUploadCSV(t *testing.T) {
	s := newTestServer(t, Config{})

	t.Run("raw body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions/upload", strings.NewReader(statement))
		req.Header.Set("Content-Type", "text/csv")
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[importResponse](t, rec)
		assert.Equal(t, 2, resp.Imported)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, 2, resp.Errors[0].Line)
		assert.Equal(t, "Income", resp.Transactions[0].Type)
		assert.Equal(t, "2024-06-01", resp.Transactions[1].Date, "date carried forward")
		assert.Equal(t, core.CategoryTransport, resp.Transactions[1].Category)
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "statement.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(statement))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/transactions/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 2, decode[importResponse](t, rec).Imported)
	})

	t.Run("multipart without file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "hello"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/transactions/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Error.Fields, "file")
	})

	t.Run("missing columns", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/transactions/upload", "Name,Total\nx,1\n")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_csv", decode[errorResponse](t, rec).Error.Code)
	})
}

func TestDashboardCategoriesAndReset(t *testing.T) {
	s := newTestServer(t, Config{})

	for _, body := range []string{
		`{"description":"Salary credited","amount":"10000","type":"Income"}`,
		`{"description":"Pizza night","amount":"450","type":"Expense"}`,
		`{"description":"House rent","amount":"3000","type":"Expense"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions", body).Code)
	}

	rec := do(t, s, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[dashboardResponse](t, rec)
	assert.Equal(t, 3, dash.Count)
	assert.Equal(t, "₹10,000.00", dash.TotalIncome.Formatted)
	assert.Equal(t, "₹3,450.00", dash.TotalExpense.Formatted)
	assert.Equal(t, "₹6,550.00", dash.NetSavings.Formatted)
	require.Len(t, dash.ExpenseByCategory, 2)
	assert.Equal(t, core.CategoryRent, dash.ExpenseByCategory[0].Category)
	assert.Equal(t, core.CategoryDining, dash.ExpenseByCategory[1].Category)

	rec = do(t, s, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[map[string][]string](t, rec)["categories"]
	assert.Contains(t, cats, core.CategoryGroceries)
	assert.Equal(t, core.Uncategorized, cats[len(cats)-1])

	rec = do(t, s, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	dash = decode[dashboardResponse](t, do(t, s, http.MethodGet, "/api/dashboard", ""))
	assert.Zero(t, dash.Count, "reset invalidates the cached summary")
	assert.Empty(t, dash.ExpenseByCategory)
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("database is down")
	s := newTestServer(t, Config{Ready: func(context.Context) error { return ready }})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = nil
	rec = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	s := newTestServer(t, Config{RateLimitPerMinute: 1})

	body := `{"text":"Spent 500 on groceries"}`
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/voice/parse", body).Code)

	rec := do(t, s, http.MethodPost, "/api/voice/parse", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[errorResponse](t, rec).Error.Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/dashboard", "").Code)
	}
}

func TestMiddlewareChain(t *testing.T) {
	m := metrics.New()
	s := newTestServer(t, Config{Metrics: m})

	rec := do(t, s, http.MethodGet, "/api/categories", "")
	assert.NotEmpty(t, rec.Header().Get(trace.Header))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = do(t, s, http.MethodGet, "/api/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kharcha_http_requests_total{method="GET",route="GET /api/categories",status="200"} 1`)
}

func TestShutdownIsIdempotent(t *testing.T) {
	caches := cache.NewManager(nil)
	s := newTestServer(t, Config{Caches: caches})
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}
