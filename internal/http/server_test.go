package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanlito/internal/core"
	"finanlito/internal/kanban"
	applog "finanlito/internal/log"
	"finanlito/internal/memory"
)

const testToken = "tok-1"

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.Local)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func newTestServer(t *testing.T, store Store, rate int) *Server {
	t.Helper()
	if rate == 0 {
		rate = 1000
	}
	logger := applog.FromSlog(slog.New(slog.NewTextHandler(io.Discard, nil)), applog.ComponentHTTP)
	srv := NewServer(":0", store, Options{
		Board:              kanban.Options{Concurrency: 2, Clock: func() time.Time { return testNow }},
		RateLimitPerMinute: rate,
		Logger:             logger,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func idsOf(list []transactionJSON) []string {
	out := []string{}
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func TestHealthAndHeaders(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), 0)

	rr := do(srv, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), 0)

	for _, auth := range []string{"", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "auth %q", auth)
	}
}

func TestBoardColumns(t *testing.T) {
	store := memory.New(nil)
	store.Seed(testToken,
		core.Transaction{ID: "in", Title: "Salary", Amount: core.Money{Cents: 300000}, Type: core.Income, Status: core.Paid, Date: day(2025, 3, 5), Category: "Salário", Order: core.NoOrder},
		core.Transaction{ID: "late", Title: "Power", Amount: core.Money{Cents: 9000}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 1), Category: "Moradia", Order: core.NoOrder},
		core.Transaction{ID: "due", Title: "Water", Amount: core.Money{Cents: 4000}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 28), Category: "Moradia", Order: core.NoOrder},
		core.Transaction{ID: "apr", Title: "Gym", Amount: core.Money{Cents: 5000}, Type: core.Expense, Status: core.Pending, Date: day(2025, 4, 2), Order: core.NoOrder},
	)
	srv := newTestServer(t, store, 0)

	rr := do(srv, http.MethodGet, "/api/board?year=2025&month=3", "", testToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	board := decode[boardResponse](t, rr)

	assert.Equal(t, []string{"due"}, idsOf(board.Pending))
	assert.Equal(t, []string{"late"}, idsOf(board.Overdue))
	assert.Equal(t, []string{"in"}, idsOf(board.Paid))
	assert.Equal(t, "3000.00", board.Summary.Income)

	rr = do(srv, http.MethodGet, "/api/board?year=2025&month=13", "", testToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "invalid month")
}

func TestTenantsAreIsolated(t *testing.T) {
	store := memory.New(nil)
	store.Seed(testToken, core.Transaction{ID: "a", Title: "Mine", Amount: core.Money{Cents: 100}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 20), Order: 0})
	srv := newTestServer(t, store, 0)

	board := decode[boardResponse](t, do(srv, http.MethodGet, "/api/board?year=2025&month=3", "", "someone-else"))
	assert.Empty(t, board.Pending)
	assert.Empty(t, board.Overdue)
	assert.Empty(t, board.Paid)
}

func TestCreateBalanceGate(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), 0)

	rr := do(srv, http.MethodPost, "/api/transactions",
		`{"title":"Salary","amount":"1000.00","type":"income","status":"paid","date":"2025-03-05"}`, testToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rent := `{"title":"Rent","amount":"1500.00","type":"expense","status":"paid","date":"2025-03-10"%s}`
	rr = do(srv, http.MethodPost, "/api/transactions", strings.Replace(rent, "%s", "", 1), testToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[mutationResponse](t, rr)
	require.False(t, resp.Applied)
	require.NotNil(t, resp.Balance)
	assert.Equal(t, "1000.00", resp.Balance.Available)
	assert.Equal(t, "500.00", resp.Balance.Deficit)

	rr = do(srv, http.MethodPost, "/api/transactions", strings.Replace(rent, "%s", `,"allow_deficit":true`, 1), testToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp = decode[mutationResponse](t, rr)
	assert.True(t, resp.Applied)
	assert.Len(t, resp.Created, 1)

	bal := decode[balanceJSON](t, do(srv, http.MethodGet, "/api/balance?year=2025&month=3&amount=10.00", "", testToken))
	assert.False(t, bal.OK)
	assert.Equal(t, "-500.00", bal.Available)

	bal = decode[balanceJSON](t, do(srv, http.MethodGet, "/api/balance?year=2025&month=3&amount=10.00&credit_card=true", "", testToken))
	assert.True(t, bal.OK, "credit card purchases skip the gate")
}

func TestCreateInstallmentsAndDuplicates(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), 0)
	body := `{"title":"Laptop","amount":"250.00","type":"expense","date":"2025-03-20","installments":3}`

	rr := do(srv, http.MethodPost, "/api/transactions", body, testToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[mutationResponse](t, rr)
	require.Len(t, resp.Created, 3)
	assert.Equal(t, "Laptop (3/3)", resp.Created[2].Title)
	assert.Equal(t, "2025-05-20", resp.Created[2].Date)
	assert.Equal(t, core.FallbackCategory, resp.Created[0].Category)

	rr = do(srv, http.MethodPost, "/api/transactions", body, testToken)
	assert.Equal(t, http.StatusConflict, rr.Code, "duplicate plan")

	rr = do(srv, http.MethodDelete, "/api/transactions/"+resp.Created[0].ID+"?year=2025", "", testToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	del := decode[deleteResponse](t, rr)
	require.Len(t, del.Reindexed, 2)
	assert.Equal(t, "Laptop (1/2)", del.Reindexed[0].Title)
	assert.Equal(t, "2025-04-20", del.Reindexed[0].Date)
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), 0)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title":`},
		{"unknown field", `{"title":"x","amount":"1","type":"expense","date":"2025-03-01","colour":"red"}`},
		{"bad amount", `{"title":"x","amount":"abc","type":"expense","date":"2025-03-01"}`},
		{"bad date", `{"title":"x","amount":"1","type":"expense","date":"yesterday"}`},
		{"bad type", `{"title":"x","amount":"1","type":"gift","date":"2025-03-01"}`},
		{"empty title", `{"title":"  ","amount":"1","type":"expense","date":"2025-03-01"}`},
		{"negative installments", `{"title":"x","amount":"1","type":"expense","date":"2025-03-01","installments":-2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodPost, "/api/transactions", tt.body, testToken)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestMoveAndUpdate(t *testing.T) {
	store := memory.New(nil)
	store.Seed(testToken,
		core.Transaction{ID: "in", Title: "Salary", Amount: core.Money{Cents: 10000}, Type: core.Income, Status: core.Paid, Date: day(2025, 3, 5), Order: 0},
		core.Transaction{ID: "x", Title: "Books", Amount: core.Money{Cents: 5000}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 20), Order: 1},
	)
	srv := newTestServer(t, store, 0)

	rr := do(srv, http.MethodPost, "/api/transactions/x/move?year=2025", `{"status":"paid","index":0}`, testToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[mutationResponse](t, rr)
	assert.True(t, resp.Applied)
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, "paid", resp.Transaction.Status)

	resp = decode[mutationResponse](t, do(srv, http.MethodPatch, "/api/transactions/x?year=2025", `{"amount":"200.00"}`, testToken))
	assert.False(t, resp.Applied)
	require.NotNil(t, resp.Balance)
	assert.Equal(t, "100.00", resp.Balance.Deficit)

	resp = decode[mutationResponse](t, do(srv, http.MethodPatch, "/api/transactions/x?year=2025", `{"title":"Novels"}`, testToken))
	assert.True(t, resp.Applied)
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, "Novels", resp.Transaction.Title)

	rr = do(srv, http.MethodPost, "/api/transactions/x/move?year=2025", `{"status":"done"}`, testToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "invalid status")
	rr = do(srv, http.MethodPost, "/api/transactions/nope/move?year=2025", `{"status":"paid"}`, testToken)
	assert.Equal(t, http.StatusNotFound, rr.Code, "unknown id")
}

func TestCloneAndReplicate(t *testing.T) {
	store := memory.New(nil)
	store.Seed(testToken,
		core.Transaction{ID: "a", Title: "Internet", Amount: core.Money{Cents: 9900}, Type: core.Expense, Status: core.Paid, Date: day(2025, 3, 10), Order: 0},
		core.Transaction{ID: "b", Title: "Phone", Amount: core.Money{Cents: 4900}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 25), Order: 1},
	)
	srv := newTestServer(t, store, 0)

	rr := do(srv, http.MethodPost, "/api/transactions/a/clone?year=2025", "", testToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	clone := decode[cloneResponse](t, rr)
	require.Len(t, clone.Created, 1)
	assert.Equal(t, "2025-04-10", clone.Created[0].Date)
	assert.Equal(t, "pending", clone.Created[0].Status)

	rr = do(srv, http.MethodPost, "/api/months/replicate", `{"year":2025,"month":3}`, testToken)
	assert.Contains(t, []int{http.StatusCreated, http.StatusOK}, rr.Code, rr.Body.String())

	rr = do(srv, http.MethodPost, "/api/transactions/bulk/clone?year=2025", `{"ids":[]}`, testToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "empty bulk clone")
}

func TestCategories(t *testing.T) {
	store := memory.New([]string{"Lazer", "Moradia"})
	store.Seed(testToken,
		core.Transaction{ID: "a", Title: "Cinema", Amount: core.Money{Cents: 3000}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 20), Category: "Lazer", Order: 0},
		core.Transaction{ID: "b", Title: "Concert", Amount: core.Money{Cents: 8000}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 22), Category: "Lazer", Order: 1},
	)
	srv := newTestServer(t, store, 0)

	rr := do(srv, http.MethodPost, "/api/categories/rename?year=2025", `{"from":"Lazer","to":"Fun"}`, testToken)
	assert.Equal(t, 2, decode[countResponse](t, rr).Updated, "renamed")

	rr = do(srv, http.MethodDelete, "/api/categories/Fun?year=2025", "", testToken)
	assert.Equal(t, 2, decode[countResponse](t, rr).Updated, "reassigned")

	board := decode[boardResponse](t, do(srv, http.MethodGet, "/api/board?year=2025&month=3", "", testToken))
	for _, tx := range board.Pending {
		assert.Equal(t, core.FallbackCategory, tx.Category, tx.ID)
	}

	rr = do(srv, http.MethodGet, "/api/categories", "", testToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Moradia")
}

type failingStore struct {
	*memory.Store
}

func (failingStore) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	return core.Transaction{}, errors.New("disk full at /var/lib/db")
}

func TestPersistenceFailureIsHidden(t *testing.T) {
	srv := newTestServer(t, failingStore{memory.New(nil)}, 0)

	rr := do(srv, http.MethodPost, "/api/transactions",
		`{"title":"Snacks","amount":"5.00","type":"expense","date":"2025-03-20"}`, testToken)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotContains(t, rr.Body.String(), "disk full", "backend detail leaked")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), 2)

	for i := range 2 {
		require.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", "", "").Code, "request %d", i)
	}
	rr := do(srv, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestSessionKeyHidesToken(t *testing.T) {
	k := sessionKey("secret-token", 2025)
	assert.NotContains(t, k, "secret")
	assert.True(t, strings.HasSuffix(k, ":2025"), k)
	assert.NotEqual(t, sessionKey("a", 2025), sessionKey("b", 2025), "different tokens share a key")
}

func TestSweepOverdue(t *testing.T) {
	store := memory.New(nil)
	store.Seed(testToken, core.Transaction{ID: "x", Title: "Fee", Amount: core.Money{Cents: 700}, Type: core.Expense, Status: core.Pending, Date: day(2025, 3, 20), Order: 0})

	now := testNow
	srv := NewServer(":0", store, Options{
		Board:              kanban.Options{Clock: func() time.Time { return now }},
		RateLimitPerMinute: 1000,
		Logger:             applog.FromSlog(slog.New(slog.NewTextHandler(io.Discard, nil)), applog.ComponentHTTP),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	require.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/api/board?year=2025&month=3", "", testToken).Code)
	assert.Zero(t, srv.SweepOverdue(context.Background()), "sweep before the due date")

	now = day(2025, 3, 21).Add(9 * time.Hour)
	require.Equal(t, 1, srv.SweepOverdue(context.Background()))
	board := decode[boardResponse](t, do(srv, http.MethodGet, "/api/board?year=2025&month=3", "", testToken))
	assert.Equal(t, []string{"x"}, idsOf(board.Overdue))
}

func TestEditsAcrossYears(t *testing.T) {
	board := func(srv *Server, year, month int) boardResponse {
		t.Helper()
		rr := do(srv, http.MethodGet, fmt.Sprintf("/api/board?year=%d&month=%d", year, month), "", testToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		return decode[boardResponse](t, rr)
	}

	t.Run("update moving a record into the next year", func(t *testing.T) {
		store := memory.New(nil)
		store.Seed(testToken, core.Transaction{ID: "x", Title: "Insurance", Amount: core.Money{Cents: 9000}, Type: core.Expense, Status: core.Pending, Date: day(2025, 12, 20), Order: 0})
		srv := newTestServer(t, store, 0)
		assert.Empty(t, board(srv, 2026, 1).Pending, "next year session cached empty")

		rr := do(srv, http.MethodPatch, "/api/transactions/x?year=2025", `{"date":"2026-01-05"}`, testToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode[mutationResponse](t, rr)
		require.True(t, resp.Applied)
		assert.Equal(t, "2026-01-05", resp.Transaction.Date)

		assert.Empty(t, board(srv, 2025, 12).Pending)
		assert.Equal(t, []string{"x"}, idsOf(board(srv, 2026, 1).Pending))
	})

	t.Run("delete reindexing a plan that runs into the next year", func(t *testing.T) {
		store := memory.New(nil)
		tv := func(id, title string, date time.Time, order int) core.Transaction {
			return core.Transaction{ID: id, Title: title, Amount: core.Money{Cents: 50000}, Type: core.Expense, Status: core.Pending, Date: date, Order: order}
		}
		store.Seed(testToken,
			tv("tv-1", "TV (1/3)", day(2025, 11, 10), 0),
			tv("tv-2", "TV (2/3)", day(2025, 12, 10), 1),
			tv("tv-3", "TV (3/3)", day(2026, 1, 10), 2),
		)
		srv := newTestServer(t, store, 0)
		require.Len(t, board(srv, 2026, 1).Pending, 1)

		rr := do(srv, http.MethodDelete, "/api/transactions/tv-1?year=2025", "", testToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Len(t, decode[deleteResponse](t, rr).Reindexed, 2)

		dec := board(srv, 2025, 12).Pending
		require.Len(t, dec, 1)
		assert.Equal(t, "TV (1/2)", dec[0].Title)

		jan := board(srv, 2026, 1).Pending
		require.Len(t, jan, 1)
		assert.Equal(t, "TV (2/2)", jan[0].Title)
	})

	t.Run("create spilling into a year that holds a sibling", func(t *testing.T) {
		store := memory.New(nil)
		store.Seed(testToken, core.Transaction{ID: "c3", Title: "Course (3/4)", Amount: core.Money{Cents: 100}, Type: core.Expense, Status: core.Pending, Date: day(2026, 1, 10), Order: 0})
		srv := newTestServer(t, store, 0)

		rr := do(srv, http.MethodPost, "/api/transactions",
			`{"title":"Course","amount":"1.00","type":"expense","date":"2025-11-10","installments":4}`, testToken)
		assert.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
		assert.Empty(t, board(srv, 2025, 11).Pending)
	})
}
