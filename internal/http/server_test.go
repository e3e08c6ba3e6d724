package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/api"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/store"
)

// fakeBackend is a minimal finance API accepting bearer token t1.
type fakeBackend struct {
	*httptest.Server
	expired      atomic.Bool
	accountsDown atomic.Bool
	accounts     atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	mux := http.NewServeMux()

	reply := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if b.expired.Load() || r.Header.Get("Authorization") != "Bearer t1" {
				reply(w, http.StatusUnauthorized, map[string]any{"message": "Token expired"})
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			reply(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"token": "t1", "user": map[string]any{"name": "A"}})
	})
	mux.HandleFunc("POST /users/register", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusCreated, map[string]any{"message": "User created"})
	})
	mux.HandleFunc("GET /users/me", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{"user": map[string]any{"name": "A", "email": "a@b.com"}})
	}))
	mux.HandleFunc("GET /accounts", authed(func(w http.ResponseWriter, r *http.Request) {
		b.accounts.Add(1)
		if b.accountsDown.Load() {
			reply(w, http.StatusInternalServerError, map[string]any{"message": "database unavailable"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"accounts": []any{
			map[string]any{"_id": "a1", "name": "Wallet", "type": "cash", "balance": 100},
		}})
	}))
	mux.HandleFunc("DELETE /accounts/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusConflict, map[string]any{"message": "Account has transactions"})
	}))
	mux.HandleFunc("GET /categories", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []any{
			map[string]any{"_id": "c1", "name": "Salary", "type": "income"},
			map[string]any{"_id": "c2", "name": "Food", "type": "expense"},
		})
	}))
	mux.HandleFunc("GET /transactions", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []any{
			map[string]any{"_id": "t1", "accountId": "a1", "categoryId": "c1", "type": "income",
				"amount": 50, "description": "Pay", "createdAt": "2026-01-02T10:00:00Z"},
			map[string]any{"_id": "t2", "accountId": "a1", "categoryId": "c2", "type": "expense",
				"amount": 20, "description": "Lunch", "createdAt": "2026-01-03T10:00:00Z"},
		})
	}))

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

type testApp struct {
	srv      *Server
	backend  *fakeBackend
	sessions *session.MemoryStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	backend := newFakeBackend(t)
	logger := log.Discard()

	mem := session.NewMemoryStore()
	manager := session.NewManager(mem, session.ManagerConfig{CookieName: "sid", TTL: time.Hour}, logger)
	policy := session.NewPolicy(manager, 0, logger)
	client := api.NewClient(backend.URL, backend.Client(), logger)
	policy.Attach(client)

	srv, err := NewServer(Options{
		Client:   client,
		Sessions: manager,
		Policy:   policy,
		Store:    store.New(store.Config{TTL: time.Minute, MaxEntries: 100}, logger),
		Logger:   logger,
	})
	require.NoError(t, err)
	return &testApp{srv: srv, backend: backend, sessions: mem}
}

func (a *testApp) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func (a *testApp) post(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, cookie)
}

// login signs in through the form and returns the session cookie.
func (a *testApp) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := a.post("/login", url.Values{"email": {"a@b.com"}, "password": {"secret"}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func TestHealthReadyAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = app.get("/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)

	rec = app.get("/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "store_hits_total")
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	app := newTestApp(t)
	rec := app.get("/login", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStaticAssetsServed(t *testing.T) {
	app := newTestApp(t)
	rec := app.get("/static/style.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=3600")
}

func TestGuestIsRedirectedToLogin(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/", "/dashboard", "/accounts", "/transactions", "/profile"} {
		rec := app.get(path, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("HX-Request", "true")
	rec := app.do(req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
}

func TestLoginStoresTokenAndUser(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	require.Equal(t, 1, app.sessions.Len())
	rec := app.get("/dashboard", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Hello, A")
	assert.Contains(t, body, "Wallet")
	assert.Contains(t, body, "₹100.00")
	assert.Contains(t, body, "+₹50.00")

	// signed-in users skip the login screen
	rec = app.get("/login", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestLoginFailures(t *testing.T) {
	app := newTestApp(t)

	rec := app.post("/login", url.Values{"email": {"a@b.com"}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please fill all required fields")

	rec = app.post("/login", url.Values{"email": {"a@b.com"}, "password": {"wrong"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
	assert.Equal(t, 0, app.sessions.Len())
}

func TestRegisterWithoutTokenGoesToLogin(t *testing.T) {
	app := newTestApp(t)

	rec := app.post("/register", url.Values{"name": {"A"}, "email": {"a@b.com"}, "password": {"123"}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = app.post("/register", url.Values{"name": {"A"}, "email": {"a@b.com"}, "password": {"secret1"}}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?registered=1", rec.Header().Get("Location"))

	rec = app.get("/login?registered=1", nil)
	assert.Contains(t, rec.Body.String(), "Registration successful! Please log in.")
}

func TestExpiredTokenLogsOut(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	app.backend.expired.Store(true)
	rec := app.get("/accounts", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 0, app.sessions.Len())

	rec = app.get("/dashboard", cookie)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestPagesRender(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	tests := []struct {
		path string
		want string
	}{
		{"/accounts", "1 account(s) found"},
		{"/accounts/new", "Create New Account"},
		{"/categories", "Salary"},
		{"/categories/new?type=income", "Create New Category"},
		{"/transactions?account=a1", "Lunch"},
		{"/transactions/new?account=a1", "Select a category"},
		{"/transactions/delete/t1?account=a1", "Are you sure you want to delete this transaction?"},
		{"/profile", "a@b.com"},
		{"/profile/delete", "This action cannot be undone."},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := app.get(tt.path, cookie)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestAccountsAreCachedPerSession(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	app.get("/accounts", cookie)
	app.get("/accounts", cookie)
	assert.Equal(t, int32(1), app.backend.accounts.Load())
}

func TestCategoryOptionsFragment(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	rec := app.get("/ui/category-options?type=income&categoryId=c2", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Salary")
	assert.NotContains(t, body, "Food")
	assert.NotContains(t, body, "<html")
}

func TestSaveTransactionValidation(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	rec := app.post("/transactions/new", url.Values{
		"accountId": {"a1"}, "type": {"expense"}, "categoryId": {"c2"}, "amount": {"-4"},
	}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "alert-error")
}

func TestExportDownloads(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	rec := app.get("/transactions/export?account=a1&format=xlsx", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment;")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = app.get("/transactions/export?account=a1&format=pdf", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = app.get("/transactions/export?account=a1&format=csv", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	rec := app.post("/logout", url.Values{}, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 0, app.sessions.Len())
}

func TestDeleteFailureMessageSurvivesRefetchFailure(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)
	app.backend.accountsDown.Store(true)

	rec := app.post("/accounts/delete/a1", url.Values{}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to delete account: Account has transactions")
	assert.NotContains(t, rec.Body.String(), "Failed to fetch accounts")
}
