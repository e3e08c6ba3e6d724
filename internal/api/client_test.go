package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type memCreds struct {
	mu    sync.Mutex
	token string
	user  core.Record
}

func (m *memCreds) Token(context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *memCreds) Persist(_ context.Context, token string, user core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.user = token, user
	return nil
}

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	ctype  string
	body   map[string]any
}

// fakeAPI routes by "METHOD /path" and records every call.
type fakeAPI struct {
	t      *testing.T
	mu     sync.Mutex
	calls  []recorded
	routes map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, routes: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) handle(pattern string, status int, body string) {
	f.routes[pattern] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		auth:   r.Header.Get("Authorization"),
		ctype:  r.Header.Get("Content-Type"),
	}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	f.mu.Unlock()

	if h, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"message":"route not found"}`)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.calls)
	return f.calls[len(f.calls)-1]
}

func newTestClient(srv *httptest.Server, creds CredentialStore) *Client {
	return NewClient(srv.URL+"/api", srv.Client(), log.Discard()).WithCredentials(creds)
}

func TestRequestHeadersAndBody(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.handle("POST /api/echo", http.StatusOK, `{"ok":true}`)
	c := newTestClient(srv, &memCreds{token: "t1"})

	_, err := c.Request(context.Background(), "/echo", RequestOptions{Method: http.MethodPost, Body: map[string]string{"a": "b"}})
	require.NoError(t, err)
	got := fake.last()
	assert.Equal(t, "Bearer t1", got.auth)
	assert.Equal(t, "application/json", got.ctype)
	assert.Equal(t, "b", got.body["a"])

	_, err = c.Request(context.Background(), "/echo", RequestOptions{Method: http.MethodPost, Body: `{"raw":1}`})
	require.NoError(t, err)
	assert.Equal(t, float64(1), fake.last().body["raw"], "string bodies are sent verbatim")
}

func TestRequestWithoutTokenOmitsAuthorization(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.handle("GET /api/accounts", http.StatusOK, `[]`)
	c := newTestClient(srv, &memCreds{})

	_, err := c.GetAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.last().auth)
}

func TestRequestErrorMessages(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
		kind   ErrorKind
	}{
		{"message field", http.StatusBadRequest, `{"message":"Insufficient balance"}`, "Insufficient balance", KindHTTP},
		{"no message", http.StatusInternalServerError, `{"error":"x"}`, "HTTP 500: Internal Server Error", KindHTTP},
		{"non json body", http.StatusBadGateway, `<html>bad gateway</html>`, "<html>bad gateway</html>", KindHTTP},
		{"unauthorized", http.StatusUnauthorized, `{"message":"Token expired"}`, "Token expired", KindUnauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake, srv := newFakeAPI(t)
			fake.handle("GET /api/categories", tc.status, tc.body)
			c := newTestClient(srv, &memCreds{token: "t"})

			_, err := c.GetCategories(context.Background())
			var re *RequestError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tc.want, re.Message)
			assert.Equal(t, tc.kind, re.Kind)
			assert.Equal(t, tc.status, re.Status)
			assert.Equal(t, tc.kind == KindUnauthenticated, errors.Is(err, ErrUnauthenticated))
		})
	}
}

func TestNonJSONSuccessFallsBackToMessage(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.handle("GET /api/ping", http.StatusOK, "pong")
	c := newTestClient(srv, &memCreds{})

	data, err := c.Request(context.Background(), "/ping", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": "pong"}, data)
}

func TestTransportFailure(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(srv, &memCreds{})
	srv.Close()

	_, err := c.GetAccounts(context.Background())
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindTransport, re.Kind)
	assert.NotEmpty(t, re.Message)
}

func TestUnauthenticatedObserversFireForAnyEndpoint(t *testing.T) {
	for _, endpoint := range []string{"/api/accounts", "/api/categories", "/api/users/profile"} {
		fake, srv := newFakeAPI(t)
		fake.routes = map[string]func(http.ResponseWriter, *http.Request){}
		for _, m := range []string{"GET", "DELETE"} {
			fake.handle(m+" "+endpoint, http.StatusUnauthorized, `{}`)
		}
		c := newTestClient(srv, &memCreds{token: "t"})
		fired := 0
		c.OnUnauthenticated(func(context.Context, *RequestError) { fired++ })

		var err error
		switch endpoint {
		case "/api/accounts":
			_, err = c.GetAccounts(context.Background())
		case "/api/categories":
			_, err = c.GetCategories(context.Background())
		default:
			err = c.DeleteProfile(context.Background())
		}
		require.ErrorIs(t, err, ErrUnauthenticated, endpoint)
		assert.Equal(t, 1, fired, endpoint)
	}
}

func TestObserversSharedAcrossCredentialCopies(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.handle("GET /api/accounts", http.StatusUnauthorized, `{}`)
	base := NewClient(srv.URL+"/api", srv.Client(), log.Discard())
	fired := false
	base.OnUnauthenticated(func(context.Context, *RequestError) { fired = true })

	_, err := base.WithCredentials(&memCreds{token: "x"}).GetAccounts(context.Background())
	require.Error(t, err)
	assert.True(t, fired)
}
