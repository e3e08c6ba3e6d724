// Package api is the typed client for the remote finance REST service. It
// owns request construction, bearer token injection, response envelope
// reconciliation and the mapping of failures to RequestError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const defaultTimeout = 15 * time.Second

// CredentialStore supplies the bearer token and receives new credentials
// after login or registration.
type CredentialStore interface {
	Token(ctx context.Context) string
	Persist(ctx context.Context, token string, user core.Record) error
}

// RequestOptions describes one call. A Body of type string, []byte or
// json.RawMessage is sent verbatim, anything else is JSON encoded.
type RequestOptions struct {
	Method string
	Body   any
	Query  url.Values
}

// Client talks to the REST API rooted at baseURL. It is safe for concurrent
// use; WithCredentials derives request scoped copies.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      CredentialStore
	hooks      *hooks
	logger     *log.Logger
}

type hooks struct {
	mu              sync.RWMutex
	unauthenticated []func(ctx context.Context, err *RequestError)
}

var _ Service = (*Client)(nil)

// NewClient creates a client. A nil httpClient gets a default timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      noCredentials{},
		hooks:      &hooks{},
		logger:     logger.WithComponent(log.ComponentAPI),
	}
}

// WithCredentials returns a copy of c bound to creds. The copy shares the
// transport and the unauthenticated observers.
func (c *Client) WithCredentials(creds CredentialStore) *Client {
	cp := *c
	if creds == nil {
		creds = noCredentials{}
	}
	cp.creds = creds
	return &cp
}

// OnUnauthenticated registers fn to run whenever any call receives a 401.
func (c *Client) OnUnauthenticated(fn func(ctx context.Context, err *RequestError)) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.unauthenticated = append(c.hooks.unauthenticated, fn)
}

// Request performs a call and returns the decoded body. JSON numbers are kept
// as json.Number. A body that is not JSON decodes to {"message": <text>}.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (any, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		u += "?" + opts.Query.Encode()
	}

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, &RequestError{Kind: KindTransport, Method: method, Endpoint: endpoint,
			Message: "Could not encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &RequestError{Kind: KindTransport, Method: method, Endpoint: endpoint,
			Message: "Could not build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.creds.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			log.FieldMethod, method,
			log.FieldEndpoint, endpoint,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err)
		return nil, &RequestError{Kind: KindTransport, Method: method, Endpoint: endpoint,
			Message: "Unable to reach the server. Please try again.", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Kind: KindTransport, Method: method, Endpoint: endpoint, Status: resp.StatusCode,
			Message: "Unable to read the server response.", Err: err}
	}
	data := decodeBody(raw)

	c.logger.DebugContext(ctx, "API request",
		log.FieldMethod, method,
		log.FieldEndpoint, endpoint,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := statusError(method, endpoint, resp.StatusCode, data)
		if reqErr.Kind == KindUnauthenticated {
			c.logger.InfoContext(ctx, "API rejected credentials",
				log.FieldEndpoint, endpoint,
				log.FieldErrorType, log.ErrorTypeAuth)
			c.notifyUnauthenticated(ctx, reqErr)
		}
		return nil, reqErr
	}
	return data, nil
}

func (c *Client) notifyUnauthenticated(ctx context.Context, err *RequestError) {
	c.hooks.mu.RLock()
	fns := append([]func(context.Context, *RequestError){}, c.hooks.unauthenticated...)
	c.hooks.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, err)
	}
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return bytes.NewReader(buf), nil
}

func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return map[string]any{"message": string(raw)}
	}
	return v
}

type noCredentials struct{}

func (noCredentials) Token(context.Context) string { return "" }

func (noCredentials) Persist(context.Context, string, core.Record) error {
	return errors.New("no credential store configured")
}
