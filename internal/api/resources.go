package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"fintrack/internal/core"
)

// Service is the set of remote operations the views depend on.
type Service interface {
	Register(ctx context.Context, in RegisterInput) (AuthResult, error)
	Login(ctx context.Context, email, password string) (AuthResult, error)
	GetProfile(ctx context.Context) (core.Record, error)
	UpdateProfile(ctx context.Context, p core.ProfileUpdate) (core.Record, error)
	DeleteProfile(ctx context.Context) error

	GetAccounts(ctx context.Context) ([]core.Account, error)
	GetAccount(ctx context.Context, id string) (core.Account, error)
	CreateAccount(ctx context.Context, in core.AccountInput) (core.Account, error)
	UpdateAccount(ctx context.Context, id string, in core.AccountInput) (core.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	GetCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error)
	UpdateCategory(ctx context.Context, id string, in core.CategoryInput) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	GetTransactions(ctx context.Context, accountID string, f TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id, accountID string) (core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id, accountID string) error
}

type RegisterInput struct {
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	MobileNo string `json:"mobileNo"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is what login and registration return. Token is empty when the
// backend did not issue one.
type AuthResult struct {
	Token   string
	User    core.Record
	Message string
}

// TransactionFilter is passed through as query parameters; the backend
// defines the matching semantics.
type TransactionFilter struct {
	Type       string
	CategoryID string
	StartDate  string
	EndDate    string
	Limit      int
	Extra      map[string]string
}

// Values encodes the non-empty filter fields.
func (f TransactionFilter) Values() url.Values {
	v := url.Values{}
	for k, val := range f.Extra {
		if val != "" {
			v.Set(k, val)
		}
	}
	set := func(k, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(k, val)
		}
	}
	set("type", f.Type)
	set("categoryId", f.CategoryID)
	set("startDate", f.StartDate)
	set("endDate", f.EndDate)
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// IsZero reports whether no filter is set.
func (f TransactionFilter) IsZero() bool {
	return len(f.Values()) == 0
}

// Messages of the pre-flight transaction checks.
const (
	MsgInvalidAccountID   = "Invalid account ID"
	MsgCategoryIDRequired = "Category ID is required"
)

func (c *Client) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	data, err := c.Request(ctx, "/users/register", RequestOptions{Method: http.MethodPost, Body: in})
	if err != nil {
		return AuthResult{}, err
	}
	return c.persistAuth(ctx, data)
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	data, err := c.Request(ctx, "/users/login", RequestOptions{Method: http.MethodPost, Body: body})
	if err != nil {
		return AuthResult{}, err
	}
	return c.persistAuth(ctx, data)
}

func (c *Client) persistAuth(ctx context.Context, data any) (AuthResult, error) {
	m, _ := data.(map[string]any)
	res := AuthResult{Message: messageField(data)}
	res.Token, _ = m["token"].(string)
	if u, ok := m["user"].(map[string]any); ok {
		res.User = core.Record(u)
	}
	if res.Token == "" {
		return res, nil
	}
	if res.User == nil {
		res.User = core.Record{}
	}
	if err := c.creds.Persist(ctx, res.Token, res.User); err != nil {
		return res, &RequestError{Kind: KindTransport, Message: "Could not save your session.", Err: err}
	}
	return res, nil
}

// GetProfile tries /users/me and falls back to /users/profile. An expired
// session is not retried.
func (c *Client) GetProfile(ctx context.Context) (core.Record, error) {
	data, err := c.withProfileFallback(func(endpoint string) (any, error) {
		return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet})
	})
	if err != nil {
		return nil, err
	}
	return unwrapRecord(data, "user"), nil
}

func (c *Client) UpdateProfile(ctx context.Context, p core.ProfileUpdate) (core.Record, error) {
	data, err := c.withProfileFallback(func(endpoint string) (any, error) {
		return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodPut, Body: p.Payload()})
	})
	if err != nil {
		return nil, err
	}
	return unwrapRecord(data, "user"), nil
}

func (c *Client) withProfileFallback(call func(endpoint string) (any, error)) (any, error) {
	data, err := call("/users/me")
	if err == nil || errors.Is(err, ErrUnauthenticated) {
		return data, err
	}
	return call("/users/profile")
}

func (c *Client) DeleteProfile(ctx context.Context) error {
	_, err := c.Request(ctx, "/users/profile", RequestOptions{Method: http.MethodDelete})
	return err
}

func (c *Client) GetAccounts(ctx context.Context) ([]core.Account, error) {
	data, err := c.Request(ctx, "/accounts", RequestOptions{})
	if err != nil {
		return nil, err
	}
	return accountsFrom(data), nil
}

func (c *Client) GetAccount(ctx context.Context, id string) (core.Account, error) {
	data, err := c.Request(ctx, "/accounts/"+url.PathEscape(id), RequestOptions{})
	if err != nil {
		return core.Account{}, err
	}
	return core.AccountFromRecord(unwrapRecord(data, "account")), nil
}

func (c *Client) CreateAccount(ctx context.Context, in core.AccountInput) (core.Account, error) {
	data, err := c.Request(ctx, "/accounts", RequestOptions{Method: http.MethodPost, Body: accountPayload(in)})
	if err != nil {
		return core.Account{}, err
	}
	return core.AccountFromRecord(unwrapRecord(data, "account")), nil
}

func (c *Client) UpdateAccount(ctx context.Context, id string, in core.AccountInput) (core.Account, error) {
	data, err := c.Request(ctx, "/accounts/"+url.PathEscape(id), RequestOptions{Method: http.MethodPut, Body: accountPayload(in)})
	if err != nil {
		return core.Account{}, err
	}
	return core.AccountFromRecord(unwrapRecord(data, "account")), nil
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	_, err := c.Request(ctx, "/accounts/"+url.PathEscape(id), RequestOptions{Method: http.MethodDelete})
	return err
}

func (c *Client) GetCategories(ctx context.Context) ([]core.Category, error) {
	data, err := c.Request(ctx, "/categories", RequestOptions{})
	if err != nil {
		return nil, err
	}
	return categoriesFrom(data), nil
}

func (c *Client) GetCategory(ctx context.Context, id string) (core.Category, error) {
	data, err := c.Request(ctx, "/categories/"+url.PathEscape(id), RequestOptions{})
	if err != nil {
		return core.Category{}, err
	}
	return core.CategoryFromRecord(unwrapRecord(data, "category")), nil
}

func (c *Client) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	data, err := c.Request(ctx, "/categories", RequestOptions{Method: http.MethodPost, Body: categoryPayload(in)})
	if err != nil {
		return core.Category{}, err
	}
	return core.CategoryFromRecord(unwrapRecord(data, "category")), nil
}

func (c *Client) UpdateCategory(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	data, err := c.Request(ctx, "/categories/"+url.PathEscape(id), RequestOptions{Method: http.MethodPut, Body: categoryPayload(in)})
	if err != nil {
		return core.Category{}, err
	}
	return core.CategoryFromRecord(unwrapRecord(data, "category")), nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	_, err := c.Request(ctx, "/categories/"+url.PathEscape(id), RequestOptions{Method: http.MethodDelete})
	return err
}

// GetTransactions lists an account's transactions. Without an account there
// is nothing to list and no call is made.
func (c *Client) GetTransactions(ctx context.Context, accountID string, f TransactionFilter) ([]core.Transaction, error) {
	accountID = strings.TrimSpace(accountID)
	if !core.HasID(accountID) {
		return []core.Transaction{}, nil
	}
	q := f.Values()
	q.Set("accountId", accountID)
	data, err := c.Request(ctx, "/transactions", RequestOptions{Query: q})
	if err != nil {
		return nil, err
	}
	return transactionsFrom(data), nil
}

func (c *Client) GetTransaction(ctx context.Context, id, accountID string) (core.Transaction, error) {
	data, err := c.Request(ctx, "/transactions/"+url.PathEscape(id), RequestOptions{Query: accountQuery(accountID)})
	if err != nil {
		return core.Transaction{}, err
	}
	return core.TransactionFromRecord(unwrapRecord(data, "transaction")), nil
}

// CreateTransaction rejects a missing or display-formatted account id and a
// missing category id before any network call.
func (c *Client) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	payload, err := transactionPayload(in)
	if err != nil {
		return core.Transaction{}, err
	}
	data, err := c.Request(ctx, "/transactions", RequestOptions{Method: http.MethodPost, Body: payload})
	if err != nil {
		return core.Transaction{}, err
	}
	return core.TransactionFromRecord(unwrapRecord(data, "transaction")), nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	payload, err := transactionPayload(in)
	if err != nil {
		return core.Transaction{}, err
	}
	data, err := c.Request(ctx, "/transactions/"+url.PathEscape(id), RequestOptions{Method: http.MethodPut, Body: payload})
	if err != nil {
		return core.Transaction{}, err
	}
	return core.TransactionFromRecord(unwrapRecord(data, "transaction")), nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id, accountID string) error {
	_, err := c.Request(ctx, "/transactions/"+url.PathEscape(id), RequestOptions{
		Method: http.MethodDelete,
		Query:  accountQuery(accountID),
	})
	return err
}

func accountQuery(accountID string) url.Values {
	if accountID = strings.TrimSpace(accountID); accountID == "" {
		return nil
	}
	return url.Values{"accountId": {accountID}}
}

func accountPayload(in core.AccountInput) map[string]any {
	return map[string]any{
		"name":    strings.TrimSpace(in.Name),
		"type":    string(in.Type),
		"balance": in.Balance.Float(),
	}
}

func categoryPayload(in core.CategoryInput) map[string]any {
	return map[string]any{
		"name": strings.TrimSpace(in.Name),
		"type": string(in.Type),
	}
}

func transactionPayload(in core.TransactionInput) (map[string]any, error) {
	accountID := strings.TrimSpace(in.AccountID)
	if !core.HasID(accountID) || containsCurrencySymbol(accountID) {
		return nil, validationError(MsgInvalidAccountID)
	}
	categoryID := strings.TrimSpace(in.CategoryID)
	if !core.HasID(categoryID) {
		return nil, validationError(MsgCategoryIDRequired)
	}
	payload := map[string]any{
		"amount":     in.Amount.Float(),
		"type":       string(in.Type),
		"categoryId": categoryID,
		"accountId":  accountID,
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		payload["description"] = d
	}
	return payload, nil
}

func containsCurrencySymbol(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Sc, r) {
			return true
		}
	}
	return false
}
