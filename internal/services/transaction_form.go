package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

const (
	MsgSelectAccount   = "Please select an account"
	MsgInvalidAmount   = "Amount must be a number greater than 0"
	MsgSelectCategory  = "Please select a category"
	MsgInvalidSelected = "Invalid account or category selected"
	MsgSaveFailed      = "Failed to save transaction. Please check your balance and try again."
)

// FormState is the lifecycle of a transaction form.
type FormState int

const (
	StateInitializing FormState = iota
	StateReady
	StateSubmitting
	StateNavigatedAway
)

func (s FormState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateNavigatedAway:
		return "navigated-away"
	}
	return "unknown"
}

// ReselectPolicy decides what happens to a category selection that stops
// matching the transaction type.
type ReselectPolicy string

const (
	ReselectFirst ReselectPolicy = "first"
	ReselectClear ReselectPolicy = "clear"
)

// ParseReselectPolicy defaults to ReselectFirst.
func ParseReselectPolicy(s string) ReselectPolicy {
	if ReselectPolicy(strings.ToLower(strings.TrimSpace(s))) == ReselectClear {
		return ReselectClear
	}
	return ReselectFirst
}

// DefaultCategories are created, in order, for users without categories.
var DefaultCategories = []core.CategoryInput{
	{Name: "Salary", Type: core.Income},
	{Name: "Business", Type: core.Income},
	{Name: "Investment", Type: core.Income},
	{Name: "Food & Dining", Type: core.Expense},
	{Name: "Shopping", Type: core.Expense},
	{Name: "Rent", Type: core.Expense},
	{Name: "Transportation", Type: core.Expense},
	{Name: "Entertainment", Type: core.Expense},
	{Name: "Healthcare", Type: core.Expense},
	{Name: "Education", Type: core.Expense},
	{Name: "Utilities", Type: core.Expense},
	{Name: "Other", Type: core.Income},
	{Name: "Other", Type: core.Expense},
}

// ValidationError is a form error caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// TransactionValues are the raw form inputs.
type TransactionValues struct {
	AccountID   string
	CategoryID  string
	Type        core.TxType
	Amount      string
	Description string
}

// ValuesFromForm reads the transaction form fields. An unknown type falls
// back to expense.
func ValuesFromForm(form url.Values) TransactionValues {
	t, ok := core.ParseTxType(form.Get("type"))
	if !ok {
		t = core.Expense
	}
	return TransactionValues{
		AccountID:   strings.TrimSpace(form.Get("accountId")),
		CategoryID:  strings.TrimSpace(form.Get("categoryId")),
		Type:        t,
		Amount:      strings.TrimSpace(form.Get("amount")),
		Description: strings.TrimSpace(form.Get("description")),
	}
}

// TransactionForm is one render of the new or edit transaction screen.
type TransactionForm struct {
	State         FormState
	TransactionID string // set in edit mode
	Accounts      []core.Account
	Categories    []core.Category
	Values        TransactionValues
	Error         string

	policy ReselectPolicy
}

func (f *TransactionForm) Editing() bool { return f.TransactionID != "" }

// FilteredCategories are the options offered for the selected type.
func (f *TransactionForm) FilteredCategories() []core.Category {
	return core.FilterCategories(f.Categories, f.Values.Type)
}

// SetType switches the transaction type and repairs the category
// selection so it never mismatches the type.
func (f *TransactionForm) SetType(t core.TxType) {
	f.Values.Type = t
	f.reconcileCategory()
}

func (f *TransactionForm) reconcileCategory() {
	options := f.FilteredCategories()
	if _, ok := core.FindCategory(options, f.Values.CategoryID); ok {
		return
	}
	f.Values.CategoryID = ""
	if f.policy == ReselectFirst && len(options) > 0 {
		f.Values.CategoryID = options[0].ID
	}
}

// Apply overlays submitted values. The category is kept as submitted;
// Validate rejects a stale or mismatched one.
func (f *TransactionForm) Apply(v TransactionValues) {
	f.Values = v
	if f.Values.Type == "" {
		f.Values.Type = core.Expense
	}
}

// Validate checks the values in display order and resolves them against
// the loaded options.
func (f *TransactionForm) Validate() (core.TransactionInput, error) {
	v := f.Values
	if !core.HasID(v.AccountID) {
		return core.TransactionInput{}, &ValidationError{Field: "accountId", Message: MsgSelectAccount}
	}
	amount, err := core.ParseAmount(v.Amount)
	if err != nil {
		return core.TransactionInput{}, &ValidationError{Field: "amount", Message: MsgInvalidAmount}
	}
	if !core.HasID(v.CategoryID) {
		return core.TransactionInput{}, &ValidationError{Field: "categoryId", Message: MsgSelectCategory}
	}

	account, okAccount := core.FindAccount(f.Accounts, v.AccountID)
	category, okCategory := core.FindCategory(f.Categories, v.CategoryID)
	if !okAccount || !okCategory {
		return core.TransactionInput{}, &ValidationError{Message: MsgInvalidSelected}
	}
	// Without the htmx type toggle the posted category can belong to the
	// other type.
	if !category.Type.Is(v.Type) {
		return core.TransactionInput{}, &ValidationError{Field: "categoryId", Message: MsgSelectCategory}
	}

	return core.TransactionInput{
		AccountID:   account.ID,
		CategoryID:  category.ID,
		Type:        v.Type,
		Amount:      amount,
		Description: v.Description,
	}, nil
}

// RedirectURL is where a successful submit navigates.
func (f *TransactionForm) RedirectURL() string {
	return "/transactions?account=" + url.QueryEscape(f.Values.AccountID)
}

type TransactionFormService struct {
	policy ReselectPolicy
	logger *log.Logger
}

func NewTransactionFormService(policy ReselectPolicy, logger *log.Logger) *TransactionFormService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionFormService{policy: policy, logger: logger.WithComponent(log.ComponentForm)}
}

// Init loads accounts and categories concurrently and returns a ready form.
// preselect chooses the account when it names a loaded one; otherwise the
// first account is selected. Users without categories get the defaults.
func (s *TransactionFormService) Init(ctx context.Context, svc api.Service, preselect string) (*TransactionForm, error) {
	f := &TransactionForm{
		State:  StateInitializing,
		Values: TransactionValues{Type: core.Expense},
		policy: s.policy,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := svc.GetAccounts(gctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		f.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		categories, err := svc.GetCategories(gctx)
		if err != nil {
			if api.IsUnauthenticated(err) {
				return err
			}
			// Treated like an empty list: seeding follows.
			s.logger.WarnContext(ctx, "Failed to load categories", log.FieldError, err)
			return nil
		}
		f.Categories = categories
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(f.Categories) == 0 {
		categories, err := s.seed(ctx, svc)
		if err != nil {
			return nil, err
		}
		f.Categories = categories
	}

	if a, ok := core.FindAccount(f.Accounts, preselect); ok {
		f.Values.AccountID = a.ID
	} else if len(f.Accounts) > 0 {
		f.Values.AccountID = f.Accounts[0].ID
	}
	f.reconcileCategory()
	f.State = StateReady
	return f, nil
}

// InitEdit loads the options and prefills the form from transaction id.
func (s *TransactionFormService) InitEdit(ctx context.Context, svc api.Service, id, accountID string) (*TransactionForm, error) {
	f, err := s.Init(ctx, svc, accountID)
	if err != nil {
		return nil, err
	}
	tx, err := svc.GetTransaction(ctx, id, accountID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}

	f.TransactionID = id
	f.Values = TransactionValues{
		AccountID:   tx.AccountID,
		CategoryID:  tx.CategoryID,
		Type:        tx.Type,
		Amount:      tx.Amount.Decimal(),
		Description: tx.Description,
	}
	if !core.HasID(f.Values.AccountID) {
		f.Values.AccountID = accountID
	}
	if _, ok := core.ParseTxType(string(f.Values.Type)); !ok {
		f.Values.Type = core.Expense
	}
	f.reconcileCategory()
	return f, nil
}

// seed creates the default categories, ignoring individual failures such
// as duplicates, and reloads the list.
func (s *TransactionFormService) seed(ctx context.Context, svc api.Service) ([]core.Category, error) {
	created := 0
	for _, c := range DefaultCategories {
		if _, err := svc.CreateCategory(ctx, c); err != nil {
			if api.IsUnauthenticated(err) {
				return nil, err
			}
			s.logger.DebugContext(ctx, "Skipping default category",
				"name", c.Name, log.FieldError, err)
			continue
		}
		created++
	}
	s.logger.InfoContext(ctx, "Seeded default categories",
		log.FieldOperation, log.OpSeed, log.FieldCount, created)

	categories, err := svc.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload categories: %w", err)
	}
	return categories, nil
}

// Submit validates f and creates or updates the transaction. On failure
// the form is ready again with a display message; on success it has
// navigated away.
func (s *TransactionFormService) Submit(ctx context.Context, svc api.Service, f *TransactionForm) error {
	f.State = StateSubmitting
	f.Error = ""

	in, err := f.Validate()
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Field == "categoryId" {
			f.reconcileCategory()
		}
		f.State = StateReady
		f.Error = err.Error()
		return err
	}

	op := log.OpCreate
	if f.Editing() {
		op = log.OpUpdate
		_, err = svc.UpdateTransaction(ctx, f.TransactionID, in)
	} else {
		_, err = svc.CreateTransaction(ctx, in)
	}
	if err != nil {
		f.State = StateReady
		f.Error = api.Message(err, MsgSaveFailed)
		return err
	}

	log.NewStructuredLogger(s.logger).LogTransactionSaved(ctx, op, log.TransactionFields{
		AccountID:   in.AccountID,
		CategoryID:  in.CategoryID,
		Type:        string(in.Type),
		AmountCents: in.Amount.Cents,
	})
	f.State = StateNavigatedAway
	return nil
}

// CategoryOptions is the category select for type, keeping selected when it
// still matches. It backs the type toggle.
func (s *TransactionFormService) CategoryOptions(ctx context.Context, svc api.Service, t core.TxType, selected string) (*TransactionForm, error) {
	categories, err := svc.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	f := &TransactionForm{
		State:      StateReady,
		Categories: categories,
		Values:     TransactionValues{CategoryID: selected},
		policy:     s.policy,
	}
	f.SetType(t)
	return f, nil
}
