package store

import (
	"context"

	"fintrack/internal/api"
	"fintrack/internal/core"
)

// View is an api.Service for one session: list reads go through the shared
// cache and mutations evict what they change. Returned slices are shared and
// must not be modified.
type View struct {
	store *Store
	next  api.Service
	scope string
}

var _ api.Service = (*View)(nil)

// For wraps next for the session holding token. An empty token bypasses the
// cache entirely.
func (s *Store) For(next api.Service, token string) *View {
	return &View{store: s, next: next, scope: Scope(token)}
}

func (v *View) cached() bool { return v.scope != "" }

func (v *View) Register(ctx context.Context, in api.RegisterInput) (api.AuthResult, error) {
	return v.next.Register(ctx, in)
}

func (v *View) Login(ctx context.Context, email, password string) (api.AuthResult, error) {
	return v.next.Login(ctx, email, password)
}

func (v *View) GetProfile(ctx context.Context) (core.Record, error) {
	return v.next.GetProfile(ctx)
}

func (v *View) UpdateProfile(ctx context.Context, p core.ProfileUpdate) (core.Record, error) {
	return v.next.UpdateProfile(ctx, p)
}

func (v *View) DeleteProfile(ctx context.Context) error {
	if err := v.next.DeleteProfile(ctx); err != nil {
		return err
	}
	v.store.invalidate(ctx, v.scope, TargetAccounts, TargetCategories, TargetTransactions)
	return nil
}

func (v *View) GetAccounts(ctx context.Context) ([]core.Account, error) {
	if !v.cached() {
		return v.next.GetAccounts(ctx)
	}
	return load(v.store, v.store.accounts, accountsKey(v.scope), func() ([]core.Account, error) {
		return v.next.GetAccounts(ctx)
	})
}

func (v *View) GetAccount(ctx context.Context, id string) (core.Account, error) {
	return v.next.GetAccount(ctx, id)
}

// Account mutations evict every transaction list of the session, since
// lists embed account names and balances.
func (v *View) CreateAccount(ctx context.Context, in core.AccountInput) (core.Account, error) {
	a, err := v.next.CreateAccount(ctx, in)
	if err != nil {
		return a, err
	}
	v.store.invalidate(ctx, v.scope, TargetAccounts, TargetTransactions)
	return a, nil
}

func (v *View) UpdateAccount(ctx context.Context, id string, in core.AccountInput) (core.Account, error) {
	a, err := v.next.UpdateAccount(ctx, id, in)
	if err != nil {
		return a, err
	}
	v.store.invalidate(ctx, v.scope, TargetAccounts, TargetTransactions)
	return a, nil
}

func (v *View) DeleteAccount(ctx context.Context, id string) error {
	if err := v.next.DeleteAccount(ctx, id); err != nil {
		return err
	}
	v.store.invalidate(ctx, v.scope, TargetAccounts, TargetTransactions)
	return nil
}

func (v *View) GetCategories(ctx context.Context) ([]core.Category, error) {
	if !v.cached() {
		return v.next.GetCategories(ctx)
	}
	return load(v.store, v.store.categories, categoriesKey(v.scope), func() ([]core.Category, error) {
		return v.next.GetCategories(ctx)
	})
}

func (v *View) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return v.next.GetCategory(ctx, id)
}

func (v *View) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	c, err := v.next.CreateCategory(ctx, in)
	if err != nil {
		return c, err
	}
	v.store.invalidate(ctx, v.scope, TargetCategories)
	return c, nil
}

func (v *View) UpdateCategory(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	c, err := v.next.UpdateCategory(ctx, id, in)
	if err != nil {
		return c, err
	}
	v.store.invalidate(ctx, v.scope, TargetCategories)
	return c, nil
}

func (v *View) DeleteCategory(ctx context.Context, id string) error {
	if err := v.next.DeleteCategory(ctx, id); err != nil {
		return err
	}
	v.store.invalidate(ctx, v.scope, TargetCategories)
	return nil
}

func (v *View) GetTransactions(ctx context.Context, accountID string, f api.TransactionFilter) ([]core.Transaction, error) {
	if !v.cached() || !core.HasID(accountID) {
		return v.next.GetTransactions(ctx, accountID, f)
	}
	return load(v.store, v.store.transactions, transactionsKey(v.scope, accountID, f), func() ([]core.Transaction, error) {
		return v.next.GetTransactions(ctx, accountID, f)
	})
}

func (v *View) GetTransaction(ctx context.Context, id, accountID string) (core.Transaction, error) {
	return v.next.GetTransaction(ctx, id, accountID)
}

// Transaction mutations change the account balance server side, so the
// account list is evicted too.
func (v *View) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	t, err := v.next.CreateTransaction(ctx, in)
	if err != nil {
		return t, err
	}
	v.store.invalidate(ctx, v.scope, TargetAccounts, TransactionsOf(in.AccountID))
	return t, nil
}

// UpdateTransaction evicts every list of the session: an edit may move the
// transaction to another account and the previous one is not known here.
func (v *View) UpdateTransaction(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	t, err := v.next.UpdateTransaction(ctx, id, in)
	if err != nil {
		return t, err
	}
	v.store.invalidate(ctx, v.scope, TargetAccounts, TargetTransactions)
	return t, nil
}

func (v *View) DeleteTransaction(ctx context.Context, id, accountID string) error {
	if err := v.next.DeleteTransaction(ctx, id, accountID); err != nil {
		return err
	}
	target := TargetTransactions
	if core.HasID(accountID) {
		target = TransactionsOf(accountID)
	}
	v.store.invalidate(ctx, v.scope, TargetAccounts, target)
	return nil
}
