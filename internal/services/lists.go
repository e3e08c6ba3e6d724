package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/api"
	"fintrack/internal/core"
)

// UnknownCategory labels transactions whose category cannot be resolved.
const UnknownCategory = "Unknown"

// TransactionQuery is the state of the transactions screen as carried in
// its URL.
type TransactionQuery struct {
	AccountID string
	Filter    api.TransactionFilter
}

// ParseTransactionQuery reads account, type, categoryId, startDate and
// endDate. A type other than income or expense is dropped.
func ParseTransactionQuery(q url.Values) TransactionQuery {
	f := api.TransactionFilter{
		CategoryID: strings.TrimSpace(q.Get("categoryId")),
		StartDate:  strings.TrimSpace(q.Get("startDate")),
		EndDate:    strings.TrimSpace(q.Get("endDate")),
	}
	if t, ok := core.ParseTxType(q.Get("type")); ok {
		f.Type = string(t)
	}
	return TransactionQuery{AccountID: strings.TrimSpace(q.Get("account")), Filter: f}
}

// Values encodes q back into screen query parameters.
func (q TransactionQuery) Values() url.Values {
	v := url.Values{}
	if q.AccountID != "" {
		v.Set("account", q.AccountID)
	}
	for k, val := range map[string]string{
		"type":       q.Filter.Type,
		"categoryId": q.Filter.CategoryID,
		"startDate":  q.Filter.StartDate,
		"endDate":    q.Filter.EndDate,
	} {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// TransactionRow is a transaction with its resolved category label.
type TransactionRow struct {
	core.Transaction
	Category string
}

type TransactionList struct {
	Accounts     []core.Account
	Categories   []core.Category
	Account      core.Account
	HasAccount   bool
	Query        TransactionQuery
	Rows         []TransactionRow
	Summary      core.TransactionSummary
	FilterActive bool
}

// LoadTransactionList loads the options, picks the account named by q (or
// the first one) and fetches its filtered transactions.
func LoadTransactionList(ctx context.Context, svc api.Service, q TransactionQuery) (TransactionList, error) {
	var list TransactionList
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := svc.GetAccounts(gctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		list.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		categories, err := svc.GetCategories(gctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		list.Categories = categories
		return nil
	})
	if err := g.Wait(); err != nil {
		return TransactionList{}, err
	}

	list.Account, list.HasAccount = core.FindAccount(list.Accounts, q.AccountID)
	if !list.HasAccount && len(list.Accounts) > 0 {
		list.Account, list.HasAccount = list.Accounts[0], true
	}
	if list.HasAccount {
		q.AccountID = list.Account.ID
	}
	list.Query = q
	list.FilterActive = !q.Filter.IsZero()

	if !list.HasAccount {
		return list, nil
	}
	txs, err := svc.GetTransactions(ctx, list.Account.ID, q.Filter)
	if err != nil {
		return TransactionList{}, fmt.Errorf("load transactions: %w", err)
	}
	list.Rows = LabelTransactions(list.Categories, txs)
	list.Summary = core.SummarizeTransactions(txs)
	return list, nil
}

func LabelTransactions(categories []core.Category, txs []core.Transaction) []TransactionRow {
	rows := make([]TransactionRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, TransactionRow{Transaction: t, Category: core.CategoryLabel(categories, t, UnknownCategory)})
	}
	return rows
}

// CategoryGroups splits categories by type for the categories screen.
type CategoryGroups struct {
	Income  []core.Category
	Expense []core.Category
}

func GroupCategories(categories []core.Category) CategoryGroups {
	return CategoryGroups{
		Income:  core.FilterCategories(categories, core.Income),
		Expense: core.FilterCategories(categories, core.Expense),
	}
}

// AccountsFound is the count line of the accounts screen.
func AccountsFound(n int) string {
	return fmt.Sprintf("%d account(s) found", n)
}
