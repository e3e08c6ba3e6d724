package core

import (
	"sort"
	"time"
)

// RecentLimit is how many transactions the dashboard lists.
const RecentLimit = 5

type DashboardStats struct {
	TotalBalance Money
	TotalIncome  Money
	TotalExpense Money
	AccountCount int
}

// TaggedTransaction is a transaction annotated with its account's name.
type TaggedTransaction struct {
	Transaction
	AccountName string
}

type TransactionSummary struct {
	Income  Money
	Expense Money
	Net     Money
	Count   int
}

// TotalBalance sums account balances. Unparseable balances are already zero.
func TotalBalance(accounts []Account) Money {
	var total Money
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// Totals sums amounts per type. Types other than income and expense count
// for neither.
func Totals(txs []Transaction) (income, expense Money) {
	for _, t := range txs {
		switch {
		case t.Type.Is(Income):
			income = income.Add(t.Amount)
		case t.Type.Is(Expense):
			expense = expense.Add(t.Amount)
		}
	}
	return income, expense
}

func ComputeStats(accounts []Account, txs []Transaction) DashboardStats {
	income, expense := Totals(txs)
	return DashboardStats{
		TotalBalance: TotalBalance(accounts),
		TotalIncome:  income,
		TotalExpense: expense,
		AccountCount: len(accounts),
	}
}

func SummarizeTransactions(txs []Transaction) TransactionSummary {
	income, expense := Totals(txs)
	return TransactionSummary{
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
		Count:   len(txs),
	}
}

// RecentTransactions returns the newest limit transactions, newest first.
// Undated transactions sort last; ties keep their input order.
func RecentTransactions(txs []TaggedTransaction, limit int) []TaggedTransaction {
	out := make([]TaggedTransaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newer(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.After(b)
}

// FilterCategories returns the categories whose type equals t.
func FilterCategories(categories []Category, t TxType) []Category {
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		if c.Type.Is(t) {
			out = append(out, c)
		}
	}
	return out
}

func FindAccount(accounts []Account, id string) (Account, bool) {
	if !HasID(id) {
		return Account{}, false
	}
	for _, a := range accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

func FindCategory(categories []Category, id string) (Category, bool) {
	if !HasID(id) {
		return Category{}, false
	}
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryLabel names the transaction's category, preferring the loaded
// category list over the name embedded in the transaction.
func CategoryLabel(categories []Category, tx Transaction, unknown string) string {
	if c, ok := FindCategory(categories, tx.CategoryID); ok {
		return c.Name
	}
	if tx.CategoryName != "" {
		return tx.CategoryName
	}
	return unknown
}

// DateLayout is how timestamps are displayed.
const DateLayout = "2006-01-02 15:04"

// DisplayDate formats t, or "N/A" when it is unknown.
func DisplayDate(t time.Time) string {
	if t.IsZero() {
		return NoID
	}
	return t.Format(DateLayout)
}

// SignedAmount is the amount with a sign by transaction type, e.g. "+₹5.00".
func SignedAmount(t Transaction, symbol string) string {
	return t.Type.Sign() + t.Amount.Format(symbol)
}
