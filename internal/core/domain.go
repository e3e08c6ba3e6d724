package core

import (
	"errors"
	"strings"
	"time"
)

const (
	AccountSavings    AccountType = "savings"
	AccountCurrent    AccountType = "current"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountLoan       AccountType = "loan"

	Income  TxType = "income"
	Expense TxType = "expense"
)

type (
	AccountType string

	// TxType classifies both transactions and categories.
	TxType string

	// Record is a loosely typed JSON object as returned by the remote API.
	Record map[string]any

	User struct {
		Name     string
		LastName string
		Email    string
		MobileNo string
	}

	Account struct {
		ID        string
		Name      string
		Type      AccountType
		Balance   Money
		CreatedAt time.Time
	}

	Category struct {
		ID   string
		Name string
		Type TxType
	}

	Transaction struct {
		ID           string
		AccountID    string
		CategoryID   string
		CategoryName string // as embedded by the backend, may be empty
		Type         TxType
		Amount       Money
		Description  string
		CreatedAt    time.Time // createdAt, or date when createdAt is absent
	}

	AccountInput struct {
		Name    string
		Type    AccountType
		Balance Money
	}

	CategoryInput struct {
		Name string
		Type TxType
	}

	TransactionInput struct {
		AccountID   string
		CategoryID  string
		Type        TxType
		Amount      Money
		Description string
	}

	ProfileUpdate struct {
		Name     string
		LastName string
		Email    string
		MobileNo string
		Password string // optional, write-only
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("name is required")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidType        = errors.New("type must be income or expense")
)

// AccountTypes lists the selectable account types in display order.
var AccountTypes = []AccountType{
	AccountSavings, AccountCurrent, AccountCredit, AccountCash, AccountInvestment, AccountLoan,
}

func (t AccountType) Valid() bool {
	for _, v := range AccountTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Label is the human readable name of the account type.
func (t AccountType) Label() string {
	switch t {
	case AccountSavings:
		return "Savings"
	case AccountCurrent:
		return "Current"
	case AccountCredit:
		return "Credit Card"
	case AccountCash:
		return "Cash"
	case AccountInvestment:
		return "Investment"
	case AccountLoan:
		return "Loan"
	case "":
		return "General"
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseTxType normalizes s and reports whether it is income or expense.
func ParseTxType(s string) (TxType, bool) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	return t, t == Income || t == Expense
}

func (t TxType) Is(other TxType) bool {
	return strings.EqualFold(string(t), string(other))
}

// Sign is the display prefix for an amount of this type.
func (t TxType) Sign() string {
	if t.Is(Income) {
		return "+"
	}
	return "-"
}

// DisplayName is the greeting name, "User" when unknown.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) == "" {
		return "User"
	}
	return u.Name
}

func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if !in.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if _, ok := ParseTxType(string(in.Type)); !ok {
		return ErrInvalidType
	}
	return nil
}

// Payload is the canonical JSON body for profile updates. The password is
// only sent when set.
func (p ProfileUpdate) Payload() Record {
	out := Record{
		"name":     strings.TrimSpace(p.Name),
		"lastName": strings.TrimSpace(p.LastName),
		"email":    strings.TrimSpace(p.Email),
		"mobileNo": strings.TrimSpace(p.MobileNo),
	}
	if p.Password != "" {
		out["password"] = p.Password
	}
	return out
}

// Merge returns a copy of r with every key of the patches laid over it in
// order. Neither input is modified.
func (r Record) Merge(patches ...Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, p := range patches {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}
