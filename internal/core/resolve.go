package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NoID is returned by the id resolvers when a record carries no identifier.
const NoID = "N/A"

const (
	placeholderAccountName  = "Unnamed account"
	placeholderCategoryName = "Unnamed category"
	placeholderDescription  = "Transaction"
)

// Identifier keys in order of preference for each record kind.
var (
	accountIDKeys     = []string{"id", "_id", "accountId"}
	categoryIDKeys    = []string{"id", "_id", "categoryId"}
	transactionIDKeys = []string{"id", "_id", "transactionId"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func AccountID(r Record) string     { return firstString(r, accountIDKeys, NoID) }
func CategoryID(r Record) string    { return firstString(r, categoryIDKeys, NoID) }
func TransactionID(r Record) string { return firstString(r, transactionIDKeys, NoID) }

// HasID reports whether id is a real identifier rather than the sentinel.
func HasID(id string) bool {
	return id != "" && id != NoID
}

// RowKey is a stable list key: the id when present, otherwise the row index.
func RowKey(id string, index int) string {
	if HasID(id) {
		return id
	}
	return "row-" + strconv.Itoa(index)
}

// RecordType resolves the income/expense tag, defaulting to expense.
// Unrecognized values are kept lower-cased so they match neither type.
func RecordType(r Record) TxType {
	s, ok := stringValue(r["type"])
	if !ok || s == "" {
		return Expense
	}
	return TxType(strings.ToLower(s))
}

func AccountName(r Record) string {
	return firstString(r, []string{"name", "accountName"}, placeholderAccountName)
}

func CategoryName(r Record) string {
	return firstString(r, []string{"name", "categoryName"}, placeholderCategoryName)
}

// Timestamp resolves createdAt, falling back to date. Zero when neither parses.
func Timestamp(r Record) time.Time {
	for _, k := range []string{"createdAt", "date"} {
		if t, ok := parseTime(r[k]); ok {
			return t
		}
	}
	return time.Time{}
}

func AccountFromRecord(r Record) Account {
	balance, _ := ParseMoney(r["balance"])
	t, _ := stringValue(r["type"])
	return Account{
		ID:        AccountID(r),
		Name:      AccountName(r),
		Type:      AccountType(strings.ToLower(t)),
		Balance:   balance,
		CreatedAt: Timestamp(r),
	}
}

func CategoryFromRecord(r Record) Category {
	return Category{
		ID:   CategoryID(r),
		Name: CategoryName(r),
		Type: RecordType(r),
	}
}

// TransactionFromRecord accepts the category either as an id field or as an
// embedded object or name under "category".
func TransactionFromRecord(r Record) Transaction {
	amount, _ := ParseMoney(r["amount"])
	tx := Transaction{
		ID:          TransactionID(r),
		AccountID:   firstString(r, []string{"accountId", "account_id"}, ""),
		CategoryID:  firstString(r, []string{"categoryId", "category_id"}, ""),
		Type:        RecordType(r),
		Amount:      amount,
		Description: firstString(r, []string{"description"}, placeholderDescription),
		CreatedAt:   Timestamp(r),
	}
	tx.CategoryName, _ = stringValue(r["categoryName"])
	switch c := r["category"].(type) {
	case map[string]any:
		nested := Record(c)
		if tx.CategoryID == "" {
			if id := CategoryID(nested); HasID(id) {
				tx.CategoryID = id
			}
		}
		if tx.CategoryName == "" {
			tx.CategoryName, _ = stringValue(nested["name"])
		}
	case string:
		if tx.CategoryName == "" {
			tx.CategoryName = strings.TrimSpace(c)
		}
	}
	if tx.AccountID == "" {
		if a, ok := r["account"].(map[string]any); ok {
			if id := AccountID(Record(a)); HasID(id) {
				tx.AccountID = id
			}
		}
	}
	return tx
}

// UserFromRecord reconciles current and legacy contact field names.
func UserFromRecord(r Record) User {
	return User{
		Name:     firstString(r, []string{"name", "Name"}, ""),
		LastName: firstString(r, []string{"lastName", "LastName", "last_name"}, ""),
		Email:    firstString(r, []string{"email", "Email"}, ""),
		MobileNo: firstString(r, []string{"mobileNo", "Mobile_No", "mobile"}, ""),
	}
}

func firstString(r Record, keys []string, fallback string) string {
	for _, k := range keys {
		if s, ok := stringValue(r[k]); ok && s != "" {
			return s
		}
	}
	return fallback
}

func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

// parseTime accepts the string layouts above and unix milliseconds.
func parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case json.Number:
		if ms, err := x.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case float64:
		return time.UnixMilli(int64(x)).UTC(), true
	}
	return time.Time{}, false
}
