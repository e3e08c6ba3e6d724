package api

import "fintrack/internal/core"

// unwrapList accepts a bare array or an object holding the array under key.
// Any other shape yields an empty list. Non-object elements are dropped.
func unwrapList(body any, key string) []core.Record {
	var items []any
	switch v := body.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v[key].([]any)
	}
	out := make([]core.Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, core.Record(m))
		}
	}
	return out
}

// unwrapRecord accepts a bare object or an object holding it under key.
func unwrapRecord(body any, key string) core.Record {
	m, ok := body.(map[string]any)
	if !ok {
		return core.Record{}
	}
	if inner, ok := m[key].(map[string]any); ok {
		return core.Record(inner)
	}
	return core.Record(m)
}

func accountsFrom(body any) []core.Account {
	recs := unwrapList(body, "accounts")
	out := make([]core.Account, 0, len(recs))
	for _, r := range recs {
		out = append(out, core.AccountFromRecord(r))
	}
	return out
}

func categoriesFrom(body any) []core.Category {
	recs := unwrapList(body, "categories")
	out := make([]core.Category, 0, len(recs))
	for _, r := range recs {
		out = append(out, core.CategoryFromRecord(r))
	}
	return out
}

func transactionsFrom(body any) []core.Transaction {
	recs := unwrapList(body, "transactions")
	out := make([]core.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, core.TransactionFromRecord(r))
	}
	return out
}
