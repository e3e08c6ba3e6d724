// Package services holds the screen logic that is more than rendering:
// dashboard aggregation, the transaction form and list filters.
package services

import (
	"context"
	"fmt"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Dashboard is everything the dashboard screen renders.
type Dashboard struct {
	Accounts []core.Account
	Stats    core.DashboardStats
	Recent   []core.TaggedTransaction

	// FailedAccounts names the accounts whose transactions could not be
	// loaded. Their balances still count.
	FailedAccounts []string
}

// PartiallyLoaded reports whether some account's transactions are missing.
func (d Dashboard) PartiallyLoaded() bool { return len(d.FailedAccounts) > 0 }

type DashboardService struct {
	logger *log.Logger
}

func NewDashboardService(logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{logger: logger.WithComponent(log.ComponentDashboard)}
}

// Load fetches the accounts and then each account's transactions in turn.
// A failed account fetch fails the dashboard; a failed transaction fetch
// only drops that account's transactions. An unauthenticated error always
// aborts since every further call would fail the same way.
func (s *DashboardService) Load(ctx context.Context, svc api.Service) (Dashboard, error) {
	accounts, err := svc.GetAccounts(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load accounts: %w", err)
	}

	var (
		all    []core.Transaction
		tagged []core.TaggedTransaction
		failed []string
	)
	for _, a := range accounts {
		if !core.HasID(a.ID) {
			continue
		}
		txs, err := svc.GetTransactions(ctx, a.ID, api.TransactionFilter{})
		if err != nil {
			if api.IsUnauthenticated(err) {
				return Dashboard{}, err
			}
			s.logger.WarnContext(ctx, "Failed to load account transactions",
				log.FieldAccountID, a.ID,
				log.FieldError, err)
			failed = append(failed, a.Name)
			continue
		}
		all = append(all, txs...)
		for _, t := range txs {
			tagged = append(tagged, core.TaggedTransaction{Transaction: t, AccountName: a.Name})
		}
	}

	return Dashboard{
		Accounts:       accounts,
		Stats:          core.ComputeStats(accounts, all),
		Recent:         core.RecentTransactions(tagged, core.RecentLimit),
		FailedAccounts: failed,
	}, nil
}
