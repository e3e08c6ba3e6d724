package http

import (
	"errors"
	"net/http"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type accountsView struct {
	Accounts []core.Account
	Total    core.Money
	Found    string
}

type accountFormView struct {
	ID      string
	Editing bool
	Input   core.AccountInput
	Balance string
	Types   []core.AccountType
}

// confirmView backs every delete confirmation page.
type confirmView struct {
	Heading string
	Message string
	Action  string
	Cancel  string
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	s.renderAccounts(w, r, "")
}

// renderAccounts shows the list with errMsg in the alert banner.
func (s *Server) renderAccounts(w http.ResponseWriter, r *http.Request, errMsg string) {
	p := pageData{Title: "Accounts", Nav: "accounts", Error: errMsg}
	accounts, err := s.service(w, r).GetAccounts(r.Context())
	if err != nil {
		if s.handleRemote(w, r, log.OpList, err) {
			return
		}
		p.Error = firstNonEmpty(errMsg, "Failed to fetch accounts")
	}
	p.Data = accountsView{
		Accounts: accounts,
		Total:    core.TotalBalance(accounts),
		Found:    services.AccountsFound(len(accounts)),
	}
	s.render(w, r, http.StatusOK, "accounts.html", p)
}

func (s *Server) handleAccountForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view := accountFormView{ID: id, Editing: id != "", Input: core.AccountInput{Type: core.AccountSavings}, Types: core.AccountTypes}
	p := pageData{Title: "Create New Account", Nav: "accounts"}

	if view.Editing {
		p.Title = "Edit Account"
		a, err := s.service(w, r).GetAccount(r.Context(), id)
		if err != nil {
			if s.handleRemote(w, r, log.OpRead, err) {
				return
			}
			p.Error = "Failed to fetch account details: " + api.Message(err, "unknown error")
		} else {
			view.Input = core.AccountInput{Name: a.Name, Type: a.Type, Balance: a.Balance}
		}
	}
	view.Balance = view.Input.Balance.Decimal()
	p.Data = view
	s.render(w, r, http.StatusOK, "account_form.html", p)
}

func (s *Server) handleSaveAccount(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	in := parseAccountInput(r.PostForm)
	view := accountFormView{ID: id, Editing: id != "", Input: in, Balance: formValue(r.PostForm, "balance"), Types: core.AccountTypes}
	fail := func(status int, msg string) {
		title := "Create New Account"
		if view.Editing {
			title = "Edit Account"
		}
		s.render(w, r, status, "account_form.html", pageData{Title: title, Nav: "accounts", Error: msg, Data: view})
	}

	if err := in.Validate(); err != nil {
		msg := msgRequiredFields
		if errors.Is(err, core.ErrInvalidAccountType) {
			msg = "Please select a valid account type"
		}
		fail(http.StatusUnprocessableEntity, msg)
		return
	}

	svc := s.service(w, r)
	var err error
	op := log.OpCreate
	if view.Editing {
		op = log.OpUpdate
		_, err = svc.UpdateAccount(r.Context(), id, in)
	} else {
		_, err = svc.CreateAccount(r.Context(), in)
	}
	if err != nil {
		if s.handleRemote(w, r, op, err) {
			return
		}
		fail(http.StatusUnprocessableEntity, api.Message(err, "Failed to save account"))
		return
	}
	s.logger.InfoContext(r.Context(), "Account saved", log.FieldOperation, op, log.FieldAccountID, id)
	redirect(w, r, "/accounts")
}

func (s *Server) handleConfirmDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := id
	if a, err := s.service(w, r).GetAccount(r.Context(), id); err == nil {
		name = a.Name
	} else if s.policy.HandleError(w, r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "confirm.html", pageData{
		Title: "Delete Account",
		Nav:   "accounts",
		Data: confirmView{
			Heading: "Delete account " + name,
			Message: "Are you sure you want to delete this account? All of its transactions will be removed.",
			Action:  "/accounts/delete/" + id,
			Cancel:  "/accounts",
		},
	})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service(w, r).DeleteAccount(r.Context(), id); err != nil {
		if s.handleRemote(w, r, log.OpDelete, err) {
			return
		}
		s.renderAccounts(w, r, "Failed to delete account: "+api.Message(err, "unknown error"))
		return
	}
	s.logger.InfoContext(r.Context(), "Account deleted", log.FieldOperation, log.OpDelete, log.FieldAccountID, id)
	redirect(w, r, "/accounts")
}
