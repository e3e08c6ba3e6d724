package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

const (
	msgLoadFailed        = "Failed to load page data"
	msgDeleteTxFailed    = "Failed to delete transaction"
	msgConfirmDeleteTx   = "Are you sure you want to delete this transaction?"
	msgNoAccountToExport = "Select an account to export"
)

type transactionsView struct {
	services.TransactionList
	Groups        services.CategoryGroups
	ClearURL      string
	SheetsEnabled bool
}

// ExportURL is the download link of the current view in format f.
func (v transactionsView) ExportURL(f string) string {
	q := v.Query.Values()
	q.Set("format", f)
	return withQuery("/transactions/export", q)
}

type categoryOptionsView struct {
	Categories []core.Category
	Selected   string
}

type transactionFormView struct {
	Form    *services.TransactionForm
	Options categoryOptionsView
	Types   []core.TxType
	Cancel  string
}

func newTransactionFormView(f *services.TransactionForm) transactionFormView {
	return transactionFormView{
		Form:    f,
		Options: categoryOptionsView{Categories: f.FilteredCategories(), Selected: f.Values.CategoryID},
		Types:   []core.TxType{core.Expense, core.Income},
		Cancel:  transactionsURL(f.Values.AccountID),
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.renderTransactions(w, r, services.ParseTransactionQuery(r.URL.Query()), "", "")
}

func (s *Server) renderTransactions(w http.ResponseWriter, r *http.Request, q services.TransactionQuery, flash, errMsg string) {
	p := pageData{Title: "Transactions", Nav: "transactions", Flash: flash, Error: errMsg}
	list, err := services.LoadTransactionList(r.Context(), s.service(w, r), q)
	if err != nil {
		if s.handleRemote(w, r, log.OpList, err) {
			return
		}
		p.Error = firstNonEmpty(errMsg, api.Message(err, msgLoadFailed))
		list.Query = q
	}
	p.Data = transactionsView{
		TransactionList: list,
		Groups:          services.GroupCategories(list.Categories),
		ClearURL:        transactionsURL(list.Query.AccountID),
		SheetsEnabled:   s.sheets != nil,
	}
	s.render(w, r, http.StatusOK, "transactions.html", p)
}

func (s *Server) handleTransactionForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	accountID := r.URL.Query().Get("account")
	svc := s.service(w, r)

	var (
		f   *services.TransactionForm
		err error
	)
	if id != "" {
		f, err = s.forms.InitEdit(r.Context(), svc, id, accountID)
	} else {
		f, err = s.forms.Init(r.Context(), svc, accountID)
		if t, ok := core.ParseTxType(r.URL.Query().Get("type")); ok && err == nil {
			f.SetType(t)
		}
	}
	if err != nil {
		if s.handleRemote(w, r, log.OpRead, err) {
			return
		}
		s.renderTransactions(w, r, services.TransactionQuery{AccountID: accountID}, "", api.Message(err, msgLoadFailed))
		return
	}
	s.renderTransactionForm(w, r, http.StatusOK, f)
}

func (s *Server) renderTransactionForm(w http.ResponseWriter, r *http.Request, status int, f *services.TransactionForm) {
	title := "Add Transaction"
	if f.Editing() {
		title = "Edit Transaction"
	}
	s.render(w, r, status, "transaction_form.html", pageData{
		Title: title,
		Nav:   "transactions",
		Error: f.Error,
		Data:  newTransactionFormView(f),
	})
}

func (s *Server) handleSaveTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	values := services.ValuesFromForm(r.PostForm)
	svc := s.service(w, r)

	f, err := s.forms.Init(r.Context(), svc, values.AccountID)
	if err != nil {
		if s.handleRemote(w, r, log.OpRead, err) {
			return
		}
		s.renderTransactions(w, r, services.TransactionQuery{AccountID: values.AccountID}, "", api.Message(err, msgLoadFailed))
		return
	}
	f.TransactionID = r.PathValue("id")
	f.Apply(values)

	if err := s.forms.Submit(r.Context(), svc, f); err != nil {
		var vErr *services.ValidationError
		if !errors.As(err, &vErr) && s.handleRemote(w, r, log.OpCreate, err) {
			return
		}
		s.renderTransactionForm(w, r, http.StatusUnprocessableEntity, f)
		return
	}

	if isHTMX(r) {
		NewHTMXResponse().
			Redirect(f.RedirectURL()).
			TriggerTransactionsChanged(f.Values.AccountID).
			Write(w)
		return
	}
	redirect(w, r, f.RedirectURL())
}

func (s *Server) handleConfirmDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	accountID := r.URL.Query().Get("account")
	v := url.Values{}
	if accountID != "" {
		v.Set("account", accountID)
	}
	s.render(w, r, http.StatusOK, "confirm.html", pageData{
		Title: "Delete Transaction",
		Nav:   "transactions",
		Data: confirmView{
			Heading: "Delete transaction",
			Message: msgConfirmDeleteTx,
			Action:  withQuery("/transactions/delete/"+url.PathEscape(id), v),
			Cancel:  transactionsURL(accountID),
		},
	})
}

// handleDeleteTransaction deletes and then shows the freshly fetched list.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	accountID := r.URL.Query().Get("account")
	if err := s.service(w, r).DeleteTransaction(r.Context(), id, accountID); err != nil {
		if s.handleRemote(w, r, log.OpDelete, err) {
			return
		}
		s.renderTransactions(w, r, services.TransactionQuery{AccountID: accountID}, "", msgDeleteTxFailed)
		return
	}
	s.logger.InfoContext(r.Context(), "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTxID, id,
		log.FieldAccountID, accountID)

	if isHTMX(r) {
		NewHTMXResponse().
			Redirect(transactionsURL(accountID)).
			TriggerTransactionsChanged(accountID).
			TriggerSuccessNotification("Transaction deleted").
			Write(w)
		return
	}
	redirect(w, r, transactionsURL(accountID))
}

// handleExport writes the selected account's filtered transactions as a
// download, or appends them to the configured spreadsheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := services.ParseTransactionQuery(r.URL.Query())
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	list, err := services.LoadTransactionList(r.Context(), s.service(w, r), q)
	if err != nil {
		if s.handleRemote(w, r, log.OpExport, err) {
			return
		}
		s.renderTransactions(w, r, q, "", api.Message(err, msgLoadFailed))
		return
	}
	if !list.HasAccount {
		s.renderTransactions(w, r, q, "", msgNoAccountToExport)
		return
	}
	report := export.NewReport(list, s.symbol, s.now())

	logExport := func(rows int) {
		s.logger.InfoContext(r.Context(), "Transactions exported",
			log.FieldOperation, log.OpExport,
			log.FieldFormat, string(format),
			log.FieldAccountID, list.Account.ID,
			log.FieldCount, rows)
	}

	if format == export.FormatSheets {
		rng, err := s.sheets.Append(r.Context(), report)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Sheets export failed",
				log.FieldOperation, log.OpExport, log.FieldError, err)
			msg := "Failed to export to Google Sheets"
			if errors.Is(err, export.ErrSheetsDisabled) {
				msg = "Google Sheets export is not configured"
			}
			s.renderTransactions(w, r, list.Query, "", msg)
			return
		}
		logExport(len(report.Rows))
		flash := fmt.Sprintf("Exported %d transaction(s) to Google Sheets", len(report.Rows))
		if rng != "" {
			flash += " (" + rng + ")"
		}
		s.renderTransactions(w, r, list.Query, flash, "")
		return
	}

	var buf bytes.Buffer
	switch format {
	case export.FormatXLSX:
		err = export.WriteXLSX(&buf, report)
	case export.FormatPDF:
		err = export.WritePDF(&buf, report)
	}
	if err != nil {
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Export failed", err,
			log.ComponentExport, log.OpExport, log.LogFields{log.FieldFormat: string(format)})
		InternalServerError("Failed to generate export").Write(w)
		return
	}
	logExport(len(report.Rows))
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(format)))
	_, _ = buf.WriteTo(w)
}

// handleCategoryOptions renders the category select for a type change.
func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	t, ok := core.ParseTxType(r.URL.Query().Get("type"))
	if !ok {
		t = core.Expense
	}
	f, err := s.forms.CategoryOptions(r.Context(), s.service(w, r), t, r.URL.Query().Get("categoryId"))
	if err != nil {
		if s.handleRemote(w, r, log.OpRead, err) {
			return
		}
		ErrorResponse(http.StatusBadGateway, "Failed to fetch categories").Write(w)
		return
	}
	s.renderPartial(w, r, "category_options", categoryOptionsView{
		Categories: f.FilteredCategories(),
		Selected:   f.Values.CategoryID,
	})
}
