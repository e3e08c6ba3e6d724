// Package export renders a transaction list as a spreadsheet, a PDF or a
// set of rows appended to Google Sheets.
package export

import (
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatPDF    Format = "pdf"
	FormatSheets Format = "sheets"
)

var ErrUnknownFormat = fmt.Errorf("unknown export format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatPDF, FormatSheets:
		return f, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// ContentType is the response type of a downloadable format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Header is the column row shared by every format.
var Header = []string{"Date", "Account", "Description", "Category", "Type", "Amount"}

// Row is one exported transaction with display values resolved.
type Row struct {
	Date        string
	Account     string
	Description string
	Category    string
	Type        string
	Amount      string // signed, two decimals, no currency symbol
	Cents       int64
}

func (r Row) Values() []string {
	return []string{r.Date, r.Account, r.Description, r.Category, r.Type, r.Amount}
}

// Report is the format independent content of an export.
type Report struct {
	Title       string
	Account     core.Account
	Symbol      string
	GeneratedAt time.Time
	Rows        []Row
	Summary     core.TransactionSummary
}

// NewReport builds the report of the selected account of list.
func NewReport(list services.TransactionList, symbol string, now time.Time) Report {
	rows := make([]Row, 0, len(list.Rows))
	for _, tr := range list.Rows {
		cents := tr.Amount.Cents
		if !tr.Type.Is(core.Income) {
			cents = -cents
		}
		rows = append(rows, Row{
			Date:        core.DisplayDate(tr.CreatedAt),
			Account:     list.Account.Name,
			Description: tr.Description,
			Category:    tr.Category,
			Type:        string(tr.Type),
			Amount:      core.Money{Cents: cents}.Decimal(),
			Cents:       cents,
		})
	}
	return Report{
		Title:       "Transactions - " + list.Account.Name,
		Account:     list.Account,
		Symbol:      symbol,
		GeneratedAt: now,
		Rows:        rows,
		Summary:     list.Summary,
	}
}

// Filename is the download name of the report in format f.
func (r Report) Filename(f Format) string {
	name := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return c
		}
		return '-'
	}, strings.TrimSpace(r.Account.Name))
	if strings.Trim(name, "-") == "" {
		name = "account"
	}
	return fmt.Sprintf("transactions-%s-%s.%s", name, r.GeneratedAt.Format("20060102"), f)
}
