package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	goption "google.golang.org/api/option"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func sampleReport() Report {
	txs := []core.Transaction{
		{ID: "t1", Type: core.Income, Amount: core.Money{Cents: 50000}, Description: "Salary", CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "t2", Type: core.Expense, Amount: core.Money{Cents: 1250}, Description: "Lunch"},
	}
	list := services.TransactionList{
		Account: core.Account{ID: "a1", Name: "My Wallet"},
		Rows:    services.LabelTransactions([]core.Category{{ID: "c1", Name: "Food"}}, txs),
		Summary: core.SummarizeTransactions(txs),
	}
	return NewReport(list, "₹", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
}

func TestNewReport(t *testing.T) {
	r := sampleReport()
	require.Len(t, r.Rows, 2)
	assert.Equal(t, Row{Date: "2024-03-01 09:00", Account: "My Wallet", Description: "Salary", Category: "Unknown", Type: "income", Amount: "500.00", Cents: 50000}, r.Rows[0])
	assert.Equal(t, "N/A", r.Rows[1].Date)
	assert.Equal(t, "-12.50", r.Rows[1].Amount)
	assert.Equal(t, "transactions-My-Wallet-20240331.pdf", r.Filename(FormatPDF))
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"xlsx", " PDF ", "sheets"} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("csv")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleReport()))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := file.Sheet[sheetName]
	require.True(t, ok)

	require.GreaterOrEqual(t, len(sheet.Rows), 3)
	assert.Equal(t, "Date", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "Amount", sheet.Rows[0].Cells[5].Value)
	assert.Equal(t, "Salary", sheet.Rows[1].Cells[2].Value)
	assert.Equal(t, "Lunch", sheet.Rows[2].Cells[2].Value)

	last := sheet.Rows[len(sheet.Rows)-1]
	assert.Equal(t, "Net", last.Cells[0].Value)
	assert.Equal(t, "487.50", last.Cells[1].Value)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleReport()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestSheetsAppender(t *testing.T) {
	var got struct {
		Values [][]any `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":append") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "USER_ENTERED", r.URL.Query().Get("valueInputOption"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Transactions!A2:F3","updatedRows":2}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	a, err := NewSheetsAppender(ctx, nil, "sheet-id", "Transactions", nil,
		goption.WithEndpoint(srv.URL+"/"), goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	rng, err := a.Append(ctx, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "Transactions!A2:F3", rng)
	require.Len(t, got.Values, 2)
	assert.Equal(t, "Lunch", got.Values[1][2])
	assert.InDelta(t, -12.5, got.Values[1][5], 0.001)
}

func TestSheetsDisabled(t *testing.T) {
	_, err := NewSheetsAppender(context.Background(), nil, "", "Transactions", nil)
	assert.ErrorIs(t, err, ErrSheetsDisabled)

	var a *SheetsAppender
	_, err = a.Append(context.Background(), sampleReport())
	assert.True(t, errors.Is(err, ErrSheetsDisabled))
}
