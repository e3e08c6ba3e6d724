package export

import (
	"fmt"
	"io"

	"github.com/tealeg/xlsx"
)

const sheetName = "Transactions"

// WriteXLSX writes the report as a single sheet workbook: a header row, one
// row per transaction and the income, expense and net totals.
func WriteXLSX(w io.Writer, r Report) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	addRow(sheet, Header)
	for _, row := range r.Rows {
		x := sheet.AddRow()
		for _, v := range row.Values()[:5] {
			x.AddCell().SetValue(v)
		}
		x.AddCell().SetFloatWithFormat(float64(row.Cents)/100, "#,##0.00")
	}

	sheet.AddRow()
	addRow(sheet, []string{"Income", r.Summary.Income.Decimal()})
	addRow(sheet, []string{"Expense", r.Summary.Expense.Decimal()})
	addRow(sheet, []string{"Net", r.Summary.Net.Decimal()})

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetValue(v)
	}
}
