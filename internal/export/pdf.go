package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

var columnWidths = []float64{32, 30, 50, 30, 20, 28}

// WritePDF writes the report as an A4 table.
func WritePDF(w io.Writer, r Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, tr(r.Title))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 8, "Generated "+r.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	for i, h := range Header {
		pdf.CellFormat(columnWidths[i], 7, h, "1", 0, "", false, 0, "")
	}
	pdf.Ln(7)

	pdf.SetFont("Arial", "", 9)
	for _, row := range r.Rows {
		for i, v := range row.Values() {
			align := ""
			if i == len(columnWidths)-1 {
				align = "R"
			}
			pdf.CellFormat(columnWidths[i], 7, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(7)
	}

	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 10)
	for _, line := range [][2]string{
		{"Income", r.Summary.Income.Decimal()},
		{"Expense", r.Summary.Expense.Decimal()},
		{"Net", r.Summary.Net.Decimal()},
	} {
		pdf.CellFormat(30, 7, line[0], "", 0, "", false, 0, "")
		pdf.CellFormat(30, 7, line[1], "", 0, "R", false, 0, "")
		pdf.Ln(7)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
