package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// StatementLine is a single ledger movement on a points statement.
type StatementLine struct {
	Date        time.Time
	Kind        string
	Description string
	Amount      int
	Balance     int
}

// Statement holds everything needed to render a points statement.
type Statement struct {
	UserName    string
	UserEmail   string
	GeneratedAt time.Time
	Balance     int
	Lines       []StatementLine
}

// StatementPDF renders a points statement into PDF bytes.
type StatementPDF struct{}

// NewStatementPDF constructs a statement renderer.
func NewStatementPDF() *StatementPDF {
	return &StatementPDF{}
}

// Render produces the PDF document for the statement.
func (e *StatementPDF) Render(st Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "POINTS STATEMENT", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Member: %s <%s>", st.UserName, st.UserEmail), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", st.GeneratedAt.Format("2006-01-02 15:04 MST")), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Current balance: %d points", st.Balance), "", 1, "", false, 0, "")
	pdf.Ln(4)

	headers := []string{"Date", "Kind", "Description", "Amount", "Balance"}
	widths := []float64{28, 25, 87, 25, 25}

	pdf.SetFont("Arial", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, line := range st.Lines {
		pdf.CellFormat(widths[0], 7, line.Date.Format("2006-01-02"), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 7, line.Kind, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 7, line.Description, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprintf("%+d", line.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, fmt.Sprintf("%d", line.Balance), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}
