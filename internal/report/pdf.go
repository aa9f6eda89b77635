package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

var (
	pdfWidths = []float64{40, 98, 25, 25, 22, 40, 17} // mm, landscape A4 minus margins
	pdfAligns = []string{"L", "L", "R", "R", "R", "L", "C"}
)

// severity row tints
var severityFill = map[reconcile.Severity][3]int{
	reconcile.SeverityCritical:     {248, 215, 218},
	reconcile.SeverityWarning:      {255, 243, 205},
	reconcile.SeveritySync:         {209, 236, 241},
	reconcile.SeverityVerification: {226, 227, 229},
}

// WritePDF renders the report as a printable landscape table.
func WritePDF(w io.Writer, r *reconcile.Report) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(52, 58, 64)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range Columns {
			pdf.CellFormat(pdfWidths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-8)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AliasNbPages("")

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Stock discrepancy report", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Ledger: %s   Generated: %s UTC", r.Ledger, r.GeneratedAt.UTC().Format("2006-01-02 15:04"))), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Catalog SKUs: %d   Ledger SKUs: %d   Rows: %d   Critical: %d   Warning: %d   Sync: %d   Verification: %d",
		r.Summary.CatalogSKUs, r.Summary.LedgerSKUs, r.Summary.Total,
		r.Summary.BySeverity[reconcile.SeverityCritical], r.Summary.BySeverity[reconcile.SeverityWarning],
		r.Summary.BySeverity[reconcile.SeveritySync], r.Summary.BySeverity[reconcile.SeverityVerification],
	), "", 1, "L", false, 0, "")
	pdf.Ln(3)
	header()

	for _, row := range r.Rows {
		fill, ok := severityFill[row.Severity]
		if ok {
			pdf.SetFillColor(fill[0], fill[1], fill[2])
		}
		for i, v := range cells(row) {
			pdf.CellFormat(pdfWidths[i], 6, tr(truncate(pdf, v, pdfWidths[i]-2)), "1", 0, pdfAligns[i], ok, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(r.Rows) == 0 {
		pdf.CellFormat(0, 8, "No discrepancies.", "1", 1, "C", false, 0, "")
	}

	return pdf.Output(w)
}

// truncate shortens s so it fits in width mm at the current font.
func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
