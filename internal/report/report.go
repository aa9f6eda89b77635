// Package report renders discrepancy reports for human review.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

// Format is an export format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Columns is the stable column set shared by every export.
var Columns = []string{"sku", "description", "catalogQty", "ledgerQty", "delta", "category", "severity"}

// ParseFormat accepts a format name; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/json"
}

// Filename names a download of r in format f.
func (f Format) Filename(r *reconcile.Report) string {
	return fmt.Sprintf("discrepancies_%s.%s", r.GeneratedAt.UTC().Format("20060102_150405"), f)
}

// Write renders r in one of the file formats. JSON is left to the caller.
func Write(w io.Writer, f Format, r *reconcile.Report) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, r.Rows)
	case FormatXLSX:
		return WriteXLSX(w, r)
	case FormatPDF:
		return WritePDF(w, r)
	}
	return fmt.Errorf("format %q is not a file export", f)
}

// formatQty prints quantities without trailing zeros.
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// cells returns a row in Columns order, as strings.
func cells(row reconcile.DiscrepancyRow) []string {
	return []string{
		row.SKU,
		row.Description,
		formatQty(row.CatalogQty),
		formatQty(row.LedgerQtyOrZero()),
		formatQty(row.Delta),
		string(row.Category),
		strconv.Itoa(int(row.Severity)),
	}
}
