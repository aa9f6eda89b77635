package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

const (
	sheetRows    = "Discrepancies"
	sheetSummary = "Summary"
)

// WriteXLSX writes a workbook with the rows on the first sheet and the
// category and severity counts on a second one.
func WriteXLSX(w io.Writer, r *reconcile.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetRows); err != nil {
		return err
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetRows, cell, h); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	_ = f.SetRowStyle(sheetRows, 1, 1, bold)

	for i, row := range r.Rows {
		rowNo := i + 2
		values := []interface{}{
			row.SKU,
			row.Description,
			row.CatalogQty,
			row.LedgerQtyOrZero(),
			row.Delta,
			string(row.Category),
			int(row.Severity),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNo)
			if err := f.SetCellValue(sheetRows, cell, v); err != nil {
				return err
			}
		}
	}
	_ = f.SetColWidth(sheetRows, "A", "A", 20)
	_ = f.SetColWidth(sheetRows, "B", "B", 50)
	_ = f.SetColWidth(sheetRows, "F", "F", 22)
	if len(r.Rows) > 0 {
		_ = f.AutoFilter(sheetRows, fmt.Sprintf("A1:G%d", len(r.Rows)+1), nil)
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"ledger", r.Ledger},
		{"generatedAt", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		{"catalogSkus", r.Summary.CatalogSKUs},
		{"ledgerSkus", r.Summary.LedgerSKUs},
		{"total", r.Summary.Total},
	}
	categories := make([]string, 0, len(r.Summary.ByCategory))
	for c := range r.Summary.ByCategory {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		summary = append(summary, []interface{}{c, r.Summary.ByCategory[reconcile.Category(c)]})
	}
	for i, line := range summary {
		if err := f.SetSheetRow(sheetSummary, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return err
		}
	}

	return f.Write(w)
}
