package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

// utf8BOM lets spreadsheet tools detect UTF-8 and keep diacritics intact.
const utf8BOM = "\ufeff"

func newWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return nil, err
	}
	return csv.NewWriter(w), nil
}

// WriteCSV writes a header line and one line per row.
func WriteCSV(w io.Writer, rows []reconcile.DiscrepancyRow) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(cells(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDuplicatesCSV lists every occurrence of every duplicated SKU.
func WriteDuplicatesCSV(w io.Writer, a *reconcile.DuplicateAnalysis) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write([]string{"sku", "occurrences", "position", "externalId", "parentId", "name", "kind", "quantity"}); err != nil {
		return err
	}
	for _, g := range a.Groups {
		for _, o := range g.Occurrences {
			q := ""
			if o.Quantity != nil {
				q = formatQty(*o.Quantity)
			}
			record := []string{
				g.SKU,
				strconv.Itoa(len(g.Occurrences)),
				strconv.Itoa(o.Position),
				strconv.FormatInt(o.ExternalID, 10),
				strconv.FormatInt(o.ParentID, 10),
				o.Name,
				string(o.Kind),
				q,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
