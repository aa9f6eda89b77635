package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

// Category names the kind of mismatch a row describes.
type Category string

const (
	MissingFromCatalog Category = "missing-from-catalog"
	ZeroInCatalog      Category = "zero-in-catalog"
	QuantityMismatch   Category = "quantity-mismatch"
	MissingFromLedger  Category = "missing-from-ledger"
)

// Severity is ordinal: lower is more urgent.
type Severity int

const (
	SeverityCritical     Severity = 1
	SeverityWarning      Severity = 2
	SeveritySync         Severity = 3
	SeverityVerification Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	case SeveritySync:
		return "sync"
	case SeverityVerification:
		return "verification"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Valid reports whether s is one of the four known levels.
func (s Severity) Valid() bool {
	return s >= SeverityCritical && s <= SeverityVerification
}

// quantityEpsilon absorbs rounding noise from upstream systems. It is a hard
// constant: differences of exactly 0.01 are never reported.
var quantityEpsilon = decimal.New(1, -2)

// CatalogStock is the catalog side of a comparison, usually read from the snapshot.
type CatalogStock struct {
	Name         string
	Quantity     float64
	Availability models.Availability
}

// LedgerStock is the ledger side of a comparison.
type LedgerStock struct {
	Name     string
	Quantity float64
}

// MissingFromLedgerRule configures rule 4 (in catalog with stock, absent from
// the ledger). Revisions of the business process disagree on its urgency, so
// it is a setting rather than a constant.
type MissingFromLedgerRule struct {
	Enabled  bool
	Severity Severity
	// RequireLedgerData suppresses the rule when the ledger came back empty,
	// so an empty ledger response does not flag the whole catalog.
	RequireLedgerData bool
}

// Rules holds the configurable part of classification.
type Rules struct {
	MissingFromLedger MissingFromLedgerRule
}

// DefaultRules reports missing-from-ledger rows in the verification band and
// only when ledger data is present.
func DefaultRules() Rules {
	return Rules{
		MissingFromLedger: MissingFromLedgerRule{
			Enabled:           true,
			Severity:          SeverityVerification,
			RequireLedgerData: true,
		},
	}
}

// DiscrepancyRow is one line of the report. Rows are never persisted.
type DiscrepancyRow struct {
	SKU         string   `json:"sku"`
	Description string   `json:"description"`
	CatalogQty  float64  `json:"catalogQty"`
	LedgerQty   *float64 `json:"ledgerQty"` // nil when absent from the ledger
	Delta       float64  `json:"delta"`     // ledger minus catalog
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
}

// LedgerQtyOrZero is the display value of LedgerQty.
func (r DiscrepancyRow) LedgerQtyOrZero() float64 {
	if r.LedgerQty == nil {
		return 0
	}
	return *r.LedgerQty
}

// Classify compares the catalog snapshot with the ledger and returns the
// discrepancies ordered by severity ascending, then ledger quantity
// descending, then SKU. It never mutates its inputs and never fails.
func Classify(catalog map[string]CatalogStock, ledger map[string]LedgerStock, rules Rules) []DiscrepancyRow {
	rows := make([]DiscrepancyRow, 0)

	for sku, l := range ledger {
		lq := decimal.NewFromFloat(l.Quantity)
		if !lq.IsPositive() {
			continue
		}
		ledgerQty := l.Quantity

		c, inCatalog := catalog[sku]
		if !inCatalog {
			rows = append(rows, DiscrepancyRow{
				SKU:         sku,
				Description: l.Name,
				CatalogQty:  0,
				LedgerQty:   &ledgerQty,
				Delta:       round2(lq),
				Category:    MissingFromCatalog,
				Severity:    SeverityCritical,
			})
			continue
		}

		cq := decimal.NewFromFloat(c.Quantity)
		desc := l.Name
		if desc == "" {
			desc = c.Name
		}

		switch {
		case cq.IsZero():
			rows = append(rows, DiscrepancyRow{
				SKU:         sku,
				Description: desc,
				CatalogQty:  0,
				LedgerQty:   &ledgerQty,
				Delta:       round2(lq),
				Category:    ZeroInCatalog,
				Severity:    SeverityWarning,
			})
		case lq.Sub(cq).Abs().GreaterThan(quantityEpsilon):
			rows = append(rows, DiscrepancyRow{
				SKU:         sku,
				Description: desc,
				CatalogQty:  c.Quantity,
				LedgerQty:   &ledgerQty,
				Delta:       round2(lq.Sub(cq)),
				Category:    QuantityMismatch,
				Severity:    SeveritySync,
			})
		}
	}

	rule := rules.MissingFromLedger
	if rule.Enabled && (!rule.RequireLedgerData || len(ledger) > 0) {
		sev := rule.Severity
		if !sev.Valid() {
			sev = SeverityVerification
		}
		for sku, c := range catalog {
			if _, inLedger := ledger[sku]; inLedger {
				continue
			}
			cq := decimal.NewFromFloat(c.Quantity)
			if !cq.IsPositive() {
				continue
			}
			rows = append(rows, DiscrepancyRow{
				SKU:         sku,
				Description: c.Name,
				CatalogQty:  c.Quantity,
				LedgerQty:   nil,
				Delta:       round2(cq.Neg()),
				Category:    MissingFromLedger,
				Severity:    sev,
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		if aq, bq := a.LedgerQtyOrZero(), b.LedgerQtyOrZero(); aq != bq {
			return aq > bq
		}
		return a.SKU < b.SKU
	})
	return rows
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// ReportSummary aggregates a classified report for display.
type ReportSummary struct {
	CatalogSKUs int              `json:"catalogSkus"`
	LedgerSKUs  int              `json:"ledgerSkus"`
	Total       int              `json:"total"`
	ByCategory  map[Category]int `json:"byCategory"`
	BySeverity  map[Severity]int `json:"bySeverity"`
}

// Summarize counts rows per category and severity.
func Summarize(rows []DiscrepancyRow, catalogSKUs, ledgerSKUs int) ReportSummary {
	s := ReportSummary{
		CatalogSKUs: catalogSKUs,
		LedgerSKUs:  ledgerSKUs,
		Total:       len(rows),
		ByCategory:  make(map[Category]int),
		BySeverity:  make(map[Severity]int),
	}
	for _, r := range rows {
		s.ByCategory[r.Category]++
		s.BySeverity[r.Severity]++
	}
	return s
}

// CatalogStockFromRecords projects snapshot rows into classifier input.
func CatalogStockFromRecords(records map[string]models.StockRecord) map[string]CatalogStock {
	out := make(map[string]CatalogStock, len(records))
	for sku, r := range records {
		out[sku] = CatalogStock{Name: r.Name, Quantity: r.Quantity, Availability: r.Availability}
	}
	return out
}

// LedgerStockFromEntries keys ledger lines by code. Blank codes are dropped;
// a repeated code keeps its last line.
func LedgerStockFromEntries(entries []models.LedgerEntry) map[string]LedgerStock {
	out := make(map[string]LedgerStock, len(entries))
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			continue
		}
		out[code] = LedgerStock{Name: e.Name, Quantity: e.Quantity}
	}
	return out
}
