package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

func TestClassifyScenario(t *testing.T) {
	catalog := map[string]CatalogStock{
		"A1": {Name: "Alpha", Quantity: 0},
		"B2": {Name: "Beta", Quantity: 5},
	}
	ledger := map[string]LedgerStock{
		"A1": {Name: "Alpha", Quantity: 10},
		"C3": {Name: "Gamma", Quantity: 2},
	}

	rows := Classify(catalog, ledger, DefaultRules())
	require.Len(t, rows, 3)

	assert.Equal(t, "C3", rows[0].SKU)
	assert.Equal(t, MissingFromCatalog, rows[0].Category)
	assert.Equal(t, SeverityCritical, rows[0].Severity)
	assert.Equal(t, 0.0, rows[0].CatalogQty)
	assert.Equal(t, 2.0, rows[0].LedgerQtyOrZero())
	assert.Equal(t, 2.0, rows[0].Delta)

	assert.Equal(t, "A1", rows[1].SKU)
	assert.Equal(t, ZeroInCatalog, rows[1].Category)
	assert.Equal(t, SeverityWarning, rows[1].Severity)
	assert.Equal(t, 0.0, rows[1].CatalogQty)
	assert.Equal(t, 10.0, rows[1].LedgerQtyOrZero())

	assert.Equal(t, "B2", rows[2].SKU)
	assert.Equal(t, MissingFromLedger, rows[2].Category)
	assert.Equal(t, SeverityVerification, rows[2].Severity)
	assert.Nil(t, rows[2].LedgerQty)
	assert.Equal(t, 5.0, rows[2].CatalogQty)
	assert.Equal(t, -5.0, rows[2].Delta)
	assert.Equal(t, "Beta", rows[2].Description)
}

func TestClassifyEpsilonBoundary(t *testing.T) {
	tests := []struct {
		name     string
		catalog  float64
		ledger   float64
		reported bool
	}{
		{"equal", 5, 5, false},
		{"exactly one hundredth above", 5, 5.01, false},
		{"exactly one hundredth below", 5.01, 5, false},
		{"just over the epsilon", 5, 5.011, true},
		{"fractional values", 0.1, 0.11, false},
		{"large difference", 3, 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Classify(
				map[string]CatalogStock{"S": {Quantity: tt.catalog}},
				map[string]LedgerStock{"S": {Quantity: tt.ledger}},
				DefaultRules(),
			)
			if !tt.reported {
				assert.Empty(t, rows)
				return
			}
			require.Len(t, rows, 1)
			assert.Equal(t, QuantityMismatch, rows[0].Category)
			assert.Equal(t, SeveritySync, rows[0].Severity)
		})
	}
}

func TestClassifyDeltaRounding(t *testing.T) {
	rows := Classify(
		map[string]CatalogStock{"S": {Quantity: 1.1}},
		map[string]LedgerStock{"S": {Quantity: 3.3}},
		DefaultRules(),
	)
	require.Len(t, rows, 1)
	assert.Equal(t, 2.2, rows[0].Delta)
}

func TestClassifyIgnoresNonPositiveLedger(t *testing.T) {
	rows := Classify(
		map[string]CatalogStock{"S": {Quantity: 4}},
		map[string]LedgerStock{"S": {Quantity: 0}, "T": {Quantity: -3}},
		DefaultRules(),
	)
	assert.Empty(t, rows)
}

func TestClassifyOrdering(t *testing.T) {
	catalog := map[string]CatalogStock{
		"Z": {Quantity: 1},
		"Y": {Quantity: 1},
		"M": {Quantity: 0},
	}
	ledger := map[string]LedgerStock{
		"A": {Quantity: 3},
		"B": {Quantity: 30},
		"C": {Quantity: 30},
		"Z": {Quantity: 8},
		"Y": {Quantity: 9},
		"M": {Quantity: 1},
	}

	rows := Classify(catalog, ledger, DefaultRules())
	var skus []string
	for _, r := range rows {
		skus = append(skus, r.SKU)
	}
	assert.Equal(t, []string{"B", "C", "A", "M", "Y", "Z"}, skus)
}

func TestClassifyIsPure(t *testing.T) {
	catalog := map[string]CatalogStock{"A": {Quantity: 1}, "B": {Quantity: 0}, "D": {Quantity: 4}}
	ledger := map[string]LedgerStock{"A": {Quantity: 2}, "B": {Quantity: 5}, "C": {Quantity: 1}}
	catalogCopy := map[string]CatalogStock{"A": {Quantity: 1}, "B": {Quantity: 0}, "D": {Quantity: 4}}
	ledgerCopy := map[string]LedgerStock{"A": {Quantity: 2}, "B": {Quantity: 5}, "C": {Quantity: 1}}

	first := Classify(catalog, ledger, DefaultRules())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Classify(catalog, ledger, DefaultRules()))
	}
	assert.Equal(t, catalogCopy, catalog)
	assert.Equal(t, ledgerCopy, ledger)
}

func TestClassifyMissingFromLedgerRule(t *testing.T) {
	catalog := map[string]CatalogStock{"A": {Quantity: 2}, "B": {Quantity: 1}}
	ledger := map[string]LedgerStock{"A": {Quantity: 2}}

	t.Run("disabled", func(t *testing.T) {
		rules := DefaultRules()
		rules.MissingFromLedger.Enabled = false
		assert.Empty(t, Classify(catalog, ledger, rules))
	})

	t.Run("critical severity", func(t *testing.T) {
		rules := DefaultRules()
		rules.MissingFromLedger.Severity = SeverityCritical
		rows := Classify(catalog, ledger, rules)
		require.Len(t, rows, 1)
		assert.Equal(t, "B", rows[0].SKU)
		assert.Equal(t, SeverityCritical, rows[0].Severity)
	})

	t.Run("empty ledger suppresses the rule", func(t *testing.T) {
		assert.Empty(t, Classify(catalog, map[string]LedgerStock{}, DefaultRules()))
	})

	t.Run("empty ledger allowed", func(t *testing.T) {
		rules := DefaultRules()
		rules.MissingFromLedger.RequireLedgerData = false
		assert.Len(t, Classify(catalog, map[string]LedgerStock{}, rules), 2)
	})

	t.Run("invalid severity falls back", func(t *testing.T) {
		rules := DefaultRules()
		rules.MissingFromLedger.Severity = 9
		rows := Classify(catalog, ledger, rules)
		require.Len(t, rows, 1)
		assert.Equal(t, SeverityVerification, rows[0].Severity)
	})
}

func TestSummarize(t *testing.T) {
	rows := Classify(
		map[string]CatalogStock{"A1": {Quantity: 0}, "B2": {Quantity: 5}},
		map[string]LedgerStock{"A1": {Quantity: 10}, "C3": {Quantity: 2}},
		DefaultRules(),
	)
	s := Summarize(rows, 2, 2)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.ByCategory[ZeroInCatalog])
	assert.Equal(t, 1, s.ByCategory[MissingFromCatalog])
	assert.Equal(t, 1, s.BySeverity[SeverityVerification])
	assert.Zero(t, s.ByCategory[QuantityMismatch])
}

func TestLedgerStockFromEntries(t *testing.T) {
	ledger := LedgerStockFromEntries([]models.LedgerEntry{
		{Code: " A ", Name: "first", Quantity: 1},
		{Code: "", Name: "blank", Quantity: 5},
		{Code: "A", Name: "second", Quantity: 4},
	})
	require.Len(t, ledger, 1)
	assert.Equal(t, LedgerStock{Name: "second", Quantity: 4}, ledger["A"])
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "critical", SeverityCritical.String())
	assert.Equal(t, "verification", SeverityVerification.String())
	assert.Equal(t, "severity(7)", Severity(7).String())
	assert.False(t, Severity(0).Valid())
}
