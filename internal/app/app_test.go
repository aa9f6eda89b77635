package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilepoint/comparator-stoc-api/internal/config"
	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/odoo"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/smartbill"
)

func TestNewLedger(t *testing.T) {
	log := logrus.New()

	sb, err := NewLedger(config.LedgerConfig{
		Provider:  config.LedgerSmartBill,
		SmartBill: smartbill.Config{Email: "a@b.ro", Token: "t", CIF: "RO1", WarehouseName: "Depozit"},
	}, log)
	require.NoError(t, err)
	assert.Equal(t, "smartbill:Depozit", sb.Name())

	od, err := NewLedger(config.LedgerConfig{
		Provider: config.LedgerOdoo,
		Odoo:     odoo.Config{URL: "http://odoo.local", WarehouseName: "WH"},
	}, log)
	require.NoError(t, err)
	assert.Equal(t, "odoo:WH", od.Name())

	_, err = NewLedger(config.LedgerConfig{Provider: config.LedgerSmartBill}, log)
	assert.Error(t, err)

	_, err = NewLedger(config.LedgerConfig{Provider: "excel"}, log)
	assert.ErrorContains(t, err, "unknown ledger provider")
}

func collisions(n int) []reconcile.Collision {
	out := make([]reconcile.Collision, n)
	for i := range out {
		out[i] = reconcile.Collision{
			SKU:      "X",
			Previous: models.CatalogItem{SKU: "X", Name: "first", ExternalID: 1},
			Current:  models.CatalogItem{SKU: "X", Name: "second", ExternalID: 2},
		}
	}
	return out
}

func TestPromptResolver(t *testing.T) {
	cases := []struct {
		input string
		want  reconcile.Decision
	}{
		{"\n", reconcile.ReplaceExisting},
		{"r\n", reconcile.ReplaceExisting},
		{"I\n", reconcile.IgnoreNew},
		{"abort\n", reconcile.Abort},
		{"maybe\ni\n", reconcile.IgnoreNew},
		{"", reconcile.Abort},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		d, err := PromptResolver(strings.NewReader(tc.input), &out).Resolve(context.Background(), collisions(1))
		require.NoError(t, err, "%q", tc.input)
		assert.Equal(t, tc.want, d, "%q", tc.input)
		assert.Contains(t, out.String(), `"first" (id 1) -> "second" (id 2)`)
	}
}

func TestPromptResolverTruncatesList(t *testing.T) {
	var out bytes.Buffer
	_, err := PromptResolver(strings.NewReader("r\n"), &out).Resolve(context.Background(), collisions(25))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "25 SKU collisions")
	assert.Contains(t, out.String(), "... and 5 more")
}

func TestPromptResolverHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, err := PromptResolver(strings.NewReader("i\n"), &bytes.Buffer{}).Resolve(ctx, collisions(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, reconcile.Abort, d)
}
