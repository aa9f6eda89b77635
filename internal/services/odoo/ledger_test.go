package odoo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

func TestMany2OneDecoding(t *testing.T) {
	var w warehouse
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"WH","lot_stock_id":[8,"WH/Stock"]}`), &w))
	assert.Equal(t, int64(8), w.LotStockID.ID)
	assert.Equal(t, "WH/Stock", w.LotStockID.Name)

	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"WH","lot_stock_id":false}`), &w))
	assert.Zero(t, w.LotStockID.ID)
}

func TestAggregateQuants(t *testing.T) {
	var quants []quant
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":1,"product_id":[10,"[A1] Alpha"],"quantity":4},
		{"id":2,"product_id":[20,"Beta"],"quantity":"2.5"},
		{"id":3,"product_id":[10,"[A1] Alpha"],"quantity":6},
		{"id":4,"product_id":[30,"No code"],"quantity":9},
		{"id":5,"product_id":[40,"Unknown"],"quantity":1},
		{"id":6,"product_id":false,"quantity":1}
	]`), &quants))

	var products []product
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":10,"default_code":"A1","name":"Alpha"},
		{"id":20,"default_code":" B2 ","name":false},
		{"id":30,"default_code":false,"name":"No code"}
	]`), &products))
	byID := map[int64]product{}
	for _, p := range products {
		byID[p.ID] = p
	}

	entries := aggregateQuants(quants, byID)
	assert.Equal(t, []models.LedgerEntry{
		{Code: "A1", Name: "Alpha", Quantity: 10},
		{Code: "B2", Name: "Beta", Quantity: 2.5},
	}, entries)
}

func TestProductIDs(t *testing.T) {
	quants := []quant{
		{ProductID: many2one{ID: 30}},
		{ProductID: many2one{ID: 10}},
		{ProductID: many2one{ID: 30}},
		{ProductID: many2one{}},
	}
	assert.Equal(t, []int64{10, 30}, productIDs(quants))
}

func TestNewLedgerSourceValidation(t *testing.T) {
	_, err := NewLedgerSource(Config{WarehouseName: "WH"}, nil)
	assert.Error(t, err)

	src, err := NewLedgerSource(Config{URL: "https://odoo.example.com/", WarehouseName: "WH"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "odoo:WH", src.Name())
}
