package models

import (
	"strings"
	"time"
)

// ItemKind mirrors the storefront product "type" field.
type ItemKind string

const (
	KindSimple    ItemKind = "simple"
	KindExternal  ItemKind = "external"
	KindGrouped   ItemKind = "grouped"
	KindVariable  ItemKind = "variable"
	KindVariation ItemKind = "variation"
)

// Stocked reports whether items of this kind carry their own stock.
// Variable products are placeholders; only their variations are stocked.
func (k ItemKind) Stocked() bool {
	switch k {
	case KindSimple, KindExternal, KindGrouped, KindVariation:
		return true
	}
	return false
}

// Availability mirrors the storefront "stock_status" field.
type Availability string

const (
	InStock     Availability = "instock"
	OutOfStock  Availability = "outofstock"
	OnBackorder Availability = "onbackorder"
)

// ParseAvailability keeps unknown values verbatim; a missing value means out of stock.
func ParseAvailability(s string) Availability {
	s = strings.TrimSpace(s)
	if s == "" {
		return OutOfStock
	}
	return Availability(s)
}

// CatalogItem is one record as returned by a catalog page. It only lives
// for the duration of a run.
type CatalogItem struct {
	SKU          string       `json:"sku"`
	ExternalID   int64        `json:"external_id"`
	ParentID     int64        `json:"parent_id,omitempty"` // set on variations
	Name         string       `json:"name"`
	Kind         ItemKind     `json:"kind"`
	Quantity     *float64     `json:"quantity"` // nil when the storefront does not manage stock
	Availability Availability `json:"availability"`
	ObservedAt   time.Time    `json:"observed_at"`
}

// NormalizedSKU returns the trimmed SKU; empty means the item is not reconcilable.
func (c CatalogItem) NormalizedSKU() string {
	return strings.TrimSpace(c.SKU)
}

// QuantityOrZero treats an unmanaged quantity as zero.
func (c CatalogItem) QuantityOrZero() float64 {
	if c.Quantity == nil {
		return 0
	}
	return *c.Quantity
}
