package models

import (
	"time"
)

// StockRecord is the persisted catalog snapshot, one row per SKU.
// Rows are created on first sighting and overwritten (never deleted) on
// every later sync.
type StockRecord struct {
	SKU          string       `gorm:"column:sku;primaryKey;type:varchar(191)" json:"sku"`
	Name         string       `gorm:"column:name" json:"name"`
	Quantity     float64      `gorm:"column:quantity;not null;check:chk_catalog_stock_quantity,quantity >= 0" json:"quantity"`
	Availability Availability `gorm:"column:availability;type:varchar(32)" json:"availability"`
	ItemKind     ItemKind     `gorm:"column:item_kind;type:varchar(32)" json:"item_kind"`
	ExternalID   int64        `gorm:"column:external_id;index" json:"external_id"`

	// Sync Meta
	LastSyncedAt time.Time `gorm:"column:last_synced_at;index" json:"last_synced_at"`
}

func (StockRecord) TableName() string {
	return "catalog_stock"
}

// StockRecordFromItem converts a catalog item into its snapshot row.
// Unmanaged and negative quantities (backorders) are stored as zero.
func StockRecordFromItem(item CatalogItem) StockRecord {
	qty := item.QuantityOrZero()
	if qty < 0 {
		qty = 0
	}
	return StockRecord{
		SKU:          item.NormalizedSKU(),
		Name:         item.Name,
		Quantity:     qty,
		Availability: item.Availability,
		ItemKind:     item.Kind,
		ExternalID:   item.ExternalID,
		LastSyncedAt: item.ObservedAt.UTC(),
	}
}
