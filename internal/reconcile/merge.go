package reconcile

import (
	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

// Collision is recorded every time a SKU that is already in the merged map
// is written again. Collisions are reported for operator visibility only.
type Collision struct {
	SKU      string             `json:"sku"`
	Previous models.CatalogItem `json:"previous"`
	Current  models.CatalogItem `json:"current"`
}

// Merger folds catalog items into a unique-by-SKU map.
//
// The policy is last-write-wins by arrival order: a later item with the same
// SKU replaces the earlier one entirely. The result therefore depends on the
// order in which the storefront returns pages and variations. That order is
// deterministic for a fixed remote state, but reordering on the storefront
// side can change which of two real duplicate listings survives.
type Merger struct {
	items      map[string]models.CatalogItem
	first      map[string]models.CatalogItem // first sighting, kept only for collided SKUs
	collisions []Collision
	seen       int
	blank      int
}

// NewMerger returns an empty merger.
func NewMerger() *Merger {
	return &Merger{
		items: make(map[string]models.CatalogItem),
		first: make(map[string]models.CatalogItem),
	}
}

// Add consumes one item. Items with a blank SKU are counted and dropped.
func (m *Merger) Add(item models.CatalogItem) {
	sku := item.NormalizedSKU()
	if sku == "" {
		m.blank++
		return
	}
	item.SKU = sku
	m.seen++

	if prev, ok := m.items[sku]; ok {
		if _, tracked := m.first[sku]; !tracked {
			m.first[sku] = prev
		}
		m.collisions = append(m.collisions, Collision{SKU: sku, Previous: prev, Current: item})
	}
	m.items[sku] = item
}

// Seen returns the number of items with a usable SKU consumed so far.
func (m *Merger) Seen() int { return m.seen }

// Blank returns the number of dropped blank-SKU items.
func (m *Merger) Blank() int { return m.blank }

// Collisions returns the collision list in arrival order.
func (m *Merger) Collisions() []Collision {
	out := make([]Collision, len(m.collisions))
	copy(out, m.collisions)
	return out
}

// Result returns the merged snapshot rows keyed by SKU.
func (m *Merger) Result() map[string]models.StockRecord {
	out := make(map[string]models.StockRecord, len(m.items))
	for sku, item := range m.items {
		out[sku] = models.StockRecordFromItem(item)
	}
	return out
}

// KeepFirst reverts every collided SKU to its first sighting. It backs the
// "ignore new" operator decision.
func (m *Merger) KeepFirst() {
	for sku, item := range m.first {
		m.items[sku] = item
	}
}

// Merge is the batch form of Merger.
func Merge(items []models.CatalogItem) (map[string]models.StockRecord, []Collision) {
	m := NewMerger()
	for _, item := range items {
		m.Add(item)
	}
	return m.Result(), m.Collisions()
}
