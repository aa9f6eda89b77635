package reconcile

import (
	"context"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

// WalkOptions tunes one catalog walk.
type WalkOptions struct {
	// SkipVariations walks the top-level listing only. Variable products are
	// still never emitted.
	SkipVariations bool
	// Fields restricts the response to the listed item fields when non-empty.
	Fields []string
}

// WalkStats summarises one catalog walk.
type WalkStats struct {
	Pages          int `json:"pages"`
	PagesFailed    int `json:"pagesFailed"`
	Items          int `json:"items"`     // emitted items, blank SKUs excluded
	BlankSKUs      int `json:"blankSkus"` // dropped before emission
	VariableParent int `json:"variableParents"`
	Variations     int `json:"variations"`
}

// CatalogSource produces the storefront catalog as a restartable, finite
// sequence. Every call starts from the first page. yield is called in
// arrival order; a non-nil error from yield stops the walk and is returned.
type CatalogSource interface {
	Walk(ctx context.Context, opts WalkOptions, yield func(models.CatalogItem) error) (WalkStats, error)
}

// LedgerSource fetches the warehouse ledger in a single call.
type LedgerSource interface {
	Name() string
	FetchLedger(ctx context.Context) ([]models.LedgerEntry, error)
}

// UpsertResult aggregates a snapshot write.
type UpsertResult struct {
	Succeeded  int      `json:"succeeded"`
	FailedSKUs []string `json:"failedSkus"`
}

// SnapshotStore persists the catalog snapshot and run history.
type SnapshotStore interface {
	Upsert(ctx context.Context, records []models.StockRecord) (UpsertResult, error)
	ReadAll(ctx context.Context) (map[string]models.StockRecord, error)
	ReadKnownSKUs(ctx context.Context) (map[string]struct{}, error)
	RecordRun(ctx context.Context, run *models.SyncRun) error
}

// Decision is an operator's answer to a collision list.
type Decision int

const (
	// ReplaceExisting keeps last-write-wins (the automatic behaviour).
	ReplaceExisting Decision = iota
	// IgnoreNew keeps the first sighting of every collided SKU.
	IgnoreNew
	// Abort stops the run before anything is persisted.
	Abort
)

func (d Decision) String() string {
	switch d {
	case ReplaceExisting:
		return "replace_existing"
	case IgnoreNew:
		return "ignore_new"
	case Abort:
		return "abort"
	}
	return "unknown"
}

// CollisionResolver lets an external caller override the automatic policy
// once a walk has finished. The engine calls it synchronously and never
// waits for input by itself.
type CollisionResolver interface {
	Resolve(ctx context.Context, collisions []Collision) (Decision, error)
}

// ResolverFunc adapts a function to CollisionResolver.
type ResolverFunc func(ctx context.Context, collisions []Collision) (Decision, error)

func (f ResolverFunc) Resolve(ctx context.Context, collisions []Collision) (Decision, error) {
	return f(ctx, collisions)
}
