package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

// Occurrence is one sighting of a duplicated SKU.
type Occurrence struct {
	Position   int             `json:"position"` // arrival order within the walk, from 1
	ExternalID int64           `json:"externalId"`
	ParentID   int64           `json:"parentId,omitempty"`
	Name       string          `json:"name"`
	Kind       models.ItemKind `json:"kind"`
	Quantity   *float64        `json:"quantity"`
}

// DuplicateGroup lists every occurrence of one SKU, in arrival order. The
// last occurrence is the one a sync keeps.
type DuplicateGroup struct {
	SKU         string       `json:"sku"`
	Occurrences []Occurrence `json:"occurrences"`
}

// DuplicateAnalysis is a read-only diagnosis of SKU reuse in the storefront.
type DuplicateAnalysis struct {
	TotalItems int              `json:"totalItems"`
	UniqueSKUs int              `json:"uniqueSkus"`
	BlankSKUs  int              `json:"blankSkus"`
	Groups     []DuplicateGroup `json:"groups"`
	// Histogram maps an occurrence count to the number of SKUs seen that often.
	Histogram map[int]int `json:"histogram"`
	Fetch     WalkStats   `json:"fetch"`
}

// FindDuplicates walks the full catalog without persisting anything and
// groups items sharing a SKU. The walk holds the run guard, so it never
// overlaps an ingestion, and it is recorded in run history.
func (e *Engine) FindDuplicates(ctx context.Context) (*DuplicateAnalysis, error) {
	run := &RunReport{
		RunID:     uuid.NewString(),
		Kind:      models.RunKindDuplicates,
		StartedAt: e.now().UTC(),
	}
	if err := e.tracker.Begin(run.Kind, run.RunID); err != nil {
		return nil, err
	}

	bySKU := make(map[string][]Occurrence)
	position := 0

	stats, err := e.catalog.Walk(ctx, WalkOptions{}, func(item models.CatalogItem) error {
		sku := item.NormalizedSKU()
		if sku == "" {
			return nil
		}
		position++
		bySKU[sku] = append(bySKU[sku], Occurrence{
			Position:   position,
			ExternalID: item.ExternalID,
			ParentID:   item.ParentID,
			Name:       item.Name,
			Kind:       item.Kind,
			Quantity:   item.Quantity,
		})
		return nil
	})
	run.Fetch = stats
	run.Fetched = stats.Items
	if err != nil {
		_, err = e.abort(ctx, run, fmt.Errorf("walk catalog: %w", err))
		return nil, err
	}

	analysis := AnalyzeOccurrences(bySKU)
	analysis.TotalItems = stats.Items + stats.BlankSKUs
	analysis.BlankSKUs = stats.BlankSKUs
	analysis.Fetch = stats

	run.Unique = analysis.UniqueSKUs
	for _, g := range analysis.Groups {
		run.Duplicates += len(g.Occurrences) - 1
	}
	run.Status = models.RunStatusSuccess
	e.move(StateDone)
	e.finish(ctx, run)

	e.log.WithFields(logrus.Fields{
		"run_id":     run.RunID,
		"items":      analysis.TotalItems,
		"unique":     analysis.UniqueSKUs,
		"duplicated": len(analysis.Groups),
		"blank":      analysis.BlankSKUs,
	}).Info("🔍 Duplicate analysis finished")
	return analysis, nil
}

// AnalyzeOccurrences builds groups and the histogram from occurrences keyed by SKU.
func AnalyzeOccurrences(bySKU map[string][]Occurrence) *DuplicateAnalysis {
	analysis := &DuplicateAnalysis{
		UniqueSKUs: len(bySKU),
		Groups:     make([]DuplicateGroup, 0),
		Histogram:  make(map[int]int),
	}
	for sku, occ := range bySKU {
		if len(occ) < 2 {
			continue
		}
		analysis.Groups = append(analysis.Groups, DuplicateGroup{SKU: sku, Occurrences: occ})
		analysis.Histogram[len(occ)]++
	}
	sort.Slice(analysis.Groups, func(i, j int) bool {
		return analysis.Groups[i].SKU < analysis.Groups[j].SKU
	})
	return analysis
}
