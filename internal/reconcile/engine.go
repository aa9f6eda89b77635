package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/mobilepoint/comparator-stoc-api/internal/metrics"
	"github.com/mobilepoint/comparator-stoc-api/internal/models"
)

// refreshFields is the minimal field set the refresh variant asks for.
var refreshFields = []string{"id", "sku", "name", "type", "stock_quantity", "stock_status"}

// maxDebugCollisions caps the collision list stored with a run.
const maxDebugCollisions = 1000

// Options configures an Engine. Every field is optional.
type Options struct {
	// Rules overrides DefaultRules when set.
	Rules    *Rules
	Resolver CollisionResolver
	Metrics  *metrics.Metrics
	Logger   logrus.FieldLogger
	// OnStatus receives every run state change. It must not block.
	OnStatus func(Status)
}

// Engine runs the ingestion path (catalog → merge → snapshot) and the
// comparison path (snapshot + ledger → report). Runs are sequential and
// synchronous.
type Engine struct {
	catalog  CatalogSource
	ledger   LedgerSource
	store    SnapshotStore
	rules    Rules
	resolver CollisionResolver
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	tracker  *Tracker
	now      func() time.Time
}

// NewEngine wires the collaborators together.
func NewEngine(catalog CatalogSource, ledger LedgerSource, store SnapshotStore, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	rules := DefaultRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	tracker := NewTracker()
	if opts.OnStatus != nil {
		tracker.Observe(opts.OnStatus)
	}
	return &Engine{
		catalog:  catalog,
		ledger:   ledger,
		store:    store,
		rules:    rules,
		resolver: opts.Resolver,
		metrics:  opts.Metrics,
		log:      log.WithField("component", "reconcile"),
		tracker:  tracker,
		now:      time.Now,
	}
}

// Status returns the state of the current or last run.
func (e *Engine) Status() Status {
	return e.tracker.Status()
}

// RunReport is returned by every ingestion run.
type RunReport struct {
	RunID       string        `json:"runId"`
	Kind        string        `json:"kind"`
	Status      string        `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Fetch       WalkStats     `json:"fetch"`
	Fetched     int           `json:"fetched"`
	Unique      int           `json:"unique"`
	Duplicates  int           `json:"duplicates"`
	Saved       int           `json:"saved"`
	Failed      int           `json:"failed"`
	FailedSKUs  []string      `json:"failedSkus,omitempty"`
	Skipped     int           `json:"skipped"`
	Decision    string        `json:"decision,omitempty"`
	Collisions  []Collision   `json:"collisions,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"-"`
}

// SyncFull walks the whole catalog, merges it and upserts the snapshot.
// A walk that exceeds its failure budget persists nothing.
func (e *Engine) SyncFull(ctx context.Context) (*RunReport, error) {
	return e.ingest(ctx, models.RunKindFullSync, WalkOptions{}, nil)
}

// RefreshExisting updates only SKUs already present in the snapshot. It
// walks the top-level listing with a restricted field set and skips the
// variation crawl, trading completeness for speed.
func (e *Engine) RefreshExisting(ctx context.Context) (*RunReport, error) {
	known, err := e.store.ReadKnownSKUs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read known skus: %w", err)
	}
	e.log.WithField("known_skus", len(known)).Info("📦 Refresh limited to known SKUs")
	return e.ingest(ctx, models.RunKindRefresh, WalkOptions{SkipVariations: true, Fields: refreshFields}, known)
}

func (e *Engine) ingest(ctx context.Context, kind string, opts WalkOptions, only map[string]struct{}) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		Kind:      kind,
		StartedAt: e.now().UTC(),
	}
	if err := e.tracker.Begin(kind, report.RunID); err != nil {
		return nil, err
	}
	log := e.log.WithFields(logrus.Fields{"run_id": report.RunID, "kind": kind})
	log.Info("🔄 Catalog ingestion started")

	merger := NewMerger()
	stats, err := e.catalog.Walk(ctx, opts, func(item models.CatalogItem) error {
		if only != nil {
			if _, ok := only[item.NormalizedSKU()]; !ok {
				report.Skipped++
				return nil
			}
		}
		merger.Add(item)
		return nil
	})
	report.Fetch = stats
	report.Fetched = stats.Items
	collisions := merger.Collisions()
	report.Duplicates = len(collisions)
	e.metrics.ObserveFetch(stats.Items, stats.PagesFailed, len(collisions))

	if err != nil {
		log.WithError(err).WithField("pages_failed", stats.PagesFailed).Error("❌ Catalog walk aborted, nothing persisted")
		return e.abort(ctx, report, fmt.Errorf("walk catalog: %w", err))
	}
	log.WithFields(logrus.Fields{
		"pages":        stats.Pages,
		"pages_failed": stats.PagesFailed,
		"items":        stats.Items,
		"blank_skus":   stats.BlankSKUs,
		"duplicates":   len(collisions),
	}).Info("✅ Catalog walk finished")

	if len(collisions) > 0 {
		log.WithField("duplicates", len(collisions)).Warn("⚠️ Duplicate SKUs resolved by last-write-wins")
		report.Collisions = collisions
		report.Decision = ReplaceExisting.String()

		if e.resolver != nil {
			e.move(StateAwaitingDecision)
			decision, err := e.resolver.Resolve(ctx, collisions)
			if err != nil {
				return e.abort(ctx, report, fmt.Errorf("resolve collisions: %w", err))
			}
			report.Decision = decision.String()
			switch decision {
			case Abort:
				log.Warn("🛑 Run aborted by collision decision")
				return e.abort(ctx, report, ErrRunAborted)
			case IgnoreNew:
				merger.KeepFirst()
			}
		}
	}

	merged := merger.Result()
	report.Unique = len(merged)

	records := make([]models.StockRecord, 0, len(merged))
	syncedAt := e.now().UTC()
	for _, r := range merged {
		r.LastSyncedAt = syncedAt
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SKU < records[j].SKU })

	e.move(StatePersisting)
	result, err := e.store.Upsert(ctx, records)
	if err != nil {
		log.WithError(err).Error("❌ Snapshot write aborted")
		return e.abort(ctx, report, fmt.Errorf("persist snapshot: %w", err))
	}
	report.Saved = result.Succeeded
	report.FailedSKUs = result.FailedSKUs
	report.Failed = len(result.FailedSKUs)
	e.metrics.ObservePersist(result.Succeeded, len(result.FailedSKUs), syncedAt)

	report.Status = models.RunStatusSuccess
	if report.Failed > 0 {
		report.Status = models.RunStatusPartial
	}
	e.move(StateDone)
	e.finish(ctx, report)

	log.WithFields(logrus.Fields{
		"unique":  report.Unique,
		"saved":   report.Saved,
		"failed":  report.Failed,
		"skipped": report.Skipped,
	}).Info("✅ Catalog ingestion completed")
	return report, nil
}

func (e *Engine) abort(ctx context.Context, report *RunReport, err error) (*RunReport, error) {
	e.move(StateAborted)
	report.Status = models.RunStatusAborted
	if !errors.Is(err, ErrRunAborted) {
		report.Status = models.RunStatusError
	}
	report.Error = err.Error()
	e.finish(ctx, report)
	return report, err
}

func (e *Engine) move(to State) {
	if err := e.tracker.Move(to); err != nil {
		e.log.WithError(err).Warn("run state not updated")
	}
}

func (e *Engine) finish(ctx context.Context, report *RunReport) {
	report.CompletedAt = e.now().UTC()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)
	e.metrics.ObserveRun(report.Kind, report.Status, report.Duration)
	e.record(ctx, report)
}

// record stores the run in history. History is informational, so a
// failure here is logged and never changes the outcome of the run.
func (e *Engine) record(ctx context.Context, report *RunReport) {
	collisions := report.Collisions
	if len(collisions) > maxDebugCollisions {
		collisions = collisions[:maxDebugCollisions]
	}
	debug, err := json.Marshal(map[string]interface{}{
		"decision":   report.Decision,
		"collisions": collisions,
		"failedSkus": report.FailedSKUs,
		"fetch":      report.Fetch,
	})
	if err != nil {
		debug = []byte("{}")
	}

	completed := report.CompletedAt
	run := &models.SyncRun{
		RunID:       report.RunID,
		Kind:        report.Kind,
		Status:      report.Status,
		StartedAt:   report.StartedAt,
		CompletedAt: &completed,
		Duration:    report.Duration.Milliseconds(),
		Fetched:     report.Fetched,
		Unique:      report.Unique,
		Duplicates:  report.Duplicates,
		Saved:       report.Saved,
		Failed:      report.Failed,
		Skipped:     report.Skipped,
		PagesFailed: report.Fetch.PagesFailed,
		ErrorDetail: report.Error,
		DebugInfo:   datatypes.JSON(debug),
	}
	if err := e.store.RecordRun(ctx, run); err != nil {
		e.log.WithError(err).WithField("run_id", report.RunID).Warn("⚠️ Failed to record run history")
	}
}

// Report is the result of the comparison path.
type Report struct {
	RunID       string           `json:"runId"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Ledger      string           `json:"ledger"`
	Summary     ReportSummary    `json:"summary"`
	Rows        []DiscrepancyRow `json:"rows"`
}

// Report compares the persisted snapshot against a freshly fetched ledger.
// It does not touch the snapshot and may run while an ingestion is active.
func (e *Engine) Report(ctx context.Context) (*Report, error) {
	started := e.now().UTC()
	runID := uuid.NewString()
	log := e.log.WithFields(logrus.Fields{"run_id": runID, "kind": models.RunKindReport})

	records, err := e.store.ReadAll(ctx)
	if err != nil {
		e.metrics.ObserveRun(models.RunKindReport, models.RunStatusError, e.now().Sub(started))
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	entries, err := e.ledger.FetchLedger(ctx)
	if err != nil {
		e.metrics.ObserveRun(models.RunKindReport, models.RunStatusError, e.now().Sub(started))
		return nil, fmt.Errorf("fetch ledger %s: %w", e.ledger.Name(), err)
	}

	catalog := CatalogStockFromRecords(records)
	ledger := LedgerStockFromEntries(entries)
	rows := Classify(catalog, ledger, e.rules)
	summary := Summarize(rows, len(catalog), len(ledger))

	byCategory := make(map[string]int, len(summary.ByCategory))
	for c, n := range summary.ByCategory {
		byCategory[string(c)] = n
	}
	e.metrics.ObserveReport(byCategory, len(catalog), len(ledger))
	e.metrics.ObserveRun(models.RunKindReport, models.RunStatusSuccess, e.now().Sub(started))

	log.WithFields(logrus.Fields{
		"catalog_skus": len(catalog),
		"ledger_skus":  len(ledger),
		"rows":         len(rows),
	}).Info("📊 Discrepancy report generated")

	return &Report{
		RunID:       runID,
		GeneratedAt: started,
		Ledger:      e.ledger.Name(),
		Summary:     summary,
		Rows:        rows,
	}, nil
}
