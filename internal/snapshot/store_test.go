package snapshot

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

func newTestStore(t *testing.T, cfg Config) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "snapshot.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.StockRecord{}, &models.SyncRun{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewStore(db, cfg, log), db
}

var syncedAt = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func record(sku string, qty float64, at time.Time) models.StockRecord {
	return models.StockRecord{
		SKU:          sku,
		Name:         "Item " + sku,
		Quantity:     qty,
		Availability: models.InStock,
		ItemKind:     models.KindSimple,
		LastSyncedAt: at,
	}
}

func records(n int) []models.StockRecord {
	out := make([]models.StockRecord, n)
	for i := range out {
		out[i] = record(fmt.Sprintf("SKU-%04d", i), float64(i%7), syncedAt)
	}
	return out
}

func TestUpsertIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()
	input := records(20)

	res, err := store.Upsert(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Succeeded)
	assert.Empty(t, res.FailedSKUs)
	first, err := store.ReadAll(ctx)
	require.NoError(t, err)

	_, err = store.Upsert(ctx, input)
	require.NoError(t, err)
	second, err := store.ReadAll(ctx)
	require.NoError(t, err)

	require.Len(t, second, 20)
	for sku, rec := range first {
		got := second[sku]
		assert.Equal(t, rec.Quantity, got.Quantity, sku)
		assert.Equal(t, rec.Name, got.Name, sku)
		assert.True(t, rec.LastSyncedAt.Equal(got.LastSyncedAt), sku)
	}
}

func TestUpsertOverwritesExistingRow(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	_, err := store.Upsert(ctx, []models.StockRecord{record("X", 3, syncedAt)})
	require.NoError(t, err)

	updated := record("X", 7, syncedAt.Add(time.Hour))
	updated.Availability = models.OutOfStock
	updated.ExternalID = 42
	_, err = store.Upsert(ctx, []models.StockRecord{updated})
	require.NoError(t, err)

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 7.0, all["X"].Quantity)
	assert.Equal(t, models.OutOfStock, all["X"].Availability)
	assert.Equal(t, int64(42), all["X"].ExternalID)
	assert.True(t, all["X"].LastSyncedAt.Equal(syncedAt.Add(time.Hour)))
}

func TestUpsertNeverRewindsLastSyncedAt(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	newer := syncedAt.Add(2 * time.Hour)
	_, err := store.Upsert(ctx, []models.StockRecord{record("X", 3, newer)})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, []models.StockRecord{record("X", 5, syncedAt)})
	require.NoError(t, err)

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, all["X"].Quantity)
	assert.True(t, all["X"].LastSyncedAt.Equal(newer), "got %s", all["X"].LastSyncedAt)

	last, ok, err := store.LastSyncedAt(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, last.Equal(newer))
}

func TestUpsertPartialBatchFailure(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	input := records(500)
	input[137].Quantity = -1 // violates the quantity check constraint

	res, err := store.Upsert(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 499, res.Succeeded)
	assert.Equal(t, []string{input[137].SKU}, res.FailedSKUs)

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 499)
	assert.NotContains(t, all, input[137].SKU)
}

func TestUpsertSpansBatches(t *testing.T) {
	store, _ := newTestStore(t, Config{BatchSize: 7})
	ctx := context.Background()

	input := records(30)
	input[3].Quantity = -2
	input[25].Quantity = -2

	res, err := store.Upsert(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 28, res.Succeeded)
	assert.ElementsMatch(t, []string{input[3].SKU, input[25].SKU}, res.FailedSKUs)
}

func TestUpsertEmpty(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	res, err := store.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	assert.Empty(t, res.FailedSKUs)
}

func TestReadsArePaginated(t *testing.T) {
	store, _ := newTestStore(t, Config{ReadPageSize: 3})
	ctx := context.Background()

	_, err := store.Upsert(ctx, records(10))
	require.NoError(t, err)

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	known, err := store.ReadKnownSKUs(ctx)
	require.NoError(t, err)
	assert.Len(t, known, 10)
	assert.Contains(t, known, "SKU-0000")
	assert.Contains(t, known, "SKU-0009")
}

func TestReadExactPageMultiple(t *testing.T) {
	store, _ := newTestStore(t, Config{ReadPageSize: 5})
	ctx := context.Background()

	_, err := store.Upsert(ctx, records(10))
	require.NoError(t, err)

	all, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestLastSyncedAtEmpty(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	_, ok, err := store.LastSyncedAt(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnreachableStoreIsFatal(t *testing.T) {
	store, db := newTestStore(t, Config{})
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	ctx := context.Background()

	_, err = store.Upsert(ctx, records(3))
	assert.ErrorIs(t, err, reconcile.ErrStoreUnreachable)

	_, err = store.ReadAll(ctx)
	assert.ErrorIs(t, err, reconcile.ErrStoreUnreachable)

	_, err = store.ReadKnownSKUs(ctx)
	assert.ErrorIs(t, err, reconcile.ErrStoreUnreachable)
}

// hang makes matching statements block until their context ends, like a
// database that accepted the connection but never answers.
func hang(t *testing.T, db *gorm.DB, op string, match func(*gorm.DB) bool) {
	t.Helper()
	block := func(tx *gorm.DB) {
		if !match(tx) {
			return
		}
		<-tx.Statement.Context.Done()
		tx.AddError(tx.Statement.Context.Err())
	}
	var err error
	switch op {
	case "create":
		err = db.Callback().Create().Before("gorm:create").Register("test:hang", block)
	case "query":
		err = db.Callback().Query().Before("gorm:query").Register("test:hang", block)
	}
	require.NoError(t, err)
}

func multiRow(tx *gorm.DB) bool {
	v := tx.Statement.ReflectValue
	return v.Kind() == reflect.Slice && v.Len() > 1
}

func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("still blocked after %s", d)
	}
}

func TestUpsertHungBatchFallsBackToSingleRecords(t *testing.T) {
	store, db := newTestStore(t, Config{Timeout: 100 * time.Millisecond})
	hang(t, db, "create", multiRow)

	var res reconcile.UpsertResult
	var err error
	within(t, 5*time.Second, func() {
		res, err = store.Upsert(context.Background(), records(3))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Empty(t, res.FailedSKUs)
}

func TestUpsertHungStatementsFailRecords(t *testing.T) {
	store, db := newTestStore(t, Config{Timeout: 50 * time.Millisecond})
	hang(t, db, "create", func(*gorm.DB) bool { return true })

	var res reconcile.UpsertResult
	var err error
	within(t, 5*time.Second, func() {
		res, err = store.Upsert(context.Background(), records(3))
	})
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	assert.Len(t, res.FailedSKUs, 3)
}

func TestReadAllHungQueryTimesOut(t *testing.T) {
	store, db := newTestStore(t, Config{Timeout: 50 * time.Millisecond})
	_, err := store.Upsert(context.Background(), records(2))
	require.NoError(t, err)
	hang(t, db, "query", func(*gorm.DB) bool { return true })

	within(t, 5*time.Second, func() {
		_, err = store.ReadAll(context.Background())
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpsertStopsWhenCancelled(t *testing.T) {
	store, db := newTestStore(t, Config{Timeout: time.Minute})
	hang(t, db, "create", func(*gorm.DB) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var err error
	within(t, 5*time.Second, func() {
		_, err = store.Upsert(ctx, records(3))
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunHistory(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	for i, status := range []string{models.RunStatusSuccess, models.RunStatusPartial, models.RunStatusAborted} {
		run := &models.SyncRun{
			RunID:     fmt.Sprintf("run-%d", i),
			Kind:      models.RunKindFullSync,
			Status:    status,
			StartedAt: syncedAt.Add(time.Duration(i) * time.Minute),
			Saved:     i,
			DebugInfo: datatypes.JSON(`{"failedSkus":[]}`),
		}
		require.NoError(t, store.RecordRun(ctx, run))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, models.RunStatusAborted, runs[0].Status)
	assert.Equal(t, "run-1", runs[1].RunID)
	assert.JSONEq(t, `{"failedSkus":[]}`, string(runs[1].DebugInfo))
}
