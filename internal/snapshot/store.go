package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

const (
	DefaultBatchSize    = 500
	DefaultReadPageSize = 1000
	DefaultTimeout      = 30 * time.Second
)

// Config tunes the store.
type Config struct {
	BatchSize    int           // records per upsert statement
	ReadPageSize int           // row cap per read query
	Timeout      time.Duration // deadline for each statement
}

// Store persists the catalog snapshot and run history through gorm. It
// implements reconcile.SnapshotStore.
type Store struct {
	db  *gorm.DB
	cfg Config
	log logrus.FieldLogger
}

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB, cfg Config, log logrus.FieldLogger) *Store {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ReadPageSize <= 0 {
		cfg.ReadPageSize = DefaultReadPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, cfg: cfg, log: log.WithField("component", "snapshot")}
}

// stmt returns a session bound to a fresh per-statement deadline.
func (s *Store) stmt(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	return s.db.WithContext(ctx), cancel
}

func (s *Store) ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", reconcile.ErrStoreUnreachable, err)
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := sqlDB.PingContext(pctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", reconcile.ErrStoreUnreachable, err)
	}
	return nil
}

// onConflict overwrites every column except the key. last_synced_at only
// moves forward, so replaying an older record cannot rewind it.
func onConflict() clause.OnConflict {
	updates := clause.AssignmentColumns([]string{"name", "quantity", "availability", "item_kind", "external_id"})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "last_synced_at"},
		Value: gorm.Expr("CASE WHEN excluded.last_synced_at > catalog_stock.last_synced_at " +
			"THEN excluded.last_synced_at ELSE catalog_stock.last_synced_at END"),
	})
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}},
		DoUpdates: updates,
	}
}

func (s *Store) upsertRows(ctx context.Context, rows []models.StockRecord) error {
	tx, cancel := s.stmt(ctx)
	defer cancel()
	return tx.Clauses(onConflict()).Create(&rows).Error
}

// Upsert writes records in batches. A failed or timed-out batch is retried
// one record at a time; records that fail both ways are reported in
// FailedSKUs and never abort the run. Only an unreachable database or a
// cancelled ctx returns an error.
func (s *Store) Upsert(ctx context.Context, records []models.StockRecord) (reconcile.UpsertResult, error) {
	result := reconcile.UpsertResult{FailedSKUs: []string{}}
	if len(records) == 0 {
		return result, nil
	}
	if err := s.ping(ctx); err != nil {
		return result, err
	}

	for start := 0; start < len(records); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := make([]models.StockRecord, end-start)
		copy(batch, records[start:end])
		batchNo := start/s.cfg.BatchSize + 1

		err := s.upsertRows(ctx, batch)
		if err == nil {
			result.Succeeded += len(batch)
			continue
		}

		s.log.WithError(err).WithFields(logrus.Fields{"batch": batchNo, "size": len(batch)}).
			Warn("⚠️ Batch upsert failed, retrying records individually")
		if perr := s.ping(ctx); perr != nil {
			return result, perr
		}

		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := s.upsertRows(ctx, []models.StockRecord{rec}); err != nil {
				result.FailedSKUs = append(result.FailedSKUs, rec.SKU)
				s.log.WithError(err).WithField("sku", rec.SKU).Warn("Failed to save stock record")
				continue
			}
			result.Succeeded++
		}
	}

	s.log.WithFields(logrus.Fields{"saved": result.Succeeded, "failed": len(result.FailedSKUs)}).Info("💾 Snapshot upsert finished")
	return result, nil
}

// ReadAll returns the whole snapshot keyed by SKU. Reads are paginated by
// key so a row cap on the database side is transparent to the caller.
func (s *Store) ReadAll(ctx context.Context) (map[string]models.StockRecord, error) {
	if err := s.ping(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]models.StockRecord)
	last := ""
	for {
		var page []models.StockRecord
		tx, cancel := s.stmt(ctx)
		q := tx.Order("sku ASC").Limit(s.cfg.ReadPageSize)
		if last != "" {
			q = q.Where("sku > ?", last)
		}
		err := q.Find(&page).Error
		cancel()
		if err != nil {
			return nil, fmt.Errorf("read snapshot after %q: %w", last, err)
		}
		for _, r := range page {
			out[r.SKU] = r
		}
		if len(page) < s.cfg.ReadPageSize {
			return out, nil
		}
		last = page[len(page)-1].SKU
	}
}

// ReadKnownSKUs returns the set of SKUs present in the snapshot.
func (s *Store) ReadKnownSKUs(ctx context.Context) (map[string]struct{}, error) {
	if err := s.ping(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]struct{})
	last := ""
	for {
		var page []string
		tx, cancel := s.stmt(ctx)
		q := tx.Model(&models.StockRecord{}).Order("sku ASC").Limit(s.cfg.ReadPageSize)
		if last != "" {
			q = q.Where("sku > ?", last)
		}
		err := q.Pluck("sku", &page).Error
		cancel()
		if err != nil {
			return nil, fmt.Errorf("read known skus after %q: %w", last, err)
		}
		for _, sku := range page {
			out[sku] = struct{}{}
		}
		if len(page) < s.cfg.ReadPageSize {
			return out, nil
		}
		last = page[len(page)-1]
	}
}

// LastSyncedAt returns the newest sync time in the snapshot; ok is false for
// an empty snapshot.
func (s *Store) LastSyncedAt(ctx context.Context) (time.Time, bool, error) {
	var rec models.StockRecord
	tx, cancel := s.stmt(ctx)
	defer cancel()
	err := tx.Order("last_synced_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return rec.LastSyncedAt.UTC(), true, nil
}

// RecordRun appends a run to sync_history.
func (s *Store) RecordRun(ctx context.Context, run *models.SyncRun) error {
	tx, cancel := s.stmt(ctx)
	defer cancel()
	return tx.Create(run).Error
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var runs []models.SyncRun
	tx, cancel := s.stmt(ctx)
	defer cancel()
	err := tx.Order("started_at DESC").Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
