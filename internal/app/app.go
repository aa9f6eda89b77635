// Package app wires configuration into a running reconciliation engine.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/config"
	"github.com/mobilepoint/comparator-stoc-api/internal/database"
	"github.com/mobilepoint/comparator-stoc-api/internal/metrics"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/odoo"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/smartbill"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/woocommerce"
	"github.com/mobilepoint/comparator-stoc-api/internal/snapshot"
)

// App holds the long-lived collaborators of one process.
type App struct {
	DB      *database.DB
	Store   *snapshot.Store
	Engine  *reconcile.Engine
	Metrics *metrics.Metrics
}

// NewLedger picks the ledger source named by cfg.Provider.
func NewLedger(cfg config.LedgerConfig, log logrus.FieldLogger) (reconcile.LedgerSource, error) {
	switch cfg.Provider {
	case config.LedgerSmartBill:
		c, err := smartbill.NewClient(cfg.SmartBill, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.LedgerOdoo:
		s, err := odoo.NewLedgerSource(cfg.Odoo, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown ledger provider %q", cfg.Provider)
}

// Options are the process-specific parts of the wiring. All are optional.
type Options struct {
	Registerer prometheus.Registerer // no metrics when nil
	Resolver   reconcile.CollisionResolver
	OnStatus   func(reconcile.Status)
}

// New connects to the database, migrates the schema and builds the engine.
// The caller owns Close.
func New(cfg *config.Config, log logrus.FieldLogger, opts Options) (*App, error) {
	catalog, err := woocommerce.NewFetcher(cfg.Catalog, log)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	ledger, err := NewLedger(cfg.Ledger, log)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("🚀 Synchronizing database schema...")
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("✅ Schema synchronized successfully")

	var m *metrics.Metrics
	if opts.Registerer != nil {
		m = metrics.New(opts.Registerer, cfg.Server.MetricsPrefix)
	}
	store := snapshot.NewStore(db.DB, cfg.Snapshot, log)
	rules := cfg.Rules
	engine := reconcile.NewEngine(catalog, ledger, store, reconcile.Options{
		Rules:    &rules,
		Resolver: opts.Resolver,
		Metrics:  m,
		Logger:   log,
		OnStatus: opts.OnStatus,
	})

	return &App{DB: db, Store: store, Engine: engine, Metrics: m}, nil
}

// Close releases the database, stopping embedded Postgres if it was started.
func (a *App) Close() error {
	return a.DB.Close()
}
