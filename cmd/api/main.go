package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/app"
	"github.com/mobilepoint/comparator-stoc-api/internal/buildinfo"
	"github.com/mobilepoint/comparator-stoc-api/internal/config"
	"github.com/mobilepoint/comparator-stoc-api/internal/handlers"
	"github.com/mobilepoint/comparator-stoc-api/internal/logging"
	"github.com/mobilepoint/comparator-stoc-api/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.WithFields(logrus.Fields{
		"version": buildinfo.Version,
		"commit":  buildinfo.CommitHash,
		"ledger":  cfg.Ledger.Provider,
	}).Info("📦 Stock reconciliation API starting")

	// 2. Metrics registry (process + Go collectors, plus our own)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 3. Run status feed
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub(log)
	go hub.Run(hubCtx)

	// 4. Database, sources and engine. Collisions are resolved automatically
	// (last write wins) since nobody is at a terminal to answer.
	a, err := app.New(cfg, log, app.Options{
		Registerer: reg,
		OnStatus:   handlers.PublishStatus(hub),
	})
	if err != nil {
		log.Fatalf("Failed to initialise: %v", err)
	}
	// Note: a.Close() is called manually in shutdown handler below

	// 5. Set up HTTP router
	router := handlers.NewRouter(handlers.Deps{
		Engine:    a.Engine,
		History:   a.Store,
		Logger:    log,
		JWTSecret: cfg.Server.JWTSecret,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Events:    hub,
	})
	if cfg.Server.JWTSecret == "" {
		log.Warn("⚠️ JWT_SECRET is empty, sync and refresh endpoints are unauthenticated")
	}

	// 6. Start server with graceful shutdown
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infof("🚀 Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Warnf("⚠️ Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	stopHub()

	// Close database (this also stops embedded PostgreSQL)
	log.Info("🛑 Closing database connection...")
	if err := a.Close(); err != nil {
		log.Errorf("Database close error: %v", err)
	}

	log.Info("✅ Shutdown complete")
}
