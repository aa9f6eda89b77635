package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/buildinfo"
	"github.com/mobilepoint/comparator-stoc-api/internal/middleware"
	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
	"github.com/mobilepoint/comparator-stoc-api/internal/websocket"
)

// Reconciler is the engine surface the API exposes.
type Reconciler interface {
	SyncFull(ctx context.Context) (*reconcile.RunReport, error)
	RefreshExisting(ctx context.Context) (*reconcile.RunReport, error)
	Report(ctx context.Context) (*reconcile.Report, error)
	FindDuplicates(ctx context.Context) (*reconcile.DuplicateAnalysis, error)
	Status() reconcile.Status
}

// RunHistory reads past runs and snapshot freshness.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
	LastSyncedAt(ctx context.Context) (time.Time, bool, error)
}

// Deps are the collaborators of the router.
type Deps struct {
	Engine    Reconciler
	History   RunHistory
	Logger    logrus.FieldLogger
	JWTSecret string       // empty leaves mutating routes open
	Metrics   http.Handler   // served on /metrics when set
	Events    *websocket.Hub // run status feed, disabled when nil
}

// Router wraps the mux router and the reconciliation engine
type Router struct {
	*mux.Router
	engine  Reconciler
	history RunHistory
	events  *websocket.Hub
	log     logrus.FieldLogger
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Router{
		Router:  mux.NewRouter(),
		engine:  d.Engine,
		history: d.History,
		events:  d.Events,
		log:     log.WithField("component", "http"),
	}
	r.Use(middleware.RequestLogger(r.log))

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	rec := api.PathPrefix("/reconcile").Subrouter()
	rec.HandleFunc("/report", r.getReport).Methods("GET")
	rec.HandleFunc("/runs", r.listRuns).Methods("GET")
	if r.events != nil {
		rec.HandleFunc("/events", r.serveEvents).Methods("GET")
	}

	// Catalog crawls (protected)
	protect := middleware.RequireJWT(d.JWTSecret)
	rec.Handle("/sync", protect(http.HandlerFunc(r.runSync))).Methods("POST")
	rec.Handle("/refresh", protect(http.HandlerFunc(r.runRefresh))).Methods("POST")
	rec.Handle("/duplicates", protect(http.HandlerFunc(r.getDuplicates))).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus reports the engine state and snapshot freshness
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	body := map[string]interface{}{
		"status": "running",
		"engine": r.engine.Status(),
		"build":  buildinfo.Current(),
	}
	if r.history != nil {
		last, ok, err := r.history.LastSyncedAt(req.Context())
		switch {
		case err != nil:
			r.log.WithError(err).Warn("⚠️ Could not read snapshot freshness")
			body["lastSyncedAt"] = nil
		case ok:
			body["lastSyncedAt"] = last
		default:
			body["lastSyncedAt"] = nil
		}
	}
	respondJSON(w, http.StatusOK, body)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
