package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
	"github.com/mobilepoint/comparator-stoc-api/internal/report"
)

// errorStatus maps engine errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrRunInProgress), errors.Is(err, reconcile.ErrRunAborted):
		return http.StatusConflict
	case errors.Is(err, reconcile.ErrFailureBudgetExceeded):
		return http.StatusBadGateway
	case errors.Is(err, reconcile.ErrCatalogUnreachable),
		errors.Is(err, reconcile.ErrLedgerUnreachable),
		errors.Is(err, reconcile.ErrStoreUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (r *Router) runSync(w http.ResponseWriter, req *http.Request) {
	r.respondRun(w, "sync", func(ctx context.Context) (*reconcile.RunReport, error) {
		return r.engine.SyncFull(ctx)
	}, req)
}

func (r *Router) runRefresh(w http.ResponseWriter, req *http.Request) {
	r.respondRun(w, "refresh", func(ctx context.Context) (*reconcile.RunReport, error) {
		return r.engine.RefreshExisting(ctx)
	}, req)
}

func (r *Router) respondRun(w http.ResponseWriter, op string, run func(context.Context) (*reconcile.RunReport, error), req *http.Request) {
	result, err := run(req.Context())
	if err != nil {
		status := errorStatus(err)
		r.log.WithError(err).WithField("op", op).Warn("❌ Run failed")
		if result == nil {
			respondError(w, status, err.Error())
			return
		}
		respondJSON(w, status, map[string]interface{}{
			"error": err.Error(),
			"run":   result,
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (r *Router) getReport(w http.ResponseWriter, req *http.Request) {
	format, err := report.ParseFormat(req.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := r.engine.Report(req.Context())
	if err != nil {
		r.log.WithError(err).Warn("❌ Report failed")
		respondError(w, errorStatus(err), err.Error())
		return
	}
	if format == report.FormatJSON {
		respondJSON(w, http.StatusOK, rep)
		return
	}

	// render fully before writing so a failure can still change the status
	var buf bytes.Buffer
	if err := report.Write(&buf, format, rep); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("render %s: %v", format, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(rep)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (r *Router) getDuplicates(w http.ResponseWriter, req *http.Request) {
	format, err := report.ParseFormat(req.URL.Query().Get("format"))
	if err != nil || (format != report.FormatJSON && format != report.FormatCSV) {
		respondError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}

	analysis, err := r.engine.FindDuplicates(req.Context())
	if err != nil {
		r.log.WithError(err).Warn("❌ Duplicate analysis failed")
		respondError(w, errorStatus(err), err.Error())
		return
	}
	if format == report.FormatJSON {
		respondJSON(w, http.StatusOK, analysis)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteDuplicatesCSV(&buf, analysis); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", report.FormatCSV.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="duplicate_skus.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (r *Router) listRuns(w http.ResponseWriter, req *http.Request) {
	if r.history == nil {
		respondError(w, http.StatusNotImplemented, "run history is not configured")
		return
	}
	limit := 20
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := r.history.RecentRuns(req.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
