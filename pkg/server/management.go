package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nimburion/injurystore/pkg/health"
	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/version"
)

// ManagementOptions configures NewManagementHandler.
type ManagementOptions struct {
	Checks *health.Registry
	// Metrics is mounted on /metrics when non-nil.
	Metrics http.Handler
	Version version.Info
	Logger  logger.Logger
}

// NewManagementHandler serves the operational endpoints for the management port:
//   - /health: liveness, always 200 while the process serves
//   - /ready: readiness from the health registry, 503 when unhealthy
//   - /version: build metadata
//   - /metrics: Prometheus exposition
func NewManagementHandler(opts ManagementOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	checks := opts.Checks
	if checks == nil {
		checks = health.NewRegistry()
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, log, http.StatusOK, map[string]string{"status": string(health.StatusHealthy)})
	}).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) {
		result := checks.Check(req.Context())
		status := http.StatusOK
		if !result.IsHealthy() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, log, status, result)
	}).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, log, http.StatusOK, opts.Version)
	}).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, log, http.StatusNotFound, map[string]string{"error": "not_found", "message": "no route for " + req.URL.Path})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, log, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed", "message": req.Method + " not allowed"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("management response write failed", "error", err)
	}
}
