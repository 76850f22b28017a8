package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/evanofslack/dns-relay/internal/audit"
	"github.com/evanofslack/dns-relay/internal/metrics"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

// NewRelayRouter serves the relay handler on every path and method; the
// handler itself decides what is allowed.
func NewRelayRouter(h http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)
	r.Use(requestID, accessLog)
	r.PathPrefix("/").Handler(h)
	return r
}

// NewOpsRouter serves metrics, health and the audit journal on the
// operations listener.
func NewOpsRouter(m *metrics.Metrics, journal audit.Journal) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/audit", auditHandler(journal)).Methods(http.MethodGet)
	return r
}

func auditHandler(journal audit.Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultAuditLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(v, maxAuditLimit)
		}

		entries, err := journal.Recent(r.Context(), limit)
		if errors.Is(err, audit.ErrDisabled) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("fail read audit journal", "error", err)
			http.Error(w, "fail read audit journal", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			slog.Debug("fail write audit response", "error", err)
		}
	}
}
