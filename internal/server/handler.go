package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/evanofslack/dns-relay/internal/audit"
	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/provider"
	"github.com/evanofslack/dns-relay/internal/relay"
)

const maxRequestBytes = 1 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, op relay.Operation) (provider.Envelope, error)
}

// Handler is the browser facing relay endpoint. It answers on any path.
type Handler struct {
	dispatcher Dispatcher
	metrics    *metrics.Metrics
}

func NewHandler(d Dispatcher, metrics *metrics.Metrics) *Handler {
	return &Handler{dispatcher: d, metrics: metrics}
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	setCORS(w.Header())

	switch r.Method {
	case http.MethodOptions:
		h.status(w, "preflight", http.StatusNoContent, start)
		return
	case http.MethodPost:
	default:
		h.status(w, "", http.StatusMethodNotAllowed, start)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		slog.Debug("fail read request body", "request_id", audit.RequestID(r.Context()), "error", err)
		h.status(w, "", http.StatusBadRequest, start)
		return
	}

	var op relay.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		slog.Debug("fail parse request body", "request_id", audit.RequestID(r.Context()), "error", err)
		h.status(w, "", http.StatusBadRequest, start)
		return
	}

	env, err := h.dispatcher.Dispatch(r.Context(), op)
	switch {
	case errors.Is(err, relay.ErrMissingFields), errors.Is(err, relay.ErrInvalidAction):
		slog.Debug("Rejected operation", "request_id", audit.RequestID(r.Context()), "action", op.Action, "reason", err)
		h.status(w, op.Action, http.StatusBadRequest, start)
		return
	case err != nil:
		slog.Error("Upstream request failed", "request_id", audit.RequestID(r.Context()), "action", op.Action, "domain", op.Domain, "error", err)
		env = provider.Failure(relay.MsgUpstreamFailed)
	}

	code := http.StatusOK
	if !env.Success {
		code = http.StatusInternalServerError
	}
	h.envelope(w, op.Action, code, env, start)
}

func (h *Handler) status(w http.ResponseWriter, action string, code int, start time.Time) {
	w.WriteHeader(code)
	h.observe(action, code, start)
}

func (h *Handler) envelope(w http.ResponseWriter, action string, code int, env provider.Envelope, start time.Time) {
	body, err := env.Body()
	if err != nil {
		slog.Error("fail encode envelope", "error", err)
		body, _ = provider.Failure(relay.MsgUpstreamFailed).Body()
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		slog.Debug("fail write response", "error", err)
	}
	h.observe(action, code, start)
}

func (h *Handler) observe(action string, code int, start time.Time) {
	h.metrics.IncRequest(action, code)
	h.metrics.ObserveRequestDuration(action, time.Since(start))
}
