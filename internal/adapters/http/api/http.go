// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Identity(ctx context.Context, id int64) (model.Identity, error)
	Identities(ctx context.Context, offset, limit int) ([]model.Identity, error)
	Events(ctx context.Context, q repository.EventQuery) ([]model.Event, error)
}

// Paging limits for list endpoints.
const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	visitorsHandler *VisitorsHandler
	eventsHandler   *EventsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		visitorsHandler: NewVisitorsHandler(deps),
		eventsHandler:   NewEventsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/visitors", MetricsMiddleware(s.visitorsHandler.HandleList, "visitors"))
	mux.HandleFunc("/visitors/", MetricsMiddleware(s.visitorsHandler.HandleGet, "visitor"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandleList, "events"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeStoreError maps repository errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// intParam parses an optional non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, wrapBadRequest(name + " must be a non-negative integer")
	}
	return n, nil
}

// limitParam reads ?limit, defaulting and capping it.
func limitParam(r *http.Request) (int, error) {
	n, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > maxLimit {
		return 0, wrapBadRequest("limit must be between 1 and " + strconv.Itoa(maxLimit))
	}
	return n, nil
}
