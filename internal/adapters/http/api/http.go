// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/powerrank/internal/adapters/mq/queue"
	"github.com/okian/powerrank/internal/app"
	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit queues a ranking run. deduped reports that an identical run
	// was already pending and its status was returned instead.
	Submit(ctx context.Context, req model.RunRequest) (st app.RunStatus, deduped bool, err error)
	Run(id string) (app.RunStatus, error)

	// Read operations expose computed output.
	Standings(ctx context.Context, seasonID string, segment model.Segment) ([]types.StandingEntry, error)
	Power(ctx context.Context, seasonID, weekID string) ([]types.PowerEntry, error)
	Checks(ctx context.Context, seasonID string) ([]app.CheckResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	runsHandler      *RunsHandler
	standingsHandler *StandingsHandler
	powerHandler     *PowerHandler
	checksHandler    *ChecksHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		runsHandler:      NewRunsHandler(deps),
		standingsHandler: NewStandingsHandler(deps),
		powerHandler:     NewPowerHandler(deps),
		checksHandler:    NewChecksHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/runs", MetricsMiddleware(s.runsHandler.HandlePostRun, "runs"))
	mux.HandleFunc("/runs/", MetricsMiddleware(s.runsHandler.HandleGetRun, "run"))
	mux.HandleFunc("/standings", MetricsMiddleware(s.standingsHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("/power", MetricsMiddleware(s.powerHandler.HandleGetPower, "power"))
	mux.HandleFunc("/checks", MetricsMiddleware(s.checksHandler.HandleGetChecks, "checks"))
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

// writeFailure maps upstream errors onto status codes.
func writeFailure(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, app.ErrMissingSeason),
		errors.Is(err, app.ErrConfiguration):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, app.ErrRunNotFound), errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, app.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
