package api

import (
	"context"
	"net/http"

	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/internal/domain/types"
)

// StandingsDependencies defines the interface for standings reads.
type StandingsDependencies interface {
	Standings(ctx context.Context, seasonID string, segment model.Segment) ([]types.StandingEntry, error)
}

// StandingsHandler handles standings requests.
type StandingsHandler struct {
	deps StandingsDependencies
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies) *StandingsHandler {
	return &StandingsHandler{deps: deps}
}

// HandleGetStandings handles GET /standings?season=S&segment=G requests.
// segment defaults to the regular season.
func (h *StandingsHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	season := q.Get("season")
	if season == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingParam("season")))
		return
	}
	seg, ok := model.ParseSegment(q.Get("segment"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errInvalidParam("segment")))
		return
	}
	if seg == "" {
		seg = model.RegularSeason
	}
	rows, err := h.deps.Standings(r.Context(), season, seg)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if rows == nil {
		rows = []types.StandingEntry{}
	}
	writeJSON(w, http.StatusOK, rows)
}
