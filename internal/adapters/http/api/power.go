package api

import (
	"context"
	"net/http"

	"github.com/okian/powerrank/internal/domain/types"
)

// PowerDependencies defines the interface for power table reads.
type PowerDependencies interface {
	Power(ctx context.Context, seasonID, weekID string) ([]types.PowerEntry, error)
}

// PowerHandler handles power table requests.
type PowerHandler struct {
	deps PowerDependencies
}

// NewPowerHandler creates a new power handler.
func NewPowerHandler(deps PowerDependencies) *PowerHandler {
	return &PowerHandler{deps: deps}
}

// HandleGetPower handles GET /power?season=S&week=W requests.
func (h *PowerHandler) HandleGetPower(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_power"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	for _, p := range []string{"season", "week"} {
		if q.Get(p) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingParam(p)))
			return
		}
	}
	rows, err := h.deps.Power(r.Context(), q.Get("season"), q.Get("week"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if rows == nil {
		rows = []types.PowerEntry{}
	}
	writeJSON(w, http.StatusOK, rows)
}
