package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/powerrank/internal/app"
)

// CheckDependencies defines the interface for validation checks.
type CheckDependencies interface {
	Checks(ctx context.Context, seasonID string) ([]app.CheckResult, error)
}

// ChecksHandler handles validation check requests.
type ChecksHandler struct {
	deps CheckDependencies
}

// NewChecksHandler creates a new checks handler.
func NewChecksHandler(deps CheckDependencies) *ChecksHandler {
	return &ChecksHandler{deps: deps}
}

type checksResponse struct {
	OK      bool              `json:"ok"`
	Results []app.CheckResult `json:"results"`
}

// HandleGetChecks handles GET /checks?season=S requests. Failing checks are
// part of a 200 response; only a failure to compute is an error status.
func (h *ChecksHandler) HandleGetChecks(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_checks"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	season := r.URL.Query().Get("season")
	if season == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingParam("season")))
		return
	}
	results, err := h.deps.Checks(r.Context(), season)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	resp := checksResponse{OK: true, Results: results}
	for _, c := range results {
		if c.Status != app.CheckOK {
			resp.OK = false
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func errMissingParam(name string) error {
	return errors.New("missing " + name)
}

func errInvalidParam(name string) error {
	return errors.New("invalid " + name)
}
