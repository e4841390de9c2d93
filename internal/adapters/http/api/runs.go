package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/powerrank/internal/app"
	"github.com/okian/powerrank/internal/domain/model"
)

// RunDependencies defines the interface for run submission and lookup.
type RunDependencies interface {
	Submit(ctx context.Context, req model.RunRequest) (app.RunStatus, bool, error)
	Run(id string) (app.RunStatus, error)
}

// RunsHandler handles run requests.
type RunsHandler struct {
	deps RunDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// runRequest mirrors the body of POST /runs.
type runRequest struct {
	SeasonID string `json:"season_id"`
	Segment  string `json:"segment"`
	DryRun   bool   `json:"dry_run"`
}

func (r runRequest) toModel() (model.RunRequest, error) {
	if strings.TrimSpace(r.SeasonID) == "" {
		return model.RunRequest{}, errMissingParam("season_id")
	}
	seg, ok := model.ParseSegment(r.Segment)
	if !ok {
		return model.RunRequest{}, errInvalidParam("segment")
	}
	return model.RunRequest{
		SeasonID: strings.TrimSpace(r.SeasonID),
		Segment:  seg,
		DryRun:   r.DryRun,
		Source:   model.SourceAPI,
	}, nil
}

type runAck struct {
	RunID        string       `json:"run_id"`
	State        app.RunState `json:"state"`
	Deduplicated bool         `json:"deduplicated"`
}

// HandlePostRun handles POST /runs requests.
func (h *RunsHandler) HandlePostRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_run"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, deduped, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runAck{RunID: st.Request.ID, State: st.State, Deduplicated: deduped})
}

// HandleGetRun handles GET /runs/{id} requests.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	st, err := h.deps.Run(id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
