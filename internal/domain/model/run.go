package model

import "time"

// RunSource says who asked for a ranking run.
type RunSource string

// Run sources.
const (
	SourceAPI      RunSource = "api"
	SourceSchedule RunSource = "schedule"
	SourceCLI      RunSource = "cli"
)

// RunRequest asks for one season to be ranked.
type RunRequest struct {
	ID         string    `json:"id"`
	SeasonID   string    `json:"season_id"`
	Segment    Segment   `json:"segment,omitempty"`
	DryRun     bool      `json:"dry_run"`
	Source     RunSource `json:"source"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
