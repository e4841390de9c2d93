// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config filled with league defaults.
//   - Load layers a .env file, an optional YAML file and LEAGUE_* env vars on top.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/powerrank/internal/domain/composite"
	"github.com/okian/powerrank/internal/domain/elo"
	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/internal/domain/performance"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SeasonID is the season scheduled runs rank.
	SeasonID string `koanf:"season_id"`
	// Schedule is a standard five-field cron expression; empty disables scheduled runs.
	Schedule string `koanf:"schedule"`
	// Timezone is the IANA zone the schedule and week boundaries are read in.
	Timezone string `koanf:"timezone"`

	// RunQueueSize bounds pending run requests.
	RunQueueSize int `koanf:"run_queue_size"`
	// RecentRuns is how many finished run results the service keeps.
	RecentRuns int `koanf:"recent_runs"`

	Storage Storage `koanf:"storage"`
	Ranking Ranking `koanf:"ranking"`
}

// Storage selects the repository backend.
type Storage struct {
	// Driver is memory, sqlite or postgres.
	Driver string `koanf:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN          string        `koanf:"dsn"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	DebugSQL     bool          `koanf:"debug_sql"`
}

// Ranking is the engine's tuning surface.
type Ranking struct {
	Elo         Elo         `koanf:"elo"`
	Performance Performance `koanf:"performance"`
	Composite   Composite   `koanf:"composite"`
	Matchup     Matchup     `koanf:"matchup"`

	// Segment restricts persisted output to one season segment; empty means all.
	Segment        string `koanf:"segment"`
	WildcardCutoff int    `koanf:"wildcard_cutoff"`
	DryRun         bool   `koanf:"dry_run"`
	Verbose        bool   `koanf:"verbose"`
}

// Elo holds rating engine parameters.
type Elo struct {
	BaseRating        float64 `koanf:"base_rating"`
	Scale             float64 `koanf:"scale"`
	BaseK             float64 `koanf:"base_k"`
	MarginK           float64 `koanf:"margin_k"`
	ActualBlend       float64 `koanf:"actual_blend"`
	RegularMultiplier float64 `koanf:"regular_multiplier"`
	LosersMultiplier  float64 `koanf:"losers_multiplier"`
	PlayoffBase       float64 `koanf:"playoff_base"`
	PlayoffRoundStep  float64 `koanf:"playoff_round_step"`
}

// Performance holds smoothing and signal weights.
type Performance struct {
	Alpha   float64            `koanf:"alpha"`
	Weights PerformanceWeights `koanf:"weights"`
}

// PerformanceWeights weighs the performance signals.
type PerformanceWeights struct {
	Category float64 `koanf:"category"`
	Rating   float64 `koanf:"rating"`
	Points   float64 `koanf:"points"`
	Margin   float64 `koanf:"margin"`
	Talent   float64 `koanf:"talent"`
}

// Composite holds the composite blend.
type Composite struct {
	EloWeight  float64 `koanf:"elo_weight"`
	StatWeight float64 `koanf:"stat_weight"`
}

// Matchup holds head-to-head scoring parameters.
type Matchup struct {
	Categories            []model.Category `koanf:"categories"`
	GoalieStartsThreshold int              `koanf:"goalie_starts_threshold"`
}

// New creates a Config with league defaults.
func New() *Config {
	e := elo.DefaultConfig()
	p := performance.DefaultConfig()
	c := composite.DefaultConfig()
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":9080",
		Timezone:     "UTC",
		RunQueueSize: 16,
		RecentRuns:   50,
		Storage: Storage{
			Driver:       "memory",
			QueryTimeout: 30 * time.Second,
			MaxOpenConns: 4,
		},
		Ranking: Ranking{
			Elo: Elo{
				BaseRating:        e.BaseRating,
				Scale:             e.Scale,
				BaseK:             e.BaseK,
				MarginK:           e.MarginK,
				ActualBlend:       e.ActualBlend,
				RegularMultiplier: e.RegularMultiplier,
				LosersMultiplier:  e.LosersMultiplier,
				PlayoffBase:       e.PlayoffBase,
				PlayoffRoundStep:  e.PlayoffRoundStep,
			},
			Performance: Performance{
				Alpha: p.Alpha,
				Weights: PerformanceWeights{
					Category: p.Weights.Category,
					Rating:   p.Weights.Rating,
					Points:   p.Weights.Points,
					Margin:   p.Weights.Margin,
					Talent:   p.Weights.Talent,
				},
			},
			Composite: Composite{EloWeight: c.EloWeight, StatWeight: c.StatWeight},
			Matchup: Matchup{
				Categories:            model.DefaultCategories(),
				GoalieStartsThreshold: 2,
			},
			WildcardCutoff: 3,
		},
	}
}

// EloConfig converts to the rating engine's parameters.
func (r Ranking) EloConfig() elo.Config {
	return elo.Config{
		BaseRating:        r.Elo.BaseRating,
		Scale:             r.Elo.Scale,
		BaseK:             r.Elo.BaseK,
		MarginK:           r.Elo.MarginK,
		ActualBlend:       r.Elo.ActualBlend,
		RegularMultiplier: r.Elo.RegularMultiplier,
		LosersMultiplier:  r.Elo.LosersMultiplier,
		PlayoffBase:       r.Elo.PlayoffBase,
		PlayoffRoundStep:  r.Elo.PlayoffRoundStep,
	}
}

// PerformanceConfig converts to the performance engine's parameters.
func (r Ranking) PerformanceConfig() performance.Config {
	w := r.Performance.Weights
	return performance.Config{
		Alpha: r.Performance.Alpha,
		Weights: performance.Weights{
			Category: w.Category,
			Rating:   w.Rating,
			Points:   w.Points,
			Margin:   w.Margin,
			Talent:   w.Talent,
		},
	}
}

// CompositeConfig converts to the composite ranker's parameters.
func (r Ranking) CompositeConfig() composite.Config {
	return composite.Config{EloWeight: r.Composite.EloWeight, StatWeight: r.Composite.StatWeight}
}

// SegmentFilter parses Segment.
func (r Ranking) SegmentFilter() (model.Segment, error) {
	seg, ok := model.ParseSegment(r.Segment)
	if !ok {
		return "", fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownSegment, r.Segment)
	}
	return seg, nil
}

// Validate checks every ranking parameter.
func (r Ranking) Validate() error {
	if err := r.EloConfig().Validate(); err != nil {
		return fmt.Errorf("%w: elo: %v", ErrInvalidConfig, err)
	}
	if err := r.PerformanceConfig().Validate(); err != nil {
		return fmt.Errorf("%w: performance: %v", ErrInvalidConfig, err)
	}
	if err := r.CompositeConfig().Validate(); err != nil {
		return fmt.Errorf("%w: composite: %v", ErrInvalidConfig, err)
	}
	if len(r.Matchup.Categories) == 0 {
		return fmt.Errorf("%w: no scoring categories", ErrInvalidConfig)
	}
	if err := model.ValidateCategories(r.Matchup.Categories); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if r.Matchup.GoalieStartsThreshold < 0 {
		return fmt.Errorf("%w: goalie_starts_threshold must not be negative", ErrInvalidConfig)
	}
	if r.WildcardCutoff < 0 {
		return fmt.Errorf("%w: wildcard_cutoff must not be negative", ErrInvalidConfig)
	}
	if _, err := r.SegmentFilter(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.RunQueueSize <= 0 {
		return fmt.Errorf("%w: run_queue_size must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "", "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn required for %s", ErrInvalidConfig, c.Storage.Driver)
		}
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownDriver, c.Storage.Driver)
	}
	if c.Schedule != "" {
		if c.SeasonID == "" {
			return fmt.Errorf("%w: schedule needs season_id", ErrInvalidConfig)
		}
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, c.Schedule, err)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return c.Ranking.Validate()
}
