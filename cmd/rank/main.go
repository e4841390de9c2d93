// Command rank computes one season's rankings and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/powerrank/internal/adapters/repository"
	"github.com/okian/powerrank/internal/app"
	"github.com/okian/powerrank/internal/config"
	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/logger"
)

const defaultTimeout = 5 * time.Minute

// options mirror the command line.
type options struct {
	Season     string
	Segment    string
	DryRun     bool
	Verbose    bool
	Check      bool
	ImportFile string
	Driver     string
	DSN        string
	Timeout    time.Duration
}

func main() {
	var (
		season     = flag.String("season", "", "Season to rank (default: season_id from config)")
		segment    = flag.String("segment", "", "Restrict output to REGULAR_SEASON, PLAYOFFS or LOSERS")
		dryRun     = flag.Bool("dry-run", false, "Compute and report row counts without writing")
		verbose    = flag.Bool("verbose", false, "Log per-week detail")
		check      = flag.Bool("check", false, "Run the consistency checks instead of a ranking run")
		importFile = flag.String("import", "", "JSON season file to load before ranking")
		driver     = flag.String("driver", "", "Storage driver override: memory, sqlite or postgres")
		dsn        = flag.String("dsn", "", "Storage DSN override")
		timeout    = flag.Duration("timeout", defaultTimeout, "Overall run timeout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(2)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	opts := options{
		Season:     *season,
		Segment:    *segment,
		DryRun:     *dryRun,
		Verbose:    *verbose,
		Check:      *check,
		ImportFile: *importFile,
		Driver:     *driver,
		DSN:        *dsn,
		Timeout:    *timeout,
	}
	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		logger.Get().Error(ctx, "rank failed", logger.Error(err))
		if errors.Is(err, app.ErrConfiguration) || errors.Is(err, config.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error { //nolint:gocritic // hugeParam
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if opts.Driver != "" {
		cfg.Storage.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.Storage.DSN = opts.DSN
	}
	if opts.Verbose {
		cfg.Ranking.Verbose = true
		_ = logger.SetLevelString("debug")
	}
	season := opts.Season
	if season == "" {
		season = cfg.SeasonID
	}

	log := logger.Get()
	store, err := repository.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN,
		repository.WithQueryTimeout(cfg.Storage.QueryTimeout),
		repository.WithMaxOpenConns(cfg.Storage.MaxOpenConns),
		repository.WithDebugSQL(cfg.Storage.DebugSQL),
		repository.WithLogger(log.Named("store")),
	)
	if err != nil {
		return fmt.Errorf("%w: open %s store: %w", app.ErrConfiguration, cfg.Storage.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	if opts.ImportFile != "" {
		data, err := readSeason(opts.ImportFile)
		if err != nil {
			return err
		}
		if err := store.Import(ctx, data); err != nil {
			return fmt.Errorf("%w: import: %w", app.ErrPersistence, err)
		}
		if season == "" {
			season = data.SeasonID
		}
		log.Info(ctx, "season imported",
			logger.String("season", data.SeasonID),
			logger.Int("teams", len(data.Teams)),
			logger.Int("weeks", len(data.Weeks)),
		)
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("%w: %w", app.ErrConfiguration, err)
	}
	runner := app.NewRunner(store, cfg.Ranking, app.WithRunnerLogger(log), app.WithLocation(loc))
	if opts.Check {
		results, err := runner.Check(ctx, season)
		if err != nil {
			return err
		}
		return writeJSON(out, results)
	}

	res, err := runner.Run(ctx, model.RunRequest{
		SeasonID: season,
		Segment:  model.Segment(opts.Segment),
		DryRun:   opts.DryRun,
		Source:   model.SourceCLI,
	})
	if res != nil && (err == nil || errors.Is(err, app.ErrPersistence)) {
		if werr := writeJSON(out, res); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func readSeason(path string) (*model.SeasonData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", app.ErrConfiguration, err)
	}
	defer f.Close()
	var data model.SeasonData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", app.ErrConfiguration, path, err)
	}
	return &data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
