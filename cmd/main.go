package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/powerrank/internal/adapters/http/api"
	"github.com/okian/powerrank/internal/adapters/repository"
	"github.com/okian/powerrank/internal/app"
	"github.com/okian/powerrank/internal/config"
	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/logger"
	"github.com/okian/powerrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	scheduledSubmitTimeout = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.Ranking.Verbose {
		_ = logger.SetLevelString("debug")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	svc := app.New(store, cfg.Ranking,
		app.WithLogger(log),
		app.WithQueueSize(cfg.RunQueueSize),
		app.WithRecentRuns(cfg.RecentRuns),
		app.WithRunnerOptions(app.WithLocation(loc)),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop(context.Background())

	sched, err := newScheduler(ctx, cfg, svc, log)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		log.Info(ctx, "run schedule active",
			logger.String("schedule", cfg.Schedule),
			logger.String("season", cfg.SeasonID),
			logger.String("timezone", cfg.Timezone),
		)
	}

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	store, err := repository.Open(ctx, strings.ToLower(cfg.Storage.Driver), cfg.Storage.DSN,
		repository.WithQueryTimeout(cfg.Storage.QueryTimeout),
		repository.WithMaxOpenConns(cfg.Storage.MaxOpenConns),
		repository.WithDebugSQL(cfg.Storage.DebugSQL),
		repository.WithLogger(log.Named("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	return store, nil
}

func newMux(svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)
	return mux
}

// newScheduler returns nil when no schedule is configured.
func newScheduler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) (*cron.Cron, error) {
	if cfg.Schedule == "" {
		return nil, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		sctx, cancel := context.WithTimeout(ctx, scheduledSubmitTimeout)
		defer cancel()
		metrics.RecordScheduledRun()
		st, deduped, err := svc.Submit(sctx, model.RunRequest{
			SeasonID: cfg.SeasonID,
			Source:   model.SourceSchedule,
		})
		if err != nil {
			log.Error(sctx, "scheduled run not queued", logger.Error(err))
			return
		}
		log.Info(sctx, "scheduled run queued",
			logger.String("run_id", st.Request.ID),
			logger.Bool("deduplicated", deduped),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", config.ErrInvalidConfig, cfg.Schedule, err)
	}
	return c, nil
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats()
		}
	}
}
