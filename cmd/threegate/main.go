// Command threegate runs the FX three-gate signal engine's daemons,
// grounded on cmd/cryptorun/main.go's cobra root-plus-subcommands shape
// (zerolog console writer, rootCmd.Execute, os.Exit(1) on failure). Unlike
// the teacher's menu-first CLI, this module's Non-goals exclude an
// interactive UX, so every subcommand is a direct, non-interactive daemon
// or one-shot entrypoint (spec SPEC_FULL.md §4.11).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m37335/threegate/internal/analysis"
	"github.com/m37335/threegate/internal/cache"
	"github.com/m37335/threegate/internal/collector"
	"github.com/m37335/threegate/internal/config"
	"github.com/m37335/threegate/internal/httpapi"
	"github.com/m37335/threegate/internal/marketdata"
	"github.com/m37335/threegate/internal/metricsx"
	"github.com/m37335/threegate/internal/patterns"
	"github.com/m37335/threegate/internal/persistence"
	"github.com/m37335/threegate/internal/persistence/postgres"
	"github.com/m37335/threegate/internal/router"
	"github.com/m37335/threegate/internal/threegate"
)

const appName = "threegate"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Event-driven FX three-gate signal engine",
		Long:  "Collects USDJPY price data, evaluates it through a three-gate pattern engine, and persists signals.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config/app.yaml (defaults built-in if unset)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "collector",
			Short: "Run the data-collection daemon standalone (C6)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCollectorOnly(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "router",
			Short: "Run the event router/analysis dispatcher standalone (C8)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRouterOnly(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "manager",
			Short: "Run collector + router + health loop together (spec.md §4.7)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runManager(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the persisted schema (spec.md §6.1/§6.4 plus supplementary tables)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), configPath)
			},
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// deps bundles every composed dependency a daemon subcommand needs, so the
// three run* functions share exactly one wiring path (spec SPEC_FULL.md
// §4.8's single config.Config assembled at increasing precedence).
type deps struct {
	db        *sqlx.DB
	repo      persistence.Repository
	provider  marketdata.Provider
	engine    *threegate.Engine
	metrics   *metricsx.Registry
	cacheConn *cache.Cache
}

func wire(cfg config.Config) (*deps, error) {
	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	repo := persistence.Repository{
		Prices:  postgres.NewPriceRepo(db, cfg.Database.Timeout()),
		Events:  postgres.NewEventRepo(db, cfg.Database.Timeout()),
		Signals: postgres.NewSignalRepo(db, cfg.Database.Timeout()),
		Quality: postgres.NewQualityRepo(db, cfg.Database.Timeout()),
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	metrics := metricsx.NewRegistry(nil)
	cacheConn := cache.New(redisClient)
	cacheConn.SetMetrics(metrics)

	loader := patterns.NewLoader(cfg.ThreeGate.PatternDir)

	engineOpts := []threegate.Option{
		threegate.WithMinSignalInterval(cfg.MinSignalInterval()),
		threegate.WithSignalTimeStore(cacheConn),
		threegate.WithMetrics(metrics),
	}
	if cfg.ThreeGate.DisableRateLimit {
		engineOpts = append(engineOpts, threegate.WithRateLimitDisabled())
	}
	engine := threegate.NewEngine(loader, engineOpts...)

	return &deps{
		db:        db,
		repo:      repo,
		provider:  marketdata.NewYahooProvider(),
		engine:    engine,
		metrics:   metrics,
		cacheConn: cacheConn,
	}, nil
}

func runCollectorOnly(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	d, err := wire(cfg)
	if err != nil {
		return err
	}
	defer d.db.Close()

	c := collector.New(cfg.Collector.Symbol, d.provider, d.repo.Prices, d.repo.Events, d.repo.Quality)
	c.SetMetrics(d.metrics)

	serveOpsSurface(ctx, cfg, d, newDBHealthChecker(d.db), func() map[string]interface{} {
		return map[string]interface{}{"role": "collector", "breaker_state": c.BreakerState()}
	})

	c.Run(ctx, time.Duration(cfg.Collector.IntervalMinutes)*time.Minute)
	return nil
}

func runRouterOnly(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	d, err := wire(cfg)
	if err != nil {
		return err
	}
	defer d.db.Close()

	svc := analysis.New(d.engine, d.repo.Prices, d.repo.Signals, d.repo.Events)
	svc.SetMetrics(d.metrics)
	svc.SetSnapshotCache(d.cacheConn)

	dbChecker := newDBHealthChecker(d.db)
	r := router.New(svc, dbChecker)

	serveOpsSurface(ctx, cfg, d, dbChecker, func() map[string]interface{} {
		stats := svc.Stats()
		return map[string]interface{}{
			"role":             "router",
			"events_processed": stats.TotalEventsProcessed,
			"signals_emitted":  stats.TotalSignalsGenerated,
		}
	})

	r.Run(ctx)
	return nil
}

// runManager composes collector, router, and the ops surface together in
// one process, matching spec.md §4.7's manager daemon type.
func runManager(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	d, err := wire(cfg)
	if err != nil {
		return err
	}
	defer d.db.Close()

	c := collector.New(cfg.Collector.Symbol, d.provider, d.repo.Prices, d.repo.Events, d.repo.Quality)
	c.SetMetrics(d.metrics)

	svc := analysis.New(d.engine, d.repo.Prices, d.repo.Signals, d.repo.Events)
	svc.SetMetrics(d.metrics)
	svc.SetSnapshotCache(d.cacheConn)

	dbChecker := newDBHealthChecker(d.db)
	r := router.New(svc, dbChecker)

	serveOpsSurface(ctx, cfg, d, dbChecker, func() map[string]interface{} {
		stats := svc.Stats()
		return map[string]interface{}{
			"role":             "manager",
			"events_processed": stats.TotalEventsProcessed,
			"signals_emitted":  stats.TotalSignalsGenerated,
			"breaker_state":    c.BreakerState(),
		}
	})

	go c.Run(ctx, time.Duration(cfg.Collector.IntervalMinutes)*time.Minute)
	r.Run(ctx)
	return nil
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	log.Info().Msg("schema migration applied")
	return nil
}

// serveOpsSurface starts the HTTP health/status/metrics server (spec
// SPEC_FULL.md §4.12) in the background and stops it when ctx is
// cancelled.
func serveOpsSurface(ctx context.Context, cfg config.Config, d *deps, checker httpapi.HealthChecker, status httpapi.StatusFunc) {
	srv := httpapi.New(
		httpapi.Config{Addr: cfg.HTTP.Addr, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second},
		d.metrics,
		status,
		checker,
	)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("ops http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ops http server shutdown failed")
		}
	}()
}

// dbHealthChecker satisfies both router.HealthReporter and
// httpapi.HealthChecker (identical shapes), so one instance covers both
// surfaces.
type dbHealthChecker struct {
	db *sqlx.DB
}

func newDBHealthChecker(db *sqlx.DB) *dbHealthChecker {
	return &dbHealthChecker{db: db}
}

func (h *dbHealthChecker) Name() string { return "postgres" }

func (h *dbHealthChecker) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.PingContext(ctx) == nil
}
