// Command regsync runs the registry synchronization service: it fetches the
// configured sources on an interval, reconciles them against the registry and
// serves the operational HTTP endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oakmere/regsync/internal/api/rest"
	"github.com/oakmere/regsync/internal/diff"
	apperrors "github.com/oakmere/regsync/internal/domain/errors"
	"github.com/oakmere/regsync/internal/infrastructure/config"
	"github.com/oakmere/regsync/internal/infrastructure/database"
	"github.com/oakmere/regsync/internal/infrastructure/registry"
	"github.com/oakmere/regsync/internal/infrastructure/repository"
	"github.com/oakmere/regsync/internal/metrics"
	"github.com/oakmere/regsync/internal/normalize"
	"github.com/oakmere/regsync/internal/reconcile"
	"github.com/oakmere/regsync/internal/resolve"
	"github.com/oakmere/regsync/internal/worker"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		once       = flag.Bool("once", false, "run a single reconciliation and exit")
		source     = flag.String("source", "all", "restrict the run to one source: fortigate, intune, eset or all")
	)
	flag.Parse()

	if err := run(*configPath, *once, *source); err != nil {
		fmt.Fprintln(os.Stderr, "regsync:", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool, source string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := repository.NewFingerprintRepository(pool)
	audit := repository.NewAuditRepository(pool)
	regClient := registry.NewClient(cfg.Registry, logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(promRegistry)

	prec := resolve.DefaultPrecedence()
	for attr, order := range cfg.Sync.Precedence {
		prec.PerAttribute[attr] = order
	}

	resolver := resolve.NewResolver(prec, logger)
	planner := diff.NewPlanner(cfg.Sync.GracePeriod(), logger)
	engine := reconcile.NewEngine(regClient, store, audit, recorder, logger, cfg.Sync.ApplyConcurrency)

	workers, err := buildWorkers(cfg, source, logger)
	if err != nil {
		return err
	}
	if len(workers) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	runner, err := reconcile.NewRunner(workers, cfg.Sync.Site, resolver, planner, engine,
		store, audit, recorder, logger, cfg.Sync.FetchTimeout)
	if err != nil {
		return err
	}

	if once {
		summary, err := runner.RunOnce(ctx)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("run completed with %d failed operations", summary.Failed)
		}
		return nil
	}

	server := rest.NewServer(cfg.Server, store, audit, promRegistry, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	runAndLog(ctx, runner, logger)
	for {
		select {
		case <-ticker.C:
			runAndLog(ctx, runner, logger)
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	}
}

func runAndLog(ctx context.Context, runner *reconcile.Runner, logger *zap.Logger) {
	if _, err := runner.RunOnce(ctx); err != nil {
		if apperrors.HasCode(err, apperrors.CodeRunLocked) {
			logger.Warn("previous run still in flight, skipping interval")
			return
		}
		logger.Error("run aborted", zap.Error(err))
	}
}

// buildWorkers assembles the enabled source workers, optionally narrowed to a
// single source name for one-off operator runs.
func buildWorkers(cfg *config.Config, source string, logger *zap.Logger) ([]reconcile.SourceWorker, error) {
	enabled := map[string]bool{
		normalize.SourceFortiGate: cfg.Sources.FortiGate.Enabled,
		normalize.SourceIntune:    cfg.Sources.Intune.Enabled,
		normalize.SourceESET:      cfg.Sources.ESET.Enabled,
	}
	if source != "all" {
		on, known := enabled[source]
		if !known {
			return nil, fmt.Errorf("unknown source %q", source)
		}
		if !on {
			return nil, fmt.Errorf("source %q is not enabled", source)
		}
	}

	include := func(name string) bool {
		return enabled[name] && (source == "all" || source == name)
	}

	var workers []reconcile.SourceWorker
	if include(normalize.SourceFortiGate) {
		workers = append(workers, worker.NewFortiGate(cfg.Sources.FortiGate, logger))
	}
	if include(normalize.SourceIntune) {
		workers = append(workers, worker.NewIntune(cfg.Sources.Intune, logger))
	}
	if include(normalize.SourceESET) {
		workers = append(workers, worker.NewESET(cfg.Sources.ESET, logger))
	}
	return workers, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.Environment == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
