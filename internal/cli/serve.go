package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/core/config"
	"github.com/pinwater/pinwatch/internal/core/worker"
	"github.com/pinwater/pinwatch/internal/infra/fetcher"
	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/check"
	"github.com/pinwater/pinwatch/internal/scheduling/fetch"
	"github.com/pinwater/pinwatch/internal/scheduling/health"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run health checks and fetch batches on an interval",
	Long: `Run a fast health check followed by one fetch batch every server.interval,
and expose /health, /health/sources and /metrics on server.port. Changes to
the interval, batch size, fast mode and pacing in the config file are picked
up between cycles.`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func settingsFrom(c *config.AppConfig) (worker.Settings, error) {
	start, err := c.Fetch.StartDate()
	if err != nil {
		return worker.Settings{}, err
	}
	return worker.Settings{
		Interval:  c.Server.Interval,
		BatchSize: c.Server.BatchSize,
		Fast:      c.Server.Fast,
		Start:     start,
		Pacing:    c.Pacing,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) {
	settings, err := settingsFrom(cfg)
	if err != nil {
		slog.Error("Invalid fetch start date", "error", err)
		os.Exit(1)
	}
	table, err := fetcher.NewTable(cfg.Fetch.Config)
	if err != nil {
		slog.Error("Invalid fetch endpoints", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store := mustOpenStore(ctx)
	defer func() { _ = store.Close() }()

	prober := probe.New(cfg.Probe.Config)
	defer prober.Close()

	pacer := throttle.NewPacer(cfg.Pacing)
	policy := backoff.Default()

	monitor := health.NewMonitor()
	cycle := worker.NewCycle(
		store,
		check.NewRunner(prober, policy, pacer, cfg.Probe.WQPTemplate),
		fetch.NewRunner(cfg.Batch.Sentinels, table, policy, pacer),
		pacer,
		monitor,
		settings,
	)

	server := health.NewServer(monitor, cfg.Server.Port).WithStoreCheck(store.Ping)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server failed", "error", err)
			cancel()
		}
	}()

	if cfgLoaded {
		go func() {
			err := config.Watch(ctx, cfgPath, func(next *config.AppConfig) {
				s, err := settingsFrom(next)
				if err != nil {
					slog.Error("Ignoring reloaded config", "error", err)
					return
				}
				cycle.Reload(s)
			})
			if err != nil {
				slog.Warn("Config watch disabled", "error", err)
			}
		}()
	}

	slog.Info("pinwatch serving",
		"port", cfg.Server.Port,
		"interval", settings.Interval,
		"batch_size", settings.BatchSize,
		"backend", cfg.Store.Backend,
	)

	// Blocks until a signal cancels ctx.
	cycle.Start(ctx)
	slog.Info("Received signal, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("pinwatch stopped gracefully")
}
