package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/api"
	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/internal/telemetry"
	"github.com/abcfood/fingerprint-bridge/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and background scheduler",
	Long: `Run the HTTP API plus the background jobs: staggered attendance cache
refreshes, daily device backups, and backup retention cleanup.

The process stops on SIGINT or SIGTERM after a graceful drain.

Examples:
  # Run with settings from the environment / .env
  fpctl serve

  # Debug logging for one run
  LOG_LEVEL=DEBUG fpctl serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app.Version = Version
	a, err := app.New(ctx, settings)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	logger.Info("Starting fingerprint bridge",
		"version", Version,
		"environment", settings.Environment,
		"devices", len(a.Pool.Keys()),
	)

	var metrics *telemetry.Metrics
	if settings.MetricsEnabled {
		metrics = telemetry.New(telemetry.Source{
			DevicesConfigured: func() int { return len(a.Pool.Keys()) },
			SchedulerRunning:  a.Scheduler.Running,
			CacheCounts: func() map[string]int {
				counts := make(map[string]int)
				for key, st := range a.Cache.AllStatuses() {
					counts[key] = st.Count
				}
				return counts
			},
		})
		a.Scheduler.SetRecorder(metrics)
		go func() {
			if err := metrics.Serve(ctx, settings.APIHost, settings.MetricsPort); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	if err := a.StartScheduler(); err != nil {
		return err
	}

	server := api.NewServer(settings, a.Service, a.Scheduler, metrics, Version)
	return server.Start(ctx)
}
