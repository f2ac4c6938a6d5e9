package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/localtrace/statetape/pkg/cli"
	"github.com/localtrace/statetape/pkg/config"
	"github.com/localtrace/statetape/pkg/jepa"
	"github.com/localtrace/statetape/pkg/telemetry/logging"
	"github.com/localtrace/statetape/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the state-tape daemon",
	Long: `Start the state-tape daemon.

The daemon fires an idle-processing sweep on a cron schedule across every
discovered capture run, builds state-tape spans from the structured state
that sweep derives, and serves a loopback metrics endpoint. It holds no
listening RPC/query port: retrieval happens through the "retrieve"
subcommand against the same on-disk state.

Examples:
  # Start with default config
  statetaped run

  # Start with custom config
  statetaped run --config /etc/statetaped/config.yaml

  # Validate config without starting
  statetaped run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()
	config.ApplyDefaults(cfg)

	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	appLogger, err := logging.New(logging.Config{
		Level:      cfg.Telemetry.Logging.Level,
		Format:     cfg.Telemetry.Logging.Format,
		AddSource:  cfg.Telemetry.Logging.AddSource,
		RedactPII:  cfg.Telemetry.Logging.RedactSensitiveText,
		BufferSize: cfg.Telemetry.Logging.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer appLogger.Shutdown()

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	logger := appLogger.Slog().With("component", "statetaped")
	logger.Info("loading configuration", "path", cfgFile)

	comps, err := wireComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("wire components: %w", err)
	}
	defer comps.Close()
	logger.Info("components wired", "data_dir", cfg.DataDir)

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *http.Server
	if collector.Enabled() {
		mux := http.NewServeMux()
		mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
		metricsServer = &http.Server{Addr: cfg.Telemetry.Metrics.ListenAddress, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "address", cfg.Telemetry.Metrics.ListenAddress, "path", cfg.Telemetry.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	var retentionScheduler *jepa.Scheduler
	if cfg.Processing.StateLayer.Training.Retention.Enabled {
		retentionCfg := jepa.RetentionConfig{
			Enabled:           true,
			MaxActiveModels:   cfg.Processing.StateLayer.Training.Retention.MaxActiveModels,
			ArchiveUnapproved: cfg.Processing.StateLayer.Training.Retention.ArchiveUnapproved,
			Schedule:          cfg.Processing.StateLayer.Training.Retention.Schedule,
		}
		archiver := jepa.NewArchiver(comps.jepaStore, retentionCfg)
		retentionScheduler = jepa.NewScheduler(archiver)
		if err := retentionScheduler.Start(ctx); err != nil {
			logger.Warn("failed to start model retention scheduler", "error", err)
			retentionScheduler = nil
		} else {
			defer retentionScheduler.Stop()
		}
	}

	approvalsWatcher, err := jepa.NewApprovalsWatcher(comps.jepaStore)
	if err != nil {
		logger.Warn("failed to start approvals watcher", "error", err)
	} else {
		go approvalsWatcher.Run(ctx, func() {
			logger.Info("approvals changed, the encoder loaded at startup stays in use until restart")
		})
	}

	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.Processing.Idle.Schedule, func() {
		runIdleSweep(ctx, comps, logger)
	})
	if err != nil {
		return fmt.Errorf("invalid idle sweep schedule %q: %w", cfg.Processing.Idle.Schedule, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	logger.Info("daemon started", "idle_schedule", cfg.Processing.Idle.Schedule)
	fmt.Println("statetaped running, press Ctrl+C to stop")

	sig := <-cli.WaitForShutdown()
	fmt.Printf("\nreceived signal %s, shutting down\n", sig)
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	return nil
}

// runIdleSweep runs the idle processor for every run id currently
// present in the metadata store, repeating bounded steps (without
// persisting a checkpoint) until each run is done or ctx is canceled.
func runIdleSweep(ctx context.Context, comps *components, logger *slog.Logger) {
	runIDs, err := discoverRunIDs(comps.metadataStore)
	if err != nil {
		logger.Error("discover run ids failed", "error", err)
		return
	}
	if len(runIDs) == 0 {
		return
	}

	for _, runID := range runIDs {
		proc := comps.idleProcessor(runID)
		stats, err := proc.Process(ctx, func() bool { return ctx.Err() != nil })
		if err != nil {
			logger.Warn("idle sweep failed", "run_id", runID, "error", err)
			continue
		}
		logger.Info("idle sweep complete", "run_id", runID, "processed", stats.Processed,
			"state_spans", stats.StateSpans, "errors", stats.Errors)
	}
}
