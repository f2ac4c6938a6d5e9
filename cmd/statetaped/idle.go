package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/localtrace/statetape/pkg/cli"
	"github.com/localtrace/statetape/pkg/config"
)

var idleStepFlags struct {
	runID      string
	budgetMs   int64
	checkpoint bool
}

var idleCmd = &cobra.Command{
	Use:   "idle",
	Short: "Idle-time derivation commands",
}

var idleStepCmd = &cobra.Command{
	Use:   "step",
	Short: "Run one bounded idle-processor sweep and exit",
	Long: `Run one bounded idle-processor sweep over a single capture run and
exit, printing the resulting stats as JSON. Intended for manual or
cron-driven invocation outside the "run" daemon loop.`,
	RunE: runIdleStep,
}

func init() {
	rootCmd.AddCommand(idleCmd)
	idleCmd.AddCommand(idleStepCmd)

	idleStepCmd.Flags().StringVar(&idleStepFlags.runID, "run-id", "", "capture run id to sweep (required)")
	idleStepCmd.Flags().Int64Var(&idleStepFlags.budgetMs, "budget-ms", 0, "wall-clock budget for this step in milliseconds (0 uses the configured max_seconds_per_run)")
	idleStepCmd.Flags().BoolVar(&idleStepFlags.checkpoint, "persist-checkpoint", true, "persist the resumption checkpoint after this step")
	idleStepCmd.MarkFlagRequired("run-id")
}

func runIdleStep(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	level := slog.LevelInfo
	if !verbose {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("component", "idle-step")

	comps, err := wireComponents(cfg, logger)
	if err != nil {
		return cli.NewCommandError("idle step", err)
	}
	defer comps.Close()

	proc := comps.idleProcessor(idleStepFlags.runID)
	ctx := cmd.Context()
	_, stats, err := proc.ProcessStep(ctx, nil, idleStepFlags.budgetMs, idleStepFlags.checkpoint)
	if err != nil {
		return cli.NewCommandError("idle step", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
