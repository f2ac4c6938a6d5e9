package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/localtrace/statetape/pkg/cli"
	"github.com/localtrace/statetape/pkg/config"
	"github.com/localtrace/statetape/pkg/model"
)

var tapeBuildFlags struct {
	sessionID string
	statesIn  string
	persist   bool
}

var tapeCmd = &cobra.Command{
	Use:   "tape",
	Short: "State-tape builder commands",
}

var tapeBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build state-tape spans from a JSON array of structured states",
	Long: `Run the State Tape Builder over a fixed array of DerivedSSTState
records read from a JSON file, printing the resulting spans and edges.
Intended for offline debugging and fixture-driven development, not as
the normal path into the tape: during a sweep the idle processor calls
the builder directly on states it just derived.

The input file must contain a JSON array of model.DerivedSSTState
records.`,
	RunE: runTapeBuild,
}

func init() {
	rootCmd.AddCommand(tapeCmd)
	tapeCmd.AddCommand(tapeBuildCmd)

	tapeBuildCmd.Flags().StringVar(&tapeBuildFlags.sessionID, "session-id", "", "session id to group these states under (required)")
	tapeBuildCmd.Flags().StringVar(&tapeBuildFlags.statesIn, "states", "", "path to a JSON file containing a []model.DerivedSSTState array (required)")
	tapeBuildCmd.Flags().BoolVar(&tapeBuildFlags.persist, "persist", false, "insert the built spans/edges into the state-tape store instead of only printing them")
	tapeBuildCmd.MarkFlagRequired("session-id")
	tapeBuildCmd.MarkFlagRequired("states")
}

func runTapeBuild(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	raw, err := os.ReadFile(tapeBuildFlags.statesIn)
	if err != nil {
		return cli.NewCommandError("tape build", fmt.Errorf("read states file: %w", err))
	}
	var states []model.DerivedSSTState
	if err := json.Unmarshal(raw, &states); err != nil {
		return cli.NewCommandError("tape build", fmt.Errorf("decode states file: %w", err))
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "tape-build")
	comps, err := wireComponents(cfg, logger)
	if err != nil {
		return cli.NewCommandError("tape build", err)
	}
	defer comps.Close()

	result, err := comps.builder.Process(tapeBuildFlags.sessionID, states)
	if err != nil {
		return cli.NewCommandError("tape build", err)
	}

	if tapeBuildFlags.persist {
		ctx := cmd.Context()
		if err := comps.stateStore.InsertBatch(ctx, result.Spans, result.Edges); err != nil {
			return cli.NewCommandError("tape build", fmt.Errorf("persist spans/edges: %w", err))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
