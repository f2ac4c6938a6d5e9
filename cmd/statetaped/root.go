package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "statetaped",
	Short: "Idle-time derivation and state-tape engine",
	Long: `statetaped turns locally captured screen evidence into a privacy-governed,
queryable record of what happened on screen, without ever leaving the machine.

During idle windows it extracts text and structured screen state from
captured frames, builds a state tape of embeddings over that state, and
answers retrieval queries against it with cited evidence.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
