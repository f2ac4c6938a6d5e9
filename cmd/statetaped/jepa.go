package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/localtrace/statetape/pkg/cli"
	"github.com/localtrace/statetape/pkg/config"
	"github.com/localtrace/statetape/pkg/jepa"
)

var jepaApproveFlags struct {
	modelVersion  string
	trainingRunID string
}

var jepaListFlags struct {
	includeArchived bool
	format          string
}

var jepaCmd = &cobra.Command{
	Use:   "jepa",
	Short: "Trained encoder model lifecycle commands",
}

var jepaApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve a trained model version for use by idle sweeps",
	Long: `Verify a trained model's signature and evaluation gate, then
record it in the approvals ledger. Commands started after this call
(such as "statetaped idle step") load the latest approved encoder when
they start. A running "statetaped run" daemon logs the approvals change
but keeps the encoder it loaded at startup until it is restarted.`,
	RunE: runJepaApprove,
}

var jepaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trained model versions and their approval status",
	RunE:  runJepaList,
}

func init() {
	rootCmd.AddCommand(jepaCmd)
	jepaCmd.AddCommand(jepaApproveCmd)
	jepaCmd.AddCommand(jepaListCmd)

	jepaApproveCmd.Flags().StringVar(&jepaApproveFlags.modelVersion, "model-version", "", "model version to approve (required)")
	jepaApproveCmd.Flags().StringVar(&jepaApproveFlags.trainingRunID, "training-run-id", "", "training run id that produced the model (required)")
	jepaApproveCmd.MarkFlagRequired("model-version")
	jepaApproveCmd.MarkFlagRequired("training-run-id")

	jepaListCmd.Flags().BoolVar(&jepaListFlags.includeArchived, "include-archived", false, "also list archived model versions")
	jepaListCmd.Flags().StringVar(&jepaListFlags.format, "format", "json", "output format: text, json")
}

func openJepaStore() (*jepa.Store, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()
	config.ApplyDefaults(cfg)

	store := jepa.NewStore(cfg.DataDir)
	store.SetArchiveDir(cfg.Processing.StateLayer.Training.Retention.ArchiveDir)
	return store, nil
}

func runJepaApprove(cmd *cobra.Command, args []string) error {
	store, err := openJepaStore()
	if err != nil {
		return err
	}

	signature, err := store.ApproveModel(jepaApproveFlags.modelVersion, jepaApproveFlags.trainingRunID, time.Now().UnixMilli())
	if err != nil {
		return cli.NewCommandError("jepa approve", err)
	}

	fmt.Printf("approved model %s (training run %s), signature %s\n",
		jepaApproveFlags.modelVersion, jepaApproveFlags.trainingRunID, signature)
	return nil
}

func runJepaList(cmd *cobra.Command, args []string) error {
	store, err := openJepaStore()
	if err != nil {
		return err
	}

	summaries, err := store.ListModels(jepaListFlags.includeArchived)
	if err != nil {
		return cli.NewCommandError("jepa list", err)
	}

	if cli.OutputFormat(jepaListFlags.format) == cli.FormatText {
		for _, s := range summaries {
			fmt.Printf("%s\ttraining_run=%s\tapproved=%v\tactive=%v\t%s\n",
				s.ModelVersion, s.TrainingRunID, s.Approved, s.Active, s.Path)
		}
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
