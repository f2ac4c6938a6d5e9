package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/localtrace/statetape/pkg/cli"
	"github.com/localtrace/statetape/pkg/config"
	"github.com/localtrace/statetape/pkg/evidencecompiler"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/policygate"
	"github.com/localtrace/statetape/pkg/retrieval"
)

var retrieveQueryFlags struct {
	text      string
	sessionID string
	app       string
	start     string
	end       string
	format    string
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Query the state tape",
}

var retrieveQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a retrieval query and print the evidence bundle",
	Long: `Run a retrieval query against the state tape and print an
evidence-grounded QueryEvidenceBundle: matching state spans, their
evidence references, and policy-gated text snippets. No claim is made
outside what a cited evidence reference supports.`,
	RunE: runRetrieveQuery,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.AddCommand(retrieveQueryCmd)

	retrieveQueryCmd.Flags().StringVar(&retrieveQueryFlags.text, "text", "", "query text (required)")
	retrieveQueryCmd.Flags().StringVar(&retrieveQueryFlags.sessionID, "session-id", "", "restrict to this session id")
	retrieveQueryCmd.Flags().StringVar(&retrieveQueryFlags.app, "app", "", "restrict to this app id")
	retrieveQueryCmd.Flags().StringVar(&retrieveQueryFlags.start, "start", "", "ISO8601 start of the time window")
	retrieveQueryCmd.Flags().StringVar(&retrieveQueryFlags.end, "end", "", "ISO8601 end of the time window")
	retrieveQueryCmd.Flags().StringVar(&retrieveQueryFlags.format, "format", "json", "output format: text, json")
	retrieveQueryCmd.MarkFlagRequired("text")
}

func runRetrieveQuery(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "retrieve-query")
	comps, err := wireComponents(cfg, logger)
	if err != nil {
		return cli.NewCommandError("retrieve query", err)
	}
	defer comps.Close()

	ctx := cmd.Context()
	result := comps.retrievalSvc.Run(ctx, retrieval.Query{
		Text:      retrieveQueryFlags.text,
		SessionID: retrieveQueryFlags.sessionID,
		App:       retrieveQueryFlags.app,
		StartISO:  retrieveQueryFlags.start,
		EndISO:    retrieveQueryFlags.end,
	})

	decision := policygate.Decide(policygate.Config{
		AllowRawMedia:   cfg.Processing.StateLayer.Policy.AllowRawMedia,
		AllowTextExport: cfg.Processing.StateLayer.Policy.AllowTextExport,
		RedactText:      cfg.Processing.StateLayer.Policy.RedactText,
		AppAllowlist:    cfg.Processing.StateLayer.Policy.AppAllowlist,
		AppDenylist:     cfg.Processing.StateLayer.Policy.AppDenylist,
	})

	queryID, err := hashing.HashCanonical(retrieveQueryFlags)
	if err != nil {
		return cli.NewCommandError("retrieve query", fmt.Errorf("compute query id: %w", err))
	}

	ev := cfg.Processing.StateLayer.Evidence
	bundle, err := evidencecompiler.Compile(queryID, result.Hits, decision, comps.lookup, evidencecompiler.Config{
		MaxHits:           ev.MaxHits,
		MaxEvidencePerHit: ev.MaxEvidencePerHit,
		MaxSnippetsPerHit: ev.MaxSnippetsPerHit,
		MaxSnippetChars:   ev.MaxSnippetChars,
	})
	if err != nil {
		return cli.NewCommandError("retrieve query", fmt.Errorf("compile evidence bundle: %w", err))
	}

	formatter := cli.NewFormatter(cli.OutputFormat(retrieveQueryFlags.format))
	return formatter.FormatTo(os.Stdout, bundle)
}
