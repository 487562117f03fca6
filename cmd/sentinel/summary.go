package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"RiskSentinel/internal/decision"
	"RiskSentinel/internal/notifier"
	"RiskSentinel/internal/pipeline"
)

func summaryCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the summary of the current decided artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			store, err := openArtifacts(ctx, cfg)
			if err != nil {
				return fmt.Errorf("init artifact store: %w", err)
			}
			decided, err := pipeline.LoadDecisions(ctx, store)
			if err != nil {
				return err
			}
			fmt.Println(notifier.FormatSummary(decision.Summarize(decided), cfg.FX.BaseCurrency))
			return nil
		},
	}
}
