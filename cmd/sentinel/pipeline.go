package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/calculator"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/pipeline"
)

func pipelineCmd(cfgPath *string) *cobra.Command {
	var from string
	var report bool
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Rerun the pipeline from the last persisted artifact",
		Long: `Run one orchestrator pass over the persisted artifacts.

--from picks the first stage: enrich reads raw.json, calculate reads
enriched.json and decide reads calculated.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := pipeline.ParseStage(from)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), *cfgPath, stage, report)
		},
	}
	cmd.Flags().StringVar(&from, "from", string(pipeline.StageEnrich), "First stage (enrich, calculate, decide)")
	cmd.Flags().BoolVar(&report, "report", false, "Print the calculation report after the run")
	return cmd
}

func runPipeline(ctx context.Context, cfgPath string, stage pipeline.Stage, report bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	store, err := openArtifacts(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init artifact store: %w", err)
	}
	a, err := newApp(ctx, cfg, store, nil)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	res, err := a.orch.RunFrom(ctx, stage)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	fmt.Printf("run %s: %d records from %s, %d accepted, %d declined, %d degraded\n",
		res.RunID, res.Records, res.From, res.Accepted, res.Declined, res.Degraded)

	if report {
		calc, err := artifact.LoadCollection[model.CalculatedRecord](ctx, a.artifacts, artifact.KeyCalculated)
		if err != nil {
			log.Printf("[WARN] load calculated artifact for report: %v", err)
			return nil
		}
		fmt.Print(calculator.FormatReport(calc))
	}
	return nil
}
