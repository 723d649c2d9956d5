package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"godfi/adapters/excel"
	"godfi/adapters/sem"
	"godfi/app"
	"godfi/domain/model"
	"godfi/internal"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "godfi",
		Short: "Simulation-based dynamic fit index cutoffs for multi-factor CFA models",
	}

	rootCmd.AddCommand(
		newCutoffsCmd(),
		newRenderCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCutoffsCmd() *cobra.Command {
	var (
		manual    bool
		n         int
		estimator string
		reps      int
		seed      int64
		parallel  int
		xlsxPath  string
		mdPath    string
		repsPath  string
	)

	cmd := &cobra.Command{
		Use:   "cutoffs [model-file]",
		Short: "Derive SRMR/RMSEA/CFI cutoffs calibrated to one model",
		Long: `Derive dynamic fit index cutoffs for a multi-factor CFA model.

The model file is either a fitted-model JSON artifact (default) or, with
--manual, a standardized model syntax file plus an explicit --n:

  godfi cutoffs fitted.json
  godfi cutoffs model.txt --manual --n 400 --reps 500 --seed 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read model file: %w", err)
			}

			input := model.Input{Manual: manual, N: n}
			if manual {
				input.Text = string(payload)
			} else {
				input.Fitted = payload
			}

			logger := internal.DefaultLogger
			pipeline := app.NewPipeline(sem.NewDeriver(), sem.NewNormalSampler(), sem.NewMLEstimator(), logger)
			result, err := pipeline.Run(context.Background(), app.Request{
				Input:            input,
				Estimator:        estimator,
				Reps:             reps,
				Seed:             seed,
				Parallel:         parallel,
				KeepReplications: repsPath != "",
			})
			if err != nil {
				return err
			}

			for _, warning := range result.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
			}
			fmt.Print(app.RenderText(result.Run.Table))

			if mdPath != "" {
				if err := os.WriteFile(mdPath, []byte(app.RenderMarkdown(result.Run.Table)), 0o644); err != nil {
					return fmt.Errorf("failed to write markdown report: %w", err)
				}
				logger.Info("wrote markdown report to %s", mdPath)
			}
			if xlsxPath != "" {
				if err := excel.WriteTable(result.Run.Table, xlsxPath); err != nil {
					return err
				}
				logger.Info("wrote workbook to %s", xlsxPath)
			}
			if repsPath != "" {
				payload, err := json.MarshalIndent(result.Levels, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode replications: %w", err)
				}
				if err := os.WriteFile(repsPath, payload, 0o644); err != nil {
					return fmt.Errorf("failed to write replications: %w", err)
				}
				logger.Info("wrote replication dataset to %s", repsPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "treat the model file as manual standardized syntax")
	cmd.Flags().IntVar(&n, "n", 0, "sample size (required with --manual)")
	cmd.Flags().StringVar(&estimator, "estimator", "ML", "estimator name (only ML is supported)")
	cmd.Flags().IntVar(&reps, "reps", app.DefaultReps, "Monte Carlo replications per level")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 derives one from the clock)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "max concurrent replications (0 = all CPUs)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the table to this .xlsx path")
	cmd.Flags().StringVar(&mdPath, "markdown", "", "also write a markdown report to this path")
	cmd.Flags().StringVar(&repsPath, "replications", "", "also write the raw per-level replication dataset (JSON) to this path")

	return cmd
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [fitted-model.json]",
		Short: "Convert a fitted-model artifact to the manual syntax",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read fitted-model file: %w", err)
			}
			text, n, err := model.ToStandardizedSyntax(payload)
			if err != nil {
				return err
			}
			fmt.Print(text)
			fmt.Printf("# sample size: %d\n", int(n))
			return nil
		},
	}
}
