package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/tlsbench/driver"
	"github.com/weiihann/tlsbench/simulate"
)

func newSimulateCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		sel          selection
		runID        string
		repeats      int
		concurrency  int
		seed         int64
		mean         float64
		spread       float64
		distribution string
		dropRate     float64
		duration     int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write synthetic s_time logs for a dry run of aggregation",
		Long: `Generate deterministic s_time transcripts in the client log layout, as if
a run had been measured. Use "aggregate" with the same --run-id, --repeats and
--concurrency to exercise the rest of the pipeline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if repeats < 0 || concurrency < 0 {
				return fmt.Errorf("--repeats and --concurrency must not be negative")
			}

			cfg, reg, err := sel.resolve(g)
			if err != nil {
				return err
			}

			if runID == "" {
				runID = driver.NewRunID(time.Now())
			}

			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			gen := simulate.NewGenerator(simulate.Config{
				Seed:         seed,
				Mean:         mean,
				Spread:       spread,
				Distribution: distribution,
				DropRate:     dropRate,
				Duration:     time.Duration(duration) * time.Second,
			})

			summary, err := gen.Generate(cfg, reg, runID, repeats, concurrency)
			if err != nil {
				return fmt.Errorf("simulate: %w", err)
			}

			logger.InfoContext(cmd.Context(), "synthetic logs written",
				slog.String("run_id", runID),
				slog.String("registry", reg.Name),
				slog.Int64("seed", seed),
				slog.Int("files", summary.Files),
				slog.Int("samples", summary.Samples),
				slog.Int("dropped", summary.Dropped),
			)

			fmt.Fprintln(cmd.OutOrStdout(), runID)

			return nil
		},
	}

	sel.register(cmd)

	flags := cmd.Flags()
	flags.StringVar(&runID, "run-id", "", "Run identifier (default: current time)")
	flags.IntVar(&repeats, "repeats", 1, "Number of repeats")
	flags.IntVar(&concurrency, "concurrency", 1, "Concurrency level")
	flags.Int64Var(&seed, "seed", 0, "Random seed (0 = use current time)")
	flags.Float64Var(&mean, "mean", 500, "Mean connections/user rate")
	flags.Float64Var(&spread, "spread", 25, "Spread of the rate distribution")
	flags.StringVar(&distribution, "distribution", "normal",
		"Rate distribution: normal, uniform")
	flags.Float64Var(&dropRate, "drop-rate", 0,
		"Fraction of logs left empty, as after a timeout")
	flags.IntVar(&duration, "duration", 10, "Simulated s_time duration in seconds")

	return cmd
}
