package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/tlsbench/aggregate"
	"github.com/weiihann/tlsbench/config"
	"github.com/weiihann/tlsbench/driver"
	"github.com/weiihann/tlsbench/registry"
	"github.com/weiihann/tlsbench/report"
)

// outputFlags control aggregation and what is printed after it.
type outputFlags struct {
	allowGaps bool
	format    string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.allowGaps, "allow-gaps", false,
		"Keep algorithms with fewer than 2 samples as rows without statistics")
	cmd.Flags().StringVar(&o.format, "format", "table",
		"Summary printed after aggregation: table, json or none")
}

func newRunCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		sel             selection
		out             outputFlags
		skipMeasurement bool
		runID           string
	)

	cmd := &cobra.Command{
		Use:   "run <host> <repeats> <concurrency> <duration-seconds>",
		Short: "Benchmark every algorithm of a registry and aggregate the results",
		Long: `For each algorithm and repeat, start <concurrency> s_time clients against
<host> on the algorithm's ports for <duration-seconds>, then aggregate all logs
into results/results_<run-id>.csv.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			repeats, err := parseCount("repeats", args[1])
			if err != nil {
				return err
			}

			concurrency, err := parseCount("concurrency", args[2])
			if err != nil {
				return err
			}

			seconds, err := parseCount("duration", args[3])
			if err != nil {
				return err
			}

			if seconds == 0 {
				return errors.New("duration must be at least 1 second")
			}

			cfg, reg, err := sel.resolve(g)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if skipMeasurement {
				if runID == "" {
					return errors.New("--skip-measurement requires --run-id")
				}
			} else {
				if runID == "" {
					runID = driver.NewRunID(time.Now())
				}

				logger.InfoContext(ctx, "starting benchmark",
					slog.String("run_id", runID),
					slog.String("host", args[0]),
					slog.Int("repeats", repeats),
					slog.Int("concurrency", concurrency),
					slog.Int("duration_s", seconds),
					slog.String("registry", reg.Name),
				)

				_, err := driver.New(cfg, reg, logger).Run(ctx, driver.Options{
					Host:        args[0],
					Repeats:     repeats,
					Concurrency: concurrency,
					Duration:    time.Duration(seconds) * time.Second,
					RunID:       runID,
				})
				if err != nil {
					return fmt.Errorf("benchmark: %w", err)
				}
			}

			return aggregateRun(ctx, logger, cfg, reg, out, cmd.OutOrStdout(),
				aggregate.Options{
					RunID:       runID,
					Repeats:     repeats,
					Concurrency: concurrency,
					AllowGaps:   out.allowGaps,
				})
		},
	}

	sel.register(cmd)
	out.register(cmd)

	flags := cmd.Flags()
	flags.BoolVar(&skipMeasurement, "skip-measurement", false,
		"Skip the measurement phase and only aggregate an earlier run")
	flags.StringVar(&runID, "run-id", "",
		"Run identifier (default: current time, required with --skip-measurement)")

	return cmd
}

func newAggregateCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		sel         selection
		out         outputFlags
		runID       string
		repeats     int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the logs of an earlier run",
		Long: `Read data/<alg>_<run-id>_t_<slot>_it_<repeat>.log for every algorithm,
repeat and slot and write results/results_<run-id>.csv. --repeats and
--concurrency must match the values used when measuring.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID == "" {
				return errors.New("--run-id is required")
			}

			if repeats < 0 || concurrency < 0 {
				return errors.New("--repeats and --concurrency must not be negative")
			}

			cfg, reg, err := sel.resolve(g)
			if err != nil {
				return err
			}

			return aggregateRun(cmd.Context(), logger, cfg, reg, out, cmd.OutOrStdout(),
				aggregate.Options{
					RunID:       runID,
					Repeats:     repeats,
					Concurrency: concurrency,
					AllowGaps:   out.allowGaps,
				})
		},
	}

	sel.register(cmd)
	out.register(cmd)

	flags := cmd.Flags()
	flags.StringVar(&runID, "run-id", "", "Run identifier to aggregate")
	flags.IntVar(&repeats, "repeats", 1, "Repeat count used when measuring")
	flags.IntVar(&concurrency, "concurrency", 1, "Concurrency level used when measuring")

	return cmd
}

func aggregateRun(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.Config,
	reg *registry.Registry,
	out outputFlags,
	w io.Writer,
	opts aggregate.Options,
) error {
	switch out.format {
	case "table", "json", "none":
	default:
		return fmt.Errorf("unknown format %q (expected table, json or none)", out.format)
	}

	rows, err := aggregate.New(cfg, reg, logger).Aggregate(ctx, opts)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	path := cfg.ResultsPath(opts.RunID)
	if err := report.WriteResults(path, rows); err != nil {
		return err
	}

	logger.InfoContext(ctx, "results written",
		slog.String("path", path),
		slog.Int("algorithms", len(rows)),
	)

	switch out.format {
	case "table":
		if len(rows) == 0 {
			return nil
		}

		if err := report.Generate(w, rows); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	case "json":
		if err := report.GenerateJSON(w, rows); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	}

	return nil
}
