// Package driver runs timed s_time clients against the servers of a
// registry and records one log file per algorithm, repeat and slot.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/tlsbench/config"
	"github.com/weiihann/tlsbench/harness"
	"github.com/weiihann/tlsbench/registry"
)

// TimeoutFactor bounds each client: a run of duration T is killed if it has
// not exited after TimeoutFactor*T.
const TimeoutFactor = 2

// runIDLayout is day-month-year_hour-minute-second.
const runIDLayout = "02-01-2006_15-04-05"

// NewRunID returns the identifier that namespaces every file of one
// benchmark invocation.
func NewRunID(t time.Time) string {
	return t.Format(runIDLayout)
}

// Options are the parameters of one benchmark invocation.
type Options struct {
	Host        string
	Repeats     int
	Concurrency int
	Duration    time.Duration
	RunID       string
}

func (o Options) validate() error {
	if o.Host == "" {
		return errors.New("host must not be empty")
	}

	if o.Repeats < 0 || o.Concurrency < 0 {
		return fmt.Errorf("repeats (%d) and concurrency (%d) must not be negative",
			o.Repeats, o.Concurrency)
	}

	if o.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", o.Duration)
	}

	if o.RunID == "" {
		return errors.New("run id must not be empty")
	}

	return nil
}

// BatchReport describes one repeat of one algorithm.
type BatchReport struct {
	Algorithm string
	Repeat    int
	// TimedOut is set when a client missed its deadline.
	TimedOut bool
	// Killed lists the slots terminated after the timeout.
	Killed []int
	// Failed lists the slots that exited with an error.
	Failed []int
}

// Summary collects the batch reports of a run in execution order.
type Summary struct {
	RunID   string
	Batches []BatchReport
}

// TimedOut returns the number of batches that hit a timeout.
func (s *Summary) TimedOut() int {
	n := 0

	for _, b := range s.Batches {
		if b.TimedOut {
			n++
		}
	}

	return n
}

// Driver launches the client side of a benchmark.
type Driver struct {
	Config   config.Config
	Registry *registry.Registry
	Logger   *slog.Logger
}

// New creates a Driver for reg.
func New(cfg config.Config, reg *registry.Registry, logger *slog.Logger) *Driver {
	return &Driver{
		Config:   cfg,
		Registry: reg,
		Logger: logger.With(
			slog.String("registry", reg.Name),
			slog.String("suite", string(reg.Suite)),
		),
	}
}

// Run benchmarks every algorithm in registry order. Repeats of an
// algorithm run strictly one after another; the clients of a repeat run
// concurrently, one per slot. A timeout only affects its own repeat. A
// client that cannot be started aborts the run.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	tool, err := d.Config.Tool()
	if err != nil {
		return nil, err
	}

	if err := config.EnsureDirs(d.Config.DataDir); err != nil {
		return nil, err
	}

	summary := &Summary{RunID: opts.RunID}

	for _, entry := range d.Registry.Entries {
		for repeat := 0; repeat < opts.Repeats; repeat++ {
			report, err := d.runBatch(ctx, tool, entry, repeat, opts)
			if err != nil {
				return summary, err
			}

			summary.Batches = append(summary.Batches, report)
		}

		d.Logger.InfoContext(ctx, "finished algorithm",
			slog.String("algorithm", entry.Name),
		)
	}

	d.Logger.InfoContext(ctx, "finished benchmarking",
		slog.String("run_id", opts.RunID),
		slog.Int("batches", len(summary.Batches)),
		slog.Int("timed_out", summary.TimedOut()),
	)

	return summary, nil
}

func (d *Driver) runBatch(
	ctx context.Context,
	tool harness.Tool,
	entry registry.Entry,
	repeat int,
	opts Options,
) (BatchReport, error) {
	report := BatchReport{Algorithm: entry.Name, Repeat: repeat}

	procs := make([]*harness.Process, 0, opts.Concurrency)

	for slot := 0; slot < opts.Concurrency; slot++ {
		spec := d.Config.ClientSpec(
			d.Registry.Suite, entry.Name, opts.Host, entry.Port(slot), opts.Duration,
		)
		logPath := d.Config.ClientLogPath(entry.Name, opts.RunID, slot, repeat)

		proc, err := harness.Start(ctx, tool.Client(spec), logPath)
		if err != nil {
			killAll(procs)

			return report, fmt.Errorf("start client %s slot %d repeat %d: %w",
				entry.Name, slot, repeat, err)
		}

		procs = append(procs, proc)
	}

	timeout := TimeoutFactor * opts.Duration

	for slot, proc := range procs {
		out := proc.Await(timeout)

		if out.TimedOut() {
			report.TimedOut = true
			d.Logger.WarnContext(ctx, "timeout, killing processes",
				slog.String("algorithm", entry.Name),
				slog.Int("repeat", repeat),
				slog.Int("slot", slot),
				slog.Int("port", entry.Port(slot)),
				slog.Duration("timeout", out.Timeout),
				slog.Any("args", proc.Command.Args),
			)

			report.Killed = killAll(procs)

			break
		}

		if out.Failed() {
			report.Failed = append(report.Failed, slot)
			d.Logger.WarnContext(ctx, "client exited with error",
				slog.String("algorithm", entry.Name),
				slog.Int("repeat", repeat),
				slog.Int("slot", slot),
				slog.String("log", proc.LogPath),
				slog.String("error", out.Err.Error()),
			)
		}
	}

	if err := ctx.Err(); err != nil {
		killAll(procs)

		return report, err
	}

	return report, nil
}

// killAll kills the processes that have not exited yet and returns their
// slots. Processes that already finished are left alone.
func killAll(procs []*harness.Process) []int {
	var killed []int

	for slot, p := range procs {
		if p.Exited() {
			continue
		}

		killed = append(killed, slot)
		_ = p.Kill()
	}

	return killed
}
