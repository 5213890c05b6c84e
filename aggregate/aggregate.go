// Package aggregate reads back the client logs of a run, extracts the
// connection rate reported by s_time and summarises it per algorithm.
package aggregate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"

	"github.com/weiihann/tlsbench/config"
	"github.com/weiihann/tlsbench/registry"
)

// samplePattern matches the s_time summary line, e.g.
// "1234 connections in 10.00s; 123.40 connections/user sec, bytes read 0".
var samplePattern = regexp.MustCompile(`\d+ connections in .*; (\d+\.\d+) connections/user`)

// maxLineSize bounds how much of one line is kept for matching. s_time
// prints a progress character per connection without a newline, so a long
// run can emit a line of any length; only its tail is kept.
const maxLineSize = 1 << 20

// Extract returns every connection rate found in r, in order of
// occurrence. Input is consumed line by line.
func Extract(r io.Reader) ([]float64, error) {
	var (
		samples []float64
		line    []byte
	)

	reader := bufio.NewReaderSize(r, 64*1024)

	for {
		chunk, err := reader.ReadSlice('\n')
		line = append(line, chunk...)

		if len(line) > maxLineSize {
			line = append(line[:0], line[len(line)-maxLineSize:]...)
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if len(line) > 0 {
			found, perr := matchSamples(line)
			samples = append(samples, found...)

			if perr != nil {
				return samples, perr
			}

			line = line[:0]
		}

		if errors.Is(err, io.EOF) {
			return samples, nil
		}

		if err != nil {
			return samples, fmt.Errorf("read: %w", err)
		}
	}
}

func matchSamples(line []byte) ([]float64, error) {
	var samples []float64

	for _, m := range samplePattern.FindAllSubmatch(line, -1) {
		v, err := strconv.ParseFloat(string(m[1]), 64)
		if err != nil {
			return samples, fmt.Errorf("parse sample %q: %w", m[1], err)
		}

		samples = append(samples, v)
	}

	return samples, nil
}

// ExtractFile is Extract over the contents of a file.
func ExtractFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, err := Extract(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return samples, nil
}

// Row is the aggregated result of one algorithm. Stats is nil when gaps
// are allowed and there were too few samples.
type Row struct {
	Algorithm string
	Samples   []float64
	Expected  int
	Stats     *Stats
}

// Missing returns how many of the expected samples were not found.
func (r Row) Missing() int {
	return r.Expected - len(r.Samples)
}

// Options select the files of one run. Repeats and Concurrency must match
// the values used when measuring.
type Options struct {
	RunID       string
	Repeats     int
	Concurrency int
	// AllowGaps keeps algorithms with fewer than two samples as rows
	// without statistics instead of failing.
	AllowGaps bool
}

// Aggregator summarises the logs of one registry.
type Aggregator struct {
	Config   config.Config
	Registry *registry.Registry
	Logger   *slog.Logger
}

// New creates an Aggregator for reg.
func New(cfg config.Config, reg *registry.Registry, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		Config:   cfg,
		Registry: reg,
		Logger:   logger.With(slog.String("registry", reg.Name)),
	}
}

// Aggregate returns one row per algorithm in registry order. A log file
// that does not exist is an error, as is an algorithm with fewer than two
// samples unless opts.AllowGaps is set.
func (a *Aggregator) Aggregate(ctx context.Context, opts Options) ([]Row, error) {
	if opts.RunID == "" {
		return nil, errors.New("run id must not be empty")
	}

	rows := make([]Row, 0, len(a.Registry.Entries))

	for _, entry := range a.Registry.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a.Logger.InfoContext(ctx, "processing", slog.String("algorithm", entry.Name))

		samples, err := a.Samples(entry.Name, opts)
		if err != nil {
			return nil, err
		}

		row := Row{
			Algorithm: entry.Name,
			Samples:   samples,
			Expected:  max(opts.Repeats, 0) * max(opts.Concurrency, 0),
		}

		a.Logger.InfoContext(ctx, "missing data points",
			slog.String("algorithm", entry.Name),
			slog.Int("missing", row.Missing()),
			slog.Int("found", len(samples)),
		)

		stats, err := Compute(samples)
		switch {
		case err == nil:
			row.Stats = &stats
		case errors.Is(err, ErrInsufficientSamples) && opts.AllowGaps:
			a.Logger.WarnContext(ctx, "no statistics for algorithm",
				slog.String("algorithm", entry.Name),
				slog.String("error", err.Error()),
			)
		default:
			return nil, fmt.Errorf("algorithm %s: %w", entry.Name, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// Samples reads the logs of one algorithm repeat-major, slot-minor and
// returns the samples in file then occurrence order.
func (a *Aggregator) Samples(alg string, opts Options) ([]float64, error) {
	var samples []float64

	for repeat := 0; repeat < opts.Repeats; repeat++ {
		for slot := 0; slot < opts.Concurrency; slot++ {
			path := a.Config.ClientLogPath(alg, opts.RunID, slot, repeat)

			found, err := ExtractFile(path)
			if err != nil {
				return nil, fmt.Errorf("read log of %s slot %d repeat %d: %w",
					alg, slot, repeat, err)
			}

			samples = append(samples, found...)
		}
	}

	return samples, nil
}
