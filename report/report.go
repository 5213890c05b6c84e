// Package report writes aggregated benchmark rows to the results file and
// renders them as comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/weiihann/tlsbench/aggregate"
)

// FormatRow renders one results line:
//
//	name; mean; stdev; trimmedMean; ;sample;sample;...
//
// Statistics are rounded to four decimals. A row without statistics keeps
// its fields empty so every algorithm still has a line.
func FormatRow(row aggregate.Row) string {
	var mean, dev, trimmed string

	if row.Stats != nil {
		mean = formatFloat(round4(row.Stats.Mean))
		dev = formatFloat(round4(row.Stats.StdDev))
		trimmed = formatFloat(round4(row.Stats.TrimmedMean))
	}

	samples := make([]string, len(row.Samples))
	for i, s := range row.Samples {
		samples[i] = formatFloat(s)
	}

	return fmt.Sprintf("%s; %s; %s; %s; ;%s",
		row.Algorithm, mean, dev, trimmed, strings.Join(samples, ";"))
}

// WriteCSV writes one line per row, in order, with no header.
func WriteCSV(w io.Writer, rows []aggregate.Row) error {
	for _, row := range rows {
		if _, err := io.WriteString(w, FormatRow(row)+"\n"); err != nil {
			return fmt.Errorf("write row %s: %w", row.Algorithm, err)
		}
	}

	return nil
}

// WriteResults writes the results file at path. The file only appears
// once it is complete.
func WriteResults(path string, rows []aggregate.Row) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp results file: %w", err)
	}

	if err := WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("close results file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("rename results file: %w", err)
	}

	return nil
}

// Generate writes a markdown comparison table for rows.
func Generate(w io.Writer, rows []aggregate.Row) error {
	if len(rows) == 0 {
		return fmt.Errorf("no results to report")
	}

	best := findBest(rows)

	fmt.Fprintln(w, "## Handshake Benchmark Results")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Algorithm | Mean | Std Dev | Trimmed Mean "+
		"| Samples | Missing | Relative |")
	fmt.Fprintln(w, "|-----------|------|---------|--------------"+
		"|---------|---------|----------|")

	for _, r := range rows {
		mean, dev, trimmed, relative := "-", "-", "-", "-"

		if r.Stats != nil {
			mean = formatRate(r.Stats.Mean)
			dev = formatRate(r.Stats.StdDev)
			trimmed = formatRate(r.Stats.TrimmedMean)

			if best > 0 {
				relative = fmt.Sprintf("%.2fx", r.Stats.Mean/best)
			}
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %d | %d | %s |\n",
			r.Algorithm, mean, dev, trimmed,
			len(r.Samples), r.Missing(), relative,
		)
	}

	return nil
}

type jsonRow struct {
	Algorithm   string    `json:"algorithm"`
	Mean        *float64  `json:"mean,omitempty"`
	StdDev      *float64  `json:"stdev,omitempty"`
	TrimmedMean *float64  `json:"trimmed_mean,omitempty"`
	Median      *float64  `json:"median,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Expected    int       `json:"expected"`
	Missing     int       `json:"missing"`
	Samples     []float64 `json:"samples"`
}

// GenerateJSON writes rows as JSON to w.
func GenerateJSON(w io.Writer, rows []aggregate.Row) error {
	out := make([]jsonRow, len(rows))

	for i, r := range rows {
		jr := jsonRow{
			Algorithm: r.Algorithm,
			Expected:  r.Expected,
			Missing:   r.Missing(),
			Samples:   r.Samples,
		}

		if jr.Samples == nil {
			jr.Samples = []float64{}
		}

		if r.Stats != nil {
			jr.Mean = ptr(r.Stats.Mean)
			jr.StdDev = ptr(r.Stats.StdDev)
			jr.TrimmedMean = ptr(r.Stats.TrimmedMean)
		}

		if len(r.Samples) > 0 {
			jr.Median = ptr(aggregate.Median(r.Samples))
			jr.Min = ptr(slices.Min(r.Samples))
			jr.Max = ptr(slices.Max(r.Samples))
		}

		out[i] = jr
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func ptr(v float64) *float64 {
	return &v
}

func findBest(rows []aggregate.Row) float64 {
	best := 0.0

	for _, r := range rows {
		if r.Stats != nil && r.Stats.Mean > best {
			best = r.Stats.Mean
		}
	}

	return best
}

// round4 rounds the exact binary value of v to 4 decimals, half to even
// on exact ties, so results match files written by earlier tooling.
func round4(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 4, 64), 64)
	if err != nil {
		return v
	}

	return r
}

// formatFloat renders v the way the results file has always shown floats:
// shortest representation, always with a decimal point.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

func formatRate(v float64) string {
	return fmt.Sprintf("%.2f/s", v)
}
