// Package simulate writes deterministic synthetic s_time transcripts into
// the client log layout of a run, for dry runs of the aggregation pipeline
// without servers or a TLS toolkit.
package simulate

import (
	"fmt"
	"io"
	"math"
	mrand "math/rand"
	"os"
	"strings"
	"time"

	"github.com/weiihann/tlsbench/config"
	"github.com/weiihann/tlsbench/registry"
)

// Config controls the generated samples.
type Config struct {
	Seed int64
	// Mean is the average connections/user rate before the per-algorithm
	// scale is applied.
	Mean float64
	// Spread is the standard deviation for "normal" and the half-width
	// for "uniform".
	Spread       float64
	Distribution string
	// DropRate is the fraction of logs left empty, as after a timeout.
	DropRate float64
	Duration time.Duration
}

// Summary counts what was generated.
type Summary struct {
	Files   int
	Samples int
	Dropped int
}

// Generator produces deterministic transcripts from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate writes one log per algorithm, repeat and slot under
// cfg.DataDir, named exactly as the driver names them.
func (g *Generator) Generate(
	cfg config.Config,
	reg *registry.Registry,
	runID string,
	repeats, concurrency int,
) (Summary, error) {
	var summary Summary

	if err := config.EnsureDirs(cfg.DataDir); err != nil {
		return summary, err
	}

	for _, entry := range reg.Entries {
		// Each algorithm gets its own throughput level.
		scale := 0.25 + 1.5*g.rng.Float64()

		for repeat := 0; repeat < repeats; repeat++ {
			for slot := 0; slot < concurrency; slot++ {
				path := cfg.ClientLogPath(entry.Name, runID, slot, repeat)

				wrote, err := g.writeFile(path, scale)
				if err != nil {
					return summary, fmt.Errorf("write %s: %w", path, err)
				}

				summary.Files++

				if wrote {
					summary.Samples++
				} else {
					summary.Dropped++
				}
			}
		}
	}

	return summary, nil
}

func (g *Generator) writeFile(path string, scale float64) (bool, error) {
	f, err := os.Create(path)
	if err != nil {
		return false, err
	}

	wrote, err := g.WriteLog(f, scale)
	if err != nil {
		f.Close()

		return false, err
	}

	return wrote, f.Close()
}

// WriteLog writes one transcript to w. It returns false when the log was
// dropped and left empty.
func (g *Generator) WriteLog(w io.Writer, scale float64) (bool, error) {
	if g.rng.Float64() < g.cfg.DropRate {
		return false, nil
	}

	seconds := int(g.cfg.Duration / time.Second)
	userTime := g.cfg.Duration.Seconds() * (0.9 + 0.1*g.rng.Float64())
	rate := g.sampleRate() * scale
	conns := max(1, int(math.Round(rate*userTime)))
	dots := min(conns, 72)

	_, err := fmt.Fprintf(w,
		"Collecting connection statistics for %d seconds\n%s\n\n"+
			"%d connections in %.2fs; %.2f connections/user sec, bytes read 0\n"+
			"%d connections in %d real seconds, 0 bytes read per connection\n",
		seconds, strings.Repeat("t", dots),
		conns, userTime, float64(conns)/userTime,
		conns, seconds+1,
	)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (g *Generator) sampleRate() float64 {
	var v float64

	switch g.cfg.Distribution {
	case "uniform":
		v = g.cfg.Mean + g.cfg.Spread*(2*g.rng.Float64()-1)

	case "normal":
		v = g.cfg.Mean + g.cfg.Spread*g.rng.NormFloat64()

	default:
		// Fall back to normal if unknown distribution.
		v = g.cfg.Mean + g.cfg.Spread*g.rng.NormFloat64()
	}

	return math.Max(v, 0.01)
}
