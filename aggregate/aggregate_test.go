package aggregate

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/tlsbench/config"
	"github.com/weiihann/tlsbench/registry"
)

const sampleLine = "10 connections in 1.00s; 9.8765 connections/user sec, bytes read 0\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSetup(t *testing.T, entries ...registry.Entry) (config.Config, *registry.Registry) {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	reg := &registry.Registry{Name: "test", Suite: registry.SuiteKEX, Entries: entries}

	return cfg, reg
}

func writeLog(t *testing.T, cfg config.Config, alg, runID string, slot, repeat int, content string) {
	t.Helper()

	path := cfg.ClientLogPath(alg, runID, slot, repeat)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExtract(t *testing.T) {
	input := strings.Join([]string{
		"Collecting connection statistics for 10 seconds",
		"tttttttttttttttttttttttttttttttttt",
		"5 connections in 10.00s; 12.3456 connections/user sec, bytes read 0",
		"5 connections in 11 real seconds, 0 bytes read per connection",
		"",
		"Now timing with session id reuse.",
		"7 connections in 9.50s; 0.7368 connections/user sec, bytes read 0",
		"garbage 5 connections in 1s; 12 connections/user",
	}, "\n")

	samples, err := Extract(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []float64{12.3456, 0.7368}, samples)
}

func TestExtractNoMatches(t *testing.T) {
	samples, err := Extract(strings.NewReader("connect:errno=111\n"))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestExtractLongProgressLine(t *testing.T) {
	input := strings.Repeat("t", 2*maxLineSize) + "\n\n" +
		"2097152 connections in 540.00s; 3883.61 connections/user sec, bytes read 0\n" +
		"2097152 connections in 541 real seconds, 0 bytes read per connection\n"

	samples, err := Extract(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []float64{3883.61}, samples)
}

func TestExtractSummaryAtTailOfLongLine(t *testing.T) {
	input := strings.Repeat("t", 3*maxLineSize) +
		"1500000 connections in 400.00s; 3750.00 connections/user sec, bytes read 0"

	samples, err := Extract(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []float64{3750.0}, samples)
}

func TestExtractReadError(t *testing.T) {
	_, err := Extract(iotest.ErrReader(io.ErrUnexpectedEOF))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCompute(t *testing.T) {
	stats, err := Compute([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, stats.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), stats.StdDev, 1e-12)
	assert.InDelta(t, 5.0, stats.TrimmedMean, 1e-12)
}

func TestComputeIdenticalSamples(t *testing.T) {
	stats, err := Compute([]float64{9.8765, 9.8765, 9.8765, 9.8765})
	require.NoError(t, err)

	assert.InDelta(t, 9.8765, stats.Mean, 1e-12)
	assert.InDelta(t, 0, stats.StdDev, 1e-9)
	assert.False(t, math.IsNaN(stats.StdDev))
	assert.InDelta(t, 9.8765, stats.TrimmedMean, 1e-12)
}

func TestComputeInsufficient(t *testing.T) {
	for _, samples := range [][]float64{nil, {1.5}} {
		_, err := Compute(samples)
		assert.ErrorIs(t, err, ErrInsufficientSamples)
	}
}

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"ten samples trim nothing", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}, 14.5},
		{
			"twenty samples trim one from each end",
			[]float64{100, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19},
			10.5,
		},
		{"single sample", []float64{3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TrimmedMean(tt.samples, TrimFraction), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(TrimmedMean(nil, TrimFraction)))
}

func TestTrimmedMeanDoesNotReorderInput(t *testing.T) {
	samples := []float64{3, 1, 2}
	TrimmedMean(samples, 0.4)
	assert.Equal(t, []float64{3, 1, 2}, samples)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestAggregateAllSlotsPresent(t *testing.T) {
	cfg, reg := testSetup(t, registry.Entry{Name: "algA", StartPort: 5000})

	for repeat := 0; repeat < 2; repeat++ {
		for slot := 0; slot < 2; slot++ {
			writeLog(t, cfg, "algA", "run", slot, repeat, sampleLine)
		}
	}

	rows, err := New(cfg, reg, testLogger()).Aggregate(context.Background(), Options{
		RunID: "run", Repeats: 2, Concurrency: 2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "algA", row.Algorithm)
	assert.Equal(t, []float64{9.8765, 9.8765, 9.8765, 9.8765}, row.Samples)
	assert.Equal(t, 0, row.Missing())
	require.NotNil(t, row.Stats)
	assert.InDelta(t, 9.8765, row.Stats.Mean, 1e-9)
	assert.InDelta(t, 0, row.Stats.StdDev, 1e-9)
}

func TestAggregateLongRunLogs(t *testing.T) {
	cfg, reg := testSetup(t, registry.Entry{Name: "algA", StartPort: 5000})

	progress := strings.Repeat("t", maxLineSize+1) + "\n\n"
	writeLog(t, cfg, "algA", "run", 0, 0, progress+
		"1048577 connections in 270.00s; 3883.61 connections/user sec, bytes read 0\n")
	writeLog(t, cfg, "algA", "run", 1, 0, progress+
		"1048577 connections in 271.00s; 3869.29 connections/user sec, bytes read 0\n")

	rows, err := New(cfg, reg, testLogger()).Aggregate(context.Background(), Options{
		RunID: "run", Repeats: 1, Concurrency: 2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []float64{3883.61, 3869.29}, rows[0].Samples)
	require.NotNil(t, rows[0].Stats)
}

func TestAggregateOrderIsRepeatMajor(t *testing.T) {
	cfg, reg := testSetup(t, registry.Entry{Name: "algA", StartPort: 5000})

	rate := map[[2]int]string{
		{0, 0}: "1.0000", {0, 1}: "2.0000",
		{1, 0}: "3.0000", {1, 1}: "4.0000",
	}
	for key, r := range rate {
		repeat, slot := key[0], key[1]
		writeLog(t, cfg, "algA", "run", slot, repeat,
			"10 connections in 1.00s; "+r+" connections/user sec\n")
	}

	samples, err := New(cfg, reg, testLogger()).Samples("algA", Options{
		RunID: "run", Repeats: 2, Concurrency: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, samples)
}

func TestAggregateMissingSample(t *testing.T) {
	cfg, reg := testSetup(t, registry.Entry{Name: "algA", StartPort: 5000})

	writeLog(t, cfg, "algA", "run", 0, 0, sampleLine)
	writeLog(t, cfg, "algA", "run", 1, 0, "")
	writeLog(t, cfg, "algA", "run", 0, 1, sampleLine)
	writeLog(t, cfg, "algA", "run", 1, 1, sampleLine)

	rows, err := New(cfg, reg, testLogger()).Aggregate(context.Background(), Options{
		RunID: "run", Repeats: 2, Concurrency: 2,
	})
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Missing())
	assert.Len(t, rows[0].Samples, 3)
	require.NotNil(t, rows[0].Stats)
}

func TestAggregateMissingFile(t *testing.T) {
	cfg, reg := testSetup(t, registry.Entry{Name: "algA", StartPort: 5000})

	writeLog(t, cfg, "algA", "run", 0, 0, sampleLine)

	_, err := New(cfg, reg, testLogger()).Aggregate(context.Background(), Options{
		RunID: "run", Repeats: 1, Concurrency: 2,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestAggregateInsufficientSamples(t *testing.T) {
	cfg, reg := testSetup(t,
		registry.Entry{Name: "algA", StartPort: 5000},
		registry.Entry{Name: "algB", StartPort: 5100},
	)

	writeLog(t, cfg, "algA", "run", 0, 0, sampleLine)
	writeLog(t, cfg, "algA", "run", 1, 0, sampleLine)
	writeLog(t, cfg, "algB", "run", 0, 0, sampleLine)
	writeLog(t, cfg, "algB", "run", 1, 0, "connect: Connection refused\n")

	agg := New(cfg, reg, testLogger())
	opts := Options{RunID: "run", Repeats: 1, Concurrency: 2}

	_, err := agg.Aggregate(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
	assert.Contains(t, err.Error(), "algB")

	opts.AllowGaps = true

	rows, err := agg.Aggregate(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotNil(t, rows[0].Stats)
	assert.Nil(t, rows[1].Stats)
	assert.Equal(t, []float64{9.8765}, rows[1].Samples)
}

func TestAggregateZeroConcurrency(t *testing.T) {
	cfg, reg := testSetup(t, registry.Entry{Name: "algA", StartPort: 5000})

	rows, err := New(cfg, reg, testLogger()).Aggregate(context.Background(), Options{
		RunID: "run", Repeats: 3, Concurrency: 0, AllowGaps: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Samples)
	assert.Equal(t, 0, rows[0].Expected)
}

func TestExtractFileMissing(t *testing.T) {
	_, err := ExtractFile(filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
