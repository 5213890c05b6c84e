// Package main provides the CLI entry point for tlsbench, a TLS handshake
// throughput benchmark for classical, post-quantum and hybrid algorithms.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weiihann/tlsbench/config"
	"github.com/weiihann/tlsbench/registry"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("tlsbench failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath   string
	registryFile string
	logLevel     string
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "tlsbench",
		Short: "TLS handshake throughput benchmark for post-quantum algorithms",
		Long: `tlsbench measures TLS 1.3 handshake throughput for key-exchange and
signature algorithms by running openssl s_server on one host and concurrent
openssl s_time clients on another, then summarising the connection rates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level.Set(parseLevel(g.logLevel))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "",
		"Path to a YAML config file")
	flags.StringVar(&g.registryFile, "registry-file", "",
		"Path to a YAML file with additional registries")
	flags.StringVar(&g.logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(logger, &g),
		newRunCmd(logger, &g),
		newAggregateCmd(logger, &g),
		newRegistriesCmd(&g),
		newSimulateCmd(logger, &g),
	)

	return root
}

// loadConfig reads the config file, applies environment overrides and
// merges registries from --registry-file.
func loadConfig(g *globalFlags) (config.Config, error) {
	cfg, err := config.LoadFile(g.configPath)
	if err != nil {
		return cfg, err
	}

	cfg.ApplyEnv()

	if g.registryFile != "" {
		regs, err := registry.LoadFile(g.registryFile)
		if err != nil {
			return cfg, err
		}

		for _, r := range regs {
			cfg.Registries = append(cfg.Registries, *r)
		}
	}

	return cfg, nil
}

// selection holds the --suite and --registry flags.
type selection struct {
	suite    string
	registry string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.suite, "suite", string(registry.SuiteKEX),
		"Benchmark suite: kex (vary key exchange) or sig (vary signature)")
	cmd.Flags().StringVar(&s.registry, "registry", "",
		"Registry to use (default depends on --suite)")
}

func (s *selection) resolve(g *globalFlags) (config.Config, *registry.Registry, error) {
	suite, err := registry.ParseSuite(s.suite)
	if err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := loadConfig(g)
	if err != nil {
		return cfg, nil, err
	}

	reg, err := cfg.Registry(s.registry, suite)
	if err != nil {
		return cfg, nil, err
	}

	return cfg, reg, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseCount(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, value)
	}

	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", name, n)
	}

	return n, nil
}
