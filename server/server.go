// Package server launches one long-lived s_server per algorithm and
// concurrency slot.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/weiihann/tlsbench/config"
	"github.com/weiihann/tlsbench/harness"
	"github.com/weiihann/tlsbench/registry"
)

// ErrNoServers is returned when the registry and concurrency level yield
// no server to launch.
var ErrNoServers = errors.New("no servers to launch")

// Launcher starts the servers of one registry.
type Launcher struct {
	Config   config.Config
	Registry *registry.Registry
	Logger   *slog.Logger
}

// NewLauncher creates a Launcher for reg.
func NewLauncher(cfg config.Config, reg *registry.Registry, logger *slog.Logger) *Launcher {
	return &Launcher{
		Config:   cfg,
		Registry: reg,
		Logger: logger.With(
			slog.String("registry", reg.Name),
			slog.String("suite", string(reg.Suite)),
		),
	}
}

// Server is one running s_server.
type Server struct {
	Algorithm string
	Port      int
	Process   *harness.Process
}

// Fleet is the set of servers started by a Launcher, in registry order
// and port order within an algorithm.
type Fleet struct {
	Servers []Server
	logger  *slog.Logger
}

// Start launches n servers per algorithm on ports [StartPort, StartPort+n),
// each logging to its own file. A server that starts but immediately dies
// (missing certificate, port in use) is not detected here; its log file
// tells. If any server fails to start, the ones already running are killed.
func (l *Launcher) Start(ctx context.Context, n int) (*Fleet, error) {
	if n <= 0 || len(l.Registry.Entries) == 0 {
		return nil, ErrNoServers
	}

	tool, err := l.Config.Tool()
	if err != nil {
		return nil, err
	}

	if err := config.EnsureDirs(l.Config.LogsDir); err != nil {
		return nil, err
	}

	fleet := &Fleet{
		Servers: make([]Server, 0, n*len(l.Registry.Entries)),
		logger:  l.Logger,
	}

	for _, entry := range l.Registry.Entries {
		for _, port := range entry.Ports(n) {
			spec := l.Config.ServerSpec(l.Registry.Suite, entry.Name, port)
			logPath := l.Config.ServerLogPath(entry.Name, port)

			proc, err := harness.Start(ctx, tool.Server(spec), logPath)
			if err != nil {
				fleet.Stop()

				return nil, fmt.Errorf("start server %s on port %d: %w",
					entry.Name, port, err)
			}

			fleet.Servers = append(fleet.Servers, Server{
				Algorithm: entry.Name,
				Port:      port,
				Process:   proc,
			})
		}

		l.Logger.InfoContext(ctx, "servers started",
			slog.String("algorithm", entry.Name),
			slog.Int("first_port", entry.StartPort),
			slog.Int("count", n),
		)
	}

	return fleet, nil
}

// CheckPKI verifies that the certificate, key and CA chain of every
// algorithm exist, and reports all missing files at once.
func (l *Launcher) CheckPKI() error {
	var missing []string

	for _, entry := range l.Registry.Entries {
		sigAlg := l.Config.CertAlgorithm(l.Registry.Suite, entry.Name)
		cert, key, chain := l.Config.CertFiles(sigAlg)

		for _, path := range []string{cert, key, chain} {
			if _, err := os.Stat(path); err != nil {
				missing = append(missing, path)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing certificate material: %s",
			strings.Join(dedupe(missing), ", "))
	}

	return nil
}

// Wait blocks on the first server only. Servers run until something
// terminates them, so one of them exiting is taken as the signal to stop:
// the remaining servers are killed before Wait returns. If ctx ends first,
// every server is killed as well.
func (f *Fleet) Wait(ctx context.Context) error {
	if len(f.Servers) == 0 {
		return ErrNoServers
	}

	first := f.Servers[0]

	err := first.Process.Wait(ctx)
	if ctx.Err() != nil {
		f.Stop()

		return ctx.Err()
	}

	f.logger.InfoContext(ctx, "server exited",
		slog.String("algorithm", first.Algorithm),
		slog.Int("port", first.Port),
		slog.Any("exit", err),
	)

	f.Stop()

	return nil
}

// Stop kills every server that is still running.
func (f *Fleet) Stop() {
	for _, s := range f.Servers {
		if err := s.Process.Kill(); err != nil {
			f.logger.Warn("failed to stop server",
				slog.String("algorithm", s.Algorithm),
				slog.Int("port", s.Port),
				slog.String("error", err.Error()),
			)
		}
	}
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]

	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}
		out = append(out, p)
	}

	return out
}
