package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weiihann/tlsbench/server"
)

func newServeCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		sel      selection
		checkPKI bool
	)

	cmd := &cobra.Command{
		Use:   "serve <concurrency>",
		Short: "Start one s_server per algorithm and concurrency slot",
		Long: `Start <concurrency> TLS servers for every algorithm of the registry, on
ports [start, start+concurrency). Each server logs to logs/<alg>_p_<port>.log.
When the first server exits, or on interrupt, every server is stopped and
the command returns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseCount("concurrency", args[0])
			if err != nil {
				return err
			}

			cfg, reg, err := sel.resolve(g)
			if err != nil {
				return err
			}

			launcher := server.NewLauncher(cfg, reg, logger)

			if checkPKI {
				if err := launcher.CheckPKI(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()

			fleet, err := launcher.Start(ctx, n)
			if err != nil {
				return fmt.Errorf("launch servers: %w", err)
			}

			logger.InfoContext(ctx, "servers running",
				slog.Int("servers", len(fleet.Servers)),
			)

			return fleet.Wait(ctx)
		},
	}

	sel.register(cmd)
	cmd.Flags().BoolVar(&checkPKI, "check-pki", false,
		"Fail before launching if certificate material is missing")

	return cmd
}
