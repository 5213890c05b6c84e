package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weiihann/tlsbench/registry"
)

func newRegistriesCmd(g *globalFlags) *cobra.Command {
	var (
		verbose     bool
		check       bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "registries",
		Short: "List the available algorithm registries",
		Long: `List built-in registries and those from --config and --registry-file.
With --check, report algorithms whose port ranges overlap at --concurrency.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}

			regs := make([]*registry.Registry, 0, len(cfg.Registries))
			for _, name := range registry.BuiltinNames() {
				reg, err := registry.Builtin(name)
				if err != nil {
					return err
				}

				regs = append(regs, reg)
			}

			for i := range cfg.Registries {
				regs = append(regs, &cfg.Registries[i])
			}

			w := cmd.OutOrStdout()
			overlapping := 0

			for _, reg := range regs {
				fmt.Fprintf(w, "%s (%s): %d algorithms\n",
					reg.Name, reg.Suite, len(reg.Entries))

				if verbose {
					for _, e := range reg.Entries {
						fmt.Fprintf(w, "  %-24s %d\n", e.Name, e.StartPort)
					}
				}

				if check {
					for _, o := range reg.Overlaps(concurrency) {
						fmt.Fprintf(w, "  overlap: %s\n", o)
						overlapping++
					}
				}
			}

			if overlapping > 0 {
				return fmt.Errorf("%d overlapping port ranges at concurrency %d",
					overlapping, concurrency)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print every algorithm and its start port")
	flags.BoolVar(&check, "check", false, "Report overlapping port ranges")
	flags.IntVar(&concurrency, "concurrency", 100, "Concurrency level used for --check")

	return cmd
}
