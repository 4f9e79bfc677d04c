package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lifecycle "github.com/kumarmuthu/custom-https-server"
)

func newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the service and its artifacts",
		Long: "Stops the service, reclaims its port, deregisters it from the\n" +
			"supervisor, and removes the descriptor, install directory, config\n" +
			"file, and logs. Each removal is independent and best-effort: a\n" +
			"missing artifact is reported, not treated as a failure.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			a.Resolver.SkipPathCheck = true
			cfg, err := a.Resolver.Resolve(lifecycle.CLIOverrides{})
			if err != nil {
				return err
			}

			orch := lifecycle.NewOrchestrator(a.Sup, a.Layout, a.User, a.Log)
			summary, err := orch.Uninstall(cmd.Context(), cfg)
			for _, step := range summary.Steps {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %-9s %s\n", step.Name, step.Outcome, step.Path)
			}
			return err
		},
	}
	return cmd
}
