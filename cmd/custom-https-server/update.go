package main

import (
	"time"

	"github.com/spf13/cobra"

	lifecycle "github.com/kumarmuthu/custom-https-server"
)

func newUpdateCmd() *cobra.Command {
	var (
		path    string
		port    int
		mode    string
		user    string
		pass    string
		maxWait time.Duration
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Apply new configuration to a running service",
		Long: "Stops the service, waits for its port to come free, rewrites the\n" +
			"descriptor's argument list, and starts it again. A port that stays\n" +
			"held past the deadline is force-killed once and surfaced as a\n" +
			"warning, not a failure.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			cfg, err := a.Resolver.Resolve(overridesFromFlags(cmd, &path, &port, &mode, &user, &pass))
			if err != nil {
				return err
			}

			orch := lifecycle.NewOrchestrator(a.Sup, a.Layout, a.User, a.Log)
			if cmd.Flags().Changed("max-wait") {
				orch.ReclaimOptions = append(orch.ReclaimOptions, lifecycle.WithMaxWait(maxWait))
			}

			_, err = orch.Update(cmd.Context(), cfg)
			return err
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "directory to serve")
	cmd.Flags().IntVar(&port, "port", 0, "HTTPS listening port")
	cmd.Flags().StringVar(&mode, "mode", "", "access mode: read or write")
	cmd.Flags().StringVar(&user, "user", "", "basic-auth username")
	cmd.Flags().StringVar(&pass, "pass", "", "basic-auth password")
	cmd.Flags().DurationVar(&maxWait, "max-wait", lifecycle.DefaultMaxWait, "how long to wait for the port to come free")
	return cmd
}
