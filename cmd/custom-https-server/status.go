package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	lifecycle "github.com/kumarmuthu/custom-https-server"
)

func newStatusCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the service state and port occupancy",
		Args:  cobra.NoArgs,
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

			state, err := a.Sup.State(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service: %s\n", state)
			fmt.Fprintf(cmd.OutOrStdout(), "serving: %s (mode %s) on port %d\n", cfg.ServePath, cfg.Mode, cfg.ServePort)

			pids, err := lifecycle.SystemInspector{}.ListeningPIDs(cmd.Context(), cfg.ServePort)
			if err != nil {
				a.Log.Warn("port inspection failed", "port", cfg.ServePort, "error", err)
			} else if len(pids) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "port %d: held by %v\n", cfg.ServePort, pids)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "port %d: free\n", cfg.ServePort)
			}

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			events, cleanup, err := lifecycle.WatchArtifacts(ctx, a.Sup, a.Layout.ConfigPath)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					if ev.Err != nil {
						a.Log.Warn("watch error", "error", ev.Err)
						continue
					}
					if ev.Path != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "service: %s (%s changed)\n", ev.State, ev.Path)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "service: %s\n", ev.State)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep watching artifacts and state changes")
	return cmd
}
