package main

import (
	"github.com/spf13/cobra"

	lifecycle "github.com/kumarmuthu/custom-https-server"
)

func newInstallCmd() *cobra.Command {
	var (
		path   string
		port   int
		mode   string
		user   string
		pass   string
		venv   bool
		script string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install and start the server as an OS service",
		Long: "Resolves the effective configuration, installs the server script,\n" +
			"registers the service with the platform supervisor, and starts it.\n" +
			"Safe to re-run: an existing registration is overwritten.",
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
			return orch.Install(cmd.Context(), cfg, script, venv)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "directory to serve")
	cmd.Flags().IntVar(&port, "port", 0, "HTTPS listening port")
	cmd.Flags().StringVar(&mode, "mode", "", "access mode: read or write")
	cmd.Flags().StringVar(&user, "user", "", "basic-auth username")
	cmd.Flags().StringVar(&pass, "pass", "", "basic-auth password")
	cmd.Flags().BoolVar(&venv, "venv", true, "create a virtualenv for the server interpreter")
	cmd.Flags().StringVar(&script, "script", "", "server script to install (default: keep existing)")
	return cmd
}
