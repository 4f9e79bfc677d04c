package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	lifecycle "github.com/kumarmuthu/custom-https-server"
)

// app wires the resolved platform context together for every subcommand.
type app struct {
	Platform lifecycle.Platform
	Layout   lifecycle.Layout
	User     lifecycle.UserContext
	Sup      lifecycle.Supervisor
	Resolver *lifecycle.Resolver
	Log      *slog.Logger
}

var (
	flagConfig  string
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "custom-https-server",
		Short:         "Manage the custom HTTPS file server as an OS service",
		Long:          "Installs, updates, and uninstalls the custom HTTPS file server\nas a systemd service (Linux) or per-user launchd agent (macOS).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default platform-specific)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newInstallCmd(),
		newUpdateCmd(),
		newUninstallCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return cmd
}

// newApp resolves platform, user identity, layout, and supervisor once per
// invocation.
func newApp() (*app, error) {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	platform, err := lifecycle.CurrentPlatform()
	if err != nil {
		return nil, err
	}
	user, err := lifecycle.ResolveUserContext(os.Getenv)
	if err != nil {
		return nil, err
	}

	layout := lifecycle.DefaultLayout(platform, user.Home)
	if flagConfig != "" {
		layout.ConfigPath = flagConfig
	}

	sup, err := lifecycle.NewSupervisor(platform, layout, user)
	if err != nil {
		return nil, err
	}

	return &app{
		Platform: platform,
		Layout:   layout,
		User:     user,
		Sup:      sup,
		Resolver: &lifecycle.Resolver{
			FilePath: layout.ConfigPath,
			Platform: platform,
			Home:     user.Home,
		},
		Log: log,
	}, nil
}

// overridesFromFlags collects only the flags the user explicitly set; an
// untouched flag never overrides a lower-priority source.
func overridesFromFlags(cmd *cobra.Command, path *string, port *int, mode, user, pass *string) lifecycle.CLIOverrides {
	var cli lifecycle.CLIOverrides
	if cmd.Flags().Changed("path") {
		cli.Path = path
	}
	if cmd.Flags().Changed("port") {
		cli.Port = port
	}
	if cmd.Flags().Changed("mode") {
		cli.Mode = mode
	}
	if cmd.Flags().Changed("user") {
		cli.User = user
	}
	if cmd.Flags().Changed("pass") {
		cli.Pass = pass
	}
	return cli
}
