package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lifecycle "github.com/kumarmuthu/custom-https-server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the lifecycle manager version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), lifecycle.Version)
		},
	}
}
