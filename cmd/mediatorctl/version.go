package main

import (
	"fmt"

	"github.com/neverl0se/forgeModsConflictMediator/internal/buildconfig"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildconfig.VersionInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "mediatorctl %s (commit %s, %s)\n", info["version"], info["commit"], info["go"])
			return nil
		},
	}
}
