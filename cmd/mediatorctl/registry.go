package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
	"github.com/spf13/cobra"
)

func newRegistryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "List or edit disabled artifacts",
	}

	edit := func(use, short string, nargs int, fn func(reg *registry.Registry, args []string) bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := opts.openRegistry(opts.logger(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				if !fn(reg, args) {
					fmt.Fprintln(cmd.OutOrStdout(), "No change.")
					return nil
				}
				if err := reg.Save(); err != nil {
					return err
				}
				color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "Saved %s. Restart required.\n", reg.Path())
				return nil
			},
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show the disabled patches and per-owner artifacts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := opts.openRegistry(opts.logger(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				snap := reg.Snapshot()
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), snap)
				}
				printSnapshot(cmd, snap)
				return nil
			},
		},
		edit("disable OWNER ARTIFACT", "Disable an artifact of an owner", 2, func(reg *registry.Registry, args []string) bool {
			return reg.Disable(args[0], args[1])
		}),
		edit("enable OWNER ARTIFACT", "Re-enable an artifact of an owner", 2, func(reg *registry.Registry, args []string) bool {
			return reg.Enable(args[0], args[1])
		}),
		edit("disable-patch PATCH", "Disable a patch by identifier", 1, func(reg *registry.Registry, args []string) bool {
			return reg.DisablePatch(args[0])
		}),
		edit("enable-patch PATCH", "Re-enable a patch", 1, func(reg *registry.Registry, args []string) bool {
			return reg.EnablePatch(args[0])
		}),
	)
	return cmd
}

func printSnapshot(cmd *cobra.Command, snap registry.Snapshot) {
	w := cmd.OutOrStdout()
	if snap.Count() == 0 {
		fmt.Fprintln(w, "Nothing disabled.")
		return
	}
	heading := color.New(color.Bold)
	if len(snap.DisabledPatches) > 0 {
		heading.Fprintln(w, "Disabled patches:")
		for _, id := range snap.DisabledPatches {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	owners := make([]string, 0, len(snap.DisabledByOwner))
	for owner := range snap.DisabledByOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		heading.Fprintf(w, "%s:\n", owner)
		for _, id := range snap.DisabledByOwner[owner] {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}
