package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/presenter"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
	"github.com/neverl0se/forgeModsConflictMediator/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMediateCmd(opts *globalOptions) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "mediate FILE",
		Short: "Analyze a failure and choose artifacts to disable interactively",
		Long: `Mediate runs one full mediation session for the failure in FILE. On a
terminal the resolution options are offered as a multi-select; selected
options are written to the registry and take effect on the next start.
Without a terminal, or with --headless, conflicts are only reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readFailure(cmd, args[0])
			if err != nil {
				return err
			}
			logger := opts.logger(cmd.ErrOrStderr())
			reg, err := opts.openRegistry(logger.Named("registry"))
			if errors.Is(err, registry.ErrMalformedRegistry) {
				// Report only; saving would overwrite the broken file.
				logger.Error("disablement registry is malformed, conflicts will be reported only",
					zap.String("path", reg.Path()), zap.Error(err))
				headless = true
			} else if err != nil {
				return err
			}
			components, err := opts.catalog(reg)
			if err != nil {
				return err
			}

			var p domain.Presenter
			if !headless {
				p = presenter.NewTerminal(os.Stdin, cmd.OutOrStdout())
			}
			svc := service.NewMediationService(opts.analyzer(components, logger), reg, p, nil, logger.Named("mediation"))
			out := service.NewReporter(svc, 1, 1, logger).ReportFailure(cmd.Context(), f)
			if out == nil {
				return fmt.Errorf("mediation failed")
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printOutcome(cmd, out)
			if out.PersistError != "" {
				return fmt.Errorf("registry not saved: %s", out.PersistError)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "never prompt; report conflicts only")
	return cmd
}

func printOutcome(cmd *cobra.Command, out *domain.MediationOutcome) {
	w := cmd.OutOrStdout()
	switch out.Status {
	case domain.OutcomeNoConflict:
		presenter.WriteReport(w, nil)
	case domain.OutcomeHeadless:
		presenter.WriteReport(w, out.Records)
		if len(out.Options) > 0 {
			fmt.Fprintln(w, "\nAvailable resolutions (run on a terminal to choose):")
			presenter.WriteOptions(w, out.Options)
		}
		color.New(color.FgYellow).Fprintln(w, "\nNo action taken.")
	case domain.OutcomeApplied:
		for _, label := range out.Applied {
			color.New(color.FgGreen).Fprintf(w, "applied: %s\n", label)
		}
		color.New(color.FgYellow, color.Bold).Fprintln(w, "Restart required for changes to take effect.")
	default:
		fmt.Fprintf(w, "Session ended: %s. Registry unchanged.\n", out.Status)
	}
}
