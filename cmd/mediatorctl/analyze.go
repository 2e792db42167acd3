package main

import (
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/presenter"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Report suspected conflicts in a failure without changing anything",
		Long: `Analyze reads a failure from FILE ("-" for stdin) and prints the suspected
conflicts. FILE may hold a JSON failure descriptor or a raw stack dump.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readFailure(cmd, args[0])
			if err != nil {
				return err
			}
			logger := opts.logger(cmd.ErrOrStderr())
			components, err := opts.catalog(nil)
			if err != nil {
				return err
			}

			records := opts.analyzer(components, logger).Analyze(f)
			if opts.jsonOutput {
				if records == nil {
					records = []domain.ConflictRecord{}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"records": records})
			}
			presenter.WriteReport(cmd.OutOrStdout(), records)
			return nil
		},
	}
}
