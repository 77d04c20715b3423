package cli

import (
	"fmt"

	"github.com/ije/gox/term"
	"github.com/spf13/cobra"
)

func newBuildCommand(opts *globalOptions) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rewrite the source root into the dist root for production",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(opts)
			if err != nil {
				return err
			}
			b, err := p.builder(false, nil, prune)
			if err != nil {
				return err
			}
			report, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			failures := report.Failures()
			for _, f := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", term.Red("✗"), f.Source, f.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d files built into %s/ in %s\n", term.Green("✓"), len(report.Files)-len(failures), p.config.DistRoot(), report.Duration)
			if len(failures) > 0 {
				return fmt.Errorf("%d files failed to build", len(failures))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "remove the files of the dist root that the build did not write")
	return cmd
}
