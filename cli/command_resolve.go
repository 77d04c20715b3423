package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <specifier>...",
		Short: "Print the paths the specifiers resolve to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(opts)
			if err != nil {
				return err
			}
			results, err := p.resolver.ResolveAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			failed := 0
			for _, spec := range args {
				ret := results[spec]
				switch {
				case ret.Err != nil:
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", spec, ret.Err)
				case !ret.Resolved:
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: not found\n", spec)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", spec, ret.Path)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d specifiers could not be resolved", failed)
			}
			return nil
		},
	}
}
