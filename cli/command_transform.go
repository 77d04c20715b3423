package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newTransformCommand returns the `transform` command, printing the dev
// (hot reloading) output of a module, or the `rewrite` command, printing
// its production output.
func newTransformCommand(opts *globalOptions, dev bool) *cobra.Command {
	use, short := "rewrite <file>", "Print the production output of a module"
	if dev {
		use, short = "transform <file>", "Print the hot reloading output of a module"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(opts)
			if err != nil {
				return err
			}
			b, err := p.builder(dev, nil, false)
			if err != nil {
				return err
			}
			filename, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			code, ret, err := b.Transform(cmd.Context(), filename)
			if err != nil {
				return err
			}
			if dev {
				p.log.Debugf("transform(%s): %s", ret.Source, ret.Kind)
			}
			fmt.Fprint(cmd.OutOrStdout(), code)
			return nil
		},
	}
}
