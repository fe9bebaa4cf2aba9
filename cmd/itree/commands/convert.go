package commands

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/henderiw/intervaltree/internal/config"
)

var ErrInvalidTarget = errors.New("convert target must be json or yaml")

func newConvertCommand(o *options) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Re-encode the interval file in sorted order",
		Long: `convert writes the loaded intervals in sorted order, as YAML when the input
is JSON and as JSON otherwise, unless --to selects the format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := strings.ToLower(to)
			if target == "" {
				target = config.FormatYAML
				if o.cfg.InputFormat() == config.FormatYAML {
					target = config.FormatJSON
				}
			}
			if target != config.FormatJSON && target != config.FormatYAML {
				return errors.Wrapf(ErrInvalidTarget, "got %q", target)
			}
			t, err := o.load(cmd)
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), target, t)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target format, json or yaml")
	return cmd
}
