package commands

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/henderiw/intervaltree/pkg/tree"
)

var ErrOverlap = errors.New("interval overlaps stored intervals")

// entriesQuery runs on the loaded tree and returns sorted entries.
type entriesQuery func(t *tree.Tree[int64, string], args []string) ([]tree.Entry[int64, string], error)

func (o *options) entriesCommand(use, short string, args cobra.PositionalArgs, query entriesQuery) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.load(cmd)
			if err != nil {
				return err
			}
			entries, err := query(t, args)
			if err != nil {
				return err
			}
			o.log.V(1).Info("query done", "command", cmd.Name(), "args", args, "results", len(entries))
			return writeEntries(cmd.OutOrStdout(), o.cfg.Output.Format, cmd.Short, entries)
		},
	}
}

func newSortedCommand(o *options) *cobra.Command {
	return o.entriesCommand("sorted", "All intervals in order", cobra.NoArgs,
		func(t *tree.Tree[int64, string], _ []string) ([]tree.Entry[int64, string], error) {
			return t.Sorted(), nil
		})
}

func newOverlapCommand(o *options) *cobra.Command {
	cmd := o.entriesCommand("overlap LOW HIGH", "Intervals overlapping [LOW, HIGH]", cobra.ExactArgs(2),
		func(t *tree.Tree[int64, string], args []string) ([]tree.Entry[int64, string], error) {
			q, err := parseInterval(args)
			if err != nil {
				return nil, err
			}
			return t.Overlapping(q)
		})
	cmd.Example = `  itree overlap -f intervals.json 10 20
  itree overlap -f intervals.json -- -20 -10`
	return cmd
}

func newPointCommand(o *options) *cobra.Command {
	cmd := o.entriesCommand("point P", "Intervals containing P", cobra.ExactArgs(1),
		func(t *tree.Tree[int64, string], args []string) ([]tree.Entry[int64, string], error) {
			p, err := parseBound(args[0])
			if err != nil {
				return nil, err
			}
			return t.Containing(p), nil
		})
	cmd.Example = `  itree point -f intervals.json 15
  itree point -f intervals.json -- -15`
	return cmd
}

func newContainedCommand(o *options) *cobra.Command {
	cmd := o.entriesCommand("contained LOW HIGH", "Intervals lying within [LOW, HIGH]", cobra.ExactArgs(2),
		func(t *tree.Tree[int64, string], args []string) ([]tree.Entry[int64, string], error) {
			q, err := parseInterval(args)
			if err != nil {
				return nil, err
			}
			return t.Contained(q)
		})
	cmd.Example = `  itree contained -f intervals.json -- -100 100`
	return cmd
}

func newEnclosingCommand(o *options) *cobra.Command {
	cmd := o.entriesCommand("enclosing LOW HIGH", "Intervals holding all of [LOW, HIGH]", cobra.ExactArgs(2),
		func(t *tree.Tree[int64, string], args []string) ([]tree.Entry[int64, string], error) {
			q, err := parseInterval(args)
			if err != nil {
				return nil, err
			}
			return t.Enclosing(q)
		})
	cmd.Example = `  itree enclosing -f intervals.json -- -5 5`
	return cmd
}

func newGapsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "gaps LOW HIGH",
		Short: "Parts of [LOW, HIGH] not covered by any interval",
		Example: `  itree gaps -f intervals.json 0 100
  itree gaps -f intervals.json -- -100 100`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseInterval(args)
			if err != nil {
				return err
			}
			t, err := o.load(cmd)
			if err != nil {
				return err
			}
			gaps, err := t.Gaps(q)
			if err != nil {
				return err
			}
			entries := make([]tree.Entry[int64, string], 0, len(gaps))
			for _, g := range gaps {
				entries = append(entries, tree.NewEntry(g, ""))
			}
			return writeEntries(cmd.OutOrStdout(), o.cfg.Output.Format, cmd.Short, entries)
		},
	}
}

func newCheckCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "check LOW HIGH",
		Short:   "Fail when [LOW, HIGH] overlaps a stored interval",
		Example: `  itree check -f intervals.json -- -5 5`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseInterval(args)
			if err != nil {
				return err
			}
			t, err := o.load(cmd)
			if err != nil {
				return err
			}
			found, err := t.HasOverlap(q)
			if err != nil {
				return err
			}
			if found {
				return errors.Wrapf(ErrOverlap, "interval %s", q)
			}
			return writeStatus(cmd.OutOrStdout(), "interval %s is free", q)
		},
	}
}

func parseBound(s string) (int64, error) {
	b, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid bound %q", s)
	}
	return b, nil
}

func parseInterval(args []string) (tree.Interval[int64], error) {
	low, err := parseBound(args[0])
	if err != nil {
		return tree.Interval[int64]{}, err
	}
	high, err := parseBound(args[1])
	if err != nil {
		return tree.Interval[int64]{}, err
	}
	return tree.NewInterval(low, high), nil
}
