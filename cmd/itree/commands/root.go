package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/henderiw/intervaltree/internal/config"
	"github.com/henderiw/intervaltree/pkg/tree"
)

// Version is set at build time.
var Version = "dev"

var (
	ErrInputTooLarge = errors.New("input file is too large")
	ErrNoInput       = errors.New("no input file (use --file or input.file)")
)

type options struct {
	configPath string
	verbose    bool

	v   *viper.Viper
	cfg *config.Config
	log logr.Logger
}

// NewRootCommand returns the itree command with all its subcommands.
func NewRootCommand() *cobra.Command {
	o := &options{v: viper.New(), log: logr.Discard()}

	cmd := &cobra.Command{
		Use:   "itree",
		Short: "Query interval files",
		Long: `itree loads a file of intervals, records with a low bound, a high bound
and a value in JSON or YAML, and answers overlap, containment and gap queries.

Bounds are signed integers. Put negative bounds after -- so they are not
read as flags: itree overlap -f intervals.json -- -20 -10`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.complete(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default .itree.yaml in the working or home directory)")
	flags.StringP("file", "f", "", "interval file to load, - for stdin")
	flags.StringP("output", "o", "", "output format: table, json or yaml")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	_ = o.v.BindPFlag("input.file", flags.Lookup("file"))
	_ = o.v.BindPFlag("output.format", flags.Lookup("output"))

	cmd.AddCommand(
		newSortedCommand(o),
		newOverlapCommand(o),
		newPointCommand(o),
		newContainedCommand(o),
		newEnclosingCommand(o),
		newGapsCommand(o),
		newCheckCommand(o),
		newConvertCommand(o),
		newVersionCommand(),
	)
	return cmd
}

func (o *options) complete(cmd *cobra.Command) error {
	cfg, err := config.LoadWith(o.v, o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = newLogger(cmd.ErrOrStderr(), cfg.Logging, o.verbose)
	return nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) logr.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(cfg.Format, config.FormatJSON) {
		h = slog.NewJSONHandler(w, opts)
	}
	return logr.FromSlogHandler(h)
}

// load decodes the configured input file.
func (o *options) load(cmd *cobra.Command) (*tree.Tree[int64, string], error) {
	file := o.cfg.Input.File
	if file == "" {
		return nil, ErrNoInput
	}

	var r io.Reader
	if file == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrap(err, "open input")
		}
		defer f.Close()
		r = f
	}

	limit := o.cfg.InputMaxSize()
	if limit > 0 {
		r = io.LimitReader(r, int64(limit)+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", file)
	}
	if limit > 0 && uint64(len(data)) > limit {
		return nil, errors.Wrapf(ErrInputTooLarge, "%s is larger than %s", file, o.cfg.Input.MaxSize)
	}

	var t *tree.Tree[int64, string]
	format := o.cfg.InputFormat()
	switch format {
	case config.FormatYAML:
		t, err = tree.DecodeYAML[int64, string](data)
	default:
		t, err = tree.DecodeJSON[int64, string](data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s as %s", file, format)
	}
	o.log.V(1).Info("loaded intervals", "file", file, "format", format, "entries", t.Len(), "height", t.Height())
	return t, nil
}
