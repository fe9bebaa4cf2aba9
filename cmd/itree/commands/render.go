package commands

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/henderiw/intervaltree/internal/config"
	"github.com/henderiw/intervaltree/pkg/tree"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeEntries prints entries as a table or in the serialized form, which
// the command reads back as input.
func writeEntries(w io.Writer, format, title string, entries []tree.Entry[int64, string]) error {
	switch strings.ToLower(format) {
	case config.FormatJSON, config.FormatYAML:
		t, err := tree.NewTreeFromSorted(entries)
		if err != nil {
			return err
		}
		return encode(w, format, t)
	}

	if _, err := color.New(color.FgCyan, color.Bold).Fprintf(w, "%s\n", title); err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Low", "High", "Width", "Value"})
	for _, e := range entries {
		tbl.AppendRow(table.Row{e.Interval.Low, e.Interval.High, width(e.Interval), e.Value})
	}
	tbl.AppendFooter(table.Row{"", "", "Total", fmt.Sprintf("%s entries", humanize.Comma(int64(len(entries))))})
	tbl.Render()
	return nil
}

// width returns High-Low, computed in uint64 so spans wider than MaxInt64
// stay positive.
func width(i tree.Interval[int64]) string {
	if i.High < i.Low {
		return ""
	}
	return humanize.BigComma(new(big.Int).SetUint64(uint64(i.High) - uint64(i.Low)))
}

func writeStatus(w io.Writer, format string, args ...any) error {
	_, err := color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
	return err
}

func encode(w io.Writer, format string, t *tree.Tree[int64, string]) error {
	switch strings.ToLower(format) {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return errors.Wrap(err, "encode json")
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
}
