package config

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Config is the itree command configuration.
type Config struct {
	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// InputConfig selects the interval file to load.
type InputConfig struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
	// MaxSize bounds the input file, in humanized bytes like "64MiB".
	MaxSize string `mapstructure:"max_size"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	FormatAuto  = "auto"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
	FormatText  = "text"
)

const (
	DefaultInputFormat   = FormatAuto
	DefaultInputMaxSize  = "64MiB"
	DefaultOutputFormat  = FormatTable
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = FormatText
)

// Sentinel errors for configuration validation.
var (
	ErrInvalidInputFormat   = errors.New("input.format must be one of auto, json, yaml")
	ErrInvalidInputMaxSize  = errors.New("input.max_size must be a byte size")
	ErrInvalidOutputFormat  = errors.New("output.format must be one of table, json, yaml")
	ErrInvalidLoggingLevel  = errors.New("logging.level must be one of debug, info, warn, error")
	ErrInvalidLoggingFormat = errors.New("logging.format must be one of text, json")
)

// Validate lower-cases and checks the enumerated settings, empty values fall
// back to the defaults.
func (c *Config) Validate() error {
	for _, v := range []*string{&c.Input.Format, &c.Output.Format, &c.Logging.Level, &c.Logging.Format} {
		*v = strings.ToLower(*v)
	}
	if !oneOf(c.Input.Format, FormatAuto, FormatJSON, FormatYAML) {
		return errors.Wrapf(ErrInvalidInputFormat, "got %q", c.Input.Format)
	}
	if c.Input.MaxSize != "" {
		if _, err := humanize.ParseBytes(c.Input.MaxSize); err != nil {
			return errors.Wrapf(ErrInvalidInputMaxSize, "got %q", c.Input.MaxSize)
		}
	}
	if !oneOf(c.Output.Format, FormatTable, FormatJSON, FormatYAML) {
		return errors.Wrapf(ErrInvalidOutputFormat, "got %q", c.Output.Format)
	}
	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		return errors.Wrapf(ErrInvalidLoggingLevel, "got %q", c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, FormatText, FormatJSON) {
		return errors.Wrapf(ErrInvalidLoggingFormat, "got %q", c.Logging.Format)
	}
	return nil
}

// InputFormat returns the format of the input file, resolving auto from the
// file extension.
func (c *Config) InputFormat() string {
	if f := strings.ToLower(c.Input.Format); f != "" && f != FormatAuto {
		return f
	}
	f := strings.ToLower(c.Input.File)
	if strings.HasSuffix(f, ".yaml") || strings.HasSuffix(f, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// InputMaxSize returns the input size limit in bytes, 0 for no limit.
func (c *Config) InputMaxSize() uint64 {
	if c.Input.MaxSize == "" {
		return 0
	}
	n, err := humanize.ParseBytes(c.Input.MaxSize)
	if err != nil {
		return 0
	}
	return n
}

func oneOf(v string, allowed ...string) bool {
	if v == "" {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
