package log

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Options configures NewLogger.
type Options struct {
	Name          string   `mapstructure:"name"`
	Level         string   `mapstructure:"level"`
	Format        string   `mapstructure:"format"`
	EnableColor   bool     `mapstructure:"enable-color"`
	DisableCaller bool     `mapstructure:"disable-caller"`
	OutputPaths   []string `mapstructure:"output-paths"`
}

// NewOptions returns the defaults: info level, console format, stderr.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
		OutputPaths: []string{"stderr"},
	}
}

// Validate reports invalid option values.
func (o *Options) Validate() []error {
	var errs []error
	if o.Format != "console" && o.Format != "json" {
		errs = append(errs, fmt.Errorf("log format must be 'console' or 'json', got %q", o.Format))
	}
	switch o.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unsupported log level %q", o.Level))
	}
	return errs
}

// AddFlags binds the options to fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level (debug, info, warn, error).")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log output format ('console' or 'json').")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colorize console output.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the caller field.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log destinations (stdout, stderr or file paths).")
}
