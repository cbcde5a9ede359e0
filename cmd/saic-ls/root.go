package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/pfrederiksen/saic-ls/internal/config"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

// rootOptions is shared by all subcommands. cfg and log are set before any
// subcommand runs.
type rootOptions struct {
	configFile string
	cfg        *config.Config
	log        log.Logger

	// prompt asks for the account password when none is configured.
	prompt func() (string, error)
}

func newRootCommand() *cobra.Command {
	o := &rootOptions{prompt: promptPassword}

	cmd := &cobra.Command{
		Use:   "saic-ls",
		Short: "Adaptive poller and Home Assistant bridge for SAIC/MG vehicles",
		Long: `saic-ls polls a SAIC/MG vehicle through the manufacturer gateway,
adapting the poll rate to what the vehicle is doing, and publishes the
results to MQTT (with Home Assistant discovery), a local HTTP API, the
terminal and a SQLite database.

Configuration is read from config.yaml, SAIC_* environment variables
(e.g. SAIC_ACCOUNT_USERNAME) and the dotted flags below, in increasing
priority.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&o.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/saic-ls/config.yaml)")
	fs.String("account.username", "", "account e-mail or phone number")
	fs.String("account.region", "", "gateway region (Europe, Australia, China)")
	fs.String("account.vin", "", "vehicle to poll (may be omitted for single-vehicle accounts)")
	fs.String("account.vehicle_type", "", "override the detected drivetrain (BEV, PHEV, HEV, ICE)")
	fs.String("storage.db_path", "", "SQLite database path")
	fs.Bool("storage.disable", false, "do not persist snapshots or activity timestamps")
	fs.String("mqtt.broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (empty disables MQTT)")
	fs.String("api.listen", "", "HTTP API listen address, e.g. :8080 (empty disables the API)")
	log.NewOptions().AddFlags(fs)

	cmd.AddCommand(
		newRunCommand(o),
		newStatusCommand(o),
		newWatchCommand(o),
		newExportCommand(o),
		newTUICommand(o),
		newVersionCommand(),
	)

	return cmd
}

// load reads the configuration and installs the logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	o.cfg = cfg
	return o.initLogger()
}

func (o *rootOptions) initLogger() error {
	if errs := o.cfg.Log.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid log options: %w", multierr.Combine(errs...))
	}

	logger, err := log.NewLogger(&o.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	o.log = logger
	log.SetStd(logger)
	return nil
}
