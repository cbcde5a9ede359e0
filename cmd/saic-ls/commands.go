package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/saic-ls/internal/cli"
	"github.com/pfrederiksen/saic-ls/internal/tui"
)

const formatHelp = "output format (text, json, yaml, csv, table)"

func newStatusCommand(o *rootOptions) *cobra.Command {
	var (
		format string
		opts   cli.StatusOptions
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current vehicle state",
		Long: `Status polls the vehicle once and prints the result. With --offline it
prints the last stored snapshot without contacting the gateway.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Format = cli.OutputFormat(format)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if opts.Offline {
				return withStore(o, func(snaps cli.SnapshotStore) error {
					return cli.NewStatusCommand(nil, snaps, o.cfg.Account.VIN, out).Run(ctx, opts)
				})
			}

			a, err := o.newApp()
			if err != nil {
				return err
			}
			return runAndClose(a, func() error {
				return cli.NewStatusCommand(a.coord, a.snapshots(), a.cfg.Account.VIN, out).Run(ctx, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(cli.FormatText), formatHelp)
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", true, "indent JSON output")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the full snapshot including raw gateway values (json only)")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "print the last stored snapshot instead of polling")

	return cmd
}

func newWatchCommand(o *rootOptions) *cobra.Command {
	var (
		format string
		opts   cli.WatchOptions
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the vehicle and print every update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Format = cli.OutputFormat(format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.newApp()
			if err != nil {
				return err
			}
			return runAndClose(a, func() error {
				return cli.NewWatchCommand(a.coord, cmd.OutOrStdout()).Run(ctx, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(cli.FormatTable), formatHelp)
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent JSON output")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the full snapshot including raw gateway values (json only)")

	return cmd
}

func newExportCommand(o *rootOptions) *cobra.Command {
	var (
		format string
		opts   cli.ExportOptions
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored snapshot of every vehicle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Format = cli.OutputFormat(format)
			return withStore(o, func(snaps cli.SnapshotStore) error {
				return cli.NewExportCommand(snaps, cmd.OutOrStdout()).Run(cmd.Context(), opts)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(cli.FormatJSON), formatHelp)
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", true, "indent JSON output")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "export full snapshots including raw gateway values (json only)")
	cmd.Flags().StringVar(&opts.VIN, "vin", "", "export a single vehicle")

	return cmd
}

func newTUICommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal dashboard",
		Long: `TUI polls the vehicle like run and shows a live dashboard. Logs go to
saic-ls.log in storage.session_dir unless log.output-paths names a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.redirectLogs(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.newApp()
			if err != nil {
				return err
			}
			return runAndClose(a, func() error { return a.runTUI(ctx) })
		},
	}
}

func (a *app) runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewModel(a.coord, a.commander), tea.WithContext(ctx))

	go func() {
		if err := a.coord.Setup(ctx); err != nil {
			p.Send(tui.ErrorMsg{Err: err})
			return
		}
		a.saveSession()
		if err := a.coord.Run(ctx); err != nil {
			p.Send(tui.ErrorMsg{Err: err})
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// redirectLogs moves terminal log output to a file so it does not draw over
// the dashboard.
func (o *rootOptions) redirectLogs() error {
	var paths []string
	redirected := false
	for _, p := range o.cfg.Log.OutputPaths {
		if p == "stdout" || p == "stderr" {
			redirected = true
			continue
		}
		paths = append(paths, p)
	}
	if !redirected && len(paths) > 0 {
		return nil
	}

	dir := o.cfg.Storage.SessionDir
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	o.cfg.Log.OutputPaths = append(paths, filepath.Join(dir, "saic-ls.log"))
	o.cfg.Log.EnableColor = false
	return o.initLogger()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "saic-ls version %s\n", version)
		},
	}
}

// withStore opens the database for an offline command.
func withStore(o *rootOptions, fn func(cli.SnapshotStore) error) error {
	st, err := openStore(o.cfg)
	if err != nil {
		return err
	}
	if st == nil {
		return fn(nil)
	}

	err = fn(st)
	if cerr := st.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
