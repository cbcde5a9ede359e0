package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/saic-ls/internal/api"
	"github.com/pfrederiksen/saic-ls/internal/mqtt"
)

func newRunCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the vehicle and serve MQTT and HTTP until interrupted",
		Long: `Run logs in, resolves the vehicle and polls it until SIGINT or SIGTERM.

The service will:
- Adapt the poll interval to charging, driving and recent activity
- Publish Home Assistant discovery and state when mqtt.broker is set
- Accept commands over MQTT and, when api.listen is set, over HTTP
- Persist the latest snapshot and activity timestamps unless storage.disable is set`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.newApp()
			if err != nil {
				return err
			}
			return runAndClose(a, func() error { return a.serve(ctx) })
		},
	}
}

// runAndClose runs fn and always closes a, reporting both errors.
func runAndClose(a *app, fn func() error) error {
	err := fn()
	if cerr := a.close(); cerr != nil {
		a.log.Warn("shutdown", "error", cerr.Error())
	}
	return err
}

// serve runs the coordinator together with the enabled bridges until ctx is
// done or one of them fails.
func (a *app) serve(ctx context.Context) error {
	if err := a.coord.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	a.saveSession()

	vin := a.coord.VIN()
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.MQTT.Enabled() {
		bridge := mqtt.New(a.cfg.MQTT, vin, a.commander, mqtt.WithLogger(a.log.WithName("mqtt")))
		if err := a.coord.Subscribe(bridge.Publish); err != nil {
			return err
		}
		if snap := a.coord.LatestSnapshot(); snap != nil {
			bridge.Publish(*snap)
		}
		g.Go(func() error { return bridge.Run(gctx) })
	}

	if a.cfg.API.Enabled() {
		opts := []api.Option{
			api.WithLogger(a.log.WithName("api")),
			api.WithMetrics(a.metrics.Handler()),
		}
		if a.store != nil {
			opts = append(opts, api.WithStats(a.store))
		}
		srv := api.New(a.cfg.API, a.coord, a.commander, opts...)
		if err := a.coord.Subscribe(srv.Publish); err != nil {
			return err
		}
		if snap := a.coord.LatestSnapshot(); snap != nil {
			srv.Publish(*snap)
		}
		g.Go(func() error { return srv.Run(gctx) })
	}

	g.Go(func() error { return a.coord.Run(gctx) })

	a.log.Info("saic-ls running",
		"vin", vin,
		"mqtt", a.cfg.MQTT.Enabled(),
		"api", a.cfg.API.Listen,
		"storage", a.store != nil,
	)

	err := g.Wait()
	a.log.Info("saic-ls stopped")
	return err
}
