package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/pfrederiksen/saic-ls/internal/auth"
	"github.com/pfrederiksen/saic-ls/internal/cli"
	"github.com/pfrederiksen/saic-ls/internal/config"
	"github.com/pfrederiksen/saic-ls/internal/control"
	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/metrics"
	"github.com/pfrederiksen/saic-ls/internal/saic"
	"github.com/pfrederiksen/saic-ls/internal/store"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

// app wires the gateway client, storage, metrics and coordinator for one
// vehicle.
type app struct {
	cfg       *config.Config
	log       log.Logger
	client    *saic.HTTPClient
	sessions  *auth.SessionCache
	store     *store.Store
	metrics   *metrics.Recorder
	coord     *coordinator.Coordinator
	commander *control.Commander
}

func (o *rootOptions) newApp() (*app, error) {
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	baseURL, err := cfg.BaseURL()
	if err != nil {
		return nil, err
	}
	coordOpts, err := cfg.CoordinatorOptions()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: o.log}

	// A cached session lets restarts skip the login
	var session *saic.Session
	a.sessions, err = auth.NewSessionCache(cfg.Storage.SessionDir)
	if err != nil {
		o.log.Warn("session cache unavailable", "error", err.Error())
	} else if session, err = a.sessions.Load(cfg.Account.Username); err != nil {
		o.log.Warn("could not load cached session", "error", err.Error())
	}

	password := cfg.Account.Password
	if password == "" && session == nil {
		if password, err = o.prompt(); err != nil {
			return nil, err
		}
	}

	a.client = saic.NewHTTPClient(
		saic.WithBaseURL(baseURL),
		saic.WithCredentials(cfg.Account.Username, password, cfg.Account.CountryCode),
		saic.WithSession(session),
		saic.WithLogger(o.log.WithName("saic")),
	)

	if a.store, err = openStore(cfg); err != nil {
		return nil, err
	}

	a.metrics = metrics.New()

	opts := []coordinator.Option{
		coordinator.WithLogger(o.log.WithName("coordinator")),
		coordinator.WithOptions(coordOpts),
		coordinator.WithRecorder(a.metrics),
	}
	if a.store != nil {
		opts = append(opts, coordinator.WithStore(a.store))
	}
	if t, ok := cfg.VehicleType(); ok {
		opts = append(opts, coordinator.WithVehicleType(t))
	}
	a.coord = coordinator.New(a.client, cfg.Account.VIN, opts...)

	a.commander = control.New(a.client, a.coord,
		control.WithLogger(o.log.WithName("control")),
		control.WithRecorder(a.metrics),
	)

	return a, nil
}

// snapshots returns the store as a cli.SnapshotStore, nil when disabled.
func (a *app) snapshots() cli.SnapshotStore {
	if a.store == nil {
		return nil
	}
	return a.store
}

// saveSession caches the current gateway session for the next start.
func (a *app) saveSession() {
	if a.sessions == nil {
		return
	}
	session := a.client.Session()
	if session == nil {
		return
	}
	if err := a.sessions.Save(a.cfg.Account.Username, session); err != nil {
		a.log.Warn("could not cache session", "error", err.Error())
	}
}

func (a *app) close() error {
	a.coord.Close()
	a.saveSession()

	var err error
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	return err
}

// openStore opens the configured database. It returns nil when storage is
// disabled.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Storage.Disable {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("account.password is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}
