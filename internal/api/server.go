// Package api serves the vehicle snapshot, remote commands and metrics over
// HTTP, with live snapshot updates on a websocket.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/pfrederiksen/saic-ls/internal/control"
	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/store"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

// Config holds the listener settings. An empty Listen disables the server.
type Config struct {
	Listen   string `mapstructure:"listen"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether a listen address is configured.
func (c Config) Enabled() bool {
	return c.Listen != ""
}

// Coordinator is the part of the coordinator the API exposes.
type Coordinator interface {
	VIN() string
	LatestSnapshot() *model.VehicleSnapshot
	RequestRefresh(ctx context.Context) error
	Options() coordinator.Options
	UpdateOptions(overrides map[string]any) error
}

// Executor runs a named command, see control.Commander.Execute.
type Executor interface {
	Execute(ctx context.Context, name, value string) error
}

// StatsProvider reports storage statistics for the health endpoint.
type StatsProvider interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

type route struct {
	Methods     []string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// Server wraps an http.Server with the API routes.
type Server struct {
	*http.Server

	coord   Coordinator
	exec    Executor
	stats   StatsProvider
	metrics http.Handler
	hub     *Hub
	log     log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStats adds storage statistics to /healthz.
func WithStats(p StatsProvider) Option {
	return func(s *Server) {
		s.stats = p
	}
}

// New creates the server. Feed it snapshots with Publish.
func New(cfg Config, coord Coordinator, exec Executor, opts ...Option) *Server {
	s := &Server{
		coord: coord,
		exec:  exec,
		log:   log.Std(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithName("api")
	s.hub = NewHub(s.log)

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	if cfg.Username != "" {
		api.Use(basicAuth(cfg.Username, cfg.Password))
	}
	api.Handle("/ws", s.hub).Methods(http.MethodGet)

	rest := api.NewRoute().Subrouter()
	rest.Use(jsonHandler)

	routes := map[string]route{
		"snapshot":   {[]string{http.MethodGet}, "/snapshot", s.snapshotHandler},
		"refresh":    {[]string{http.MethodPost}, "/refresh", s.refreshHandler},
		"action":     {[]string{http.MethodPost}, "/actions/{action:[a-z_]+}", s.actionHandler},
		"options":    {[]string{http.MethodGet}, "/options", s.optionsHandler},
		"setoptions": {[]string{http.MethodPut}, "/options", s.updateOptionsHandler},
	}
	for _, r := range routes {
		rest.Methods(r.Methods...).Path(r.Pattern).Handler(r.HandlerFunc)
	}

	s.Server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router returns the root router.
func (s *Server) Router() *mux.Router {
	return s.Handler.(*mux.Router)
}

// Publish forwards a snapshot to websocket clients.
func (s *Server) Publish(snap model.VehicleSnapshot) {
	s.hub.Broadcast(snap)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	s.log.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func jsonHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h.ServeHTTP(w, r)
	})
}

func basicAuth(username, password string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="saic-ls"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func jsonResult(w http.ResponseWriter, status int, res any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

func jsonError(w http.ResponseWriter, status int, err error) {
	jsonResult(w, status, map[string]string{"error": err.Error()})
}

// errorStatus maps command and coordinator errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, control.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, control.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, control.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coordinator.ErrNotReady),
		errors.Is(err, coordinator.ErrClosed),
		errors.Is(err, control.ErrNoData):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	res := struct {
		Status         string     `json:"status"`
		VIN            string     `json:"vin"`
		Ready          bool       `json:"ready"`
		LastUpdate     *time.Time `json:"last_update,omitempty"`
		Clients        int        `json:"websocket_clients"`
		StoredVehicles *int64     `json:"stored_vehicles,omitempty"`
		DatabaseSize   *int64     `json:"database_size,omitempty"`
	}{
		Status:  "ok",
		VIN:     s.coord.VIN(),
		Clients: s.hub.Clients(),
	}

	if snap := s.coord.LatestSnapshot(); snap != nil {
		res.Ready = true
		if !snap.Runtime.LastUpdate.IsZero() {
			t := snap.Runtime.LastUpdate
			res.LastUpdate = &t
		}
	}

	if s.stats != nil {
		stats, err := s.stats.Stats(r.Context())
		if err != nil {
			s.log.Warn("read storage stats", "error", err)
			res.Status = "degraded"
		} else {
			res.StoredVehicles = &stats.Vehicles
			res.DatabaseSize = &stats.DatabaseSize
		}
	}

	w.Header().Set("Content-Type", "application/json")
	jsonResult(w, http.StatusOK, res)
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.LatestSnapshot()
	if snap == nil {
		jsonError(w, http.StatusServiceUnavailable, coordinator.ErrNotReady)
		return
	}
	jsonResult(w, http.StatusOK, snap)
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.RequestRefresh(r.Context()); err != nil {
		jsonError(w, errorStatus(err), err)
		return
	}
	jsonResult(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

type actionRequest struct {
	Value string `json:"value"`
}

// actionValue reads the command value from a JSON body or the value query
// parameter.
func actionValue(r *http.Request) (string, error) {
	if v := r.URL.Query().Get("value"); v != "" {
		return v, nil
	}

	var req actionRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return req.Value, nil
}

func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	value, err := actionValue(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.exec.Execute(r.Context(), action, value); err != nil {
		s.log.Warn("command failed", "vin", s.coord.VIN(), "action", action, "error", err)
		jsonError(w, errorStatus(err), err)
		return
	}
	jsonResult(w, http.StatusAccepted, map[string]string{"action": action, "status": "sent"})
}

// optionsView renders options in the units Options.Apply accepts, so a view
// can be sent back unchanged.
func optionsView(o coordinator.Options) map[string]any {
	minutes := func(d time.Duration) any { return durationValue(d, time.Minute) }
	seconds := func(d time.Duration) any { return durationValue(d, time.Second) }

	view := map[string]any{
		coordinator.KeyUpdateInterval:        minutes(o.UpdateInterval),
		coordinator.KeyChargingInterval:      minutes(o.ChargingInterval),
		coordinator.KeyPoweredInterval:       minutes(o.PoweredInterval),
		coordinator.KeyAfterShutdownInterval: minutes(o.AfterShutdownInterval),
		coordinator.KeyGracePeriodInterval:   minutes(o.GracePeriodInterval),
		coordinator.KeyAfterActionDelay:      seconds(o.AfterActionDelay),
		coordinator.KeyRetryLimit:            o.Retry.Limit,
		coordinator.KeyRetryBackoff:          seconds(o.Retry.Backoff),
		coordinator.KeyRetryExponential:      o.Retry.Exponential,
		coordinator.KeyHasSunroof:            o.Capabilities.HasSunroof,
		coordinator.KeyHasHeatedSeats:        o.Capabilities.HasHeatedSeats,
		coordinator.KeyHasBatteryHeating:     o.Capabilities.HasBatteryHeating,
	}
	for _, a := range coordinator.Actions {
		view[a.OptionKey()] = minutes(o.ActionInterval(a))
	}
	return view
}

// durationValue is d as a count of unit, or a duration string such as
// "1m30s" when d is not a whole number of units.
func durationValue(d, unit time.Duration) any {
	if d != 0 && d%unit == 0 {
		return int(d / unit)
	}
	return d.String()
}

func (s *Server) optionsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResult(w, http.StatusOK, optionsView(s.coord.Options()))
}

func (s *Server) updateOptionsHandler(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, 16384)).Decode(&overrides); err != nil {
		jsonError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	if err := s.coord.UpdateOptions(overrides); err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}
	jsonResult(w, http.StatusOK, optionsView(s.coord.Options()))
}
