// Package coordinator decides when to refresh a vehicle from the gateway.
//
// One Coordinator owns one VIN. It polls on an interval chosen from the
// vehicle's power, charging and activity state, rejects placeholder payloads
// with bounded retries, keeps the last good payloads, and temporarily takes
// over the interval after a control command to confirm its effect.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/saic"
	"github.com/pfrederiksen/saic-ls/internal/tracker"
	"github.com/pfrederiksen/saic-ls/internal/validate"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

const topicSnapshot = "snapshot"

// Payload names used in logs and metrics.
const (
	payloadInfo     = "info"
	payloadStatus   = "status"
	payloadCharging = "charging"
)

var (
	// ErrNotReady is returned by operations that need a successful Setup.
	ErrNotReady = errors.New("coordinator not set up")

	// ErrInitialFetch marks a payload that could not be fetched during setup
	// while no previous value existed.
	ErrInitialFetch = errors.New("initial fetch failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("coordinator closed")
)

// Store persists the runtime timestamps and the latest snapshot.
type Store interface {
	LoadTimestamps(ctx context.Context, vin string) (tracker.Timestamps, error)
	SaveTimestamps(ctx context.Context, vin string, ts tracker.Timestamps) error
	SaveSnapshot(ctx context.Context, snap *model.VehicleSnapshot) error
}

// Coordinator polls one vehicle and publishes snapshots.
type Coordinator struct {
	client    saic.Client
	log       log.Logger
	clock     clock.Clock
	validator *validate.Validator
	store     Store
	metrics   Recorder
	bus       EventBus.Bus

	typeOverride model.VehicleType

	// pollMu admits one poll at a time, whoever asks for it.
	pollMu sync.Mutex
	// seqMu serializes action-refresh sequences.
	seqMu sync.Mutex

	mu             sync.Mutex
	vin            string
	opts           Options
	tracker        *tracker.Tracker
	reducer        *model.Reducer
	vehicleType    model.VehicleType
	climate        model.ClimateRange
	updateInterval time.Duration
	mode           Mode
	actionActive   bool
	nextUpdate     time.Time
	lastUpdate     time.Time
	ready          bool
	closed         bool
	cancelSeq      context.CancelFunc

	reschedule chan struct{}

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithClock sets the clock, for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

// WithOptions sets the intervals.
func WithOptions(opts Options) Option {
	return func(c *Coordinator) {
		c.opts = opts.Clone()
	}
}

// WithValidator sets the generic-response rules.
func WithValidator(v *validate.Validator) Option {
	return func(c *Coordinator) {
		c.validator = v
	}
}

// WithStore enables persistence of timestamps and snapshots.
func WithStore(s Store) Option {
	return func(c *Coordinator) {
		c.store = s
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.metrics = r
	}
}

// WithVehicleType overrides the classification derived from the vehicle
// configuration.
func WithVehicleType(t model.VehicleType) Option {
	return func(c *Coordinator) {
		c.typeOverride = t
	}
}

// New creates a coordinator for vin. An empty vin selects the only vehicle
// on the account during Setup.
func New(client saic.Client, vin string, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:     client,
		vin:        vin,
		log:        log.NewNopLogger(),
		clock:      clock.New(),
		validator:  validate.NewValidator(),
		metrics:    nopRecorder{},
		bus:        EventBus.New(),
		opts:       DefaultOptions(),
		reducer:    model.NewReducer(),
		mode:       ModeIdle,
		reschedule: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.lifeCtx, c.lifeCancel = context.WithCancel(context.Background())
	c.tracker = tracker.New(c.clock.Now())
	c.updateInterval = c.opts.UpdateInterval
	return c
}

// VIN returns the vehicle this coordinator owns.
func (c *Coordinator) VIN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vin
}

// Setup logs in, resolves the vehicle and performs the first poll.
//
// A failed login or an unknown VIN fails setup and no snapshot is ever
// published. Once logged in, payloads that cannot be fetched are left empty
// and setup succeeds.
func (c *Coordinator) Setup(ctx context.Context) error {
	if err := c.client.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	vehicles, err := c.client.ListVehicles(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}

	info, err := ensureVehicle(c.VIN(), vehicles)
	if err != nil {
		return err
	}

	vehicleType := c.typeOverride
	if vehicleType == "" {
		vehicleType = model.ClassifyVehicle(info)
	}
	climate := model.ClimateRangeFor(info.Series)

	c.mu.Lock()
	c.vin = info.VIN
	c.vehicleType = vehicleType
	c.climate = climate
	c.reducer.Dispatch(model.InfoReceived{Info: info, At: c.clock.Now()})
	c.mu.Unlock()

	c.restoreTimestamps(ctx)

	c.log.Info("vehicle resolved",
		"vin", info.VIN,
		"model", info.ModelName,
		"series", info.Series,
		"vehicle_type", string(vehicleType),
		"climate_min", climate.MinTemp,
		"climate_max", climate.MaxTemp)

	if err := c.poll(ctx, true); err != nil {
		if saic.IsAuthError(err) || ctx.Err() != nil {
			return fmt.Errorf("initial poll: %w", err)
		}
		c.log.Warn("initial poll incomplete, continuing with empty fields", "error", err.Error())
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	c.publish()
	return nil
}

// ensureVehicle picks vin from the account's vehicles.
func ensureVehicle(vin string, vehicles []saic.VehicleInfo) (*saic.VehicleInfo, error) {
	if vin == "" {
		if len(vehicles) == 1 {
			return &vehicles[0], nil
		}
		vins := make([]string, 0, len(vehicles))
		for _, v := range vehicles {
			vins = append(vins, v.VIN)
		}
		return nil, fmt.Errorf("vin required, account has %d vehicles %v", len(vehicles), vins)
	}

	for i := range vehicles {
		if vehicles[i].VIN == vin {
			return &vehicles[i], nil
		}
	}
	return nil, fmt.Errorf("cannot find vehicle %s: %w", vin, saic.ErrNotFound)
}

func (c *Coordinator) restoreTimestamps(ctx context.Context) {
	if c.store == nil {
		return
	}

	vin := c.VIN()
	ts, err := c.store.LoadTimestamps(ctx, vin)
	if err != nil {
		c.log.Warn("could not restore runtime timestamps", "vin", vin, "error", err.Error())
		return
	}

	c.mu.Lock()
	c.tracker.Restore(ts, c.clock.Now())
	c.mu.Unlock()
}

// Run drives the polling schedule until ctx is cancelled or Close is called.
// It returns nil on shutdown and the error when the gateway rejects the
// credentials; any other poll failure is logged and polling continues.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	ready, closed := c.ready, c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !ready {
		return ErrNotReady
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.lifeCtx, cancel)
	defer stop()

	for {
		c.mu.Lock()
		active := c.actionActive
		next := c.nextUpdate
		c.mu.Unlock()

		// The sequencer owns the schedule; wait until it hands it back.
		if active {
			select {
			case <-ctx.Done():
				return nil
			case <-c.reschedule:
				continue
			}
		}

		wait := next.Sub(c.clock.Now())
		if wait < 0 {
			wait = 0
		}
		timer := c.clock.Timer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-c.reschedule:
			timer.Stop()
			continue
		case <-timer.C:
		}

		if err := c.poll(ctx, false); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if saic.IsAuthError(err) || errors.Is(err, saic.ErrNotAuthenticated) {
				return fmt.Errorf("poll: %w", err)
			}
			c.log.Error(err, "poll failed", "vin", c.VIN())
		}
	}
}

// RequestRefresh polls now, outside the schedule. It waits for a poll that
// is already running to finish first.
func (c *Coordinator) RequestRefresh(ctx context.Context) error {
	c.mu.Lock()
	ready, closed := c.ready, c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !ready {
		return ErrNotReady
	}
	return c.poll(ctx, false)
}

// poll performs one fetch cycle. Only authentication failures and
// cancellation abort it; every other failure keeps the previous payload and
// is returned after the cycle completed.
func (c *Coordinator) poll(ctx context.Context, initial bool) (err error) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	start := c.clock.Now()
	defer func() {
		result := "success"
		switch {
		case err == nil:
		case saic.IsAuthError(err):
			result = "auth_error"
		case ctx.Err() != nil:
			result = "cancelled"
		default:
			result = "partial"
		}
		c.metrics.ObservePoll(c.VIN(), result, c.clock.Since(start))
	}()

	c.mu.Lock()
	vin := c.vin
	opts := c.opts
	vehicleType := c.vehicleType
	prev := c.reducer.Snapshot()
	c.mu.Unlock()

	var errs error

	info, infoErr := c.fetchInfo(ctx, vin, opts)
	if fatal(ctx, infoErr) {
		return infoErr
	}
	if infoErr != nil {
		c.log.Warn("vehicle info unavailable, keeping previous", "vin", vin, "error", infoErr.Error())
	}

	var prevStatus *saic.StatusPayload
	var prevCharging *saic.ChargingPayload
	if prev != nil {
		prevStatus, prevCharging = prev.Status, prev.Charging
	}

	status, statusErr := fetchWithRetries(ctx, c.clock,
		func(ctx context.Context) (*saic.StatusPayload, error) {
			return c.client.GetStatus(ctx, vin)
		},
		c.statusCheck(vin),
		opts.Retry,
		c.onAttempt(vin, payloadStatus),
	)
	if fatal(ctx, statusErr) {
		return statusErr
	}
	errs = multierr.Append(errs, c.fetchFailed(vin, payloadStatus, statusErr, prevStatus != nil, initial))

	var charging *saic.ChargingPayload
	if vehicleType.HasBattery() {
		var chargingErr error
		charging, chargingErr = fetchWithRetries(ctx, c.clock,
			func(ctx context.Context) (*saic.ChargingPayload, error) {
				return c.client.GetChargingStatus(ctx, vin)
			},
			c.chargingCheck(vin),
			opts.Retry,
			c.onAttempt(vin, payloadCharging),
		)
		if fatal(ctx, chargingErr) {
			return chargingErr
		}
		errs = multierr.Append(errs, c.fetchFailed(vin, payloadCharging, chargingErr, prevCharging != nil, initial))
	}

	now := c.clock.Now()

	c.mu.Lock()
	obs := c.tracker.Observe(status, charging, now)
	c.reducer.Dispatch(model.InfoReceived{Info: info, At: now})
	c.reducer.Dispatch(model.StatusAccepted{Status: status, At: now})
	c.reducer.Dispatch(model.ChargingAccepted{Charging: charging, At: now})
	c.lastUpdate = now
	if !c.actionActive {
		c.applyPolicyLocked(now)
	}
	c.nextUpdate = now.Add(c.updateInterval)
	timestamps := c.tracker.Timestamps
	poweredOn := c.tracker.IsPoweredOn
	interval, mode := c.updateInterval, c.mode
	c.mu.Unlock()

	if obs.ActivityDetected {
		c.log.Debug("vehicle activity detected", "vin", vin, "fields", obs.ChangedFields)
	}
	if obs.PowerChanged {
		c.log.Info("power state changed", "vin", vin, "powered_on", poweredOn)
	}
	c.log.Debug("poll complete", "vin", vin, "interval", interval.String(), "mode", string(mode))

	c.persist(ctx, vin, timestamps)
	c.publish()
	c.signalReschedule()

	return errs
}

func fatal(ctx context.Context, err error) bool {
	return err != nil && (saic.IsAuthError(err) || errors.Is(err, saic.ErrNotAuthenticated) || ctx.Err() != nil)
}

// fetchInfo refreshes the descriptor with one retry.
func (c *Coordinator) fetchInfo(ctx context.Context, vin string, opts Options) (*saic.VehicleInfo, error) {
	policy := opts.Retry
	policy.Limit = 2
	policy.Exponential = false

	return fetchWithRetries(ctx, c.clock,
		func(ctx context.Context) (*saic.VehicleInfo, error) {
			vehicles, err := c.client.ListVehicles(ctx)
			if err != nil {
				return nil, err
			}
			return ensureVehicle(vin, vehicles)
		},
		nil,
		policy,
		c.onAttempt(vin, payloadInfo),
	)
}

func (c *Coordinator) statusCheck(vin string) func(*saic.StatusPayload) (bool, error) {
	return func(status *saic.StatusPayload) (bool, error) {
		reasons, err := c.validator.StatusReasons(status)
		if len(reasons) > 0 {
			c.metrics.ObserveGeneric(vin, payloadStatus)
			c.log.Debug("generic status response", "vin", vin, "reasons", reasons)
		}
		return len(reasons) > 0, err
	}
}

func (c *Coordinator) chargingCheck(vin string) func(*saic.ChargingPayload) (bool, error) {
	return func(charging *saic.ChargingPayload) (bool, error) {
		reasons, err := c.validator.ChargingReasons(charging)
		if len(reasons) > 0 {
			c.metrics.ObserveGeneric(vin, payloadCharging)
			c.log.Debug("generic charging response", "vin", vin, "reasons", reasons)
		}
		return len(reasons) > 0, err
	}
}

func (c *Coordinator) onAttempt(vin, payload string) func(uint, error) {
	return func(attempt uint, err error) {
		c.metrics.ObserveFetchAttempt(vin, payload, err)
		c.log.Debug("fetch attempt failed", "vin", vin, "payload", payload, "attempt", attempt, "error", err.Error())
	}
}

// fetchFailed classifies a non-fatal fetch error. Keeping a previous value
// is only a warning; having nothing to show during setup is an error.
func (c *Coordinator) fetchFailed(vin, payload string, err error, havePrevious, initial bool) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, validate.ErrMalformedPayload):
		c.log.Error(err, "malformed payload", "vin", vin, "payload", payload)
		return fmt.Errorf("%s: %w", payload, err)
	case initial && !havePrevious:
		return fmt.Errorf("%s: %w: %w", payload, ErrInitialFetch, err)
	case havePrevious:
		c.log.Warn("keeping previous payload", "vin", vin, "payload", payload, "error", err.Error())
		return nil
	default:
		c.log.Warn("payload unavailable", "vin", vin, "payload", payload, "error", err.Error())
		return nil
	}
}

func (c *Coordinator) persist(ctx context.Context, vin string, ts tracker.Timestamps) {
	if c.store == nil {
		return
	}

	if err := c.store.SaveTimestamps(ctx, vin, ts); err != nil {
		c.log.Error(err, "save runtime timestamps", "vin", vin)
	}

	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		c.log.Error(err, "save snapshot", "vin", vin)
	}
}

// applyPolicyLocked must be called with mu held and the action gate clear.
func (c *Coordinator) applyPolicyLocked(now time.Time) {
	interval, mode := SelectInterval(PolicyState{
		IsPoweredOn:    c.tracker.IsPoweredOn,
		IsCharging:     c.tracker.IsCharging,
		LastActivity:   c.tracker.LastActivity,
		LastPoweredOff: c.tracker.LastPoweredOff,
	}, c.opts, now)

	if interval != c.updateInterval || mode != c.mode {
		c.log.Info("update interval changed",
			"vin", c.vin,
			"interval", interval.String(),
			"mode", string(mode))
	}

	c.updateInterval = interval
	c.mode = mode
	c.metrics.SetInterval(c.vin, interval, string(mode))
}

func (c *Coordinator) runtimeLocked() model.RuntimeView {
	return model.RuntimeView{
		IsCharging:     c.tracker.IsCharging,
		IsPoweredOn:    c.tracker.IsPoweredOn,
		LastActivity:   c.tracker.LastActivity,
		LastPoweredOn:  c.tracker.LastPoweredOn,
		LastPoweredOff: c.tracker.LastPoweredOff,
		UpdateInterval: c.updateInterval,
		Mode:           string(c.mode),
		NextUpdate:     c.nextUpdate,
		LastUpdate:     c.lastUpdate,
		ActionActive:   c.actionActive,
	}
}

func (c *Coordinator) snapshotLocked() *model.VehicleSnapshot {
	snap := c.reducer.Dispatch(model.RuntimeUpdated{
		Runtime:      c.runtimeLocked(),
		Capabilities: c.opts.Capabilities,
		VehicleType:  c.vehicleType,
		Climate:      c.climate,
	})
	snap.VIN = c.vin
	return snap
}

// publish sends the current snapshot to subscribers. Nothing is published
// before Setup succeeded.
func (c *Coordinator) publish() {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Publish(topicSnapshot, *snap)
}

func (c *Coordinator) signalReschedule() {
	select {
	case c.reschedule <- struct{}{}:
	default:
	}
}

// LatestSnapshot returns a copy of the latest snapshot, or nil before Setup
// succeeded.
func (c *Coordinator) LatestSnapshot() *model.VehicleSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return nil
	}
	snap := c.reducer.Snapshot()
	snap.VIN = c.vin
	snap.Runtime = c.runtimeLocked()
	snap.Capabilities = c.opts.Capabilities
	snap.VehicleType = c.vehicleType
	snap.Climate = c.climate
	return snap
}

// Options returns a copy of the active options.
func (c *Coordinator) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Clone()
}

// UpdateOptions applies overrides (see Options.Apply). The new intervals
// take effect immediately for the next scheduled poll.
func (c *Coordinator) UpdateOptions(overrides map[string]any) error {
	c.mu.Lock()
	next, err := c.opts.Apply(overrides)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("update options: %w", err)
	}
	c.opts = next

	if !c.actionActive && !c.lastUpdate.IsZero() {
		c.applyPolicyLocked(c.clock.Now())
		c.nextUpdate = c.lastUpdate.Add(c.updateInterval)
	}
	c.mu.Unlock()

	c.log.Info("options updated", "vin", c.VIN(), "keys", len(overrides))
	c.publish()
	c.signalReschedule()
	return nil
}

// Subscribe registers fn for every published snapshot. fn runs on the
// publishing goroutine and must not block.
func (c *Coordinator) Subscribe(fn func(model.VehicleSnapshot)) error {
	return c.bus.Subscribe(topicSnapshot, fn)
}

// Close stops Run, cancels a running action sequence and waits for it.
// Calling Close more than once is safe.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.lifeCancel()
	c.wg.Wait()
}
