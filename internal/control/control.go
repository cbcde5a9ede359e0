// Package control sends remote commands and hands the schedule to the
// coordinator's action refresh so the result shows up quickly.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/saic"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

var (
	// ErrUnsupported is returned for commands the vehicle cannot execute,
	// either because of its type or because the capability is disabled.
	ErrUnsupported = errors.New("command not supported by vehicle")

	// ErrNoData is returned when a command needs a value from the snapshot
	// that has not been reported yet.
	ErrNoData = errors.New("vehicle data not available")
)

// Default climate settings, used until the caller picks others.
const (
	DefaultTemperature = 22
	DefaultFanSpeed    = 3
)

// Coordinator is the part of the coordinator the command path needs.
type Coordinator interface {
	VIN() string
	LatestSnapshot() *model.VehicleSnapshot
	RequestRefresh(ctx context.Context) error
	TriggerActionRefresh(action coordinator.Action)
}

// Recorder counts commands by outcome.
type Recorder interface {
	ObserveCommand(vin, action, status string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCommand(string, string, string) {}

// Commander issues commands for the coordinator's vehicle.
type Commander struct {
	client  saic.Client
	coord   Coordinator
	log     log.Logger
	metrics Recorder
}

// Option configures a Commander.
type Option func(*Commander)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Commander) {
		c.log = l
	}
}

// WithRecorder sets the command metrics.
func WithRecorder(r Recorder) Option {
	return func(c *Commander) {
		c.metrics = r
	}
}

// New creates a Commander.
func New(client saic.Client, coord Coordinator, opts ...Option) *Commander {
	c := &Commander{
		client:  client,
		coord:   coord,
		log:     log.NewNopLogger(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// send issues cmd and, on success, starts the action refresh for action.
func (c *Commander) send(ctx context.Context, action coordinator.Action, cmd saic.Command) error {
	vin := c.coord.VIN()

	if err := c.client.SendCommand(ctx, vin, cmd); err != nil {
		c.metrics.ObserveCommand(vin, string(action), "failed")
		c.log.Error(err, "command failed", "vin", vin, "action", string(action), "command", cmd.String())
		return fmt.Errorf("%s: %w", action, err)
	}

	c.metrics.ObserveCommand(vin, string(action), "success")
	c.log.Info("command sent", "vin", vin, "action", string(action), "command", cmd.String())
	c.coord.TriggerActionRefresh(action)
	return nil
}

func (c *Commander) unsupported(action coordinator.Action, why string) error {
	c.metrics.ObserveCommand(c.coord.VIN(), string(action), "unsupported")
	return fmt.Errorf("%s: %w: %s", action, ErrUnsupported, why)
}

// snapshot returns the latest snapshot or ErrNoData.
func (c *Commander) snapshot() (*model.VehicleSnapshot, error) {
	snap := c.coord.LatestSnapshot()
	if snap == nil {
		return nil, ErrNoData
	}
	return snap, nil
}

func (c *Commander) requireBattery(action coordinator.Action) error {
	snap, err := c.snapshot()
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if !snap.VehicleType.HasBattery() {
		return c.unsupported(action, fmt.Sprintf("%s has no traction battery", snap.VehicleType))
	}
	return nil
}

func (c *Commander) requireCapability(action coordinator.Action, enabled func(model.Capabilities) bool, name string) error {
	snap, err := c.snapshot()
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if !enabled(snap.Capabilities) {
		return c.unsupported(action, name+" disabled")
	}
	return nil
}

// Refresh polls now, outside the schedule.
func (c *Commander) Refresh(ctx context.Context) error {
	return c.coord.RequestRefresh(ctx)
}

// Alarm starts the horn and lights, or stops them.
func (c *Commander) Alarm(ctx context.Context, on bool) error {
	if on {
		return c.send(ctx, coordinator.ActionAlarm, saic.FindMyCar(true, true, false))
	}
	return c.send(ctx, coordinator.ActionAlarm, saic.FindMyCar(false, false, true))
}

// SetLocked locks or unlocks the doors.
func (c *Commander) SetLocked(ctx context.Context, locked bool) error {
	if locked {
		return c.send(ctx, coordinator.ActionLockUnlock, saic.Lock())
	}
	return c.send(ctx, coordinator.ActionLockUnlock, saic.Unlock())
}

// OpenTailgate opens the tailgate.
func (c *Commander) OpenTailgate(ctx context.Context) error {
	return c.send(ctx, coordinator.ActionTailgate, saic.OpenTailgate())
}

// ClimateMode selects how Climate runs the air conditioning.
type ClimateMode string

const (
	ClimateOff  ClimateMode = "off"
	ClimateCool ClimateMode = "cool"
	ClimateFan  ClimateMode = "fan_only"
)

// ClimateRequest is a climate change. Temperature is in °C and clamped to
// the vehicle's range; zero values pick the defaults.
type ClimateRequest struct {
	Mode        ClimateMode
	Temperature int
	FanSpeed    int
}

// Climate switches the air conditioning.
func (c *Commander) Climate(ctx context.Context, req ClimateRequest) error {
	if req.Mode == ClimateOff {
		return c.send(ctx, coordinator.ActionAC, saic.StopAC())
	}

	snap, err := c.snapshot()
	if err != nil {
		return fmt.Errorf("%s: %w", coordinator.ActionAC, err)
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	idx := snap.Climate.TemperatureIndex(temperature)

	switch req.Mode {
	case ClimateCool:
		fan := req.FanSpeed
		if fan == 0 {
			fan = DefaultFanSpeed
		}
		return c.send(ctx, coordinator.ActionAC, saic.StartClimate(idx, fan, true))
	case ClimateFan:
		return c.send(ctx, coordinator.ActionAC, saic.StartAC(&idx))
	default:
		return fmt.Errorf("%s: unsupported climate mode %q", coordinator.ActionAC, req.Mode)
	}
}

// FrontDefrost starts the windscreen defrost, or stops climate control.
func (c *Commander) FrontDefrost(ctx context.Context, on bool) error {
	if on {
		return c.send(ctx, coordinator.ActionFrontDefrost, saic.FrontDefrost())
	}
	return c.send(ctx, coordinator.ActionFrontDefrost, saic.StopAC())
}

// RearWindowHeat switches the rear window heater.
func (c *Commander) RearWindowHeat(ctx context.Context, on bool) error {
	return c.send(ctx, coordinator.ActionRearWindowHeat, saic.RearWindowHeat(on))
}

// HeatedSeats sets both front seat levels (0..3).
func (c *Commander) HeatedSeats(ctx context.Context, left, right int) error {
	if err := c.requireCapability(coordinator.ActionHeatedSeats,
		func(caps model.Capabilities) bool { return caps.HasHeatedSeats }, "heated seats"); err != nil {
		return err
	}

	cmd, err := saic.HeatedSeats(left, right)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", coordinator.ActionHeatedSeats, ErrInvalidValue, err)
	}
	return c.send(ctx, coordinator.ActionHeatedSeats, cmd)
}

// Sunroof opens or closes the sunroof.
func (c *Commander) Sunroof(ctx context.Context, open bool) error {
	if err := c.requireCapability(coordinator.ActionSunroof,
		func(caps model.Capabilities) bool { return caps.HasSunroof }, "sunroof"); err != nil {
		return err
	}
	return c.send(ctx, coordinator.ActionSunroof, saic.Sunroof(open))
}

// BatteryHeating switches battery pre-heating.
func (c *Commander) BatteryHeating(ctx context.Context, on bool) error {
	if err := c.requireBattery(coordinator.ActionBatteryHeating); err != nil {
		return err
	}
	if err := c.requireCapability(coordinator.ActionBatteryHeating,
		func(caps model.Capabilities) bool { return caps.HasBatteryHeating }, "battery heating"); err != nil {
		return err
	}
	return c.send(ctx, coordinator.ActionBatteryHeating, saic.BatteryHeating(on))
}

// Charging starts or stops charging.
func (c *Commander) Charging(ctx context.Context, start bool) error {
	if err := c.requireBattery(coordinator.ActionCharging); err != nil {
		return err
	}
	return c.send(ctx, coordinator.ActionCharging, saic.Charging(start))
}

// ChargingPortLock locks or unlocks the charging port.
func (c *Commander) ChargingPortLock(ctx context.Context, locked bool) error {
	if err := c.requireBattery(coordinator.ActionChargingPortLock); err != nil {
		return err
	}
	return c.send(ctx, coordinator.ActionChargingPortLock, saic.ChargingPortLock(!locked))
}

// SetTargetSOC sets the charge target in percent (40..100, steps of 10).
func (c *Commander) SetTargetSOC(ctx context.Context, percent int) error {
	if err := c.requireBattery(coordinator.ActionTargetSOC); err != nil {
		return err
	}

	cmd, err := saic.SetTargetSOC(percent, saic.CurrentLimitIgnore)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", coordinator.ActionTargetSOC, ErrInvalidValue, err)
	}
	return c.send(ctx, coordinator.ActionTargetSOC, cmd)
}

// SetChargeCurrentLimit changes the AC current limit. The gateway takes the
// limit together with the target SOC, so the reported target is resent.
func (c *Commander) SetChargeCurrentLimit(ctx context.Context, limit saic.ChargeCurrentLimit) error {
	if err := c.requireBattery(coordinator.ActionChargingCurrent); err != nil {
		return err
	}

	snap, err := c.snapshot()
	if err != nil {
		return fmt.Errorf("%s: %w", coordinator.ActionChargingCurrent, err)
	}
	target := snap.TargetSOC()
	if target == nil {
		return fmt.Errorf("%s: target SOC: %w", coordinator.ActionChargingCurrent, ErrNoData)
	}

	cmd, err := saic.SetTargetSOC(*target, limit)
	if err != nil {
		return fmt.Errorf("%s: %w", coordinator.ActionChargingCurrent, err)
	}
	return c.send(ctx, coordinator.ActionChargingCurrent, cmd)
}
