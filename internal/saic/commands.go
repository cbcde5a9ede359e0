package saic

import (
	"context"
	"fmt"
	"net/http"
)

const controlPath = "vehicle/control"

// CommandName identifies a remote control command on the gateway.
type CommandName string

const (
	CmdFindMyCar        CommandName = "find_my_car"
	CmdCharging         CommandName = "charging"
	CmdBatteryHeating   CommandName = "battery_heating"
	CmdTargetSOC        CommandName = "target_soc"
	CmdHeatedSeats      CommandName = "heated_seats"
	CmdRearWindowHeat   CommandName = "rear_window_heat"
	CmdStartAC          CommandName = "start_ac"
	CmdClimate          CommandName = "climate"
	CmdFrontDefrost     CommandName = "front_defrost"
	CmdStopAC           CommandName = "stop_ac"
	CmdChargingPortLock CommandName = "charging_port_lock"
	CmdLock             CommandName = "lock"
	CmdUnlock           CommandName = "unlock"
	CmdOpenTailgate     CommandName = "open_tailgate"
	CmdSunroof          CommandName = "sunroof"
)

// Command is a remote control command. Build it with the constructors below.
type Command struct {
	Name   CommandName    `json:"command"`
	Params map[string]any `json:"params,omitempty"`
}

func (c Command) String() string {
	return string(c.Name)
}

// ChargeCurrentLimit is the AC charging current limit code.
type ChargeCurrentLimit int

const (
	CurrentLimitIgnore ChargeCurrentLimit = iota
	CurrentLimit6A
	CurrentLimit8A
	CurrentLimit16A
	CurrentLimitMax
)

var currentLimitLabels = map[ChargeCurrentLimit]string{
	CurrentLimitIgnore: "Ignore",
	CurrentLimit6A:     "6A",
	CurrentLimit8A:     "8A",
	CurrentLimit16A:    "16A",
	CurrentLimitMax:    "Max",
}

func (l ChargeCurrentLimit) String() string {
	if s, ok := currentLimitLabels[l]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", int(l))
}

// ParseChargeCurrentLimit maps a label such as "16A" back to its code.
func ParseChargeCurrentLimit(s string) (ChargeCurrentLimit, error) {
	for code, label := range currentLimitLabels {
		if label == s {
			return code, nil
		}
	}
	return 0, fmt.Errorf("invalid charging current limit: %q", s)
}

// TargetSOCCode maps a target SOC percentage (40..100 in steps of 10) to the
// gateway code 1..7.
func TargetSOCCode(percent int) (int, error) {
	if percent < 40 || percent > 100 || percent%10 != 0 {
		return 0, fmt.Errorf("invalid target SOC percentage: %d", percent)
	}
	return (percent-40)/10 + 1, nil
}

// TargetSOCPercent is the inverse of TargetSOCCode.
func TargetSOCPercent(code int) (int, bool) {
	if code < 1 || code > 7 {
		return 0, false
	}
	return 40 + (code-1)*10, true
}

// FindMyCar triggers (or stops) the horn/lights alarm.
func FindMyCar(withHorn, withLights, stop bool) Command {
	return Command{Name: CmdFindMyCar, Params: map[string]any{
		"with_horn":   withHorn,
		"with_lights": withLights,
		"should_stop": stop,
	}}
}

// Charging starts or stops charging.
func Charging(start bool) Command {
	return Command{Name: CmdCharging, Params: map[string]any{"stop_charging": !start}}
}

// BatteryHeating enables or disables battery pre-heating.
func BatteryHeating(enable bool) Command {
	return Command{Name: CmdBatteryHeating, Params: map[string]any{"enable": enable}}
}

// SetTargetSOC sets the charge target and optionally the current limit.
func SetTargetSOC(percent int, limit ChargeCurrentLimit) (Command, error) {
	code, err := TargetSOCCode(percent)
	if err != nil {
		return Command{}, err
	}
	if _, ok := currentLimitLabels[limit]; !ok {
		return Command{}, fmt.Errorf("invalid charging current limit code: %d", int(limit))
	}
	return Command{Name: CmdTargetSOC, Params: map[string]any{
		"target_soc":           code,
		"charge_current_limit": int(limit),
	}}, nil
}

// HeatedSeats sets both front seat heating levels (0..3).
func HeatedSeats(left, right int) (Command, error) {
	for _, lvl := range []int{left, right} {
		if lvl < 0 || lvl > 3 {
			return Command{}, fmt.Errorf("invalid seat heat level: %d", lvl)
		}
	}
	return Command{Name: CmdHeatedSeats, Params: map[string]any{
		"left_side_level":  left,
		"right_side_level": right,
	}}, nil
}

// RearWindowHeat toggles the rear window heater.
func RearWindowHeat(enable bool) Command {
	return Command{Name: CmdRearWindowHeat, Params: map[string]any{"enable": enable}}
}

// StartAC starts the air conditioning, optionally at a temperature index.
func StartAC(temperatureIdx *int) Command {
	cmd := Command{Name: CmdStartAC}
	if temperatureIdx != nil {
		cmd.Params = map[string]any{"temperature_idx": *temperatureIdx}
	}
	return cmd
}

// StartClimate starts climate control with explicit settings.
func StartClimate(temperatureIdx, fanSpeed int, acOn bool) Command {
	return Command{Name: CmdClimate, Params: map[string]any{
		"temperature_idx": temperatureIdx,
		"fan_speed":       fanSpeed,
		"ac_on":           acOn,
	}}
}

// FrontDefrost starts the front windscreen defrost.
func FrontDefrost() Command { return Command{Name: CmdFrontDefrost} }

// StopAC stops climate control.
func StopAC() Command { return Command{Name: CmdStopAC} }

// ChargingPortLock locks or unlocks the charging port.
func ChargingPortLock(unlock bool) Command {
	return Command{Name: CmdChargingPortLock, Params: map[string]any{"unlock": unlock}}
}

// Lock locks the vehicle.
func Lock() Command { return Command{Name: CmdLock} }

// Unlock unlocks the vehicle.
func Unlock() Command { return Command{Name: CmdUnlock} }

// OpenTailgate opens the tailgate.
func OpenTailgate() Command { return Command{Name: CmdOpenTailgate} }

// Sunroof opens or closes the sunroof.
func Sunroof(open bool) Command {
	return Command{Name: CmdSunroof, Params: map[string]any{"should_open": open}}
}

type controlRequest struct {
	VIN string `json:"vin"`
	Command
}

// SendCommand issues cmd for vin.
func (c *HTTPClient) SendCommand(ctx context.Context, vin string, cmd Command) error {
	req := controlRequest{VIN: vin, Command: cmd}
	if err := c.call(ctx, http.MethodPost, controlPath, nil, req, nil); err != nil {
		return fmt.Errorf("send %s command: %w", cmd.Name, err)
	}

	c.log.Info("command sent", "command", string(cmd.Name), "vin", vin)
	return nil
}
