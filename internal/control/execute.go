package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// RefreshCommand is the command name that polls without sending anything to
// the vehicle.
const RefreshCommand = "refresh"

var (
	// ErrUnknownCommand is returned by Execute for names it does not know.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidValue is returned by Execute when the value cannot be parsed.
	ErrInvalidValue = errors.New("invalid value")
)

// Execute runs a command given by name and textual value, as received from
// MQTT command topics and the HTTP API. Names are the action names plus
// RefreshCommand.
//
// Values:
//
//	alarm               ON / OFF (empty means ON)
//	lock_unlock         LOCK / UNLOCK
//	ac                  off, cool, fan_only, on, or a temperature in °C
//	front_defrost, rear_window_heat, battery_heating, charging
//	                    ON / OFF
//	charging_port_lock  LOCK / UNLOCK
//	heated_seats        "<left>,<right>" or one level for both (0..3)
//	sunroof             OPEN / CLOSE or ON / OFF
//	tailgate            OPEN (empty allowed)
//	target_soc          40..100
//	charging_current    6A, 8A, 16A, Max
func (c *Commander) Execute(ctx context.Context, name, value string) error {
	value = strings.TrimSpace(value)

	if name == RefreshCommand {
		return c.Refresh(ctx)
	}

	switch coordinator.Action(name) {
	case coordinator.ActionAlarm:
		on := true
		if value != "" {
			var err error
			if on, err = parseSwitch(value); err != nil {
				return err
			}
		}
		return c.Alarm(ctx, on)

	case coordinator.ActionLockUnlock:
		locked, err := parseWord(value, "lock", "unlock")
		if err != nil {
			return err
		}
		return c.SetLocked(ctx, locked)

	case coordinator.ActionAC:
		req, err := parseClimate(value)
		if err != nil {
			return err
		}
		return c.Climate(ctx, req)

	case coordinator.ActionFrontDefrost:
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		return c.FrontDefrost(ctx, on)

	case coordinator.ActionRearWindowHeat:
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		return c.RearWindowHeat(ctx, on)

	case coordinator.ActionBatteryHeating:
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		return c.BatteryHeating(ctx, on)

	case coordinator.ActionCharging:
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		return c.Charging(ctx, on)

	case coordinator.ActionChargingPortLock:
		locked, err := parseWord(value, "lock", "unlock")
		if err != nil {
			return err
		}
		return c.ChargingPortLock(ctx, locked)

	case coordinator.ActionHeatedSeats:
		left, right, err := parseSeats(value)
		if err != nil {
			return err
		}
		return c.HeatedSeats(ctx, left, right)

	case coordinator.ActionSunroof:
		open, err := parseWord(value, "open", "close")
		if err != nil {
			if open, err = parseSwitch(value); err != nil {
				return fmt.Errorf("%w: sunroof value %q", ErrInvalidValue, value)
			}
		}
		return c.Sunroof(ctx, open)

	case coordinator.ActionTailgate:
		if value != "" && !strings.EqualFold(value, "open") {
			return fmt.Errorf("%w: tailgate value %q", ErrInvalidValue, value)
		}
		return c.OpenTailgate(ctx)

	case coordinator.ActionTargetSOC:
		pct, err := parseNumber(value)
		if err != nil {
			return fmt.Errorf("%w: target SOC %q: %v", ErrInvalidValue, value, err)
		}
		return c.SetTargetSOC(ctx, pct)

	case coordinator.ActionChargingCurrent:
		limit, err := saic.ParseChargeCurrentLimit(value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return c.SetChargeCurrentLimit(ctx, limit)

	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "true", "1", "start":
		return true, nil
	case "off", "false", "0", "stop":
		return false, nil
	}
	return false, fmt.Errorf("%w: switch value %q", ErrInvalidValue, v)
}

// parseWord reports whether v is yes rather than no.
func parseWord(v, yes, no string) (bool, error) {
	switch {
	case strings.EqualFold(v, yes):
		return true, nil
	case strings.EqualFold(v, no):
		return false, nil
	}
	return false, fmt.Errorf("%w: %q, want %s or %s", ErrInvalidValue, v, strings.ToUpper(yes), strings.ToUpper(no))
}

// parseNumber accepts integers and whole floats such as "80.0".
func parseNumber(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return int(f + 0.5), nil
}

func parseClimate(v string) (ClimateRequest, error) {
	switch strings.ToLower(v) {
	case "off":
		return ClimateRequest{Mode: ClimateOff}, nil
	case "on", "cool":
		return ClimateRequest{Mode: ClimateCool}, nil
	case "fan_only":
		return ClimateRequest{Mode: ClimateFan}, nil
	}

	t, err := parseNumber(v)
	if err != nil {
		return ClimateRequest{}, fmt.Errorf("%w: climate value %q", ErrInvalidValue, v)
	}
	return ClimateRequest{Mode: ClimateCool, Temperature: t}, nil
}

func parseSeats(v string) (left, right int, err error) {
	parts := strings.Split(v, ",")
	switch len(parts) {
	case 1:
		left, err = strconv.Atoi(strings.TrimSpace(parts[0]))
		right = left
	case 2:
		if left, err = strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			right, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		}
	default:
		err = fmt.Errorf("too many levels")
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%w: heated seats value %q: %v", ErrInvalidValue, v, err)
	}
	return left, right, nil
}
