package coordinator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

// Action is a control action category. Each category has its own
// confirmation delay because vehicle subsystems report changes to the cloud
// at different speeds.
type Action string

const (
	ActionAlarm            Action = "alarm"
	ActionAC               Action = "ac"
	ActionFrontDefrost     Action = "front_defrost"
	ActionRearWindowHeat   Action = "rear_window_heat"
	ActionLockUnlock       Action = "lock_unlock"
	ActionChargingPortLock Action = "charging_port_lock"
	ActionHeatedSeats      Action = "heated_seats"
	ActionBatteryHeating   Action = "battery_heating"
	ActionCharging         Action = "charging"
	ActionSunroof          Action = "sunroof"
	ActionTailgate         Action = "tailgate"
	ActionTargetSOC        Action = "target_soc"
	ActionChargingCurrent  Action = "charging_current"
)

// Actions lists every action category.
var Actions = []Action{
	ActionAlarm,
	ActionAC,
	ActionFrontDefrost,
	ActionRearWindowHeat,
	ActionLockUnlock,
	ActionChargingPortLock,
	ActionHeatedSeats,
	ActionBatteryHeating,
	ActionCharging,
	ActionSunroof,
	ActionTailgate,
	ActionTargetSOC,
	ActionChargingCurrent,
}

// OptionKey returns the option name of the action's confirmation delay.
func (a Action) OptionKey() string {
	return string(a) + "_long_interval"
}

// Option names accepted by Options.Apply. Intervals are minutes,
// after_action_delay and retry_backoff are seconds.
const (
	KeyUpdateInterval        = "update_interval"
	KeyChargingInterval      = "charging_update_interval"
	KeyPoweredInterval       = "powered_update_interval"
	KeyAfterShutdownInterval = "after_shutdown_update_interval"
	KeyGracePeriodInterval   = "grace_period_update_interval"
	KeyAfterActionDelay      = "after_action_delay"
	KeyRetryLimit            = "retry_limit"
	KeyRetryBackoff          = "retry_backoff"
	KeyRetryExponential      = "retry_exponential"
	KeyHasSunroof            = "has_sunroof"
	KeyHasHeatedSeats        = "has_heated_seats"
	KeyHasBatteryHeating     = "has_battery_heating"
)

// Options are the tunable intervals of the coordinator.
type Options struct {
	UpdateInterval        time.Duration
	ChargingInterval      time.Duration
	PoweredInterval       time.Duration
	AfterShutdownInterval time.Duration
	GracePeriodInterval   time.Duration

	// AfterActionDelay is the immediate delay shared by every action.
	AfterActionDelay time.Duration
	ActionIntervals  map[Action]time.Duration

	Retry RetryPolicy

	Capabilities model.Capabilities
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		UpdateInterval:        60 * time.Minute,
		ChargingInterval:      10 * time.Minute,
		PoweredInterval:       15 * time.Minute,
		AfterShutdownInterval: 2 * time.Minute,
		GracePeriodInterval:   10 * time.Minute,
		AfterActionDelay:      15 * time.Second,
		ActionIntervals: map[Action]time.Duration{
			ActionAlarm:            5 * time.Minute,
			ActionAC:               15 * time.Minute,
			ActionFrontDefrost:     15 * time.Minute,
			ActionRearWindowHeat:   15 * time.Minute,
			ActionLockUnlock:       5 * time.Minute,
			ActionChargingPortLock: 5 * time.Minute,
			ActionHeatedSeats:      15 * time.Minute,
			ActionBatteryHeating:   15 * time.Minute,
			ActionCharging:         5 * time.Minute,
			ActionSunroof:          5 * time.Minute,
			ActionTailgate:         5 * time.Minute,
			ActionTargetSOC:        5 * time.Minute,
			ActionChargingCurrent:  5 * time.Minute,
		},
		Retry: RetryPolicy{
			Limit:   5,
			Backoff: 15 * time.Second,
		},
	}
}

// ActionInterval returns the confirmation delay of an action. Unknown
// actions get the after-action delay.
func (o Options) ActionInterval(a Action) time.Duration {
	if d, ok := o.ActionIntervals[a]; ok {
		return d
	}
	return o.AfterActionDelay
}

// Clone returns a deep copy.
func (o Options) Clone() Options {
	c := o
	c.ActionIntervals = make(map[Action]time.Duration, len(o.ActionIntervals))
	for k, v := range o.ActionIntervals {
		c.ActionIntervals[k] = v
	}
	return c
}

// Validate checks that every interval is usable.
func (o Options) Validate() error {
	var err error

	positive := func(name string, d time.Duration) {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	positive(KeyUpdateInterval, o.UpdateInterval)
	positive(KeyChargingInterval, o.ChargingInterval)
	positive(KeyPoweredInterval, o.PoweredInterval)
	positive(KeyAfterShutdownInterval, o.AfterShutdownInterval)
	positive(KeyGracePeriodInterval, o.GracePeriodInterval)
	positive(KeyAfterActionDelay, o.AfterActionDelay)
	for _, a := range Actions {
		positive(a.OptionKey(), o.ActionInterval(a))
	}

	if o.Retry.Limit == 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1", KeyRetryLimit))
	}
	if o.Retry.Backoff < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", KeyRetryBackoff))
	}

	return err
}

// Apply returns a copy of o with the given overrides. Keys are the option
// names above; values may be integers, floats, numeric strings or, for
// flags, booleans. Either every override applies or none does.
func (o Options) Apply(overrides map[string]any) (Options, error) {
	next := o.Clone()
	var errs error

	actionKeys := make(map[string]Action, len(Actions))
	for _, a := range Actions {
		actionKeys[a.OptionKey()] = a
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := overrides[key]

		if a, ok := actionKeys[key]; ok {
			d, err := toDuration(value, time.Minute)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			next.ActionIntervals[a] = d
			continue
		}

		var err error
		switch key {
		case KeyUpdateInterval:
			next.UpdateInterval, err = toDuration(value, time.Minute)
		case KeyChargingInterval:
			next.ChargingInterval, err = toDuration(value, time.Minute)
		case KeyPoweredInterval:
			next.PoweredInterval, err = toDuration(value, time.Minute)
		case KeyAfterShutdownInterval:
			next.AfterShutdownInterval, err = toDuration(value, time.Minute)
		case KeyGracePeriodInterval:
			next.GracePeriodInterval, err = toDuration(value, time.Minute)
		case KeyAfterActionDelay:
			next.AfterActionDelay, err = toDuration(value, time.Second)
		case KeyRetryBackoff:
			next.Retry.Backoff, err = toDuration(value, time.Second)
		case KeyRetryLimit:
			var n int
			n, err = toInt(value)
			if err == nil && n < 1 {
				err = fmt.Errorf("must be at least 1, got %d", n)
			}
			next.Retry.Limit = uint(n)
		case KeyRetryExponential:
			next.Retry.Exponential, err = toBool(value)
		case KeyHasSunroof:
			next.Capabilities.HasSunroof, err = toBool(value)
		case KeyHasHeatedSeats:
			next.Capabilities.HasHeatedSeats, err = toBool(value)
		case KeyHasBatteryHeating:
			next.Capabilities.HasBatteryHeating, err = toBool(value)
		default:
			err = fmt.Errorf("unknown option")
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if errs != nil {
		return o, errs
	}
	if err := next.Validate(); err != nil {
		return o, err
	}
	return next, nil
}

func toDuration(v any, unit time.Duration) (time.Duration, error) {
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}

	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, nil
		}
	}

	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return time.Duration(n) * unit, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("not a boolean: %q", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("unsupported type %T", v)
	}
}
