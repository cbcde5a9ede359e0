package coordinator

import "time"

// Mode names the rule that selected the current interval.
type Mode string

const (
	ModePowered       Mode = "powered"
	ModeCharging      Mode = "charging"
	ModeGracePeriod   Mode = "grace_period"
	ModeAfterShutdown Mode = "after_shutdown"
	ModeIdle          Mode = "idle"
	ModeAction        Mode = "action"
)

// PolicyState is the tracker output the interval policy depends on.
type PolicyState struct {
	IsPoweredOn    bool
	IsCharging     bool
	LastActivity   time.Time
	LastPoweredOff time.Time
}

// SelectInterval picks the polling interval, highest priority first:
// powered, charging, grace period (recent activity or power-off), the short
// after-shutdown window, then the configured default.
func SelectInterval(state PolicyState, opts Options, now time.Time) (time.Duration, Mode) {
	switch {
	case state.IsPoweredOn:
		return opts.PoweredInterval, ModePowered
	case state.IsCharging:
		return opts.ChargingInterval, ModeCharging
	case now.Sub(state.LastActivity) <= opts.GracePeriodInterval,
		now.Sub(state.LastPoweredOff) <= opts.GracePeriodInterval:
		return opts.GracePeriodInterval, ModeGracePeriod
	case now.Sub(state.LastPoweredOff) <= opts.AfterShutdownInterval:
		return opts.AfterShutdownInterval, ModeAfterShutdown
	default:
		return opts.UpdateInterval, ModeIdle
	}
}
