package model

import "fmt"

// ChargeState is the battery management charge status code (bmsChrgSts).
// It is the only place that decides whether a code means charging.
type ChargeState int

const (
	ChargeStateNotCharging ChargeState = iota
	ChargeStateChargingAC
	ChargeStateFinished
	ChargeStateCharging
	ChargeStateFault
	ChargeStateIdle
	ChargeStateUnrecognizedConnection
	ChargeStatePluggedIn
	ChargeStateStopped
	ChargeStateScheduled
	ChargeStateChargingDC
	ChargeStateSuperOffboard
	ChargeStateChargingAlt
)

var chargeStateLabels = [...]string{
	"Not Charging",
	"Charging (AC)",
	"Charging Finished",
	"Charging",
	"Fault Charging",
	"Idle",
	"Unrecognized Connection",
	"Plugged In",
	"Charging Stopped",
	"Scheduled Charging",
	"Charging (DC)",
	"Super Offboard Charging",
	"Charging",
}

func (s ChargeState) String() string {
	if s >= 0 && int(s) < len(chargeStateLabels) {
		return chargeStateLabels[s]
	}
	return fmt.Sprintf("Unknown (%d)", int(s))
}

// IsCharging reports whether the battery is actively being charged.
func (s ChargeState) IsCharging() bool {
	switch s {
	case ChargeStateChargingAC, ChargeStateCharging, ChargeStateChargingDC, ChargeStateChargingAlt:
		return true
	default:
		return false
	}
}

// DrawsPower reports whether the pack current reading is meaningful. The
// gateway reports a stale current while not charging and while idle.
func (s ChargeState) DrawsPower() bool {
	return s != ChargeStateNotCharging && s != ChargeStateIdle
}

// PowerMode is the vehicle power mode code.
type PowerMode int

const (
	PowerModeOff PowerMode = iota
	PowerModeAccessory
	PowerModeOn
	PowerModeStart
)

func (m PowerMode) String() string {
	switch m {
	case PowerModeOff:
		return "Off"
	case PowerModeAccessory:
		return "Accessory"
	case PowerModeOn:
		return "On"
	case PowerModeStart:
		return "Start"
	default:
		return fmt.Sprintf("Unknown (%d)", int(m))
	}
}

// IsOn reports whether the vehicle counts as powered on.
func (m PowerMode) IsOn() bool {
	return m == PowerModeOn || m == PowerModeStart
}
