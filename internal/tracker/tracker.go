// Package tracker derives power, charging and activity state from accepted
// vehicle payloads.
package tracker

import (
	"time"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// UnknownAge is how far back an unknown timestamp is placed.
const UnknownAge = 24 * time.Hour

// Monitored field names.
const (
	FieldLockStatus     = "lockStatus"
	FieldDriverDoor     = "driverDoor"
	FieldPassengerDoor  = "passengerDoor"
	FieldRearLeftDoor   = "rearLeftDoor"
	FieldRearRightDoor  = "rearRightDoor"
	FieldBoot           = "bootStatus"
	FieldBonnet         = "bonnetStatus"
	FieldRemoteClimate  = "remoteClimateStatus"
	FieldRearWindowHeat = "rmtHtdRrWndSt"
	FieldEngineStatus   = "engineStatus"
	FieldPowerMode      = "powerMode"
	FieldChargeStatus   = "bmsChrgSts"
)

// Timestamps are the three persisted runtime timestamps.
type Timestamps struct {
	LastActivity   time.Time `json:"last_vehicle_activity"`
	LastPoweredOn  time.Time `json:"last_powered_on"`
	LastPoweredOff time.Time `json:"last_powered_off"`
}

// Observation is the outcome of one Observe call.
type Observation struct {
	ActivityDetected bool
	PowerChanged     bool
	ChargingChanged  bool
	ChangedFields    []string
}

// Tracker holds derived state and the shadow copy of monitored fields. It is
// not safe for concurrent use; the coordinator guards it.
type Tracker struct {
	IsPoweredOn bool
	IsCharging  bool
	Timestamps

	shadow map[string]*int
}

// New returns a tracker with every timestamp set to now-24h.
func New(now time.Time) *Tracker {
	t := &Tracker{shadow: make(map[string]*int)}
	t.Restore(Timestamps{}, now)
	return t
}

// Restore loads persisted timestamps. Zero values fall back to now-24h.
func (t *Tracker) Restore(ts Timestamps, now time.Time) {
	fallback := now.Add(-UnknownAge)
	t.LastActivity = orDefault(ts.LastActivity, fallback)
	t.LastPoweredOn = orDefault(ts.LastPoweredOn, fallback)
	t.LastPoweredOff = orDefault(ts.LastPoweredOff, fallback)
}

func orDefault(ts, fallback time.Time) time.Time {
	if ts.IsZero() {
		return fallback
	}
	return ts
}

// Observe diffs the accepted payloads against the shadow values and updates
// the derived state. A nil payload means nothing new arrived for it: its
// fields are not compared and the state derived from it is kept.
func (t *Tracker) Observe(status *saic.StatusPayload, charging *saic.ChargingPayload, now time.Time) Observation {
	var obs Observation

	if status != nil && status.Basic != nil {
		b := status.Basic
		for _, f := range []struct {
			name  string
			value *int
		}{
			{FieldLockStatus, b.LockStatus},
			{FieldDriverDoor, b.DriverDoor},
			{FieldPassengerDoor, b.PassengerDoor},
			{FieldRearLeftDoor, b.RearLeftDoor},
			{FieldRearRightDoor, b.RearRightDoor},
			{FieldBoot, b.BootStatus},
			{FieldBonnet, b.BonnetStatus},
			{FieldRemoteClimate, b.RemoteClimateStatus},
			{FieldRearWindowHeat, b.RearWindowHeatState},
			{FieldEngineStatus, b.EngineStatus},
			{FieldPowerMode, b.PowerMode},
		} {
			t.diff(f.name, f.value, &obs)
		}

		poweredOn := b.PowerMode != nil && model.PowerMode(*b.PowerMode).IsOn()
		if poweredOn != t.IsPoweredOn {
			obs.PowerChanged = true
			if poweredOn {
				t.LastPoweredOn = now
			} else {
				t.LastPoweredOff = now
			}
			t.IsPoweredOn = poweredOn
		}
	}

	if charging != nil && charging.Mgmt != nil {
		m := charging.Mgmt
		t.diff(FieldChargeStatus, m.BmsChrgSts, &obs)

		isCharging := m.BmsChrgSts != nil && model.ChargeState(*m.BmsChrgSts).IsCharging()
		if isCharging != t.IsCharging {
			obs.ChargingChanged = true
			t.IsCharging = isCharging
		}
	}

	if obs.ActivityDetected {
		t.LastActivity = now
	}
	return obs
}

func (t *Tracker) diff(name string, value *int, obs *Observation) {
	if t.shadow == nil {
		t.shadow = make(map[string]*int)
	}

	prev := t.shadow[name]
	if sameValue(prev, value) {
		return
	}

	obs.ActivityDetected = true
	obs.ChangedFields = append(obs.ChangedFields, name)

	if value == nil {
		t.shadow[name] = nil
		return
	}
	v := *value
	t.shadow[name] = &v
}

func sameValue(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
