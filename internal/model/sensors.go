package model

import (
	"math"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// Raw gateway value scaling.
const (
	PressureToBar         = 0.04
	DecimalCorrection     = 0.1
	ChargingCurrentFactor = 0.05
	ChargingVoltageFactor = 0.25

	// InvalidTemperature is reported when a sensor has no reading.
	InvalidTemperature = -128
)

// Closure identifies a door, the boot or the bonnet.
type Closure string

const (
	ClosureDriverDoor    Closure = "driver_door"
	ClosurePassengerDoor Closure = "passenger_door"
	ClosureRearLeftDoor  Closure = "rear_left_door"
	ClosureRearRightDoor Closure = "rear_right_door"
	ClosureBoot          Closure = "boot"
	ClosureBonnet        Closure = "bonnet"
	ClosureSunroof       Closure = "sunroof"
)

// Tyre identifies a wheel position.
type Tyre string

const (
	TyreFrontLeft  Tyre = "front_left"
	TyreFrontRight Tyre = "front_right"
	TyreRearLeft   Tyre = "rear_left"
	TyreRearRight  Tyre = "rear_right"
)

func (s *VehicleSnapshot) basic() *saic.BasicVehicleStatus {
	if s == nil || s.Status == nil {
		return nil
	}
	return s.Status.Basic
}

func (s *VehicleSnapshot) mgmt() *saic.ChargeMgmtData {
	if s == nil || s.Charging == nil {
		return nil
	}
	return s.Charging.Mgmt
}

func scaled(raw *int, factor float64) *float64 {
	if raw == nil {
		return nil
	}
	v := round2(float64(*raw) * factor)
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func flag(raw *int, on int) *bool {
	if raw == nil {
		return nil
	}
	v := *raw == on
	return &v
}

// PowerMode returns the reported power mode, if any.
func (s *VehicleSnapshot) PowerMode() (PowerMode, bool) {
	b := s.basic()
	if b == nil || b.PowerMode == nil {
		return 0, false
	}
	return PowerMode(*b.PowerMode), true
}

// ChargeState returns the reported charge state, if any.
func (s *VehicleSnapshot) ChargeState() (ChargeState, bool) {
	m := s.mgmt()
	if m == nil || m.BmsChrgSts == nil {
		return 0, false
	}
	return ChargeState(*m.BmsChrgSts), true
}

// SOC returns the displayed state of charge in percent.
func (s *VehicleSnapshot) SOC() *float64 {
	if m := s.mgmt(); m != nil && m.BmsPackSOCDsp != nil {
		return scaled(m.BmsPackSOCDsp, DecimalCorrection)
	}
	if b := s.basic(); b != nil {
		return scaled(b.ExtendedData1, 1)
	}
	return nil
}

// MileageKm returns the odometer in kilometres.
func (s *VehicleSnapshot) MileageKm() *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}
	return scaled(b.Mileage, DecimalCorrection)
}

// FuelRangeKm returns the combustion range in kilometres.
func (s *VehicleSnapshot) FuelRangeKm() *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}
	return scaled(b.FuelRange, DecimalCorrection)
}

// ElectricRangeKm returns the electric range in kilometres.
func (s *VehicleSnapshot) ElectricRangeKm() *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}
	return scaled(b.FuelRangeElec, DecimalCorrection)
}

// FuelLevel returns the fuel level in percent.
func (s *VehicleSnapshot) FuelLevel() *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}
	return scaled(b.FuelLevelPrc, 1)
}

// InteriorTemp returns the cabin temperature in °C.
func (s *VehicleSnapshot) InteriorTemp() *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}
	return temperature(b.InteriorTemperature)
}

// ExteriorTemp returns the outside temperature in °C.
func (s *VehicleSnapshot) ExteriorTemp() *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}
	return temperature(b.ExteriorTemperature)
}

func temperature(raw *int) *float64 {
	if raw == nil || *raw == InvalidTemperature {
		return nil
	}
	return scaled(raw, 1)
}

// BatteryVoltage returns the 12V ancillary battery voltage.
func (s *VehicleSnapshot) BatteryVoltage() *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}
	return scaled(b.BatteryVoltage, DecimalCorrection)
}

// TyrePressure returns the pressure of one tyre in bar.
func (s *VehicleSnapshot) TyrePressure(t Tyre) *float64 {
	b := s.basic()
	if b == nil {
		return nil
	}

	var raw *int
	switch t {
	case TyreFrontLeft:
		raw = b.FrontLeftTyrePressure
	case TyreFrontRight:
		raw = b.FrontRightTyrePressure
	case TyreRearLeft:
		raw = b.RearLeftTyrePressure
	case TyreRearRight:
		raw = b.RearRightTyrePressure
	}
	return scaled(raw, PressureToBar)
}

// IsLocked reports the central locking state.
func (s *VehicleSnapshot) IsLocked() *bool {
	b := s.basic()
	if b == nil {
		return nil
	}
	return flag(b.LockStatus, 1)
}

// IsOpen reports whether a closure is open.
func (s *VehicleSnapshot) IsOpen(c Closure) *bool {
	b := s.basic()
	if b == nil {
		return nil
	}

	switch c {
	case ClosureDriverDoor:
		return flag(b.DriverDoor, 1)
	case ClosurePassengerDoor:
		return flag(b.PassengerDoor, 1)
	case ClosureRearLeftDoor:
		return flag(b.RearLeftDoor, 1)
	case ClosureRearRightDoor:
		return flag(b.RearRightDoor, 1)
	case ClosureBoot:
		return flag(b.BootStatus, 1)
	case ClosureBonnet:
		return flag(b.BonnetStatus, 1)
	case ClosureSunroof:
		return flag(b.SunroofStatus, 1)
	}
	return nil
}

// ChargingCurrent returns the pack charging current in amperes. It is zero
// whenever the charge state says the reading is stale.
func (s *VehicleSnapshot) ChargingCurrent() *float64 {
	m := s.mgmt()
	if m == nil {
		return nil
	}
	if state, ok := s.ChargeState(); ok && !state.DrawsPower() {
		zero := 0.0
		return &zero
	}
	if m.BmsPackCrnt == nil {
		return nil
	}
	v := round2(1000 - float64(*m.BmsPackCrnt)*ChargingCurrentFactor)
	return &v
}

// ChargingVoltage returns the pack voltage in volts.
func (s *VehicleSnapshot) ChargingVoltage() *float64 {
	m := s.mgmt()
	if m == nil {
		return nil
	}
	return scaled(m.BmsPackVol, ChargingVoltageFactor)
}

// ChargingPower returns the charging power in kW.
func (s *VehicleSnapshot) ChargingPower() *float64 {
	current := s.ChargingCurrent()
	if current == nil {
		return nil
	}
	if *current == 0 {
		return current
	}

	voltage := s.ChargingVoltage()
	if voltage == nil {
		return nil
	}
	v := round2(*current * *voltage / 1000)
	return &v
}

// TargetSOC returns the configured charge target in percent.
func (s *VehicleSnapshot) TargetSOC() *int {
	m := s.mgmt()
	if m == nil || m.BmsOnBdChrgTrgtSOCDspCmd == nil {
		return nil
	}
	pct, ok := saic.TargetSOCPercent(*m.BmsOnBdChrgTrgtSOCDspCmd)
	if !ok {
		return nil
	}
	return &pct
}

// ChargeCurrentLimit returns the configured AC current limit.
func (s *VehicleSnapshot) ChargeCurrentLimit() (saic.ChargeCurrentLimit, bool) {
	m := s.mgmt()
	if m == nil || m.BmsAltngChrgCrntDspCmd == nil {
		return 0, false
	}
	return saic.ChargeCurrentLimit(*m.BmsAltngChrgCrntDspCmd), true
}

// RemainingChargeMinutes returns the estimated time to the charge target.
func (s *VehicleSnapshot) RemainingChargeMinutes() *int {
	m := s.mgmt()
	if m == nil {
		return nil
	}
	return m.ChrgngRmnngTime
}

// Location returns latitude and longitude in degrees.
func (s *VehicleSnapshot) Location() (lat, lon float64, ok bool) {
	if s == nil || s.Status == nil || s.Status.GPS == nil {
		return 0, 0, false
	}
	wp := s.Status.GPS.WayPoint
	if wp == nil || wp.Position == nil {
		return 0, 0, false
	}
	return float64(wp.Position.Latitude) / 1e6, float64(wp.Position.Longitude) / 1e6, true
}

// SeatHeatLabel maps a heated seat level to its label.
func SeatHeatLabel(level int) string {
	switch level {
	case 0:
		return "Off"
	case 1:
		return "Low"
	case 2:
		return "Medium"
	case 3:
		return "High"
	default:
		return "Unknown"
	}
}
