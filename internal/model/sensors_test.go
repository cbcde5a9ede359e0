package model

import (
	"testing"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

func assertFloat(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %v", name, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", name, *got, want)
	}
}

func testSnapshot() *VehicleSnapshot {
	return &VehicleSnapshot{
		VIN:         "VIN1",
		VehicleType: VehicleTypeBEV,
		Status: &saic.StatusPayload{
			Basic: &saic.BasicVehicleStatus{
				PowerMode:             intPtr(2),
				LockStatus:            intPtr(1),
				DriverDoor:            intPtr(0),
				BootStatus:            intPtr(1),
				Mileage:               intPtr(123456),
				FuelRangeElec:         intPtr(3105),
				InteriorTemperature:   intPtr(21),
				ExteriorTemperature:   intPtr(InvalidTemperature),
				BatteryVoltage:        intPtr(126),
				FrontLeftTyrePressure: intPtr(60),
			},
			GPS: &saic.GPSPosition{
				WayPoint: &saic.WayPoint{
					Position: &saic.Position{Latitude: 51500000, Longitude: -120000},
				},
			},
		},
		Charging: &saic.ChargingPayload{
			Mgmt: &saic.ChargeMgmtData{
				BmsChrgSts:               intPtr(1),
				BmsPackSOCDsp:            intPtr(805),
				BmsPackCrnt:              intPtr(19800),
				BmsPackVol:               intPtr(1600),
				BmsOnBdChrgTrgtSOCDspCmd: intPtr(5),
				BmsAltngChrgCrntDspCmd:   intPtr(3),
			},
		},
	}
}

func TestSnapshotConversions(t *testing.T) {
	s := testSnapshot()

	assertFloat(t, "SOC", s.SOC(), 80.5)
	assertFloat(t, "MileageKm", s.MileageKm(), 12345.6)
	assertFloat(t, "ElectricRangeKm", s.ElectricRangeKm(), 310.5)
	assertFloat(t, "InteriorTemp", s.InteriorTemp(), 21)
	assertFloat(t, "BatteryVoltage", s.BatteryVoltage(), 12.6)
	assertFloat(t, "TyrePressure", s.TyrePressure(TyreFrontLeft), 2.4)
	assertFloat(t, "ChargingCurrent", s.ChargingCurrent(), 10)
	assertFloat(t, "ChargingVoltage", s.ChargingVoltage(), 400)
	assertFloat(t, "ChargingPower", s.ChargingPower(), 4)

	if s.ExteriorTemp() != nil {
		t.Error("Expected -128 to be reported as unknown")
	}
	if s.TyrePressure(TyreRearLeft) != nil {
		t.Error("Expected missing tyre pressure to be nil")
	}
	if s.FuelRangeKm() != nil {
		t.Error("Expected missing fuel range to be nil")
	}

	if soc := s.TargetSOC(); soc == nil || *soc != 80 {
		t.Errorf("TargetSOC = %v, want 80", soc)
	}
	if limit, ok := s.ChargeCurrentLimit(); !ok || limit != saic.CurrentLimit16A {
		t.Errorf("ChargeCurrentLimit = %v, %v", limit, ok)
	}

	if mode, ok := s.PowerMode(); !ok || mode != PowerModeOn {
		t.Errorf("PowerMode = %v, %v", mode, ok)
	}
	if state, ok := s.ChargeState(); !ok || !state.IsCharging() {
		t.Errorf("ChargeState = %v, %v", state, ok)
	}

	lat, lon, ok := s.Location()
	if !ok || lat != 51.5 || lon != -0.12 {
		t.Errorf("Location = %v, %v, %v", lat, lon, ok)
	}
}

func TestChargingCurrent_ZeroWhenIdle(t *testing.T) {
	s := testSnapshot()
	s.Charging.Mgmt.BmsChrgSts = intPtr(int(ChargeStateIdle))

	assertFloat(t, "ChargingCurrent", s.ChargingCurrent(), 0)
	assertFloat(t, "ChargingPower", s.ChargingPower(), 0)
}

func TestClosures(t *testing.T) {
	s := testSnapshot()

	if open := s.IsOpen(ClosureBoot); open == nil || !*open {
		t.Error("Expected boot to be open")
	}
	if open := s.IsOpen(ClosureDriverDoor); open == nil || *open {
		t.Error("Expected driver door to be closed")
	}
	if s.IsOpen(ClosureBonnet) != nil {
		t.Error("Expected unknown bonnet state")
	}
	if locked := s.IsLocked(); locked == nil || !*locked {
		t.Error("Expected vehicle to be locked")
	}
}

func TestEmptySnapshot(t *testing.T) {
	var s *VehicleSnapshot

	if s.SOC() != nil || s.MileageKm() != nil || s.IsLocked() != nil || s.ChargingCurrent() != nil {
		t.Error("Expected nil readings for a nil snapshot")
	}
	if _, ok := s.PowerMode(); ok {
		t.Error("Expected no power mode")
	}
	if _, _, ok := s.Location(); ok {
		t.Error("Expected no location")
	}
}

func TestSOC_FallsBackToExtendedData(t *testing.T) {
	s := &VehicleSnapshot{
		Status: &saic.StatusPayload{Basic: &saic.BasicVehicleStatus{ExtendedData1: intPtr(64)}},
	}
	assertFloat(t, "SOC", s.SOC(), 64)
}

func TestSeatHeatLabel(t *testing.T) {
	if SeatHeatLabel(2) != "Medium" || SeatHeatLabel(9) != "Unknown" {
		t.Error("Unexpected seat heat labels")
	}
}
