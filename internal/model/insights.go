package model

import "fmt"

// Thresholds used by Issues.
const (
	LowTyrePressureBar = 2.0
	LowSOCPercent      = 20.0
)

var closureNames = []struct {
	closure Closure
	label   string
}{
	{ClosureDriverDoor, "Driver door"},
	{ClosurePassengerDoor, "Passenger door"},
	{ClosureRearLeftDoor, "Rear left door"},
	{ClosureRearRightDoor, "Rear right door"},
	{ClosureBoot, "Boot"},
	{ClosureBonnet, "Bonnet"},
}

var tyreNames = []struct {
	tyre  Tyre
	label string
}{
	{TyreFrontLeft, "front left"},
	{TyreFrontRight, "front right"},
	{TyreRearLeft, "rear left"},
	{TyreRearRight, "rear right"},
}

// AnyOpen returns true if any door, the boot or the bonnet is open.
func (s *VehicleSnapshot) AnyOpen() bool {
	for _, c := range closureNames {
		if open := s.IsOpen(c.closure); open != nil && *open {
			return true
		}
	}
	return false
}

// HasCriticalIssues returns true if the vehicle is left in an unsafe state.
func (s *VehicleSnapshot) HasCriticalIssues() bool {
	// Open while locked means a closure failed to latch
	if locked := s.IsLocked(); locked != nil && *locked && s.AnyOpen() {
		return true
	}

	if soc := s.SOC(); soc != nil && *soc < LowSOCPercent/2 && s.VehicleType.HasBattery() {
		return true
	}

	return false
}

// Issues returns a list of current issues/warnings.
func (s *VehicleSnapshot) Issues() []string {
	if s == nil || s.Status == nil {
		return nil
	}

	var issues []string

	for _, c := range closureNames {
		if open := s.IsOpen(c.closure); open != nil && *open {
			issues = append(issues, fmt.Sprintf("Warning: %s open", c.label))
		}
	}

	if locked := s.IsLocked(); locked != nil && !*locked {
		issues = append(issues, "Info: Vehicle unlocked")
	}

	for _, t := range tyreNames {
		if p := s.TyrePressure(t.tyre); p != nil && *p > 0 && *p < LowTyrePressureBar {
			issues = append(issues, fmt.Sprintf("Warning: Low tyre pressure %s (%.1f bar)", t.label, *p))
		}
	}

	if s.VehicleType.HasBattery() {
		if soc := s.SOC(); soc != nil && *soc < LowSOCPercent && !s.Runtime.IsCharging {
			issues = append(issues, fmt.Sprintf("Warning: Low battery (%.0f%%) - connect to charger", *soc))
		}
	}

	return issues
}
