package model

import (
	"strings"
	"time"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// VehicleSnapshot is the published state of one vehicle.
// This is the "single source of truth" used by the TUI, CLI, MQTT bridge and API.
type VehicleSnapshot struct {
	VIN string `json:"vin"`

	// Info is fetched during setup and refreshed on every poll.
	Info *saic.VehicleInfo `json:"info,omitempty"`

	// Status and Charging hold the last payload that passed validation. They
	// are nil until one has been accepted and are never cleared afterwards.
	Status   *saic.StatusPayload   `json:"status,omitempty"`
	Charging *saic.ChargingPayload `json:"charging,omitempty"`

	Capabilities Capabilities `json:"capabilities"`
	VehicleType  VehicleType  `json:"vehicle_type"`
	Climate      ClimateRange `json:"climate"`

	Runtime RuntimeView `json:"runtime"`

	// Timestamp of last update
	UpdatedAt time.Time `json:"updated_at"`
}

// Capabilities are static feature flags taken from configuration.
type Capabilities struct {
	HasSunroof        bool `json:"has_sunroof" mapstructure:"has_sunroof"`
	HasHeatedSeats    bool `json:"has_heated_seats" mapstructure:"has_heated_seats"`
	HasBatteryHeating bool `json:"has_battery_heating" mapstructure:"has_battery_heating"`
}

// RuntimeView is the read-only view of the coordinator's runtime state.
type RuntimeView struct {
	IsCharging     bool          `json:"is_charging"`
	IsPoweredOn    bool          `json:"is_powered_on"`
	LastActivity   time.Time     `json:"last_vehicle_activity"`
	LastPoweredOn  time.Time     `json:"last_powered_on"`
	LastPoweredOff time.Time     `json:"last_powered_off"`
	UpdateInterval time.Duration `json:"update_interval"`
	Mode           string        `json:"mode"`
	NextUpdate     time.Time     `json:"next_update"`
	LastUpdate     time.Time     `json:"last_update"`
	ActionActive   bool          `json:"action_active"`
}

// Clone returns a copy that can be handed to readers. Payloads are replaced
// wholesale on acceptance and never mutated, so they are shared.
func (s *VehicleSnapshot) Clone() *VehicleSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// VehicleType is the drivetrain category.
type VehicleType string

const (
	VehicleTypeBEV  VehicleType = "BEV"
	VehicleTypePHEV VehicleType = "PHEV"
	VehicleTypeHEV  VehicleType = "HEV"
	VehicleTypeICE  VehicleType = "ICE"
)

// ParseVehicleType accepts a configured override. The second result is false
// for unknown values.
func ParseVehicleType(s string) (VehicleType, bool) {
	switch t := VehicleType(strings.ToUpper(strings.TrimSpace(s))); t {
	case VehicleTypeBEV, VehicleTypePHEV, VehicleTypeHEV, VehicleTypeICE:
		return t, true
	default:
		return "", false
	}
}

// HasBattery reports whether the vehicle has a traction battery, which gates
// charging polling and charging actions.
func (t VehicleType) HasBattery() bool {
	return t == VehicleTypeBEV || t == VehicleTypePHEV
}

// ClassifyVehicle derives the drivetrain from the model configuration.
//
// Configuration codes are read first (EV and BType: 1 electric, 0
// combustion; ENERGY 1 hybrid). A model name or series containing
// "electric" or "ev" then forces electric and clears combustion, even when
// the codes said otherwise.
func ClassifyVehicle(info *saic.VehicleInfo) VehicleType {
	if info == nil {
		return VehicleTypeICE
	}

	var electric, combustion, hybrid bool
	for _, item := range info.Configuration {
		switch item.Code {
		case "EV", "BType":
			switch item.Value {
			case "1":
				electric = true
			case "0":
				combustion = true
			}
		case "ENERGY":
			if item.Value == "1" {
				hybrid = true
			}
		}
	}

	for _, name := range []string{info.ModelName, info.Series} {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "electric") || strings.Contains(lower, "ev") {
			electric = true
			combustion = false
		}
	}

	switch {
	case electric && !combustion:
		return VehicleTypeBEV
	case electric && combustion && hybrid:
		return VehicleTypePHEV
	case hybrid && !electric:
		return VehicleTypeHEV
	default:
		return VehicleTypeICE
	}
}

// ClimateRange is the settable cabin temperature range and the gateway index
// offset for the vehicle series.
type ClimateRange struct {
	MinTemp int `json:"min_temp"`
	MaxTemp int `json:"max_temp"`
	Offset  int `json:"offset"`
}

// ClimateRangeFor returns the range for a series. EH32 (MG4) uses 17..33 °C.
func ClimateRangeFor(series string) ClimateRange {
	if strings.Contains(strings.ToUpper(series), "EH32") {
		return ClimateRange{MinTemp: 17, MaxTemp: 33, Offset: 3}
	}
	return ClimateRange{MinTemp: 16, MaxTemp: 28, Offset: 2}
}

// TemperatureIndex converts a temperature in °C to the gateway index,
// clamping to the supported range.
func (r ClimateRange) TemperatureIndex(celsius int) int {
	if celsius < r.MinTemp {
		celsius = r.MinTemp
	}
	if celsius > r.MaxTemp {
		celsius = r.MaxTemp
	}
	return r.Offset + celsius - r.MinTemp
}
