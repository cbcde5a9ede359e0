package mqtt

import (
	"strconv"
	"time"

	"github.com/pfrederiksen/saic-ls/internal/control"
	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// Home Assistant entity components.
const (
	componentSensor       = "sensor"
	componentBinarySensor = "binary_sensor"
	componentSwitch       = "switch"
	componentLock         = "lock"
	componentButton       = "button"
	componentNumber       = "number"
	componentSelect       = "select"
)

// Entity is one Home Assistant entity backed by the snapshot. State returns
// false when the backing field has not been reported, which marks the
// entity unavailable.
type Entity struct {
	Key         string
	Component   string
	Name        string
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string

	State func(s *model.VehicleSnapshot) (string, bool)

	// Command is the control command name for writable entities.
	Command string
	Options []string
	Min     float64
	Max     float64
	Step    float64

	// Supported limits the entity to matching vehicles. Nil means all.
	Supported func(s *model.VehicleSnapshot) bool
}

func (e Entity) writable() bool { return e.Command != "" }

func formatFloat(v *float64) (string, bool) {
	if v == nil {
		return "", false
	}
	return strconv.FormatFloat(*v, 'f', -1, 64), true
}

func formatInt(v *int) (string, bool) {
	if v == nil {
		return "", false
	}
	return strconv.Itoa(*v), true
}

func formatOnOff(v *bool) (string, bool) {
	if v == nil {
		return "", false
	}
	if *v {
		return "ON", true
	}
	return "OFF", true
}

func formatTime(t time.Time) (string, bool) {
	if t.IsZero() {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func hasBattery(s *model.VehicleSnapshot) bool { return s.VehicleType.HasBattery() }

func basicInt(get func(b *saic.BasicVehicleStatus) *int) func(*model.VehicleSnapshot) (string, bool) {
	return func(s *model.VehicleSnapshot) (string, bool) {
		if s.Status == nil || s.Status.Basic == nil {
			return "", false
		}
		return formatInt(get(s.Status.Basic))
	}
}

func closure(c model.Closure) func(*model.VehicleSnapshot) (string, bool) {
	return func(s *model.VehicleSnapshot) (string, bool) {
		return formatOnOff(s.IsOpen(c))
	}
}

func tyre(t model.Tyre) func(*model.VehicleSnapshot) (string, bool) {
	return func(s *model.VehicleSnapshot) (string, bool) {
		return formatFloat(s.TyrePressure(t))
	}
}

func seatLevel(get func(b *saic.BasicVehicleStatus) *int) func(*model.VehicleSnapshot) (string, bool) {
	return func(s *model.VehicleSnapshot) (string, bool) {
		if s.Status == nil || s.Status.Basic == nil || get(s.Status.Basic) == nil {
			return "", false
		}
		return strconv.Itoa(*get(s.Status.Basic)), true
	}
}

// Entities is the full entity set. Entities whose Supported func rejects the
// snapshot are not announced.
var Entities = []Entity{
	// Sensors
	{Key: "soc", Component: componentSensor, Name: "State of charge", Unit: "%", DeviceClass: "battery", StateClass: "measurement",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.SOC()) },
		Supported: hasBattery},
	{Key: "electric_range", Component: componentSensor, Name: "Electric range", Unit: "km", DeviceClass: "distance", StateClass: "measurement",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.ElectricRangeKm()) },
		Supported: hasBattery},
	{Key: "fuel_range", Component: componentSensor, Name: "Fuel range", Unit: "km", DeviceClass: "distance", StateClass: "measurement",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.FuelRangeKm()) },
		Supported: func(s *model.VehicleSnapshot) bool { return s.VehicleType != model.VehicleTypeBEV }},
	{Key: "fuel_level", Component: componentSensor, Name: "Fuel level", Unit: "%", StateClass: "measurement", Icon: "mdi:gas-station",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.FuelLevel()) },
		Supported: func(s *model.VehicleSnapshot) bool { return s.VehicleType != model.VehicleTypeBEV }},
	{Key: "mileage", Component: componentSensor, Name: "Mileage", Unit: "km", DeviceClass: "distance", StateClass: "total_increasing",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.MileageKm()) }},
	{Key: "interior_temperature", Component: componentSensor, Name: "Interior temperature", Unit: "°C", DeviceClass: "temperature", StateClass: "measurement",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.InteriorTemp()) }},
	{Key: "exterior_temperature", Component: componentSensor, Name: "Exterior temperature", Unit: "°C", DeviceClass: "temperature", StateClass: "measurement",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.ExteriorTemp()) }},
	{Key: "battery_voltage", Component: componentSensor, Name: "12V battery", Unit: "V", DeviceClass: "voltage", StateClass: "measurement",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.BatteryVoltage()) }},
	{Key: "tyre_pressure_front_left", Component: componentSensor, Name: "Tyre pressure front left", Unit: "bar", DeviceClass: "pressure", StateClass: "measurement",
		State: tyre(model.TyreFrontLeft)},
	{Key: "tyre_pressure_front_right", Component: componentSensor, Name: "Tyre pressure front right", Unit: "bar", DeviceClass: "pressure", StateClass: "measurement",
		State: tyre(model.TyreFrontRight)},
	{Key: "tyre_pressure_rear_left", Component: componentSensor, Name: "Tyre pressure rear left", Unit: "bar", DeviceClass: "pressure", StateClass: "measurement",
		State: tyre(model.TyreRearLeft)},
	{Key: "tyre_pressure_rear_right", Component: componentSensor, Name: "Tyre pressure rear right", Unit: "bar", DeviceClass: "pressure", StateClass: "measurement",
		State: tyre(model.TyreRearRight)},
	{Key: "charging_status", Component: componentSensor, Name: "Charging status", Icon: "mdi:ev-station",
		State: func(s *model.VehicleSnapshot) (string, bool) {
			state, ok := s.ChargeState()
			if !ok {
				return "", false
			}
			return state.String(), true
		},
		Supported: hasBattery},
	{Key: "power_mode", Component: componentSensor, Name: "Power mode", Icon: "mdi:power",
		State: func(s *model.VehicleSnapshot) (string, bool) {
			mode, ok := s.PowerMode()
			if !ok {
				return "", false
			}
			return mode.String(), true
		}},
	{Key: "charging_current", Component: componentSensor, Name: "Charging current", Unit: "A", DeviceClass: "current", StateClass: "measurement",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.ChargingCurrent()) },
		Supported: hasBattery},
	{Key: "charging_voltage", Component: componentSensor, Name: "Charging voltage", Unit: "V", DeviceClass: "voltage", StateClass: "measurement",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.ChargingVoltage()) },
		Supported: hasBattery},
	{Key: "charging_power", Component: componentSensor, Name: "Charging power", Unit: "kW", DeviceClass: "power", StateClass: "measurement",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatFloat(s.ChargingPower()) },
		Supported: hasBattery},
	{Key: "remaining_charging_time", Component: componentSensor, Name: "Remaining charging time", Unit: "min", DeviceClass: "duration",
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatInt(s.RemainingChargeMinutes()) },
		Supported: hasBattery},
	{Key: "last_vehicle_activity", Component: componentSensor, Name: "Last vehicle activity", DeviceClass: "timestamp",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatTime(s.Runtime.LastActivity) }},
	{Key: "last_powered_on", Component: componentSensor, Name: "Last powered on", DeviceClass: "timestamp",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatTime(s.Runtime.LastPoweredOn) }},
	{Key: "last_powered_off", Component: componentSensor, Name: "Last powered off", DeviceClass: "timestamp",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatTime(s.Runtime.LastPoweredOff) }},
	{Key: "update_interval", Component: componentSensor, Name: "Update interval", Unit: "s", DeviceClass: "duration", Icon: "mdi:timer-sync",
		State: func(s *model.VehicleSnapshot) (string, bool) {
			return strconv.Itoa(int(s.Runtime.UpdateInterval.Seconds())), s.Runtime.UpdateInterval > 0
		}},
	{Key: "update_mode", Component: componentSensor, Name: "Update mode", Icon: "mdi:calendar-clock",
		State: func(s *model.VehicleSnapshot) (string, bool) { return s.Runtime.Mode, s.Runtime.Mode != "" }},
	{Key: "next_update", Component: componentSensor, Name: "Next update", DeviceClass: "timestamp",
		State: func(s *model.VehicleSnapshot) (string, bool) { return formatTime(s.Runtime.NextUpdate) }},

	// Binary sensors
	{Key: "driver_door", Component: componentBinarySensor, Name: "Driver door", DeviceClass: "door", State: closure(model.ClosureDriverDoor)},
	{Key: "passenger_door", Component: componentBinarySensor, Name: "Passenger door", DeviceClass: "door", State: closure(model.ClosurePassengerDoor)},
	{Key: "rear_left_door", Component: componentBinarySensor, Name: "Rear left door", DeviceClass: "door", State: closure(model.ClosureRearLeftDoor)},
	{Key: "rear_right_door", Component: componentBinarySensor, Name: "Rear right door", DeviceClass: "door", State: closure(model.ClosureRearRightDoor)},
	{Key: "boot", Component: componentBinarySensor, Name: "Boot", DeviceClass: "opening", State: closure(model.ClosureBoot)},
	{Key: "bonnet", Component: componentBinarySensor, Name: "Bonnet", DeviceClass: "opening", State: closure(model.ClosureBonnet)},
	{Key: "sunroof_open", Component: componentBinarySensor, Name: "Sunroof", DeviceClass: "window", State: closure(model.ClosureSunroof),
		Supported: func(s *model.VehicleSnapshot) bool { return s.Capabilities.HasSunroof }},
	{Key: "locked", Component: componentBinarySensor, Name: "Unlocked", DeviceClass: "lock",
		// The lock device class reads ON as unlocked
		State: func(s *model.VehicleSnapshot) (string, bool) {
			locked := s.IsLocked()
			if locked == nil {
				return "", false
			}
			unlocked := !*locked
			return formatOnOff(&unlocked)
		}},
	{Key: "charging", Component: componentBinarySensor, Name: "Charging", DeviceClass: "battery_charging",
		State: func(s *model.VehicleSnapshot) (string, bool) {
			if s.Charging == nil {
				return "", false
			}
			return formatOnOff(&s.Runtime.IsCharging)
		},
		Supported: hasBattery},
	{Key: "powered_on", Component: componentBinarySensor, Name: "Powered on", DeviceClass: "power",
		State: func(s *model.VehicleSnapshot) (string, bool) {
			if s.Status == nil {
				return "", false
			}
			return formatOnOff(&s.Runtime.IsPoweredOn)
		}},

	// Commands
	{Key: "lock", Component: componentLock, Name: "Doors", Command: string(coordinator.ActionLockUnlock),
		State: func(s *model.VehicleSnapshot) (string, bool) {
			locked := s.IsLocked()
			if locked == nil {
				return "", false
			}
			if *locked {
				return "LOCKED", true
			}
			return "UNLOCKED", true
		}},
	{Key: "climate", Component: componentSelect, Name: "Climate", Icon: "mdi:air-conditioner", Command: string(coordinator.ActionAC),
		Options: []string{string(control.ClimateOff), string(control.ClimateCool), string(control.ClimateFan)},
		State: func(s *model.VehicleSnapshot) (string, bool) {
			if s.Status == nil || s.Status.Basic == nil || s.Status.Basic.RemoteClimateStatus == nil {
				return "", false
			}
			switch *s.Status.Basic.RemoteClimateStatus {
			case 3:
				return string(control.ClimateCool), true
			case 2:
				return string(control.ClimateFan), true
			}
			return string(control.ClimateOff), true
		}},
	{Key: "climate_temperature", Component: componentNumber, Name: "Climate temperature", Unit: "°C", Icon: "mdi:thermometer",
		Command: string(coordinator.ActionAC), Min: 16, Max: 33, Step: 1},
	{Key: "front_defrost", Component: componentSwitch, Name: "Front defrost", Icon: "mdi:car-defrost-front",
		Command: string(coordinator.ActionFrontDefrost)},
	{Key: "rear_window_heat", Component: componentSwitch, Name: "Rear window heat", Icon: "mdi:car-defrost-rear",
		Command: string(coordinator.ActionRearWindowHeat),
		State: func(s *model.VehicleSnapshot) (string, bool) {
			if s.Status == nil || s.Status.Basic == nil || s.Status.Basic.RearWindowHeatState == nil {
				return "", false
			}
			on := *s.Status.Basic.RearWindowHeatState == 1
			return formatOnOff(&on)
		}},
	{Key: "heated_seats", Component: componentSelect, Name: "Heated seats", Icon: "mdi:car-seat-heater",
		Command: string(coordinator.ActionHeatedSeats), Options: []string{"0", "1", "2", "3"},
		State:     seatLevel(func(b *saic.BasicVehicleStatus) *int { return b.FrontLeftSeatHeatLevel }),
		Supported: func(s *model.VehicleSnapshot) bool { return s.Capabilities.HasHeatedSeats }},
	{Key: "battery_heating", Component: componentSwitch, Name: "Battery heating", Icon: "mdi:heat-wave",
		Command: string(coordinator.ActionBatteryHeating),
		State: func(s *model.VehicleSnapshot) (string, bool) {
			if s.Charging == nil || s.Charging.Mgmt == nil || s.Charging.Mgmt.BmsPTCHeatResp == nil {
				return "", false
			}
			on := *s.Charging.Mgmt.BmsPTCHeatResp == 1
			return formatOnOff(&on)
		},
		Supported: func(s *model.VehicleSnapshot) bool { return hasBattery(s) && s.Capabilities.HasBatteryHeating }},
	{Key: "charging_switch", Component: componentSwitch, Name: "Charging", Icon: "mdi:ev-station",
		Command: string(coordinator.ActionCharging),
		State: func(s *model.VehicleSnapshot) (string, bool) {
			if s.Charging == nil {
				return "", false
			}
			return formatOnOff(&s.Runtime.IsCharging)
		},
		Supported: hasBattery},
	{Key: "charging_port_lock", Component: componentLock, Name: "Charging port", Icon: "mdi:ev-plug-type2",
		Command: string(coordinator.ActionChargingPortLock), Supported: hasBattery},
	{Key: "target_soc", Component: componentNumber, Name: "Target SOC", Unit: "%", Icon: "mdi:battery-charging-80",
		Command: string(coordinator.ActionTargetSOC), Min: 40, Max: 100, Step: 10,
		State:     func(s *model.VehicleSnapshot) (string, bool) { return formatInt(s.TargetSOC()) },
		Supported: hasBattery},
	{Key: "charging_current_limit", Component: componentSelect, Name: "Charging current limit", Icon: "mdi:current-ac",
		Command: string(coordinator.ActionChargingCurrent),
		Options: []string{saic.CurrentLimit6A.String(), saic.CurrentLimit8A.String(), saic.CurrentLimit16A.String(), saic.CurrentLimitMax.String()},
		State: func(s *model.VehicleSnapshot) (string, bool) {
			limit, ok := s.ChargeCurrentLimit()
			if !ok {
				return "", false
			}
			return limit.String(), true
		},
		Supported: hasBattery},
	{Key: "alarm", Component: componentButton, Name: "Find my car", Icon: "mdi:car-emergency",
		Command: string(coordinator.ActionAlarm)},
	{Key: "tailgate", Component: componentButton, Name: "Open tailgate", Icon: "mdi:car-back",
		Command: string(coordinator.ActionTailgate)},
	{Key: "sunroof", Component: componentSwitch, Name: "Sunroof", Icon: "mdi:car-select",
		Command:   string(coordinator.ActionSunroof),
		Supported: func(s *model.VehicleSnapshot) bool { return s.Capabilities.HasSunroof }},
	{Key: "refresh", Component: componentButton, Name: "Refresh", Icon: "mdi:refresh",
		Command: control.RefreshCommand},
}

// EntityByKey returns the entity with the given key.
func EntityByKey(key string) (Entity, bool) {
	for _, e := range Entities {
		if e.Key == key {
			return e, true
		}
	}
	return Entity{}, false
}
