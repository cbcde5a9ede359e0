package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

// OutputFormat represents supported output formats
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatCSV   OutputFormat = "csv"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// Formatter handles output formatting
type Formatter interface {
	FormatSnapshot(w io.Writer, snap *model.VehicleSnapshot) error
	FormatSnapshots(w io.Writer, snaps []*model.VehicleSnapshot) error
}

// Summary is the decoded, unit-converted view of a snapshot used by every
// format except raw JSON.
type Summary struct {
	VIN         string    `json:"vin" yaml:"vin"`
	Model       string    `json:"model,omitempty" yaml:"model,omitempty"`
	VehicleType string    `json:"vehicle_type,omitempty" yaml:"vehicle_type,omitempty"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`

	SOC             *float64 `json:"soc,omitempty" yaml:"soc,omitempty"`
	ElectricRangeKm *float64 `json:"electric_range_km,omitempty" yaml:"electric_range_km,omitempty"`
	FuelRangeKm     *float64 `json:"fuel_range_km,omitempty" yaml:"fuel_range_km,omitempty"`
	FuelLevel       *float64 `json:"fuel_level,omitempty" yaml:"fuel_level,omitempty"`
	MileageKm       *float64 `json:"mileage_km,omitempty" yaml:"mileage_km,omitempty"`

	ChargeState            string   `json:"charge_state,omitempty" yaml:"charge_state,omitempty"`
	Charging               bool     `json:"charging" yaml:"charging"`
	ChargingPowerKW        *float64 `json:"charging_power_kw,omitempty" yaml:"charging_power_kw,omitempty"`
	TargetSOC              *int     `json:"target_soc,omitempty" yaml:"target_soc,omitempty"`
	ChargeCurrentLimit     string   `json:"charge_current_limit,omitempty" yaml:"charge_current_limit,omitempty"`
	RemainingChargeMinutes *int     `json:"remaining_charge_minutes,omitempty" yaml:"remaining_charge_minutes,omitempty"`

	PowerMode      string   `json:"power_mode,omitempty" yaml:"power_mode,omitempty"`
	Locked         *bool    `json:"locked,omitempty" yaml:"locked,omitempty"`
	Open           []string `json:"open,omitempty" yaml:"open,omitempty"`
	InteriorTemp   *float64 `json:"interior_temp,omitempty" yaml:"interior_temp,omitempty"`
	ExteriorTemp   *float64 `json:"exterior_temp,omitempty" yaml:"exterior_temp,omitempty"`
	BatteryVoltage *float64 `json:"battery_voltage,omitempty" yaml:"battery_voltage,omitempty"`

	TyresBar map[string]float64 `json:"tyres_bar,omitempty" yaml:"tyres_bar,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`

	Mode           string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	UpdateInterval string    `json:"update_interval,omitempty" yaml:"update_interval,omitempty"`
	NextUpdate     time.Time `json:"next_update,omitempty" yaml:"next_update,omitempty"`

	Issues []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

var summaryClosures = []model.Closure{
	model.ClosureDriverDoor,
	model.ClosurePassengerDoor,
	model.ClosureRearLeftDoor,
	model.ClosureRearRightDoor,
	model.ClosureBoot,
	model.ClosureBonnet,
	model.ClosureSunroof,
}

var summaryTyres = []model.Tyre{
	model.TyreFrontLeft,
	model.TyreFrontRight,
	model.TyreRearLeft,
	model.TyreRearRight,
}

// Summarize decodes snap into a Summary.
func Summarize(snap *model.VehicleSnapshot) Summary {
	s := Summary{
		VIN:                    snap.VIN,
		Model:                  vehicleModel(snap),
		VehicleType:            string(snap.VehicleType),
		UpdatedAt:              snap.UpdatedAt,
		SOC:                    snap.SOC(),
		ElectricRangeKm:        snap.ElectricRangeKm(),
		FuelRangeKm:            snap.FuelRangeKm(),
		FuelLevel:              snap.FuelLevel(),
		MileageKm:              snap.MileageKm(),
		Charging:               snap.Runtime.IsCharging,
		ChargingPowerKW:        snap.ChargingPower(),
		TargetSOC:              snap.TargetSOC(),
		RemainingChargeMinutes: snap.RemainingChargeMinutes(),
		Locked:                 snap.IsLocked(),
		InteriorTemp:           snap.InteriorTemp(),
		ExteriorTemp:           snap.ExteriorTemp(),
		BatteryVoltage:         snap.BatteryVoltage(),
		Mode:                   snap.Runtime.Mode,
		NextUpdate:             snap.Runtime.NextUpdate,
		Issues:                 snap.Issues(),
	}

	if state, ok := snap.ChargeState(); ok {
		s.ChargeState = state.String()
	}
	if limit, ok := snap.ChargeCurrentLimit(); ok {
		s.ChargeCurrentLimit = limit.String()
	}
	if mode, ok := snap.PowerMode(); ok {
		s.PowerMode = mode.String()
	}
	if snap.Runtime.UpdateInterval > 0 {
		s.UpdateInterval = snap.Runtime.UpdateInterval.String()
	}

	for _, c := range summaryClosures {
		if open := snap.IsOpen(c); open != nil && *open {
			s.Open = append(s.Open, string(c))
		}
	}

	for _, t := range summaryTyres {
		if p := snap.TyrePressure(t); p != nil {
			if s.TyresBar == nil {
				s.TyresBar = make(map[string]float64, len(summaryTyres))
			}
			s.TyresBar[string(t)] = *p
		}
	}

	if lat, lon, ok := snap.Location(); ok {
		s.Latitude = &lat
		s.Longitude = &lon
	}

	return s
}

func vehicleModel(snap *model.VehicleSnapshot) string {
	if snap.Info == nil {
		return ""
	}
	return strings.TrimSpace(snap.Info.BrandName + " " + snap.Info.ModelName)
}

func summarizeAll(snaps []*model.VehicleSnapshot) []Summary {
	out := make([]Summary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, Summarize(snap))
	}
	return out
}

// JSONFormatter formats output as JSON. Raw emits the snapshot with the
// gateway payloads instead of the summary.
type JSONFormatter struct {
	Pretty bool
	Raw    bool
}

func (f *JSONFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder
}

func (f *JSONFormatter) FormatSnapshot(w io.Writer, snap *model.VehicleSnapshot) error {
	if f.Raw {
		return f.encoder(w).Encode(snap)
	}
	return f.encoder(w).Encode(Summarize(snap))
}

func (f *JSONFormatter) FormatSnapshots(w io.Writer, snaps []*model.VehicleSnapshot) error {
	if f.Raw {
		return f.encoder(w).Encode(snaps)
	}
	return f.encoder(w).Encode(summarizeAll(snaps))
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatSnapshot(w io.Writer, snap *model.VehicleSnapshot) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	return encoder.Encode(Summarize(snap))
}

func (f *YAMLFormatter) FormatSnapshots(w io.Writer, snaps []*model.VehicleSnapshot) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	return encoder.Encode(summarizeAll(snaps))
}

// CSVFormatter formats output as CSV
type CSVFormatter struct{}

func (f *CSVFormatter) FormatSnapshot(w io.Writer, snap *model.VehicleSnapshot) error {
	return f.FormatSnapshots(w, []*model.VehicleSnapshot{snap})
}

func (f *CSVFormatter) FormatSnapshots(w io.Writer, snaps []*model.VehicleSnapshot) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Write header
	header := []string{
		"Timestamp", "VIN", "Model", "Type",
		"SOC", "ElectricRangeKm", "FuelRangeKm", "MileageKm",
		"ChargeState", "ChargingPowerKW", "TargetSOC",
		"Locked", "PowerMode",
		"Latitude", "Longitude",
		"InteriorTemp", "ExteriorTemp",
		"Mode",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	// Write rows
	for _, snap := range snaps {
		s := Summarize(snap)
		row := []string{
			s.UpdatedAt.UTC().Format(time.RFC3339),
			s.VIN,
			s.Model,
			s.VehicleType,
			formatFloatPtr(s.SOC, 1),
			formatFloatPtr(s.ElectricRangeKm, 1),
			formatFloatPtr(s.FuelRangeKm, 1),
			formatFloatPtr(s.MileageKm, 1),
			s.ChargeState,
			formatFloatPtr(s.ChargingPowerKW, 2),
			formatIntPtr(s.TargetSOC),
			formatBoolPtr(s.Locked),
			s.PowerMode,
			formatFloatPtr(s.Latitude, 6),
			formatFloatPtr(s.Longitude, 6),
			formatFloatPtr(s.InteriorTemp, 1),
			formatFloatPtr(s.ExteriorTemp, 1),
			s.Mode,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

// TextFormatter formats output as human-readable text
type TextFormatter struct{}

func (f *TextFormatter) FormatSnapshot(w io.Writer, snap *model.VehicleSnapshot) error {
	s := Summarize(snap)

	name := s.Model
	if name == "" {
		name = "Unknown model"
	}
	fmt.Fprintf(w, "Vehicle: %s (%s)\n", name, orUnknown(s.VehicleType))
	fmt.Fprintf(w, "VIN: %s\n", s.VIN)
	fmt.Fprintf(w, "Updated: %s\n", formatTimestamp(s.UpdatedAt))
	fmt.Fprintf(w, "\n")

	// Battery & Range
	if s.SOC != nil {
		fmt.Fprintf(w, "Battery: %.1f%%", *s.SOC)
		if s.ElectricRangeKm != nil {
			fmt.Fprintf(w, " | Range: %.0f km", *s.ElectricRangeKm)
		}
		fmt.Fprintf(w, "\n")
	}
	if s.FuelLevel != nil || s.FuelRangeKm != nil {
		fmt.Fprintf(w, "Fuel: %s%% | Range: %s km\n", formatFloatPtr(s.FuelLevel, 0), formatFloatPtr(s.FuelRangeKm, 0))
	}

	// Charging
	if s.ChargeState != "" {
		if s.Charging {
			power := ""
			if s.ChargingPowerKW != nil {
				power = fmt.Sprintf(" @ %.1f kW", *s.ChargingPowerKW)
			}
			remaining := ""
			if s.RemainingChargeMinutes != nil {
				remaining = fmt.Sprintf(" (%s remaining)", formatDuration(time.Duration(*s.RemainingChargeMinutes)*time.Minute))
			}
			fmt.Fprintf(w, "Charging: %s%s%s\n", s.ChargeState, power, remaining)
		} else {
			fmt.Fprintf(w, "Charging: %s", s.ChargeState)
			if s.TargetSOC != nil {
				fmt.Fprintf(w, " | Target: %d%%", *s.TargetSOC)
			}
			fmt.Fprintf(w, "\n")
		}
	}
	fmt.Fprintf(w, "\n")

	// Security & Closures
	fmt.Fprintf(w, "Lock: %s | Power: %s\n", formatLockStatus(s.Locked), orUnknown(s.PowerMode))
	if len(s.Open) == 0 {
		fmt.Fprintf(w, "Closures: All closed\n")
	} else {
		fmt.Fprintf(w, "Open: %s\n", strings.Join(s.Open, ", "))
	}

	// Climate
	if s.InteriorTemp != nil || s.ExteriorTemp != nil {
		fmt.Fprintf(w, "Temperature: ")
		if s.InteriorTemp != nil {
			fmt.Fprintf(w, "Interior %.0f°C", *s.InteriorTemp)
		}
		if s.ExteriorTemp != nil {
			if s.InteriorTemp != nil {
				fmt.Fprintf(w, " | ")
			}
			fmt.Fprintf(w, "Exterior %.0f°C", *s.ExteriorTemp)
		}
		fmt.Fprintf(w, "\n")
	}

	// Location
	if s.Latitude != nil && s.Longitude != nil {
		fmt.Fprintf(w, "Location: %.5f, %.5f\n", *s.Latitude, *s.Longitude)
	}

	if s.MileageKm != nil {
		fmt.Fprintf(w, "Mileage: %.0f km\n", *s.MileageKm)
	}

	// Polling
	if s.Mode != "" {
		fmt.Fprintf(w, "\nPolling: %s every %s", s.Mode, s.UpdateInterval)
		if !s.NextUpdate.IsZero() {
			fmt.Fprintf(w, " | Next: %s", formatTimestamp(s.NextUpdate))
		}
		fmt.Fprintf(w, "\n")
	}

	// Issues
	if len(s.Issues) > 0 {
		fmt.Fprintf(w, "\nIssues:\n")
		for _, issue := range s.Issues {
			fmt.Fprintf(w, "  • %s\n", issue)
		}
	}

	return nil
}

func (f *TextFormatter) FormatSnapshots(w io.Writer, snaps []*model.VehicleSnapshot) error {
	for i, snap := range snaps {
		if i > 0 {
			fmt.Fprintf(w, "\n---\n\n")
		}
		if err := f.FormatSnapshot(w, snap); err != nil {
			return err
		}
	}
	return nil
}

// TableFormatter formats output as a compact table
type TableFormatter struct{}

func (f *TableFormatter) FormatSnapshot(w io.Writer, snap *model.VehicleSnapshot) error {
	return f.FormatSnapshots(w, []*model.VehicleSnapshot{snap})
}

func (f *TableFormatter) FormatSnapshots(w io.Writer, snaps []*model.VehicleSnapshot) error {
	if len(snaps) == 0 {
		fmt.Fprintf(w, "No snapshots to display\n")
		return nil
	}

	// Header
	fmt.Fprintf(w, "%-17s  %-19s  %-7s  %-7s  %-5s  %-18s  %s\n",
		"VIN", "UPDATED", "SOC", "RANGE", "LOCK", "CHARGING", "MODE")
	fmt.Fprintf(w, "%-17s  %-19s  %-7s  %-7s  %-5s  %-18s  %s\n",
		"-----------------", "-------------------", "-------", "-------", "-----", "------------------", "----")

	// Rows
	for _, snap := range snaps {
		s := Summarize(snap)
		soc := "-"
		if s.SOC != nil {
			soc = fmt.Sprintf("%.1f%%", *s.SOC)
		}
		rng := "-"
		if s.ElectricRangeKm != nil {
			rng = fmt.Sprintf("%.0fkm", *s.ElectricRangeKm)
		} else if s.FuelRangeKm != nil {
			rng = fmt.Sprintf("%.0fkm", *s.FuelRangeKm)
		}
		fmt.Fprintf(w, "%-17s  %-19s  %-7s  %-7s  %-5s  %-18s  %s\n",
			s.VIN,
			s.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
			soc,
			rng,
			formatLockStatusShort(s.Locked),
			orDash(s.ChargeState),
			orDash(s.Mode),
		)
	}

	return nil
}

// NewFormatter creates a formatter for the given format
func NewFormatter(format OutputFormat, pretty bool) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: pretty}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	case FormatText:
		return &TextFormatter{}, nil
	case FormatTable:
		return &TableFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// Helper functions

func formatFloatPtr(f *float64, prec int) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', prec, 64)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func formatBoolPtr(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatLockStatus(locked *bool) string {
	switch {
	case locked == nil:
		return "Unknown"
	case *locked:
		return "Locked"
	default:
		return "Unlocked"
	}
}

func formatLockStatusShort(locked *bool) string {
	switch {
	case locked == nil:
		return "?"
	case *locked:
		return "🔒"
	default:
		return "🔓"
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0m"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
