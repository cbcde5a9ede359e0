package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/saic"
)

func intPtr(v int) *int { return &v }

func makeTestSnapshot() *model.VehicleSnapshot {
	return &model.VehicleSnapshot{
		VIN:         "LSJA0000000000001",
		Info:        &saic.VehicleInfo{VIN: "LSJA0000000000001", BrandName: "MG", ModelName: "MG4", Series: "EH32 S"},
		VehicleType: model.VehicleTypeBEV,
		UpdatedAt:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Status: &saic.StatusPayload{
			Basic: &saic.BasicVehicleStatus{
				PowerMode:              intPtr(0),
				LockStatus:             intPtr(1),
				DriverDoor:             intPtr(0),
				PassengerDoor:          intPtr(0),
				BootStatus:             intPtr(0),
				Mileage:                intPtr(123456),
				FuelRangeElec:          intPtr(2500),
				InteriorTemperature:    intPtr(21),
				ExteriorTemperature:    intPtr(15),
				FrontLeftTyrePressure:  intPtr(60),
				FrontRightTyrePressure: intPtr(61),
				RearLeftTyrePressure:   intPtr(60),
				RearRightTyrePressure:  intPtr(61),
			},
			GPS: &saic.GPSPosition{WayPoint: &saic.WayPoint{
				Position: &saic.Position{Latitude: 52520000, Longitude: 13405000},
			}},
		},
		Charging: &saic.ChargingPayload{Mgmt: &saic.ChargeMgmtData{
			BmsChrgSts:               intPtr(int(model.ChargeStateCharging)),
			BmsPackSOCDsp:            intPtr(855),
			BmsPackCrnt:              intPtr(19600),
			BmsPackVol:               intPtr(1600),
			BmsOnBdChrgTrgtSOCDspCmd: intPtr(5),
			ChrgngRmnngTime:          intPtr(95),
		}},
		Runtime: model.RuntimeView{
			IsCharging:     true,
			Mode:           "charging",
			UpdateInterval: 10 * time.Minute,
			NextUpdate:     time.Date(2024, 1, 15, 10, 10, 0, 0, time.UTC),
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(makeTestSnapshot())

	if s.Model != "MG MG4" {
		t.Errorf("Expected model 'MG MG4', got %q", s.Model)
	}
	if s.SOC == nil || *s.SOC != 85.5 {
		t.Errorf("Expected SOC 85.5, got %v", s.SOC)
	}
	if s.ElectricRangeKm == nil || *s.ElectricRangeKm != 250 {
		t.Errorf("Expected range 250, got %v", s.ElectricRangeKm)
	}
	if s.MileageKm == nil || *s.MileageKm != 12345.6 {
		t.Errorf("Expected mileage 12345.6, got %v", s.MileageKm)
	}
	if s.ChargeState != "Charging" || !s.Charging {
		t.Errorf("Expected charging, got %q (%v)", s.ChargeState, s.Charging)
	}
	if s.ChargingPowerKW == nil || *s.ChargingPowerKW != 8 {
		t.Errorf("Expected 8 kW, got %v", s.ChargingPowerKW)
	}
	if s.TargetSOC == nil || *s.TargetSOC != 80 {
		t.Errorf("Expected target 80, got %v", s.TargetSOC)
	}
	if s.Locked == nil || !*s.Locked {
		t.Error("Expected locked")
	}
	if len(s.Open) != 0 {
		t.Errorf("Expected nothing open, got %v", s.Open)
	}
	if len(s.TyresBar) != 4 || s.TyresBar["front_left"] != 2.4 {
		t.Errorf("Unexpected tyre pressures %v", s.TyresBar)
	}
	if s.Latitude == nil || *s.Latitude != 52.52 {
		t.Errorf("Expected latitude 52.52, got %v", s.Latitude)
	}
	if s.UpdateInterval != "10m0s" {
		t.Errorf("Expected interval 10m0s, got %q", s.UpdateInterval)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&model.VehicleSnapshot{VIN: "VIN1"})

	if s.SOC != nil || s.Locked != nil || s.Latitude != nil {
		t.Error("Expected unknown values to stay nil")
	}
	if s.ChargeState != "" || s.PowerMode != "" || s.Model != "" {
		t.Errorf("Expected empty labels, got %+v", s)
	}
}

func TestSummarize_OpenClosures(t *testing.T) {
	snap := makeTestSnapshot()
	snap.Status.Basic.DriverDoor = intPtr(1)
	snap.Status.Basic.BootStatus = intPtr(1)

	s := Summarize(snap)
	if strings.Join(s.Open, ",") != "driver_door,boot" {
		t.Errorf("Expected driver door and boot open, got %v", s.Open)
	}
	if len(s.Issues) == 0 {
		t.Error("Expected issues for open closures")
	}
}

func TestJSONFormatter_FormatSnapshot(t *testing.T) {
	formatter := &JSONFormatter{Pretty: true}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshot(&buf, makeTestSnapshot()); err != nil {
		t.Fatalf("FormatSnapshot failed: %v", err)
	}

	// Verify it's valid JSON
	var decoded Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	if decoded.VIN != "LSJA0000000000001" {
		t.Errorf("Expected VIN, got %s", decoded.VIN)
	}
	if decoded.SOC == nil || *decoded.SOC != 85.5 {
		t.Errorf("Expected SOC 85.5, got %v", decoded.SOC)
	}

	// Pretty output should be indented
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("Expected indented JSON output")
	}
}

func TestJSONFormatter_Raw(t *testing.T) {
	formatter := &JSONFormatter{Raw: true}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshot(&buf, makeTestSnapshot()); err != nil {
		t.Fatalf("FormatSnapshot failed: %v", err)
	}

	var decoded model.VehicleSnapshot
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded.Charging == nil || decoded.Charging.Mgmt == nil || *decoded.Charging.Mgmt.BmsPackSOCDsp != 855 {
		t.Error("Expected raw payload in output")
	}
}

func TestJSONFormatter_FormatSnapshots(t *testing.T) {
	snaps := []*model.VehicleSnapshot{makeTestSnapshot(), makeTestSnapshot()}
	formatter := &JSONFormatter{Pretty: false}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshots(&buf, snaps); err != nil {
		t.Fatalf("FormatSnapshots failed: %v", err)
	}

	var decoded []Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("Expected 2 summaries, got %d", len(decoded))
	}
}

func TestYAMLFormatter_FormatSnapshot(t *testing.T) {
	formatter := &YAMLFormatter{}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshot(&buf, makeTestSnapshot()); err != nil {
		t.Fatalf("FormatSnapshot failed: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid YAML: %v", err)
	}
	if decoded["vin"] != "LSJA0000000000001" {
		t.Errorf("Expected vin key, got %v", decoded["vin"])
	}
	if decoded["soc"] != 85.5 {
		t.Errorf("Expected soc 85.5, got %v", decoded["soc"])
	}
	if _, ok := decoded["latitude"]; !ok {
		t.Error("Expected latitude key")
	}
}

func TestYAMLFormatter_FormatSnapshots(t *testing.T) {
	formatter := &YAMLFormatter{}

	var buf bytes.Buffer
	err := formatter.FormatSnapshots(&buf, []*model.VehicleSnapshot{makeTestSnapshot(), makeTestSnapshot()})
	if err != nil {
		t.Fatalf("FormatSnapshots failed: %v", err)
	}

	var decoded []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid YAML: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(decoded))
	}
}

func TestCSVFormatter_FormatSnapshot(t *testing.T) {
	formatter := &CSVFormatter{}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshot(&buf, makeTestSnapshot()); err != nil {
		t.Fatalf("FormatSnapshot failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected header + 1 row, got %d", len(records))
	}

	header, row := records[0], records[1]
	if len(header) != len(row) {
		t.Fatalf("Header has %d columns, row has %d", len(header), len(row))
	}

	values := make(map[string]string, len(header))
	for i, h := range header {
		values[h] = row[i]
	}
	if values["Timestamp"] != "2024-01-15T10:00:00Z" {
		t.Errorf("Unexpected timestamp %q", values["Timestamp"])
	}
	if values["SOC"] != "85.5" {
		t.Errorf("Expected SOC 85.5, got %q", values["SOC"])
	}
	if values["Locked"] != "true" {
		t.Errorf("Expected locked true, got %q", values["Locked"])
	}
	if values["Latitude"] != "52.520000" {
		t.Errorf("Expected latitude 52.520000, got %q", values["Latitude"])
	}
	if values["FuelRangeKm"] != "" {
		t.Errorf("Expected empty fuel range, got %q", values["FuelRangeKm"])
	}
}

func TestCSVFormatter_FormatSnapshots(t *testing.T) {
	formatter := &CSVFormatter{}

	var buf bytes.Buffer
	err := formatter.FormatSnapshots(&buf, []*model.VehicleSnapshot{makeTestSnapshot(), makeTestSnapshot(), makeTestSnapshot()})
	if err != nil {
		t.Fatalf("FormatSnapshots failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Errorf("Expected 4 lines (header + 3 rows), got %d", len(lines))
	}
}

func TestTextFormatter_FormatSnapshot(t *testing.T) {
	formatter := &TextFormatter{}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshot(&buf, makeTestSnapshot()); err != nil {
		t.Fatalf("FormatSnapshot failed: %v", err)
	}

	output := buf.String()
	expected := []string{
		"Vehicle: MG MG4 (BEV)",
		"VIN: LSJA0000000000001",
		"Battery: 85.5% | Range: 250 km",
		"Charging: Charging @ 8.0 kW (1h 35m remaining)",
		"Lock: Locked | Power: Off",
		"Closures: All closed",
		"Interior 21°C | Exterior 15°C",
		"Location: 52.52000, 13.40500",
		"Polling: charging every 10m0s",
	}
	for _, exp := range expected {
		if !strings.Contains(output, exp) {
			t.Errorf("Output missing %q\n%s", exp, output)
		}
	}
}

func TestTextFormatter_NotCharging(t *testing.T) {
	snap := makeTestSnapshot()
	snap.Charging.Mgmt.BmsChrgSts = intPtr(int(model.ChargeStateNotCharging))
	snap.Runtime.IsCharging = false

	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatSnapshot(&buf, snap); err != nil {
		t.Fatalf("FormatSnapshot failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Charging: Not Charging | Target: 80%") {
		t.Errorf("Unexpected charging line\n%s", buf.String())
	}
}

func TestTextFormatter_FormatSnapshots(t *testing.T) {
	formatter := &TextFormatter{}

	var buf bytes.Buffer
	err := formatter.FormatSnapshots(&buf, []*model.VehicleSnapshot{makeTestSnapshot(), makeTestSnapshot()})
	if err != nil {
		t.Fatalf("FormatSnapshots failed: %v", err)
	}
	if strings.Count(buf.String(), "---") != 1 {
		t.Error("Expected one separator between snapshots")
	}
}

func TestTableFormatter_FormatSnapshot(t *testing.T) {
	formatter := &TableFormatter{}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshot(&buf, makeTestSnapshot()); err != nil {
		t.Fatalf("FormatSnapshot failed: %v", err)
	}

	output := buf.String()
	for _, exp := range []string{"VIN", "UPDATED", "LSJA0000000000001", "85.5%", "250km", "charging"} {
		if !strings.Contains(output, exp) {
			t.Errorf("Output missing %q\n%s", exp, output)
		}
	}
}

func TestTableFormatter_EmptySnapshots(t *testing.T) {
	formatter := &TableFormatter{}

	var buf bytes.Buffer
	if err := formatter.FormatSnapshots(&buf, nil); err != nil {
		t.Fatalf("FormatSnapshots failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No snapshots to display") {
		t.Error("Expected empty message")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  OutputFormat
		wantErr bool
	}{
		{FormatJSON, false},
		{FormatYAML, false},
		{FormatCSV, false},
		{FormatText, false},
		{FormatTable, false},
		{"xml", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := NewFormatter(tt.format, false)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for unknown format")
				}
				return
			}
			if err != nil || f == nil {
				t.Errorf("NewFormatter(%s) failed: %v", tt.format, err)
			}
		})
	}

	if _, err := newFormatter(FormatYAML, false, true); err == nil {
		t.Error("Expected raw output to require json")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatDuration(95 * time.Minute); got != "1h 35m" {
		t.Errorf("formatDuration = %q", got)
	}
	if got := formatDuration(-time.Minute); got != "0m" {
		t.Errorf("formatDuration negative = %q", got)
	}
	if got := formatFloatPtr(nil, 1); got != "" {
		t.Errorf("formatFloatPtr(nil) = %q", got)
	}
	if got := formatLockStatus(nil); got != "Unknown" {
		t.Errorf("formatLockStatus(nil) = %q", got)
	}
	if got := formatTimestamp(time.Time{}); got != "never" {
		t.Errorf("formatTimestamp(zero) = %q", got)
	}
}
