package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

func TestPollingViewRender(t *testing.T) {
	view := NewPollingView()
	view.now = func() time.Time { return time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC) }

	output := view.Render(createTestSnapshot(), 120, 40)

	expectedContent := []string{
		"Polling",
		"Schedule",
		"charging",
		"10m0s",
		"5 min ago",
		"in 5m0s",
		"Activity",
		"Vehicle",
		"LSJA0000000000001",
		"MG MG4",
		"EH32 S",
		"17-33°C",
	}

	for _, content := range expectedContent {
		if !strings.Contains(output, content) {
			t.Errorf("Polling view missing %q\nGot: %s", content, output)
		}
	}
}

func TestPollingView_Unscheduled(t *testing.T) {
	view := NewPollingView()
	snap := createTestSnapshot()
	snap.Runtime = model.RuntimeView{}

	output := view.renderSchedule(snap)
	if !strings.Contains(output, "unknown") || !strings.Contains(output, "not scheduled") {
		t.Errorf("Expected empty runtime rendering, got: %s", output)
	}

	output = view.renderActivity(snap)
	if !strings.Contains(output, "never") {
		t.Errorf("Expected never for zero timestamps, got: %s", output)
	}
}

func TestPollingView_Overdue(t *testing.T) {
	view := NewPollingView()
	view.now = func() time.Time { return time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC) }

	output := view.renderSchedule(createTestSnapshot())
	if !strings.Contains(output, "due") {
		t.Errorf("Expected overdue update to read due, got: %s", output)
	}
}

func TestPollingView_Capabilities(t *testing.T) {
	view := NewPollingView()
	snap := createTestSnapshot()

	if strings.Contains(view.renderVehicle(snap), "Features:") {
		t.Error("Expected no features row without capabilities")
	}

	snap.Capabilities.HasSunroof = true
	snap.Capabilities.HasHeatedSeats = true
	output := view.renderVehicle(snap)
	if !strings.Contains(output, "sunroof") || !strings.Contains(output, "heated seats") {
		t.Errorf("Expected capabilities, got: %s", output)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5 min ago"},
		{2 * time.Hour, "2h ago"},
		{2*time.Hour + 15*time.Minute, "2h 15m ago"},
		{72 * time.Hour, "3 days ago"},
	}

	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
