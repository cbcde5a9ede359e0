package model

import (
	"strings"
	"testing"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

func TestIssues(t *testing.T) {
	s := testSnapshot()
	s.Status.Basic.LockStatus = intPtr(0)
	s.Status.Basic.RearRightTyrePressure = intPtr(40) // 1.6 bar
	s.Charging.Mgmt.BmsPackSOCDsp = intPtr(150)
	s.Runtime.IsCharging = false

	issues := s.Issues()
	joined := strings.Join(issues, "\n")

	for _, want := range []string{
		"Boot open",
		"Vehicle unlocked",
		"Low tyre pressure rear right (1.6 bar)",
		"Low battery (15%)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected issue %q in %v", want, issues)
		}
	}

	if strings.Contains(joined, "Driver door") {
		t.Error("Closed driver door must not be reported")
	}
}

func TestIssues_LowBatteryWhileCharging(t *testing.T) {
	s := testSnapshot()
	s.Charging.Mgmt.BmsPackSOCDsp = intPtr(150)
	s.Runtime.IsCharging = true

	for _, issue := range s.Issues() {
		if strings.Contains(issue, "Low battery") {
			t.Errorf("Unexpected issue while charging: %s", issue)
		}
	}
}

func TestIssues_ICEIgnoresSOC(t *testing.T) {
	s := testSnapshot()
	s.VehicleType = VehicleTypeICE
	s.Charging.Mgmt.BmsPackSOCDsp = intPtr(50)

	for _, issue := range s.Issues() {
		if strings.Contains(issue, "Low battery") {
			t.Errorf("Unexpected issue for ICE: %s", issue)
		}
	}
}

func TestIssues_NoStatus(t *testing.T) {
	s := &VehicleSnapshot{VIN: "VIN1"}
	if issues := s.Issues(); len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}
}

func TestHasCriticalIssues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *VehicleSnapshot)
		want   bool
	}{
		{
			name:   "locked with boot open",
			mutate: func(s *VehicleSnapshot) {},
			want:   true,
		},
		{
			name: "all closed",
			mutate: func(s *VehicleSnapshot) {
				s.Status.Basic.BootStatus = intPtr(0)
			},
			want: false,
		},
		{
			name: "battery nearly empty",
			mutate: func(s *VehicleSnapshot) {
				s.Status.Basic.BootStatus = intPtr(0)
				s.Charging = &saic.ChargingPayload{Mgmt: &saic.ChargeMgmtData{BmsPackSOCDsp: intPtr(50)}}
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSnapshot()
			tt.mutate(s)
			if got := s.HasCriticalIssues(); got != tt.want {
				t.Errorf("HasCriticalIssues() = %v, want %v", got, tt.want)
			}
		})
	}
}
