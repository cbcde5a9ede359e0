package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/model"
)

// PollingView shows the coordinator's scheduling state and vehicle identity.
type PollingView struct {
	styles styles
	now    func() time.Time
}

// NewPollingView creates a new polling view
func NewPollingView() *PollingView {
	return &PollingView{styles: newStyles(), now: time.Now}
}

// Render renders the polling view
func (v *PollingView) Render(snap *model.VehicleSnapshot, width, height int) string {
	topRow := lipgloss.JoinHorizontal(
		lipgloss.Top,
		v.renderSchedule(snap),
		"  ",
		v.renderActivity(snap),
	)

	return v.styles.title.Render("⏱  Polling") + "\n" +
		topRow + "\n" +
		v.renderVehicle(snap)
}

func (v *PollingView) line(label, value string) string {
	return fmt.Sprintf("%s %s", v.styles.label.Render(label), v.styles.value.Render(value))
}

func (v *PollingView) renderSchedule(snap *model.VehicleSnapshot) string {
	rt := snap.Runtime

	modeText := rt.Mode
	if modeText == "" {
		modeText = "unknown"
	}
	modeColor := lipgloss.Color("#00ff00")
	switch coordinator.Mode(rt.Mode) {
	case coordinator.ModeCharging, coordinator.ModePowered:
		modeColor = lipgloss.Color("#ffff00")
	case coordinator.ModeAction:
		modeColor = lipgloss.Color("#00ffff")
	case coordinator.ModeGracePeriod, coordinator.ModeAfterShutdown:
		modeColor = lipgloss.Color("#ff8800")
	}

	modeStyle := lipgloss.NewStyle().
		Foreground(modeColor).
		Bold(true).
		Align(lipgloss.Center)

	content := modeStyle.Render(modeText) + "\n\n"
	content += v.line("Interval:", rt.UpdateInterval.String()) + "\n"
	content += v.line("Last Update:", v.ago(rt.LastUpdate)) + "\n"
	content += v.line("Next Update:", v.until(rt.NextUpdate)) + "\n\n"

	action := "no"
	if rt.ActionActive {
		action = "yes"
	}
	content += v.line("Action Pending:", action)

	return v.styles.section.Width(35).Render("📡 Schedule\n\n" + content)
}

func (v *PollingView) renderActivity(snap *model.VehicleSnapshot) string {
	rt := snap.Runtime

	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	content := v.line("Charging:", yesNo(rt.IsCharging)) + "\n"
	content += v.line("Powered On:", yesNo(rt.IsPoweredOn)) + "\n\n"
	content += v.line("Last Activity:", v.ago(rt.LastActivity)) + "\n"
	content += v.line("Powered On At:", v.ago(rt.LastPoweredOn)) + "\n"
	content += v.line("Powered Off At:", v.ago(rt.LastPoweredOff))

	return v.styles.section.Width(35).Render("🚦 Activity\n\n" + content)
}

func (v *PollingView) renderVehicle(snap *model.VehicleSnapshot) string {
	content := v.line("VIN:", snap.VIN) + "\n"
	if info := snap.Info; info != nil {
		content += v.line("Model:", fmt.Sprintf("%s %s", info.BrandName, info.ModelName)) + "\n"
		if info.ModelYear != "" {
			content += v.line("Year:", info.ModelYear) + "\n"
		}
		if info.Series != "" {
			content += v.line("Series:", info.Series) + "\n"
		}
	}
	content += v.line("Type:", string(snap.VehicleType)) + "\n"
	content += v.line("Climate Range:", fmt.Sprintf("%d-%d°C", snap.Climate.MinTemp, snap.Climate.MaxTemp))

	var caps []string
	if snap.Capabilities.HasSunroof {
		caps = append(caps, "sunroof")
	}
	if snap.Capabilities.HasHeatedSeats {
		caps = append(caps, "heated seats")
	}
	if snap.Capabilities.HasBatteryHeating {
		caps = append(caps, "battery heating")
	}
	if len(caps) > 0 {
		content += "\n" + v.line("Features:", fmt.Sprint(caps))
	}

	return v.styles.section.Width(72).Render("🚗 Vehicle\n\n" + content)
}

func (v *PollingView) ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return formatAge(v.now().Sub(t))
}

func (v *PollingView) until(t time.Time) string {
	if t.IsZero() {
		return "not scheduled"
	}
	d := t.Sub(v.now())
	if d <= 0 {
		return "due"
	}
	return "in " + d.Round(time.Second).String()
}

func formatAge(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}

	if d < time.Hour {
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	}

	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm ago", hours, minutes)
		}
		return fmt.Sprintf("%dh ago", hours)
	}

	return fmt.Sprintf("%d days ago", int(d.Hours()/24))
}
