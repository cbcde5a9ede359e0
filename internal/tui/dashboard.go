package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

// styles are shared by all views.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ffff")).
			Bold(true).
			MarginTop(1).
			MarginBottom(1),
		section: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5f5fff")).
			Padding(1).
			MarginBottom(1),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true),
	}
}

// DashboardView handles the main dashboard display
type DashboardView struct {
	styles styles
}

// NewDashboardView creates a new dashboard view
func NewDashboardView() *DashboardView {
	return &DashboardView{styles: newStyles()}
}

// Render renders the dashboard view
func (v *DashboardView) Render(snap *model.VehicleSnapshot, width, height int) string {
	leftColumn := lipgloss.JoinVertical(
		lipgloss.Left,
		v.renderBatterySection(snap),
		v.renderChargingSection(snap),
	)

	middleColumn := lipgloss.JoinVertical(
		lipgloss.Left,
		v.renderSecuritySection(snap),
		v.renderTyrePressures(snap),
	)

	rightColumn := v.renderStatsSection(snap)

	topRow := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ",
		middleColumn,
		"  ",
		rightColumn,
	)

	return v.styles.title.Render("📊 Dashboard") + "\n" +
		topRow + "\n" +
		v.renderIssues(snap)
}

func (v *DashboardView) line(label, value string) string {
	return fmt.Sprintf("%s %s", v.styles.label.Render(label), v.styles.value.Render(value))
}

func (v *DashboardView) renderBatterySection(snap *model.VehicleSnapshot) string {
	var content strings.Builder

	if soc := snap.SOC(); soc != nil {
		content.WriteString(v.line("Battery:", fmt.Sprintf("%.1f%%", *soc)) + "\n\n")
		content.WriteString(renderLevelBar(*soc, 20) + "\n\n")
	} else {
		content.WriteString(v.line("Battery:", "n/a") + "\n\n")
	}

	if r := snap.ElectricRangeKm(); r != nil {
		rangeStyle := v.styles.value.Foreground(rangeColor(snap))
		content.WriteString(fmt.Sprintf("%s %s\n", v.styles.label.Render("Range:"), rangeStyle.Render(fmt.Sprintf("%.0f km", *r))))
	}
	if r := snap.FuelRangeKm(); r != nil && snap.VehicleType != model.VehicleTypeBEV {
		content.WriteString(v.line("Fuel Range:", fmt.Sprintf("%.0f km", *r)) + "\n")
	}
	if target := snap.TargetSOC(); target != nil {
		content.WriteString(v.line("Target SOC:", fmt.Sprintf("%d%%", *target)))
	}

	return v.styles.section.Width(35).Render("⚡ Battery & Range\n\n" + content.String())
}

func (v *DashboardView) renderChargingSection(snap *model.VehicleSnapshot) string {
	state, ok := snap.ChargeState()
	if !ok {
		return v.styles.section.Width(35).Render("🔋 Charging\n\n" + v.line("Status:", "❓ Unknown"))
	}

	stateEmoji := "○"
	stateColor := lipgloss.Color("#888888")
	switch {
	case state.IsCharging():
		stateEmoji = "⚡"
		stateColor = lipgloss.Color("#00ff00")
	case state == model.ChargeStateFinished:
		stateEmoji = "✓"
		stateColor = lipgloss.Color("#00ff00")
	case state == model.ChargeStateScheduled:
		stateEmoji = "⏱"
		stateColor = lipgloss.Color("#ffff00")
	case state == model.ChargeStateFault:
		stateEmoji = "✗"
		stateColor = lipgloss.Color("#ff0000")
	}
	stateStyle := v.styles.value.Foreground(stateColor)

	content := fmt.Sprintf("%s %s %s\n\n",
		v.styles.label.Render("Status:"),
		stateEmoji,
		stateStyle.Render(state.String()),
	)

	// Charging details only if actively charging
	if state.IsCharging() {
		if power := snap.ChargingPower(); power != nil && *power > 0 {
			content += v.line("Power:", fmt.Sprintf("%.1f kW", *power)) + "\n"
		}
		if minutes := snap.RemainingChargeMinutes(); minutes != nil && *minutes > 0 {
			content += v.line("Time:", formatMinutes(*minutes))
		}
	}

	return v.styles.section.Width(35).Render("🔋 Charging\n\n" + content)
}

func (v *DashboardView) renderSecuritySection(snap *model.VehicleSnapshot) string {
	lockEmoji := "❓"
	lockStatus := "Unknown"
	lockColor := lipgloss.Color("#888888")
	if locked := snap.IsLocked(); locked != nil {
		if *locked {
			lockEmoji, lockStatus, lockColor = "🔒", "Locked", lipgloss.Color("#00ff00")
		} else {
			lockEmoji, lockStatus, lockColor = "🔓", "Unlocked", lipgloss.Color("#ffff00")
		}
	}
	lockStyle := v.styles.value.Foreground(lockColor)

	content := fmt.Sprintf("%s %s %s\n\n",
		v.styles.label.Render("Lock:"),
		lockEmoji,
		lockStyle.Render(lockStatus),
	)

	doors := []model.Closure{
		model.ClosureDriverDoor,
		model.ClosurePassengerDoor,
		model.ClosureRearLeftDoor,
		model.ClosureRearRightDoor,
	}
	content += v.line("Doors:", closureSummary(snap, doors...)) + "\n"
	content += v.line("Boot:", closureSummary(snap, model.ClosureBoot)) + "\n"
	content += v.line("Bonnet:", closureSummary(snap, model.ClosureBonnet))
	if snap.Capabilities.HasSunroof {
		content += "\n" + v.line("Sunroof:", closureSummary(snap, model.ClosureSunroof))
	}

	if mode, ok := snap.PowerMode(); ok {
		content += "\n\n" + v.line("Power:", mode.String())
	}

	return v.styles.section.Width(35).Render("🔐 Security\n\n" + content)
}

func (v *DashboardView) renderStatsSection(snap *model.VehicleSnapshot) string {
	content := ""

	if temp := snap.InteriorTemp(); temp != nil {
		tempColor := lipgloss.Color("#00ff00")
		if *temp < 15 || *temp > 27 {
			tempColor = lipgloss.Color("#ffff00")
		}
		if *temp < 5 || *temp > 35 {
			tempColor = lipgloss.Color("#ff0000")
		}
		tempStyle := v.styles.value.Foreground(tempColor)
		content += fmt.Sprintf("%s %s\n",
			v.styles.label.Render("Interior:"),
			tempStyle.Render(fmt.Sprintf("%.0f°C", *temp)),
		)
	}
	if temp := snap.ExteriorTemp(); temp != nil {
		content += v.line("Exterior:", fmt.Sprintf("%.0f°C", *temp)) + "\n"
	}
	content += "\n"

	if mileage := snap.MileageKm(); mileage != nil {
		content += v.line("Odometer:", fmt.Sprintf("%.1f km", *mileage)) + "\n\n"
	}

	if voltage := snap.BatteryVoltage(); voltage != nil {
		content += v.line("12V Battery:", fmt.Sprintf("%.1f V", *voltage)) + "\n\n"
	}

	if lat, lon, ok := snap.Location(); ok {
		content += fmt.Sprintf("%s\n%s\n",
			v.styles.label.Render("Location:"),
			v.styles.value.Render(fmt.Sprintf("%.5f, %.5f", lat, lon)),
		)
	}

	return v.styles.section.Width(30).Render("🌡️  Climate & Travel\n\n" + content)
}

func (v *DashboardView) renderTyrePressures(snap *model.VehicleSnapshot) string {
	renderTyre := func(label string, tyre model.Tyre) string {
		p := snap.TyrePressure(tyre)
		if p == nil {
			return fmt.Sprintf("%s %s", v.styles.label.Render(label+":"), v.styles.label.Render("n/a"))
		}

		statusColor := lipgloss.Color("#00ff00")
		if *p < model.LowTyrePressureBar {
			statusColor = lipgloss.Color("#ffff00")
		}
		return fmt.Sprintf("%s %s",
			v.styles.label.Render(label+":"),
			v.styles.value.Foreground(statusColor).Render(fmt.Sprintf("%.1f bar", *p)),
		)
	}

	content := renderTyre("Front Left", model.TyreFrontLeft) + "\n"
	content += renderTyre("Front Right", model.TyreFrontRight) + "\n\n"
	content += renderTyre("Rear Left", model.TyreRearLeft) + "\n"
	content += renderTyre("Rear Right", model.TyreRearRight)

	return v.styles.section.Width(35).Render("🚗 Tyre Pressure\n\n" + content)
}

func (v *DashboardView) renderIssues(snap *model.VehicleSnapshot) string {
	issues := snap.Issues()
	if len(issues) == 0 {
		return ""
	}

	issueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ffff00"))

	criticalStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ff0000")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	critical := snap.HasCriticalIssues()

	var content strings.Builder
	for _, issue := range issues {
		switch {
		case strings.HasPrefix(issue, "Info:"):
			content.WriteString(infoStyle.Render("ℹ " + strings.TrimPrefix(issue, "Info: ")))
		case critical:
			content.WriteString(criticalStyle.Render("⚠ " + issue))
		default:
			content.WriteString(issueStyle.Render("• " + issue))
		}
		content.WriteString("\n")
	}

	return v.styles.section.Width(72).Render("⚠️  Issues\n\n" + content.String())
}

// closureSummary describes a group of closures, e.g. "All closed" or "2 open".
func closureSummary(snap *model.VehicleSnapshot, closures ...model.Closure) string {
	known, open := 0, 0
	for _, c := range closures {
		if o := snap.IsOpen(c); o != nil {
			known++
			if *o {
				open++
			}
		}
	}

	switch {
	case known == 0:
		return "Unknown"
	case open == 0 && len(closures) == 1:
		return "Closed"
	case open == 0:
		return "All closed"
	case len(closures) == 1:
		return "Open"
	default:
		return fmt.Sprintf("%d open", open)
	}
}

// rangeColor grades the electric range by state of charge.
func rangeColor(snap *model.VehicleSnapshot) lipgloss.Color {
	soc := snap.SOC()
	switch {
	case soc == nil:
		return lipgloss.Color("#888888")
	case *soc < model.LowSOCPercent/2:
		return lipgloss.Color("#ff0000")
	case *soc < model.LowSOCPercent:
		return lipgloss.Color("#ffff00")
	default:
		return lipgloss.Color("#00ff00")
	}
}

// renderLevelBar creates a visual battery bar
func renderLevelBar(level float64, width int) string {
	filled := int(level * float64(width) / 100)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	// Color based on level
	barColor := lipgloss.Color("#00ff00")
	if level < 20 {
		barColor = lipgloss.Color("#ff0000")
	} else if level < 50 {
		barColor = lipgloss.Color("#ffff00")
	}

	filledStyle := lipgloss.NewStyle().Foreground(barColor)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))

	bar := filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("[%s]", bar)
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
