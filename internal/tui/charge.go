package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

// ChargeView handles the charging details display
type ChargeView struct {
	styles styles
	now    func() time.Time
}

// NewChargeView creates a new charge view
func NewChargeView() *ChargeView {
	return &ChargeView{styles: newStyles(), now: time.Now}
}

// Render renders the charge view
func (v *ChargeView) Render(snap *model.VehicleSnapshot, width, height int) string {
	if !snap.VehicleType.HasBattery() {
		return v.styles.title.Render("🔋 Charging") + "\n" +
			v.styles.label.Render(fmt.Sprintf("No traction battery (%s)", snap.VehicleType))
	}

	leftColumn := lipgloss.JoinVertical(
		lipgloss.Left,
		v.renderChargingStatus(snap),
		v.renderRecommendations(snap),
	)

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ",
		v.renderBatteryDetails(snap),
	)

	return v.styles.title.Render("🔋 Charging") + "\n" + content
}

func (v *ChargeView) line(label, value string) string {
	return fmt.Sprintf("%s %s", v.styles.label.Render(label), v.styles.value.Render(value))
}

func (v *ChargeView) renderChargingStatus(snap *model.VehicleSnapshot) string {
	stateEmoji := "🔌"
	stateText := "Unknown"
	stateColor := lipgloss.Color("#888888")

	state, ok := snap.ChargeState()
	if ok {
		stateText = state.String()
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
		case state == model.ChargeStateNotCharging:
			stateEmoji = "○"
		}
	}

	emojiStyle := lipgloss.NewStyle().
		Foreground(stateColor).
		Bold(true).
		Align(lipgloss.Center)

	titleStyle := lipgloss.NewStyle().
		Foreground(stateColor).
		Bold(true).
		Align(lipgloss.Center).
		MarginTop(1).
		MarginBottom(2)

	content := emojiStyle.Render(fmt.Sprintf("    %s", stateEmoji)) + "\n"
	content += titleStyle.Render(stateText) + "\n\n"

	if soc := snap.SOC(); soc != nil {
		content += lipgloss.NewStyle().Align(lipgloss.Center).Render(renderLevelBar(*soc, 30)) + "\n\n"

		percentStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff00")).
			Bold(true).
			Align(lipgloss.Center)
		content += percentStyle.Render(fmt.Sprintf("%.1f%%", *soc)) + "\n\n"
	}

	if ok && state.IsCharging() {
		if power := snap.ChargingPower(); power != nil && *power > 0 {
			content += v.line("Charging Power:", fmt.Sprintf("%.1f kW", *power)) + "\n"
		}
		if current := snap.ChargingCurrent(); current != nil {
			content += v.line("Current:", fmt.Sprintf("%.1f A", *current)) + "\n"
		}
		if voltage := snap.ChargingVoltage(); voltage != nil {
			content += v.line("Voltage:", fmt.Sprintf("%.1f V", *voltage)) + "\n"
		}

		if minutes := snap.RemainingChargeMinutes(); minutes != nil && *minutes > 0 {
			content += v.line("Time Remaining:", formatMinutes(*minutes)) + "\n"

			complete := v.now().Add(time.Duration(*minutes) * time.Minute)
			content += v.line("Est. Complete:", complete.Format("15:04"))
		}
	}

	return v.styles.section.Width(40).Render(content)
}

func (v *ChargeView) renderBatteryDetails(snap *model.VehicleSnapshot) string {
	content := ""

	soc := snap.SOC()
	if soc != nil {
		content += v.line("Current Level:", fmt.Sprintf("%.1f%%", *soc)) + "\n\n"
	}

	target := snap.TargetSOC()
	if target != nil {
		content += v.line("Target SOC:", fmt.Sprintf("%d%%", *target)) + "\n\n"
	}

	if soc != nil && target != nil {
		needed := float64(*target) - *soc
		if needed > 0 {
			content += v.line("To Target:", fmt.Sprintf("+%.1f%%", needed)) + "\n\n"
		} else {
			content += fmt.Sprintf("%s %s\n\n",
				v.styles.label.Render("Status:"),
				lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00")).Render("At target"),
			)
		}
	}

	if limit, ok := snap.ChargeCurrentLimit(); ok {
		content += v.line("Current Limit:", limit.String()) + "\n\n"
	}

	if r := snap.ElectricRangeKm(); r != nil {
		rangeStyle := v.styles.value.Foreground(rangeColor(snap))
		content += fmt.Sprintf("%s %s",
			v.styles.label.Render("Range:"),
			rangeStyle.Render(fmt.Sprintf("%.0f km", *r)),
		)
	}

	return v.styles.section.Width(30).Render("📊 Battery Details\n\n" + content)
}

func (v *ChargeView) renderRecommendations(snap *model.VehicleSnapshot) string {
	recommendations := chargingRecommendations(snap)

	if len(recommendations) == 0 {
		return ""
	}

	content := ""
	for i, rec := range recommendations {
		if i > 0 {
			content += "\n\n"
		}

		icon := "💡"
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffff00"))
		if rec.critical {
			icon = "⚠️"
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000"))
		}

		content += fmt.Sprintf("%s %s", icon, style.Render(rec.message))
	}

	return v.styles.section.Width(40).Render("💡 Recommendations\n\n" + content)
}

type recommendation struct {
	message  string
	critical bool
}

func chargingRecommendations(snap *model.VehicleSnapshot) []recommendation {
	soc := snap.SOC()
	if soc == nil {
		return nil
	}

	var recs []recommendation
	state, _ := snap.ChargeState()
	charging := state.IsCharging()

	switch {
	case *soc < model.LowSOCPercent/2:
		recs = append(recs, recommendation{
			message:  fmt.Sprintf("Critical battery level! Only %.0f%% remaining", *soc),
			critical: true,
		})
	case *soc < model.LowSOCPercent && !charging:
		recs = append(recs, recommendation{message: "Low battery - consider charging soon"})
	}

	if target := snap.TargetSOC(); target != nil && *soc < float64(*target) && !charging {
		recs = append(recs, recommendation{
			message: fmt.Sprintf("Battery below target (%d%%) - connect to charger", *target),
		})
	}

	if *soc > 85 {
		recs = append(recs, recommendation{
			message: "Battery above 85% - consider a lower target SOC for battery health",
		})
	}

	if state == model.ChargeStateFinished {
		recs = append(recs, recommendation{message: "Charge complete - vehicle ready to drive"})
	}

	return recs
}
