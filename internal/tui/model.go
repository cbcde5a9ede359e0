package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/model"
)

// ViewType represents the current active view
type ViewType int

const (
	ViewDashboard ViewType = iota
	ViewCharge
	ViewPolling
)

// Source is the part of the coordinator the TUI reads from.
type Source interface {
	LatestSnapshot() *model.VehicleSnapshot
	RequestRefresh(ctx context.Context) error
	Subscribe(fn func(model.VehicleSnapshot)) error
}

// Executor runs vehicle commands by name, like control.Commander.
type Executor interface {
	Execute(ctx context.Context, name, value string) error
}

// ErrorMsg reports a fatal coordinator error to a running program.
type ErrorMsg struct {
	Err error
}

// Model is the main Bubble Tea model for the TUI
type Model struct {
	// Core dependencies
	source Source
	exec   Executor

	// Application state
	currentView ViewType
	state       *model.VehicleSnapshot
	err         error
	loading     bool
	status      string

	ctx        context.Context
	cancel     context.CancelFunc
	updateChan chan model.VehicleSnapshot

	// Sub-views
	dashboardView *DashboardView
	chargeView    *ChargeView
	pollingView   *PollingView

	// Terminal dimensions
	width  int
	height int

	// Last update time
	lastUpdate time.Time
}

// NewModel creates a new TUI model. exec may be nil, which disables the
// lock and unlock keys.
func NewModel(source Source, exec Executor) *Model {
	ctx, cancel := context.WithCancel(context.Background())

	return &Model{
		source:        source,
		exec:          exec,
		currentView:   ViewDashboard,
		loading:       true,
		ctx:           ctx,
		cancel:        cancel,
		updateChan:    make(chan model.VehicleSnapshot, 1),
		dashboardView: NewDashboardView(),
		chargeView:    NewChargeView(),
		pollingView:   NewPollingView(),
	}
}

// Init initializes the model (Bubble Tea lifecycle method)
func (m *Model) Init() tea.Cmd {
	if err := m.source.Subscribe(m.offer); err != nil {
		m.loading = false
		m.err = err
		return tea.EnterAltScreen
	}

	// The coordinator may have published before we subscribed
	if snap := m.source.LatestSnapshot(); snap != nil {
		m.offer(*snap)
	}

	return tea.Batch(
		m.waitForUpdates(),
		tea.EnterAltScreen,
	)
}

// offer keeps only the newest pending snapshot so a slow terminal never
// blocks the coordinator.
func (m *Model) offer(snap model.VehicleSnapshot) {
	for {
		select {
		case m.updateChan <- snap:
			return
		default:
		}
		select {
		case <-m.updateChan:
		default:
		}
	}
}

// Update handles messages and updates the model (Bubble Tea lifecycle method)
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.loading = false
		m.err = nil
		snap := msg.snap
		m.state = &snap
		m.lastUpdate = time.Now()
		return m, m.waitForUpdates()

	case commandDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.name, msg.err)
		} else {
			m.status = fmt.Sprintf("%s sent", msg.name)
		}
		return m, nil

	case ErrorMsg:
		m.loading = false
		m.err = msg.Err
		return m, nil

	default:
		return m, nil
	}
}

// View renders the current view (Bubble Tea lifecycle method)
func (m *Model) View() string {
	if m.err != nil {
		return m.renderError()
	}

	if m.loading {
		return m.renderLoading()
	}

	if m.state == nil {
		return "No vehicle data available"
	}

	// Render header
	header := m.renderHeader()

	// Render current view
	var content string
	contentHeight := m.height - lipgloss.Height(header) - 3
	switch m.currentView {
	case ViewDashboard:
		content = m.dashboardView.Render(m.state, m.width, contentHeight)
	case ViewCharge:
		content = m.chargeView.Render(m.state, m.width, contentHeight)
	case ViewPolling:
		content = m.pollingView.Render(m.state, m.width, contentHeight)
	}

	// Render footer with keyboard shortcuts
	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		footer,
	)
}

// handleKeyPress processes keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancel()
		return m, tea.Quit

	case "1", "d":
		m.currentView = ViewDashboard
		return m, nil

	case "2", "c":
		m.currentView = ViewCharge
		return m, nil

	case "3", "p":
		m.currentView = ViewPolling
		return m, nil

	case "r":
		m.status = "refresh requested"
		return m, m.requestRefresh()

	case "l":
		return m, m.execute("lock_unlock", "LOCK")

	case "u":
		return m, m.execute("lock_unlock", "UNLOCK")

	default:
		return m, nil
	}
}

// Messages

type snapshotMsg struct {
	snap model.VehicleSnapshot
}

type commandDoneMsg struct {
	name string
	err  error
}

// Commands

func (m *Model) waitForUpdates() tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-m.updateChan:
			return snapshotMsg{snap: snap}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) requestRefresh() tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg{name: "refresh", err: m.source.RequestRefresh(m.ctx)}
	}
}

func (m *Model) execute(name, value string) tea.Cmd {
	if m.exec == nil {
		return nil
	}
	label := strings.ToLower(value)
	m.status = label + " pending"
	return func() tea.Msg {
		return commandDoneMsg{name: label, err: m.exec.Execute(m.ctx, name, value)}
	}
}

// Rendering helpers

func (m *Model) renderHeader() string {
	if m.state == nil {
		return ""
	}

	// Vehicle info
	vehicleInfo := m.state.VIN
	if info := m.state.Info; info != nil && info.ModelName != "" {
		vehicleInfo = strings.TrimSpace(fmt.Sprintf("%s %s %s", info.BrandName, info.ModelName, info.ModelYear))
	}

	// Polling mode
	mode := m.state.Runtime.Mode
	if mode == "" {
		mode = "unknown"
	}
	modeColor := lipgloss.Color("#00ff00")
	switch coordinator.Mode(mode) {
	case coordinator.ModeCharging, coordinator.ModePowered:
		modeColor = lipgloss.Color("#ffff00")
	case coordinator.ModeAction:
		modeColor = lipgloss.Color("#00ffff")
	}

	// Last update
	updateTime := "never"
	if !m.lastUpdate.IsZero() {
		updateTime = m.lastUpdate.Format("15:04:05")
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffffff")).
		Background(lipgloss.Color("#5f5fff")).
		Padding(0, 1)

	modeStyle := lipgloss.NewStyle().
		Foreground(modeColor).
		Bold(true)

	leftSection := headerStyle.Render(fmt.Sprintf("🚗 %s", vehicleInfo))
	rightSection := headerStyle.Render(fmt.Sprintf("%s | Updated: %s", modeStyle.Render(mode), updateTime))

	// Calculate spacing
	spacingWidth := m.width - lipgloss.Width(leftSection) - lipgloss.Width(rightSection)
	if spacingWidth < 0 {
		spacingWidth = 0
	}
	spacing := headerStyle.Render(fmt.Sprintf("%*s", spacingWidth, ""))

	return leftSection + spacing + rightSection
}

func (m *Model) renderFooter() string {
	tabs := []string{
		"[1] Dashboard",
		"[2] Charge",
		"[3] Polling",
	}

	activeTabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00ffff")).
		Bold(true)

	inactiveTabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	var renderedTabs []string
	for i, tab := range tabs {
		if ViewType(i) == m.currentView {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(tab)+" ")
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(tab)+" ")
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Left, renderedTabs...)

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666"))

	keys := "[r] refresh | [q] quit"
	if m.exec != nil {
		keys = "[l] lock | [u] unlock | " + keys
	}
	if m.status != "" {
		keys = m.status + " | " + keys
	}
	help := helpStyle.Render(keys)

	// Reserve 2 chars for the footer padding
	spacingWidth := m.width - 2 - lipgloss.Width(tabBar) - lipgloss.Width(help)
	if spacingWidth < 0 {
		spacingWidth = 0
	}
	spacing := strings.Repeat(" ", spacingWidth)

	footerStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#1a1a1a")).
		Padding(0, 1)

	return footerStyle.Render(tabBar + spacing + help)
}

func (m *Model) renderLoading() string {
	loadingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00ffff")).
		Bold(true).
		Align(lipgloss.Center, lipgloss.Center).
		Width(m.width).
		Height(m.height)

	return loadingStyle.Render("Loading vehicle data...")
}

func (m *Model) renderError() string {
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ff0000")).
		Bold(true).
		Align(lipgloss.Center, lipgloss.Center).
		Width(m.width).
		Height(m.height)

	return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress 'q' to quit", m.err))
}
