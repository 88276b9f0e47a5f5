package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// Connection names shown in the status panel.
const (
	ConnExchange = "Binance"
	ConnOnChain  = "Serum"
	ConnClients  = "Subscribers"
)

const maxErrors = 3

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	spreads *components.SpreadsComponent
	status  *components.StatusComponent
	keys    KeyMap
	help    help.Model

	phase        Phase
	welcomeStart time.Time
	startupTime  time.Time

	quitting   bool
	paused     bool
	width      int
	height     int
	updates    uint64
	lastUpdate time.Time
	errors     []ErrorEntry

	now func() time.Time
}

// New creates a new TUI model. threshold only affects highlighting.
func New(threshold decimal.Decimal) Model {
	now := time.Now()
	status := components.NewStatusComponent()
	status.Update(components.ConnectionStatus{Name: ConnExchange})
	status.Update(components.ConnectionStatus{Name: ConnOnChain})
	status.Update(components.ConnectionStatus{Name: ConnClients})

	return Model{
		spreads:      components.NewSpreadsComponent(threshold),
		status:       status,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		startupTime:  now,
		errors:       make([]ErrorEntry, 0, maxErrors),
		now:          time.Now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// Any other key skips the welcome screen.
		if m.phase == PhaseWelcome {
			return m.leaveWelcome(), nil
		}
		switch {
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.errors = m.errors[:0]
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && m.now().Sub(m.welcomeStart) >= WelcomeDuration {
			m = m.leaveWelcome()
		}
		return m, tickCmd()

	case SpreadsMsg:
		if m.paused {
			return m, nil
		}
		m.spreads.Update(msg.Records)
		m.updates++
		m.lastUpdate = msg.At
		if m.phase == PhaseStartup && m.spreads.Len() > 0 {
			m.phase = PhaseDashboard
		}

	case StatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:      ConnExchange,
			Connected: msg.ExchangeConnected,
		})
		m.status.Update(components.ConnectionStatus{
			Name:      ConnOnChain,
			Connected: msg.OnChainReady,
			Detail:    fmt.Sprintf("%d markets", len(msg.Markets)),
		})
		m.status.Update(components.ConnectionStatus{
			Name:      ConnClients,
			Connected: true,
			Detail:    fmt.Sprintf("%d connected", msg.Clients),
		})
		if m.phase == PhaseStartup && msg.ExchangeConnected && msg.OnChainReady {
			m.phase = PhaseDashboard
		}

	case ErrorMsg:
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: m.now(),
		})
		if len(m.errors) > maxErrors {
			m.errors = m.errors[len(m.errors)-maxErrors:]
		}
	}

	return m, nil
}

func (m Model) leaveWelcome() Model {
	m.phase = PhaseStartup
	m.startupTime = m.now()
	// Signal directly; Send must not be called from within Update.
	if OnStartModules != nil {
		go OnStartModules()
	}
	return m
}

// Phase returns the current phase.
func (m Model) Phase() Phase { return m.phase }

// Paused reports whether spread updates are frozen.
func (m Model) Paused() bool { return m.paused }

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Serum / Binance Spread Monitor "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	width := m.width - 4
	if width < 40 {
		width = 88
	}
	b.WriteString(BoxStyle.Width(width).Render(m.spreads.View()))
	b.WriteString("\n")
	b.WriteString(BoxStyle.Width(width).Render(m.status.View()))
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (c: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := m.now().Sub(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
		b.WriteString(pauseStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	dotCount := int(m.now().Sub(m.welcomeStart).Milliseconds()/300) % 4

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(titleStyle.Render("          S P R E A D   M O N I T O R"))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("          Binance ticker vs Serum order book"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render("          Initializing" + strings.Repeat(".", dotCount)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("          Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(TitleStyle.Render(" Serum / Binance Spread Monitor "))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	spinners := []string{"◐", "◓", "◑", "◒"}
	idx := int(m.now().Sub(m.startupTime).Milliseconds()/200) % len(spinners)

	for _, name := range []string{ConnExchange, ConnOnChain} {
		conn, _ := m.status.Get(name)
		icon, text, style := spinners[idx], "Connecting...", StatusPending
		if conn.Connected {
			icon, text, style = "✓", "Ready", StatusConnected
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", style.Render(icon), MutedValue.Render(name), style.Render(text)))
	}

	sb.WriteString("\n")
	elapsed := m.now().Sub(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	for _, name := range []string{ConnExchange, ConnOnChain} {
		conn, _ := m.status.Get(name)
		if conn.Connected {
			parts = append(parts, StatusConnected.Render("● "+name))
		} else {
			parts = append(parts, StatusDisconnected.Render("○ "+name+" (disconnected)"))
		}
	}

	parts = append(parts, fmt.Sprintf("Updates: %d", m.updates))

	if !m.lastUpdate.IsZero() {
		ago := m.now().Sub(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
