package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apkbridge/apkbridge/internal/history"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// HealthState tracks bridge health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	ToolCount     int
	Workspaces    int
	Connected     bool
	LastCheck     time.Time
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	health     HealthState
	workspaces []workspace.Info
	entries    []history.Entry

	wsTable table.Model

	theme     Theme
	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	columns := []table.Column{
		{Title: "APK", Width: 34},
		{Title: "State", Width: 10},
		{Title: "Updated", Width: 10},
		{Title: "Last Error", Width: 36},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(8),
		table.WithFocused(true),
	)

	return &Model{
		apiURL:  apiURL,
		apiKey:  apiKey,
		wsTable: t,
		theme:   NewDefaultTheme(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.refresh(),
		tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m *Model) refresh() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchWorkspaces(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchHistory(m.apiURL, m.apiKey) },
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(
			m.refresh(),
			tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.ToolCount = msg.ToolCount
		m.health.Workspaces = msg.Workspaces
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

	case workspacesMsg:
		m.workspaces = msg.Workspaces
		m.wsTable.SetRows(workspaceRows(msg.Workspaces))

	case historyMsg:
		m.entries = msg.Entries

	case errMsg:
		m.health.Connected = false
		m.lastError = msg.Error()
	}

	var cmd tea.Cmd
	m.wsTable, cmd = m.wsTable.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Connecting to apkbridge..."
	}

	header := renderHeader(m.health, m.theme, m.width)
	workspaces := renderWorkspaces(&m.wsTable, m.theme, m.width)
	log := renderHistory(m.entries, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StateFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := m.theme.Dim.Render(" [q] Quit • [r] Refresh • [↑/↓] Navigate")

	parts := []string{header, workspaces, log}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
