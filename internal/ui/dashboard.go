package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/dspw215/internal/accessory"
	"github.com/muurk/dspw215/internal/hnap"
)

// requestTimeout bounds each plug round trip started by the dashboard.
const requestTimeout = 15 * time.Second

// DashboardOutlet is the plug the dashboard drives.
type DashboardOutlet interface {
	Refresh(ctx context.Context) (accessory.Snapshot, error)
	SetOn(ctx context.Context, on bool) error
	Information() accessory.Information
}

// Message types for async operations
type (
	snapshotMsg struct {
		snap accessory.Snapshot
		err  error
	}
	switchedMsg struct {
		on  bool
		err error
	}
	tickMsg time.Time
)

// dashboardKeyMap defines key bindings for the dashboard
type dashboardKeyMap struct {
	Toggle  key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Refresh},
		{k.Help, k.Quit},
	}
}

func newDashboardKeyMap() dashboardKeyMap {
	return dashboardKeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "t"),
			key.WithHelp("space", "toggle"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// DashboardModel is a live view of one plug.
type DashboardModel struct {
	Outlet   DashboardOutlet
	Interval time.Duration

	Width  int
	Height int

	Snapshot  accessory.Snapshot
	Loaded    bool // At least one refresh succeeded
	Busy      bool
	LastError error

	Spinner spinner.Model
	Help    help.Model
	Keys    dashboardKeyMap
}

// NewDashboard creates a dashboard that refreshes every interval.
func NewDashboard(outlet DashboardOutlet, interval time.Duration) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return DashboardModel{
		Outlet:   outlet,
		Interval: interval,
		Width:    GetTerminalWidth(),
		Busy:     true,
		Spinner:  s,
		Help:     help.New(),
		Keys:     newDashboardKeyMap(),
	}
}

// Init starts the first refresh and the spinner
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, refreshCmd(m.Outlet))
}

func refreshCmd(outlet DashboardOutlet) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := outlet.Refresh(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func switchCmd(outlet DashboardOutlet, on bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return switchedMsg{on: on, err: outlet.SetOn(ctx, on)}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width, nil)
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Help):
			m.Help.ShowAll = !m.Help.ShowAll
			return m, nil
		case m.Busy:
			// One plug request at a time.
			return m, nil
		case key.Matches(msg, m.Keys.Refresh):
			m.Busy = true
			return m, refreshCmd(m.Outlet)
		case key.Matches(msg, m.Keys.Toggle):
			m.Busy = true
			return m, switchCmd(m.Outlet, !m.Snapshot.On)
		}
		return m, nil

	case snapshotMsg:
		m.Busy = false
		m.LastError = msg.err
		if msg.err == nil {
			m.Snapshot = msg.snap
			m.Loaded = true
		}
		if m.Interval > 0 {
			return m, tickCmd(m.Interval)
		}
		return m, nil

	case switchedMsg:
		if msg.err != nil {
			m.Busy = false
			m.LastError = msg.err
			return m, nil
		}
		m.Snapshot.On = msg.on
		return m, refreshCmd(m.Outlet)

	case tickMsg:
		if m.Busy {
			return m, nil
		}
		m.Busy = true
		return m, refreshCmd(m.Outlet)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	info := m.Outlet.Information()

	title := TitleStyle.Render(strings.ToUpper(info.Name))
	subtitle := SubtitleStyle.Render(fmt.Sprintf("%s %s  ·  %s", info.Manufacturer, info.Model, info.SerialNumber))

	rows := []string{title, subtitle, ""}

	if m.Loaded {
		rows = append(rows,
			ResultKeyStyle.Render("Power:")+" "+PowerBadge(m.Snapshot.On),
			ResultKeyStyle.Render("Temperature:")+" "+ResultValueStyle.Render(formatTemperature(m.Snapshot.Temperature)),
			ResultKeyStyle.Render("Updated:")+" "+ResultValueStyle.Render(m.Snapshot.Time.Format("15:04:05")),
		)
	} else {
		rows = append(rows, SubtitleStyle.Render("Waiting for the plug..."))
	}

	if info.Settings != nil {
		rows = append(rows,
			ResultKeyStyle.Render("Address:")+" "+ResultValueStyle.Render(info.Settings.IPAddress),
		)
	}

	status := ""
	if m.Busy {
		status = m.Spinner.View() + " " + SubtitleStyle.Render("talking to plug")
	}
	if m.LastError != nil {
		status = ErrorMessageStyle.Render(FailureMarker + " " + m.LastError.Error())
	}
	rows = append(rows, "", status)

	panel := PanelStyle(m.Width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return lipgloss.JoinVertical(lipgloss.Left, panel, m.Help.View(m.Keys))
}

func formatTemperature(t float64) string {
	if t == hnap.InvalidTemperature {
		return "n/a"
	}
	return fmt.Sprintf("%.1f °C", t)
}
