// Package app is the root Bubble Tea model of the swarmwatch TUI.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	bhelp "github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/tui/client"
	"github.com/swarmwatch/swarmwatch/internal/tui/theme"
	"github.com/swarmwatch/swarmwatch/internal/tui/views/events"
	helpview "github.com/swarmwatch/swarmwatch/internal/tui/views/help"
	"github.com/swarmwatch/swarmwatch/internal/tui/views/peers"
	"github.com/swarmwatch/swarmwatch/internal/tui/views/status"
	"github.com/swarmwatch/swarmwatch/internal/tui/views/trackers"
)

// MinIdentifierLength mirrors the server-side check so obviously short
// input never leaves the terminal.
const MinIdentifierLength = 6

const healthInterval = 5 * time.Second

const idleHint = "Enter a magnet link or info hash above to begin monitoring."

type healthTickMsg struct{}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayEvents
)

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	keys   KeyMap
	help   bhelp.Model
	width  int
	height int

	input     textinput.Model
	snap      session.Snapshot
	statusBar status.Model
	events    events.Model
	overlay   Overlay
	notice    string

	connected bool
	animating bool
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())

	in := textinput.New()
	in.Placeholder = "Enter magnet link or info hash"
	in.Prompt = "> "
	in.CharLimit = 4096
	in.Focus()

	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		keys:      DefaultKeyMap(),
		help:      bhelp.New(),
		input:     in,
		snap:      session.Snapshot{}.Clone(),
		statusBar: status.New(),
		events:    events.New(),
	}
}

// Init connects the websocket and starts polling health.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.ws.Listen(m.ctx),
		m.http.HealthCmd(m.ctx),
		healthTick(),
	)
}

func healthTick() tea.Cmd {
	return tea.Tick(healthInterval, func(time.Time) tea.Msg { return healthTickMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-6, 20)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.events.Add(m.now(), events.KindConn, "connected")
		m.connected = true
		m.statusBar.Connected = true
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.events.Add(m.now(), events.KindConn, fmt.Sprintf("disconnected: %v", msg.Err))
		m.connected = false
		m.statusBar.Connected = false
		return m, m.ws.Listen(m.ctx)

	case client.SnapshotMsg:
		cmd := m.applySnapshot(msg.Snapshot)
		if msg.Live {
			return m, tea.Batch(cmd, m.ws.ReadLoop(m.ctx))
		}
		return m, cmd

	case client.RequestErrorMsg:
		if msg.Op != "health" {
			m.notice = fmt.Sprintf("%s failed: %v", msg.Op, msg.Err)
			m.events.Add(m.now(), events.KindError, m.notice)
		}
		return m, nil

	case client.HealthMsg:
		h := msg.Health
		m.statusBar.Health = &h
		return m, nil

	case healthTickMsg:
		return m, tea.Batch(m.http.HealthCmd(m.ctx), healthTick())

	case status.FrameMsg:
		if !m.statusBar.Animating() {
			m.animating = false
			return m, nil
		}
		m.statusBar.Pulse.Step()
		return m, status.Tick()
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) applySnapshot(s session.Snapshot) tea.Cmd {
	m.events.Diff(m.now(), m.snap, s)
	m.snap = s
	m.statusBar.Snapshot = s
	if !m.inputEnabled() && m.input.Focused() {
		m.input.Blur()
	}
	if m.statusBar.Animating() && !m.animating {
		m.animating = true
		return status.Tick()
	}
	return nil
}

// inputEnabled reports whether the identifier may be edited.
func (m Model) inputEnabled() bool {
	return m.snap.Status != session.StatusConnecting && m.snap.Status != session.StatusStopping
}

// canStop reports whether the stop key is live.
func (m Model) canStop() bool {
	return m.snap.Status != session.StatusStopping && m.snap.Status != session.StatusIdle
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		m.cancel()
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayHelp:
		if key.Matches(msg, m.keys.Blur, m.keys.Help, m.keys.Quit) {
			m.overlay = OverlayNone
		}
		return m, nil
	case OverlayEvents:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		case key.Matches(msg, m.keys.Blur, m.keys.Events, m.keys.Quit):
			m.overlay = OverlayNone
		}
		return m, nil
	}

	if m.input.Focused() {
		switch {
		case key.Matches(msg, m.keys.Start):
			return m.start()
		case key.Matches(msg, m.keys.Blur):
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Start):
		return m.start()

	case key.Matches(msg, m.keys.Stop):
		if !m.canStop() {
			return m, nil
		}
		m.notice = ""
		return m, m.http.StopCmd(m.ctx)

	case key.Matches(msg, m.keys.Focus):
		if m.inputEnabled() {
			return m, m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Resync):
		return m, m.http.ResyncCmd(m.ctx)

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keys.Events):
		m.overlay = OverlayEvents
		return m, nil
	}
	return m, nil
}

func (m Model) start() (tea.Model, tea.Cmd) {
	id := strings.TrimSpace(m.input.Value())
	if !m.inputEnabled() {
		return m, nil
	}
	if len(id) < MinIdentifierLength {
		m.notice = "identifier too short"
		return m, nil
	}
	m.notice = ""
	return m, m.http.StartCmd(m.ctx, id)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	switch m.overlay {
	case OverlayHelp:
		return helpview.View(m.keys.All(), m.width)
	case OverlayEvents:
		return m.events.View(m.width, m.height)
	}

	sections := []string{
		theme.StyleHeader.Render("swarmwatch: torrent swarm monitor"),
		m.statusBar.View(),
	}
	if !m.connected {
		sections = append(sections, theme.StyleError.Render("  DISCONNECTED: Reconnecting to server..."))
	}

	input := m.input.View()
	if !m.inputEnabled() {
		input = theme.StyleDimmed.Render(input)
	}
	sections = append(sections, input)
	if m.notice != "" {
		sections = append(sections, theme.StyleWarning.Render("  "+m.notice))
	}
	if panel := status.ErrorPanel(m.snap.LastError, m.width); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, status.Summary(m.snap), "")

	switch m.snap.Status {
	case session.StatusConnecting, session.StatusMonitoring, session.StatusStopping:
		sections = append(sections,
			trackers.View(m.snap.Trackers, m.now()),
			"",
			peers.View(m.snap, m.peerRows()),
		)
		if m.canStop() {
			sections = append(sections, "", theme.StyleDimmed.Render("  press s to stop monitoring"))
		}
	case session.StatusIdle:
		sections = append(sections, theme.StyleDimmed.Render("  "+idleHint))
	}

	sections = append(sections, "", m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// peerRows budgets the peer list to what is left of the screen after the
// tracker list, two lines per row.
func (m Model) peerRows() int {
	used := 14 + 2*len(m.snap.Trackers)
	return max((m.height-used)/2, 5)
}
