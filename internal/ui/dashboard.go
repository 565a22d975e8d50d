package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/client"
	"github.com/hitechniques/llclient/internal/logging"
)

const (
	refreshInterval = 100 * time.Millisecond

	// ShutdownTimeout bounds the wait for unsubscribe confirmations on quit
	ShutdownTimeout = 2 * time.Second
)

// Controller is the part of the client the dashboard drives.
// *client.Client implements it.
type Controller interface {
	Snapshot() channels.Snapshot
	SubscribedChannelID(name string) int
	SubscribeChannel(name string, decimation int) error
	UnsubscribeChannel(id int) error
	UnsubscribeAll() error
	WaitUnsubscribed(ctx context.Context) error
	Acquire() error
}

type tickMsg time.Time

// actionMsg reports the outcome of a command sent to the server
type actionMsg struct {
	action string
	err    error
}

// shutdownMsg is sent once unsubscribe-all finished or timed out
type shutdownMsg struct {
	err error
}

// channelState is where a channel sits in its lifecycle
type channelState int

const (
	stateAvailable channelState = iota
	statePending
	stateSubscribed
)

type row struct {
	channel channels.Descriptor
	state   channelState
	id      int
	first   float64
	hasTS   bool
}

// Dashboard is the interactive channel table
type Dashboard struct {
	ctrl   Controller
	bridge *Bridge
	addr   string

	rows      []row
	stats     map[string]ChannelStats
	acquiring bool
	cursor    int

	status       string
	err          error
	disconnected bool
	quitting     bool

	width  int
	height int
	help   help.Model
	keys   dashboardKeyMap
}

// NewDashboard creates a dashboard for the connection at addr. Events must
// reach it through bridge.Sink.
func NewDashboard(ctrl Controller, bridge *Bridge, addr string) Dashboard {
	width, height := GetTerminalSize()
	d := Dashboard{
		ctrl:   ctrl,
		bridge: bridge,
		addr:   addr,
		stats:  map[string]ChannelStats{},
		width:  width,
		height: height,
		help:   help.New(),
		keys:   newDashboardKeyMap(),
		status: "Waiting for channels...",
	}
	d.refresh()
	return d
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.bridge.wait(), tick())
}

// Update implements tea.Model
func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = clampWidth(msg.Width)
		d.height = msg.Height
		return d, nil

	case tickMsg:
		d.stats = d.bridge.Stats().Snapshot()
		return d, tick()

	case eventMsg:
		d.handleEvent(msg.event)
		return d, d.bridge.wait()

	case actionMsg:
		if msg.err != nil {
			d.status = fmt.Sprintf("%s failed: %s", msg.action, client.ShortMessage(msg.err))
			logging.Warn("Dashboard action failed",
				zap.String("action", msg.action),
				zap.Error(msg.err))
		}
		return d, nil

	case shutdownMsg:
		if msg.err != nil {
			logging.Warn("Unsubscribe on exit incomplete", zap.Error(msg.err))
		}
		return d, tea.Quit

	case tea.KeyMsg:
		return d.handleKey(msg)
	}

	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if d.quitting {
		return *d, nil
	}

	switch {
	case key.Matches(msg, d.keys.Quit):
		d.quitting = true
		if d.disconnected {
			return *d, tea.Quit
		}
		d.status = "Unsubscribing..."
		return *d, d.shutdown()

	case key.Matches(msg, d.keys.Up):
		if d.cursor > 0 {
			d.cursor--
		}

	case key.Matches(msg, d.keys.Down):
		if d.cursor < len(d.rows)-1 {
			d.cursor++
		}

	case key.Matches(msg, d.keys.Toggle):
		if d.disconnected || len(d.rows) == 0 {
			return *d, nil
		}
		return *d, d.toggle(d.rows[d.cursor].channel.Name)

	case key.Matches(msg, d.keys.Acquire):
		if d.disconnected {
			return *d, nil
		}
		ctrl := d.ctrl
		return *d, func() tea.Msg {
			return actionMsg{action: "acquire", err: ctrl.Acquire()}
		}
	}

	return *d, nil
}

// toggle subscribes to name, or unsubscribes it when already subscribed
func (d *Dashboard) toggle(name string) tea.Cmd {
	ctrl := d.ctrl
	if id := ctrl.SubscribedChannelID(name); id != client.NotFound {
		d.status = fmt.Sprintf("Unsubscribing %s", name)
		return func() tea.Msg {
			return actionMsg{action: "unsubscribe", err: ctrl.UnsubscribeChannel(id)}
		}
	}

	d.status = fmt.Sprintf("Subscribing %s", name)
	return func() tea.Msg {
		return actionMsg{action: "subscribe", err: ctrl.SubscribeChannel(name, 1)}
	}
}

func (d *Dashboard) shutdown() tea.Cmd {
	ctrl := d.ctrl
	return func() tea.Msg {
		return shutdownMsg{err: unsubscribeAll(ctrl)}
	}
}

func (d *Dashboard) handleEvent(ev client.Event) {
	switch e := ev.(type) {
	case client.AvailableChannel:
		d.status = fmt.Sprintf("Channel %s available", e.Channel.Name)
	case client.UnavailableChannel:
		d.status = fmt.Sprintf("Channel %s unavailable", e.Name)
	case client.ChannelSubscribed:
		d.status = fmt.Sprintf("Subscribed %s as #%d", e.Name, e.ID)
	case client.ChannelUnsubscribed:
		d.status = fmt.Sprintf("Unsubscribed %s", e.Name)
	case client.AcquisitionChanged:
		if e.Acquiring {
			d.status = "Acquisition started"
		} else {
			d.status = "Acquisition stopped"
		}
	case client.Disconnected:
		d.disconnected = true
		d.err = e.Err
		d.status = "Disconnected"
	}
	d.refresh()
	d.stats = d.bridge.Stats().Snapshot()
}

// refresh rebuilds the table from the registry snapshot
func (d *Dashboard) refresh() {
	snap := d.ctrl.Snapshot()
	d.acquiring = snap.Acquiring

	pending := make(map[string]bool, len(snap.Pending))
	for _, p := range snap.Pending {
		pending[p.Name] = true
	}

	rows := make([]row, 0, len(snap.Available))
	for _, ch := range snap.Available {
		r := row{channel: ch, state: stateAvailable, id: client.NotFound}
		if id, ok := snap.SubscribedID(ch.Name); ok {
			r.state = stateSubscribed
			r.id = id
			for _, sub := range snap.Subscribed {
				if sub.ID == id {
					r.channel = sub.Channel
				}
			}
		} else if pending[ch.Name] {
			r.state = statePending
		}
		r.first, r.hasTS = snap.FirstSample[ch.Name]
		rows = append(rows, r)
	}
	d.rows = rows

	if d.cursor >= len(d.rows) {
		d.cursor = len(d.rows) - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
}

// Err returns the error that ended the connection, if any
func (d Dashboard) Err() error {
	return d.err
}

// View implements tea.Model
func (d Dashboard) View() string {
	var b strings.Builder

	b.WriteString(d.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(d.renderTable())
	b.WriteString("\n")

	if d.err != nil {
		b.WriteString(ErrorMessageStyle.Render("Error: " + client.ShortMessage(d.err)))
		b.WriteString("\n")
	}
	b.WriteString(StatusStyle.Render(d.status))
	b.WriteString("\n\n")
	b.WriteString(" " + d.help.View(d.keys))
	b.WriteString("\n")

	return b.String()
}

func (d Dashboard) renderHeader() string {
	acq := AvailableStyle.Render(MarkerOff + " stopped")
	if d.acquiring {
		acq = SubscribedStyle.Render(MarkerOn + " acquiring")
	}
	conn := SubscribedStyle.Render(MarkerOn + " connected")
	if d.disconnected {
		conn = lipgloss.NewStyle().Foreground(ErrorColor).Render(MarkerOff + " disconnected")
	}

	title := TitleStyle.Render("LL-CLIENT")
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		KeyStyle.Render(" Server:"), ValueStyle.Render(d.addr), "   ", conn, "   ", acq)

	return BoxStyle(d.width).Render(lipgloss.JoinVertical(lipgloss.Left, title, line))
}

const rowFormat = "%-2s %-18s %-14s %10s %5s %-14s %12s %14s"

func (d Dashboard) renderTable() string {
	var lines []string

	lines = append(lines, ColumnHeaderStyle.Render(fmt.Sprintf(rowFormat,
		"", "CHANNEL", "STATE", "RATE (Hz)", "DEC", "FIRST SAMPLE", "SAMPLES", "LAST")))
	lines = append(lines, " "+Divider(d.width-4))

	if len(d.rows) == 0 {
		lines = append(lines, StatusStyle.Render("No channels available"))
		return strings.Join(lines, "\n")
	}

	for i, r := range d.rows {
		cursor := ""
		if i == d.cursor {
			cursor = Cursor
		}

		st := d.stats[r.channel.Name]
		text := fmt.Sprintf(rowFormat,
			cursor,
			truncate(r.channel.Name, 18),
			stateLabel(r),
			formatRate(r.channel.SampleRate()/float64(r.channel.DecimationFactor)),
			fmt.Sprintf("%d", r.channel.DecimationFactor),
			formatTimestamp(r.first, r.hasTS),
			formatSamples(st),
			formatValue(st),
		)

		style := RowStyle
		switch {
		case i == d.cursor:
			style = SelectedRowStyle
		case r.state == stateSubscribed:
			style = SubscribedStyle
		case r.state == statePending:
			style = PendingStyle
		}
		lines = append(lines, style.Render(text))
	}

	return strings.Join(lines, "\n")
}

func stateLabel(r row) string {
	switch r.state {
	case stateSubscribed:
		return fmt.Sprintf("%s #%d", MarkerOn, r.id)
	case statePending:
		return "pending"
	default:
		return MarkerOff
	}
}

func formatRate(hz float64) string {
	if hz <= 0 || math.IsInf(hz, 0) || math.IsNaN(hz) {
		return "-"
	}
	return fmt.Sprintf("%.1f", hz)
}

// formatTimestamp renders seconds since the epoch as local wall time
func formatTimestamp(ts float64, ok bool) string {
	if !ok || ts == 0 {
		return "-"
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).Format("15:04:05.000")
}

func formatSamples(st ChannelStats) string {
	if st.Frames == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", st.Samples)
}

func formatValue(st ChannelStats) string {
	if !st.HasValue {
		return "-"
	}
	return fmt.Sprintf("%.4g", st.LastValue)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
