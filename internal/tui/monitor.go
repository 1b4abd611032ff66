package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiportal/internal/httpd"
	"github.com/muurk/wifiportal/internal/radio"
)

// Messages for async operations
type scanStartMsg struct{}
type scanDoneMsg struct {
	networks []radio.Network
	err      error
}
type joinDoneMsg struct {
	outcome string
	err     error
}
type portalEventMsg httpd.Event
type eventStreamClosedMsg struct{}

// monitorKeyMap defines key bindings for the network list screen
type monitorKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Join   key.Binding
	Rescan key.Binding
	Quit   key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Join, k.Rescan, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Join},
		{k.Rescan, k.Quit},
	}
}

// passphraseKeyMap defines key bindings for the passphrase prompt
type passphraseKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (k passphraseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

func (k passphraseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// networkItem wraps a scanned network for bubbles/list
type networkItem struct {
	network radio.Network
}

func (n networkItem) FilterValue() string { return n.network.SSID }

func (n networkItem) Title() string {
	if n.network.Secure {
		return "🔒 " + n.network.SSID
	}
	return "   " + n.network.SSID
}

func (n networkItem) Description() string {
	security := "open"
	if n.network.Secure {
		security = "secured"
	}
	return fmt.Sprintf("%d dBm • %s", n.network.RSSI, security)
}

// networkDelegate renders one network row.
type networkDelegate struct{}

func (networkDelegate) Height() int                         { return 2 }
func (networkDelegate) Spacing() int                        { return 1 }
func (networkDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (networkDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	n, ok := item.(networkItem)
	if !ok {
		return
	}

	title := n.Title()
	desc := SubtitleStyle.Render("   " + n.Description())
	if index == m.Index() {
		title = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true).Render("→ " + title)
	} else {
		title = "  " + title
	}
	fmt.Fprint(w, title+"\n"+desc)
}

// monitorMode selects which screen the monitor shows.
type monitorMode int

const (
	modeNetworks   monitorMode = iota // network list (possibly mid-scan)
	modePassphrase                    // passphrase prompt for a secured network
	modeJoining                       // join in flight
)

// MonitorModel is the bubbletea model for the portal monitor.
type MonitorModel struct {
	client     *Client
	portalAddr string
	ctx        context.Context
	events     <-chan httpd.Event

	mode     monitorMode
	scanning bool
	scanErr  error

	networks   list.Model
	spinner    spinner.Model
	passphrase textinput.Model
	joinTarget radio.Network
	outcome    string

	// lastEvent is the most recent radio state pushed by the portal.
	lastEvent *httpd.Event

	width    int
	height   int
	help     help.Model
	keys     monitorKeyMap
	passKeys passphraseKeyMap
}

// NewMonitor creates the monitor model for the portal at addr.
func NewMonitor(ctx context.Context, addr string) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	pass := textinput.New()
	pass.Placeholder = "passphrase"
	pass.EchoMode = textinput.EchoPassword
	pass.CharLimit = 63
	pass.Width = 30

	networks := list.New([]list.Item{}, networkDelegate{}, 0, 0)
	networks.Title = "Visible Networks"
	networks.SetShowStatusBar(false)
	networks.SetFilteringEnabled(true)
	networks.Styles.Title = TitleStyle

	keys := monitorKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
		Join:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "join")),
		Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
	passKeys := passphraseKeyMap{
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "join")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}

	return MonitorModel{
		client:     NewClient(addr),
		portalAddr: addr,
		ctx:        ctx,
		mode:       modeNetworks,
		networks:   networks,
		spinner:    s,
		passphrase: pass,
		help:       help.New(),
		keys:       keys,
		passKeys:   passKeys,
		width:      TerminalWidth(),
	}
}

// Init starts the first scan and the event stream subscription.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanCmd(),
		m.subscribeCmd(),
		m.spinner.Tick,
	)
}

func (m MonitorModel) scanCmd() tea.Cmd {
	return func() tea.Msg {
		networks, err := m.client.Scan(m.ctx)
		return scanDoneMsg{networks: networks, err: err}
	}
}

func (m MonitorModel) joinCmd(ssid, passphrase string) tea.Cmd {
	return func() tea.Msg {
		outcome, err := m.client.Connect(m.ctx, ssid, passphrase)
		return joinDoneMsg{outcome: outcome, err: err}
	}
}

// subscribeCmd dials the event stream once; waitEventCmd then pulls events
// off the channel one message per command, the bubbletea way.
func (m MonitorModel) subscribeCmd() tea.Cmd {
	return func() tea.Msg {
		events, err := m.client.Events(m.ctx)
		if err != nil {
			// The monitor is useful without the stream; scans still work.
			return eventStreamClosedMsg{}
		}
		return waitEventMsg{events: events}
	}
}

type waitEventMsg struct {
	events <-chan httpd.Event
}

func waitEventCmd(events <-chan httpd.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventStreamClosedMsg{}
		}
		return portalEventMsg(ev)
	}
}

// Update handles messages and updates the model.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modePassphrase:
			return m.updatePassphrase(msg)
		case modeJoining:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		default:
			return m.updateNetworks(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.networks.SetWidth(msg.Width - 6)
		m.networks.SetHeight(msg.Height - 10)

	case scanStartMsg:
		m.scanning = true
		m.scanErr = nil
		m.outcome = ""

	case scanDoneMsg:
		m.scanning = false
		m.scanErr = msg.err
		items := make([]list.Item, len(msg.networks))
		for i, n := range msg.networks {
			items[i] = networkItem{network: n}
		}
		m.networks.SetItems(items)

	case joinDoneMsg:
		m.mode = modeNetworks
		if msg.err != nil {
			m.outcome = msg.err.Error()
		} else {
			m.outcome = msg.outcome
		}

	case waitEventMsg:
		m.events = msg.events
		return m, waitEventCmd(msg.events)

	case portalEventMsg:
		ev := httpd.Event(msg)
		m.lastEvent = &ev
		return m, waitEventCmd(m.events)

	case eventStreamClosedMsg:
		m.events = nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.mode == modeNetworks && !m.scanning {
		m.networks, cmd = m.networks.Update(msg)
	}
	return m, cmd
}

func (m MonitorModel) updateNetworks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "r":
		if m.scanning {
			return m, nil
		}
		m.networks.SetItems([]list.Item{})
		return m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			m.scanCmd(),
			m.spinner.Tick,
		)

	case "enter":
		item, ok := m.networks.SelectedItem().(networkItem)
		if !ok || m.scanning {
			return m, nil
		}
		m.joinTarget = item.network
		if item.network.Secure {
			m.mode = modePassphrase
			m.passphrase.SetValue("")
			m.passphrase.Focus()
			return m, nil
		}
		m.mode = modeJoining
		return m, tea.Batch(m.joinCmd(item.network.SSID, ""), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.networks, cmd = m.networks.Update(msg)
	return m, cmd
}

func (m MonitorModel) updatePassphrase(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.mode = modeNetworks
		m.passphrase.Blur()
		return m, nil

	case "enter":
		pass := m.passphrase.Value()
		m.passphrase.Blur()
		m.mode = modeJoining
		return m, tea.Batch(m.joinCmd(m.joinTarget.SSID, pass), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.passphrase, cmd = m.passphrase.Update(msg)
	return m, cmd
}

// View renders the monitor.
func (m MonitorModel) View() string {
	var content string
	switch m.mode {
	case modePassphrase:
		content = m.renderPassphrase()
	case modeJoining:
		content = fmt.Sprintf("\n  %s Joining %s...\n",
			m.spinner.View(), m.joinTarget.SSID)
	default:
		content = m.renderNetworks()
	}

	var helpText string
	switch m.mode {
	case modePassphrase:
		helpText = m.help.View(m.passKeys)
	default:
		helpText = m.help.View(m.keys)
	}

	header := RenderHeader(m.portalAddr)
	body := lipgloss.JoinVertical(lipgloss.Left, m.renderStatusLine(), content)
	return RenderFrame(header, body, helpText, m.width)
}

// renderStatusLine shows the portal's last pushed radio state.
func (m MonitorModel) renderStatusLine() string {
	if m.lastEvent == nil {
		return SubtitleStyle.Render("  radio: (no events yet)")
	}

	var status string
	switch m.lastEvent.State {
	case "connected":
		status = StatusConnectedStyle.Render("connected to " + m.lastEvent.SSID)
	case "joining":
		status = StatusJoiningStyle.Render("joining " + m.lastEvent.SSID + "...")
	case "join_failed":
		status = StatusFailedStyle.Render("join failed: " + m.lastEvent.Reason)
	default:
		status = "access point only"
	}
	ap := "down"
	if m.lastEvent.APActive {
		ap = "up"
	}
	return fmt.Sprintf("  radio: %s %s", status,
		SubtitleStyle.Render("(AP "+ap+")"))
}

func (m MonitorModel) renderNetworks() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.outcome != "" {
		style := StatusConnectedStyle
		if strings.Contains(m.outcome, "failed") || strings.Contains(m.outcome, "unreachable") {
			style = StatusFailedStyle
		}
		b.WriteString("  " + style.Render(m.outcome) + "\n\n")
	}

	switch {
	case m.scanning:
		b.WriteString(fmt.Sprintf("  %s Scanning for networks...\n", m.spinner.View()))
	case m.scanErr != nil:
		b.WriteString(ErrorStyle.Render("✗ Scan failed: "+m.scanErr.Error()) + "\n")
		b.WriteString(SubtitleStyle.Render("  Press 'r' to retry.") + "\n")
	case len(m.networks.Items()) == 0:
		b.WriteString(SubtitleStyle.Render("  No networks visible. Press 'r' to rescan.") + "\n")
	default:
		b.WriteString(m.networks.View())
	}
	return b.String()
}

func (m MonitorModel) renderPassphrase() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Joining %s (secured)\n\n", m.joinTarget.SSID))
	b.WriteString("  Passphrase: " + m.passphrase.View() + "\n")
	return b.String()
}

// RunMonitor launches the monitor against the portal at addr and blocks
// until the operator quits.
func RunMonitor(ctx context.Context, addr string) error {
	p := tea.NewProgram(NewMonitor(ctx, addr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
