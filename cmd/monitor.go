// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/poolbus/internal/gateway"
	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/Thermoquad/poolbus/pkg/programmer"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive panel monitor",
	Long: `Run the gateway with a terminal UI showing the key LEDs, the panel display,
temperatures and bus statistics.

Type key names into the prompt to press them (MENU, RIGHT, ENTER, Aux_1 ...,
several separated by spaces), or start a programming session with
"set <session> [value]", for example "set pool_heater 82".`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	// The TUI owns the terminal, keep logs out of it
	logger = logger.Level(zerolog.Disabled)

	link, err := openBus(ctx, "")
	if err != nil {
		return err
	}
	defer link.Close()

	id, err := resolveIdentity(ctx, link)
	if err != nil {
		if busEnded(ctx, err) {
			return nil
		}
		return err
	}

	g := newGateway(link, id)
	m := initialMonitorModel(ctx, g, link.info, id)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		p.Send(busDoneMsg{err: g.Run(ctx)})
	}()
	go func() {
		lines := g.Lines()
		seq := lines.Seq()
		for {
			line, next, err := lines.Next(ctx, seq)
			if err != nil {
				return
			}
			seq = next
			p.Send(lineMsg(line))
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type monitorModel struct {
	ctx  context.Context
	g    *gateway.Gateway
	info string
	id   byte

	input textinput.Model

	snap  panel.Snapshot
	stats rsbus.Statistics
	lines []string

	eventLog      []monitorLogEntry
	maxLogEntries int
	busErr        error

	width    int
	height   int
	quitting bool
}

type monitorTickMsg time.Time
type lineMsg string
type busDoneMsg struct{ err error }
type sessionDoneMsg struct{ res programmer.Result }

const maxDisplayLines = 6

func initialMonitorModel(ctx context.Context, g *gateway.Gateway, info string, id byte) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "MENU, Aux_1, set pool_heater 82"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	return monitorModel{
		ctx:           ctx,
		g:             g,
		info:          info,
		id:            id,
		input:         ti,
		snap:          g.State().Snapshot(),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), textinput.Blink)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if text == "" {
				return m, nil
			}
			return m, m.submit(text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.snap = m.g.State().Snapshot()
		m.stats = m.g.Statistics()
		return m, monitorTickCmd()

	case lineMsg:
		line := string(msg)
		if line == "" || (len(m.lines) > 0 && m.lines[len(m.lines)-1] == line) {
			return m, nil
		}
		m.lines = append(m.lines, line)
		if len(m.lines) > maxDisplayLines {
			m.lines = m.lines[len(m.lines)-maxDisplayLines:]
		}
		return m, nil

	case busDoneMsg:
		if !busEnded(m.ctx, msg.err) {
			m.busErr = msg.err
			m.addLogEntry(fmt.Sprintf("Bus stopped: %v", msg.err), true)
		}
		return m, nil

	case sessionDoneMsg:
		res := msg.res
		took := res.Finished.Sub(res.Started).Round(time.Millisecond)
		if res.Err != nil {
			m.addLogEntry(fmt.Sprintf("%s %s after %s: %v", res.Kind, res.State, took, res.Err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s %s in %s", res.Kind, res.State, took), false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit presses keys or starts a session from the prompt text
func (m *monitorModel) submit(text string) tea.Cmd {
	fields := strings.Fields(text)
	if strings.EqualFold(fields[0], "set") {
		req, err := monitorRequest(fields[1:])
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return nil
		}
		ch, err := m.g.Programmer().Start(m.ctx, req)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", req.Kind, err), true)
			return nil
		}
		m.addLogEntry(fmt.Sprintf("%s session started", req.Kind), false)
		return func() tea.Msg { return sessionDoneMsg{res: <-ch} }
	}

	for _, f := range fields {
		k, err := panel.ParseKey(f)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return nil
		}
		if err := m.g.SendKey(k); err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", k, err), true)
			return nil
		}
		m.addLogEntry(fmt.Sprintf("Pressed %s", k), false)
	}
	return nil
}

// monitorRequest parses "<session> [value] [button]"
func monitorRequest(args []string) (programmer.Request, error) {
	if len(args) == 0 {
		return programmer.Request{}, fmt.Errorf("set needs a session name")
	}
	kind, err := programmer.ParseKind(strings.ReplaceAll(args[0], "-", "_"))
	if err != nil {
		return programmer.Request{}, err
	}
	req := programmer.Request{Kind: kind}
	for i, a := range args[1:] {
		v, err := strconv.Atoi(a)
		if err != nil {
			return req, fmt.Errorf("%q is not a number", a)
		}
		switch i {
		case 0:
			req.Value = v
		case 1:
			req.Button = v
		default:
			return req, fmt.Errorf("too many values")
		}
	}
	return req, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	displayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Background(lipgloss.Color("236"))
)

// ledStyle colors a key by its LED
func ledStyle(s panel.LEDState) lipgloss.Style {
	switch s {
	case panel.LEDOn:
		return valueStyle
	case panel.LEDFlash, panel.LEDEnable:
		return warningStyle
	default:
		return headerStyle
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("POOLBUS - PANEL MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Keypad 0x%02x | %s | Esc to quit",
		m.info, m.id, m.panelName())))
	s.WriteString("\n\n")

	// Temperatures and equipment
	u := m.snap.Units
	status := strings.Builder{}
	status.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Air:"), valueStyle.Render(formatTemp(m.snap.AirTemp, u)),
		labelStyle.Render("Pool:"), valueStyle.Render(formatTemp(m.snap.PoolTemp, u)),
		labelStyle.Render("Spa:"), valueStyle.Render(formatTemp(m.snap.SpaTemp, u)),
	))
	status.WriteString(fmt.Sprintf("%s %s / %s   %s %s",
		labelStyle.Render("Set points:"),
		valueStyle.Render(formatTemp(m.snap.PoolSetPoint, u)),
		valueStyle.Render(formatTemp(m.snap.SpaSetPoint, u)),
		labelStyle.Render("Freeze:"), valueStyle.Render(formatTemp(m.snap.FreezeSetPoint, u)),
	))
	if m.snap.SWGStatus != panel.SWGStatusUnknown {
		status.WriteString(fmt.Sprintf("\n%s %s %s",
			labelStyle.Render("SWG:"), valueStyle.Render(formatPercent(m.snap.SWGPercent)), headerStyle.Render(m.snap.SWGStatus.String())))
		if m.snap.SWGPPM > 0 {
			status.WriteString(headerStyle.Render(fmt.Sprintf(" %d ppm", m.snap.SWGPPM)))
		}
	}
	if m.snap.FreezeProtect == panel.LEDOn {
		status.WriteString("\n" + warningStyle.Render("Freeze protection active"))
	}
	if m.snap.Boost {
		status.WriteString("\n" + warningStyle.Render(fmt.Sprintf("Boost, %d minutes left", m.snap.BoostMinutes)))
	}
	if m.g.Programmer().Busy() {
		status.WriteString("\n" + warningStyle.Render("Programming..."))
	}
	s.WriteString(boxStyle.Render(status.String()))
	s.WriteString("\n")

	// Key LEDs, three per row
	keys := strings.Builder{}
	for i, b := range m.snap.Buttons {
		cell := fmt.Sprintf("%-14s %-7s", b.Label, b.State)
		keys.WriteString(ledStyle(b.State).Render(cell))
		if i%3 == 2 || i == len(m.snap.Buttons)-1 {
			keys.WriteString("\n")
		} else {
			keys.WriteString("  ")
		}
	}
	s.WriteString(boxStyle.Render(strings.TrimSuffix(keys.String(), "\n")))
	s.WriteString("\n")

	// Panel display
	display := strings.Builder{}
	if len(m.lines) == 0 {
		display.WriteString(headerStyle.Render("(waiting for the panel)"))
	}
	for i, line := range m.lines {
		if i > 0 {
			display.WriteString("\n")
		}
		display.WriteString(displayStyle.Render(fmt.Sprintf(" %-*s ", panel.MsgLen, line)))
	}
	s.WriteString(boxStyle.Render(display.String()))
	s.WriteString("\n")

	// Statistics
	errs := m.stats.ChecksumErrors + m.stats.ReadErrors + m.stats.OversizeErrors + m.stats.UndersizeErrors
	errRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", errs)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		errRate,
	))
	s.WriteString("\n")

	// Event log
	logHeight := m.height - 24
	if logHeight < 3 {
		logHeight = 3
	}
	events := strings.Builder{}
	start := len(m.eventLog) - logHeight
	if start < 0 {
		start = 0
	}
	if len(m.eventLog) == 0 {
		events.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := start; i < len(m.eventLog); i++ {
		e := m.eventLog[i]
		ts := headerStyle.Render(e.timestamp.Format("15:04:05"))
		if e.isError {
			events.WriteString(fmt.Sprintf("%s %s", ts, errorStyle.Render("✗ "+e.message)))
		} else {
			events.WriteString(fmt.Sprintf("%s %s", ts, warningStyle.Render("ℹ "+e.message)))
		}
		if i < len(m.eventLog)-1 {
			events.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(events.String()))
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("> "))
	s.WriteString(m.input.View())
	return s.String()
}

func (m monitorModel) panelName() string {
	if m.snap.Revision == "" {
		return "panel not identified"
	}
	return fmt.Sprintf("%s rev %s, %d keys", m.snap.CPU, m.snap.Revision, m.snap.PanelSize)
}
