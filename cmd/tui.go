// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/session"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for faults, false for status
}

// Monitor model
type monitorModel struct {
	connInfo      string
	connected     bool
	stats         *ifit.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	latest        *ifit.TreadmillState
	latestAt      time.Time
	samples       table.Model
	rows          []table.Row
	maxRows       int
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type responseMsg struct {
	timestamp time.Time
	response  ifit.Response
}
type faultMsg struct {
	timestamp time.Time
	err       error
}
type connectionLostMsg struct {
	err error
}
type reconnectedMsg struct {
	connInfo string
}

var sampleColumns = []table.Column{
	{Title: "Time", Width: 12},
	{Title: "Pace", Width: 6},
	{Title: "Incline", Width: 8},
	{Title: "Distance", Width: 9},
	{Title: "Timer", Width: 9},
	{Title: "Pulse", Width: 6},
}

func initialMonitorModel(connInfo string, stats *ifit.Statistics, history int) monitorModel {
	if history < 1 {
		history = 1
	}

	t := table.New(
		table.WithColumns(sampleColumns),
		table.WithHeight(history),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	return monitorModel{
		connInfo:      connInfo,
		connected:     true,
		stats:         stats,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		samples:       t,
		maxRows:       history,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Redraw so rates and elapsed time keep moving
		return m, tickCmd()

	case responseMsg:
		m.handleResponse(msg)

	case faultMsg:
		m.handleFault(msg)

	case connectionLostMsg:
		m.connected = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}

	case reconnectedMsg:
		m.connected = true
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected to "+msg.connInfo, false)
	}

	return m, nil
}

func (m *monitorModel) handleResponse(msg responseMsg) {
	switch v := msg.response.(type) {
	case ifit.TreadmillState:
		if m.latest == nil {
			info := v.Device()
			m.addLogEntry(fmt.Sprintf("First state from device %x", info[:]), false)
		}
		m.latest = &v
		m.latestAt = msg.timestamp

		pulse := "-"
		if v.PulseEnabled {
			pulse = strconv.Itoa(v.Pulse)
		}
		row := table.Row{
			msg.timestamp.Format("15:04:05.000"),
			ifit.FormatDecimal(v.Pace),
			ifit.FormatDecimal(v.Incline) + "%",
			fmt.Sprintf("%.3f", v.Distance),
			ifit.FormatTimer(v.Timer),
			pulse,
		}
		m.rows = append([]table.Row{row}, m.rows...)
		if len(m.rows) > m.maxRows {
			m.rows = m.rows[:m.maxRows]
		}
		m.samples.SetRows(m.rows)

	case ifit.Unknown:
		m.addLogEntry(fmt.Sprintf("Unknown response 0x%08X (%d bytes)", uint32(v.Discriminator), len(v.Raw)), false)
	}
}

func (m *monitorModel) handleFault(msg faultMsg) {
	if errors.Is(msg.err, session.ErrStalled) {
		m.addLogEntryAt(msg.timestamp, "Sequence stalled, waiting for next header", true)
		return
	}

	faults := ifit.Faults(msg.err)
	if len(faults) == 0 {
		m.addLogEntryAt(msg.timestamp, msg.err.Error(), true)
		return
	}
	for _, f := range faults {
		m.addLogEntryAt(msg.timestamp, f.Message, true)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.addLogEntryAt(time.Now(), message, isError)
}

func (m *monitorModel) addLogEntryAt(ts time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: ts,
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	bigValueStyle := valueStyle.
		Bold(true).
		Width(10)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("NONGOFIT - TREADMILL MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | 'r' reset stats | 'q' quit", m.connInfo)))
	s.WriteString("\n\n")

	// Connection status
	switch {
	case !m.connected:
		s.WriteString(errorStyle.Render("✗ Disconnected, reconnecting..."))
	case m.latest == nil:
		s.WriteString(warningStyle.Render("⏳ Waiting for first treadmill state..."))
	default:
		s.WriteString(valueStyle.Render("✓ Receiving"))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (last update %s ago)",
			time.Since(m.latestAt).Round(time.Second))))
	}
	s.WriteString("\n\n")

	// Live values
	if m.latest != nil {
		pulse := "off"
		if m.latest.PulseEnabled {
			pulse = fmt.Sprintf("%d bpm", m.latest.Pulse)
		}

		live := strings.Builder{}
		live.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render("Pace "), bigValueStyle.Render(ifit.FormatDecimal(m.latest.Pace)+" mph"),
			labelStyle.Render("Incline "), bigValueStyle.Render(ifit.FormatDecimal(m.latest.Incline)+"%"),
			labelStyle.Render("Distance "), bigValueStyle.Render(fmt.Sprintf("%.3f mi", m.latest.Distance)),
		))
		live.WriteString("\n")
		live.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render("Timer "), bigValueStyle.Render(ifit.FormatTimer(m.latest.Timer)),
			labelStyle.Render("Pulse "), bigValueStyle.Render(pulse),
		))

		s.WriteString(boxStyle.Render(live.String()))
		s.WriteString("\n\n")
	}

	// Statistics
	snap := m.stats.Snapshot()
	var decodedPercent float64
	if snap.Sequences > 0 {
		decodedPercent = float64(snap.Sequences-snap.DecodeErrors) * 100.0 / float64(snap.Sequences)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Fragments:"), valueStyle.Render(fmt.Sprintf("%d", snap.Fragments)),
		labelStyle.Render("Sequences:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%% decoded)", snap.Sequences, decodedPercent)),
		labelStyle.Render("Dropped:"), warningStyle.Render(fmt.Sprintf("%d", snap.DroppedFragments)),
	))

	if snap.Faults > 0 || snap.Stalls > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s",
			labelStyle.Render("Faults:"), errorStyle.Render(fmt.Sprintf("%d", snap.Faults)),
		))
		statsContent.WriteString(headerStyle.Render(fmt.Sprintf(
			" (token %d, order %d, count %d, size %d, malformed %d, interrupted %d, stalled %d)",
			snap.SequenceMismatch, snap.OrderingFaults, snap.CountMismatches, snap.SizeMismatches,
			snap.MalformedFragment, snap.Interrupted, snap.Stalls,
		)))
		statsContent.WriteString("\n")
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Fragment Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", snap.FragmentRate)),
		labelStyle.Render("Sequence Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", snap.SequenceRate)),
		labelStyle.Render("Fault Rate:"), func() string {
			if snap.FaultRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f/s", snap.FaultRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f/s", snap.FaultRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Recent samples
	s.WriteString(labelStyle.Render("Recent Samples:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.samples.View()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22 - m.maxRows
	if logHeight < 3 {
		logHeight = 3
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}
