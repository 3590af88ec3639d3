package tui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/rulegate/internal/logging"
)

// diagnosticsLimit is how many recent entries the view shows.
const diagnosticsLimit = 200

// DiagnosticsModel shows the recent log entries of the diagnostic buffer,
// newest first. The console logs there instead of the terminal, which the
// program owns.
type DiagnosticsModel struct {
	Buffer *logging.RingBuffer
	Table  table.Model
}

func NewDiagnosticsModel(rb *logging.RingBuffer) DiagnosticsModel {
	columns := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Level", Width: 5},
		{Title: "Source", Width: 10},
		{Title: "Message", Width: 60},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorDeep).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)
	return DiagnosticsModel{Buffer: rb, Table: t}
}

// Refresh reloads the rows from the buffer.
func (m *DiagnosticsModel) Refresh() {
	if m.Buffer == nil {
		return
	}
	entries := m.Buffer.GetLast(diagnosticsLimit)
	rows := make([]table.Row, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		rows = append(rows, table.Row{
			e.Timestamp.Format("15:04:05"),
			strings.ToUpper(e.Level),
			e.Source,
			formatEntry(e),
		})
	}
	m.Table.SetRows(rows)
}

// formatEntry renders the message followed by its attributes in key order.
func formatEntry(e logging.Entry) string {
	if len(e.Extra) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Message)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(e.Extra[k])
	}
	return b.String()
}

func (m DiagnosticsModel) Update(msg tea.Msg) (DiagnosticsModel, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok && ws.Height > 10 {
		m.Table.SetHeight(ws.Height - 10)
	}
	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m DiagnosticsModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		StyleHeader.Render("DIAGNOSTICS"),
		StyleSubtitle.Render("Recent console log entries, newest first"),
		StyleCard.Render(m.Table.View()),
	)
}
