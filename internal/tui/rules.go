package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/rulegate/internal/console"
	"grimm.is/rulegate/internal/rules"
)

// RulesModel lists every rendered rule, grouped by service in directory
// order.
type RulesModel struct {
	Table    table.Model
	rules    []rules.Decoded
	services []console.SectionSnapshot
	Width    int
	Height   int
}

// NewRulesModel creates an empty rule table.
func NewRulesModel() RulesModel {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Service", Width: 16},
		{Title: "Rule", Width: 48},
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
	s.Selected = s.Selected.
		Foreground(ColorAccent).
		Background(ColorDeep).
		Bold(false)
	t.SetStyles(s)

	return RulesModel{Table: t}
}

// SetSnapshot replaces the rows with the view's current state.
func (m *RulesModel) SetSnapshot(snap console.Snapshot) {
	m.services = snap.Sections
	m.rules = nil
	var rows []table.Row
	for _, sec := range snap.Sections {
		for _, d := range sec.Rules {
			m.rules = append(m.rules, d)
			rows = append(rows, table.Row{strconv.FormatInt(d.ID, 10), sec.Name, d.Text})
		}
	}
	m.Table.SetRows(rows)
	if c := m.Table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.Table.SetCursor(len(rows) - 1)
	}
}

// Selected returns the rule under the cursor.
func (m RulesModel) Selected() (rules.Decoded, bool) {
	idx := m.Table.Cursor()
	if idx >= 0 && idx < len(m.rules) {
		return m.rules[idx], true
	}
	return rules.Decoded{}, false
}

func (m *RulesModel) SetSize(width, height int) {
	m.Width = width
	m.Height = height
	if height > 12 {
		m.Table.SetHeight(height - 12)
	}
	if width > 40 {
		cols := m.Table.Columns()
		cols[2].Width = width - cols[0].Width - cols[1].Width - 12
		m.Table.SetColumns(cols)
	}
}

func (m RulesModel) Update(msg tea.Msg) (RulesModel, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.SetSize(ws.Width, ws.Height)
	}
	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m RulesModel) View() string {
	var badges []string
	for _, sec := range m.services {
		badges = append(badges, StyleServiceBadge.Render(fmt.Sprintf("%s %d", sec.Name, len(sec.Rules))))
	}
	services := StyleSubtitle.Render("no services")
	if len(badges) > 0 {
		services = strings.Join(badges, "")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		StyleHeader.Render("RULES"),
		services,
		StyleCard.Render(m.Table.View()),
	)
}
