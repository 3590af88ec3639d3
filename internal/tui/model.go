// Package tui is the terminal rendition of the rule console: the same
// console.Console the web server drives, shown as a table per service with
// huh forms for login and adding rules.
package tui

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/message"

	"grimm.is/rulegate/internal/brand"
	"grimm.is/rulegate/internal/client"
	"grimm.is/rulegate/internal/console"
	"grimm.is/rulegate/internal/i18n"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/rules"
)

// Screen is the active browse screen.
type Screen int

const (
	ScreenRules Screen = iota
	ScreenDiagnostics
)

type mode int

const (
	modeLogin mode = iota
	modeLoading
	modeBrowse
	modeAdding
)

// Deps wires the model to a backend session.
type Deps struct {
	Gate *console.Gate
	// NewConsole returns a console over a fresh view. Every (re)load uses
	// a new one, like a page reload.
	NewConsole  func() *console.Console
	Diagnostics *logging.RingBuffer
	Printer     *message.Printer
	// Password, when set, is submitted without prompting.
	Password string
}

type loginDoneMsg struct {
	ok  bool
	err error
}

type loadDoneMsg struct {
	console *console.Console
	err     error
}

type opDoneMsg struct {
	op  string
	err error
}

// Model is the main application state.
type Model struct {
	deps Deps
	keys KeyMap

	mode   mode
	Active Screen
	Width  int
	Height int

	form  *huh.Form
	login *LoginInput
	add   *AddRuleInput

	console      *console.Console
	rules        RulesModel
	diagnostics  DiagnosticsModel
	spinner      spinner.Model
	help         help.Model
	toast        console.Toast
	feedback     string
	invalid      map[string]bool
	lastErr      error
}

// NewModel creates the initial model.
func NewModel(deps Deps) Model {
	if deps.Printer == nil {
		deps.Printer = i18n.NewCLIPrinter()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleTitle

	return Model{
		deps:        deps,
		mode:        modeLoading,
		keys:        DefaultKeyMap(),
		rules:       NewRulesModel(),
		diagnostics: NewDiagnosticsModel(deps.Diagnostics),
		spinner:     sp,
		help:        help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	if m.deps.Password != "" {
		return tea.Batch(m.spinner.Tick, submit(m.deps.Gate, m.deps.Password))
	}
	return func() tea.Msg { return showLoginMsg{} }
}

type showLoginMsg struct{}

func submit(g *console.Gate, password string) tea.Cmd {
	return func() tea.Msg {
		ok, err := g.Submit(context.Background(), password)
		return loginDoneMsg{ok: ok, err: err}
	}
}

func load(c *console.Console) tea.Cmd {
	return func() tea.Msg {
		return loadDoneMsg{console: c, err: c.Load(context.Background())}
	}
}

func addRule(c *console.Console, req console.AddRequest) tea.Cmd {
	return func() tea.Msg {
		_, err := c.AddRule(context.Background(), req)
		return opDoneMsg{op: "add", err: err}
	}
}

func deleteRule(c *console.Console, id int64) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: "delete", err: c.DeleteRule(context.Background(), id)}
	}
}

func (m *Model) startLogin() tea.Cmd {
	m.mode = modeLogin
	m.login = &LoginInput{}
	m.form = AutoForm(m.login, nil)
	return m.form.Init()
}

func (m *Model) startLoad() tea.Cmd {
	m.mode = modeLoading
	m.lastErr = nil
	m.console = m.deps.NewConsole()
	return tea.Batch(m.spinner.Tick, load(m.console))
}

func (m *Model) startAdd() tea.Cmd {
	var services []string
	if dir := m.console.Directory(); dir != nil {
		services = dir.Names()
	}
	types := make([]string, len(rules.Types))
	for i, t := range rules.Types {
		types[i] = string(t)
	}

	// Focusing the inputs resets their invalid state.
	m.console.ClearInvalid(console.FieldService)
	m.console.ClearInvalid(console.FieldRuleText)
	m.refresh()

	m.mode = modeAdding
	m.add = &AddRuleInput{Type: string(rules.TypeASCII)}
	if len(services) > 0 {
		m.add.Service = services[0]
	}
	m.form = AutoForm(m.add, Options{"services": services, "types": types})
	return m.form.Init()
}

// refresh pulls the console's view into the screens.
func (m *Model) refresh() {
	if m.console != nil {
		snap := m.console.View().Snapshot()
		m.rules.SetSnapshot(snap)
		m.feedback = snap.Feedback
		m.invalid = snap.Invalid
		if n := len(snap.Toasts); n > 0 {
			m.toast = snap.Toasts[n-1]
		}
	}
	m.diagnostics.Refresh()
}

// loaded reports whether the console finished its initial render. After a
// failed load only a reload helps.
func (m Model) loaded() bool {
	return m.console != nil && m.console.Ready()
}

func (m Model) loginInvalid() bool {
	return m.deps.Gate != nil && m.deps.Gate.Invalid()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		m.rules, _ = m.rules.Update(msg)
		m.diagnostics, _ = m.diagnostics.Update(msg)
		return m, nil

	case showLoginMsg:
		return m, m.startLogin()

	case spinner.TickMsg:
		if m.mode != modeLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loginDoneMsg:
		switch {
		case msg.err != nil:
			// The backend never judged the password.
			m.lastErr = msg.err
			m.deps.Gate.Clear()
			return m, m.startLogin()
		case !msg.ok:
			m.lastErr = nil
			return m, m.startLogin()
		}
		return m, m.startLoad()

	case loadDoneMsg:
		if msg.console != m.console {
			return m, nil
		}
		m.mode = modeBrowse
		if msg.err != nil {
			if client.IsStatus(msg.err, http.StatusUnauthorized) {
				return m, m.startLogin()
			}
			m.lastErr = msg.err
		}
		m.refresh()
		return m, nil

	case opDoneMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.mode == modeLogin || m.mode == modeAdding {
			if key.Matches(msg, m.keys.Cancel) {
				if m.mode == modeLogin {
					return m, tea.Quit
				}
				m.mode = modeBrowse
				m.form = nil
				return m, nil
			}
			return m.updateForm(msg)
		}
		if m.mode == modeBrowse {
			if model, cmd, handled := m.handleBrowseKey(msg); handled {
				return model, cmd
			}
		}
	}

	if m.mode == modeLogin || m.mode == modeAdding {
		return m.updateForm(msg)
	}
	if m.mode != modeBrowse {
		return m, nil
	}

	var cmd tea.Cmd
	switch m.Active {
	case ScreenRules:
		m.rules, cmd = m.rules.Update(msg)
	case ScreenDiagnostics:
		m.diagnostics, cmd = m.diagnostics.Update(msg)
	}
	return m, cmd
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true
	case key.Matches(msg, m.keys.Next):
		m.Active = (m.Active + 1) % 2
	case key.Matches(msg, m.keys.Rules):
		m.Active = ScreenRules
	case key.Matches(msg, m.keys.Diagnostics):
		m.Active = ScreenDiagnostics
		m.diagnostics.Refresh()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Reload):
		return m, m.startLoad(), true
	case key.Matches(msg, m.keys.Add):
		if !m.loaded() {
			return m, nil, true
		}
		return m, m.startAdd(), true
	case key.Matches(msg, m.keys.Delete):
		if !m.loaded() || m.Active != ScreenRules {
			return m, nil, true
		}
		if d, ok := m.rules.Selected(); ok {
			return m, deleteRule(m.console, d.ID), true
		}
	default:
		return m, nil, false
	}
	return m, nil, true
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.form = nil
	switch m.mode {
	case modeLogin:
		m.mode = modeLoading
		return m, tea.Batch(m.spinner.Tick, submit(m.deps.Gate, m.login.Password))
	case modeAdding:
		m.mode = modeBrowse
		return m, addRule(m.console, console.AddRequest{
			Service: m.add.Service,
			Text:    m.add.Text,
			Type:    rules.Type(m.add.Type),
		})
	}
	return m, cmd
}

func (m Model) View() string {
	doc := m.ViewTopBar() + "\n"

	switch m.mode {
	case modeLogin:
		card := StyleCard
		if m.loginInvalid() {
			card = StyleInvalidCard
		}
		parts := []string{StyleHeader.Render("LOGIN"), card.Render(m.form.View())}
		if m.loginInvalid() {
			parts = append(parts, StyleStatusBad.Render(m.deps.Printer.Sprintf(i18n.MsgWrongPass)))
		}
		doc += lipgloss.JoinVertical(lipgloss.Left, parts...)

	case modeLoading:
		doc += m.spinner.View() + " " + StyleSubtitle.Render(m.deps.Printer.Sprintf(i18n.MsgNotReady))

	case modeAdding:
		card := StyleCard
		if m.invalid[console.FieldRuleText] || m.invalid[console.FieldService] {
			card = StyleInvalidCard
		}
		doc += lipgloss.JoinVertical(lipgloss.Left,
			StyleHeader.Render("ADD RULE"),
			card.Render(m.form.View()),
			StyleSubtitle.Render("esc to cancel, enter to submit"),
		)

	case modeBrowse:
		switch m.Active {
		case ScreenRules:
			doc += m.rules.View()
		case ScreenDiagnostics:
			doc += m.diagnostics.View()
		}
	}

	doc += "\n" + m.footer()
	return StyleApp.Render(doc)
}

func (m Model) footer() string {
	var lines []string
	if m.lastErr != nil {
		lines = append(lines, StyleStatusBad.Render("error: "+m.lastErr.Error()))
		if m.mode == modeBrowse && !m.loaded() {
			lines = append(lines, StyleStatusBad.Render(m.deps.Printer.Sprintf(i18n.MsgLoadFailed)))
		}
	}
	if invalid := m.invalidFields(); invalid != "" {
		text := "invalid: " + invalid
		if m.feedback != "" {
			text += " (" + m.feedback + ")"
		}
		lines = append(lines, StyleStatusBad.Render(text))
	}
	if m.toast.Text != "" {
		lines = append(lines, toastStyle(string(m.toast.Level)).Render(m.toast.Text))
	}
	if m.mode == modeBrowse {
		lines = append(lines, m.help.View(m.keys))
	}
	return strings.Join(lines, "\n")
}

func (m Model) invalidFields() string {
	var names []string
	for _, f := range []string{console.FieldService, console.FieldRuleText} {
		if m.invalid[f] {
			names = append(names, f)
		}
	}
	return strings.Join(names, ", ")
}

// ViewTopBar renders the top navigation menu
func (m Model) ViewTopBar() string {
	var items []string

	menus := []struct {
		Screen Screen
		Label  string
		Key    string
	}{
		{ScreenRules, "Rules", "1"},
		{ScreenDiagnostics, "Diagnostics", "2"},
	}

	for _, menu := range menus {
		k := StyleMenuKey.Render("[" + menu.Key + "]")
		if m.Active == menu.Screen {
			items = append(items, StyleMenuItemActive.Render(k+" "+menu.Label))
		} else {
			items = append(items, StyleMenuItem.Render(k+" "+menu.Label))
		}
	}

	title := StyleTitle.Render(strings.ToUpper(brand.Name) + " ")
	bar := lipgloss.JoinHorizontal(lipgloss.Top, append([]string{title}, items...)...)
	return StyleTopBar.Render(bar)
}

// Err returns the last load or transport error, if any.
func (m Model) Err() error {
	return m.lastErr
}
