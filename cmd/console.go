package cmd

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"grimm.is/rulegate/internal/console"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/tui"
)

// RunConsole starts the terminal console. The terminal belongs to the
// program, so logs go to logFile (if set) and the diagnostics screen.
func RunConsole(opts Options, logFile string) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	var out io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	logger, err := newLogger(cfg, out)
	if err != nil {
		return err
	}

	backend := newClient(cfg, logger)
	copts := consoleOptions(cfg, logger)

	model := tui.NewModel(tui.Deps{
		Gate:        console.NewGate(backend, copts),
		NewConsole:  func() *console.Console { return console.New(backend, console.NewView(), copts) },
		Diagnostics: logging.Diagnostics(),
		Printer:     Printer,
		Password:    cfg.Console.Password,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(tui.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
