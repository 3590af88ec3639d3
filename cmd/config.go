package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/rulegate/internal/config"
)

// RunCheck validates a configuration file and prints a summary.
func RunCheck(w io.Writer, configFile string, verbose bool) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	Printer.Fprintf(w, "Configuration OK: %s (schema %s)\n", configFile, cfg.SchemaVersion)
	if verbose {
		Printer.Fprintf(w, "  backend_url: %s\n", cfg.Console.BackendURL)
		Printer.Fprintf(w, "  timeout:     %s\n", cfg.Console.Timeout)
		Printer.Fprintf(w, "  web listen:  %s\n", cfg.Web.Listen)
		Printer.Fprintf(w, "  services:    %d\n", len(cfg.Backend.Services))
		for _, s := range cfg.Backend.Services {
			Printer.Fprintf(w, "    %s (%s -> %s)\n", s.Name, s.From, s.To)
		}
	}
	return nil
}

// RunConfigShow prints the effective configuration. Secrets are never
// printed.
func RunConfigShow(w io.Writer, opts Options, format string) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	switch format {
	case "", "hcl":
		_, err = w.Write(config.GenerateHCL(cfg))
		return err
	case "json":
		redacted := *cfg
		if cfg.Web != nil {
			web := *cfg.Web
			web.SessionSecret = ""
			redacted.Web = &web
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(redacted)
	}
	return fmt.Errorf("invalid output format: %s", format)
}

// RunConfigDiff prints how the effective configuration differs from the
// built-in defaults, as a unified diff of the generated HCL.
func RunConfigDiff(w io.Writer, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	defaults := config.Default()
	defaults.Validate()

	a, b := string(config.GenerateHCL(defaults)), string(config.GenerateHCL(cfg))
	if a == b {
		Printer.Fprintln(w, "No changes from defaults.")
		return nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "Defaults",
		ToFile:   "Effective",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}
