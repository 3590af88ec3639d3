package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"text/tabwriter"

	"grimm.is/rulegate/internal/console"
	"grimm.is/rulegate/internal/rules"
)

// ruleJSON is the machine-readable form of a displayed rule.
type ruleJSON struct {
	ID      int64  `json:"id"`
	Service string `json:"service_name"`
	Rule    string `json:"rule"`
}

// RunServices prints the backend's services, one per line.
func RunServices(w io.Writer, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	backend, _, err := session(ctx, cfg, logger)
	if err != nil {
		return err
	}
	dir, err := console.LoadDirectory(ctx, backend)
	if err != nil {
		return err
	}
	for _, name := range dir.Names() {
		Printer.Fprintf(w, "%s\n", name)
	}
	return nil
}

// RunRules prints the rules of service, or of every service when service
// is empty, in their display form.
func RunRules(w io.Writer, opts Options, service string, asJSON bool) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	_, c, err := session(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var list []rules.Decoded
	if service != "" {
		list, err = c.FetchRulesFor(ctx, service)
		if err != nil {
			return err
		}
	} else {
		if err := c.Load(ctx); err != nil {
			return err
		}
		for _, sec := range c.View().Snapshot().Sections {
			list = append(list, sec.Rules...)
		}
	}
	return printRules(w, list, asJSON)
}

func printRules(w io.Writer, list []rules.Decoded, asJSON bool) error {
	if asJSON {
		out := make([]ruleJSON, 0, len(list))
		for _, d := range list {
			out = append(out, ruleJSON{ID: d.ID, Service: d.ServiceName, Rule: d.Text})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	Printer.Fprintf(tw, "ID\tSERVICE\tRULE\n")
	for _, d := range list {
		Printer.Fprintf(tw, "%d\t%s\t%s\n", d.ID, d.ServiceName, d.Text)
	}
	return tw.Flush()
}

// RunAdd creates a rule. It loads the console first so the service is
// checked against the directory and the rule appears in its list.
func RunAdd(w io.Writer, opts Options, service, ruleType, text string) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	_, c, err := session(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Load(ctx); err != nil {
		return err
	}

	d, err := c.AddRule(ctx, console.AddRequest{Service: service, Text: text, Type: rules.Type(ruleType)})
	if err != nil {
		if errors.Is(err, console.ErrInvalidInput) {
			return invalidInputError(c.View().Snapshot())
		}
		return err
	}
	Printer.Fprintf(w, "%d\t%s\t%s\n", d.ID, d.ServiceName, d.Text)
	return nil
}

func invalidInputError(snap console.Snapshot) error {
	switch {
	case snap.Invalid[console.FieldService]:
		return errors.New("choose a service")
	case snap.Invalid[console.FieldRuleText]:
		return errors.New("rule text is empty")
	}
	return console.ErrInvalidInput
}

// RunDelete deletes a rule by id.
func RunDelete(w io.Writer, opts Options, id int64) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	_, c, err := session(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Load(ctx); err != nil {
		return err
	}
	if err := c.DeleteRule(ctx, id); err != nil {
		return err
	}
	Printer.Fprintf(w, "%s\n", rules.NodeID(id))
	return nil
}
