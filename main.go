package main

import (
	"flag"
	"os"
	"strconv"

	"grimm.is/rulegate/cmd"
	"grimm.is/rulegate/internal/brand"
	"grimm.is/rulegate/internal/i18n"
)

var printer = i18n.NewCLIPrinter()

// clientFlags registers the flags shared by commands that talk to the
// backend.
func clientFlags(fs *flag.FlagSet) *cmd.Options {
	opts := &cmd.Options{}
	fs.StringVar(&opts.ConfigFile, "config", "", "Configuration file (default "+brand.DefaultConfigPath()+")")
	fs.StringVar(&opts.ConfigFile, "c", "", "Configuration file (short)")
	fs.StringVar(&opts.BackendURL, "backend", "", "Rule backend URL (overrides config)")
	fs.StringVar(&opts.Password, "password", "", "Backend password (default $"+brand.ConfigEnvPrefix+"_PASSWORD)")
	fs.StringVar(&opts.Password, "p", "", "Backend password (short)")
	return opts
}

func fail(what string, err error) {
	printer.Fprintf(os.Stderr, "%s failed: %v\n", what, err)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "console":
		fs := flag.NewFlagSet("console", flag.ExitOnError)
		opts := clientFlags(fs)
		logFile := fs.String("log-file", "", "Write logs to this file")
		fs.Parse(args)
		if err := cmd.RunConsole(*opts, *logFile); err != nil {
			fail("Console", err)
		}

	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		opts := clientFlags(fs)
		listen := fs.String("listen", "", "Listen address (overrides config)")
		fs.StringVar(listen, "l", "", "Listen address (short)")
		fs.Parse(args)
		if err := cmd.RunServe(*opts, *listen); err != nil {
			fail("Serve", err)
		}

	case "services":
		fs := flag.NewFlagSet("services", flag.ExitOnError)
		opts := clientFlags(fs)
		fs.Parse(args)
		if err := cmd.RunServices(os.Stdout, *opts); err != nil {
			fail("Services", err)
		}

	case "rules":
		fs := flag.NewFlagSet("rules", flag.ExitOnError)
		opts := clientFlags(fs)
		asJSON := fs.Bool("json", false, "Print JSON")
		fs.Parse(args)
		if err := cmd.RunRules(os.Stdout, *opts, fs.Arg(0), *asJSON); err != nil {
			fail("Rules", err)
		}

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		opts := clientFlags(fs)
		service := fs.String("service", "", "Service the rule belongs to")
		fs.StringVar(service, "s", "", "Service (short)")
		ruleType := fs.String("type", "ascii", "Rule text encoding: ascii, hex or base64")
		fs.StringVar(ruleType, "t", "ascii", "Rule type (short)")
		fs.Parse(args)
		if err := cmd.RunAdd(os.Stdout, *opts, *service, *ruleType, fs.Arg(0)); err != nil {
			fail("Add", err)
		}

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		opts := clientFlags(fs)
		fs.Parse(args)
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			printer.Fprintf(os.Stderr, "Usage: %s delete [options] <rule-id>\n", brand.BinaryName)
			os.Exit(1)
		}
		if err := cmd.RunDelete(os.Stdout, *opts, id); err != nil {
			fail("Delete", err)
		}

	case "dev-backend":
		fs := flag.NewFlagSet("dev-backend", flag.ExitOnError)
		opts := clientFlags(fs)
		listen := fs.String("listen", "", "Listen address (overrides config)")
		fs.StringVar(listen, "l", "", "Listen address (short)")
		database := fs.String("db", "", "SQLite database path (overrides config)")
		fs.Parse(args)
		if err := cmd.RunDevBackend(*opts, *listen, *database); err != nil {
			fail("Dev backend", err)
		}

	case "check":
		fs := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := fs.Bool("verbose", false, "Verbose output")
		fs.BoolVar(verbose, "v", false, "Verbose output (short)")
		fs.Parse(args)

		configFile := brand.DefaultConfigPath()
		if fs.NArg() > 0 {
			configFile = fs.Arg(0)
		}
		if err := cmd.RunCheck(os.Stdout, configFile, *verbose); err != nil {
			fail("Check", err)
		}

	case "config":
		fs := flag.NewFlagSet("config", flag.ExitOnError)
		opts := clientFlags(fs)
		output := fs.String("output", "hcl", "Output format: hcl, json")
		fs.StringVar(output, "o", "hcl", "Output format (short)")
		diff := fs.Bool("diff", false, "Show changes from the built-in defaults")
		fs.Parse(args)
		var err error
		if *diff {
			err = cmd.RunConfigDiff(os.Stdout, *opts)
		} else {
			err = cmd.RunConfigShow(os.Stdout, *opts, *output)
		}
		if err != nil {
			fail("Config", err)
		}

	case "version", "--version", "-v":
		cmd.RunVersion(os.Stdout)

	case "help", "--help", "-h":
		printUsage()

	default:
		printer.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printer.Printf(`%s - %s

Usage:
  %s <command> [options]

Console Commands:
  console      Interactive terminal console
               Options: --log-file <file>
  serve        Browser console
               Options: --listen (-l) <addr>

Rule Commands:
  services     List the backend's services
  rules        List rules in display form
               Usage: rules [service] [--json]
  add          Add a rule
               Usage: add --service (-s) <name> --type (-t) ascii|hex|base64 <text>
  delete       Delete a rule
               Usage: delete <rule-id>

Backend and Config:
  dev-backend  Run the development rule backend (password from $AUTH_PASSWORD)
               Options: --listen (-l) <addr>, --db <path>
  check        Validate a configuration file
               Options: --verbose (-v)
  config       Print the effective configuration
               Options: --output (-o) hcl|json, --diff
  version      Show version information

Common Options:
  --config (-c) <file>     Configuration file (HCL, JSON or YAML)
  --backend <url>          Rule backend URL
  --password (-p) <pass>   Backend password (or $%s_PASSWORD)

Examples:
  AUTH_PASSWORD=secret %s dev-backend -c gateway.yml
  %s_PASSWORD=secret %s serve
  %s add -s http -t hex 474554
`, brand.Name, brand.Description, brand.BinaryName,
		brand.ConfigEnvPrefix,
		brand.BinaryName,
		brand.ConfigEnvPrefix, brand.BinaryName,
		brand.BinaryName)
}
