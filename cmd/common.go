// Package cmd implements the rulegate subcommands.
package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/rulegate/internal/brand"
	"grimm.is/rulegate/internal/client"
	"grimm.is/rulegate/internal/config"
	"grimm.is/rulegate/internal/console"
	"grimm.is/rulegate/internal/i18n"
	"grimm.is/rulegate/internal/logging"
)

// Printer formats user-facing CLI output.
var Printer = i18n.NewCLIPrinter()

// ErrNoPassword means no console password was given.
var ErrNoPassword = errors.New("no password: set " + brand.ConfigEnvPrefix + "_PASSWORD or pass --password")

// Options are the flags shared by the client-side commands.
type Options struct {
	ConfigFile string
	BackendURL string
	Password   string
}

// LoadConfig reads the config file, applies the environment and the
// command-line overrides, and validates the result. A missing file at the
// default location yields the defaults.
func LoadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigFile
	explicit := path != ""
	if !explicit {
		path = brand.DefaultConfigPath()
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}

	cfg.ApplyEnv()
	if opts.BackendURL != "" {
		cfg.Console.BackendURL = opts.BackendURL
	}
	if opts.Password != "" {
		cfg.Console.Password = opts.Password
	}
	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, errs
	}
	return cfg, nil
}

// newLogger builds the process logger from the config and installs it as
// the default.
func newLogger(cfg *config.Config, out io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{Level: level, Output: out, JSON: cfg.Logging.JSON})
	logging.SetDefault(logger)
	return logger, nil
}

func newClient(cfg *config.Config, logger *logging.Logger) *client.HTTPClient {
	return client.NewHTTPClient(cfg.Console.BackendURL,
		client.WithTimeout(cfg.Console.Timeout),
		client.WithLogger(logger.WithComponent("client")),
	)
}

func consoleOptions(cfg *config.Config, logger *logging.Logger) console.Options {
	return console.Options{
		Timeout: cfg.Console.Timeout,
		Logger:  logger.WithComponent("console"),
		Printer: Printer,
	}
}

// session logs in and returns the logged-in client with a console over a
// fresh view.
func session(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*client.HTTPClient, *console.Console, error) {
	if cfg.Console.Password == "" {
		return nil, nil, ErrNoPassword
	}
	backend := newClient(cfg, logger)
	opts := consoleOptions(cfg, logger)

	ok, err := console.NewGate(backend, opts).Submit(ctx, cfg.Console.Password)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errors.New(Printer.Sprintf(i18n.MsgWrongPass))
	}
	return backend, console.New(backend, console.NewView(), opts), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
