package cmd

import (
	"errors"
	"net/http"
	"os"

	"grimm.is/rulegate/internal/devbackend"
)

// RunDevBackend serves the development rule backend until interrupted.
func RunDevBackend(opts Options, listen, database string) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Backend.Listen = listen
	}
	if database != "" {
		cfg.Backend.Database = database
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	store, err := devbackend.OpenStore(cfg.Backend.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := devbackend.New(cfg.Backend, store, devbackend.WithLogger(logger.WithComponent("backend")))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("dev backend starting",
		"addr", cfg.Backend.Listen, "database", cfg.Backend.Database, "services", len(cfg.Backend.Services))
	if err := srv.ListenAndServe(ctx, cfg.Backend.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
