package cmd

import (
	"errors"
	"net/http"
	"os"

	"grimm.is/rulegate/internal/web"
)

// RunServe runs the browser console until interrupted.
func RunServe(opts Options, listen string) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Web.Listen = listen
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	srv, err := web.New(cfg, web.WithLogger(logger.WithComponent("web")))
	if err != nil {
		return err
	}
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
