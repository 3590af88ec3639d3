package console

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"grimm.is/rulegate/internal/client"
)

// Authenticator exchanges a password for a backend session.
type Authenticator interface {
	Login(ctx context.Context, password string) error
}

// Gate is the password form in front of the console.
type Gate struct {
	auth    Authenticator
	opts    Options
	invalid atomic.Bool
}

// NewGate creates a gate logging in through auth.
func NewGate(auth Authenticator, opts Options) *Gate {
	return &Gate{auth: auth, opts: opts.withDefaults()}
}

// Submit sends the password. It returns true once the backend accepted it;
// the caller then reloads the console. A refused password marks the field
// invalid and returns false. Transport failures are returned as errors.
func (g *Gate) Submit(ctx context.Context, password string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	err := g.auth.Login(callCtx, password)
	if err == nil {
		g.invalid.Store(false)
		g.opts.Metrics.RecordOp("login", "ok")
		return true, nil
	}

	var se *client.StatusError
	if errors.As(err, &se) {
		g.invalid.Store(true)
		g.opts.Metrics.RecordOp("login", "rejected")
		g.opts.Logger.Warn("login refused", "status", se.Code)
		return false, nil
	}

	g.opts.Metrics.RecordOp("login", "error")
	g.opts.Logger.Error("login failed", "error", err)
	return false, fmt.Errorf("login: %w", err)
}

// Invalid reports whether the last submission was refused.
func (g *Gate) Invalid() bool {
	return g.invalid.Load()
}

// Clear resets the invalid marker.
func (g *Gate) Clear() {
	g.invalid.Store(false)
}
