package web

import (
	"context"
	"sync"
	"time"

	"grimm.is/rulegate/internal/client"
	"grimm.is/rulegate/internal/clock"
	"grimm.is/rulegate/internal/console"
)

// Workspace is the server side of one browser session: its own backend
// session (cookie jar), the console of the last page load and the
// websocket hub that mirrors that console into the page.
type Workspace struct {
	id      string
	backend *client.HTTPClient
	gate    *console.Gate
	hub     *Hub

	mu          sync.Mutex
	authed      bool
	console     *console.Console
	unsubscribe func()
	lastSeen    time.Time
}

func (ws *Workspace) touch() {
	ws.mu.Lock()
	ws.lastSeen = clock.Now()
	ws.mu.Unlock()
}

func (ws *Workspace) idleSince() time.Time {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.lastSeen
}

// Authed reports whether the backend accepted this workspace's password.
func (ws *Workspace) Authed() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.authed
}

func (ws *Workspace) setAuthed(v bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.authed = v
}

// Console returns the console of the current page load, or nil.
func (ws *Workspace) Console() *console.Console {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.console
}

// reload is a full page load: a fresh view and console, loaded from the
// backend. The hub only starts mirroring the view once loading finished;
// the page itself is rendered from the loaded snapshot.
func (ws *Workspace) reload(ctx context.Context, opts console.Options) (*console.Console, error) {
	c := console.New(ws.backend, console.NewView(), opts)

	ws.mu.Lock()
	if ws.unsubscribe != nil {
		ws.unsubscribe()
		ws.unsubscribe = nil
	}
	ws.console = c
	ws.mu.Unlock()

	if err := c.Load(ctx); err != nil {
		return c, err
	}

	ws.mu.Lock()
	if ws.console == c {
		ws.unsubscribe = c.View().Subscribe(ws.hub.Publish)
	}
	ws.mu.Unlock()
	return c, nil
}

func (ws *Workspace) close() {
	ws.mu.Lock()
	if ws.unsubscribe != nil {
		ws.unsubscribe()
		ws.unsubscribe = nil
	}
	ws.console = nil
	ws.authed = false
	ws.mu.Unlock()
	ws.hub.Close()
}
