// Package web serves the browser console. Each browser session gets a
// Workspace holding its own backend session and console; the page is
// rendered from the console's view and kept current over a websocket
// that carries view patches.
package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"grimm.is/rulegate/internal/api"
	"grimm.is/rulegate/internal/brand"
	"grimm.is/rulegate/internal/client"
	"grimm.is/rulegate/internal/clock"
	"grimm.is/rulegate/internal/config"
	"grimm.is/rulegate/internal/console"
	"grimm.is/rulegate/internal/health"
	"grimm.is/rulegate/internal/i18n"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
	"grimm.is/rulegate/internal/ratelimit"
	"grimm.is/rulegate/internal/render"
	"grimm.is/rulegate/internal/rules"
	"grimm.is/rulegate/internal/scheduler"
	"grimm.is/rulegate/internal/validation"
)

const (
	workspaceKey = "workspace"

	// WorkspaceTTL drops workspaces whose browser has been idle this long.
	WorkspaceTTL = 12 * time.Hour
)

// clearableFields are the console form fields that carry an invalid
// marker. The password field's marker lives in the workspace's Gate.
var clearableFields = []string{console.FieldService, console.FieldRuleText}

// Server is the browser console.
type Server struct {
	cfg      *config.Config
	sessions *sessions.CookieStore
	proxies  api.Proxies
	limiter  *ratelimit.Limiter
	logger   *logging.Logger
	metrics  *metrics.Registry
	diag     *logging.RingBuffer
	sched    *scheduler.Scheduler
	health   *health.Checker

	clientOpts []client.ClientOption

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics registry.
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Server) { s.metrics = r }
}

// WithDiagnostics sets the buffer served at /diagnostics.
func WithDiagnostics(rb *logging.RingBuffer) Option {
	return func(s *Server) { s.diag = rb }
}

// WithClientOptions adds options to every backend client.
func WithClientOptions(opts ...client.ClientOption) Option {
	return func(s *Server) { s.clientOpts = append(s.clientOpts, opts...) }
}

// New creates the browser console for cfg.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	proxies, err := api.ParseProxies(cfg.Web.TrustedProxies)
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.Web.SessionSecret)
	if len(secret) == 0 {
		// Sessions will not survive a restart.
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(WorkspaceTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Web.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		cfg:        cfg,
		sessions:   store,
		proxies:    proxies,
		limiter:    ratelimit.NewLimiter(5, time.Minute),
		logger:     logging.WithComponent("web"),
		diag:       logging.Diagnostics(),
		workspaces: make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Get()
	}

	s.health = health.NewChecker(5 * time.Second)
	s.health.Register("backend", health.Ping(s.newClient().Ping))

	s.sched = scheduler.New(s.logger)
	s.sched.Every("workspace-expiry", "Expire idle workspaces", 10*time.Minute, func(context.Context) error {
		if n := s.ExpireIdle(WorkspaceTTL); n > 0 {
			s.logger.Info("expired idle workspaces", "count", n)
		}
		return nil
	})
	s.sched.Every("limiter-cleanup", "Forget expired login attempts", time.Minute, func(context.Context) error {
		s.limiter.CleanupExpired()
		return nil
	})
	return s, nil
}

// Handler returns the console routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(api.AccessLog(s.logger, s.metrics, s.proxies))
	r.Use(i18n.Middleware)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/healthz", s.health.Handler()).Methods(http.MethodGet)
	r.Handle("/livez", health.LivenessHandler()).Methods(http.MethodGet)
	r.Handle("/readyz", s.health.ReadinessHandler()).Methods(http.MethodGet)

	r.HandleFunc("/rules", s.requireAuth(s.handleAddRule)).Methods(http.MethodPost)
	r.HandleFunc("/rules/{id:[0-9]+}", s.requireAuth(s.handleDeleteRule)).Methods(http.MethodDelete)
	r.HandleFunc("/fields/{field}/clear", s.requireAuth(s.handleClearInvalid)).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.requireAuth(s.handleWS)).Methods(http.MethodGet)
	r.HandleFunc("/diagnostics", s.requireAuth(s.handleDiagnostics)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", s.requireAuth(s.handleTasks)).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/run", s.requireAuth(s.handleRunTask)).Methods(http.MethodPost)
	return r
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Web.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.sched.Start(ctx)
	defer s.sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web console listening", "addr", srv.Addr, "backend", s.cfg.Console.BackendURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ExpireIdle drops workspaces idle for longer than ttl.
func (s *Server) ExpireIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ws := range s.workspaces {
		if clock.Since(ws.idleSince()) > ttl {
			ws.close()
			delete(s.workspaces, id)
			n++
		}
	}
	s.metrics.Workspaces.Set(float64(len(s.workspaces)))
	return n
}

func (s *Server) consoleOptions(r *http.Request) console.Options {
	return console.Options{
		Timeout: s.cfg.Console.Timeout,
		Logger:  s.logger.WithComponent("console"),
		Metrics: s.metrics,
		Printer: i18n.GetPrinter(r.Context()),
	}
}

func (s *Server) newClient() *client.HTTPClient {
	opts := append([]client.ClientOption{
		client.WithTimeout(s.cfg.Console.Timeout),
		client.WithMetrics(s.metrics),
		client.WithLogger(s.logger.WithComponent("client")),
	}, s.clientOpts...)
	return client.NewHTTPClient(s.cfg.Console.BackendURL, opts...)
}

func (s *Server) newWorkspace() *Workspace {
	backend := s.newClient()

	ws := &Workspace{
		id:      uuid.NewString(),
		backend: backend,
		gate: console.NewGate(backend, console.Options{
			Timeout: s.cfg.Console.Timeout,
			Logger:  s.logger.WithComponent("gate"),
			Metrics: s.metrics,
		}),
		hub:      NewHub(s.logger.WithComponent("ws"), s.metrics),
		lastSeen: clock.Now(),
	}

	s.mu.Lock()
	s.workspaces[ws.id] = ws
	s.metrics.Workspaces.Set(float64(len(s.workspaces)))
	s.mu.Unlock()
	return ws
}

// workspace returns the workspace of the request's browser session, or nil.
func (s *Server) workspace(r *http.Request) (*Workspace, *sessions.Session) {
	// A cookie that fails to decode yields a fresh session.
	sess, _ := s.sessions.Get(r, brand.SessionCookie)
	id, _ := sess.Values[workspaceKey].(string)
	if id == "" {
		return nil, sess
	}

	s.mu.Lock()
	ws := s.workspaces[id]
	s.mu.Unlock()
	if ws != nil {
		ws.touch()
	}
	return ws, sess
}

func (s *Server) dropWorkspace(ws *Workspace) {
	s.mu.Lock()
	delete(s.workspaces, ws.id)
	s.metrics.Workspaces.Set(float64(len(s.workspaces)))
	s.mu.Unlock()
	ws.close()
}

type authedHandler func(w http.ResponseWriter, r *http.Request, ws *Workspace)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, _ := s.workspace(r)
		if ws == nil || !ws.Authed() {
			api.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, ws)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, invalid bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := render.LoginPage(w, render.LoginData{Title: brand.Name, Invalid: invalid}); err != nil {
		s.logger.Error("render login page", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(r)
	if ws == nil || !ws.Authed() {
		s.renderLogin(w, http.StatusOK, false)
		return
	}

	c, err := ws.reload(r.Context(), s.consoleOptions(r))
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			// The backend session expired: back to the password form.
			ws.setAuthed(false)
			s.renderLogin(w, http.StatusOK, false)
			return
		}
		s.logger.Error("page load failed", "workspace", ws.id, "error", err)
		http.Error(w, "rule backend unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.Page(w, c.View().Snapshot().PageData(brand.Name)); err != nil {
		s.logger.Error("render page", "error", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	clientIP := s.proxies.ClientIP(r)
	if !s.limiter.Allow(clientIP) {
		s.logger.Warn("rate limit exceeded for login", "ip", clientIP)
		http.Error(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	// Every attempt gets its own backend session; the browser's previous
	// workspace is only replaced once the new one is accepted.
	prev, sess := s.workspace(r)
	ws := s.newWorkspace()

	ok, err := ws.gate.Submit(r.Context(), r.PostFormValue("password"))
	if err != nil {
		s.dropWorkspace(ws)
		s.renderLogin(w, http.StatusBadGateway, false)
		return
	}
	if !ok {
		s.dropWorkspace(ws)
		if prev != nil {
			// A refused password signs the browser out.
			s.dropWorkspace(prev)
			delete(sess.Values, workspaceKey)
			if err := sess.Save(r, w); err != nil {
				s.logger.Error("save session", "error", err)
			}
			s.logger.Info("console signed out after refused login", "ip", clientIP, "workspace", prev.id)
		}
		s.renderLogin(w, http.StatusUnauthorized, ws.gate.Invalid())
		return
	}

	ws.setAuthed(true)
	s.limiter.Reset(clientIP)
	sess.Values[workspaceKey] = ws.id
	if err := sess.Save(r, w); err != nil {
		s.dropWorkspace(ws)
		s.logger.Error("save session", "error", err)
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	if prev != nil {
		s.dropWorkspace(prev)
	}
	s.logger.Info("console login", "ip", clientIP, "workspace", ws.id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ws, sess := s.workspace(r)
	if ws != nil {
		s.dropWorkspace(ws)
	}
	delete(sess.Values, workspaceKey)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// actionStatus maps console errors to the status of the browser's request.
// The page itself learns the outcome from the patches.
func actionStatus(err error) int {
	var ve *client.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, console.ErrInvalidInput), errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, console.ErrNotReady):
		return http.StatusConflict
	case client.IsStatus(err, http.StatusNotFound):
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func (s *Server) currentConsole(w http.ResponseWriter, ws *Workspace) *console.Console {
	c := ws.Console()
	if c == nil {
		api.WriteMessage(w, http.StatusConflict, "Load the console first")
	}
	return c
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	c := s.currentConsole(w, ws)
	if c == nil {
		return
	}

	d, err := c.AddRule(r.Context(), console.AddRequest{
		Service: r.PostFormValue("service"),
		Text:    r.PostFormValue("rule_text"),
		Type:    rules.Type(strings.ToLower(r.PostFormValue("rule_type"))),
	})
	if err != nil {
		api.WriteMessage(w, actionStatus(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusCreated, d)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	c := s.currentConsole(w, ws)
	if c == nil {
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		api.WriteMessage(w, http.StatusNotFound, "Rule not found.")
		return
	}
	if err := c.DeleteRule(r.Context(), id); err != nil {
		api.WriteMessage(w, actionStatus(err), err.Error())
		return
	}
	api.WriteMessage(w, http.StatusOK, "Ok.")
}

func (s *Server) handleClearInvalid(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	c := s.currentConsole(w, ws)
	if c == nil {
		return
	}
	field := mux.Vars(r)["field"]
	if err := validation.ValidateAllowlist(field, clearableFields); err != nil {
		api.WriteMessage(w, http.StatusNotFound, "Unknown field")
		return
	}
	c.ClearInvalid(field)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	ws.hub.Serve(w, r)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request, _ *Workspace) {
	limit := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	api.WriteJSON(w, http.StatusOK, s.diag.GetLast(limit))
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request, _ *Workspace) {
	api.WriteJSON(w, http.StatusOK, s.sched.GetStatus())
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request, _ *Workspace) {
	id := mux.Vars(r)["id"]
	status, ok := s.sched.GetTaskStatus(id)
	if !ok {
		api.WriteMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	if err := s.sched.RunTask(id); err != nil {
		api.WriteMessage(w, http.StatusConflict, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusAccepted, status)
}
