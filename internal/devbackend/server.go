// Package devbackend is a self-contained rule backend for local use and
// integration tests. It serves the same REST API as the gateway: services
// come from configuration, rules and login sessions live in sqlite.
package devbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"grimm.is/rulegate/internal/api"
	"grimm.is/rulegate/internal/audit"
	"grimm.is/rulegate/internal/codec"
	"grimm.is/rulegate/internal/config"
	"grimm.is/rulegate/internal/health"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
	"grimm.is/rulegate/internal/ratelimit"
	"grimm.is/rulegate/internal/rules"
	"grimm.is/rulegate/internal/scheduler"
)

// TokenCookie carries the session token issued by /get_token.
const TokenCookie = "authToken"

// SessionTTL is how long a login stays valid.
const SessionTTL = 24 * time.Hour

// Server serves the rule backend API.
type Server struct {
	services []string
	store    *Store
	hash     []byte
	proxies  api.Proxies
	limiter  *ratelimit.Limiter
	logger   *logging.Logger
	metrics  *metrics.Registry
	health   *health.Checker
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

// WithLimiter replaces the login rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New creates a backend serving cfg's services from store. The password
// is kept only as a bcrypt hash.
func New(cfg *config.BackendConfig, store *Store, opts ...Option) (*Server, error) {
	if cfg.Password == "" {
		return nil, errors.New("no backend password configured (set AUTH_PASSWORD)")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	proxies, err := api.ParseProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		services: cfg.ServiceNames(),
		store:    store,
		hash:     hash,
		proxies:  proxies,
		// 5 attempts per minute per IP
		limiter: ratelimit.NewLimiter(5, time.Minute),
		logger:  logging.WithComponent("backend"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Get()
	}
	s.health = health.NewChecker(5 * time.Second)
	s.health.Register("database", health.Ping(store.Ping))
	return s, nil
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(api.AccessLog(s.logger, s.metrics, s.proxies))
	r.HandleFunc("/get_token", s.handleGetToken).Methods(http.MethodPost)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/healthz", s.health.Handler()).Methods(http.MethodGet)
	r.Handle("/readyz", s.health.ReadinessHandler()).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/services", s.handleServices).Methods(http.MethodGet)
	authed.HandleFunc("/rules", s.handleAllRules).Methods(http.MethodGet)
	authed.HandleFunc("/rules", s.handleAddRule).Methods(http.MethodPost)
	authed.HandleFunc("/rules/filter/{service}", s.handleServiceRules).Methods(http.MethodGet)
	authed.HandleFunc("/rules/{id:[0-9]+}", s.handleDeleteRule).Methods(http.MethodDelete)
	authed.HandleFunc("/audit", s.handleAudit).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := s.Housekeeping()
	sched.Start(ctx)
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("backend listening", "addr", addr, "services", len(s.services))
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

// Housekeeping returns the scheduler for the backend's periodic jobs:
// expired sessions, old audit events and stale rate limit entries.
func (s *Server) Housekeeping() *scheduler.Scheduler {
	sched := scheduler.New(s.logger)
	sched.Every("session-prune", "Prune expired sessions", time.Hour, func(ctx context.Context) error {
		n, err := s.store.PruneSessions(ctx, SessionTTL)
		if n > 0 {
			s.logger.Debug("pruned sessions", "count", n)
		}
		return err
	})
	sched.Every("audit-prune", "Prune old audit events", 24*time.Hour, func(ctx context.Context) error {
		_, err := s.store.Audit().Prune(ctx)
		return err
	})
	sched.Every("limiter-cleanup", "Forget expired login attempts", time.Minute, func(ctx context.Context) error {
		s.limiter.CleanupExpired()
		return nil
	})
	return sched
}

// record writes an audit event. A failing audit write never fails the
// request that caused it.
func (s *Server) record(r *http.Request, evt audit.Event) {
	evt.IP = s.proxies.ClientIP(r)
	if err := s.store.Audit().Write(r.Context(), evt); err != nil {
		s.logger.Warn("audit write failed", "action", evt.Action, "error", err)
	}
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(TokenCookie)
		if err != nil {
			api.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ok, err := s.store.ValidSession(r.Context(), cookie.Value, SessionTTL)
		if err != nil {
			s.logger.Error("session lookup failed", "error", err)
			api.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !ok {
			api.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	clientIP := s.proxies.ClientIP(r)
	if !s.limiter.Allow(clientIP) {
		s.logger.Warn("rate limit exceeded for login", "ip", clientIP)
		api.WriteMessage(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	var login struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&login); err != nil {
		api.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if bcrypt.CompareHashAndPassword(s.hash, []byte(login.Password)) != nil {
		s.logger.Warn("failed login attempt", "ip", clientIP)
		s.record(r, audit.Event{Action: audit.ActionLoginFailed, Resource: "session", Status: http.StatusUnauthorized})
		api.WriteMessage(w, http.StatusUnauthorized, "Wrong password")
		return
	}

	token := uuid.NewString()
	if err := s.store.CreateSession(r.Context(), token); err != nil {
		s.logger.Error("create session failed", "error", err)
		api.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.limiter.Reset(clientIP)
	s.logger.Info("successful login", "ip", clientIP)
	s.record(r, audit.Event{Action: audit.ActionLogin, Resource: "session", Status: http.StatusOK})

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL.Seconds()),
	})
	api.WriteMessage(w, http.StatusOK, "Ok")
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.services)
}

func (s *Server) handleAllRules(w http.ResponseWriter, r *http.Request) {
	s.listRules(w, r, "")
}

func (s *Server) handleServiceRules(w http.ResponseWriter, r *http.Request) {
	s.listRules(w, r, mux.Vars(r)["service"])
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request, service string) {
	list, err := s.store.ListRules(r.Context(), service)
	if err != nil {
		s.logger.Error("list rules failed", "service", service, "error", err)
		api.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

// ruleMessages are the 400 answers for input that cannot become a rule.
var ruleMessages = map[error]string{
	codec.ErrInvalidHex:    "Invalid hex string.",
	codec.ErrInvalidBase64: "Invalid base64 string.",
	codec.ErrInvalidType:   "Invalid rule type.",
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var nr rules.NewRule
	if err := json.NewDecoder(r.Body).Decode(&nr); err != nil {
		api.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	raw, err := encodeRule(nr)
	if err != nil {
		msg, ok := ruleMessages[err]
		if !ok {
			msg = err.Error()
		}
		api.WriteMessage(w, http.StatusBadRequest, msg)
		return
	}

	if !slices.Contains(s.services, nr.ServiceName) {
		api.WriteMessage(w, http.StatusNotFound, "Service not found")
		return
	}

	created, err := s.store.InsertRule(r.Context(), nr.ServiceName, codec.EncodePayload(raw))
	if err != nil {
		s.logger.Error("insert rule failed", "error", err)
		api.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.logger.Info("rule added", "id", created.ID, "service", created.ServiceName, "bytes", len(raw))
	s.record(r, audit.Event{
		Action:   audit.ActionRuleAdd,
		Resource: strconv.FormatInt(created.ID, 10),
		Status:   http.StatusCreated,
		Details:  map[string]any{"service": created.ServiceName, "type": string(nr.Type)},
	})
	api.WriteJSON(w, http.StatusCreated, created)
}

func encodeRule(nr rules.NewRule) ([]byte, error) {
	t, err := codec.ParseType(string(nr.Type))
	if err != nil {
		return nil, err
	}
	return codec.EncodeText(t, nr.Text)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		api.WriteMessage(w, http.StatusNotFound, "Rule not found.")
		return
	}

	deleted, err := s.store.DeleteRule(r.Context(), id)
	if err != nil {
		s.logger.Error("delete rule failed", "id", id, "error", err)
		api.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !deleted {
		api.WriteMessage(w, http.StatusNotFound, "Rule not found.")
		return
	}
	s.logger.Info("rule deleted", "id", id)
	s.record(r, audit.Event{Action: audit.ActionRuleDelete, Resource: strconv.FormatInt(id, 10), Status: http.StatusOK})
	api.WriteMessage(w, http.StatusOK, "Ok.")
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{Action: q.Get("action"), Limit: 100}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			api.WriteMessage(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}

	events, err := s.store.Audit().Query(r.Context(), f)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		api.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	api.WriteJSON(w, http.StatusOK, events)
}
