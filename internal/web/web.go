package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"evently/internal/auth"
	"evently/internal/calendar"
	"evently/internal/catalog"
	"evently/internal/config"
	appLog "evently/internal/log"
	"evently/internal/query"
	"evently/internal/view"
)

const (
	maxBodyBytes = 64 << 10
	maxPageSize  = 50
)

// Deps are the collaborators a Server needs. Refresher may be nil, which
// turns the admin reload endpoint into a 503.
type Deps struct {
	Config    *config.Config
	Catalog   *catalog.Holder
	Refresher *catalog.Refresher
	Auth      auth.Provider
	Session   *view.Session
	Clock     calendar.Clock
	Location  *time.Location
}

// Server provides the HTTP API, the small calendar page and the admin
// endpoints.
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Holder
	refresher *catalog.Refresher
	auth      auth.Provider
	session   *view.Session
	clock     calendar.Clock
	loc       *time.Location
	mux       *http.ServeMux

	// Facets only change with the catalog snapshot, so they are cached per
	// snapshot rather than recomputed for every list request.
	facetsMu    sync.RWMutex
	facetsCache *facetsCache
}

type facetsCache struct {
	snapshot *catalog.Catalog
	facets   query.Facets
}

// NewServer constructs a new Server.
func NewServer(d Deps) *Server {
	if d.Config == nil {
		d.Config = config.DefaultConfig()
	}
	if d.Clock == nil {
		d.Clock = calendar.SystemClock{}
	}
	if d.Location == nil {
		d.Location = resolveLocationOrLocal(d.Config.Timezone)
	}
	if d.Catalog == nil {
		d.Catalog = catalog.NewHolder(nil)
	}
	if d.Session == nil {
		d.Session = view.NewSession(d.Catalog, d.Config.PageSize, d.Config.ApplyDelay())
	}
	s := &Server{
		cfg:       d.Config,
		catalog:   d.Catalog,
		refresher: d.Refresher,
		auth:      d.Auth,
		session:   d.Session,
		clock:     d.Clock,
		loc:       d.Location,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "admin_auth", s.cfg.BasicAuth.Enabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/calendar/day", s.handleCalendarDay)

	s.mux.HandleFunc("GET /api/browse", s.handleBrowse)
	s.mux.HandleFunc("POST /api/browse", s.handleBrowseUpdate)

	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/me", s.handleMe)
	s.mux.HandleFunc("PATCH /api/me", s.handleUpdateMe)

	s.mux.HandleFunc("GET /api/registrations", s.handleRegistrations)
	s.mux.HandleFunc("POST /api/registrations", s.handleRegister)
	s.mux.HandleFunc("DELETE /api/registrations/{event_id}", s.handleUnregister)
	s.mux.HandleFunc("GET /api/registrations/calendar.ics", s.handleRegistrationsICS)
	s.mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)

	s.mux.Handle("GET /api/admin/status", s.basicAuth(http.HandlerFunc(s.handleAdminStatus)))
	s.mux.Handle("POST /api/admin/reload", s.basicAuth(http.HandlerFunc(s.handleAdminReload)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuth guards admin handlers. Without configured credentials the
// endpoints stay open, which is only meant for local development.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	if !s.cfg.BasicAuth.Enabled() {
		appLog.Warn("admin endpoints are not protected; set basic_auth in config")
		return next
	}
	username := s.cfg.BasicAuth.Username
	hash := s.cfg.BasicAuth.PasswordHash

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		passOK := false
		if ok && secureCompare(u, username) {
			var err error
			passOK, err = auth.VerifyPassword(p, hash)
			if err != nil {
				appLog.Error("admin password hash unusable", err)
				passOK = false
			}
		}
		if !passOK {
			appLog.Warn("admin auth failed", "remote", r.RemoteAddr, "user", u)
			w.Header().Set("WWW-Authenticate", `Basic realm="Evently Admin", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func (s *Server) facets(c *catalog.Catalog) query.Facets {
	s.facetsMu.RLock()
	fc := s.facetsCache
	s.facetsMu.RUnlock()
	if fc != nil && fc.snapshot == c {
		return fc.facets
	}

	f := query.ComputeFacets(c.Events())
	s.facetsMu.Lock()
	s.facetsCache = &facetsCache{snapshot: c, facets: f}
	s.facetsMu.Unlock()
	return f
}

// requireAuth writes 503 when no account provider is wired.
func (s *Server) requireAuth(w http.ResponseWriter) bool {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "accounts are not available")
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func parseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(s), "$"), 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeAuthError maps account errors onto HTTP statuses.
func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNotLoggedIn):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrUnknownEvent):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	resp := errResp{Error: err.Error()}
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Err.Error()
		resp.Fields = verr.Fields
	}
	if status == http.StatusInternalServerError {
		appLog.Error("request failed", err)
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}
