// Package http serves the finance web UI: dashboard, login, signup and the
// add forms.
package http

import (
	"context"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
	appweb "finanzas/web"
)

// Accounts authenticates users and manages their sessions.
type Accounts interface {
	Register(ctx context.Context, reg services.Registration) (core.User, error)
	Authenticate(ctx context.Context, username, password string) (core.User, error)
	StartSession(ctx context.Context, userID int64) (services.Session, error)
	UserForSession(ctx context.Context, token string) (core.User, error)
	Logout(ctx context.Context, token string) error
}

// Ledger records and summarizes a user's finances.
type Ledger interface {
	Today() core.Date
	Dashboard(ctx context.Context, userID int64) (core.Summary, error)
	CategoryOptions(ctx context.Context, userID int64, kind *core.Kind) ([]core.Category, error)
	AddTransaction(ctx context.Context, userID int64, t core.Transaction, restrict *core.Kind) (core.Transaction, error)
	AddSubscription(ctx context.Context, userID int64, sub core.Subscription) (core.Subscription, error)
	AddCategory(ctx context.Context, userID int64, c core.Category) (core.Category, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	Addr               string
	CookieName         string
	CookieSecure       bool
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	accounts Accounts
	ledger   Ledger
	ready    Pinger
	pages    map[string]*template.Template
	logger   *log.Logger

	cookieName   string
	cookieSecure bool

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware,
// returning a ready-to-run server.
func NewServer(opts Options, accounts Accounts, ledger Ledger, ready Pinger) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.CookieName == "" {
		opts.CookieName = "finanzas_session"
	}

	pages, err := parsePages(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		accounts:     accounts,
		ledger:       ledger,
		ready:        ready,
		pages:        pages,
		logger:       logger.WithComponent(log.ComponentHTTP),
		cookieName:   opts.CookieName,
		cookieSecure: opts.CookieSecure,
		detector:     security.NewDetector(logger),
		started:      time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}, logger)

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, err
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /login/{$}", s.handleLoginForm)
	mux.HandleFunc("POST /login/{$}", s.handleLogin)
	mux.HandleFunc("GET /registro/{$}", s.handleSignupForm)
	mux.HandleFunc("POST /registro/{$}", s.handleSignup)
	mux.Handle("POST /logout/{$}", s.requireUser(http.HandlerFunc(s.handleLogout)))

	mux.Handle("GET /{$}", s.requireUser(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("GET /transaccion/nueva/{$}", s.requireUser(s.transactionForm(nil)))
	mux.Handle("POST /transaccion/nueva/{$}", s.requireUser(s.createTransaction(nil)))
	income := core.Income
	mux.Handle("GET /ingreso/nuevo/{$}", s.requireUser(s.transactionForm(&income)))
	mux.Handle("POST /ingreso/nuevo/{$}", s.requireUser(s.createTransaction(&income)))
	mux.Handle("GET /suscripcion/nueva/{$}", s.requireUser(http.HandlerFunc(s.handleSubscriptionForm)))
	mux.Handle("POST /suscripcion/nueva/{$}", s.requireUser(http.HandlerFunc(s.handleCreateSubscription)))
	mux.Handle("GET /categoria/nueva/{$}", s.requireUser(http.HandlerFunc(s.handleCategoryForm)))
	mux.Handle("POST /categoria/nueva/{$}", s.requireUser(http.HandlerFunc(s.handleCreateCategory)))

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP)(handler)
	handler = s.detector.ProbeFilter(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"templates": "ok", "store": "ok"}
	status, code := "ready", http.StatusOK
	if s.ready != nil {
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Readiness check failed", log.FieldError, err)
			checks["store"] = "failed"
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"checks":         checks,
		"active_clients": s.limiter.ActiveClients(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
