// Package http serves the fintrack screens. Handlers render embedded
// templates and reach the remote API through the shared store, one
// credentialed client per request.
package http

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/session"
	"fintrack/internal/store"
	appweb "fintrack/web"
)

// Check is one named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Options are the collaborators of a Server. Sheets, Limiter and Detector
// are optional.
type Options struct {
	Addr           string
	Client         *api.Client
	Sessions       *session.Manager
	Policy         *session.Policy
	Store          *store.Store
	Dashboard      *services.DashboardService
	Forms          *services.TransactionFormService
	Sheets         *export.SheetsAppender
	Detector       *security.Detector
	Limiter        *ratelimit.Limiter
	CurrencySymbol string
	ReadyChecks    []Check
	Logger         *log.Logger
}

type Server struct {
	http.Server

	client    *api.Client
	sessions  *session.Manager
	policy    *session.Policy
	store     *store.Store
	dashboard *services.DashboardService
	forms     *services.TransactionFormService
	sheets    *export.SheetsAppender
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	checks    []Check

	symbol  string
	views   *views
	logger  *log.Logger
	started time.Time
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the templates and wires routes and middleware.
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "₹"
	}
	if opts.Detector == nil {
		d, err := security.NewDetector(nil, opts.Logger)
		if err != nil {
			return nil, err
		}
		opts.Detector = d
	}
	if opts.Dashboard == nil {
		opts.Dashboard = services.NewDashboardService(opts.Logger)
	}
	if opts.Forms == nil {
		opts.Forms = services.NewTransactionFormService(services.ReselectFirst, opts.Logger)
	}

	v, err := parseViews(opts.CurrencySymbol)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		client:    opts.Client,
		sessions:  opts.Sessions,
		policy:    opts.Policy,
		store:     opts.Store,
		dashboard: opts.Dashboard,
		forms:     opts.Forms,
		sheets:    opts.Sheets,
		detector:  opts.Detector,
		limiter:   opts.Limiter,
		checks:    opts.ReadyChecks,
		symbol:    opts.CurrencySymbol,
		views:     v,
		logger:    opts.Logger.WithComponent(log.ComponentHTTP),
		started:   time.Now(),
		now:       time.Now,
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ClientIP)

	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() (http.Handler, error) {
	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssets(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleRoot)

	guest := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.policy.RedirectIfAuthenticated(h))
	}
	mux.Handle("GET /login", guest(s.handleLoginPage))
	mux.Handle("POST /login", guest(s.handleLogin))
	mux.Handle("GET /register", guest(s.handleRegisterPage))
	mux.Handle("POST /register", guest(s.handleRegister))
	mux.HandleFunc("POST /logout", s.handleLogout)

	verify := s.policy.Verify(func(w http.ResponseWriter) session.ProfileFetcher {
		return s.client.WithCredentials(s.sessions.Credentials(w))
	})
	private := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.policy.RequireAuth(verify(h)))
	}

	mux.Handle("GET /dashboard", private(s.handleDashboard))

	mux.Handle("GET /accounts", private(s.handleAccounts))
	mux.Handle("GET /accounts/new", private(s.handleAccountForm))
	mux.Handle("POST /accounts/new", private(s.handleSaveAccount))
	mux.Handle("GET /accounts/edit/{id}", private(s.handleAccountForm))
	mux.Handle("POST /accounts/edit/{id}", private(s.handleSaveAccount))
	mux.Handle("GET /accounts/delete/{id}", private(s.handleConfirmDeleteAccount))
	mux.Handle("POST /accounts/delete/{id}", private(s.handleDeleteAccount))

	mux.Handle("GET /categories", private(s.handleCategories))
	mux.Handle("GET /categories/new", private(s.handleCategoryForm))
	mux.Handle("POST /categories/new", private(s.handleSaveCategory))
	mux.Handle("GET /categories/edit/{id}", private(s.handleCategoryForm))
	mux.Handle("POST /categories/edit/{id}", private(s.handleSaveCategory))
	mux.Handle("GET /categories/delete/{id}", private(s.handleConfirmDeleteCategory))
	mux.Handle("POST /categories/delete/{id}", private(s.handleDeleteCategory))

	mux.Handle("GET /transactions", private(s.handleTransactions))
	mux.Handle("GET /transactions/new", private(s.handleTransactionForm))
	mux.Handle("POST /transactions/new", private(s.handleSaveTransaction))
	mux.Handle("GET /transactions/edit/{id}", private(s.handleTransactionForm))
	mux.Handle("POST /transactions/edit/{id}", private(s.handleSaveTransaction))
	mux.Handle("GET /transactions/delete/{id}", private(s.handleConfirmDeleteTransaction))
	mux.Handle("POST /transactions/delete/{id}", private(s.handleDeleteTransaction))
	mux.Handle("GET /transactions/export", private(s.handleExport))

	mux.Handle("GET /profile", private(s.handleProfile))
	mux.Handle("POST /profile", private(s.handleUpdateProfile))
	mux.Handle("GET /profile/delete", private(s.handleConfirmDeleteProfile))
	mux.Handle("POST /profile/delete", private(s.handleDeleteProfile))

	mux.Handle("GET /ui/category-options", private(s.handleCategoryOptions))

	var h http.Handler = mux
	h = s.sessions.Middleware(h)
	if s.limiter.Enabled() {
		h = s.limiter.Middleware(ratelimit.Config{}, s.detector.ClientIP)(h)
	}
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Handler(h)
	return h, nil
}

// service is the API as seen by this request: the credentialed client
// behind the session's partition of the shared store.
func (s *Server) service(w http.ResponseWriter, r *http.Request) api.Service {
	client := s.client.WithCredentials(s.sessions.Credentials(w))
	token := ""
	if sess := session.FromContext(r.Context()); sess != nil {
		token = sess.Token
	}
	if s.store == nil {
		return client
	}
	return s.store.For(client, token)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}
