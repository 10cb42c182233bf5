// Package http serves the expense tracker pages, chart and exports.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/session"
	appweb "expenses/web"
)

type Options struct {
	Addr          string
	Sessions      *session.Manager
	Currency      core.Currency
	PostRateLimit int
	Logger        *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	sessions  *session.Manager
	limiter   *ratelimit.Limiter
	currency  core.Currency
	logger    *log.Logger

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the routes.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		sessions: opts.Sessions,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.PostRateLimit}),
		currency: opts.Currency,
		logger:   logger,
	}

	t, err := template.New("").Funcs(template.FuncMap{
		"money":      s.currency.Format,
		"amount":     core.PlainAmount,
		"pathEscape": url.PathEscape,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(trace.NewMiddleware(s.logger, security.ClientIP).Handler)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	static, _ := fs.Sub(appweb.StaticFS, "static")
	r.With(security.StaticAssets(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.limiter.Middleware(security.ClientIP, http.MethodPost))
		r.Use(s.sessions.Middleware)

		r.Get("/", s.handleIndex)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requireLogin)

			r.Post("/expenses", s.handleSubmit)
			r.Post("/expenses/cancel", s.handleCancelEdit)
			r.Post("/expenses/{id}/edit", s.handleBeginEdit)
			r.Post("/expenses/{id}/delete", s.handleDelete)

			r.Get("/chart.svg", s.handleChart)
			r.Get("/export.xlsx", s.handleExportXLSX)
			r.Get("/export.txt", s.handleExportText)
		})
	})
	return r
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	templates := "ok"
	if s.templates == nil || s.templates.Lookup("index.html") == nil {
		templates = "missing"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": map[string]any{
			"templates": templates,
			"sessions":  s.sessions.Store().Size(),
		},
	})
}
