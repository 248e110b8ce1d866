// Package web exposes the JSON API the browser client drives: session
// management, CSV validation, dispatch runs and report downloads.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zapsend/zapsend/internal/config"
	"github.com/zapsend/zapsend/internal/dispatch"
	"github.com/zapsend/zapsend/internal/history"
	"github.com/zapsend/zapsend/internal/mail"
	"github.com/zapsend/zapsend/internal/metrics"
	"github.com/zapsend/zapsend/internal/report"
	"github.com/zapsend/zapsend/internal/session"
	"github.com/zapsend/zapsend/internal/suggest"
	"github.com/zapsend/zapsend/internal/template"
)

// SenderFactory opens a mail sender for the given credentials. Swapped
// out in tests.
type SenderFactory func(email, password string) (mail.Sender, error)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger
	startTime  time.Time
	version    string

	sessions   *session.Manager
	dispatcher *dispatch.Dispatcher
	runs       *dispatch.Registry
	renderer   *template.Renderer
	reports    *report.Store
	campaigns  *history.Repository
	suggester  suggest.Suggester
	newSender  SenderFactory
	metrics    *metrics.Metrics

	activeMu   sync.Mutex
	activeRuns map[string]string // sender -> run ID
}

// Options carries the server's collaborators.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Reports   *report.Store
	Campaigns *history.Repository
	Suggester suggest.Suggester
	Metrics   *metrics.Metrics
	Version   string

	// NewSender defaults to an SMTP sender built from the config.
	NewSender SenderFactory
}

// NewServer creates the API server and wires its routes.
func NewServer(opts Options) *Server {
	renderer := template.NewRenderer()

	newSender := opts.NewSender
	if newSender == nil {
		smtpCfg := opts.Config.SMTP
		newSender = func(email, password string) (mail.Sender, error) {
			return mail.NewSMTPSender(email, password, smtpCfg)
		}
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		router:     chi.NewRouter(),
		cfg:        opts.Config,
		logger:     opts.Logger,
		startTime:  time.Now(),
		version:    version,
		sessions:   session.NewManager(opts.Config.Session, opts.Config.Server.TLS.Enabled),
		dispatcher: dispatch.New(renderer, opts.Config.Dispatch, opts.Logger),
		runs:       dispatch.NewRegistry(),
		renderer:   renderer,
		reports:    opts.Reports,
		campaigns:  opts.Campaigns,
		suggester:  opts.Suggester,
		newSender:  newSender,
		metrics:    opts.Metrics,
		activeRuns: make(map[string]string),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path,
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)

		// Everything below needs an authenticated sender.
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Post("/suggestions", s.handleSuggestions)
			r.Post("/validate", s.handleValidate)
			r.Post("/test-send", s.handleTestSend)
			r.Post("/dispatch", s.handleDispatch)
			r.Get("/runs/{id}", s.handleRun)
			r.Get("/runs/{id}/report.txt", s.handleRunReportText)
			r.Get("/runs/{id}/report.csv", s.handleRunReportCSV)
			r.Get("/report", s.handleReport)
			r.Get("/history", s.handleHistory)
		})
	})
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.cfg.Server.ListenAddr)
	if s.cfg.Server.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		metrics.ObserveAPIRequest(r.Method, r.URL.Path,
			strconv.Itoa(ww.Status()), time.Since(start).Seconds())

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

type contextKey string

const credentialsKey contextKey = "credentials"

// sessionMiddleware rejects requests without a valid session and puts
// the credentials on the request context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, err := s.sessions.Get(r)
		if err != nil {
			s.sendError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		ctx := context.WithValue(r.Context(), credentialsKey, creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func credentialsFrom(r *http.Request) *session.Credentials {
	creds, _ := r.Context().Value(credentialsKey).(*session.Credentials)
	return creds
}
