// ABOUTME: HTTP API for the artifact pipeline: opening artifacts, viewer state, and preview status.
// ABOUTME: Routes are served by chi; generation requests are rate limited.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/2389-research/vellum/studio"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Server exposes a studio over HTTP.
type Server struct {
	studio  *studio.Studio
	router  chi.Router
	addr    string
	limiter *rate.Limiter
	logger  *log.Logger
}

// ServerConfig holds the configuration for the HTTP API.
type ServerConfig struct {
	Addr          string  // listen address (default: "127.0.0.1:2389")
	GenerateRPS   float64 // prompt generations per second; 0 disables the limit
	GenerateBurst int
	Logger        *log.Logger
}

// NewServer creates a Server for st.
func NewServer(st *studio.Studio, cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:2389"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	limit := rate.Inf
	if cfg.GenerateRPS > 0 {
		limit = rate.Limit(cfg.GenerateRPS)
	}
	burst := cfg.GenerateBurst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		studio:  st,
		addr:    cfg.Addr,
		limiter: rate.NewLimiter(limit, burst),
		logger:  cfg.Logger,
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("component=web action=listen addr=%s", s.addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/artifacts", func(r chi.Router) {
		r.Get("/", s.handleArtifactList)
		r.Post("/", s.handleArtifactCreate)
		r.Post("/{artifactID}/open", s.handleArtifactReopen)
	})

	r.Route("/artifact", func(r chi.Router) {
		r.Get("/", s.handleViewer)
		r.Delete("/", s.handleClose)
		r.Post("/select", s.handleSelect)
		r.Post("/folders/toggle", s.handleToggleFolder)
		r.Post("/next", s.handleNext)
		r.Post("/prev", s.handlePrev)
		r.Post("/tab", s.handleTab)
		r.Post("/edit/begin", s.handleBeginEdit)
		r.Put("/edit/draft", s.handleDraft)
		r.Post("/edit/commit", s.handleCommit)
		r.Post("/edit/cancel", s.handleCancelEdit)
	})

	r.Route("/preview", func(r chi.Router) {
		r.Get("/", s.handlePreviewStatus)
		r.Post("/retry", s.handlePreviewRetry)
		r.Get("/events", s.handlePreviewEvents)
		r.Get("/static", s.handleStaticPreview)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
