// Package web exposes the webmail API over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"webmail-api/internal/config"
)

// Server wraps the HTTP server
type Server struct {
	server *http.Server
	cfg    *config.Config
	log    *slog.Logger
}

// NewServer creates and configures a new HTTP server
func NewServer(cfg *config.Config, svc *Services) *Server {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}

	store := sessions.NewCookieStore([]byte(cfg.Web.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400, // 24 hours
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
	}

	mux := http.NewServeMux()
	NewRouter(cfg, svc, store).RegisterRoutes(mux)

	server := &http.Server{
		Addr:         cfg.Web.Address(),
		Handler:      withRequestLogging(mux, svc.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		cfg:    cfg,
		log:    svc.Logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("starting web server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Address returns the server address
func (s *Server) Address() string {
	return s.server.Addr
}
