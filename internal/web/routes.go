package web

import (
	"net/http"

	"github.com/gorilla/sessions"

	"webmail-api/internal/config"
)

// Router manages HTTP route registration
type Router struct {
	handler *Handler
	auth    *AuthMiddleware
}

// NewRouter creates a new router with all dependencies
func NewRouter(cfg *config.Config, svc *Services, store sessions.Store) *Router {
	return &Router{
		handler: NewHandler(cfg, svc, store),
		auth:    NewAuthMiddleware(store, cfg.Web.SessionName, svc.Guard, svc.Logger),
	}
}

// RegisterRoutes registers all HTTP routes on the provided mux
func (r *Router) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /health", r.handler.Health)
	mux.HandleFunc("POST /api/v1/login", r.handler.Login)
	mux.HandleFunc("POST /api/v1/logout", r.handler.Logout)

	// Routes that need the caller's decrypted credentials
	mux.HandleFunc("POST /api/v1/smtp/send", r.auth.RequireCredentials(r.handler.SendMessage))
	mux.HandleFunc("GET /api/v1/smtp/sent", r.auth.RequireCredentials(r.handler.SentMessages))
}
