package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"webmail-api/internal/credentials"
	"webmail-api/internal/models"
)

// Request headers carrying the encrypted credentials token
const (
	HeaderEncrypted = "X-Credentials-Encrypted"
	HeaderSalt      = "X-Credentials-Salt"
	HeaderRequestID = "X-Request-ID"
)

// Session keys holding the encrypted credentials token
const (
	sessionEncrypted = "encrypted"
	sessionSalt      = "salt"
)

type contextKey int

const (
	credentialsKey contextKey = iota
	requestIDKey
)

// AuthMiddleware decrypts the caller's credentials for protected routes
type AuthMiddleware struct {
	store       sessions.Store
	sessionName string
	guard       *credentials.Guard
	log         *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(store sessions.Store, sessionName string, guard *credentials.Guard, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		store:       store,
		sessionName: sessionName,
		guard:       guard,
		log:         logger,
	}
}

// RequireCredentials wraps a handler so it only runs with decrypted
// credentials available through CredentialsFrom.
func (m *AuthMiddleware) RequireCredentials(next http.HandlerFunc) http.HandlerFunc {
	wrapper := &authWrapper{
		middleware: m,
		next:       next,
	}
	return wrapper.ServeHTTP
}

// authWrapper is a named struct that wraps authentication logic
type authWrapper struct {
	middleware *AuthMiddleware
	next       http.HandlerFunc
}

// ServeHTTP implements http.HandlerFunc for the auth wrapper
func (w *authWrapper) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	encrypted, salt := w.middleware.token(r)

	creds, err := w.middleware.guard.Decrypt(encrypted, salt)
	if err == nil {
		err = w.middleware.guard.CheckHost(creds)
	}
	if err != nil {
		w.middleware.log.Info("rejected credentials",
			"request_id", RequestID(r.Context()),
			"reason", credentials.ReasonOf(err),
		)
		writeError(rw, err)
		return
	}

	ctx := context.WithValue(r.Context(), credentialsKey, creds)
	w.next(rw, r.WithContext(ctx))
}

// token returns the encrypted credentials from the request headers,
// falling back to the session cookie
func (m *AuthMiddleware) token(r *http.Request) (string, string) {
	encrypted := r.Header.Get(HeaderEncrypted)
	salt := r.Header.Get(HeaderSalt)
	if encrypted != "" || salt != "" {
		return encrypted, salt
	}

	session, err := m.store.Get(r, m.sessionName)
	if err != nil {
		return "", ""
	}
	encrypted, _ = session.Values[sessionEncrypted].(string)
	salt, _ = session.Values[sessionSalt].(string)
	return encrypted, salt
}

// CredentialsFrom returns the credentials decrypted by RequireCredentials
func CredentialsFrom(ctx context.Context) (*models.Credentials, bool) {
	c, ok := ctx.Value(credentialsKey).(*models.Credentials)
	return c, ok
}

// RequestID returns the identifier assigned to the current request
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestLogger assigns a request ID and writes one access log line per
// request
type requestLogger struct {
	next http.Handler
	log  *slog.Logger
}

// withRequestLogging wraps next with request ID assignment and access logging
func withRequestLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return &requestLogger{next: next, log: logger}
}

// ServeHTTP implements http.Handler for the request logger
func (l *requestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.New().String()
	}
	w.Header().Set(HeaderRequestID, id)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()

	l.next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

	l.log.Info("request",
		"request_id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
		"remote", r.RemoteAddr,
	)
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
