package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/microcosm-cc/bluemonday"

	"webmail-api/internal/config"
	"webmail-api/internal/credentials"
	"webmail-api/internal/models"
	"webmail-api/internal/smtp"
)

const defaultSentLimit = 50

// LoginVerifier checks plaintext credentials against the mail server
type LoginVerifier interface {
	Verify(c *models.Credentials) error
}

// SenderFactory creates the request-scoped sender used by one send request
type SenderFactory func() smtp.Sender

// SentLog records and lists dispatched messages
type SentLog interface {
	Create(msg *models.SentMessage) error
	ListBySender(sender string, limit int) ([]*models.SentMessage, error)
}

// Services groups the collaborators the HTTP handlers depend on.
// Verifier and SentLog are optional.
type Services struct {
	Guard    *credentials.Guard
	Verifier LoginVerifier
	Senders  SenderFactory
	SentLog  SentLog
	Logger   *slog.Logger
}

// Handler contains all HTTP handlers of the API
type Handler struct {
	cfg       *config.Config
	svc       *Services
	store     sessions.Store
	sanitizer *bluemonday.Policy
	log       *slog.Logger
}

// NewHandler creates a new Handler with all dependencies
func NewHandler(cfg *config.Config, svc *Services, store sessions.Store) *Handler {
	h := &Handler{
		cfg:   cfg,
		svc:   svc,
		store: store,
		log:   svc.Logger,
	}
	if cfg.Web.SanitizeHTML {
		h.sanitizer = NewSanitizer()
	}
	return h
}

// requestError is a client error reported as 400 Bad Request
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// tokenResponse is the client-held form of the credentials
type tokenResponse struct {
	Encrypted string `json:"encrypted"`
	Salt      string `json:"salt"`
}

// Login verifies the submitted account and returns it encrypted
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, err)
		return
	}
	if creds.ServerHost == "" || creds.User == "" || creds.Password == "" {
		writeError(w, badRequest("serverHost, user and password are required"))
		return
	}

	if err := h.svc.Guard.CheckHost(&creds); err != nil {
		h.log.Info("login rejected", "request_id", RequestID(r.Context()), "host", creds.ServerHost, "error", err)
		writeError(w, err)
		return
	}

	if h.cfg.IMAP.VerifyLogin && h.svc.Verifier != nil {
		if err := h.svc.Verifier.Verify(&creds); err != nil {
			h.log.Info("login verification failed", "request_id", RequestID(r.Context()), "user", creds.User, "error", err)
			writeError(w, err)
			return
		}
	}

	token, err := h.svc.Guard.Encrypt(&creds)
	if err != nil {
		h.log.Error("failed to encrypt credentials", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, err)
		return
	}

	// A stale or foreign cookie yields a fresh session alongside the error
	session, err := h.store.Get(r, h.cfg.Web.SessionName)
	if err != nil {
		h.log.Debug("discarding unreadable session", "request_id", RequestID(r.Context()), "error", err)
	}
	session.Values[sessionEncrypted] = token.Encrypted
	session.Values[sessionSalt] = token.Salt
	if err := session.Save(r, w); err != nil {
		h.log.Error("failed to save session", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, err)
		return
	}

	h.log.Info("user logged in", "request_id", RequestID(r.Context()), "user", creds.User, "host", creds.ServerHost)
	writeJSON(w, http.StatusOK, tokenResponse{Encrypted: token.Encrypted, Salt: token.Salt})
}

// Logout destroys the session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Get(r, h.cfg.Web.SessionName)
	if err == nil {
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			h.log.Error("failed to clear session", "request_id", RequestID(r.Context()), "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage dispatches the posted message with the caller's credentials
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	creds, ok := CredentialsFrom(r.Context())
	if !ok {
		writeError(w, credentials.NewAuthenticationError(credentials.ReasonMissingCredentials, "missing encrypted credentials", nil))
		return
	}

	var msg models.Message
	if err := decodeJSON(r, &msg); err != nil {
		writeError(w, err)
		return
	}
	if err := normalizeRecipients(&msg); err != nil {
		writeError(w, err)
		return
	}
	if h.sanitizer != nil {
		msg.Content = h.sanitizer.Sanitize(msg.Content)
	}

	sender := h.svc.Senders()
	defer sender.Close()

	err := sender.SendMessage(creds, &msg)
	h.record(r, creds, &msg, err)
	if err != nil {
		h.log.Warn("failed to send message", "request_id", RequestID(r.Context()), "user", creds.User, "error", err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// record adds the outcome of a send to the sent log. Failures to record
// are logged only.
func (h *Handler) record(r *http.Request, creds *models.Credentials, msg *models.Message, sendErr error) {
	if h.svc.SentLog == nil {
		return
	}

	var recipients []string
	for _, rcpt := range msg.Recipients {
		recipients = append(recipients, rcpt.Address)
	}
	entry := &models.SentMessage{
		Sender:     smtp.SenderAddress(creds),
		Recipients: recipients,
		Subject:    msg.Subject,
		SizeBytes:  int64(len(msg.Content)),
		ServerHost: creds.ServerHost,
		Status:     models.StatusSent,
	}
	if sendErr != nil {
		entry.Status = models.StatusFailed
	}

	if err := h.svc.SentLog.Create(entry); err != nil {
		h.log.Error("failed to record sent message", "request_id", RequestID(r.Context()), "error", err)
	}
}

// sentResponse lists sent log entries
type sentResponse struct {
	Messages []*models.SentMessage `json:"messages"`
	Count    int                   `json:"count"`
}

// SentMessages lists the caller's most recent sent log entries
func (h *Handler) SentMessages(w http.ResponseWriter, r *http.Request) {
	creds, ok := CredentialsFrom(r.Context())
	if !ok {
		writeError(w, credentials.NewAuthenticationError(credentials.ReasonMissingCredentials, "missing encrypted credentials", nil))
		return
	}

	limit := defaultSentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, badRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	messages := []*models.SentMessage{}
	if h.svc.SentLog != nil {
		list, err := h.svc.SentLog.ListBySender(smtp.SenderAddress(creds), limit)
		if err != nil {
			h.log.Error("failed to list sent messages", "request_id", RequestID(r.Context()), "error", err)
			writeError(w, err)
			return
		}
		if list != nil {
			messages = list
		}
	}

	writeJSON(w, http.StatusOK, sentResponse{Messages: messages, Count: len(messages)})
}

// Health reports that the process is serving
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// normalizeRecipients canonicalizes recipient types and rejects messages
// nobody would receive
func normalizeRecipients(msg *models.Message) error {
	if len(msg.Recipients) == 0 {
		return badRequest("at least one recipient is required")
	}
	for i, rcpt := range msg.Recipients {
		if strings.TrimSpace(rcpt.Address) == "" {
			return badRequest("recipient %d has no address", i)
		}
		t, err := models.ParseRecipientType(string(rcpt.Type))
		if err != nil {
			return badRequest("recipient %d: %v", i, err)
		}
		msg.Recipients[i].Address = strings.TrimSpace(rcpt.Address)
		msg.Recipients[i].Type = t
	}
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError translates err into a status code and a JSON error body
func writeError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": reqErr.msg})
	case credentials.IsAuthenticationError(err):
		var authErr *credentials.AuthenticationError
		errors.As(err, &authErr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":  authErr.Message,
			"reason": string(authErr.Reason),
		})
	case smtp.IsDispatchError(err):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
