// Package imap checks mail account credentials against the user's IMAP
// server before a session token is handed out.
package imap

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/emersion/go-imap/client"

	"webmail-api/internal/credentials"
	"webmail-api/internal/models"
)

// DefaultPort is the implicit TLS IMAP port
const DefaultPort = 993

// Verifier logs in to the IMAP server named by a set of credentials
type Verifier struct {
	tlsConfig *tls.Config
	port      int
	log       *slog.Logger
}

// NewVerifier creates a Verifier. port is used for credentials that do not
// carry their own IMAP port; zero means DefaultPort.
func NewVerifier(tlsConfig *tls.Config, port int, logger *slog.Logger) *Verifier {
	if port == 0 {
		port = DefaultPort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{tlsConfig: tlsConfig, port: port, log: logger}
}

// Verify connects, logs in and logs out again. A rejected login is
// reported as a credentials.AuthenticationError.
func (v *Verifier) Verify(c *models.Credentials) error {
	port := c.ImapPort
	if port == 0 {
		port = v.port
	}
	addr := net.JoinHostPort(c.ServerHost, strconv.Itoa(port))

	var cfg *tls.Config
	if v.tlsConfig != nil {
		cfg = v.tlsConfig.Clone()
	}

	conn, err := client.DialTLS(addr, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer func() {
		if err := conn.Logout(); err != nil {
			v.log.Debug("error logging out of IMAP server", "addr", addr, "error", err)
		}
	}()

	if err := conn.Login(c.User, c.Password); err != nil {
		v.log.Info("IMAP login rejected", "addr", addr, "user", c.User)
		return credentials.NewAuthenticationError(credentials.ReasonInvalidLogin, "login rejected by mail server", err)
	}

	v.log.Debug("IMAP login verified", "addr", addr, "user", c.User)
	return nil
}
