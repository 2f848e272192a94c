package smtp

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"webmail-api/internal/tlsutil"
)

// receivedMail is a message accepted by the test server
type receivedMail struct {
	AuthUser   string
	From       string
	Recipients []string
	Data       []byte
}

// testBackend implements smtp.Backend and records everything it accepts
type testBackend struct {
	username string
	password string
	reject   string

	mu       sync.Mutex
	sessions int
	mails    []receivedMail
}

func newTestBackend(username, password string) *testBackend {
	return &testBackend{username: username, password: password}
}

// NewSession implements smtp.Backend.NewSession
func (b *testBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	b.mu.Lock()
	b.sessions++
	b.mu.Unlock()
	return &testSession{backend: b}, nil
}

func (b *testBackend) sessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions
}

func (b *testBackend) received() []receivedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]receivedMail(nil), b.mails...)
}

// testSession implements smtp.Session with PLAIN authentication
type testSession struct {
	backend       *testBackend
	authenticated bool
	authUser      string
	from          string
	recipients    []string
}

// AuthMechanisms returns the list of supported authentication mechanisms
func (s *testSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

// Auth handles authentication requests
func (s *testSession) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(s.authenticatePlain), nil
}

func (s *testSession) authenticatePlain(_, username, password string) error {
	if username == s.backend.username && password == s.backend.password {
		s.authenticated = true
		s.authUser = username
		return nil
	}
	return smtp.ErrAuthFailed
}

// Mail handles the MAIL FROM command
func (s *testSession) Mail(from string, _ *smtp.MailOptions) error {
	if !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

// Rcpt handles the RCPT TO command
func (s *testSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if !s.authenticated {
		return smtp.ErrAuthRequired
	}
	if to == s.backend.reject {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Mailbox unavailable",
		}
	}
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the DATA command and stores the message
func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	s.backend.mails = append(s.backend.mails, receivedMail{
		AuthUser:   s.authUser,
		From:       s.from,
		Recipients: append([]string(nil), s.recipients...),
		Data:       data,
	})
	s.backend.mu.Unlock()
	return nil
}

// Reset resets the session state for a new message
func (s *testSession) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout handles the QUIT command
func (s *testSession) Logout() error {
	return nil
}

// testServer is an implicit TLS SMTP server on a random local port
type testServer struct {
	Host    string
	Port    int
	RootCAs *x509.CertPool
}

func startTestServer(t *testing.T, backend *testBackend) *testServer {
	t.Helper()

	cert, certPEM, err := tlsutil.GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("failed to generate certificate: %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsutil.ServerConfig(cert))
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := smtp.NewServer(backend)
	s.Domain = "localhost"
	s.AllowInsecureAuth = true

	go s.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { s.Close() })

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(certPEM)

	return &testServer{
		Host:    "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		RootCAs: pool,
	}
}

// unusedPort returns a local port nothing is listening on
func unusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}
