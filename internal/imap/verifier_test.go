package imap

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"

	"webmail-api/internal/credentials"
	"webmail-api/internal/models"
	"webmail-api/internal/tlsutil"
)

// startTestServer runs go-imap's in-memory backend over implicit TLS. The
// backend knows a single account, username/password.
func startTestServer(t *testing.T) (int, *tls.Config) {
	t.Helper()

	cert, certPEM, err := tlsutil.GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("failed to generate certificate: %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsutil.ServerConfig(cert))
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	go s.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { s.Close() })

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(certPEM)

	return ln.Addr().(*net.TCPAddr).Port, &tls.Config{RootCAs: pool}
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	port, tlsConfig := startTestServer(t)

	tests := []struct {
		name       string
		creds      *models.Credentials
		wantReason credentials.Reason
	}{
		{
			name:  "valid login",
			creds: &models.Credentials{ServerHost: "127.0.0.1", User: "username", Password: "password"},
		},
		{
			name:       "wrong password",
			creds:      &models.Credentials{ServerHost: "127.0.0.1", User: "username", Password: "nope"},
			wantReason: credentials.ReasonInvalidLogin,
		},
		{
			name:       "unknown user",
			creds:      &models.Credentials{ServerHost: "127.0.0.1", User: "mallory", Password: "password"},
			wantReason: credentials.ReasonInvalidLogin,
		},
	}

	v := NewVerifier(tlsConfig, port, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Verify(tt.creds)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("Verify: %v", err)
				}
				return
			}
			if got := credentials.ReasonOf(err); got != tt.wantReason {
				t.Errorf("Verify: got reason %q (err %v), want %q", got, err, tt.wantReason)
			}
		})
	}
}

func TestVerifier_CredentialsPortOverridesDefault(t *testing.T) {
	t.Parallel()

	port, tlsConfig := startTestServer(t)

	v := NewVerifier(tlsConfig, 1, nil)
	creds := &models.Credentials{ServerHost: "127.0.0.1", ImapPort: port, User: "username", Password: "password"}
	if err := v.Verify(creds); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifier_ConnectionFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	v := NewVerifier(nil, port, nil)
	err = v.Verify(&models.Credentials{ServerHost: "127.0.0.1", User: "username", Password: "password"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if credentials.IsAuthenticationError(err) {
		t.Errorf("connection failure reported as authentication error: %v", err)
	}
}

func TestNewVerifier_DefaultPort(t *testing.T) {
	t.Parallel()

	if v := NewVerifier(nil, 0, nil); v.port != DefaultPort {
		t.Errorf("port: got %d, want %d", v.port, DefaultPort)
	}
}
