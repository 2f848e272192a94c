// Package smtp builds and delivers the messages composed by webmail users
// through their own mail server over SMTPS.
package smtp

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"webmail-api/internal/models"
)

// DefaultPort is the implicit TLS submission port
const DefaultPort = 465

// DialFunc opens an SMTP client connection over implicit TLS
type DialFunc func(addr string, tlsConfig *tls.Config) (*smtp.Client, error)

// Sender sends messages on behalf of a single request
type Sender interface {
	SendMessage(c *models.Credentials, m *models.Message) error
	Close()
}

// Options configures a Dispatcher
type Options struct {
	// Port is the SMTPS port of the user's server. Defaults to 465.
	Port int

	// TLSConfig is cloned for every dispatcher. ServerName is filled in
	// from the server host when empty.
	TLSConfig *tls.Config

	Logger *slog.Logger
	Now    func() time.Time
	Dial   DialFunc
}

// Dispatcher sends messages for one inbound request. The transport is
// opened on first use, reused for later sends and released by Close.
// A Dispatcher must not be shared between goroutines.
type Dispatcher struct {
	opts Options
	log  *slog.Logger

	tlsConfig *tls.Config
	client    *smtp.Client
	closed    bool
}

// NewDispatcher creates a request-scoped Dispatcher
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Dial == nil {
		opts.Dial = smtp.DialTLS
	}
	return &Dispatcher{
		opts: opts,
		log:  opts.Logger,
	}
}

// SendMessage builds m and sends it to every recipient through the server
// named in c.
func (d *Dispatcher) SendMessage(c *models.Credentials, m *models.Message) error {
	env, err := BuildMessage(c, m, d.opts.Now())
	if err != nil {
		return &DispatchError{Err: err}
	}
	if len(env.Recipients()) == 0 {
		return &DispatchError{Err: fmt.Errorf("no recipient addresses")}
	}

	client, err := d.transport(c)
	if err != nil {
		return &DispatchError{Err: err}
	}

	if err := client.SendMail(env.From, env.Recipients(), bytes.NewReader(env.Raw)); err != nil {
		return &DispatchError{Err: fmt.Errorf("failed to send mail: %w", err)}
	}

	d.log.Debug("message sent",
		"from", env.From,
		"recipients", len(env.Recipients()),
		"size", len(env.Raw),
	)
	return nil
}

// Close releases the cached transport. Errors are logged, never returned.
func (d *Dispatcher) Close() {
	if d.closed {
		return
	}
	d.closed = true

	if d.client == nil {
		return
	}
	if err := d.client.Quit(); err != nil {
		d.log.Error("error closing SMTP transport", "error", err)
		if err := d.client.Close(); err != nil {
			d.log.Debug("error closing SMTP connection", "error", err)
		}
	}
	d.client = nil
	d.log.Debug("SMTP transport closed")
}

// session returns the TLS configuration shared by every connection of
// this dispatcher
func (d *Dispatcher) session() *tls.Config {
	if d.tlsConfig == nil {
		if d.opts.TLSConfig != nil {
			d.tlsConfig = d.opts.TLSConfig.Clone()
		} else {
			d.tlsConfig = &tls.Config{}
		}
		if d.tlsConfig.MinVersion == 0 {
			d.tlsConfig.MinVersion = tls.VersionTLS12
		}
	}
	return d.tlsConfig
}

// transport returns the authenticated client, connecting on first use
func (d *Dispatcher) transport(c *models.Credentials) (*smtp.Client, error) {
	if d.client != nil {
		return d.client, nil
	}
	if d.closed {
		return nil, fmt.Errorf("dispatcher is closed")
	}

	addr := net.JoinHostPort(c.ServerHost, strconv.Itoa(d.opts.Port))
	client, err := d.opts.Dial(addr, d.session())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := client.Auth(sasl.NewPlainClient("", c.User, c.Password)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to authenticate as %s: %w", c.User, err)
	}

	d.client = client
	d.log.Debug("opened new SMTP transport", "addr", addr, "user", c.User)
	return client, nil
}
