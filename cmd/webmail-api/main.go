package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webmail-api/internal/config"
	"webmail-api/internal/credentials"
	"webmail-api/internal/database"
	"webmail-api/internal/imap"
	"webmail-api/internal/smtp"
	"webmail-api/internal/tlsutil"
	"webmail-api/internal/web"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file (.json, .yaml or .yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Logging.Level)
	slog.Info("configuration loaded", "path", *configPath)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database initialized", "path", cfg.Database.Path)

	tlsConfig, err := tlsutil.ClientConfig(cfg.SMTP.CAFile, cfg.SMTP.InsecureSkipVerify)
	if err != nil {
		slog.Error("failed to setup TLS", "error", err)
		os.Exit(1)
	}
	if cfg.SMTP.InsecureSkipVerify {
		slog.Warn("mail server certificates are not verified")
	}

	logger := slog.Default()
	guard := credentials.NewGuard(cfg.Credentials.EncryptionPassword, cfg.Credentials.TrustedHosts)
	if len(cfg.TrustedHostSet()) == 0 {
		slog.Warn("no trusted hosts configured, any mail server is accepted")
	}

	webServer := web.NewServer(cfg, &web.Services{
		Guard:    guard,
		Verifier: imap.NewVerifier(tlsConfig, cfg.IMAP.Port, logger),
		Senders:  newSenderFactory(cfg, tlsConfig, logger),
		SentLog:  database.NewSentRepository(db),
		Logger:   logger,
	})

	go startWebServer(webServer)

	slog.Info("webmail-api started",
		"addr", cfg.Web.Address(),
		"trusted_hosts", len(cfg.TrustedHostSet()),
		"verify_login", cfg.IMAP.VerifyLogin,
		"sanitize_html", cfg.Web.SanitizeHTML,
	)

	waitForShutdown(webServer)
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// newSenderFactory returns a factory creating one Dispatcher per request
func newSenderFactory(cfg *config.Config, tlsConfig *tls.Config, logger *slog.Logger) web.SenderFactory {
	opts := smtp.Options{
		Port:      cfg.SMTP.Port,
		TLSConfig: tlsConfig,
		Logger:    logger,
	}
	return func() smtp.Sender {
		return smtp.NewDispatcher(opts)
	}
}

// startWebServer starts the HTTP server
func startWebServer(server *web.Server) {
	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("web server error", "error", err)
	}
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func waitForShutdown(webServer *web.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("received signal, initiating shutdown", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := webServer.Shutdown(ctx); err != nil {
		slog.Error("web server shutdown error", "error", err)
	}

	slog.Info("webmail-api stopped")
}
