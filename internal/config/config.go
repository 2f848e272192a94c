// Package config loads the webmail API configuration from a JSON or YAML
// file, applying defaults first and environment overrides last.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Web         WebConfig         `json:"web" yaml:"web"`
	Credentials CredentialsConfig `json:"credentials" yaml:"credentials"`
	SMTP        SMTPConfig        `json:"smtp" yaml:"smtp"`
	IMAP        IMAPConfig        `json:"imap" yaml:"imap"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host          string `json:"host" yaml:"host"`
	Port          int    `json:"port" yaml:"port"`
	SessionSecret string `json:"session_secret" yaml:"session_secret"`
	SessionName   string `json:"session_name" yaml:"session_name"`
	SanitizeHTML  bool   `json:"sanitize_html" yaml:"sanitize_html"`
}

// CredentialsConfig holds the settings of the credentials guard
type CredentialsConfig struct {
	EncryptionPassword string   `json:"encryption_password" yaml:"encryption_password"`
	TrustedHosts       []string `json:"trusted_hosts" yaml:"trusted_hosts"`
}

// SMTPConfig holds outbound SMTPS configuration
type SMTPConfig struct {
	Port               int    `json:"port" yaml:"port"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	CAFile             string `json:"ca_file" yaml:"ca_file"`
}

// IMAPConfig holds login verification configuration
type IMAPConfig struct {
	VerifyLogin bool `json:"verify_login" yaml:"verify_login"`
	Port        int  `json:"port" yaml:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Load reads and parses the configuration file. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := &Config{}
	cfg.applyDefaults()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyEnvVars()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets the values used when the file leaves a field out
func (c *Config) applyDefaults() {
	c.Web.Host = "127.0.0.1"
	c.Web.Port = 8080
	c.Web.SessionName = "webmail_session"
	c.SMTP.Port = 465
	c.IMAP.Port = 993
	c.Database.Path = "data/webmail.db"
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with non-empty environment variables
func (c *Config) applyEnvVars() {
	if v := os.Getenv("ENCRYPTION_PASSWORD"); v != "" {
		c.Credentials.EncryptionPassword = v
	}
	if v := os.Getenv("TRUSTED_HOSTS"); v != "" {
		c.Credentials.TrustedHosts = splitList(v)
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.Web.SessionSecret = v
	}
	if v := os.Getenv("WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Web.Port = port
		}
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// validate checks the configuration for required fields
func (c *Config) validate() error {
	if c.Web.Port <= 0 {
		return fmt.Errorf("web.port must be positive")
	}
	if c.SMTP.Port <= 0 {
		return fmt.Errorf("smtp.port must be positive")
	}
	if c.IMAP.Port <= 0 {
		return fmt.Errorf("imap.port must be positive")
	}
	if c.Credentials.EncryptionPassword == "" {
		return fmt.Errorf("credentials.encryption_password is required")
	}
	if c.Web.SessionSecret == "" {
		return fmt.Errorf("web.session_secret is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// TrustedHostSet returns the allow-list of mail server hosts. An empty set
// means every host is allowed.
func (c *Config) TrustedHostSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Credentials.TrustedHosts))
	for _, h := range c.Credentials.TrustedHosts {
		if h = strings.TrimSpace(h); h != "" {
			set[h] = struct{}{}
		}
	}
	return set
}

// Address returns the web server address
func (c *WebConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
