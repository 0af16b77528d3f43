// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CredentialPolicy selects how the messaging session credentials are
// persisted between runs.
type CredentialPolicy string

const (
	// PolicyLocal keeps credentials in a directory under SessionsDir.
	PolicyLocal CredentialPolicy = "local"
	// PolicyRemote keeps credentials as blobs in the SQLite store.
	PolicyRemote CredentialPolicy = "remote"
	// PolicyEphemeral never persists credentials; every start re-pairs.
	PolicyEphemeral CredentialPolicy = "ephemeral"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	DBPath      string
	GatewayURL  string
	SessionsDir string

	// PhoneNumber selects the credential namespace so multiple accounts can
	// keep independent sessions on the same host.
	PhoneNumber      string
	CredentialPolicy CredentialPolicy

	SMTP SMTPConfig

	// DefaultRecipient is the deployment-level fallback email. When empty
	// and RequireConfiguredEmail is set, senders must run #CONFIG before
	// any relay happens.
	DefaultRecipient       string
	RequireConfiguredEmail bool

	// FetchTimeout bounds a single media download through the gateway.
	FetchTimeout time.Duration
}

// SMTPConfig holds mail submission settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns the host:port dial address for the SMTP server.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		DBPath:      getEnv("DB_PATH", "./data/zapbridge.db"),
		GatewayURL:  getEnv("GATEWAY_URL", "ws://127.0.0.1:3001/ws"),
		SessionsDir: getEnv("SESSIONS_DIR", "./sessions"),

		PhoneNumber:      getEnv("WHATSAPP_PHONE", getEnv("PHONE_NUMBER", "default")),
		CredentialPolicy: CredentialPolicy(strings.ToLower(getEnv("CREDENTIAL_POLICY", string(PolicyLocal)))),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("MAIL_FROM", "Bot WhatsApp <bot@localhost>"),
		},

		DefaultRecipient:       getEnv("DEFAULT_RECIPIENT", ""),
		RequireConfiguredEmail: getEnvBool("REQUIRE_CONFIGURED_EMAIL", false),

		FetchTimeout: getEnvDuration("MEDIA_FETCH_TIMEOUT", 60*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL cannot be empty")
	}
	switch c.CredentialPolicy {
	case PolicyLocal, PolicyRemote, PolicyEphemeral:
	default:
		return fmt.Errorf("CREDENTIAL_POLICY must be one of local, remote, ephemeral (got %q)", c.CredentialPolicy)
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST cannot be empty")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("SMTP_PORT must be a valid port (got %d)", c.SMTP.Port)
	}
	if !c.RequireConfiguredEmail && c.DefaultRecipient == "" {
		return fmt.Errorf("DEFAULT_RECIPIENT must be set unless REQUIRE_CONFIGURED_EMAIL is enabled")
	}
	// The two recipient postures are mutually exclusive: a default that
	// would never be used hides a misconfiguration.
	if c.RequireConfiguredEmail && c.DefaultRecipient != "" {
		return fmt.Errorf("DEFAULT_RECIPIENT must be empty when REQUIRE_CONFIGURED_EMAIL is enabled")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("MEDIA_FETCH_TIMEOUT must be > 0")
	}
	return nil
}

// CredentialNamespace returns the session namespace for this deployment's
// phone number, e.g. "whatsapp-bot-5511999999999".
func (c *Config) CredentialNamespace() string {
	return "whatsapp-bot-" + c.PhoneNumber
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" || os.Getenv("DOCKER_ENV") == "true" {
		return true
	}
	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
