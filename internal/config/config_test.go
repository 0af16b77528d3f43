package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEFAULT_RECIPIENT", "inbox@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Expected default port 3000, got %q", cfg.Port)
	}
	if cfg.CredentialPolicy != PolicyLocal {
		t.Errorf("Expected default policy local, got %q", cfg.CredentialPolicy)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("Expected default SMTP port 587, got %d", cfg.SMTP.Port)
	}
	if cfg.FetchTimeout != 60*time.Second {
		t.Errorf("Expected default fetch timeout 60s, got %v", cfg.FetchTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DEFAULT_RECIPIENT", "inbox@example.com")
	t.Setenv("CREDENTIAL_POLICY", "Remote")
	t.Setenv("WHATSAPP_PHONE", "5511999999999")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("MEDIA_FETCH_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %q", cfg.Port)
	}
	if cfg.CredentialPolicy != PolicyRemote {
		t.Errorf("Expected policy remote (case-insensitive), got %q", cfg.CredentialPolicy)
	}
	if cfg.SMTP.Port != 465 {
		t.Errorf("Expected SMTP port 465, got %d", cfg.SMTP.Port)
	}
	if cfg.FetchTimeout != 90*time.Second {
		t.Errorf("Expected fetch timeout 90s, got %v", cfg.FetchTimeout)
	}
	if got := cfg.CredentialNamespace(); got != "whatsapp-bot-5511999999999" {
		t.Errorf("Expected namespace whatsapp-bot-5511999999999, got %q", got)
	}
}

func TestValidateRejectsMissingDefaultRecipient(t *testing.T) {
	t.Setenv("DEFAULT_RECIPIENT", "")
	t.Setenv("REQUIRE_CONFIGURED_EMAIL", "false")

	if _, err := Load(); err == nil {
		t.Error("Expected error without DEFAULT_RECIPIENT")
	}
}

func TestValidateAllowsMissingDefaultWhenConfiguredEmailRequired(t *testing.T) {
	t.Setenv("REQUIRE_CONFIGURED_EMAIL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultRecipient != "" {
		t.Errorf("Expected empty default recipient, got %q", cfg.DefaultRecipient)
	}
}

func TestValidateRejectsDefaultRecipientWithRequireFlag(t *testing.T) {
	t.Setenv("DEFAULT_RECIPIENT", "fallback@example.com")
	t.Setenv("REQUIRE_CONFIGURED_EMAIL", "true")

	if _, err := Load(); err == nil {
		t.Error("Expected error for DEFAULT_RECIPIENT combined with REQUIRE_CONFIGURED_EMAIL")
	}
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("DEFAULT_RECIPIENT", "inbox@example.com")
	t.Setenv("CREDENTIAL_POLICY", "s3")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown credential policy")
	}
}

func TestValidateRejectsBadSMTPPort(t *testing.T) {
	cfg := &Config{
		Port:             "3000",
		DBPath:           "./data/test.db",
		GatewayURL:       "ws://localhost:3001/ws",
		CredentialPolicy: PolicyLocal,
		SMTP:             SMTPConfig{Host: "localhost", Port: 70000},
		DefaultRecipient: "inbox@example.com",
		FetchTimeout:     time.Minute,
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for out-of-range SMTP port")
	}
}

func TestSMTPAddr(t *testing.T) {
	s := SMTPConfig{Host: "smtp.example.com", Port: 465}
	if got := s.Addr(); got != "smtp.example.com:465" {
		t.Errorf("Expected smtp.example.com:465, got %q", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !getEnvBool("TEST_BOOL", false) {
		t.Error("Expected yes to parse as true")
	}

	t.Setenv("TEST_BOOL", "off")
	if getEnvBool("TEST_BOOL", true) {
		t.Error("Expected off to parse as false")
	}

	t.Setenv("TEST_BOOL", "maybe")
	if !getEnvBool("TEST_BOOL", true) {
		t.Error("Expected unparseable value to fall back")
	}
}
