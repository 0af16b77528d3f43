package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zapbridge/zapbridge/internal/config"
	"github.com/zapbridge/zapbridge/internal/store"
)

func TestExportLocalSession(t *testing.T) {
	cfg := &config.Config{
		SessionsDir:      t.TempDir(),
		PhoneNumber:      "5511999999999",
		CredentialPolicy: config.PolicyLocal,
	}

	dir := filepath.Join(cfg.SessionsDir, "whatsapp-bot-5511999999999")
	if err := os.MkdirAll(filepath.Join(dir, "Default"), 0755); err != nil {
		t.Fatalf("Failed to create credential dirs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "creds.json"), []byte("{}"), 0600); err != nil {
		t.Fatalf("Failed to write credential file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Default", "state.db"), []byte("state"), 0600); err != nil {
		t.Fatalf("Failed to write nested file: %v", err)
	}

	exp, err := ExportSession(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("ExportSession failed: %v", err)
	}

	if exp.Namespace != "whatsapp-bot-5511999999999" || exp.Policy != "local" {
		t.Errorf("Unexpected export identity: %+v", exp)
	}
	if string(exp.Files["creds.json"]) != "{}" {
		t.Errorf("Expected creds.json content, got %q", exp.Files["creds.json"])
	}
	if string(exp.Files[filepath.Join("Default", "state.db")]) != "state" {
		t.Errorf("Expected nested file content, got %v", exp.Files)
	}
	if exp.Blob != nil {
		t.Error("Expected no blob for local policy")
	}
}

func TestExportLocalSessionFailsWhenEmpty(t *testing.T) {
	cfg := &config.Config{
		SessionsDir:      t.TempDir(),
		PhoneNumber:      "5511999999999",
		CredentialPolicy: config.PolicyLocal,
	}

	if _, err := ExportSession(context.Background(), cfg, nil); err == nil {
		t.Error("Expected error for a session that was never persisted")
	}
}

func TestExportRemoteSession(t *testing.T) {
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	cfg := &config.Config{
		PhoneNumber:      "5511999999999",
		CredentialPolicy: config.PolicyRemote,
	}
	if err := repo.PutCredential(ctx, "whatsapp-bot-5511999999999", []byte("session-blob")); err != nil {
		t.Fatalf("PutCredential failed: %v", err)
	}

	exp, err := ExportSession(ctx, cfg, repo)
	if err != nil {
		t.Fatalf("ExportSession failed: %v", err)
	}

	if string(exp.Blob) != "session-blob" {
		t.Errorf("Expected stored blob, got %q", exp.Blob)
	}
	if exp.Files != nil {
		t.Error("Expected no file map for remote policy")
	}
}

func TestExportEphemeralSessionFails(t *testing.T) {
	cfg := &config.Config{
		PhoneNumber:      "5511999999999",
		CredentialPolicy: config.PolicyEphemeral,
	}

	if _, err := ExportSession(context.Background(), cfg, nil); err == nil {
		t.Error("Expected error for the ephemeral policy")
	}
}
