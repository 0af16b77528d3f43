// clearauth wipes the persisted messaging session so the next start of the
// bridge requires a fresh pairing. Use it when the stored credentials are
// corrupted and the bridge keeps looping on pairing.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/zapbridge/zapbridge/internal/config"
	"github.com/zapbridge/zapbridge/internal/session"
	"github.com/zapbridge/zapbridge/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var repo store.Repository
	if cfg.CredentialPolicy == config.PolicyRemote {
		sqlite, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = sqlite.Close() }()
		repo = sqlite
	}

	creds, err := session.NewCredentialStore(cfg, repo)
	if err != nil {
		slog.Error("Failed to initialize credential store", "error", err)
		os.Exit(1)
	}

	if !creds.Exists() {
		slog.Info("No persisted session found, nothing to clear",
			"namespace", creds.Namespace())
		return
	}

	if err := creds.Erase(); err != nil {
		slog.Error("Failed to clear session", "namespace", creds.Namespace(), "error", err)
		os.Exit(1)
	}

	slog.Info("Session cleared, restart the bridge to pair again",
		"namespace", creds.Namespace())
}
