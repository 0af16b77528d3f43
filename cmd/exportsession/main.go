// exportsession dumps the persisted messaging session as a portable JSON
// document, so a linked account can be moved between hosts or credential
// policies without pairing again. Writes to stdout, or to EXPORT_PATH
// when set.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/zapbridge/zapbridge/internal/config"
	"github.com/zapbridge/zapbridge/internal/session"
	"github.com/zapbridge/zapbridge/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
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

	exp, err := session.ExportSession(context.Background(), cfg, repo)
	if err != nil {
		slog.Error("Failed to export session", "error", err)
		os.Exit(1)
	}

	out := os.Stdout
	if path := os.Getenv("EXPORT_PATH"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			slog.Error("Failed to create export file", "path", path, "error", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exp); err != nil {
		slog.Error("Failed to write export", "error", err)
		os.Exit(1)
	}

	slog.Info("Session exported", "namespace", exp.Namespace, "policy", exp.Policy)
}
