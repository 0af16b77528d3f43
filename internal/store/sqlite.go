package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS recipients (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credentials (
		namespace TEXT PRIMARY KEY,
		blob BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetRecipient returns the configured notification email for a sender.
func (s *SQLiteStore) GetRecipient(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM recipients WHERE user_id = ?`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scan recipient row: %w", err)
	}
	return email, nil
}

// SetRecipient stores or replaces the configured email for a sender.
// Retries with exponential backoff on SQLITE_BUSY, since the HTTP surface
// and the dispatcher share the database.
func (s *SQLiteStore) SetRecipient(ctx context.Context, userID, email string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.setRecipientOnce(ctx, userID, email)
		if err == nil {
			return nil
		}
		if !isSQLiteConflict(err) {
			return err
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("SetRecipient hit SQLITE_BUSY, retrying",
				"user_id", userID, "attempt", i+1, "delay", delay)
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("set recipient for %s after %d attempts: %w", userID, maxRetries, err)
}

func (s *SQLiteStore) setRecipientOnce(ctx context.Context, userID, email string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipients (user_id, email, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email = excluded.email,
			updated_at = excluded.updated_at`,
		userID, email, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}
	return nil
}

// DeleteRecipient removes the configured email for a sender.
func (s *SQLiteStore) DeleteRecipient(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM recipients WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	return nil
}

// CredentialExists reports whether a credential blob is stored for a namespace.
func (s *SQLiteStore) CredentialExists(ctx context.Context, namespace string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM credentials WHERE namespace = ?`, namespace).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query credential: %w", err)
	}
	return true, nil
}

// PutCredential stores or replaces the credential blob for a namespace.
func (s *SQLiteStore) PutCredential(ctx context.Context, namespace string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (namespace, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			blob = excluded.blob,
			updated_at = excluded.updated_at`,
		namespace, blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// GetCredential returns the credential blob for a namespace.
func (s *SQLiteStore) GetCredential(ctx context.Context, namespace string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM credentials WHERE namespace = ?`, namespace).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential row: %w", err)
	}
	return blob, nil
}

// DeleteCredential removes the credential blob for a namespace.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isSQLiteConflict reports whether the error is a SQLITE_BUSY or
// "database is locked" concurrency error worth retrying.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
