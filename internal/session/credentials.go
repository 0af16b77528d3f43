package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zapbridge/zapbridge/internal/config"
	"github.com/zapbridge/zapbridge/internal/store"
)

// CredentialStore abstracts where the messaging session credentials live.
// The gateway owns reading and writing the actual credential material; the
// session manager only ever needs to know whether credentials exist and how
// to wipe them.
type CredentialStore interface {
	// Namespace identifies the credential set, derived from the deployment
	// phone number.
	Namespace() string

	// Exists reports whether persisted credentials are present.
	Exists() bool

	// Erase removes the persisted credentials. Best-effort and recursive;
	// returns nil when nothing is stored.
	Erase() error
}

// NewCredentialStore builds the credential store selected by the
// deployment's credential policy.
func NewCredentialStore(cfg *config.Config, repo store.Repository) (CredentialStore, error) {
	ns := cfg.CredentialNamespace()
	switch cfg.CredentialPolicy {
	case config.PolicyLocal:
		return &LocalCredentialStore{
			dir:       filepath.Join(cfg.SessionsDir, ns),
			namespace: ns,
		}, nil
	case config.PolicyRemote:
		if repo == nil {
			return nil, fmt.Errorf("remote credential policy requires a repository")
		}
		return &RemoteCredentialStore{repo: repo, namespace: ns}, nil
	case config.PolicyEphemeral:
		return &EphemeralCredentialStore{namespace: ns}, nil
	default:
		return nil, fmt.Errorf("unknown credential policy %q", cfg.CredentialPolicy)
	}
}

// LocalCredentialStore keeps session credentials in a per-namespace
// directory on the local filesystem.
type LocalCredentialStore struct {
	dir       string
	namespace string
}

// Namespace returns the credential namespace.
func (s *LocalCredentialStore) Namespace() string { return s.namespace }

// Dir returns the directory the gateway should persist credentials into.
func (s *LocalCredentialStore) Dir() string { return s.dir }

// Exists reports whether the credential directory exists and is non-empty.
func (s *LocalCredentialStore) Exists() bool {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// Erase removes the credential directory recursively. Missing directories
// are not an error.
func (s *LocalCredentialStore) Erase() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove credential directory %s: %w", s.dir, err)
	}
	return nil
}

// RemoteCredentialStore keeps session credentials as blobs in the SQLite
// repository, for deployments without a durable filesystem.
type RemoteCredentialStore struct {
	repo      store.Repository
	namespace string
}

// Namespace returns the credential namespace.
func (s *RemoteCredentialStore) Namespace() string { return s.namespace }

// Exists reports whether a credential blob is stored for the namespace.
func (s *RemoteCredentialStore) Exists() bool {
	ok, err := s.repo.CredentialExists(context.Background(), s.namespace)
	if err != nil {
		slog.Warn("Failed to check remote credentials, assuming absent",
			"namespace", s.namespace, "error", err)
		return false
	}
	return ok
}

// Erase deletes the stored credential blob.
func (s *RemoteCredentialStore) Erase() error {
	if err := s.repo.DeleteCredential(context.Background(), s.namespace); err != nil {
		return fmt.Errorf("delete remote credentials: %w", err)
	}
	return nil
}

// EphemeralCredentialStore never persists anything; every process start
// requires a fresh pairing.
type EphemeralCredentialStore struct {
	namespace string
}

// Namespace returns the credential namespace.
func (s *EphemeralCredentialStore) Namespace() string { return s.namespace }

// Exists always reports false.
func (s *EphemeralCredentialStore) Exists() bool { return false }

// Erase is a no-op.
func (s *EphemeralCredentialStore) Erase() error { return nil }
