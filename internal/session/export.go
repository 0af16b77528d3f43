package session

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zapbridge/zapbridge/internal/config"
	"github.com/zapbridge/zapbridge/internal/store"
)

// Export is a portable dump of the persisted messaging session, used to
// migrate a linked account between hosts or credential policies without
// re-pairing. Byte fields marshal as base64 in JSON.
type Export struct {
	Namespace  string    `json:"namespace"`
	Policy     string    `json:"policy"`
	ExportedAt time.Time `json:"exported_at"`

	// Blob is the credential blob under the remote policy.
	Blob []byte `json:"blob,omitempty"`

	// Files maps paths relative to the credential directory to their
	// contents, under the local policy.
	Files map[string][]byte `json:"files,omitempty"`
}

// ExportSession dumps the persisted session for the configured credential
// policy. It fails when nothing is persisted: exporting an empty session
// would restore to a fresh pairing and hide the data loss.
func ExportSession(ctx context.Context, cfg *config.Config, repo store.Repository) (*Export, error) {
	creds, err := NewCredentialStore(cfg, repo)
	if err != nil {
		return nil, err
	}

	exp := &Export{
		Namespace:  creds.Namespace(),
		Policy:     string(cfg.CredentialPolicy),
		ExportedAt: time.Now().UTC(),
	}

	switch s := creds.(type) {
	case *LocalCredentialStore:
		files, err := s.exportFiles()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no persisted session under %s", s.Dir())
		}
		exp.Files = files
	case *RemoteCredentialStore:
		blob, err := s.repo.GetCredential(ctx, s.namespace)
		if err != nil {
			return nil, fmt.Errorf("load credential blob: %w", err)
		}
		if len(blob) == 0 {
			return nil, fmt.Errorf("no persisted session for namespace %s", s.namespace)
		}
		exp.Blob = blob
	default:
		return nil, fmt.Errorf("credential policy %q does not persist a session", cfg.CredentialPolicy)
	}

	return exp, nil
}

// exportFiles reads every file under the credential directory, keyed by
// path relative to it. A missing directory yields an empty map.
func (s *LocalCredentialStore) exportFiles() (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dir {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		files[rel] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read credential directory %s: %w", s.dir, err)
	}
	return files, nil
}
