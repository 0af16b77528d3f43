// Package dialog holds the per-conversation configuration dialog state.
package dialog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zapbridge/zapbridge/internal/domain"
	"github.com/zapbridge/zapbridge/internal/store"
)

type entry struct {
	state  domain.DialogState
	email  string
	loaded bool // email was looked up in the repository
}

// Store maps sender identities to their dialog state and configured email.
// It is owned and mutated exclusively by the dispatch engine. Dialog state
// lives in memory only; configured emails are written through to the
// repository so they survive restarts.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	repo    store.Repository
}

// NewStore creates a dialog store. The repository may be nil, in which case
// configured emails are process-lifetime only.
func NewStore(repo store.Repository) *Store {
	return &Store{
		entries: make(map[string]*entry),
		repo:    repo,
	}
}

// lockedEntry returns the entry for a sender, creating it lazily. Callers
// must hold s.mu.
func (s *Store) lockedEntry(userID string) *entry {
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{state: domain.DialogNormal}
		s.entries[userID] = e
	}
	return e
}

// State returns the sender's current dialog state.
func (s *Store) State(userID string) domain.DialogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedEntry(userID).state
}

// SetState transitions the sender's dialog state.
func (s *Store) SetState(userID string, state domain.DialogState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedEntry(userID).state = state
}

// Email returns the sender's configured email and whether one is set. The
// first lookup for a sender consults the repository so configured addresses
// survive restarts.
func (s *Store) Email(ctx context.Context, userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lockedEntry(userID)
	if !e.loaded {
		e.loaded = true
		if s.repo != nil {
			email, err := s.repo.GetRecipient(ctx, userID)
			if err != nil {
				slog.Warn("Failed to load configured email", "user_id", userID, "error", err)
			} else {
				e.email = email
			}
		}
	}
	return e.email, e.email != ""
}

// SetEmail stores the sender's configured email and writes it through to
// the repository. A persistence failure is logged but does not fail the
// dialog; the in-memory value is authoritative for this process.
func (s *Store) SetEmail(ctx context.Context, userID, email string) {
	s.mu.Lock()
	e := s.lockedEntry(userID)
	e.email = email
	e.loaded = true
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SetRecipient(ctx, userID, email); err != nil {
			slog.Warn("Failed to persist configured email", "user_id", userID, "error", err)
		}
	}
}

// Len returns the number of tracked conversations. Used by tests and the
// health surface.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Has reports whether a dialog entry exists for the sender without
// creating one.
func (s *Store) Has(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}
