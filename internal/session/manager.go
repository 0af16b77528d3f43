// Package session owns the authentication state machine of the messaging
// connection: when a pairing code must be surfaced to the operator, when
// persisted credentials are stale and must be wiped, and whether the
// dispatch engine is allowed to process messages at all.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zapbridge/zapbridge/internal/domain"
)

// EventType enumerates connection events sourced from the transport.
type EventType int

const (
	// EventPairingCode means the gateway issued (or refreshed) a pairing code.
	EventPairingCode EventType = iota
	// EventAuthenticated means the account link succeeded.
	EventAuthenticated
	// EventAuthFailed means pairing or session restore failed.
	EventAuthFailed
	// EventDisconnected means the connection dropped.
	EventDisconnected
)

// ConnectionEvent is a single transport-sourced lifecycle notification.
type ConnectionEvent struct {
	Type EventType

	// Code is the pairing code, set for EventPairingCode.
	Code string

	// Identity is the connected account identity, set for EventAuthenticated.
	Identity string

	// Reason describes auth failures and disconnects.
	Reason string

	// Logout marks a disconnect as a deliberate unlink rather than a
	// transient drop; credentials must be wiped before re-pairing.
	Logout bool
}

// Notifier receives operator-facing lifecycle notifications.
type Notifier interface {
	// PairingRequired is called with each issued pairing code. Credentials
	// are guaranteed to be wiped before this is called.
	PairingRequired(code string)

	// Ready is called when the connection is authenticated.
	Ready(identity string)

	// AuthFailed is called when pairing fails and the operator must retry.
	AuthFailed(reason string)

	// Disconnected is called when the connection drops.
	Disconnected(reason string)
}

// Reconnector lets the manager ask the transport to re-establish a dropped
// connection using existing credentials.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Manager is the single authoritative state machine for the connection's
// authentication status. All mutation happens through Startup and
// HandleEvent; the dispatch engine only ever sees IsAuthenticated.
type Manager struct {
	mu          sync.Mutex
	phase       domain.SessionPhase
	pendingCode string
	hasCreds    bool

	creds     CredentialStore
	notifier  Notifier
	transport Reconnector
}

// NewManager creates a session manager over the given credential store.
// The transport may be nil in tests; reconnection is then skipped.
func NewManager(creds CredentialStore, notifier Notifier, transport Reconnector) *Manager {
	return &Manager{
		phase:     domain.PhaseUninitialized,
		creds:     creds,
		notifier:  notifier,
		transport: transport,
	}
}

// Startup records whether persisted credentials exist and decides the
// initial phase: no credentials means pairing is required, otherwise the
// transport attempts a direct connect and the phase advances when the
// authenticated event arrives.
func (m *Manager) Startup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hasCreds = m.creds.Exists()
	if !m.hasCreds {
		m.phase = domain.PhaseAwaitingPairing
		slog.Info("No persisted session found, pairing required",
			"namespace", m.creds.Namespace())
		return
	}
	slog.Info("Persisted session found, connecting with saved credentials",
		"namespace", m.creds.Namespace())
}

// HandleEvent applies one transport event to the state machine.
func (m *Manager) HandleEvent(ctx context.Context, ev ConnectionEvent) {
	switch ev.Type {
	case EventPairingCode:
		m.handlePairingCode(ev.Code)
	case EventAuthenticated:
		m.handleAuthenticated(ev.Identity)
	case EventAuthFailed:
		m.handleAuthFailed(ev.Reason)
	case EventDisconnected:
		m.handleDisconnected(ctx, ev.Reason, ev.Logout)
	default:
		slog.Warn("Unknown connection event", "type", int(ev.Type))
	}
}

// handlePairingCode processes an issued or refreshed pairing code. A pairing
// request while credentials are believed valid means the stored session is
// corrupted: the stale credentials are wiped before the code is surfaced,
// so the next boot cannot reuse them.
func (m *Manager) handlePairingCode(code string) {
	m.mu.Lock()

	if m.hasCreds {
		slog.Warn("Pairing requested despite existing session, treating credentials as corrupted",
			"namespace", m.creds.Namespace())
		m.eraseCredentialsLocked()
	}

	m.phase = domain.PhaseAwaitingPairing
	m.pendingCode = code
	m.mu.Unlock()

	slog.Info("Pairing code issued", "namespace", m.creds.Namespace())
	if m.notifier != nil {
		m.notifier.PairingRequired(code)
	}
}

func (m *Manager) handleAuthenticated(identity string) {
	m.mu.Lock()
	m.phase = domain.PhaseAuthenticated
	m.pendingCode = ""
	m.hasCreds = true
	m.mu.Unlock()

	slog.Info("Session authenticated", "identity", identity)
	if m.notifier != nil {
		m.notifier.Ready(identity)
	}
}

// handleAuthFailed wipes whatever partial session the failed attempt left
// behind, clears the pending code, and tells the operator to retry.
func (m *Manager) handleAuthFailed(reason string) {
	m.mu.Lock()
	m.eraseCredentialsLocked()
	m.phase = domain.PhaseAwaitingPairing
	m.pendingCode = ""
	m.mu.Unlock()

	slog.Error("Authentication failed", "reason", reason)
	if m.notifier != nil {
		m.notifier.AuthFailed(reason)
	}
}

func (m *Manager) handleDisconnected(ctx context.Context, reason string, logout bool) {
	m.mu.Lock()
	if logout {
		// A deliberate unlink invalidates the stored session; wipe it
		// before the next pairing attempt.
		m.eraseCredentialsLocked()
		m.phase = domain.PhaseAwaitingPairing
		m.pendingCode = ""
	} else {
		// The connection backing a pending code is gone; the code is dead
		// with it. A fresh one arrives after reconnect if still needed.
		m.phase = domain.PhaseDisconnected
		m.pendingCode = ""
	}
	m.mu.Unlock()

	slog.Warn("Session disconnected", "reason", reason, "logout", logout)
	if m.notifier != nil {
		m.notifier.Disconnected(reason)
	}

	if !logout && m.transport != nil {
		if err := m.transport.Reconnect(ctx); err != nil {
			slog.Error("Reconnect attempt failed", "error", err)
		}
	}
}

// eraseCredentialsLocked wipes persisted credentials synchronously. Callers
// must hold m.mu; the pairing code is never published while stale
// credentials are still on disk.
func (m *Manager) eraseCredentialsLocked() {
	if err := m.creds.Erase(); err != nil {
		slog.Error("Failed to erase session credentials",
			"namespace", m.creds.Namespace(), "error", err)
	}
	m.hasCreds = false
}

// IsAuthenticated reports whether inbound messages may be processed. The
// dispatch engine evaluates this fresh for every message and drops (never
// queues) messages while it is false.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == domain.PhaseAuthenticated
}

// Phase returns the current session phase.
func (m *Manager) Phase() domain.SessionPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// PendingCode returns the pairing code awaiting the operator, or "" when
// no pairing is pending. Non-empty only while the phase is AwaitingPairing.
func (m *Manager) PendingCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingCode
}

// HasPersistedCredentials reports whether the credential store currently
// holds a session.
func (m *Manager) HasPersistedCredentials() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasCreds
}
