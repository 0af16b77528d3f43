// Package store provides data persistence interfaces and implementations.
package store

import "context"

// Repository defines the interface for persisting relay configuration and
// remote session credentials.
type Repository interface {
	// GetRecipient returns the configured notification email for a sender,
	// or "" when the sender never configured one.
	GetRecipient(ctx context.Context, userID string) (string, error)

	// SetRecipient stores or replaces the configured email for a sender.
	SetRecipient(ctx context.Context, userID, email string) error

	// DeleteRecipient removes the configured email for a sender.
	DeleteRecipient(ctx context.Context, userID string) error

	// CredentialExists reports whether a credential blob is stored for the
	// given session namespace.
	CredentialExists(ctx context.Context, namespace string) (bool, error)

	// PutCredential stores or replaces the credential blob for a namespace.
	PutCredential(ctx context.Context, namespace string, blob []byte) error

	// GetCredential returns the credential blob for a namespace, or nil
	// when none is stored.
	GetCredential(ctx context.Context, namespace string) ([]byte, error)

	// DeleteCredential removes the credential blob for a namespace. It is
	// a no-op when nothing is stored.
	DeleteCredential(ctx context.Context, namespace string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
