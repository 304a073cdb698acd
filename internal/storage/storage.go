// Package storage provides the local, SQLite-backed implementation of the
// notes backend: users, magic link logins, sessions, and notes.
package storage

import (
	"context"

	"github.com/stolasapp/notebook/internal/backend"
)

const (
	// ErrNotFound is returned when a user cannot be found.
	ErrNotFound Error = "not found"
	// ErrLinkExpired is returned when a magic link is used after its expiry.
	ErrLinkExpired Error = "magic link expired"
	// ErrLinkUsed is returned when a magic link is presented a second time.
	ErrLinkUsed Error = "magic link already used"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Is maps storage errors onto the backend taxonomy.
func (e Error) Is(target error) bool {
	switch e {
	case ErrNotFound:
		return target == backend.ErrNotFound
	case ErrLinkExpired, ErrLinkUsed:
		return target == backend.ErrUnauthenticated
	default:
		return false
	}
}

// Users are the administrative methods on the store, used by the CLI.
type Users interface {
	// GetUserByEmail returns a single user with the specified email. An
	// [ErrNotFound] is returned if the email is not registered.
	GetUserByEmail(ctx context.Context, email string) (backend.User, error)
	// EnsureUser returns the user registered with email, creating it if
	// needed.
	EnsureUser(ctx context.Context, email string) (backend.User, error)
	// DeleteUser removes a user and all their sessions and notes. Note that
	// this is a hard delete; data is not recoverable.
	DeleteUser(ctx context.Context, userID string) error
}

// Store is the combination of [backend.Backend] and [Users].
type Store interface {
	backend.Backend
	Users
}
