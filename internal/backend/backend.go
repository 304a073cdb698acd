// Package backend defines the authentication and note storage contract used
// by the web front-end. Implementations delegate to a hosted service
// (see package supabase) or to the local SQLite store (see package storage).
package backend

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// ErrUnauthenticated is returned when a token is missing, expired, or
	// otherwise rejected.
	ErrUnauthenticated Error = "unauthenticated"
	// ErrNotFound is returned when a note or user does not exist for the caller.
	ErrNotFound Error = "not found"
	// ErrInvalidArgument is returned when input fails validation.
	ErrInvalidArgument Error = "invalid argument"
	// ErrRateLimited is returned when the backend throttles the caller.
	ErrRateLimited Error = "rate limited"
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable Error = "backend unavailable"
	// ErrInternal is returned for any other type of error.
	ErrInternal Error = "internal error"
)

// Error is an error type returned by backend implementations.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Note field limits.
const (
	MaxTitleLen   = 200
	MaxContentLen = 20000
)

// User is an authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session. The access token authorizes requests
// until ExpiresAt; the refresh token may then be exchanged for a new session.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Note is a single stored note, owned by one user.
type Note struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNote is the user-supplied portion of a note.
type NewNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Auth is the authentication half of a backend.
type Auth interface {
	// SendMagicLink emails a single-use login link to email. The link lands
	// on redirectTo with a token_hash query parameter.
	SendMagicLink(ctx context.Context, email, redirectTo string) error
	// VerifyMagicLink exchanges a magic link token hash for a session.
	VerifyMagicLink(ctx context.Context, tokenHash string) (Session, error)
	// GetUser resolves the user for an access token. An [ErrUnauthenticated]
	// is returned if the token is unknown or expired.
	GetUser(ctx context.Context, accessToken string) (User, error)
	// RefreshSession exchanges a refresh token for a new session. The old
	// refresh token is no longer valid afterwards.
	RefreshSession(ctx context.Context, refreshToken string) (Session, error)
	// SignOut revokes the session associated with the access token.
	SignOut(ctx context.Context, accessToken string) error
}

// Notes is the note storage half of a backend. Every operation is scoped to
// the session's user.
type Notes interface {
	// ListNotes returns the user's notes, oldest first.
	ListNotes(ctx context.Context, session Session) ([]Note, error)
	// CreateNote stores a new note for the user and returns the stored row.
	CreateNote(ctx context.Context, session Session, note NewNote) (Note, error)
	// DeleteNote removes the user's note with the given ID. An [ErrNotFound]
	// is returned if the user has no such note.
	DeleteNote(ctx context.Context, session Session, id int64) error
}

// Backend is the combination interface for [Auth] and [Notes].
type Backend interface {
	Auth
	Notes
	// Close releases any resources held by the backend.
	Close() error
}

// ValidateNewNote trims the note fields and checks them against the field
// limits. Both fields are required.
func ValidateNewNote(note NewNote) (NewNote, error) {
	note.Title = strings.TrimSpace(note.Title)
	note.Content = strings.TrimSpace(note.Content)
	switch {
	case note.Title == "":
		return note, Invalid("title is required")
	case note.Content == "":
		return note, Invalid("content is required")
	case utf8.RuneCountInString(note.Title) > MaxTitleLen:
		return note, Invalid("title is too long")
	case utf8.RuneCountInString(note.Content) > MaxContentLen:
		return note, Invalid("content is too long")
	}
	return note, nil
}

// NormalizeEmail validates a bare email address and lowercases it.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", Invalid("invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}

// ArgumentError is an [ErrInvalidArgument] with a user-facing reason.
type ArgumentError struct {
	Reason string
}

// Error satisfies [error].
func (e ArgumentError) Error() string { return e.Reason }

// Is reports whether target is [ErrInvalidArgument].
func (e ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// Invalid returns an [ErrInvalidArgument] carrying a user-facing reason.
func Invalid(reason string) error {
	return ArgumentError{Reason: reason}
}
