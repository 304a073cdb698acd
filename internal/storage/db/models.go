package db

import "time"

// User is a row of the users table.
type User struct {
	ID    string
	Email string
}

// MagicLink is a row of the magic_links table.
type MagicLink struct {
	ID         string
	Email      string
	SecretHash []byte
	ExpiresAt  time.Time
	Used       bool
}

// Session is a row of the sessions table. Tokens are stored only as digests.
type Session struct {
	AccessHash  string
	RefreshHash string
	UserID      string
	ExpiresAt   time.Time
}

// Note is a row of the notes table.
type Note struct {
	ID        int64
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
}
