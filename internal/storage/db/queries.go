package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries wraps the statements used by the storage package.
type Queries struct {
	db DBTX
}

// New returns Queries executing against db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries executing within tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getUser = `SELECT id, email FROM users WHERE id = ?`

// GetUser returns the user by id.
func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUser, id).Scan(&u.ID, &u.Email)
	return u, err
}

const getUserByEmail = `SELECT id, email FROM users WHERE email = ?`

// GetUserByEmail returns the user by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).Scan(&u.ID, &u.Email)
	return u, err
}

const upsertUser = `
INSERT INTO users (id, email) VALUES (?, ?)
ON CONFLICT (email) DO UPDATE SET email = excluded.email
RETURNING id, email`

// UpsertUser inserts the user, or returns the existing user with the same
// email.
func (q *Queries) UpsertUser(ctx context.Context, arg User) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, upsertUser, arg.ID, arg.Email).Scan(&u.ID, &u.Email)
	return u, err
}

const deleteUser = `DELETE FROM users WHERE id = ?`

// DeleteUser removes the user; sessions and notes cascade.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteUser, id)
	return err
}

const insertMagicLink = `
INSERT INTO magic_links (id, email, secret_hash, expires_at, used) VALUES (?, ?, ?, ?, FALSE)`

// InsertMagicLink stores a new, unused magic link.
func (q *Queries) InsertMagicLink(ctx context.Context, arg MagicLink) error {
	_, err := q.db.ExecContext(ctx, insertMagicLink, arg.ID, arg.Email, arg.SecretHash, arg.ExpiresAt)
	return err
}

const getMagicLink = `
SELECT id, email, secret_hash, expires_at, used FROM magic_links WHERE id = ?`

// GetMagicLink returns the magic link by id.
func (q *Queries) GetMagicLink(ctx context.Context, id string) (MagicLink, error) {
	var l MagicLink
	err := q.db.QueryRowContext(ctx, getMagicLink, id).
		Scan(&l.ID, &l.Email, &l.SecretHash, &l.ExpiresAt, &l.Used)
	return l, err
}

const useMagicLink = `UPDATE magic_links SET used = TRUE WHERE id = ? AND used = FALSE`

// UseMagicLink marks the link used, reporting whether this call did so.
func (q *Queries) UseMagicLink(ctx context.Context, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx, useMagicLink, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const deleteExpiredMagicLinks = `DELETE FROM magic_links WHERE expires_at < ? OR used`

// DeleteExpiredMagicLinks prunes links that can no longer be used.
func (q *Queries) DeleteExpiredMagicLinks(ctx context.Context, now time.Time) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredMagicLinks, now)
	return err
}

const insertSession = `
INSERT INTO sessions (access_hash, refresh_hash, user_id, expires_at) VALUES (?, ?, ?, ?)`

// InsertSession stores a new session.
func (q *Queries) InsertSession(ctx context.Context, arg Session) error {
	_, err := q.db.ExecContext(ctx, insertSession, arg.AccessHash, arg.RefreshHash, arg.UserID, arg.ExpiresAt)
	return err
}

const getSessionUser = `
SELECT u.id, u.email FROM sessions s JOIN users u ON u.id = s.user_id
WHERE s.access_hash = ? AND s.expires_at > ?`

// GetSessionUser returns the user for an unexpired access token digest.
func (q *Queries) GetSessionUser(ctx context.Context, accessHash string, now time.Time) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getSessionUser, accessHash, now).Scan(&u.ID, &u.Email)
	return u, err
}

const getSessionByRefresh = `
SELECT access_hash, refresh_hash, user_id, expires_at FROM sessions WHERE refresh_hash = ?`

// GetSessionByRefresh returns the session holding the refresh token digest.
func (q *Queries) GetSessionByRefresh(ctx context.Context, refreshHash string) (Session, error) {
	var s Session
	err := q.db.QueryRowContext(ctx, getSessionByRefresh, refreshHash).
		Scan(&s.AccessHash, &s.RefreshHash, &s.UserID, &s.ExpiresAt)
	return s, err
}

const deleteSession = `DELETE FROM sessions WHERE access_hash = ?`

// DeleteSession removes the session by access token digest.
func (q *Queries) DeleteSession(ctx context.Context, accessHash string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, accessHash)
	return err
}

const listNotes = `
SELECT id, user_id, title, content, created_at FROM notes WHERE user_id = ? ORDER BY id`

// ListNotes returns the user's notes in insertion order.
func (q *Queries) ListNotes(ctx context.Context, userID string) ([]Note, error) {
	rows, err := q.db.QueryContext(ctx, listNotes, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const insertNote = `
INSERT INTO notes (id, user_id, title, content, created_at) VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, title, content, created_at`

// InsertNote stores a note and returns the stored row.
func (q *Queries) InsertNote(ctx context.Context, arg Note) (Note, error) {
	var n Note
	err := q.db.QueryRowContext(ctx, insertNote, arg.ID, arg.UserID, arg.Title, arg.Content, arg.CreatedAt).
		Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt)
	return n, err
}

const deleteNote = `DELETE FROM notes WHERE id = ? AND user_id = ?`

// DeleteNote removes the user's note, returning the number of rows removed.
func (q *Queries) DeleteNote(ctx context.Context, id int64, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteNote, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
