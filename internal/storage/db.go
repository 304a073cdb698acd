package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/gofrs/uuid"
	"github.com/influxdata/influxdb/pkg/snowflake"

	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/email"
	"github.com/stolasapp/notebook/internal/sec"
	"github.com/stolasapp/notebook/internal/storage/db"
)

// refreshWindow is how long an expired session may still be refreshed.
const refreshWindow = 30 * 24 * time.Hour

// DB is a [Store] backed by a SQLite database.
type DB struct {
	ids     *snowflake.Generator
	db      *sql.DB
	queries *db.Queries
	mailer  email.Sender
	logger  *slog.Logger

	linkTTL    time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewDB initializes a DB with the given config, logger, and magic link
// sender.
func NewDB(ctx context.Context, cfg *config.Config, logger *slog.Logger, mailer email.Sender) (*DB, error) {
	handle, err := db.Open(ctx, logger, cfg.Backend.Local.DBFilepath)
	if err != nil {
		return nil, err
	}
	return &DB{
		ids:        snowflake.New(rand.IntN(1023)), //nolint:gosec,mnd // this isn't for crypto
		db:         handle,
		queries:    db.New(handle),
		mailer:     mailer,
		logger:     logger,
		linkTTL:    cfg.Backend.Local.MagicLinkTTL,
		sessionTTL: cfg.Backend.Local.SessionTTL,
		now:        time.Now,
	}, nil
}

// Close satisfies the [backend.Backend] interface.
func (d *DB) Close() error {
	return d.db.Close()
}

// SendMagicLink satisfies the [backend.Auth] interface.
func (d *DB) SendMagicLink(ctx context.Context, address, redirectTo string) error {
	address, err := backend.NormalizeEmail(address)
	if err != nil {
		return err
	}
	target, err := url.Parse(redirectTo)
	if err != nil || !target.IsAbs() {
		return backend.Invalid("invalid redirect URL")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to generate magic link id: %w", err)
	}
	secret := sec.NewToken()
	hash, err := sec.HashPassword(secret)
	if err != nil {
		return fmt.Errorf("failed to hash magic link secret: %w", err)
	}

	now := d.clock()
	if err = d.queries.DeleteExpiredMagicLinks(ctx, now); err != nil {
		return fmt.Errorf("failed to prune magic links: %w", err)
	}
	if err = d.queries.InsertMagicLink(ctx, db.MagicLink{
		ID:         id.String(),
		Email:      address,
		SecretHash: hash,
		ExpiresAt:  now.Add(d.linkTTL),
	}); err != nil {
		return fmt.Errorf("failed to store magic link: %w", err)
	}

	query := target.Query()
	query.Set("token_hash", sec.JoinToken(id.String(), secret))
	query.Set("type", "magiclink")
	target.RawQuery = query.Encode()
	return d.mailer.SendMagicLink(ctx, address, target.String())
}

// VerifyMagicLink satisfies the [backend.Auth] interface.
func (d *DB) VerifyMagicLink(ctx context.Context, tokenHash string) (session backend.Session, err error) {
	id, secret, err := sec.SplitToken(tokenHash)
	if err != nil {
		return session, fmt.Errorf("%w: %w", backend.ErrUnauthenticated, err)
	}

	link, err := d.queries.GetMagicLink(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return session, backend.ErrUnauthenticated
	case err != nil:
		return session, err
	case link.Used:
		return session, ErrLinkUsed
	case !d.clock().Before(link.ExpiresAt):
		return session, ErrLinkExpired
	}
	if err = sec.ComparePassword(secret, link.SecretHash); err != nil {
		return session, backend.ErrUnauthenticated
	}

	err = d.inTx(ctx, func(q *db.Queries) error {
		if ok, err := q.UseMagicLink(ctx, id); err != nil {
			return err
		} else if !ok {
			return ErrLinkUsed
		}
		user, err := d.ensureUser(ctx, q, link.Email)
		if err != nil {
			return err
		}
		session, err = d.newSession(ctx, q, user)
		return err
	})
	return session, err
}

// GetUser satisfies the [backend.Auth] interface.
func (d *DB) GetUser(ctx context.Context, accessToken string) (backend.User, error) {
	if accessToken == "" {
		return backend.User{}, backend.ErrUnauthenticated
	}
	user, err := d.queries.GetSessionUser(ctx, sec.TokenDigest(accessToken), d.clock())
	if errors.Is(err, sql.ErrNoRows) {
		return backend.User{}, backend.ErrUnauthenticated
	} else if err != nil {
		return backend.User{}, err
	}
	return backend.User(user), nil
}

// RefreshSession satisfies the [backend.Auth] interface. Refresh rotates both
// tokens.
func (d *DB) RefreshSession(ctx context.Context, refreshToken string) (session backend.Session, err error) {
	if refreshToken == "" {
		return session, backend.ErrUnauthenticated
	}
	err = d.inTx(ctx, func(q *db.Queries) error {
		old, err := q.GetSessionByRefresh(ctx, sec.TokenDigest(refreshToken))
		if errors.Is(err, sql.ErrNoRows) {
			return backend.ErrUnauthenticated
		} else if err != nil {
			return err
		}
		if d.clock().After(old.ExpiresAt.Add(refreshWindow)) {
			return backend.ErrUnauthenticated
		}
		if err = q.DeleteSession(ctx, old.AccessHash); err != nil {
			return err
		}
		user, err := q.GetUser(ctx, old.UserID)
		if err != nil {
			return err
		}
		session, err = d.newSession(ctx, q, user)
		return err
	})
	return session, err
}

// SignOut satisfies the [backend.Auth] interface. Signing out an unknown
// session is not an error.
func (d *DB) SignOut(ctx context.Context, accessToken string) error {
	return d.queries.DeleteSession(ctx, sec.TokenDigest(accessToken))
}

// ListNotes satisfies the [backend.Notes] interface.
func (d *DB) ListNotes(ctx context.Context, session backend.Session) ([]backend.Note, error) {
	userID, err := d.authorize(ctx, session)
	if err != nil {
		return nil, err
	}
	rows, err := d.queries.ListNotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	notes := make([]backend.Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, backend.Note(row))
	}
	return notes, nil
}

// CreateNote satisfies the [backend.Notes] interface.
func (d *DB) CreateNote(ctx context.Context, session backend.Session, note backend.NewNote) (backend.Note, error) {
	note, err := backend.ValidateNewNote(note)
	if err != nil {
		return backend.Note{}, err
	}
	userID, err := d.authorize(ctx, session)
	if err != nil {
		return backend.Note{}, err
	}
	row, err := d.queries.InsertNote(ctx, db.Note{
		ID:        int64(d.ids.Next()), //nolint:gosec // snowflake ids fit in 63 bits
		UserID:    userID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: d.clock(),
	})
	return backend.Note(row), err
}

// DeleteNote satisfies the [backend.Notes] interface.
func (d *DB) DeleteNote(ctx context.Context, session backend.Session, id int64) error {
	userID, err := d.authorize(ctx, session)
	if err != nil {
		return err
	}
	n, err := d.queries.DeleteNote(ctx, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("note %d: %w", id, backend.ErrNotFound)
	}
	return nil
}

// GetUserByEmail satisfies the [Users] interface.
func (d *DB) GetUserByEmail(ctx context.Context, address string) (backend.User, error) {
	address, err := backend.NormalizeEmail(address)
	if err != nil {
		return backend.User{}, err
	}
	user, err := d.queries.GetUserByEmail(ctx, address)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.User{}, ErrNotFound
	}
	return backend.User(user), err
}

// EnsureUser satisfies the [Users] interface.
func (d *DB) EnsureUser(ctx context.Context, address string) (backend.User, error) {
	address, err := backend.NormalizeEmail(address)
	if err != nil {
		return backend.User{}, err
	}
	user, err := d.ensureUser(ctx, d.queries, address)
	return backend.User(user), err
}

// DeleteUser satisfies the [Users] interface.
func (d *DB) DeleteUser(ctx context.Context, userID string) error {
	return d.queries.DeleteUser(ctx, userID)
}

// authorize resolves the session's access token, ensuring it still belongs to
// the session's user.
func (d *DB) authorize(ctx context.Context, session backend.Session) (string, error) {
	user, err := d.GetUser(ctx, session.AccessToken)
	if err != nil {
		return "", err
	}
	if session.User.ID != "" && session.User.ID != user.ID {
		return "", backend.ErrUnauthenticated
	}
	return user.ID, nil
}

func (d *DB) ensureUser(ctx context.Context, q *db.Queries, address string) (db.User, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return db.User{}, fmt.Errorf("failed to generate user id: %w", err)
	}
	return q.UpsertUser(ctx, db.User{ID: id.String(), Email: address})
}

func (d *DB) newSession(ctx context.Context, q *db.Queries, user db.User) (backend.Session, error) {
	session := backend.Session{
		AccessToken:  sec.NewToken(),
		RefreshToken: sec.NewToken(),
		ExpiresAt:    d.clock().Add(d.sessionTTL),
		User:         backend.User(user),
	}
	err := q.InsertSession(ctx, db.Session{
		AccessHash:  sec.TokenDigest(session.AccessToken),
		RefreshHash: sec.TokenDigest(session.RefreshToken),
		UserID:      user.ID,
		ExpiresAt:   session.ExpiresAt,
	})
	if err != nil {
		return backend.Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	d.logger.DebugContext(ctx, "session issued", slog.String("user", user.ID))
	return session, nil
}

func (d *DB) inTx(ctx context.Context, fn func(q *db.Queries) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(d.queries.WithTx(tx)); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// clock returns the current time in UTC. Timestamps are compared as text by
// SQLite, so every stored time must share the same offset.
func (d *DB) clock() time.Time {
	return d.now().UTC()
}

var _ Store = (*DB)(nil)
