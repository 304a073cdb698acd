package devservice

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/backend/supabase"
	"github.com/stolasapp/notebook/internal/config"
)

const (
	testSeed   = 42
	redirectTo = "http://localhost:9999/notes/auth/confirm"
)

type outbox struct {
	mu    sync.Mutex
	links map[string]string
}

func (o *outbox) SendMagicLink(_ context.Context, to, link string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.links == nil {
		o.links = map[string]string{}
	}
	o.links[to] = link
	return nil
}

func (o *outbox) tokenHash(t *testing.T, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	link, err := url.Parse(o.links[to])
	require.NoError(t, err)
	return link.Query().Get("token_hash")
}

func newClient(t *testing.T, perUser int) (*supabase.Client, *outbox) {
	t.Helper()
	mailer := &outbox{}
	srv := httptest.NewServer(New(Config{Seed: testSeed, NotesPerUser: perUser, Mailer: mailer}))
	t.Cleanup(srv.Close)

	client, err := supabase.New(config.Supabase{
		URL:     srv.URL,
		AnonKey: AnonKey,
	}, slog.New(slog.DiscardHandler), nil)
	require.NoError(t, err)
	return client, mailer
}

func login(t *testing.T, client *supabase.Client, mailer *outbox, address string) backend.Session {
	t.Helper()
	require.NoError(t, client.SendMagicLink(t.Context(), address, redirectTo))
	session, err := client.VerifyMagicLink(t.Context(), mailer.tokenHash(t, address))
	require.NoError(t, err)
	return session
}

func TestService_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(New(Config{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/auth/v1/user")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestService_Auth(t *testing.T) {
	t.Parallel()

	client, mailer := newClient(t, 0)
	session := login(t, client, mailer, "you@example.com")
	assert.Equal(t, "you@example.com", session.User.Email)

	user, err := client.GetUser(t.Context(), session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User, user)

	// links are single use
	_, err = client.VerifyMagicLink(t.Context(), mailer.tokenHash(t, "you@example.com"))
	require.ErrorIs(t, err, backend.ErrUnauthenticated)

	refreshed, err := client.RefreshSession(t.Context(), session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.User, refreshed.User)
	_, err = client.RefreshSession(t.Context(), session.RefreshToken)
	require.ErrorIs(t, err, backend.ErrInvalidArgument)

	require.NoError(t, client.SignOut(t.Context(), refreshed.AccessToken))
	_, err = client.GetUser(t.Context(), refreshed.AccessToken)
	require.ErrorIs(t, err, backend.ErrUnauthenticated)
}

func TestService_Notes(t *testing.T) {
	t.Parallel()

	client, mailer := newClient(t, 0)
	alice := login(t, client, mailer, "alice@example.com")
	bob := login(t, client, mailer, "bob@example.com")

	note, err := client.CreateNote(t.Context(), alice, backend.NewNote{Title: "groceries", Content: "milk"})
	require.NoError(t, err)
	assert.Equal(t, alice.User.ID, note.UserID)
	assert.False(t, note.CreatedAt.IsZero())

	notes, err := client.ListNotes(t.Context(), alice)
	require.NoError(t, err)
	assert.Equal(t, []backend.Note{note}, notes)

	notes, err = client.ListNotes(t.Context(), bob)
	require.NoError(t, err)
	assert.Empty(t, notes)

	err = client.DeleteNote(t.Context(), bob, note.ID)
	require.ErrorIs(t, err, backend.ErrNotFound)

	// a session claiming another user id only sees its own rows
	forged := bob
	forged.User.ID = alice.User.ID
	notes, err = client.ListNotes(t.Context(), forged)
	require.NoError(t, err)
	assert.Empty(t, notes)
	_, err = client.CreateNote(t.Context(), forged, backend.NewNote{Title: "t", Content: "c"})
	require.ErrorIs(t, err, backend.ErrUnauthenticated)

	require.NoError(t, client.DeleteNote(t.Context(), alice, note.ID))
	notes, err = client.ListNotes(t.Context(), alice)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestService_SeedsNotes(t *testing.T) {
	t.Parallel()

	client, mailer := newClient(t, 3)
	session := login(t, client, mailer, "seeded@example.com")

	notes, err := client.ListNotes(t.Context(), session)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	for i, note := range notes {
		_, err = backend.ValidateNewNote(backend.NewNote{Title: note.Title, Content: note.Content})
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, note.ID, notes[i-1].ID)
		}
	}

	// the same seed generates the same corpus
	other, otherMailer := newClient(t, 3)
	otherSession := login(t, other, otherMailer, "seeded@example.com")
	otherNotes, err := other.ListNotes(t.Context(), otherSession)
	require.NoError(t, err)
	for i := range notes {
		assert.Equal(t, notes[i].Title, otherNotes[i].Title)
		assert.Equal(t, notes[i].Content, otherNotes[i].Content)
	}
}
