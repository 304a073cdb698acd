package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/stolasapp/notebook/internal/backend"
)

const (
	notesPath            = "/rest/v1/notes"
	returnRepresentation = "return=representation"
)

// noteRow is the insertable subset of a note; the project assigns id and
// created_at.
type noteRow struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ListNotes satisfies the [backend.Notes] interface.
func (c *Client) ListNotes(ctx context.Context, session backend.Session) ([]backend.Note, error) {
	if err := authorized(session); err != nil {
		return nil, err
	}
	notes := []backend.Note{}
	err := c.do(ctx, request{
		op:     "list_notes",
		method: http.MethodGet,
		path:   notesPath,
		query: url.Values{
			"select":  {"*"},
			"user_id": {"eq." + session.User.ID},
			"order":   {"id.asc"},
		},
		token: session.AccessToken,
	}, &notes)
	return notes, err
}

// CreateNote satisfies the [backend.Notes] interface.
func (c *Client) CreateNote(ctx context.Context, session backend.Session, note backend.NewNote) (backend.Note, error) {
	note, err := backend.ValidateNewNote(note)
	if err != nil {
		return backend.Note{}, err
	}
	if err = authorized(session); err != nil {
		return backend.Note{}, err
	}
	var rows []backend.Note
	err = c.do(ctx, request{
		op:     "create_note",
		method: http.MethodPost,
		path:   notesPath,
		token:  session.AccessToken,
		prefer: returnRepresentation,
		body: []noteRow{{
			UserID:  session.User.ID,
			Title:   note.Title,
			Content: note.Content,
		}},
	}, &rows)
	if err != nil {
		return backend.Note{}, err
	}
	if len(rows) == 0 {
		return backend.Note{}, fmt.Errorf("%w: insert returned no rows", backend.ErrInternal)
	}
	return rows[0], nil
}

// DeleteNote satisfies the [backend.Notes] interface. The deleted rows are
// requested back so a missing note can be reported.
func (c *Client) DeleteNote(ctx context.Context, session backend.Session, id int64) error {
	if err := authorized(session); err != nil {
		return err
	}
	var rows []backend.Note
	err := c.do(ctx, request{
		op:     "delete_note",
		method: http.MethodDelete,
		path:   notesPath,
		query: url.Values{
			"id":      {"eq." + strconv.FormatInt(id, 10)},
			"user_id": {"eq." + session.User.ID},
		},
		token:  session.AccessToken,
		prefer: returnRepresentation,
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("note %d: %w", id, backend.ErrNotFound)
	}
	return nil
}

func authorized(session backend.Session) error {
	if session.AccessToken == "" || session.User.ID == "" {
		return backend.ErrUnauthenticated
	}
	return nil
}
