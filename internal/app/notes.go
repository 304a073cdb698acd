package app

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/notebook/internal/app/component"
	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/content"
	"github.com/stolasapp/notebook/internal/sec"
)

// Note operation labels.
const (
	opList   = "list"
	opCreate = "create"
	opDelete = "delete"
)

func (h handler) listNotes(c echo.Context) error {
	return h.renderNotes(c, http.StatusOK, component.NotesProps{})
}

// renderNotes renders the notes page on top of props, which carries any
// notice or draft from a rejected submission.
func (h handler) renderNotes(c echo.Context, status int, props component.NotesProps) error {
	ctx := c.Request().Context()
	session, _ := sec.SessionFrom(ctx)

	notes, err := h.backend.ListNotes(ctx, session)
	h.metrics.NoteOperation(opList, err)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list notes", slog.Any("error", err))
		return toHTTPError(err)
	}

	props.CSRF = csrfToken(c)
	props.Email = session.User.Email
	props.Notes = make([]component.NoteView, 0, len(notes))
	for _, note := range notes {
		rendered, err := content.Render(h.cfg.Notes.RenderMarkdown, note.Content)
		if err != nil {
			return err
		}
		props.Notes = append(props.Notes, component.NoteView{
			ID:          note.ID,
			Title:       note.Title,
			ContentHTML: rendered,
			CreatedAt:   note.CreatedAt,
		})
	}
	return render(c, status, component.NotesPage(props))
}

func (h handler) createNote(c echo.Context) error {
	ctx := c.Request().Context()
	session, _ := sec.SessionFrom(ctx)
	draft := backend.NewNote{
		Title:   c.FormValue(component.FieldTitle),
		Content: c.FormValue(component.FieldContent),
	}

	_, err := h.backend.CreateNote(ctx, session, draft)
	h.metrics.NoteOperation(opCreate, err)
	if err != nil {
		status := statusOf(err)
		switch {
		case status == http.StatusUnauthorized:
			return toHTTPError(err)
		case status >= http.StatusInternalServerError:
			h.logger.ErrorContext(ctx, "failed to create note", slog.Any("error", err))
		}
		return h.renderNotes(c, status, component.NotesProps{
			Notice:       noticeFor(err),
			DraftTitle:   draft.Title,
			DraftContent: draft.Content,
		})
	}
	return c.Redirect(http.StatusSeeOther, component.NotesURL)
}

func (h handler) deleteNote(c echo.Context) error {
	ctx := c.Request().Context()
	session, _ := sec.SessionFrom(ctx)
	id, ok := component.ParseNoteID(c.Param("id"))
	if !ok {
		return echo.ErrNotFound
	}

	err := h.backend.DeleteNote(ctx, session, id)
	h.metrics.NoteOperation(opDelete, err)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete note", slog.Int64("id", id), slog.Any("error", err))
		return toHTTPError(err)
	}
	return c.Redirect(http.StatusSeeOther, component.NotesURL)
}
