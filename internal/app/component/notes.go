package component

import (
	"context"
	"time"

	"github.com/a-h/templ"
)

// NoteView is a note prepared for display. ContentHTML is already rendered
// and sanitized.
type NoteView struct {
	ID          int64
	Title       string
	ContentHTML string
	CreatedAt   time.Time
}

// NotesProps are the inputs for the notes page.
type NotesProps struct {
	CSRF   string
	Email  string
	Notes  []NoteView
	Notice Notice
	// Draft refills the create form after a rejected submission.
	DraftTitle   string
	DraftContent string
}

// NotesPage renders the signed in user's notes and the create form.
func NotesPage(props NotesProps) templ.Component {
	return Layout("Personal Notes", component(func(ctx context.Context, out *writer) {
		out.render(ctx, siteHeader(props.CSRF, props.Email))
		out.raw(`<main class="notes">`)
		props.Notice.write(out)
		out.render(ctx, noteForm(props))
		out.raw(`<section><h2>Your Notes</h2>`)
		if len(props.Notes) == 0 {
			out.rawf(`<p class="%s">`, ClassEmptyState)
			out.text(MessageNoNotes)
			out.raw(`</p>`)
		} else {
			out.rawf(`<div id="%s" role="list">`, IDNotesList)
			for _, note := range props.Notes {
				out.render(ctx, noteCard(props.CSRF, note))
			}
			out.raw(`</div>`)
		}
		out.raw(`</section></main>`)
	}))
}

func siteHeader(csrf, email string) templ.Component {
	return component(func(_ context.Context, out *writer) {
		out.rawf(`<header class="%s">`, ClassSiteHeader)
		out.rawf(`<h1 class="%s">Personal Notes</h1>`, ClassSiteTitle)
		out.raw(`<nav>`)
		if email != "" {
			out.raw(`<span>`)
			out.text(email)
			out.raw(`</span>`)
		}
		out.rawf(`<form method="post" action="%s">`, LogoutURL)
		csrfField(out, csrf)
		out.raw(`<button type="submit">Logout</button></form>`)
		out.raw(`</nav></header>`)
	})
}

func noteForm(props NotesProps) templ.Component {
	return component(func(_ context.Context, out *writer) {
		out.rawf(`<form id="%s" method="post" action="%s">`, IDNoteForm, NotesURL)
		out.raw(`<h2>Create a new note</h2>`)
		csrfField(out, props.CSRF)
		out.rawf(`<label for="%s">Title</label>`, FieldTitle)
		out.rawf(`<input type="text" id="%[1]s" name="%[1]s" value="%[2]s" required>`,
			FieldTitle, templ.EscapeString(props.DraftTitle))
		out.rawf(`<label for="%s">Content</label>`, FieldContent)
		out.rawf(`<textarea id="%[1]s" name="%[1]s" rows="6" required>`, FieldContent)
		out.text(props.DraftContent)
		out.raw(`</textarea>`)
		out.raw(`<button type="submit">Create Note</button>`)
		out.raw(`</form>`)
	})
}

func noteCard(csrf string, note NoteView) templ.Component {
	return component(func(_ context.Context, out *writer) {
		out.rawf(`<article class="%s" role="listitem" %s="%d">`, ClassNote, DataAttrNoteID, note.ID)
		out.raw(`<h3>`)
		out.text(note.Title)
		out.raw(`</h3>`)
		if !note.CreatedAt.IsZero() {
			out.rawf(`<time datetime="%s">`, note.CreatedAt.UTC().Format(time.RFC3339))
			out.text(note.CreatedAt.Format("Jan 2, 2006 15:04"))
			out.raw(`</time>`)
		}
		out.raw(`<div class="note-content">`)
		out.raw(note.ContentHTML)
		out.raw(`</div>`)
		out.rawf(`<form method="post" action="%s">`, DeleteNoteURL(note.ID))
		csrfField(out, csrf)
		out.rawf(`<button type="submit" aria-label="Delete %s">Delete</button>`,
			templ.EscapeString(note.Title))
		out.raw(`</form></article>`)
	})
}
