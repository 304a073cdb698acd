package component

import (
	"net/url"
	"strconv"
)

// Routes served by the web app.
const (
	GateURL    = "/secret"
	NotesURL   = "/notes"
	LoginURL   = NotesURL + "/login"
	ConfirmURL = NotesURL + "/auth/confirm"
	LogoutURL  = NotesURL + "/logout"
	StyleURL   = "/static/style.css"
)

// DeleteNoteURL returns the form action that deletes the note with id.
func DeleteNoteURL(id int64) string {
	return NotesURL + "/" + url.PathEscape(strconv.FormatInt(id, 10)) + "/delete"
}

// ParseNoteID parses the note id path parameter produced by [DeleteNoteURL].
func ParseNoteID(param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
