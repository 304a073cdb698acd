// Package component provides the HTML components rendered by the notebook web
// app.
package component

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// writer accumulates the first write error so components can be written
// top to bottom.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

// rawf formats a raw fragment. Callers escape dynamic arguments.
func (w *writer) rawf(format string, args ...any) {
	if w.err == nil {
		_, w.err = fmt.Fprintf(w.w, format, args...)
	}
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) render(ctx context.Context, c templ.Component) {
	if w.err == nil && c != nil {
		w.err = c.Render(ctx, w.w)
	}
}

// component adapts a writer based body into a [templ.Component].
func component(fn func(ctx context.Context, out *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		fn(ctx, out)
		return out.err
	})
}

// Layout wraps body in the full HTML document.
func Layout(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, out *writer) {
		out.raw(`<!doctype html><html lang="en"><head>`)
		out.raw(`<meta charset="utf-8">`)
		out.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		out.rawf(`<link rel="stylesheet" href="%s">`, StyleURL)
		out.raw(`<title>`)
		out.text(title)
		out.raw(`</title></head><body>`)
		out.render(ctx, body)
		out.raw(`</body></html>`)
	})
}

// NoticeKind selects how a notice is announced.
type NoticeKind int

// Notice kinds.
const (
	NoticeInfo NoticeKind = iota
	NoticeError
)

// Notice is a one-off message shown above a form. Error notices are
// rendered with the alert role so assistive technology interrupts with them.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// InfoNotice returns a polite status notice.
func InfoNotice(msg string) Notice { return Notice{Kind: NoticeInfo, Message: msg} }

// ErrorNotice returns an interruptive alert notice.
func ErrorNotice(msg string) Notice { return Notice{Kind: NoticeError, Message: msg} }

func (n Notice) write(out *writer) {
	if n.Message == "" {
		return
	}
	role := "status"
	if n.Kind == NoticeError {
		role = "alert"
	}
	out.rawf(`<p class="%s" role="%s">`, ClassNotice, role)
	out.text(n.Message)
	out.raw(`</p>`)
}

func csrfField(out *writer, token string) {
	out.rawf(`<input type="hidden" name="%s" value="%s">`, FieldCSRF, templ.EscapeString(token))
}
