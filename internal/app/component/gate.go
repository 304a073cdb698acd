package component

import (
	"context"

	"github.com/a-h/templ"
)

// GateProps are the inputs for the password gated page.
type GateProps struct {
	CSRF string
	// Granted reveals ContentHTML and hides the prompt.
	Granted bool
	// ContentHTML is already sanitized.
	ContentHTML string
	// Denied shows the incorrect password notice above the prompt.
	Denied bool
}

// GatePage renders either the password prompt or the revealed content.
func GatePage(props GateProps) templ.Component {
	return Layout("Secret", component(func(_ context.Context, out *writer) {
		out.raw(`<main class="gate">`)
		if props.Granted {
			out.rawf(`<section id="%s">`, IDGateContent)
			out.raw(props.ContentHTML)
			out.raw(`</section></main>`)
			return
		}

		out.rawf(`<dialog id="%s" open>`, IDGateModal)
		if props.Denied {
			ErrorNotice(MessageIncorrectPassword).write(out)
		}
		out.rawf(`<form method="post" action="%s">`, GateURL)
		csrfField(out, props.CSRF)
		out.rawf(`<label for="%[1]s">Password</label>`, FieldPassword)
		out.rawf(`<input type="password" id="%[1]s" name="%[1]s" autocomplete="current-password" autofocus>`, FieldPassword)
		out.raw(`<button type="submit">Enter</button>`)
		out.raw(`</form></dialog></main>`)
	}))
}
