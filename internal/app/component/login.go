package component

import (
	"context"

	"github.com/a-h/templ"
)

// LoginProps are the inputs for the magic link login page.
type LoginProps struct {
	CSRF   string
	Email  string
	Notice Notice
}

// LoginPage renders the email form that requests a magic link.
func LoginPage(props LoginProps) templ.Component {
	return Layout("Login", component(func(_ context.Context, out *writer) {
		out.raw(`<main class="login">`)
		out.raw(`<h1>Welcome Back</h1>`)
		out.raw(`<p>Enter your email to receive a magic link.</p>`)
		props.Notice.write(out)
		out.rawf(`<form id="%s" method="post" action="%s">`, IDLoginForm, LoginURL)
		csrfField(out, props.CSRF)
		out.rawf(`<label for="%s">Email Address</label>`, FieldEmail)
		out.rawf(`<input type="email" id="%[1]s" name="%[1]s" value="%[2]s" placeholder="you@example.com" autocomplete="email" required>`,
			FieldEmail, templ.EscapeString(props.Email))
		out.raw(`<button type="submit">Send Magic Link</button>`)
		out.raw(`</form></main>`)
	}))
}
