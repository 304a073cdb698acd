package sec

import (
	"context"

	"github.com/stolasapp/notebook/internal/backend"
)

type sessionKey struct{}

// WithSession stores the authenticated session on ctx. The session middleware
// injects it; this is also a convenience for testing.
func WithSession(ctx context.Context, session backend.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFrom returns the authenticated session, reporting false if ctx has
// none.
func SessionFrom(ctx context.Context) (backend.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(backend.Session)
	return session, ok
}
