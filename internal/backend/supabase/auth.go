package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/stolasapp/notebook/internal/backend"
)

// session is the token payload returned by verify and refresh.
type session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         backend.User `json:"user"`
}

func (s session) toBackend() (backend.Session, error) {
	if s.AccessToken == "" || s.User.ID == "" {
		return backend.Session{}, backend.ErrUnauthenticated
	}
	expires := time.Unix(s.ExpiresAt, 0)
	if s.ExpiresAt == 0 {
		expires = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return backend.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expires,
		User:         s.User,
	}, nil
}

// SendMagicLink satisfies the [backend.Auth] interface. Unknown addresses are
// signed up on first use.
func (c *Client) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	email, err := backend.NormalizeEmail(email)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:     "send_magic_link",
		method: http.MethodPost,
		path:   "/auth/v1/otp",
		query:  url.Values{"redirect_to": {redirectTo}},
		body: map[string]any{
			"email":       email,
			"create_user": true,
		},
	}, nil)
}

// VerifyMagicLink satisfies the [backend.Auth] interface.
func (c *Client) VerifyMagicLink(ctx context.Context, tokenHash string) (backend.Session, error) {
	if tokenHash == "" {
		return backend.Session{}, backend.ErrUnauthenticated
	}
	var resp session
	err := c.do(ctx, request{
		op:     "verify_magic_link",
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body: map[string]string{
			"type":       "magiclink",
			"token_hash": tokenHash,
		},
	}, &resp)
	if err != nil {
		return backend.Session{}, err
	}
	return resp.toBackend()
}

// GetUser satisfies the [backend.Auth] interface.
func (c *Client) GetUser(ctx context.Context, accessToken string) (backend.User, error) {
	if accessToken == "" {
		return backend.User{}, backend.ErrUnauthenticated
	}
	var user backend.User
	err := c.do(ctx, request{
		op:     "get_user",
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  accessToken,
	}, &user)
	if err != nil {
		return backend.User{}, err
	}
	if user.ID == "" {
		return backend.User{}, backend.ErrUnauthenticated
	}
	return user, nil
}

// RefreshSession satisfies the [backend.Auth] interface.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (backend.Session, error) {
	if refreshToken == "" {
		return backend.Session{}, backend.ErrUnauthenticated
	}
	var resp session
	err := c.do(ctx, request{
		op:     "refresh_session",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return backend.Session{}, err
	}
	return resp.toBackend()
}

// SignOut satisfies the [backend.Auth] interface.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return c.do(ctx, request{
		op:     "sign_out",
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  accessToken,
	}, nil)
}
